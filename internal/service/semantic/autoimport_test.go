package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querylens/internal/domain"
)

func salesSchema() *fakeSchemaGateway {
	return &fakeSchemaGateway{tables: []domain.PhysicalTable{
		{
			Schema: "main", Name: "orders", Type: "table",
			Columns: []domain.PhysicalColumn{
				{Name: "id", Type: "INTEGER"},
				{Name: "customer_id", Type: "INTEGER"},
				{Name: "status", Type: "VARCHAR"},
				{Name: "amount", Type: "DECIMAL(10,2)"},
				{Name: "created_at", Type: "TIMESTAMP"},
			},
		},
		{
			Schema: "main", Name: "customers", Type: "table",
			Columns: []domain.PhysicalColumn{
				{Name: "id", Type: "INTEGER"},
				{Name: "customer_name", Type: "VARCHAR"},
				{Name: "signup_date", Type: "DATE"},
				{Name: "active", Type: "BOOLEAN"},
			},
		},
	}}
}

func TestAutoImport_CreatesTablesFieldsAndRelationships(t *testing.T) {
	svc := setupService(t, salesSchema())
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, domain.CreateModelRequest{Name: "sales", DatasourceID: "ds-main"})
	require.NoError(t, err)

	result, err := svc.AutoImport(ctx, AutoImportRequest{
		ModelID:             model.ID,
		TableNames:          []string{"orders", "customers", "nonexistent"},
		DetectRelationships: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "customers"}, result.TablesCreated)
	assert.Equal(t, []string{"nonexistent"}, result.TablesSkipped)
	assert.Equal(t, 9, result.FieldsCreated)
	assert.Equal(t, 1, result.RelationshipsCreated)

	snap, err := svc.Snapshot(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 2)

	orders := snap.Tables[0]
	assert.Equal(t, "ord", orders.Alias)
	assert.Equal(t, "Orders", orders.Label)
	assert.True(t, orders.IsPrimary, "first table into an empty model becomes primary")

	customers := snap.Tables[1]
	assert.Equal(t, "cus", customers.Alias)
	assert.False(t, customers.IsPrimary)

	roleByColumn := map[string]string{}
	typeByColumn := map[string]string{}
	var amountAgg string
	for _, f := range snap.Fields {
		roleByColumn[f.ColumnName] = f.Role
		typeByColumn[f.ColumnName] = f.DataType
		if f.ColumnName == "amount" {
			amountAgg = f.Aggregation
		}
	}
	assert.Equal(t, domain.FieldRoleDimension, roleByColumn["id"])
	assert.Equal(t, domain.FieldRoleDimension, roleByColumn["customer_id"])
	assert.Equal(t, domain.FieldRoleDimension, roleByColumn["status"])
	assert.Equal(t, domain.FieldRoleMeasure, roleByColumn["amount"])
	assert.Equal(t, domain.FieldRoleTimeDimension, roleByColumn["created_at"])
	assert.Equal(t, domain.FieldRoleTimeDimension, roleByColumn["signup_date"])
	assert.Equal(t, domain.FieldRoleDimension, roleByColumn["active"])

	assert.Equal(t, domain.DataTypeNumber, typeByColumn["amount"])
	assert.Equal(t, domain.DataTypeTimestamp, typeByColumn["created_at"])
	assert.Equal(t, domain.DataTypeDate, typeByColumn["signup_date"])
	assert.Equal(t, domain.DataTypeBoolean, typeByColumn["active"])
	assert.Equal(t, domain.DataTypeString, typeByColumn["status"])

	assert.Equal(t, domain.AggregationSum, amountAgg)

	require.Len(t, snap.Relationships, 1)
	rel := snap.Relationships[0]
	assert.Equal(t, orders.ID, rel.LeftTableID)
	assert.Equal(t, "customer_id", rel.LeftColumn)
	assert.Equal(t, customers.ID, rel.RightTableID)
	assert.Equal(t, "id", rel.RightColumn)
	assert.Equal(t, domain.JoinTypeLeft, rel.JoinType)
}

func TestAutoImport_Idempotent(t *testing.T) {
	svc := setupService(t, salesSchema())
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, domain.CreateModelRequest{Name: "sales", DatasourceID: "ds-main"})
	require.NoError(t, err)

	req := AutoImportRequest{
		ModelID:             model.ID,
		TableNames:          []string{"orders", "customers"},
		DetectRelationships: true,
	}
	_, err = svc.AutoImport(ctx, req)
	require.NoError(t, err)

	again, err := svc.AutoImport(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, again.TablesCreated)
	assert.Equal(t, []string{"orders", "customers"}, again.TablesSkipped)
	assert.Zero(t, again.FieldsCreated)
	assert.Zero(t, again.RelationshipsCreated, "existing relationship suppresses re-detection")

	snap, err := svc.Snapshot(ctx, model.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 2)
	assert.Len(t, snap.Fields, 9)
	assert.Len(t, snap.Relationships, 1)
}

func TestAutoImport_AliasDisambiguation(t *testing.T) {
	svc := setupService(t, &fakeSchemaGateway{tables: []domain.PhysicalTable{
		{Name: "orders", Columns: []domain.PhysicalColumn{{Name: "id", Type: "INTEGER"}}},
		{Name: "order_items", Columns: []domain.PhysicalColumn{{Name: "id", Type: "INTEGER"}}},
	}})
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, domain.CreateModelRequest{Name: "sales", DatasourceID: "ds"})
	require.NoError(t, err)

	_, err = svc.AutoImport(ctx, AutoImportRequest{
		ModelID:    model.ID,
		TableNames: []string{"orders", "order_items"},
	})
	require.NoError(t, err)

	tables, err := svc.ListTables(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "ord", tables[0].Alias)
	assert.Equal(t, "ord2", tables[1].Alias)
}

func TestAutoImport_TargetSchemaFilters(t *testing.T) {
	svc := setupService(t, &fakeSchemaGateway{tables: []domain.PhysicalTable{
		{Schema: "staging", Name: "orders", Columns: []domain.PhysicalColumn{{Name: "id", Type: "INTEGER"}}},
	}})
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, domain.CreateModelRequest{Name: "sales", DatasourceID: "ds"})
	require.NoError(t, err)

	result, err := svc.AutoImport(ctx, AutoImportRequest{
		ModelID:      model.ID,
		TableNames:   []string{"orders"},
		TargetSchema: "main",
	})
	require.NoError(t, err)
	assert.Empty(t, result.TablesCreated)
	assert.Equal(t, []string{"orders"}, result.TablesSkipped)
}
