package declarative

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "querylens/internal/db"
	"querylens/internal/db/repository"
	"querylens/internal/domain"
	"querylens/internal/service/semantic"
)

const salesModelYAML = `apiVersion: querylens/v1
kind: SemanticModel
model:
  name: sales
  description: Sales analytics
  datasource_id: ds-main
  owner: analytics
  tables:
    - table: orders
      alias: ord
      label: Orders
      primary: true
      fields:
        - column: status
          label: Status
        - column: amount
          role: MEASURE
          label: Total Amount
          data_type: number
    - table: customers
      alias: cus
      label: Customers
      fields:
        - column: region
          label: Region
  relationships:
    - left_alias: ord
      left_column: customer_id
      right_alias: cus
      right_column: id
`

func writeModelFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setupApplier(t *testing.T) (*Applier, *semantic.Service) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	sem := semantic.NewService(
		repository.NewModelRepo(writeDB),
		repository.NewTableRepo(writeDB),
		repository.NewFieldRepo(writeDB),
		repository.NewRelationshipRepo(writeDB),
		nil,
	)
	return NewApplier(sem, slog.New(slog.DiscardHandler)), sem
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeModelFile(t, dir, "sales.yaml", salesModelYAML)

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sales", doc.Model.Name)
	assert.Equal(t, "ds-main", doc.Model.DatasourceID)
	require.Len(t, doc.Model.Tables, 2)
	assert.True(t, doc.Model.Tables[0].Primary)
	require.Len(t, doc.Model.Relationships, 1)
}

func TestLoadFile_Rejections(t *testing.T) {
	dir := t.TempDir()

	badVersion := writeModelFile(t, dir, "v.yaml",
		"apiVersion: other/v2\nkind: SemanticModel\nmodel:\n  name: x\n  datasource_id: ds\n")
	_, err := LoadFile(badVersion)
	assert.ErrorContains(t, err, "unsupported apiVersion")

	badKind := writeModelFile(t, dir, "k.yaml",
		"apiVersion: querylens/v1\nkind: Pipeline\nmodel:\n  name: x\n  datasource_id: ds\n")
	_, err = LoadFile(badKind)
	assert.ErrorContains(t, err, "unexpected kind")

	unknownField := writeModelFile(t, dir, "u.yaml",
		"apiVersion: querylens/v1\nkind: SemanticModel\nmodel:\n  name: x\n  datasource_id: ds\n  bogus: 1\n")
	_, err = LoadFile(unknownField)
	assert.Error(t, err, "unknown fields are rejected")
}

func TestApply_CreatesGraph(t *testing.T) {
	applier, sem := setupApplier(t)
	dir := t.TempDir()
	writeModelFile(t, dir, "sales.yaml", salesModelYAML)

	require.NoError(t, applier.ApplyDirectory(context.Background(), dir))

	models, err := sem.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)

	snap, err := sem.Snapshot(context.Background(), models[0].ID)
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 2)
	assert.Len(t, snap.Fields, 3)
	assert.Len(t, snap.Relationships, 1)
	require.NotNil(t, snap.PrimaryTable())
	assert.Equal(t, "ord", snap.PrimaryTable().Alias)

	// measure defaults applied through the normal request path
	for _, f := range snap.Fields {
		if f.ColumnName == "amount" {
			assert.Equal(t, domain.AggregationSum, f.Aggregation)
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	applier, sem := setupApplier(t)
	dir := t.TempDir()
	writeModelFile(t, dir, "sales.yaml", salesModelYAML)
	ctx := context.Background()

	require.NoError(t, applier.ApplyDirectory(ctx, dir))
	require.NoError(t, applier.ApplyDirectory(ctx, dir))

	models, err := sem.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)

	snap, err := sem.Snapshot(ctx, models[0].ID)
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 2)
	assert.Len(t, snap.Fields, 3)
	assert.Len(t, snap.Relationships, 1)
}

func TestApplyDirectory_MissingDirIsNoop(t *testing.T) {
	applier, _ := setupApplier(t)
	assert.NoError(t, applier.ApplyDirectory(context.Background(), "/nonexistent/models"))
}
