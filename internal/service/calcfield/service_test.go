package calcfield

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "querylens/internal/db"
	"querylens/internal/db/repository"
	"querylens/internal/domain"
)

func setupCalcfield(t *testing.T) *Service {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	return NewService(repository.NewCalculatedFieldRepo(writeDB), slog.New(slog.DiscardHandler))
}

func TestService_CreateValidatesExpression(t *testing.T) {
	svc := setupCalcfield(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "total",
		Expression: "[qty] * [price]",
	})
	require.NoError(t, err)
	assert.Equal(t, "total", created.Label, "label falls back to name")
	assert.Equal(t, domain.CalcResultNumber, created.ResultType)
	assert.True(t, created.Active)

	_, err = svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "bad",
		Expression: "[a]; DROP TABLE users",
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))

	// nothing was persisted for the rejected definition
	fields, err := svc.List(ctx, "report-1")
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestService_UpdateValidatesExpression(t *testing.T) {
	svc := setupCalcfield(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "total",
		Expression: "[qty]",
	})
	require.NoError(t, err)

	bad := "exec something"
	_, err = svc.Update(ctx, created.ID, domain.UpdateCalculatedFieldRequest{Expression: &bad})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))

	good := "[qty] * 2"
	updated, err := svc.Update(ctx, created.ID, domain.UpdateCalculatedFieldRequest{Expression: &good})
	require.NoError(t, err)
	assert.Equal(t, good, updated.Expression)
}

func TestService_ApplyFoldsInSortOrder(t *testing.T) {
	svc := setupCalcfield(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "total",
		Label:      "Total",
		Expression: "[qty] * [price]",
		SortOrder:  0,
	})
	require.NoError(t, err)
	// references the first calculated field by name
	_, err = svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "total_with_tax",
		Label:      "Total With Tax",
		Expression: "ROUND([total] * 1.1, 2)",
		SortOrder:  1,
	})
	require.NoError(t, err)

	columns := []string{"qty", "price"}
	rows := [][]interface{}{
		{3, 9.5},
		{2, nil},
	}
	outColumns, outRows, err := svc.Apply(ctx, "report-1", columns, rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"qty", "price", "Total", "Total With Tax"}, outColumns)
	require.Len(t, outRows, 2)
	assert.Equal(t, []interface{}{3, 9.5, 28.5, 31.35}, outRows[0])
	// nil price fails both evaluations without aborting the dataset
	assert.Equal(t, []interface{}{2, nil, nil, nil}, outRows[1])
}

func TestService_ApplySkipsInactiveFields(t *testing.T) {
	svc := setupCalcfield(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCalculatedFieldRequest{
		ReportID:   "report-1",
		Name:       "total",
		Expression: "[qty] * 2",
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, created.ID, domain.UpdateCalculatedFieldRequest{Active: &inactive})
	require.NoError(t, err)

	columns, rows, err := svc.Apply(ctx, "report-1", []string{"qty"}, [][]interface{}{{4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"qty"}, columns)
	assert.Equal(t, [][]interface{}{{4}}, rows)
}

func TestService_ApplyNoFieldsPassthrough(t *testing.T) {
	svc := setupCalcfield(t)
	columns, rows, err := svc.Apply(context.Background(), "empty-report", []string{"a"}, [][]interface{}{{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, columns)
	assert.Equal(t, [][]interface{}{{1}}, rows)
}
