package gateway

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"querylens/internal/domain"
)

func openTestGateway(t *testing.T) *SQLGateway {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "data.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL,
			amount REAL,
			status TEXT
		);
		CREATE VIEW open_orders AS SELECT * FROM orders WHERE status = 'open';
		INSERT INTO orders (id, customer_id, amount, status) VALUES
			(1, 10, 12.5, 'open'),
			(2, 10, 40.0, 'complete'),
			(3, 11, 7.25, 'open');
	`)
	require.NoError(t, err)

	return NewSQLGateway(db, "sqlite3", slog.New(slog.DiscardHandler))
}

func TestSQLGateway_Execute(t *testing.T) {
	gw := openTestGateway(t)

	result, err := gw.Execute(context.Background(), "ds1",
		`SELECT status, SUM(amount) AS total FROM orders GROUP BY status ORDER BY status`, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"status", "total"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "complete", result.Rows[0][0])
	assert.Equal(t, 40.0, result.Rows[0][1])
}

func TestSQLGateway_ExecuteLimit(t *testing.T) {
	gw := openTestGateway(t)

	result, err := gw.Execute(context.Background(), "ds1", `SELECT id FROM orders ORDER BY id`, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
}

func TestSQLGateway_ExecuteErrors(t *testing.T) {
	gw := openTestGateway(t)

	_, err := gw.Execute(context.Background(), "ds1", "  ", 0)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = gw.Execute(context.Background(), "ds1", "SELECT * FROM no_such_table", 0)
	var ee *domain.ExecutionError
	assert.ErrorAs(t, err, &ee)
}

func TestSQLGateway_Introspect(t *testing.T) {
	gw := openTestGateway(t)

	tables, err := gw.Introspect(context.Background(), "ds1")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	byName := map[string]domain.PhysicalTable{}
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}

	orders, ok := byName["orders"]
	require.True(t, ok)
	assert.Equal(t, "table", orders.Type)
	assert.Equal(t, "main", orders.Schema)
	require.Len(t, orders.Columns, 4)
	assert.Equal(t, "id", orders.Columns[0].Name)
	assert.Equal(t, "INTEGER", orders.Columns[0].Type)
	assert.False(t, orders.Columns[1].Nullable)
	assert.True(t, orders.Columns[2].Nullable)

	view, ok := byName["open_orders"]
	require.True(t, ok)
	assert.Equal(t, "view", view.Type)
}
