// Package gateway adapts database/sql connections to the engine's gateway
// interfaces. The engine itself depends only on the interfaces in
// internal/domain.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"querylens/internal/domain"
)

var (
	_ domain.DatabaseGateway = (*SQLGateway)(nil)
	_ domain.SchemaGateway   = (*SQLGateway)(nil)
)

// SQLGateway executes queries and introspects schemas over a *sql.DB. One
// gateway serves one physical datasource; the datasource id is accepted
// for interface symmetry and logging only.
type SQLGateway struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewSQLGateway wraps an open connection pool. driver selects the
// introspection strategy ("sqlite3" uses sqlite_master, anything else the
// standard information_schema).
func NewSQLGateway(db *sql.DB, driver string, logger *slog.Logger) *SQLGateway {
	return &SQLGateway{
		db:     db,
		driver: driver,
		logger: logger.With("component", "gateway", "driver", driver),
	}
}

// Execute runs a SQL query and returns structured results.
func (g *SQLGateway) Execute(ctx context.Context, datasourceID, sqlQuery string, limit int) (*domain.QueryResult, error) {
	if strings.TrimSpace(sqlQuery) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}

	rows, err := g.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		g.logger.Warn("query failed", "datasource_id", datasourceID, "error", err)
		return nil, domain.ErrExecution(fmt.Errorf("execute query: %w", err))
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return result, nil
}

func scanRows(rows *sql.Rows, limit int) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		if limit > 0 && len(resultRows) >= limit {
			break
		}
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// byte slices become strings for JSON serialization
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Introspect lists the datasource's tables, views, and their columns.
func (g *SQLGateway) Introspect(ctx context.Context, datasourceID string) ([]domain.PhysicalTable, error) {
	if g.driver == "sqlite3" {
		return g.introspectSQLite(ctx)
	}
	return g.introspectInformationSchema(ctx)
}

func (g *SQLGateway) introspectSQLite(ctx context.Context) ([]domain.PhysicalTable, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.PhysicalTable
	for rows.Next() {
		var t domain.PhysicalTable
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return nil, err
		}
		t.Schema = "main"
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := g.sqliteColumns(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols
	}
	return tables, nil
}

func (g *SQLGateway) sqliteColumns(ctx context.Context, tableName string) ([]domain.PhysicalColumn, error) {
	// PRAGMA does not support placeholders; the name comes from
	// sqlite_master, not from user input
	rows, err := g.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", tableName, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.PhysicalColumn
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, domain.PhysicalColumn{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0,
		})
	}
	return cols, rows.Err()
}

func (g *SQLGateway) introspectInformationSchema(ctx context.Context) ([]domain.PhysicalTable, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT table_schema, table_name, table_type, column_name, data_type, is_nullable
		 FROM information_schema.columns
		 JOIN information_schema.tables USING (table_catalog, table_schema, table_name)
		 WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		 ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.PhysicalTable
	index := map[string]int{}
	for rows.Next() {
		var schema, name, tableType, colName, colType, nullable string
		if err := rows.Scan(&schema, &name, &tableType, &colName, &colType, &nullable); err != nil {
			return nil, err
		}
		key := schema + "." + name
		i, ok := index[key]
		if !ok {
			typ := "table"
			if strings.Contains(strings.ToUpper(tableType), "VIEW") {
				typ = "view"
			}
			tables = append(tables, domain.PhysicalTable{Schema: schema, Name: name, Type: typ})
			i = len(tables) - 1
			index[key] = i
		}
		tables[i].Columns = append(tables[i].Columns, domain.PhysicalColumn{
			Name:     colName,
			Type:     colType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	return tables, rows.Err()
}
