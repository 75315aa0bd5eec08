package domain

import "context"

// QueryResult holds the structured output of a SQL query.
type QueryResult struct {
	Columns     []string
	Rows        [][]interface{}
	RowCount    int
	ExecutionMs int64
}

// DatabaseGateway executes SQL against a physical datasource.
// Implemented by gateway.SQLGateway; retry, timeout, and cancellation
// policy belong to the implementation, not to this engine.
type DatabaseGateway interface {
	Execute(ctx context.Context, datasourceID, sqlQuery string, limit int) (*QueryResult, error)
}

// PhysicalColumn describes one column of an introspected physical table.
type PhysicalColumn struct {
	Name     string
	Type     string
	Nullable bool
}

// PhysicalTable describes one introspected physical table or view.
type PhysicalTable struct {
	Schema  string
	Name    string
	Type    string // "table" or "view"
	Columns []PhysicalColumn
}

// SchemaGateway introspects a physical datasource's schema.
// Consumed only by auto-import.
type SchemaGateway interface {
	Introspect(ctx context.Context, datasourceID string) ([]PhysicalTable, error)
}
