package repository

import (
	"context"
	"database/sql"

	"querylens/internal/domain"
)

var _ domain.TableRepository = (*TableRepo)(nil)

// TableRepo implements TableRepository using SQLite.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo creates a new TableRepo.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

const tableColumns = `id, model_id, schema_name, table_name, alias, label, is_primary, expression, sort_order, created_at, updated_at`

func scanTable(row interface{ Scan(...interface{}) error }) (*domain.Table, error) {
	var t domain.Table
	var isPrimary int64
	if err := row.Scan(&t.ID, &t.ModelID, &t.SchemaName, &t.TableName, &t.Alias, &t.Label,
		&isPrimary, &t.Expression, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.IsPrimary = isPrimary != 0
	return &t, nil
}

// Create inserts a new logical table.
func (r *TableRepo) Create(ctx context.Context, t *domain.Table) (*domain.Table, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO model_tables (id, model_id, schema_name, table_name, alias, label, is_primary, expression, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.ModelID, t.SchemaName, t.TableName, t.Alias, t.Label,
		boolToInt(t.IsPrimary), t.Expression, t.SortOrder)
	if err != nil {
		return nil, mapDBError(err, "table")
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a logical table by ID.
func (r *TableRepo) GetByID(ctx context.Context, id string) (*domain.Table, error) {
	t, err := scanTable(r.db.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM model_tables WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "table")
	}
	return t, nil
}

// ListByModel returns a model's tables in creation order.
func (r *TableRepo) ListByModel(ctx context.Context, modelID string) ([]domain.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM model_tables WHERE model_id = ? ORDER BY sort_order, created_at, id`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

// Delete removes a logical table; its fields cascade.
func (r *TableRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM model_tables WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err, "table")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("table %q not found", id)
	}
	return nil
}
