package repository

import (
	"context"
	"database/sql"

	"querylens/internal/domain"
)

var _ domain.FieldRepository = (*FieldRepo)(nil)

// FieldRepo implements FieldRepository using SQLite.
type FieldRepo struct {
	db *sql.DB
}

// NewFieldRepo creates a new FieldRepo.
func NewFieldRepo(db *sql.DB) *FieldRepo {
	return &FieldRepo{db: db}
}

const fieldColumns = `id, table_id, column_name, role, label, description, data_type, aggregation, expression, format, hidden, sort_order, created_at, updated_at`

func scanField(row interface{ Scan(...interface{}) error }) (*domain.Field, error) {
	var f domain.Field
	var hidden int64
	if err := row.Scan(&f.ID, &f.TableID, &f.ColumnName, &f.Role, &f.Label, &f.Description,
		&f.DataType, &f.Aggregation, &f.Expression, &f.Format, &hidden, &f.SortOrder,
		&f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Hidden = hidden != 0
	return &f, nil
}

// Create inserts a new logical field.
func (r *FieldRepo) Create(ctx context.Context, f *domain.Field) (*domain.Field, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO model_fields (id, table_id, column_name, role, label, description, data_type, aggregation, expression, format, hidden, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.TableID, f.ColumnName, f.Role, f.Label, f.Description, f.DataType,
		f.Aggregation, f.Expression, f.Format, boolToInt(f.Hidden), f.SortOrder)
	if err != nil {
		return nil, mapDBError(err, "field")
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a field by ID.
func (r *FieldRepo) GetByID(ctx context.Context, id string) (*domain.Field, error) {
	f, err := scanField(r.db.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM model_fields WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "field")
	}
	return f, nil
}

// ListByTable returns a table's fields in sort order.
func (r *FieldRepo) ListByTable(ctx context.Context, tableID string) ([]domain.Field, error) {
	return r.list(ctx,
		`SELECT `+fieldColumns+` FROM model_fields WHERE table_id = ? ORDER BY sort_order, created_at, id`, tableID)
}

// ListByModel returns all fields of a model's tables in stable order.
func (r *FieldRepo) ListByModel(ctx context.Context, modelID string) ([]domain.Field, error) {
	return r.list(ctx,
		`SELECT f.id, f.table_id, f.column_name, f.role, f.label, f.description, f.data_type,
		        f.aggregation, f.expression, f.format, f.hidden, f.sort_order, f.created_at, f.updated_at
		 FROM model_fields f
		 JOIN model_tables t ON t.id = f.table_id
		 WHERE t.model_id = ?
		 ORDER BY t.sort_order, t.created_at, f.sort_order, f.created_at, f.id`, modelID)
}

func (r *FieldRepo) list(ctx context.Context, query string, arg string) ([]domain.Field, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var fields []domain.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

// Delete removes a field.
func (r *FieldRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM model_fields WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err, "field")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("field %q not found", id)
	}
	return nil
}
