package repository

import (
	"context"
	"database/sql"

	"querylens/internal/domain"
)

var _ domain.CalculatedFieldRepository = (*CalculatedFieldRepo)(nil)

// CalculatedFieldRepo implements CalculatedFieldRepository using SQLite.
type CalculatedFieldRepo struct {
	db *sql.DB
}

// NewCalculatedFieldRepo creates a new CalculatedFieldRepo.
func NewCalculatedFieldRepo(db *sql.DB) *CalculatedFieldRepo {
	return &CalculatedFieldRepo{db: db}
}

const calcFieldColumns = `id, report_id, name, label, expression, result_type, format, active, sort_order, created_at, updated_at`

func scanCalcField(row interface{ Scan(...interface{}) error }) (*domain.CalculatedField, error) {
	var f domain.CalculatedField
	var active int64
	if err := row.Scan(&f.ID, &f.ReportID, &f.Name, &f.Label, &f.Expression, &f.ResultType,
		&f.Format, &active, &f.SortOrder, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Active = active != 0
	return &f, nil
}

// Create inserts a new calculated field.
func (r *CalculatedFieldRepo) Create(ctx context.Context, f *domain.CalculatedField) (*domain.CalculatedField, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calculated_fields (id, report_id, name, label, expression, result_type, format, active, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.ReportID, f.Name, f.Label, f.Expression, f.ResultType, f.Format,
		boolToInt(f.Active), f.SortOrder)
	if err != nil {
		return nil, mapDBError(err, "calculated field")
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a calculated field by ID.
func (r *CalculatedFieldRepo) GetByID(ctx context.Context, id string) (*domain.CalculatedField, error) {
	f, err := scanCalcField(r.db.QueryRowContext(ctx,
		`SELECT `+calcFieldColumns+` FROM calculated_fields WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "calculated field")
	}
	return f, nil
}

// ListByReport returns a report's calculated fields in evaluation order.
func (r *CalculatedFieldRepo) ListByReport(ctx context.Context, reportID string) ([]domain.CalculatedField, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+calcFieldColumns+` FROM calculated_fields WHERE report_id = ? ORDER BY sort_order, created_at, id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var fields []domain.CalculatedField
	for rows.Next() {
		f, err := scanCalcField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

// Update applies partial updates using read-modify-write.
func (r *CalculatedFieldRepo) Update(ctx context.Context, id string, req domain.UpdateCalculatedFieldRequest) (*domain.CalculatedField, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	label := current.Label
	if req.Label != nil {
		label = *req.Label
	}
	expression := current.Expression
	if req.Expression != nil {
		expression = *req.Expression
	}
	resultType := current.ResultType
	if req.ResultType != nil {
		resultType = *req.ResultType
	}
	format := current.Format
	if req.Format != nil {
		format = *req.Format
	}
	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}
	sortOrder := current.SortOrder
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE calculated_fields
		 SET label = ?, expression = ?, result_type = ?, format = ?, active = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		label, expression, resultType, format, boolToInt(active), sortOrder, id)
	if err != nil {
		return nil, mapDBError(err, "calculated field")
	}
	return r.GetByID(ctx, id)
}

// Delete removes a calculated field.
func (r *CalculatedFieldRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calculated_fields WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err, "calculated field")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("calculated field %q not found", id)
	}
	return nil
}
