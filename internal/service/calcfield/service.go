package calcfield

import (
	"context"
	"log/slog"

	"querylens/internal/domain"
)

// Service manages persisted calculated fields and applies them to result
// sets.
type Service struct {
	fields domain.CalculatedFieldRepository
	logger *slog.Logger
}

// NewService creates a calcfield Service.
func NewService(fields domain.CalculatedFieldRepository, logger *slog.Logger) *Service {
	return &Service{
		fields: fields,
		logger: logger.With("component", "calcfield"),
	}
}

// Create validates and persists a calculated field.
func (s *Service) Create(ctx context.Context, req domain.CreateCalculatedFieldRequest) (*domain.CalculatedField, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	label := req.Label
	if label == "" {
		label = req.Name
	}
	return s.fields.Create(ctx, &domain.CalculatedField{
		ReportID:   req.ReportID,
		Name:       req.Name,
		Label:      label,
		Expression: req.Expression,
		ResultType: req.ResultType,
		Format:     req.Format,
		Active:     true,
		SortOrder:  req.SortOrder,
	})
}

// Get retrieves a calculated field by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.CalculatedField, error) {
	return s.fields.GetByID(ctx, id)
}

// List returns a report's calculated fields in evaluation order.
func (s *Service) List(ctx context.Context, reportID string) ([]domain.CalculatedField, error) {
	return s.fields.ListByReport(ctx, reportID)
}

// Update applies a partial update. A changed expression goes through the
// same definition-time validation as creation.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateCalculatedFieldRequest) (*domain.CalculatedField, error) {
	if req.Expression != nil {
		if err := domain.ValidateCalcExpression(*req.Expression); err != nil {
			return nil, err
		}
	}
	return s.fields.Update(ctx, id, req)
}

// Delete removes a calculated field.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.fields.Delete(ctx, id)
}

// Apply evaluates a report's active calculated fields against a column/row
// set and returns the widened result. Fields are folded left in sort
// order, so earlier fields are visible to later ones under their names.
// Evaluation failures surface as nil cells, never as errors.
func (s *Service) Apply(ctx context.Context, reportID string, columns []string, rows [][]interface{}) ([]string, [][]interface{}, error) {
	fields, err := s.fields.ListByReport(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	active := fields[:0:0]
	for _, f := range fields {
		if f.Active {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return columns, rows, nil
	}

	outColumns := make([]string, len(columns), len(columns)+len(active))
	copy(outColumns, columns)
	for _, f := range active {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		outColumns = append(outColumns, label)
	}

	outRows := make([][]interface{}, len(rows))
	for i, row := range rows {
		values := make(map[string]interface{}, len(columns)+len(active))
		for j, col := range columns {
			if j < len(row) {
				values[col] = row[j]
			}
		}

		outRow := make([]interface{}, len(row), len(row)+len(active))
		copy(outRow, row)
		for _, f := range active {
			cell := Evaluate(f.Expression, values, f.ResultType)
			values[f.Name] = cell
			outRow = append(outRow, cell)
		}
		outRows[i] = outRow
	}
	return outColumns, outRows, nil
}
