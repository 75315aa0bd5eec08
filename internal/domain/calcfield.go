package domain

import (
	"strings"
	"time"
)

const (
	MaxCalcExpressionLength = 2000

	CalcResultNumber  = "NUMBER"
	CalcResultString  = "STRING"
	CalcResultBoolean = "BOOLEAN"
	CalcResultDate    = "DATE"
)

// calcDenylist blocks obviously mis-authored SQL-like content in calculated
// field expressions. The expression language never reaches a database, so
// this is defense in depth, not an execution-time security boundary.
var calcDenylist = []string{
	"drop ", "delete ", "insert ", "update ", "alter ", "exec ", "execute ",
}

// CalculatedField is a user-authored computed column applied to a report's
// already-materialized result set. It never touches the database.
type CalculatedField struct {
	ID         string
	ReportID   string
	Name       string
	Label      string
	Expression string
	ResultType string
	Format     string
	Active     bool
	SortOrder  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateCalculatedFieldRequest holds parameters for creating a calculated field.
type CreateCalculatedFieldRequest struct {
	ReportID   string
	Name       string
	Label      string
	Expression string
	ResultType string
	Format     string
	SortOrder  int
}

// Validate checks that the request is well-formed and applies defaults.
func (r *CreateCalculatedFieldRequest) Validate() error {
	if r.ReportID == "" {
		return ErrValidation("report_id is required")
	}
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if err := ValidateCalcExpression(r.Expression); err != nil {
		return err
	}
	if r.ResultType == "" {
		r.ResultType = CalcResultNumber
	}
	if r.ResultType != CalcResultNumber && r.ResultType != CalcResultString &&
		r.ResultType != CalcResultBoolean && r.ResultType != CalcResultDate {
		return ErrValidation("result_type must be NUMBER, STRING, BOOLEAN, or DATE")
	}
	return nil
}

// UpdateCalculatedFieldRequest holds partial-update parameters.
type UpdateCalculatedFieldRequest struct {
	Label      *string
	Expression *string
	ResultType *string
	Format     *string
	Active     *bool
	SortOrder  *int
}

// ValidateCalcExpression enforces the definition-time safety rules:
// non-blank, bounded length, and no denylisted keyword (case-insensitive
// substring match).
func ValidateCalcExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return ErrValidation("expression is required")
	}
	if len(expr) > MaxCalcExpressionLength {
		return ErrValidation("expression must be <= %d characters", MaxCalcExpressionLength)
	}
	lower := strings.ToLower(expr)
	for _, kw := range calcDenylist {
		if strings.Contains(lower, kw) {
			return ErrValidation("expression contains forbidden keyword %q", strings.TrimSpace(kw))
		}
	}
	return nil
}
