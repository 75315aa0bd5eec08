package domain

// Filter operators supported by the query compiler. An unrecognized
// operator falls back to FilterOpEq.
const (
	FilterOpEq        = "EQ"
	FilterOpNeq       = "NEQ"
	FilterOpGt        = "GT"
	FilterOpGte       = "GTE"
	FilterOpLt        = "LT"
	FilterOpLte       = "LTE"
	FilterOpLike      = "LIKE"
	FilterOpIn        = "IN"
	FilterOpIsNull    = "IS_NULL"
	FilterOpIsNotNull = "IS_NOT_NULL"

	SortAsc  = "ASC"
	SortDesc = "DESC"

	DefaultExploreLimit = 1000
)

// ExploreFilter restricts an explore query on one field.
type ExploreFilter struct {
	FieldID  string
	Operator string
	Value    string
	Values   []string // used by the IN operator
}

// ExploreSort orders an explore result by one selected field's label.
type ExploreSort struct {
	FieldID   string
	Direction string
}

// ExploreRequest is an ad-hoc analytical query against a model. It is
// ephemeral and never persisted.
type ExploreRequest struct {
	ModelID  string
	FieldIDs []string
	Filters  []ExploreFilter
	Sorts    []ExploreSort
	Limit    int
}

// Validate checks that the request is well-formed and applies defaults.
func (r *ExploreRequest) Validate() error {
	if r.ModelID == "" {
		return ErrValidation("model_id is required")
	}
	if len(r.FieldIDs) == 0 {
		return ErrValidation("at least one field is required")
	}
	if r.Limit <= 0 {
		r.Limit = DefaultExploreLimit
	}
	return nil
}

// ExploreResult is the outcome of compiling and executing an explore request.
type ExploreResult struct {
	SQL         string
	Columns     []string
	Rows        [][]interface{}
	RowCount    int
	ExecutionMs int64
	CacheHit    bool
}
