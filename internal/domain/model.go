package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxModelNameLength = 255

	FieldRoleDimension     = "DIMENSION"
	FieldRoleMeasure       = "MEASURE"
	FieldRoleTimeDimension = "TIME_DIMENSION"

	DataTypeString    = "string"
	DataTypeNumber    = "number"
	DataTypeBoolean   = "boolean"
	DataTypeDate      = "date"
	DataTypeTimestamp = "timestamp"

	AggregationSum   = "SUM"
	AggregationCount = "COUNT"
	AggregationAvg   = "AVG"
	AggregationMin   = "MIN"
	AggregationMax   = "MAX"

	JoinTypeLeft  = "LEFT"
	JoinTypeInner = "INNER"
	JoinTypeRight = "RIGHT"
	JoinTypeFull  = "FULL"
)

// Model is a named semantic namespace bound to one physical datasource.
type Model struct {
	ID           string
	Name         string
	Description  string
	DatasourceID string
	Owner        string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateModelRequest holds parameters for creating a model.
type CreateModelRequest struct {
	Name         string
	Description  string
	DatasourceID string
	Owner        string
}

// Validate checks that the request is well-formed.
func (r *CreateModelRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if utf8.RuneCountInString(r.Name) > MaxModelNameLength {
		return ErrValidation("name must be <= %d characters", MaxModelNameLength)
	}
	if r.DatasourceID == "" {
		return ErrValidation("datasource_id is required")
	}
	return nil
}

// UpdateModelRequest holds partial-update parameters.
type UpdateModelRequest struct {
	Description *string
	Owner       *string
	Published   *bool
}

// Table is a logical wrapper over a physical table, view, or SQL expression.
type Table struct {
	ID         string
	ModelID    string
	SchemaName string
	TableName  string
	Alias      string // unique within the model, used in generated SQL
	Label      string
	IsPrimary  bool   // preferred FROM-clause anchor
	Expression string // raw SQL overriding the table reference when set
	SortOrder  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateTableRequest holds parameters for adding a table to a model.
type CreateTableRequest struct {
	ModelID    string
	SchemaName string
	TableName  string
	Alias      string
	Label      string
	IsPrimary  bool
	Expression string
	SortOrder  int
}

// Validate checks that the request is well-formed.
func (r *CreateTableRequest) Validate() error {
	if r.ModelID == "" {
		return ErrValidation("model_id is required")
	}
	if r.TableName == "" && r.Expression == "" {
		return ErrValidation("table_name or expression is required")
	}
	if r.Alias == "" {
		return ErrValidation("alias is required")
	}
	return nil
}

// Field is a logical column belonging to exactly one table.
type Field struct {
	ID          string
	TableID     string
	ColumnName  string // empty when purely expression-based
	Role        string // DIMENSION, MEASURE, or TIME_DIMENSION
	Label       string
	Description string
	DataType    string
	Aggregation string // meaningful only when Role is MEASURE
	Expression  string // replaces "alias.column" in generated SQL when set
	Format      string
	Hidden      bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateFieldRequest holds parameters for adding a field to a table.
type CreateFieldRequest struct {
	TableID     string
	ColumnName  string
	Role        string
	Label       string
	Description string
	DataType    string
	Aggregation string
	Expression  string
	Format      string
	Hidden      bool
	SortOrder   int
}

// Validate checks that the request is well-formed and applies defaults.
func (r *CreateFieldRequest) Validate() error {
	if r.TableID == "" {
		return ErrValidation("table_id is required")
	}
	if r.ColumnName == "" && r.Expression == "" {
		return ErrValidation("column_name or expression is required")
	}
	r.Role = strings.ToUpper(r.Role)
	if r.Role == "" {
		r.Role = FieldRoleDimension
	}
	if r.Role != FieldRoleDimension && r.Role != FieldRoleMeasure && r.Role != FieldRoleTimeDimension {
		return ErrValidation("role must be DIMENSION, MEASURE, or TIME_DIMENSION")
	}
	if r.DataType == "" {
		r.DataType = DataTypeString
	}
	validTypes := map[string]bool{
		DataTypeString: true, DataTypeNumber: true, DataTypeBoolean: true,
		DataTypeDate: true, DataTypeTimestamp: true,
	}
	if !validTypes[r.DataType] {
		return ErrValidation("data_type must be string, number, boolean, date, or timestamp")
	}
	if r.Role == FieldRoleMeasure && r.Aggregation == "" {
		r.Aggregation = AggregationSum
	}
	return nil
}

// Relationship is a directed join edge between two tables within one model.
// It is treated as undirected for path-finding and directed for the emitted
// ON clause: whichever side is already joined supplies the left operand.
type Relationship struct {
	ID           string
	ModelID      string
	LeftTableID  string
	LeftColumn   string
	RightTableID string
	RightColumn  string
	JoinType     string // free-form, not validated against the known set
	Label        string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateRelationshipRequest holds parameters for creating a relationship.
type CreateRelationshipRequest struct {
	ModelID      string
	LeftTableID  string
	LeftColumn   string
	RightTableID string
	RightColumn  string
	JoinType     string
	Label        string
}

// Validate checks that the request is well-formed and applies defaults.
func (r *CreateRelationshipRequest) Validate() error {
	if r.ModelID == "" {
		return ErrValidation("model_id is required")
	}
	if r.LeftTableID == "" || r.RightTableID == "" {
		return ErrValidation("left_table_id and right_table_id are required")
	}
	if r.LeftTableID == r.RightTableID {
		return ErrValidation("relationship must connect two distinct tables")
	}
	if r.LeftColumn == "" || r.RightColumn == "" {
		return ErrValidation("left_column and right_column are required")
	}
	if r.JoinType == "" {
		r.JoinType = JoinTypeLeft
	}
	return nil
}

// ModelSnapshot is an immutable per-request view of a model's graph,
// consumed by the compiler without further repository access.
type ModelSnapshot struct {
	Model         Model
	Tables        []Table
	Fields        []Field
	Relationships []Relationship

	TableByID map[string]*Table
	FieldByID map[string]*Field
}

// NewModelSnapshot builds the lookup maps over the loaded slices.
func NewModelSnapshot(m Model, tables []Table, fields []Field, rels []Relationship) *ModelSnapshot {
	s := &ModelSnapshot{
		Model:         m,
		Tables:        tables,
		Fields:        fields,
		Relationships: rels,
		TableByID:     make(map[string]*Table, len(tables)),
		FieldByID:     make(map[string]*Field, len(fields)),
	}
	for i := range tables {
		s.TableByID[tables[i].ID] = &s.Tables[i]
	}
	for i := range fields {
		s.FieldByID[fields[i].ID] = &s.Fields[i]
	}
	return s
}

// PrimaryTable returns the model's isPrimary-flagged table, or nil.
func (s *ModelSnapshot) PrimaryTable() *Table {
	for i := range s.Tables {
		if s.Tables[i].IsPrimary {
			return &s.Tables[i]
		}
	}
	return nil
}
