// Package declarative loads semantic model definitions from YAML files and
// applies them to the model store, so models can be kept in version
// control alongside the warehouse code that feeds them.
package declarative

// SupportedAPIVersion is the only apiVersion this loader accepts.
const SupportedAPIVersion = "querylens/v1"

// KindSemanticModel is the document kind for model definitions.
const KindSemanticModel = "SemanticModel"

// ModelDoc is a full semantic model definition file.
type ModelDoc struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Model      ModelSpec `yaml:"model"`
}

// ModelSpec describes the model and its graph.
type ModelSpec struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description,omitempty"`
	DatasourceID  string             `yaml:"datasource_id"`
	Owner         string             `yaml:"owner,omitempty"`
	Tables        []TableSpec        `yaml:"tables,omitempty"`
	Relationships []RelationshipSpec `yaml:"relationships,omitempty"`
}

// TableSpec describes one logical table and its fields.
type TableSpec struct {
	Schema     string      `yaml:"schema,omitempty"`
	Table      string      `yaml:"table,omitempty"`
	Alias      string      `yaml:"alias"`
	Label      string      `yaml:"label,omitempty"`
	Primary    bool        `yaml:"primary,omitempty"`
	Expression string      `yaml:"expression,omitempty"`
	Fields     []FieldSpec `yaml:"fields,omitempty"`
}

// FieldSpec describes one logical field.
type FieldSpec struct {
	Column      string `yaml:"column,omitempty"`
	Role        string `yaml:"role,omitempty"`
	Label       string `yaml:"label,omitempty"`
	Description string `yaml:"description,omitempty"`
	DataType    string `yaml:"data_type,omitempty"`
	Aggregation string `yaml:"aggregation,omitempty"`
	Expression  string `yaml:"expression,omitempty"`
	Format      string `yaml:"format,omitempty"`
	Hidden      bool   `yaml:"hidden,omitempty"`
}

// RelationshipSpec describes one join edge by table alias.
type RelationshipSpec struct {
	LeftAlias   string `yaml:"left_alias"`
	LeftColumn  string `yaml:"left_column"`
	RightAlias  string `yaml:"right_alias"`
	RightColumn string `yaml:"right_column"`
	JoinType    string `yaml:"join_type,omitempty"`
	Label       string `yaml:"label,omitempty"`
}
