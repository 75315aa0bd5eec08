package api

import (
	"time"

	"querylens/internal/domain"
	"querylens/internal/service/semantic"
)

// Error is the standard error envelope.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type createModelRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DatasourceID string `json:"datasource_id"`
	Owner        string `json:"owner"`
}

type updateModelRequest struct {
	Description *string `json:"description"`
	Owner       *string `json:"owner"`
	Published   *bool   `json:"published"`
}

type createTableRequest struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	Alias      string `json:"alias"`
	Label      string `json:"label"`
	IsPrimary  bool   `json:"is_primary"`
	Expression string `json:"expression"`
	SortOrder  int    `json:"sort_order"`
}

type createFieldRequest struct {
	ColumnName  string `json:"column_name"`
	Role        string `json:"role"`
	Label       string `json:"label"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
	Aggregation string `json:"aggregation"`
	Expression  string `json:"expression"`
	Format      string `json:"format"`
	Hidden      bool   `json:"hidden"`
	SortOrder   int    `json:"sort_order"`
}

type createRelationshipRequest struct {
	LeftTableID  string `json:"left_table_id"`
	LeftColumn   string `json:"left_column"`
	RightTableID string `json:"right_table_id"`
	RightColumn  string `json:"right_column"`
	JoinType     string `json:"join_type"`
	Label        string `json:"label"`
}

type autoImportRequest struct {
	TableNames          []string `json:"table_names"`
	TargetSchema        string   `json:"target_schema"`
	DetectRelationships bool     `json:"detect_relationships"`
}

type exploreFilter struct {
	FieldID  string   `json:"field_id"`
	Operator string   `json:"operator"`
	Value    string   `json:"value"`
	Values   []string `json:"values"`
}

type exploreSort struct {
	FieldID   string `json:"field_id"`
	Direction string `json:"direction"`
}

type exploreRequest struct {
	FieldIDs []string        `json:"field_ids"`
	Filters  []exploreFilter `json:"filters"`
	Sorts    []exploreSort   `json:"sorts"`
	Limit    int             `json:"limit"`
}

type exploreResponse struct {
	SQL         string          `json:"sql"`
	Columns     []string        `json:"columns"`
	Rows        [][]interface{} `json:"rows"`
	RowCount    int             `json:"row_count"`
	ExecutionMs int64           `json:"execution_ms"`
	CacheHit    bool            `json:"cache_hit"`
}

type cacheEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type invalidateRequest struct {
	SQL string `json:"sql"`
}

type invalidateResponse struct {
	Removed int `json:"removed"`
}

type createCalcFieldRequest struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Expression string `json:"expression"`
	ResultType string `json:"result_type"`
	Format     string `json:"format"`
	SortOrder  int    `json:"sort_order"`
}

type updateCalcFieldRequest struct {
	Label      *string `json:"label"`
	Expression *string `json:"expression"`
	ResultType *string `json:"result_type"`
	Format     *string `json:"format"`
	Active     *bool   `json:"active"`
	SortOrder  *int    `json:"sort_order"`
}

type applyCalcFieldsRequest struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type applyCalcFieldsResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type modelResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DatasourceID string    `json:"datasource_id"`
	Owner        string    `json:"owner"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type tableResponse struct {
	ID         string `json:"id"`
	ModelID    string `json:"model_id"`
	SchemaName string `json:"schema_name,omitempty"`
	TableName  string `json:"table_name,omitempty"`
	Alias      string `json:"alias"`
	Label      string `json:"label,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
	Expression string `json:"expression,omitempty"`
	SortOrder  int    `json:"sort_order"`
}

type fieldResponse struct {
	ID          string `json:"id"`
	TableID     string `json:"table_id"`
	ColumnName  string `json:"column_name,omitempty"`
	Role        string `json:"role"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type"`
	Aggregation string `json:"aggregation,omitempty"`
	Expression  string `json:"expression,omitempty"`
	Format      string `json:"format,omitempty"`
	Hidden      bool   `json:"hidden"`
	SortOrder   int    `json:"sort_order"`
}

type relationshipResponse struct {
	ID           string `json:"id"`
	ModelID      string `json:"model_id"`
	LeftTableID  string `json:"left_table_id"`
	LeftColumn   string `json:"left_column"`
	RightTableID string `json:"right_table_id"`
	RightColumn  string `json:"right_column"`
	JoinType     string `json:"join_type"`
	Label        string `json:"label,omitempty"`
	Active       bool   `json:"active"`
}

type autoImportResponse struct {
	TablesCreated        []string `json:"tables_created"`
	TablesSkipped        []string `json:"tables_skipped"`
	FieldsCreated        int      `json:"fields_created"`
	RelationshipsCreated int      `json:"relationships_created"`
}

type calcFieldResponse struct {
	ID         string `json:"id"`
	ReportID   string `json:"report_id"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Expression string `json:"expression"`
	ResultType string `json:"result_type"`
	Format     string `json:"format,omitempty"`
	Active     bool   `json:"active"`
	SortOrder  int    `json:"sort_order"`
}

func modelToAPI(m *domain.Model) modelResponse {
	return modelResponse{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		DatasourceID: m.DatasourceID,
		Owner:        m.Owner,
		Published:    m.Published,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func tableToAPI(t *domain.Table) tableResponse {
	return tableResponse{
		ID:         t.ID,
		ModelID:    t.ModelID,
		SchemaName: t.SchemaName,
		TableName:  t.TableName,
		Alias:      t.Alias,
		Label:      t.Label,
		IsPrimary:  t.IsPrimary,
		Expression: t.Expression,
		SortOrder:  t.SortOrder,
	}
}

func fieldToAPI(f *domain.Field) fieldResponse {
	return fieldResponse{
		ID:          f.ID,
		TableID:     f.TableID,
		ColumnName:  f.ColumnName,
		Role:        f.Role,
		Label:       f.Label,
		Description: f.Description,
		DataType:    f.DataType,
		Aggregation: f.Aggregation,
		Expression:  f.Expression,
		Format:      f.Format,
		Hidden:      f.Hidden,
		SortOrder:   f.SortOrder,
	}
}

func relationshipToAPI(r *domain.Relationship) relationshipResponse {
	return relationshipResponse{
		ID:           r.ID,
		ModelID:      r.ModelID,
		LeftTableID:  r.LeftTableID,
		LeftColumn:   r.LeftColumn,
		RightTableID: r.RightTableID,
		RightColumn:  r.RightColumn,
		JoinType:     r.JoinType,
		Label:        r.Label,
		Active:       r.Active,
	}
}

func autoImportToAPI(r *semantic.AutoImportResult) autoImportResponse {
	return autoImportResponse{
		TablesCreated:        r.TablesCreated,
		TablesSkipped:        r.TablesSkipped,
		FieldsCreated:        r.FieldsCreated,
		RelationshipsCreated: r.RelationshipsCreated,
	}
}

func calcFieldToAPI(f *domain.CalculatedField) calcFieldResponse {
	return calcFieldResponse{
		ID:         f.ID,
		ReportID:   f.ReportID,
		Name:       f.Name,
		Label:      f.Label,
		Expression: f.Expression,
		ResultType: f.ResultType,
		Format:     f.Format,
		Active:     f.Active,
		SortOrder:  f.SortOrder,
	}
}

func exploreToAPI(r *domain.ExploreResult) exploreResponse {
	rows := r.Rows
	if rows == nil {
		rows = [][]interface{}{}
	}
	return exploreResponse{
		SQL:         r.SQL,
		Columns:     r.Columns,
		Rows:        rows,
		RowCount:    r.RowCount,
		ExecutionMs: r.ExecutionMs,
		CacheHit:    r.CacheHit,
	}
}
