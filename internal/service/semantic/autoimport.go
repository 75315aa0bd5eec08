package semantic

import (
	"context"
	"fmt"
	"strings"

	"querylens/internal/domain"
)

// AutoImportRequest holds parameters for importing physical tables into a
// model.
type AutoImportRequest struct {
	ModelID             string
	TableNames          []string
	TargetSchema        string
	DetectRelationships bool
}

// AutoImportResult summarizes what an import actually did.
type AutoImportResult struct {
	TablesCreated        []string
	TablesSkipped        []string
	FieldsCreated        int
	RelationshipsCreated int
}

// AutoImport introspects the model's datasource and creates logical tables
// and fields for the requested physical tables. Table names not present in
// the datasource are skipped, and tables already imported are a no-op, so
// re-running an import is safe.
func (s *Service) AutoImport(ctx context.Context, req AutoImportRequest) (*AutoImportResult, error) {
	if req.ModelID == "" {
		return nil, domain.ErrValidation("model_id is required")
	}
	if len(req.TableNames) == 0 {
		return nil, domain.ErrValidation("at least one table name is required")
	}
	if s.schemas == nil {
		return nil, domain.ErrValidation("no schema gateway configured")
	}

	model, err := s.models.GetByID(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	physical, err := s.schemas.Introspect(ctx, model.DatasourceID)
	if err != nil {
		return nil, err
	}
	physicalByName := make(map[string]domain.PhysicalTable, len(physical))
	for _, pt := range physical {
		if req.TargetSchema == "" || pt.Schema == req.TargetSchema {
			physicalByName[pt.Name] = pt
		}
	}

	existing, err := s.tables.ListByModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	existingNames := make(map[string]bool, len(existing))
	usedAliases := make(map[string]bool, len(existing))
	for _, t := range existing {
		existingNames[t.TableName] = true
		usedAliases[t.Alias] = true
	}

	result := &AutoImportResult{}
	modelWasEmpty := len(existing) == 0

	for i, name := range req.TableNames {
		pt, known := physicalByName[name]
		if !known || existingNames[name] {
			result.TablesSkipped = append(result.TablesSkipped, name)
			continue
		}

		table, err := s.tables.Create(ctx, &domain.Table{
			ModelID:    req.ModelID,
			SchemaName: pt.Schema,
			TableName:  pt.Name,
			Alias:      nextAlias(pt.Name, usedAliases),
			Label:      humanize(pt.Name),
			IsPrimary:  modelWasEmpty && len(result.TablesCreated) == 0,
			SortOrder:  len(existing) + i,
		})
		if err != nil {
			return nil, err
		}
		existingNames[pt.Name] = true
		result.TablesCreated = append(result.TablesCreated, pt.Name)

		for j, col := range pt.Columns {
			role := inferRole(col.Name, col.Type)
			field := &domain.Field{
				TableID:    table.ID,
				ColumnName: col.Name,
				Role:       role,
				Label:      humanize(col.Name),
				DataType:   inferDataType(col.Type),
				SortOrder:  j,
			}
			if role == domain.FieldRoleMeasure {
				field.Aggregation = domain.AggregationSum
			}
			if _, err := s.fields.Create(ctx, field); err != nil {
				return nil, err
			}
			result.FieldsCreated++
		}
	}

	if req.DetectRelationships {
		n, err := s.detectRelationships(ctx, req.ModelID)
		if err != nil {
			return nil, err
		}
		result.RelationshipsCreated = n
	}
	return result, nil
}

// detectRelationships scans every field named *_id and links its table to a
// table whose physical name matches the stripped stem, its plural, or its
// singular. Ambiguous or unconventional naming simply produces no edge.
func (s *Service) detectRelationships(ctx context.Context, modelID string) (int, error) {
	tables, err := s.tables.ListByModel(ctx, modelID)
	if err != nil {
		return 0, err
	}
	rels, err := s.relationships.ListByModel(ctx, modelID)
	if err != nil {
		return 0, err
	}

	byPhysicalName := make(map[string]*domain.Table, len(tables))
	for i := range tables {
		byPhysicalName[tables[i].TableName] = &tables[i]
	}

	created := 0
	for i := range tables {
		owner := &tables[i]
		fields, err := s.fields.ListByTable(ctx, owner.ID)
		if err != nil {
			return 0, err
		}
		for _, f := range fields {
			if !strings.HasSuffix(f.ColumnName, "_id") {
				continue
			}
			stem := strings.TrimSuffix(f.ColumnName, "_id")
			target := matchTableStem(byPhysicalName, stem)
			if target == nil || target.ID == owner.ID {
				continue
			}
			if relationshipExists(rels, owner.ID, f.ColumnName, target.ID) {
				continue
			}
			rel, err := s.relationships.Create(ctx, &domain.Relationship{
				ModelID:      modelID,
				LeftTableID:  owner.ID,
				LeftColumn:   f.ColumnName,
				RightTableID: target.ID,
				RightColumn:  "id",
				JoinType:     domain.JoinTypeLeft,
				Label:        fmt.Sprintf("%s.%s -> %s.id", owner.TableName, f.ColumnName, target.TableName),
				Active:       true,
			})
			if err != nil {
				return 0, err
			}
			rels = append(rels, *rel)
			created++
		}
	}
	return created, nil
}

func matchTableStem(byName map[string]*domain.Table, stem string) *domain.Table {
	if t, ok := byName[stem]; ok {
		return t
	}
	if t, ok := byName[stem+"s"]; ok {
		return t
	}
	if singular := strings.TrimSuffix(stem, "s"); singular != stem {
		if t, ok := byName[singular]; ok {
			return t
		}
	}
	return nil
}

// relationshipExists treats edges as undirected but column-aware: a reverse
// edge on the same joining column counts as a duplicate.
func relationshipExists(rels []domain.Relationship, leftTableID, leftColumn, rightTableID string) bool {
	for _, r := range rels {
		if r.LeftTableID == leftTableID && r.RightTableID == rightTableID && r.LeftColumn == leftColumn {
			return true
		}
		if r.LeftTableID == rightTableID && r.RightTableID == leftTableID && r.RightColumn == leftColumn {
			return true
		}
	}
	return false
}

// nextAlias derives a short SQL alias from the first three characters of
// the table name, appending an ordinal when the prefix is already taken.
func nextAlias(tableName string, used map[string]bool) string {
	base := strings.ToLower(tableName)
	if len(base) > 3 {
		base = base[:3]
	}
	alias := base
	for n := 2; used[alias]; n++ {
		alias = fmt.Sprintf("%s%d", base, n)
	}
	used[alias] = true
	return alias
}

// humanize turns snake_case identifiers into display labels.
func humanize(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func inferRole(columnName, physicalType string) string {
	name := strings.ToLower(columnName)
	typ := strings.ToLower(physicalType)

	if strings.HasSuffix(name, "_at") ||
		strings.Contains(name, "date") || strings.Contains(name, "time") ||
		strings.Contains(typ, "date") || strings.Contains(typ, "time") || strings.Contains(typ, "timestamp") {
		return domain.FieldRoleTimeDimension
	}
	if name == "id" || name == "status" || name == "category" ||
		strings.HasSuffix(name, "_id") || strings.HasSuffix(name, "_name") ||
		strings.HasSuffix(name, "_code") || strings.HasSuffix(name, "_type") ||
		isTextualType(typ) || strings.Contains(typ, "bool") || strings.Contains(typ, "uuid") {
		return domain.FieldRoleDimension
	}
	if isNumericType(typ) {
		return domain.FieldRoleMeasure
	}
	return domain.FieldRoleDimension
}

func inferDataType(physicalType string) string {
	typ := strings.ToLower(physicalType)
	switch {
	case strings.Contains(typ, "timestamp"), strings.Contains(typ, "datetime"):
		return domain.DataTypeTimestamp
	case strings.Contains(typ, "date"):
		return domain.DataTypeDate
	case isNumericType(typ):
		return domain.DataTypeNumber
	case strings.Contains(typ, "bool"):
		return domain.DataTypeBoolean
	default:
		return domain.DataTypeString
	}
}

func isNumericType(typ string) bool {
	for _, kw := range []string{"int", "float", "double", "decimal", "numeric", "real"} {
		if strings.Contains(typ, kw) {
			return true
		}
	}
	return false
}

func isTextualType(typ string) bool {
	for _, kw := range []string{"char", "text", "string", "clob"} {
		if strings.Contains(typ, kw) {
			return true
		}
	}
	return false
}
