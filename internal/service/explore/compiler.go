package explore

import (
	"fmt"
	"strings"

	"querylens/internal/domain"
)

// Compile turns an explore request into executable SQL against the model
// snapshot. It returns the SQL and the result column labels in SELECT-list
// order. Selected field ids that do not exist in the snapshot are skipped;
// a request where nothing resolves is a validation error.
func Compile(snap *domain.ModelSnapshot, req domain.ExploreRequest) (string, []string, error) {
	var dimensions, measures []*domain.Field
	for _, id := range req.FieldIDs {
		f := snap.FieldByID[id]
		if f == nil {
			continue
		}
		if f.Role == domain.FieldRoleMeasure {
			measures = append(measures, f)
		} else {
			dimensions = append(dimensions, f)
		}
	}
	if len(dimensions)+len(measures) == 0 {
		return "", nil, domain.ErrValidation("no resolvable fields selected")
	}

	neededOrder, needed := neededTables(snap, req, dimensions, measures)
	primary := pickPrimary(snap, neededOrder, needed)
	if primary == nil {
		return "", nil, domain.ErrValidation("selected fields reference no known table")
	}
	joins, err := resolveJoinPath(snap, primary.ID, needed)
	if err != nil {
		return "", nil, err
	}

	var selectParts, groupByParts, columns []string
	for _, f := range dimensions {
		ref := fieldRef(snap, f)
		selectParts = append(selectParts, ref+" AS "+quoteIdent(f.Label))
		groupByParts = append(groupByParts, ref)
		columns = append(columns, f.Label)
	}
	for _, f := range measures {
		agg := f.Aggregation
		if agg == "" {
			agg = domain.AggregationSum
		}
		selectParts = append(selectParts, fmt.Sprintf("%s(%s) AS %s", agg, fieldRef(snap, f), quoteIdent(f.Label)))
		columns = append(columns, f.Label)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectParts, ", "))
	b.WriteString(" FROM ")
	b.WriteString(tableRef(primary))

	for _, j := range joins {
		fmt.Fprintf(&b, " %s JOIN %s ON %s.%s = %s.%s",
			j.joinType, tableRef(j.table),
			j.leftAlias, j.leftColumn, j.rightAlias, j.rightColumn)
	}

	if predicates := compileFilters(snap, req.Filters); len(predicates) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(predicates, " AND "))
	}

	if len(measures) > 0 && len(dimensions) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupByParts, ", "))
	}

	if orderBy := compileSorts(snap, req.Sorts); len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderBy, ", "))
	}

	fmt.Fprintf(&b, " LIMIT %d", req.Limit)

	return b.String(), columns, nil
}

// neededTables unions the tables referenced by selected, filter, and sort
// fields, preserving first-reference order for deterministic primary
// fallback.
func neededTables(snap *domain.ModelSnapshot, req domain.ExploreRequest, dimensions, measures []*domain.Field) ([]string, map[string]bool) {
	var order []string
	needed := make(map[string]bool)
	add := func(f *domain.Field) {
		if f == nil || needed[f.TableID] {
			return
		}
		if snap.TableByID[f.TableID] == nil {
			return
		}
		needed[f.TableID] = true
		order = append(order, f.TableID)
	}
	for _, f := range dimensions {
		add(f)
	}
	for _, f := range measures {
		add(f)
	}
	for _, flt := range req.Filters {
		add(snap.FieldByID[flt.FieldID])
	}
	for _, srt := range req.Sorts {
		add(snap.FieldByID[srt.FieldID])
	}
	return order, needed
}

// fieldRef renders a field's SQL reference: its raw expression verbatim
// when set, else alias.column.
func fieldRef(snap *domain.ModelSnapshot, f *domain.Field) string {
	if f.Expression != "" {
		return f.Expression
	}
	alias := ""
	if t := snap.TableByID[f.TableID]; t != nil {
		alias = t.Alias
	}
	return alias + "." + f.ColumnName
}

// tableRef renders a table's FROM/JOIN reference. A raw SQL expression is
// parenthesized so it stays a single relation under the alias.
func tableRef(t *domain.Table) string {
	if t.Expression != "" {
		return "(" + t.Expression + ") AS " + t.Alias
	}
	name := t.TableName
	if t.SchemaName != "" {
		name = t.SchemaName + "." + name
	}
	return name + " AS " + t.Alias
}

func compileFilters(snap *domain.ModelSnapshot, filters []domain.ExploreFilter) []string {
	var predicates []string
	for _, flt := range filters {
		f := snap.FieldByID[flt.FieldID]
		if f == nil {
			continue
		}
		if p := compilePredicate(fieldRef(snap, f), flt); p != "" {
			predicates = append(predicates, p)
		}
	}
	return predicates
}

func compilePredicate(ref string, flt domain.ExploreFilter) string {
	switch flt.Operator {
	case domain.FilterOpNeq:
		return ref + " <> " + sqlLiteral(flt.Value)
	case domain.FilterOpGt:
		return ref + " > " + sqlLiteral(flt.Value)
	case domain.FilterOpGte:
		return ref + " >= " + sqlLiteral(flt.Value)
	case domain.FilterOpLt:
		return ref + " < " + sqlLiteral(flt.Value)
	case domain.FilterOpLte:
		return ref + " <= " + sqlLiteral(flt.Value)
	case domain.FilterOpLike:
		return ref + " LIKE " + sqlLiteral(flt.Value)
	case domain.FilterOpIn:
		values := flt.Values
		if len(values) == 0 && flt.Value != "" {
			values = []string{flt.Value}
		}
		// an IN over nothing can match nothing; drop it rather than
		// emit the invalid "IN ()"
		if len(values) == 0 {
			return ""
		}
		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = sqlLiteral(v)
		}
		return ref + " IN (" + strings.Join(literals, ", ") + ")"
	case domain.FilterOpIsNull:
		return ref + " IS NULL"
	case domain.FilterOpIsNotNull:
		return ref + " IS NOT NULL"
	default:
		// unrecognized operators, including EQ itself, compare for equality
		return ref + " = " + sqlLiteral(flt.Value)
	}
}

func compileSorts(snap *domain.ModelSnapshot, sorts []domain.ExploreSort) []string {
	var parts []string
	for _, srt := range sorts {
		f := snap.FieldByID[srt.FieldID]
		if f == nil {
			continue
		}
		dir := domain.SortAsc
		if strings.EqualFold(srt.Direction, domain.SortDesc) {
			dir = domain.SortDesc
		}
		// the quoted SELECT alias, so sorting works for aggregates too
		parts = append(parts, quoteIdent(f.Label)+" "+dir)
	}
	return parts
}

// sqlLiteral quotes a value as a SQL string literal, doubling embedded
// single quotes. Both target dialects implicitly cast string literals in
// numeric comparisons.
func sqlLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// quoteIdent quotes a label as a SQL identifier, doubling embedded double
// quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
