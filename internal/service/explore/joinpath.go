// Package explore compiles ad-hoc field selections against a semantic
// model into SQL and executes them through the database gateway.
package explore

import (
	"querylens/internal/domain"
)

// joinSpec is one resolved JOIN clause. The left side is always the table
// that was already part of the join set when the edge was taken.
type joinSpec struct {
	table       *domain.Table
	joinType    string
	leftAlias   string
	leftColumn  string
	rightAlias  string
	rightColumn string
}

// resolveJoinPath connects the primary table to every needed table through
// the snapshot's active relationships, returning join specs in resolution
// order.
//
// The algorithm is an iterative fixed-point expansion: each pass walks the
// relationship list in creation order and claims any edge with exactly one
// endpoint already joined and the other needed but not yet joined. The
// joined set grows strictly per claimed edge, so the loop terminates after
// at most len(relationships) passes. A needed table that is still missing
// at the fixed point has no relationship path from the primary, which is a
// modeling error surfaced to the caller.
func resolveJoinPath(snap *domain.ModelSnapshot, primaryID string, needed map[string]bool) ([]joinSpec, error) {
	joined := map[string]bool{primaryID: true}
	var joins []joinSpec

	for {
		progressed := false
		for _, rel := range snap.Relationships {
			var haveID, wantID, haveColumn, wantColumn string
			switch {
			case joined[rel.LeftTableID] && !joined[rel.RightTableID] && needed[rel.RightTableID]:
				haveID, haveColumn = rel.LeftTableID, rel.LeftColumn
				wantID, wantColumn = rel.RightTableID, rel.RightColumn
			case joined[rel.RightTableID] && !joined[rel.LeftTableID] && needed[rel.LeftTableID]:
				haveID, haveColumn = rel.RightTableID, rel.RightColumn
				wantID, wantColumn = rel.LeftTableID, rel.LeftColumn
			default:
				continue
			}

			have := snap.TableByID[haveID]
			want := snap.TableByID[wantID]
			if have == nil || want == nil {
				continue
			}
			joins = append(joins, joinSpec{
				table:       want,
				joinType:    rel.JoinType,
				leftAlias:   have.Alias,
				leftColumn:  haveColumn,
				rightAlias:  want.Alias,
				rightColumn: wantColumn,
			})
			joined[wantID] = true
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for id := range needed {
		if !joined[id] {
			alias := id
			if t := snap.TableByID[id]; t != nil {
				alias = t.Alias
			}
			primaryAlias := primaryID
			if t := snap.TableByID[primaryID]; t != nil {
				primaryAlias = t.Alias
			}
			return nil, domain.ErrValidation("no join path from table %q to table %q", primaryAlias, alias)
		}
	}
	return joins, nil
}

// pickPrimary selects the FROM-clause anchor: the model's isPrimary table
// when it is itself needed, otherwise the first needed table in stable
// order.
func pickPrimary(snap *domain.ModelSnapshot, neededOrder []string, needed map[string]bool) *domain.Table {
	if p := snap.PrimaryTable(); p != nil && needed[p.ID] {
		return p
	}
	for _, id := range neededOrder {
		if t := snap.TableByID[id]; t != nil {
			return t
		}
	}
	return nil
}
