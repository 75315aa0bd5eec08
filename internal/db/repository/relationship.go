package repository

import (
	"context"
	"database/sql"

	"querylens/internal/domain"
)

var _ domain.RelationshipRepository = (*RelationshipRepo)(nil)

// RelationshipRepo implements RelationshipRepository using SQLite.
type RelationshipRepo struct {
	db *sql.DB
}

// NewRelationshipRepo creates a new RelationshipRepo.
func NewRelationshipRepo(db *sql.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

const relationshipColumns = `id, model_id, left_table_id, left_column, right_table_id, right_column, join_type, label, active, created_at, updated_at`

func scanRelationship(row interface{ Scan(...interface{}) error }) (*domain.Relationship, error) {
	var rel domain.Relationship
	var active int64
	if err := row.Scan(&rel.ID, &rel.ModelID, &rel.LeftTableID, &rel.LeftColumn,
		&rel.RightTableID, &rel.RightColumn, &rel.JoinType, &rel.Label, &active,
		&rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	rel.Active = active != 0
	return &rel, nil
}

// Create inserts a new relationship.
func (r *RelationshipRepo) Create(ctx context.Context, rel *domain.Relationship) (*domain.Relationship, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO model_relationships (id, model_id, left_table_id, left_column, right_table_id, right_column, join_type, label, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rel.ModelID, rel.LeftTableID, rel.LeftColumn, rel.RightTableID, rel.RightColumn,
		rel.JoinType, rel.Label, boolToInt(rel.Active))
	if err != nil {
		return nil, mapDBError(err, "relationship")
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a relationship by ID.
func (r *RelationshipRepo) GetByID(ctx context.Context, id string) (*domain.Relationship, error) {
	rel, err := scanRelationship(r.db.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM model_relationships WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "relationship")
	}
	return rel, nil
}

// ListByModel returns a model's relationships in creation order. The order
// is part of the compiler's determinism contract.
func (r *RelationshipRepo) ListByModel(ctx context.Context, modelID string) ([]domain.Relationship, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+relationshipColumns+` FROM model_relationships WHERE model_id = ? ORDER BY created_at, id`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var rels []domain.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

// Delete removes a relationship.
func (r *RelationshipRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM model_relationships WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err, "relationship")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("relationship %q not found", id)
	}
	return nil
}
