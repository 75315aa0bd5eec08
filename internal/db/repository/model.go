package repository

import (
	"context"
	"database/sql"

	"querylens/internal/domain"
)

// Compile-time check.
var _ domain.ModelRepository = (*ModelRepo)(nil)

// ModelRepo implements ModelRepository using SQLite.
type ModelRepo struct {
	db *sql.DB
}

// NewModelRepo creates a new ModelRepo.
func NewModelRepo(db *sql.DB) *ModelRepo {
	return &ModelRepo{db: db}
}

const modelColumns = `id, name, description, datasource_id, owner, published, created_at, updated_at`

func scanModel(row interface{ Scan(...interface{}) error }) (*domain.Model, error) {
	var m domain.Model
	var published int64
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.DatasourceID, &m.Owner,
		&published, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Published = published != 0
	return &m, nil
}

// Create inserts a new model.
func (r *ModelRepo) Create(ctx context.Context, m *domain.Model) (*domain.Model, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO models (id, name, description, datasource_id, owner, published)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, m.Name, m.Description, m.DatasourceID, m.Owner, boolToInt(m.Published))
	if err != nil {
		return nil, mapDBError(err, "model")
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a model by ID.
func (r *ModelRepo) GetByID(ctx context.Context, id string) (*domain.Model, error) {
	m, err := scanModel(r.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "model")
	}
	return m, nil
}

// GetByName returns a model by its unique name.
func (r *ModelRepo) GetByName(ctx context.Context, name string) (*domain.Model, error) {
	m, err := scanModel(r.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE name = ?`, name))
	if err != nil {
		return nil, mapDBError(err, "model")
	}
	return m, nil
}

// List returns all models ordered by name.
func (r *ModelRepo) List(ctx context.Context) ([]domain.Model, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM models ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var models []domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}
	return models, rows.Err()
}

// Update applies partial updates using read-modify-write.
func (r *ModelRepo) Update(ctx context.Context, id string, req domain.UpdateModelRequest) (*domain.Model, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	description := current.Description
	if req.Description != nil {
		description = *req.Description
	}
	owner := current.Owner
	if req.Owner != nil {
		owner = *req.Owner
	}
	published := current.Published
	if req.Published != nil {
		published = *req.Published
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE models SET description = ?, owner = ?, published = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		description, owner, boolToInt(published), id)
	if err != nil {
		return nil, mapDBError(err, "model")
	}
	return r.GetByID(ctx, id)
}

// Delete removes a model; children cascade via foreign keys.
func (r *ModelRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err, "model")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("model %q not found", id)
	}
	return nil
}
