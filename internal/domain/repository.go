package domain

import "context"

// ModelRepository provides CRUD operations for semantic models.
type ModelRepository interface {
	Create(ctx context.Context, m *Model) (*Model, error)
	GetByID(ctx context.Context, id string) (*Model, error)
	GetByName(ctx context.Context, name string) (*Model, error)
	List(ctx context.Context) ([]Model, error)
	Update(ctx context.Context, id string, req UpdateModelRequest) (*Model, error)
	Delete(ctx context.Context, id string) error
}

// TableRepository provides CRUD operations for logical tables.
type TableRepository interface {
	Create(ctx context.Context, t *Table) (*Table, error)
	GetByID(ctx context.Context, id string) (*Table, error)
	ListByModel(ctx context.Context, modelID string) ([]Table, error)
	Delete(ctx context.Context, id string) error
}

// FieldRepository provides CRUD operations for logical fields.
type FieldRepository interface {
	Create(ctx context.Context, f *Field) (*Field, error)
	GetByID(ctx context.Context, id string) (*Field, error)
	ListByTable(ctx context.Context, tableID string) ([]Field, error)
	ListByModel(ctx context.Context, modelID string) ([]Field, error)
	Delete(ctx context.Context, id string) error
}

// RelationshipRepository provides CRUD operations for join relationships.
type RelationshipRepository interface {
	Create(ctx context.Context, r *Relationship) (*Relationship, error)
	GetByID(ctx context.Context, id string) (*Relationship, error)
	ListByModel(ctx context.Context, modelID string) ([]Relationship, error)
	Delete(ctx context.Context, id string) error
}

// CalculatedFieldRepository provides CRUD operations for calculated fields.
type CalculatedFieldRepository interface {
	Create(ctx context.Context, f *CalculatedField) (*CalculatedField, error)
	GetByID(ctx context.Context, id string) (*CalculatedField, error)
	ListByReport(ctx context.Context, reportID string) ([]CalculatedField, error)
	Update(ctx context.Context, id string, req UpdateCalculatedFieldRequest) (*CalculatedField, error)
	Delete(ctx context.Context, id string) error
}
