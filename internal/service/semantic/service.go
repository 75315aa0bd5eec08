// Package semantic manages the semantic model graph: models, logical
// tables, fields, and join relationships.
package semantic

import (
	"context"

	"querylens/internal/domain"
)

// Service provides business logic for semantic model management.
type Service struct {
	models        domain.ModelRepository
	tables        domain.TableRepository
	fields        domain.FieldRepository
	relationships domain.RelationshipRepository
	schemas       domain.SchemaGateway
}

// NewService creates a new semantic Service. The schema gateway is only
// needed by auto-import and may be nil when that surface is unused.
func NewService(
	models domain.ModelRepository,
	tables domain.TableRepository,
	fields domain.FieldRepository,
	relationships domain.RelationshipRepository,
	schemas domain.SchemaGateway,
) *Service {
	return &Service{
		models:        models,
		tables:        tables,
		fields:        fields,
		relationships: relationships,
		schemas:       schemas,
	}
}

// CreateModel creates an empty semantic model.
func (s *Service) CreateModel(ctx context.Context, req domain.CreateModelRequest) (*domain.Model, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.models.Create(ctx, &domain.Model{
		Name:         req.Name,
		Description:  req.Description,
		DatasourceID: req.DatasourceID,
		Owner:        req.Owner,
	})
}

// GetModel retrieves a model by ID.
func (s *Service) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	return s.models.GetByID(ctx, id)
}

// ListModels lists all models ordered by name.
func (s *Service) ListModels(ctx context.Context) ([]domain.Model, error) {
	return s.models.List(ctx)
}

// UpdateModel applies a partial update to a model.
func (s *Service) UpdateModel(ctx context.Context, id string, req domain.UpdateModelRequest) (*domain.Model, error) {
	return s.models.Update(ctx, id, req)
}

// DeleteModel deletes a model and cascades to its tables, fields, and
// relationships.
func (s *Service) DeleteModel(ctx context.Context, id string) error {
	return s.models.Delete(ctx, id)
}

// AddTable adds a logical table to a model.
func (s *Service) AddTable(ctx context.Context, req domain.CreateTableRequest) (*domain.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.models.GetByID(ctx, req.ModelID); err != nil {
		return nil, err
	}
	return s.tables.Create(ctx, &domain.Table{
		ModelID:    req.ModelID,
		SchemaName: req.SchemaName,
		TableName:  req.TableName,
		Alias:      req.Alias,
		Label:      req.Label,
		IsPrimary:  req.IsPrimary,
		Expression: req.Expression,
		SortOrder:  req.SortOrder,
	})
}

// GetTable retrieves a logical table by ID.
func (s *Service) GetTable(ctx context.Context, id string) (*domain.Table, error) {
	return s.tables.GetByID(ctx, id)
}

// ListTables lists a model's logical tables.
func (s *Service) ListTables(ctx context.Context, modelID string) ([]domain.Table, error) {
	return s.tables.ListByModel(ctx, modelID)
}

// DeleteTable deletes a logical table and cascades to its fields.
func (s *Service) DeleteTable(ctx context.Context, id string) error {
	return s.tables.Delete(ctx, id)
}

// AddField adds a logical field to a table.
func (s *Service) AddField(ctx context.Context, req domain.CreateFieldRequest) (*domain.Field, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.tables.GetByID(ctx, req.TableID); err != nil {
		return nil, err
	}
	return s.fields.Create(ctx, &domain.Field{
		TableID:     req.TableID,
		ColumnName:  req.ColumnName,
		Role:        req.Role,
		Label:       req.Label,
		Description: req.Description,
		DataType:    req.DataType,
		Aggregation: req.Aggregation,
		Expression:  req.Expression,
		Format:      req.Format,
		Hidden:      req.Hidden,
		SortOrder:   req.SortOrder,
	})
}

// GetField retrieves a logical field by ID.
func (s *Service) GetField(ctx context.Context, id string) (*domain.Field, error) {
	return s.fields.GetByID(ctx, id)
}

// ListFields lists the fields of one table.
func (s *Service) ListFields(ctx context.Context, tableID string) ([]domain.Field, error) {
	return s.fields.ListByTable(ctx, tableID)
}

// DeleteField deletes a logical field.
func (s *Service) DeleteField(ctx context.Context, id string) error {
	return s.fields.Delete(ctx, id)
}

// AddRelationship creates a join edge between two tables of one model.
func (s *Service) AddRelationship(ctx context.Context, req domain.CreateRelationshipRequest) (*domain.Relationship, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	left, err := s.tables.GetByID(ctx, req.LeftTableID)
	if err != nil {
		return nil, err
	}
	right, err := s.tables.GetByID(ctx, req.RightTableID)
	if err != nil {
		return nil, err
	}
	if left.ModelID != req.ModelID || right.ModelID != req.ModelID {
		return nil, domain.ErrValidation("relationship tables must belong to model %q", req.ModelID)
	}
	return s.relationships.Create(ctx, &domain.Relationship{
		ModelID:      req.ModelID,
		LeftTableID:  req.LeftTableID,
		LeftColumn:   req.LeftColumn,
		RightTableID: req.RightTableID,
		RightColumn:  req.RightColumn,
		JoinType:     req.JoinType,
		Label:        req.Label,
		Active:       true,
	})
}

// ListRelationships lists a model's relationships in creation order.
func (s *Service) ListRelationships(ctx context.Context, modelID string) ([]domain.Relationship, error) {
	return s.relationships.ListByModel(ctx, modelID)
}

// DeleteRelationship deletes a relationship.
func (s *Service) DeleteRelationship(ctx context.Context, id string) error {
	return s.relationships.Delete(ctx, id)
}

// Snapshot loads a model's full graph into an immutable per-request value.
// Inactive relationships are filtered out here so downstream consumers
// never see them.
func (s *Service) Snapshot(ctx context.Context, modelID string) (*domain.ModelSnapshot, error) {
	model, err := s.models.GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	tables, err := s.tables.ListByModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	fields, err := s.fields.ListByModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	rels, err := s.relationships.ListByModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Relationship, 0, len(rels))
	for _, r := range rels {
		if r.Active {
			active = append(active, r)
		}
	}
	return domain.NewModelSnapshot(*model, tables, fields, active), nil
}
