package declarative

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"querylens/internal/domain"
	"querylens/internal/service/semantic"
)

// LoadFile reads and strictly decodes one model definition.
func LoadFile(path string) (*ModelDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc ModelDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("parse %s: empty document", path)
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.APIVersion != SupportedAPIVersion {
		return nil, fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindSemanticModel {
		return nil, fmt.Errorf("%s: unexpected kind %q (expected %q)", path, doc.Kind, KindSemanticModel)
	}
	if doc.Model.Name == "" {
		return nil, fmt.Errorf("%s: model.name is required", path)
	}
	if doc.Model.DatasourceID == "" {
		return nil, fmt.Errorf("%s: model.datasource_id is required", path)
	}
	return &doc, nil
}

// LoadDirectory reads every .yaml/.yml file directly under dir. A missing
// directory yields an empty slice so a config dir is always optional.
func LoadDirectory(dir string) ([]*ModelDoc, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model config directory: %w", err)
	}

	var docs []*ModelDoc
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		doc, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Applier reconciles model documents into the store.
type Applier struct {
	semantic *semantic.Service
	logger   *slog.Logger
}

// NewApplier creates an Applier.
func NewApplier(sem *semantic.Service, logger *slog.Logger) *Applier {
	return &Applier{
		semantic: sem,
		logger:   logger.With("component", "declarative"),
	}
}

// Apply creates the document's model and graph. It is idempotent by name
// and alias lookup: resources that already exist are left untouched, so
// reapplying a directory on every boot is safe. Apply never deletes.
func (a *Applier) Apply(ctx context.Context, doc *ModelDoc) error {
	model, err := a.ensureModel(ctx, doc)
	if err != nil {
		return err
	}

	existingTables, err := a.semantic.ListTables(ctx, model.ID)
	if err != nil {
		return err
	}
	tableByAlias := make(map[string]*domain.Table, len(existingTables))
	for i := range existingTables {
		tableByAlias[existingTables[i].Alias] = &existingTables[i]
	}

	for i, spec := range doc.Model.Tables {
		table := tableByAlias[spec.Alias]
		if table == nil {
			table, err = a.semantic.AddTable(ctx, domain.CreateTableRequest{
				ModelID:    model.ID,
				SchemaName: spec.Schema,
				TableName:  spec.Table,
				Alias:      spec.Alias,
				Label:      spec.Label,
				IsPrimary:  spec.Primary,
				Expression: spec.Expression,
				SortOrder:  i,
			})
			if err != nil {
				return fmt.Errorf("table %q: %w", spec.Alias, err)
			}
			tableByAlias[spec.Alias] = table
			a.logger.Info("created table", "model", model.Name, "alias", spec.Alias)
		}
		if err := a.ensureFields(ctx, table, spec.Fields); err != nil {
			return err
		}
	}

	return a.ensureRelationships(ctx, model, doc.Model.Relationships, tableByAlias)
}

func (a *Applier) ensureModel(ctx context.Context, doc *ModelDoc) (*domain.Model, error) {
	models, err := a.semantic.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].Name == doc.Model.Name {
			return &models[i], nil
		}
	}
	model, err := a.semantic.CreateModel(ctx, domain.CreateModelRequest{
		Name:         doc.Model.Name,
		Description:  doc.Model.Description,
		DatasourceID: doc.Model.DatasourceID,
		Owner:        doc.Model.Owner,
	})
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", doc.Model.Name, err)
	}
	a.logger.Info("created model", "model", model.Name)
	return model, nil
}

func (a *Applier) ensureFields(ctx context.Context, table *domain.Table, specs []FieldSpec) error {
	existing, err := a.semantic.ListFields(ctx, table.ID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, f := range existing {
		present[fieldKey(f.ColumnName, f.Expression)] = true
	}

	for i, spec := range specs {
		if present[fieldKey(spec.Column, spec.Expression)] {
			continue
		}
		if _, err := a.semantic.AddField(ctx, domain.CreateFieldRequest{
			TableID:     table.ID,
			ColumnName:  spec.Column,
			Role:        spec.Role,
			Label:       spec.Label,
			Description: spec.Description,
			DataType:    spec.DataType,
			Aggregation: spec.Aggregation,
			Expression:  spec.Expression,
			Format:      spec.Format,
			Hidden:      spec.Hidden,
			SortOrder:   i,
		}); err != nil {
			return fmt.Errorf("field %q on table %q: %w", spec.Column, table.Alias, err)
		}
	}
	return nil
}

func fieldKey(column, expression string) string {
	if column != "" {
		return "c:" + column
	}
	return "e:" + expression
}

func (a *Applier) ensureRelationships(ctx context.Context, model *domain.Model, specs []RelationshipSpec, tableByAlias map[string]*domain.Table) error {
	existing, err := a.semantic.ListRelationships(ctx, model.ID)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		left := tableByAlias[spec.LeftAlias]
		right := tableByAlias[spec.RightAlias]
		if left == nil || right == nil {
			return fmt.Errorf("relationship %s.%s -> %s.%s references an unknown alias",
				spec.LeftAlias, spec.LeftColumn, spec.RightAlias, spec.RightColumn)
		}
		if hasRelationship(existing, left.ID, spec.LeftColumn, right.ID) {
			continue
		}
		rel, err := a.semantic.AddRelationship(ctx, domain.CreateRelationshipRequest{
			ModelID:      model.ID,
			LeftTableID:  left.ID,
			LeftColumn:   spec.LeftColumn,
			RightTableID: right.ID,
			RightColumn:  spec.RightColumn,
			JoinType:     spec.JoinType,
			Label:        spec.Label,
		})
		if err != nil {
			return fmt.Errorf("relationship %s -> %s: %w", spec.LeftAlias, spec.RightAlias, err)
		}
		existing = append(existing, *rel)
	}
	return nil
}

func hasRelationship(rels []domain.Relationship, leftTableID, leftColumn, rightTableID string) bool {
	for _, r := range rels {
		if r.LeftTableID == leftTableID && r.LeftColumn == leftColumn && r.RightTableID == rightTableID {
			return true
		}
	}
	return false
}

// ApplyDirectory loads and applies every model definition under dir.
func (a *Applier) ApplyDirectory(ctx context.Context, dir string) error {
	docs, err := LoadDirectory(dir)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := a.Apply(ctx, doc); err != nil {
			return err
		}
	}
	if len(docs) > 0 {
		a.logger.Info("applied declarative models", "count", len(docs))
	}
	return nil
}
