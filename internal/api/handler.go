// Package api exposes the engine over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"querylens/internal/cache"
	"querylens/internal/domain"
	"querylens/internal/service/calcfield"
	"querylens/internal/service/explore"
	"querylens/internal/service/semantic"
)

// Handler serves the /v1 API surface.
type Handler struct {
	semantic   *semantic.Service
	explore    *explore.Service
	calcfields *calcfield.Service
	cache      *cache.ResultCache
}

// NewHandler creates a Handler over the service layer.
func NewHandler(sem *semantic.Service, exp *explore.Service, calc *calcfield.Service, resultCache *cache.ResultCache) *Handler {
	return &Handler{
		semantic:   sem,
		explore:    exp,
		calcfields: calc,
		cache:      resultCache,
	}
}

// Routes mounts every endpoint on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Post("/", h.createModel)
		r.Get("/", h.listModels)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Get("/", h.getModel)
			r.Patch("/", h.updateModel)
			r.Delete("/", h.deleteModel)
			r.Post("/tables", h.createTable)
			r.Get("/tables", h.listTables)
			r.Post("/relationships", h.createRelationship)
			r.Get("/relationships", h.listRelationships)
			r.Post("/auto-import", h.autoImport)
			r.Post("/explore", h.runExplore)
			r.Post("/explore/explain", h.explainExplore)
		})
	})

	r.Route("/tables/{tableID}", func(r chi.Router) {
		r.Get("/", h.getTable)
		r.Delete("/", h.deleteTable)
		r.Post("/fields", h.createField)
		r.Get("/fields", h.listFields)
	})

	r.Route("/fields/{fieldID}", func(r chi.Router) {
		r.Get("/", h.getField)
		r.Delete("/", h.deleteField)
	})

	r.Delete("/relationships/{relationshipID}", h.deleteRelationship)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.cacheStats)
		r.Put("/enabled", h.setCacheEnabled)
		r.Delete("/", h.invalidateCache)
		r.Delete("/datasources/{datasourceID}", h.invalidateDatasource)
	})

	r.Route("/reports/{reportID}/calculated-fields", func(r chi.Router) {
		r.Post("/", h.createCalcField)
		r.Get("/", h.listCalcFields)
		r.Post("/apply", h.applyCalcFields)
	})
	r.Route("/calculated-fields/{calcFieldID}", func(r chi.Router) {
		r.Get("/", h.getCalcField)
		r.Patch("/", h.updateCalcField)
		r.Delete("/", h.deleteCalcField)
	})
}

// --- models ---

func (h *Handler) createModel(w http.ResponseWriter, r *http.Request) {
	var req createModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	model, err := h.semantic.CreateModel(r.Context(), domain.CreateModelRequest{
		Name:         req.Name,
		Description:  req.Description,
		DatasourceID: req.DatasourceID,
		Owner:        req.Owner,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, modelToAPI(model))
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.semantic.ListModels(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]modelResponse, len(models))
	for i := range models {
		out[i] = modelToAPI(&models[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.semantic.GetModel(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, modelToAPI(model))
}

func (h *Handler) updateModel(w http.ResponseWriter, r *http.Request) {
	var req updateModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	model, err := h.semantic.UpdateModel(r.Context(), chi.URLParam(r, "modelID"), domain.UpdateModelRequest{
		Description: req.Description,
		Owner:       req.Owner,
		Published:   req.Published,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, modelToAPI(model))
}

func (h *Handler) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.semantic.DeleteModel(r.Context(), chi.URLParam(r, "modelID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- tables ---

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	table, err := h.semantic.AddTable(r.Context(), domain.CreateTableRequest{
		ModelID:    chi.URLParam(r, "modelID"),
		SchemaName: req.SchemaName,
		TableName:  req.TableName,
		Alias:      req.Alias,
		Label:      req.Label,
		IsPrimary:  req.IsPrimary,
		Expression: req.Expression,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tableToAPI(table))
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.semantic.ListTables(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]tableResponse, len(tables))
	for i := range tables {
		out[i] = tableToAPI(&tables[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.semantic.GetTable(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tableToAPI(table))
}

func (h *Handler) deleteTable(w http.ResponseWriter, r *http.Request) {
	if err := h.semantic.DeleteTable(r.Context(), chi.URLParam(r, "tableID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- fields ---

func (h *Handler) createField(w http.ResponseWriter, r *http.Request) {
	var req createFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	field, err := h.semantic.AddField(r.Context(), domain.CreateFieldRequest{
		TableID:     chi.URLParam(r, "tableID"),
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
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, fieldToAPI(field))
}

func (h *Handler) listFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.semantic.ListFields(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]fieldResponse, len(fields))
	for i := range fields {
		out[i] = fieldToAPI(&fields[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getField(w http.ResponseWriter, r *http.Request) {
	field, err := h.semantic.GetField(r.Context(), chi.URLParam(r, "fieldID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fieldToAPI(field))
}

func (h *Handler) deleteField(w http.ResponseWriter, r *http.Request) {
	if err := h.semantic.DeleteField(r.Context(), chi.URLParam(r, "fieldID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- relationships ---

func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rel, err := h.semantic.AddRelationship(r.Context(), domain.CreateRelationshipRequest{
		ModelID:      chi.URLParam(r, "modelID"),
		LeftTableID:  req.LeftTableID,
		LeftColumn:   req.LeftColumn,
		RightTableID: req.RightTableID,
		RightColumn:  req.RightColumn,
		JoinType:     req.JoinType,
		Label:        req.Label,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, relationshipToAPI(rel))
}

func (h *Handler) listRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.semantic.ListRelationships(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]relationshipResponse, len(rels))
	for i := range rels {
		out[i] = relationshipToAPI(&rels[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	if err := h.semantic.DeleteRelationship(r.Context(), chi.URLParam(r, "relationshipID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- auto-import ---

func (h *Handler) autoImport(w http.ResponseWriter, r *http.Request) {
	var req autoImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.semantic.AutoImport(r.Context(), semantic.AutoImportRequest{
		ModelID:             chi.URLParam(r, "modelID"),
		TableNames:          req.TableNames,
		TargetSchema:        req.TargetSchema,
		DetectRelationships: req.DetectRelationships,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, autoImportToAPI(result))
}

// --- explore ---

func (h *Handler) runExplore(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExplore(w, r)
	if !ok {
		return
	}
	result, err := h.explore.Run(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exploreToAPI(result))
}

func (h *Handler) explainExplore(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExplore(w, r)
	if !ok {
		return
	}
	result, err := h.explore.Explain(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exploreToAPI(result))
}

func (h *Handler) decodeExplore(w http.ResponseWriter, r *http.Request) (domain.ExploreRequest, bool) {
	var req exploreRequest
	if !decodeJSON(w, r, &req) {
		return domain.ExploreRequest{}, false
	}
	out := domain.ExploreRequest{
		ModelID:  chi.URLParam(r, "modelID"),
		FieldIDs: req.FieldIDs,
		Limit:    req.Limit,
	}
	for _, f := range req.Filters {
		out.Filters = append(out.Filters, domain.ExploreFilter{
			FieldID:  f.FieldID,
			Operator: f.Operator,
			Value:    f.Value,
			Values:   f.Values,
		})
	}
	for _, srt := range req.Sorts {
		out.Sorts = append(out.Sorts, domain.ExploreSort{FieldID: srt.FieldID, Direction: srt.Direction})
	}
	return out, true
}

// --- cache admin ---

func (h *Handler) cacheStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) setCacheEnabled(w http.ResponseWriter, r *http.Request) {
	var req cacheEnabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.cache.SetEnabled(req.Enabled)
	respondJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) invalidateCache(w http.ResponseWriter, _ *http.Request) {
	h.cache.InvalidateAll()
	respondJSON(w, http.StatusNoContent, nil)
}

// invalidateDatasource drops a datasource's entries; an optional body with
// a sql field narrows it to one statement.
func (h *Handler) invalidateDatasource(w http.ResponseWriter, r *http.Request) {
	datasourceID := chi.URLParam(r, "datasourceID")

	var req invalidateRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	var removed int
	if req.SQL != "" {
		removed = h.cache.InvalidateSQL(datasourceID, req.SQL)
	} else {
		removed = h.cache.Invalidate(datasourceID)
	}
	respondJSON(w, http.StatusOK, invalidateResponse{Removed: removed})
}

// --- calculated fields ---

func (h *Handler) createCalcField(w http.ResponseWriter, r *http.Request) {
	var req createCalcFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	field, err := h.calcfields.Create(r.Context(), domain.CreateCalculatedFieldRequest{
		ReportID:   chi.URLParam(r, "reportID"),
		Name:       req.Name,
		Label:      req.Label,
		Expression: req.Expression,
		ResultType: req.ResultType,
		Format:     req.Format,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, calcFieldToAPI(field))
}

func (h *Handler) listCalcFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.calcfields.List(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]calcFieldResponse, len(fields))
	for i := range fields {
		out[i] = calcFieldToAPI(&fields[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getCalcField(w http.ResponseWriter, r *http.Request) {
	field, err := h.calcfields.Get(r.Context(), chi.URLParam(r, "calcFieldID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calcFieldToAPI(field))
}

func (h *Handler) updateCalcField(w http.ResponseWriter, r *http.Request) {
	var req updateCalcFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	field, err := h.calcfields.Update(r.Context(), chi.URLParam(r, "calcFieldID"), domain.UpdateCalculatedFieldRequest{
		Label:      req.Label,
		Expression: req.Expression,
		ResultType: req.ResultType,
		Format:     req.Format,
		Active:     req.Active,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calcFieldToAPI(field))
}

func (h *Handler) deleteCalcField(w http.ResponseWriter, r *http.Request) {
	if err := h.calcfields.Delete(r.Context(), chi.URLParam(r, "calcFieldID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) applyCalcFields(w http.ResponseWriter, r *http.Request) {
	var req applyCalcFieldsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	columns, rows, err := h.calcfields.Apply(r.Context(), chi.URLParam(r, "reportID"), req.Columns, req.Rows)
	if err != nil {
		respondError(w, err)
		return
	}
	if rows == nil {
		rows = [][]interface{}{}
	}
	respondJSON(w, http.StatusOK, applyCalcFieldsResponse{Columns: columns, Rows: rows})
}
