package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"obligations/internal/core"
)

type templateRequest struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CategoryID   string          `json:"categoryId"`
	ProjectID    *string         `json:"projectId"`
	SupplierID   *string         `json:"supplierId"`
	DayOfMonth   int             `json:"dayOfMonth"`
	IsActive     *bool           `json:"isActive"` // defaults to true
	AutoGenerate bool            `json:"autoGenerate"`
	Notes        string          `json:"notes"`
}

func (req templateRequest) template() core.Template {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Template{
		Description:  sanitizeInput(req.Description),
		Amount:       req.Amount,
		Currency:     sanitizeInput(req.Currency),
		CategoryID:   sanitizeInput(req.CategoryID),
		ProjectID:    sanitizeOptional(req.ProjectID),
		SupplierID:   sanitizeOptional(req.SupplierID),
		DayOfMonth:   req.DayOfMonth,
		IsActive:     active,
		AutoGenerate: req.AutoGenerate,
		Notes:        sanitizeInput(req.Notes),
	}
}

type generateRequest struct {
	// Month is "YYYY-MM"; empty selects the current month.
	Month string `json:"month"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTemplateFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.engine.ListTemplates(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Template{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.engine.CreateTemplate(r.Context(), req.template())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/templates/"+t.ID).
		Body(t).
		Write(w)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.engine.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch core.TemplatePatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, r, err)
		return
	}
	if patch.Description != nil {
		v := sanitizeInput(*patch.Description)
		patch.Description = &v
	}
	if patch.Notes != nil {
		v := sanitizeInput(*patch.Notes)
		patch.Notes = &v
	}
	t, err := s.engine.UpdateTemplate(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateOccurrence creates the occurrence of a template for one month.
func (s *Server) handleGenerateOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	var month *core.Month
	if v := strings.TrimSpace(req.Month); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			writeError(w, r, core.NewValidationError("month", err.Error()))
			return
		}
		month = &m
	}

	occ, err := s.engine.GenerateOccurrence(r.Context(), id, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/occurrences/"+occ.ID).
		Body(occ).
		Write(w)
}
