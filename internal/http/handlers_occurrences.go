package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"obligations/internal/core"
)

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type documentationResponse struct {
	LedgerEntryID string          `json:"ledgerEntryId"`
	Occurrence    core.Occurrence `json:"occurrence"`
}

func (s *Server) handleListOccurrences(w http.ResponseWriter, r *http.Request) {
	q, err := ParseOccurrenceQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.engine.ListOccurrences(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Occurrence{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	occ, err := s.engine.GetOccurrence(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

// handleBeginDocumentation links a ledger entry and moves the occurrence to
// invoice_missing. Repeating the call returns the same entry.
func (s *Server) handleBeginDocumentation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ledgerID, err := s.engine.BeginDocumentation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	occ, err := s.engine.GetOccurrence(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentationResponse{LedgerEntryID: ledgerID, Occurrence: occ})
}

func (s *Server) handleRefreshAttachments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := s.engine.RefreshAttachments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleMarkAsPaid accepts an optional amount; without one the reconciled
// or expected amount is used.
func (s *Server) handleMarkAsPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	occ, err := s.engine.MarkAsPaid(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, core.NewValidationError("amount", "is required"))
		return
	}
	occ, err := s.engine.ReconcileAmount(r.Context(), id, *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q, err := ParseOccurrenceQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.engine.ComputeSummary(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
