package http

import (
	"net/http"

	"obligations/internal/core"
)

type attachmentRequest struct {
	FileName string `json:"fileName"`
}

type attachmentResponse struct {
	AttachmentID string                  `json:"attachmentId,omitempty"`
	Event        core.DocumentationEvent `json:"event"`
}

type directoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleGetLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.engine.GetLedgerEntry(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleAddAttachment records a document and refreshes the owning
// occurrence, so the first document completes its documentation.
func (s *Server) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req attachmentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	fileName := sanitizeInput(req.FileName)
	if fileName == "" {
		writeError(w, r, core.NewValidationError("fileName", "is required"))
		return
	}

	ctx := r.Context()
	entry, err := s.engine.GetLedgerEntry(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachmentID, err := s.attachments.AddAttachment(ctx, entry.ID, fileName, s.engine.Now())
	if err != nil {
		writeError(w, r, core.Dependency("attachment.add", err))
		return
	}
	ev, err := s.engine.RefreshAttachments(ctx, entry.OccurrenceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachmentResponse{AttachmentID: attachmentID, Event: ev})
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachmentID, err := pathID(r, "attachmentId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	entry, err := s.engine.GetLedgerEntry(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.attachments.RemoveAttachment(ctx, entry.ID, attachmentID); err != nil {
		writeError(w, r, core.Dependency("attachment.remove", err))
		return
	}
	ev, err := s.engine.RefreshAttachments(ctx, entry.OccurrenceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attachmentResponse{Event: ev})
}

// handleSaveDirectoryEntry upserts a category, project or supplier.
func (s *Server) handleSaveDirectoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req directoryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, r, core.NewValidationError("name", "is required"))
		return
	}

	ctx := r.Context()
	var body any
	switch r.PathValue("kind") {
	case "categories":
		c := core.Category{ID: id, Name: name}
		err, body = s.directory.SaveCategory(ctx, c), c
	case "projects":
		p := core.Project{ID: id, Name: name}
		err, body = s.directory.SaveProject(ctx, p), p
	case "suppliers":
		v := core.Supplier{ID: id, Name: name}
		err, body = s.directory.SaveSupplier(ctx, v), v
	default:
		writeError(w, r, core.NotFound("directory.save", "directory", r.PathValue("kind")))
		return
	}
	if err != nil {
		writeError(w, r, core.Dependency("directory.save", err))
		return
	}
	writeJSON(w, http.StatusOK, body)
}
