package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"obligations/internal/core"
	"obligations/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the body into v. Unknown fields and
// trailing data are rejected. An empty body leaves v unchanged when
// allowEmpty is set and is an error otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return badRequest("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		// Field-level decode failures (bad month, bad amount) are input errors.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return core.NewValidationError(typeErr.Field, "invalid value")
		}
		return badRequest("malformed JSON body: " + err.Error())
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// pathID returns the named path value, sanitized.
func pathID(r *http.Request, name string) (string, error) {
	id := sanitizeInput(r.PathValue(name))
	if id == "" {
		return "", badRequest("missing " + name)
	}
	return id, nil
}

// ParseOccurrenceQuery reads the templateId, status and month filters.
func ParseOccurrenceQuery(query url.Values) (services.OccurrenceQuery, error) {
	q := services.OccurrenceQuery{
		TemplateID: sanitizeInput(query.Get("templateId")),
	}
	verr := &core.ValidationError{}

	if v := strings.TrimSpace(query.Get("status")); v != "" {
		status := core.Status(v)
		if !status.Valid() {
			verr.Add("status", fmt.Sprintf("unknown status %q", v))
		}
		q.Status = status
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			verr.Add("month", err.Error())
		} else {
			q.Month = &m
		}
	}
	return q, verr.OrNil()
}

// ParseTemplateFilter reads the active and projectId filters.
func ParseTemplateFilter(query url.Values) (core.TemplateFilter, error) {
	var f core.TemplateFilter
	if v := strings.TrimSpace(query.Get("active")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return f, core.NewValidationError("active", "must be a boolean")
		}
		f.ActiveOnly = active
	}
	if v := sanitizeInput(query.Get("projectId")); v != "" {
		f.ProjectID = &v
	}
	return f, nil
}
