package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"obligations/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.NewValidationError("amount", "bad"), "validation"},
		{core.Duplicate("op", "tpl", core.NewMonth(2025, 3)), "duplicate_occurrence"},
		{core.NotFound("op", "template", "x"), "not_found"},
		{core.Inconsistent("op", "broken"), "inconsistent_state"},
		{core.Dependency("op", errors.New("io")), "dependency_failure"},
		{errors.New("plain"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWithOccurrenceFields(t *testing.T) {
	le := "le-1"
	f := NewFields().WithOccurrence(core.Occurrence{
		ID:            "occ-1",
		TemplateID:    "tpl-1",
		Month:         core.NewMonth(2025, 3),
		Status:        core.StatusInvoiceMissing,
		LedgerEntryID: &le,
	})
	if f[FieldMonth] != "2025-03" || f[FieldStatus] != "invoice_missing" || f[FieldLedgerEntryID] != "le-1" {
		t.Fatalf("unexpected fields: %v", f)
	}
}

func TestMiddlewareCarriesLoggerAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf, Component: ComponentHTTP})

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithContext(r.Context(), FromContext(r.Context()).With(FieldRequestID, "req-42"))
		LogHTTPEnd(ctx, r, http.StatusNotFound, 3)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/occurrences/x", nil))

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "component=http", "status_code=404", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}
}
