package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"obligations/internal/core"
	"obligations/internal/services"
	"obligations/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New()
	engine := services.NewEngine(store, store, store, services.Options{Clock: core.FixedClock(testNow)})
	if opts.Attachments == nil {
		opts.Attachments = store
	}
	if opts.Directory == nil {
		opts.Directory = store
	}
	srv := NewServer(":0", engine, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rr.Code, want, rr.Body.String())
	}
}

func TestObligationLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/api/v1/directory/categories/utilities", `{"name":"Utilities"}`)
	expectStatus(t, rr, http.StatusOK)

	rr = do(t, srv, http.MethodPost, "/api/v1/templates",
		`{"description":" Rent ","amount":"1200.00","currency":"eur","categoryId":"utilities","dayOfMonth":31}`)
	expectStatus(t, rr, http.StatusCreated)
	tpl := decode[core.Template](t, rr)
	if !tpl.IsActive || tpl.Description != "Rent" || tpl.Currency != "EUR" {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/templates/"+tpl.ID {
		t.Fatalf("Location = %q", loc)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/templates/"+tpl.ID+"/occurrences", `{"month":"2025-02"}`)
	expectStatus(t, rr, http.StatusCreated)
	occ := decode[core.Occurrence](t, rr)
	if occ.DueDate.String() != "2025-02-28" || occ.Status != core.StatusExpected {
		t.Fatalf("unexpected occurrence: %+v", occ)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/templates/"+tpl.ID+"/occurrences", `{"month":"2025-02"}`)
	expectStatus(t, rr, http.StatusConflict)
	if body := decode[ErrorBody](t, rr); body.Error.Code != "duplicate_occurrence" || body.Error.RequestID == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/occurrences/"+occ.ID+"/documentation", "")
	expectStatus(t, rr, http.StatusOK)
	doc := decode[documentationResponse](t, rr)
	if doc.LedgerEntryID == "" || doc.Occurrence.Status != core.StatusInvoiceMissing {
		t.Fatalf("unexpected documentation response: %+v", doc)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/ledger/"+doc.LedgerEntryID+"/attachments", `{"fileName":"invoice.pdf"}`)
	expectStatus(t, rr, http.StatusCreated)
	att := decode[attachmentResponse](t, rr)
	if att.AttachmentID == "" || !att.Event.Attached() {
		t.Fatalf("unexpected attachment response: %+v", att)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/occurrences/"+occ.ID, "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[core.Occurrence](t, rr); got.Status != core.StatusExpected {
		t.Fatalf("status after first document = %s, want expected", got.Status)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/occurrences/"+occ.ID+"/pay", "")
	expectStatus(t, rr, http.StatusOK)
	paid := decode[core.Occurrence](t, rr)
	if paid.Status != core.StatusPaid || paid.AmountActual == nil || paid.AmountActual.String() != "1200" {
		t.Fatalf("unexpected paid occurrence: %+v", paid)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/ledger/"+doc.LedgerEntryID, "")
	expectStatus(t, rr, http.StatusOK)
	if entry := decode[core.LedgerEntry](t, rr); entry.PaymentStatus != core.PaymentPaid || entry.AttachmentCount != 1 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/summary?month=2025-02", "")
	expectStatus(t, rr, http.StatusOK)
	if s := decode[core.Summary](t, rr); s.Paid.Count != 1 || s.Total != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/occurrences?status=paid&templateId="+tpl.ID, "")
	expectStatus(t, rr, http.StatusOK)
	if list := decode[[]core.Occurrence](t, rr); len(list) != 1 {
		t.Fatalf("listed %d occurrences, want 1", len(list))
	}
}

func TestRemoveAttachmentIsScopedToLedgerEntry(t *testing.T) {
	srv := newTestServer(t, Options{})

	expectStatus(t, do(t, srv, http.MethodPut, "/api/v1/directory/categories/utilities", `{"name":"Utilities"}`), http.StatusOK)
	rr := do(t, srv, http.MethodPost, "/api/v1/templates",
		`{"description":"Rent","amount":"1200.00","categoryId":"utilities","dayOfMonth":5}`)
	expectStatus(t, rr, http.StatusCreated)
	tpl := decode[core.Template](t, rr)

	ledger := func(month string) string {
		t.Helper()
		rr := do(t, srv, http.MethodPost, "/api/v1/templates/"+tpl.ID+"/occurrences", `{"month":"`+month+`"}`)
		expectStatus(t, rr, http.StatusCreated)
		occ := decode[core.Occurrence](t, rr)
		rr = do(t, srv, http.MethodPost, "/api/v1/occurrences/"+occ.ID+"/documentation", "")
		expectStatus(t, rr, http.StatusOK)
		return decode[documentationResponse](t, rr).LedgerEntryID
	}
	ledgerA, ledgerB := ledger("2025-01"), ledger("2025-02")

	rr = do(t, srv, http.MethodPost, "/api/v1/ledger/"+ledgerB+"/attachments", `{"fileName":"invoice.pdf"}`)
	expectStatus(t, rr, http.StatusCreated)
	attB := decode[attachmentResponse](t, rr).AttachmentID

	rr = do(t, srv, http.MethodDelete, "/api/v1/ledger/"+ledgerA+"/attachments/"+attB, "")
	expectStatus(t, rr, http.StatusNotFound)

	rr = do(t, srv, http.MethodGet, "/api/v1/ledger/"+ledgerB, "")
	expectStatus(t, rr, http.StatusOK)
	if entry := decode[core.LedgerEntry](t, rr); entry.AttachmentCount != 1 {
		t.Fatalf("ledger B attachment count = %d, want 1", entry.AttachmentCount)
	}

	rr = do(t, srv, http.MethodDelete, "/api/v1/ledger/"+ledgerB+"/attachments/"+attB, "")
	expectStatus(t, rr, http.StatusOK)
	if ev := decode[attachmentResponse](t, rr).Event; !ev.Removed() || ev.LedgerEntryID != ledgerB {
		t.Fatalf("unexpected removal event: %+v", ev)
	}
}

func TestGenerateDefaultsToCurrentMonth(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodPut, "/api/v1/directory/categories/home", `{"name":"Home"}`)
	rr := do(t, srv, http.MethodPost, "/api/v1/templates",
		`{"description":"Internet","amount":29.9,"categoryId":"home","dayOfMonth":5,"isActive":false}`)
	expectStatus(t, rr, http.StatusCreated)
	tpl := decode[core.Template](t, rr)
	if tpl.IsActive {
		t.Fatal("explicit isActive=false must be kept")
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/templates/"+tpl.ID+"/occurrences", "")
	expectStatus(t, rr, http.StatusCreated)
	if occ := decode[core.Occurrence](t, rr); occ.Month.String() != "2025-03" {
		t.Fatalf("month = %s, want 2025-03", occ.Month)
	}
}

func TestTemplateUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodPut, "/api/v1/directory/categories/home", `{"name":"Home"}`)
	rr := do(t, srv, http.MethodPost, "/api/v1/templates",
		`{"description":"Gym","amount":"40","categoryId":"home","dayOfMonth":1}`)
	tpl := decode[core.Template](t, rr)

	rr = do(t, srv, http.MethodPatch, "/api/v1/templates/"+tpl.ID, `{"dayOfMonth":15,"notes":" monthly "}`)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[core.Template](t, rr); got.DayOfMonth != 15 || got.Notes != "monthly" || got.Description != "Gym" {
		t.Fatalf("unexpected update: %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/templates?active=true", "")
	expectStatus(t, rr, http.StatusOK)
	if list := decode[[]core.Template](t, rr); len(list) != 1 {
		t.Fatalf("listed %d templates, want 1", len(list))
	}

	expectStatus(t, do(t, srv, http.MethodDelete, "/api/v1/templates/"+tpl.ID, ""), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/v1/templates/"+tpl.ID, ""), http.StatusNotFound)
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		want     int
		wantCode string
	}{
		{"unknown template", http.MethodGet, "/api/v1/templates/missing", "", http.StatusNotFound, "not_found"},
		{"invalid template", http.MethodPost, "/api/v1/templates", `{"description":"x","amount":"0","categoryId":"c","dayOfMonth":1}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"malformed json", http.MethodPost, "/api/v1/templates", `{"description":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/api/v1/templates", `{"descr":"x"}`, http.StatusBadRequest, "bad_request"},
		{"empty body", http.MethodPost, "/api/v1/templates", "", http.StatusBadRequest, "bad_request"},
		{"bad status filter", http.MethodGet, "/api/v1/occurrences?status=overdue", "", http.StatusUnprocessableEntity, "validation_failed"},
		{"bad month filter", http.MethodGet, "/api/v1/summary?month=2025-13", "", http.StatusUnprocessableEntity, "validation_failed"},
		{"bad active filter", http.MethodGet, "/api/v1/templates?active=maybe", "", http.StatusUnprocessableEntity, "validation_failed"},
		{"bad generate month", http.MethodPost, "/api/v1/templates/x/occurrences", `{"month":"March"}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"generate unknown template", http.MethodPost, "/api/v1/templates/x/occurrences", "", http.StatusNotFound, "not_found"},
		{"reconcile without amount", http.MethodPost, "/api/v1/occurrences/x/reconcile", `{}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"pay unknown occurrence", http.MethodPost, "/api/v1/occurrences/x/pay", "", http.StatusNotFound, "not_found"},
		{"attachment without name", http.MethodPost, "/api/v1/ledger/x/attachments", `{"fileName":" "}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"attachment unknown entry", http.MethodPost, "/api/v1/ledger/x/attachments", `{"fileName":"a.pdf"}`, http.StatusNotFound, "not_found"},
		{"unknown directory kind", http.MethodPut, "/api/v1/directory/vendors/x", `{"name":"X"}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			expectStatus(t, rr, tt.want)
			if body := decode[ErrorBody](t, rr); body.Error.Code != tt.wantCode {
				t.Fatalf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/v1/templates", `{"description":"x","amount":"-5","categoryId":"c","dayOfMonth":40}`)
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	fields := map[string]bool{}
	for _, f := range decode[ErrorBody](t, rr).Error.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"amount", "dayOfMonth"} {
		if !fields[want] {
			t.Errorf("fields %v missing %q", fields, want)
		}
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err        error
		want       int
		retryAfter bool
	}{
		{core.NewValidationError("x", "bad"), http.StatusUnprocessableEntity, false},
		{core.Duplicate("op", "tpl", core.NewMonth(2025, time.January)), http.StatusConflict, false},
		{core.NotFound("op", "occurrence", "x"), http.StatusNotFound, false},
		{core.Inconsistent("op", "ledger entry %s belongs elsewhere", "le"), http.StatusConflict, false},
		{core.Dependency("op", errors.New("database is locked")), http.StatusServiceUnavailable, true},
		{errors.New("boom"), http.StatusInternalServerError, false},
		{badRequest("nope"), http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		FromError(tt.err).Write(rr)
		if rr.Code != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, rr.Code, tt.want)
		}
		if got := rr.Header().Get("Retry-After") != ""; got != tt.retryAfter {
			t.Errorf("%v: Retry-After present = %v", tt.err, got)
		}
	}

	rr := httptest.NewRecorder()
	FromError(errors.New("secret dsn in message")).Write(rr)
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("internal error leaked: %s", rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{ReadyChecks: map[string]ReadyCheck{
		"amqp": func(context.Context) error { return errors.New("connection refused") },
	}})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing middleware headers: %v", rr.Header())
	}

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	expectStatus(t, rr, http.StatusServiceUnavailable)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rr)
	if body.Status != "not_ready" || body.Checks["store"] != "ok" || !strings.HasPrefix(body.Checks["amqp"], "failed") {
		t.Fatalf("unexpected readiness: %+v", body)
	}

	if m := srv.Metrics(); m.TotalRequests != 2 || m.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	expectStatus(t, do(t, srv, http.MethodGet, "/healthz", ""), http.StatusOK)
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	expectStatus(t, rr, http.StatusTooManyRequests)
	if body := decode[ErrorBody](t, rr); body.Error.Code != "rate_limited" {
		t.Fatalf("error code = %q", body.Error.Code)
	}
}

func TestOptionalRoutesAbsent(t *testing.T) {
	store := memory.New()
	engine := services.NewEngine(store, store, store, services.Options{Clock: core.FixedClock(testNow)})
	srv := NewServer(":0", engine, Options{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/directory/categories/x", strings.NewReader(`{"name":"X"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a directory writer", rr.Code)
	}
}
