package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const testSpreadsheet = "sheet-id"

// fakeSheets emulates the handful of Sheets v4 endpoints the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  []string
	updated  map[string][][]any
	inputOpt string
	failGet  bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	base := "/v4/spreadsheets/" + testSpreadsheet
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == base:
		if f.failGet {
			http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
			return
		}
		ss := gsheet.Spreadsheet{}
		for _, t := range f.titles {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(ss)
	case r.Method == http.MethodPost && path == base+":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(strings.TrimPrefix(path, base+"/values/"), ":clear")
		f.cleared = append(f.cleared, rng)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.HasPrefix(path, base+"/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rng := strings.TrimPrefix(path, base+"/values/")
		values := make([][]any, len(vr.Values))
		for i, row := range vr.Values {
			values[i] = append([]any(nil), row...)
		}
		f.updated[rng] = values
		f.inputOpt = r.URL.Query().Get("valueInputOption")
		_, _ = w.Write([]byte(`{"updatedCells":4}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	if f.updated == nil {
		f.updated = map[string][][]any{}
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), testSpreadsheet,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestWriteSheet_CreatesMissingSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{"Other"}}
	c := newTestClient(t, f)

	rows := [][]any{{"Due date", "Description"}, {"2025-03-01", "Gestoria"}}
	if err := c.WriteSheet(context.Background(), "2025-03 Obligations", rows); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}

	if len(f.added) != 1 || f.added[0] != "2025-03 Obligations" {
		t.Fatalf("added sheets = %v", f.added)
	}
	if len(f.cleared) != 0 {
		t.Fatalf("a new sheet should not be cleared, got %v", f.cleared)
	}
	got, ok := f.updated["'2025-03 Obligations'!A1"]
	if !ok {
		t.Fatalf("no update for sheet, updates: %v", f.updated)
	}
	if len(got) != 2 || got[1][1] != "Gestoria" {
		t.Fatalf("written values = %v", got)
	}
	if f.inputOpt != "RAW" {
		t.Fatalf("valueInputOption = %q", f.inputOpt)
	}
}

func TestWriteSheet_ClearsExistingSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{"2025-03 Obligations"}}
	c := newTestClient(t, f)

	if err := c.WriteSheet(context.Background(), "2025-03 Obligations", [][]any{{"Total", "0"}}); err != nil {
		t.Fatalf("WriteSheet: %v", err)
	}
	if len(f.added) != 0 {
		t.Fatalf("existing sheet re-added: %v", f.added)
	}
	if len(f.cleared) != 1 || f.cleared[0] != "'2025-03 Obligations'" {
		t.Fatalf("cleared = %v", f.cleared)
	}
}

func TestWriteSheet_Errors(t *testing.T) {
	f := &fakeSheets{failGet: true}
	c := newTestClient(t, f)
	if err := c.WriteSheet(context.Background(), "S", nil); err == nil || !strings.Contains(err.Error(), "read spreadsheet") {
		t.Fatalf("expected read error, got %v", err)
	}
	if err := c.WriteSheet(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank sheet name")
	}
	if err := (&Client{}).WriteSheet(context.Background(), "S", nil); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), " "); err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"Obligations":   "'Obligations'",
		"Mario's bills": "'Mario''s bills'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}

const testClientJSON = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",` +
	`"redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth",` +
	`"token_uri":"https://oauth2.googleapis.com/token"}}`

func TestUserToken(t *testing.T) {
	ctx := context.Background()
	if _, err := UserToken(ctx, []byte(testClientJSON), []byte(`{"access_token":"a","refresh_token":"r"}`)); err != nil {
		t.Fatalf("UserToken: %v", err)
	}

	tests := []struct {
		name   string
		client string
		token  string
		want   string
	}{
		{"invalid client", "invalid-json", `{"access_token":"a"}`, "oauth config"},
		{"invalid token", testClientJSON, "nope", "oauth token"},
		{"empty token", testClientJSON, `{}`, "no access or refresh token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UserToken(ctx, []byte(tt.client), []byte(tt.token))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

func TestOAuthConfigScope(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testClientJSON))
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != gsheet.SpreadsheetsScope {
		t.Fatalf("scopes = %v", cfg.Scopes)
	}
}
