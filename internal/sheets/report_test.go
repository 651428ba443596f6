package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"obligations/internal/core"
	"obligations/internal/services"
	"obligations/internal/sheets/memory"
)

type fakeSource struct {
	occurrences []core.Occurrence
	templates   []core.Template
	listErr     error
	lastQuery   services.OccurrenceQuery
}

func (f *fakeSource) ListOccurrences(_ context.Context, q services.OccurrenceQuery) ([]core.Occurrence, error) {
	f.lastQuery = q
	return f.occurrences, f.listErr
}

func (f *fakeSource) ListTemplates(context.Context, core.TemplateFilter) ([]core.Template, error) {
	return f.templates, nil
}

func (f *fakeSource) ComputeSummary(context.Context, services.OccurrenceQuery) (core.Summary, error) {
	return core.ComputeSummary(f.occurrences, core.NewDate(2025, 3, 10)), nil
}

func march() core.Month { return core.NewMonth(2025, time.March) }

func sampleSource() *fakeSource {
	paidAt := time.Date(2025, 3, 2, 15, 0, 0, 0, time.UTC)
	actual := decimal.RequireFromString("148.3")
	ledger := "led-1"
	return &fakeSource{
		templates: []core.Template{
			{ID: "tpl-rent", Description: "Rent"},
			{ID: "tpl-gestoria", Description: "Gestoria"},
		},
		occurrences: []core.Occurrence{
			{
				ID: "o-2", TemplateID: "tpl-rent", Month: march(),
				DueDate: core.NewDate(2025, 3, 31), AmountExpected: decimal.RequireFromString("900"),
				Currency: "EUR", Status: core.StatusExpected,
			},
			{
				ID: "o-1", TemplateID: "tpl-gestoria", Month: march(),
				DueDate: core.NewDate(2025, 3, 1), AmountExpected: decimal.RequireFromString("150"),
				AmountActual: &actual, Currency: "EUR", Status: core.StatusPaid,
				PaidAt: &paidAt, LedgerEntryID: &ledger,
			},
			{
				ID: "o-3", TemplateID: "tpl-gone", Month: march(),
				DueDate: core.NewDate(2025, 3, 5), AmountExpected: decimal.RequireFromString("20"),
				Currency: "USD", Status: core.StatusInvoiceMissing,
			},
		},
	}
}

func TestBuild(t *testing.T) {
	src := sampleSource()
	r, err := Build(context.Background(), src, "Obligations", march())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Sheet != "2025-03 Obligations" {
		t.Fatalf("sheet = %q", r.Sheet)
	}
	if src.lastQuery.Month == nil || !src.lastQuery.Month.Equal(march().Time) {
		t.Fatalf("query not scoped to month: %+v", src.lastQuery)
	}
	if r.Occurrences != 3 {
		t.Fatalf("occurrences = %d", r.Occurrences)
	}

	// Occurrence rows sorted by due date.
	wantFirst := []any{"2025-03-01", "Gestoria", "paid", "150.00", "148.30", "EUR", "2025-03-02", "led-1"}
	for i, v := range wantFirst {
		if r.Rows[1][i] != v {
			t.Fatalf("row 1 col %d = %v, want %v (row %v)", i, r.Rows[1][i], v, r.Rows[1])
		}
	}
	if r.Rows[2][1] != "(deleted template tpl-gone)" {
		t.Fatalf("deleted template row: %v", r.Rows[2])
	}
	if r.Rows[3][1] != "Rent" || r.Rows[3][4] != "" {
		t.Fatalf("rent row: %v", r.Rows[3])
	}

	// Blank separator, then summary header with one column per currency.
	if len(r.Rows[4]) != 0 {
		t.Fatalf("expected separator row, got %v", r.Rows[4])
	}
	header := r.Rows[5]
	if len(header) != 4 || header[2] != "EUR" || header[3] != "USD" {
		t.Fatalf("summary header: %v", header)
	}
	tests := []struct {
		row  int
		want []any
	}{
		{6, []any{"Pending", "1", "0.00", "20.00"}},
		{7, []any{"Paid", "1", "148.30", "0.00"}},
		{8, []any{"Upcoming", "1", "900.00", "0.00"}},
		{9, []any{"Total", "3"}},
	}
	for _, tt := range tests {
		got := r.Rows[tt.row]
		if len(got) != len(tt.want) {
			t.Fatalf("row %d = %v, want %v", tt.row, got, tt.want)
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Fatalf("row %d = %v, want %v", tt.row, got, tt.want)
			}
		}
	}
}

func TestBuildEmptyMonth(t *testing.T) {
	r, err := Build(context.Background(), &fakeSource{}, "Obligations", march())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Header, separator, summary header, three buckets, total.
	if len(r.Rows) != 7 {
		t.Fatalf("rows = %d: %v", len(r.Rows), r.Rows)
	}
	if r.Rows[2][2] != core.DefaultCurrency {
		t.Fatalf("expected default currency column, got %v", r.Rows[2])
	}
}

func TestExportWritesSheet(t *testing.T) {
	dst := memory.New()
	r, err := Export(context.Background(), sampleSource(), dst, "Obligations", march())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	rows, ok := dst.Sheet(r.Sheet)
	if !ok || len(rows) != len(r.Rows) {
		t.Fatalf("sheet not written: %v", dst.Names())
	}
}

func TestExportPropagatesSourceError(t *testing.T) {
	boom := errors.New("store down")
	_, err := Export(context.Background(), &fakeSource{listErr: boom}, memory.New(), "Obligations", march())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Obligations", "2025-03 Obligations"},
		{"  Obligations  ", "2025-03 Obligations"},
		{"2024-12 Archive", "2024-12 Archive"},
		{"", "2025-03"},
		{"2025 Budget", "2025-03 2025 Budget"},
	}
	for _, tt := range tests {
		if got := SheetName(tt.base, march()); got != tt.want {
			t.Errorf("SheetName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
