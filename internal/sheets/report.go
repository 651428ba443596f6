package sheets

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"obligations/internal/core"
	"obligations/internal/services"
)

// Header is the first row of the occurrence table.
var Header = []any{"Due date", "Description", "Status", "Expected", "Actual", "Currency", "Paid at", "Ledger entry"}

// Report is a rendered month, ready to be written to a sheet.
type Report struct {
	Sheet       string
	Month       core.Month
	Rows        [][]any
	Occurrences int
	Summary     core.Summary
}

// Build renders the occurrences of month m followed by the KPI summary.
func Build(ctx context.Context, src Source, base string, m core.Month) (Report, error) {
	q := services.OccurrenceQuery{Month: &m}
	occurrences, err := src.ListOccurrences(ctx, q)
	if err != nil {
		return Report{}, fmt.Errorf("list occurrences: %w", err)
	}
	templates, err := src.ListTemplates(ctx, core.TemplateFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list templates: %w", err)
	}
	summary, err := src.ComputeSummary(ctx, q)
	if err != nil {
		return Report{}, fmt.Errorf("compute summary: %w", err)
	}

	names := make(map[string]string, len(templates))
	for _, t := range templates {
		names[t.ID] = t.Description
	}
	return Report{
		Sheet:       SheetName(base, m),
		Month:       m,
		Rows:        renderRows(occurrences, names, summary),
		Occurrences: len(occurrences),
		Summary:     summary,
	}, nil
}

// Export builds the month report and writes it through dst.
func Export(ctx context.Context, src Source, dst Reporter, base string, m core.Month) (Report, error) {
	r, err := Build(ctx, src, base, m)
	if err != nil {
		return Report{}, err
	}
	if err := dst.WriteSheet(ctx, r.Sheet, r.Rows); err != nil {
		return Report{}, fmt.Errorf("write sheet %s: %w", r.Sheet, err)
	}
	return r, nil
}

// SheetName returns "<YYYY-MM> <base>" unless base already starts with a month key.
func SheetName(base string, m core.Month) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return m.String()
	}
	if len(base) >= 8 && base[7] == ' ' {
		if _, err := core.ParseMonth(base[:7]); err == nil {
			return base
		}
	}
	return m.String() + " " + base
}

func renderRows(occurrences []core.Occurrence, names map[string]string, s core.Summary) [][]any {
	sorted := append([]core.Occurrence(nil), occurrences...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate.Time) {
			return sorted[i].DueDate.Before(sorted[j].DueDate.Time)
		}
		return names[sorted[i].TemplateID] < names[sorted[j].TemplateID]
	})

	rows := make([][]any, 0, len(sorted)+8)
	rows = append(rows, Header)
	for _, o := range sorted {
		desc, ok := names[o.TemplateID]
		if !ok {
			desc = "(deleted template " + o.TemplateID + ")"
		}
		actual := ""
		if o.AmountActual != nil {
			actual = o.AmountActual.StringFixed(2)
		}
		paidAt := ""
		if o.PaidAt != nil {
			paidAt = core.DateOf(*o.PaidAt).String()
		}
		ledger := ""
		if o.LedgerEntryID != nil {
			ledger = *o.LedgerEntryID
		}
		rows = append(rows, []any{
			o.DueDate.String(), desc, string(o.Status),
			o.AmountExpected.StringFixed(2), actual, o.Currency, paidAt, ledger,
		})
	}

	currencies := summaryCurrencies(s)
	summaryHeader := []any{"Bucket", "Count"}
	for _, c := range currencies {
		summaryHeader = append(summaryHeader, c)
	}
	rows = append(rows, []any{}, summaryHeader)
	for _, b := range []struct {
		label  string
		bucket core.Bucket
	}{
		{"Pending", s.Pending},
		{"Paid", s.Paid},
		{"Upcoming", s.Upcoming},
	} {
		row := []any{b.label, strconv.Itoa(b.bucket.Count)}
		for _, c := range currencies {
			row = append(row, b.bucket.ByCurrency[c].StringFixed(2))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []any{"Total", strconv.Itoa(s.Total)})
	return rows
}

func summaryCurrencies(s core.Summary) []string {
	seen := map[string]struct{}{}
	for _, b := range []core.Bucket{s.Pending, s.Paid, s.Upcoming} {
		for c := range b.ByCurrency {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	if len(out) == 0 {
		out = append(out, core.DefaultCurrency)
	}
	return out
}
