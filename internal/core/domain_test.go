package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTemplate() Template {
	return Template{
		Description: "Gestoria",
		Amount:      decimal.NewFromInt(150),
		Currency:    "EUR",
		CategoryID:  "cat-services",
		DayOfMonth:  5,
		IsActive:    true,
	}
}

func TestTemplateValidate(t *testing.T) {
	good := validTemplate()
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Template)
		field  string
	}{
		{"empty description", func(tp *Template) { tp.Description = "" }, "description"},
		{"long description", func(tp *Template) { tp.Description = strings.Repeat("a", 201) }, "description"},
		{"zero amount", func(tp *Template) { tp.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(tp *Template) { tp.Amount = decimal.NewFromInt(-3) }, "amount"},
		{"day zero", func(tp *Template) { tp.DayOfMonth = 0 }, "dayOfMonth"},
		{"day 32", func(tp *Template) { tp.DayOfMonth = 32 }, "dayOfMonth"},
		{"missing category", func(tp *Template) { tp.CategoryID = "" }, "categoryId"},
		{"bad currency", func(tp *Template) { tp.Currency = "EURO" }, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := validTemplate()
			tt.mutate(&tp)
			err := tp.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected field %q in %v", tt.field, verr.Fields)
			}
		})
	}
}

func TestTemplateNormalize(t *testing.T) {
	project := "  "
	tp := Template{Description: "  ChatGPT Plus ", Currency: " usd", ProjectID: &project}
	tp.Normalize()
	if tp.Description != "ChatGPT Plus" {
		t.Errorf("description = %q", tp.Description)
	}
	if tp.Currency != "USD" {
		t.Errorf("currency = %q", tp.Currency)
	}
	if tp.ProjectID != nil {
		t.Errorf("blank project should become nil")
	}

	empty := Template{}
	empty.Normalize()
	if empty.Currency != DefaultCurrency {
		t.Errorf("default currency = %q", empty.Currency)
	}
}

func TestTemplateApply(t *testing.T) {
	project := "proj-1"
	base := validTemplate()
	base.ProjectID = &project

	day := 31
	amount := decimal.RequireFromString("20.50")
	got := base.Apply(TemplatePatch{DayOfMonth: &day, Amount: &amount, ClearProject: true})

	if got.DayOfMonth != 31 || !got.Amount.Equal(amount) {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.ProjectID != nil {
		t.Fatalf("project should be cleared")
	}
	if base.DayOfMonth != 5 {
		t.Fatalf("base template mutated")
	}
}

func TestTemplateNewOccurrence(t *testing.T) {
	tp := validTemplate()
	tp.ID = "tpl-1"
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	o := tp.NewOccurrence("occ-1", NewMonth(2025, time.March), now)

	if o.DueDate.String() != "2025-03-05" {
		t.Errorf("due date = %s", o.DueDate)
	}
	if o.Status != StatusExpected || o.AmountActual != nil || o.LedgerEntryID != nil {
		t.Errorf("unexpected initial state: %+v", o)
	}
	if !o.AmountExpected.Equal(decimal.NewFromInt(150)) {
		t.Errorf("amount expected = %s", o.AmountExpected)
	}
}

func TestOccurrenceCheckInvariants(t *testing.T) {
	now := time.Now()
	amount := decimal.NewFromInt(10)

	cases := []struct {
		name string
		o    Occurrence
		ok   bool
	}{
		{"expected", Occurrence{Status: StatusExpected}, true},
		{"paid complete", Occurrence{Status: StatusPaid, PaidAt: &now, AmountActual: &amount}, true},
		{"paid without paidAt", Occurrence{Status: StatusPaid, AmountActual: &amount}, false},
		{"paid without amount", Occurrence{Status: StatusPaid, PaidAt: &now}, false},
		{"unknown status", Occurrence{Status: "void"}, false},
	}
	for _, tc := range cases {
		err := tc.o.CheckInvariants()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInconsistentState) {
			t.Fatalf("%s: expected inconsistent state, got %v", tc.name, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusExpected, StatusInvoiceMissing, true},
		{StatusInvoiceMissing, StatusExpected, true},
		{StatusExpected, StatusPaid, true},
		{StatusInvoiceMissing, StatusPaid, true},
		{StatusPaid, StatusExpected, false},
		{StatusPaid, StatusInvoiceMissing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
