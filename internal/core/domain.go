package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "EUR"

type (
	// Template is a recurring-expense definition from which one occurrence
	// per calendar month can be generated.
	Template struct {
		ID           string          `json:"id"`
		Description  string          `json:"description" validate:"required,max=200"`
		Amount       decimal.Decimal `json:"amount"`
		Currency     string          `json:"currency" validate:"required,iso4217"`
		CategoryID   string          `json:"categoryId" validate:"required"`
		ProjectID    *string         `json:"projectId"`  // nil means global/unassigned
		SupplierID   *string         `json:"supplierId"` // optional
		DayOfMonth   int             `json:"dayOfMonth" validate:"min=1,max=31"`
		IsActive     bool            `json:"isActive"`
		AutoGenerate bool            `json:"autoGenerate"` // stored, no scheduler reads it
		Notes        string          `json:"notes" validate:"max=1000"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	// TemplatePatch carries a partial update; nil fields are left untouched.
	// ClearProject/ClearSupplier reset the optional references to nil.
	TemplatePatch struct {
		Description   *string          `json:"description,omitempty"`
		Amount        *decimal.Decimal `json:"amount,omitempty"`
		Currency      *string          `json:"currency,omitempty"`
		CategoryID    *string          `json:"categoryId,omitempty"`
		ProjectID     *string          `json:"projectId,omitempty"`
		ClearProject  bool             `json:"clearProject,omitempty"`
		SupplierID    *string          `json:"supplierId,omitempty"`
		ClearSupplier bool             `json:"clearSupplier,omitempty"`
		DayOfMonth    *int             `json:"dayOfMonth,omitempty"`
		IsActive      *bool            `json:"isActive,omitempty"`
		AutoGenerate  *bool            `json:"autoGenerate,omitempty"`
		Notes         *string          `json:"notes,omitempty"`
	}

	TemplateFilter struct {
		ActiveOnly bool
		ProjectID  *string
	}

	// Occurrence is one concrete monthly instance of a template's obligation.
	// (TemplateID, Month) is its natural key.
	Occurrence struct {
		ID             string           `json:"id"`
		TemplateID     string           `json:"templateId"`
		Month          Month            `json:"month"`
		DueDate        Date             `json:"dueDate"`
		AmountExpected decimal.Decimal  `json:"amountExpected"`
		AmountActual   *decimal.Decimal `json:"amountActual"`
		Currency       string           `json:"currency"`
		Status         Status           `json:"status"`
		LedgerEntryID  *string          `json:"ledgerEntryId"`
		PaidAt         *time.Time       `json:"paidAt"`
		CreatedAt      time.Time        `json:"createdAt"`
		UpdatedAt      time.Time        `json:"updatedAt"`
	}

	// LedgerEntry is the general-ledger expense row linked to an occurrence.
	LedgerEntry struct {
		ID              string          `json:"id"`
		OccurrenceID    string          `json:"occurrenceId"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		CategoryID      string          `json:"categoryId"`
		ProjectID       *string         `json:"projectId"`
		SupplierID      *string         `json:"supplierId"`
		Description     string          `json:"description"`
		PaymentStatus   PaymentStatus   `json:"paymentStatus"`
		PaymentDate     *time.Time      `json:"paymentDate"`
		AttachmentCount int             `json:"attachmentCount"`
		CreatedAt       time.Time       `json:"createdAt"`
		UpdatedAt       time.Time       `json:"updatedAt"`
	}

	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Supplier struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

// Normalize trims free-text fields and fills the default currency.
func (t *Template) Normalize() {
	t.Description = strings.TrimSpace(t.Description)
	t.Notes = strings.TrimSpace(t.Notes)
	t.CategoryID = strings.TrimSpace(t.CategoryID)
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	t.ProjectID = trimOptional(t.ProjectID)
	t.SupplierID = trimOptional(t.SupplierID)
}

// Apply returns a copy of t with the patch merged in.
func (t Template) Apply(p TemplatePatch) Template {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	switch {
	case p.ClearProject:
		t.ProjectID = nil
	case p.ProjectID != nil:
		v := *p.ProjectID
		t.ProjectID = &v
	}
	switch {
	case p.ClearSupplier:
		t.SupplierID = nil
	case p.SupplierID != nil:
		v := *p.SupplierID
		t.SupplierID = &v
	}
	if p.DayOfMonth != nil {
		t.DayOfMonth = *p.DayOfMonth
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.AutoGenerate != nil {
		t.AutoGenerate = *p.AutoGenerate
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// NewOccurrence derives the occurrence of t for month m.
func (t Template) NewOccurrence(id string, m Month, now time.Time) Occurrence {
	return Occurrence{
		ID:             id,
		TemplateID:     t.ID,
		Month:          m,
		DueDate:        m.DueDate(t.DayOfMonth),
		AmountExpected: t.Amount,
		Currency:       t.Currency,
		Status:         StatusExpected,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// LedgerDescription is the description given to the ledger entry of an occurrence.
func (t Template) LedgerDescription(m Month) string {
	return t.Description + " " + m.String()
}

// ActualOrExpected returns the paid/reconciled amount when known.
func (o Occurrence) ActualOrExpected() decimal.Decimal {
	if o.AmountActual != nil {
		return *o.AmountActual
	}
	return o.AmountExpected
}

// HasLedgerEntry reports whether the ledger linker already ran for o.
func (o Occurrence) HasLedgerEntry() bool {
	return o.LedgerEntryID != nil && *o.LedgerEntryID != ""
}

// CheckInvariants reports stored data that violates the occurrence invariants.
func (o Occurrence) CheckInvariants() error {
	if !o.Status.Valid() {
		return Inconsistent("occurrence.check", "occurrence %s has unknown status %q", o.ID, o.Status)
	}
	if o.Status == StatusPaid {
		if o.PaidAt == nil {
			return Inconsistent("occurrence.check", "occurrence %s is paid without paidAt", o.ID)
		}
		if o.AmountActual == nil {
			return Inconsistent("occurrence.check", "occurrence %s is paid without amountActual", o.ID)
		}
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
