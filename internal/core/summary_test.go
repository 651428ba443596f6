package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func occ(id string, due Date, status Status, expected string, actual string) Occurrence {
	o := Occurrence{
		ID:             id,
		DueDate:        due,
		Status:         status,
		AmountExpected: decimal.RequireFromString(expected),
		Currency:       "EUR",
	}
	if actual != "" {
		a := decimal.RequireFromString(actual)
		o.AmountActual = &a
		now := time.Now()
		o.PaidAt = &now
	}
	return o
}

func TestComputeSummary(t *testing.T) {
	today := NewDate(2025, 3, 10)
	occurrences := []Occurrence{
		occ("due-past", NewDate(2025, 3, 5), StatusExpected, "150", ""),
		occ("due-today", NewDate(2025, 3, 10), StatusInvoiceMissing, "20", ""),
		occ("future", NewDate(2025, 3, 28), StatusExpected, "9.99", ""),
		occ("future-missing", NewDate(2025, 4, 5), StatusInvoiceMissing, "1", ""),
		occ("paid", NewDate(2025, 3, 1), StatusPaid, "30", "32.50"),
		occ("paid-future", NewDate(2025, 3, 30), StatusPaid, "12", "12"),
	}

	s := ComputeSummary(occurrences, today)

	check := func(name string, b Bucket, count int, amount string) {
		t.Helper()
		if b.Count != count {
			t.Errorf("%s count = %d, want %d", name, b.Count, count)
		}
		if !b.Amount.Equal(decimal.RequireFromString(amount)) {
			t.Errorf("%s amount = %s, want %s", name, b.Amount, amount)
		}
	}
	check("pending", s.Pending, 2, "170")
	check("upcoming", s.Upcoming, 2, "10.99")
	check("paid", s.Paid, 2, "44.50")

	if s.Pending.Count+s.Paid.Count+s.Upcoming.Count != s.Total || s.Total != len(occurrences) {
		t.Fatalf("buckets do not partition the set: %+v", s)
	}
	if !s.Paid.ByCurrency["EUR"].Equal(s.Paid.Amount) {
		t.Errorf("per-currency paid total = %s", s.Paid.ByCurrency["EUR"])
	}
}

func TestComputeSummary_Partition(t *testing.T) {
	statuses := []Status{StatusExpected, StatusInvoiceMissing, StatusPaid}
	today := NewDate(2025, 6, 15)

	var occurrences []Occurrence
	total := decimal.Zero
	for i := 0; i < 60; i++ {
		status := statuses[i%len(statuses)]
		due := NewDate(2025, 6, 1+(i*7)%30)
		amount := decimal.NewFromInt(int64(i + 1))
		actual := ""
		if status == StatusPaid {
			actual = amount.Add(decimal.NewFromFloat(0.5)).String()
			total = total.Add(amount.Add(decimal.NewFromFloat(0.5)))
		} else {
			total = total.Add(amount)
		}
		occurrences = append(occurrences, occ("o", due, status, amount.String(), actual))
	}

	s := ComputeSummary(occurrences, today)
	if got := s.Pending.Count + s.Paid.Count + s.Upcoming.Count; got != len(occurrences) {
		t.Fatalf("count partition = %d, want %d", got, len(occurrences))
	}
	sum := s.Pending.Amount.Add(s.Paid.Amount).Add(s.Upcoming.Amount)
	if !sum.Equal(total) {
		t.Fatalf("amount partition = %s, want %s", sum, total)
	}
}

func TestComputeSummary_Empty(t *testing.T) {
	s := ComputeSummary(nil, NewDate(2025, 1, 1))
	if s.Total != 0 || !s.Pending.Amount.IsZero() || s.Paid.ByCurrency == nil {
		t.Fatalf("unexpected empty summary: %+v", s)
	}
}
