package core

// Status is the lifecycle state of an occurrence.
type Status string

const (
	StatusExpected       Status = "expected"
	StatusInvoiceMissing Status = "invoice_missing"
	StatusPaid           Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusExpected, StatusInvoiceMissing, StatusPaid:
		return true
	}
	return false
}

// Open reports whether the occurrence still awaits payment.
func (s Status) Open() bool {
	return s == StatusExpected || s == StatusInvoiceMissing
}

// transitions lists the moves the normal flow allows. Paid is terminal.
var transitions = map[Status][]Status{
	StatusExpected:       {StatusInvoiceMissing, StatusPaid},
	StatusInvoiceMissing: {StatusExpected, StatusPaid},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state of a ledger entry.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentPartial:
		return true
	}
	return false
}
