package core

import "github.com/shopspring/decimal"

// BucketKind names a KPI bucket.
type BucketKind string

const (
	BucketPending  BucketKind = "pending"
	BucketPaid     BucketKind = "paid"
	BucketUpcoming BucketKind = "upcoming"
)

// Bucket aggregates the occurrences classified into one KPI bucket.
type Bucket struct {
	Count      int                        `json:"count"`
	Amount     decimal.Decimal            `json:"amount"`
	ByCurrency map[string]decimal.Decimal `json:"byCurrency"`
}

// Summary partitions a set of occurrences into pending, paid and upcoming.
type Summary struct {
	Pending  Bucket `json:"pending"`
	Paid     Bucket `json:"paid"`
	Upcoming Bucket `json:"upcoming"`
	Total    int    `json:"total"`
}

// Classify places o in exactly one bucket relative to today.
func Classify(o Occurrence, today Date) BucketKind {
	switch {
	case o.Status == StatusPaid:
		return BucketPaid
	case o.DueDate.After(today.Time):
		return BucketUpcoming
	default:
		return BucketPending
	}
}

// ComputeSummary aggregates occurrences. Paid sums the actual amount, the
// other buckets sum the expected amount.
func ComputeSummary(occurrences []Occurrence, today Date) Summary {
	s := Summary{
		Pending:  newBucket(),
		Paid:     newBucket(),
		Upcoming: newBucket(),
		Total:    len(occurrences),
	}
	for _, o := range occurrences {
		switch Classify(o, today) {
		case BucketPaid:
			s.Paid.add(o.Currency, o.ActualOrExpected())
		case BucketUpcoming:
			s.Upcoming.add(o.Currency, o.AmountExpected)
		default:
			s.Pending.add(o.Currency, o.AmountExpected)
		}
	}
	return s
}

func newBucket() Bucket {
	return Bucket{Amount: decimal.Zero, ByCurrency: map[string]decimal.Decimal{}}
}

func (b *Bucket) add(currency string, amount decimal.Decimal) {
	b.Count++
	b.Amount = b.Amount.Add(amount)
	b.ByCurrency[currency] = b.ByCurrency[currency].Add(amount)
}
