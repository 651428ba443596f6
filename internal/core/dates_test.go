package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMonth_DueDate(t *testing.T) {
	tests := []struct {
		name  string
		month Month
		day   int
		want  string
	}{
		{"day inside month", NewMonth(2025, time.March), 5, "2025-03-05"},
		{"day 31 in non-leap February", NewMonth(2025, time.February), 31, "2025-02-28"},
		{"day 31 in leap February", NewMonth(2024, time.February), 31, "2024-02-29"},
		{"day 31 in April", NewMonth(2025, time.April), 31, "2025-04-30"},
		{"day 31 in December", NewMonth(2025, time.December), 31, "2025-12-31"},
		{"day 29 in century non-leap year", NewMonth(2100, time.February), 29, "2100-02-28"},
		{"first day", NewMonth(2025, time.January), 1, "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.month.DueDate(tt.day).String()
			if got != tt.want {
				t.Errorf("DueDate(%d) = %s, want %s", tt.day, got, tt.want)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-03", "2025-03-01", true},
		{"2025-03-17", "2025-03-01", true},
		{"2025-13", "", false},
		{"march", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok {
			if err != nil || got.Key() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got.Key(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMonthOf(t *testing.T) {
	got := MonthOf(time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC))
	if got.Key() != "2025-03-01" {
		t.Fatalf("MonthOf = %s, want 2025-03-01", got.Key())
	}
}

func TestMonthJSON(t *testing.T) {
	b, err := json.Marshal(NewMonth(2025, time.March))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-03"` {
		t.Fatalf("marshal = %s", b)
	}
	var m Month
	if err := json.Unmarshal([]byte(`"2024-02"`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.DaysIn() != 29 {
		t.Fatalf("DaysIn = %d, want 29", m.DaysIn())
	}
}
