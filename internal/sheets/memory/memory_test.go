package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWriteSheetReplacesContent(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.WriteSheet(ctx, "2025-03 Obligations", [][]any{{"a", 1}, {"b", 2}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WriteSheet(ctx, "2025-03 Obligations", [][]any{{"c", 3}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	rows, ok := s.Sheet("2025-03 Obligations")
	if !ok || len(rows) != 1 || rows[0][0] != "c" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if err := s.WriteSheet(ctx, " ", nil); err == nil {
		t.Fatal("expected error for empty sheet name")
	}
}

func TestWriteSheetCopiesRows(t *testing.T) {
	s := New()
	row := []any{"x"}
	_ = s.WriteSheet(context.Background(), "s", [][]any{row})
	row[0] = "mutated"
	rows, _ := s.Sheet("s")
	if rows[0][0] != "x" {
		t.Fatalf("stored rows alias caller slice: %v", rows)
	}
}

func TestDump(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.WriteSheet(ctx, "b", [][]any{{"Total", "2"}})
	_ = s.WriteSheet(ctx, "a", [][]any{{"Due date", "Description"}})

	var buf bytes.Buffer
	if err := s.Dump(&buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "# a\nDue date\tDescription\n# b\nTotal\t2\n"
	if got := buf.String(); got != want {
		t.Fatalf("dump = %q, want %q", got, want)
	}
	if !strings.HasPrefix(s.Names()[0], "a") {
		t.Fatalf("names not sorted: %v", s.Names())
	}
}
