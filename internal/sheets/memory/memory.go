// Package memory keeps written report sheets in process, for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func New() *Store {
	return &Store{sheets: map[string][][]any{}}
}

// WriteSheet replaces the sheet content.
func (s *Store) WriteSheet(_ context.Context, sheet string, rows [][]any) error {
	if strings.TrimSpace(sheet) == "" {
		return fmt.Errorf("sheet name is required")
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = cp
	return nil
}

// Sheet returns the rows last written under name.
func (s *Store) Sheet(name string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.sheets[name]
	return rows, ok
}

func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sheets))
	for n := range s.sheets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dump writes every sheet as tab separated lines.
func (s *Store) Dump(w io.Writer) error {
	for _, name := range s.Names() {
		rows, _ := s.Sheet(name)
		if _, err := fmt.Fprintf(w, "# %s\n", name); err != nil {
			return err
		}
		for _, r := range rows {
			cols := make([]string, len(r))
			for i, v := range r {
				cols[i] = fmt.Sprint(v)
			}
			if _, err := fmt.Fprintln(w, strings.Join(cols, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}
