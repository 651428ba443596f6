package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"obligations/internal/core"
	"obligations/internal/storage/memory"
)

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(CategoriesFile, "# id;name\nhome;Home\nProfessional Services\nhome;Duplicate\n\n")
	mustWrite(ProjectsFile, "prj-1; Villa \n;no id\n")
	// No suppliers file: skipped.

	store := memory.New()
	ctx := context.Background()
	n, err := Seed(ctx, store, dir)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != 3 {
		t.Fatalf("seeded %d entries, want 3", n)
	}

	tests := []struct {
		id   string
		name string
	}{
		{"home", "Home"},
		{"professional-services", "Professional Services"},
	}
	for _, tt := range tests {
		c, err := store.GetCategory(ctx, tt.id)
		if err != nil || c.Name != tt.name {
			t.Fatalf("category %s = %+v, %v", tt.id, c, err)
		}
	}
	p, err := store.GetProject(ctx, "prj-1")
	if err != nil || p.Name != "Villa" {
		t.Fatalf("project = %+v, %v", p, err)
	}
	if _, err := store.GetSupplier(ctx, "anything"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found supplier, got %v", err)
	}
}

func TestSeedMissingDirectory(t *testing.T) {
	n, err := Seed(context.Background(), memory.New(), filepath.Join(t.TempDir(), "absent"))
	if err != nil || n != 0 {
		t.Fatalf("Seed = %d, %v", n, err)
	}
}
