package backend

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"obligations/internal/core"
	"obligations/internal/storage"
)

// Seed files, one entry per line as "id;name" or a bare name whose slug
// becomes the id. Blank lines and lines starting with # are skipped.
const (
	CategoriesFile = "categories.txt"
	ProjectsFile   = "projects.txt"
	SuppliersFile  = "suppliers.txt"
)

type seedEntry struct {
	ID   string
	Name string
}

// Seed upserts the directory entries found in dir and returns how many were
// written. Missing files are skipped.
func Seed(ctx context.Context, w storage.DirectoryWriter, dir string) (int, error) {
	total := 0
	for _, f := range []struct {
		file string
		save func(seedEntry) error
	}{
		{CategoriesFile, func(e seedEntry) error { return w.SaveCategory(ctx, core.Category{ID: e.ID, Name: e.Name}) }},
		{ProjectsFile, func(e seedEntry) error { return w.SaveProject(ctx, core.Project{ID: e.ID, Name: e.Name}) }},
		{SuppliersFile, func(e seedEntry) error { return w.SaveSupplier(ctx, core.Supplier{ID: e.ID, Name: e.Name}) }},
	} {
		entries, err := readSeed(filepath.Join(dir, f.file))
		if err != nil {
			return total, err
		}
		for _, e := range entries {
			if err := f.save(e); err != nil {
				return total, fmt.Errorf("seed %s %q: %w", f.file, e.ID, err)
			}
			total++
		}
	}
	return total, nil
}

func readSeed(path string) ([]seedEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []seedEntry
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var e seedEntry
		if id, name, ok := strings.Cut(line, ";"); ok {
			e = seedEntry{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
		} else {
			e = seedEntry{ID: slug(line), Name: line}
		}
		if e.ID == "" || e.Name == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
