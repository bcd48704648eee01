package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	// versions are zero padded so file names sort in apply order
	versionWidth = 6
)

// Pair is a scaffolded up/down migration
type Pair struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// CreateMigration writes empty up and down files for the version after the
// highest one in dir, creating dir if needed. Existing files are never
// overwritten.
func CreateMigration(dir, name, description string) (*Pair, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	latest, err := LatestVersion(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%0*d", versionWidth, latest+1)
	base := filepath.Join(dir, version+"_"+slug)
	p := &Pair{Version: version, Name: name, UpPath: base + upSuffix, DownPath: base + downSuffix}

	created := time.Now().UTC().Format(time.RFC3339)
	up := fmt.Sprintf("-- %s\n-- created %s\n", name, created)
	if description != "" {
		up += "-- " + description + "\n"
	}
	if err := writeNew(p.UpPath, up+"\n"); err != nil {
		return nil, err
	}
	if err := writeNew(p.DownPath, fmt.Sprintf("-- rollback of %s\n-- created %s\n\n", name, created)); err != nil {
		_ = os.Remove(p.UpPath)
		return nil, err
	}
	return p, nil
}

func writeNew(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	_, err = f.WriteString(content)
	return errors.Join(err, f.Close())
}

// slugify lowercases name, turns runs of spaces, dashes and underscores into
// one underscore and drops every other non alphanumeric rune.
func slugify(name string) string {
	separator := func(r rune) bool { return r == ' ' || r == '-' || r == '_' }
	keep := func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}

	var words []string
	for _, field := range strings.FieldsFunc(name, separator) {
		if w := strings.Map(keep, field); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, "_")
}

// parseVersion reads the numeric prefix of a migration file name
func parseVersion(name string) (uint, bool) {
	prefix, _, ok := strings.Cut(filepath.Base(name), "_")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(prefix, 10, 0)
	return uint(v), err == nil
}

// ListMigrations returns the base names of the up migrations in dir ordered
// by version. A missing dir has none.
func ListMigrations(dir string) ([]string, error) {
	entries, err := fs.ReadDir(os.DirFS(dir), ".")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), upSuffix); ok && !e.IsDir() {
			names = append(names, base)
		}
	}
	slices.SortStableFunc(names, func(a, b string) int {
		va, _ := parseVersion(a)
		vb, _ := parseVersion(b)
		return int(va) - int(vb)
	})
	return names, nil
}
