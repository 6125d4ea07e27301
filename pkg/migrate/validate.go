package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const versionLayout = "20060102150405"

var migrationFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)

type migrationFile struct {
	Version int64
	Name    string
	Path    string
}

// ValidateDir checks every SQL file in dir: the versioned file name, unique
// versions, both goose sections, and balanced statement blocks.
func ValidateDir(dir string) error {
	files, err := scanDir(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return fmt.Errorf("read %q: %w", file.Path, err)
		}
		if err := checkSections(string(data)); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(file.Path), err)
		}
	}
	return nil
}

// scanDir lists the migrations in dir ordered by version.
func scanDir(dir string) ([]migrationFile, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := make(map[int64]string, len(entries))
	files := make([]migrationFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := migrationFileRe.FindStringSubmatch(name)
		if match == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_snake_name.sql)", name)
		}
		version, _ := strconv.ParseInt(match[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		seen[version] = name
		files = append(files, migrationFile{Version: version, Name: match[2], Path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func checkSections(sql string) error {
	up := strings.Index(sql, "-- +goose Up")
	down := strings.Index(sql, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("down section precedes up section")
	}
	for _, section := range []string{sql[up:down], sql[down:]} {
		begins := strings.Count(section, "-- +goose StatementBegin")
		ends := strings.Count(section, "-- +goose StatementEnd")
		if begins != ends {
			return fmt.Errorf("unbalanced StatementBegin/StatementEnd (%d/%d)", begins, ends)
		}
	}
	return nil
}
