package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: statements run in one transaction; keep the storefront CHECK constraints in step with pkg/db/models.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- %[1]s: undo the up section.
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<version>_<snake_name>.sql from the
// storefront template. The version is now in UTC, bumped past the newest
// existing migration so goose never sees an out-of-order file.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := scanDir(dir)
	if err != nil {
		return "", err
	}
	version := now.UTC().Truncate(time.Second)
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, fmt.Sprint(existing[n-1].Version))
		if err == nil && !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), safe))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, sqlTemplate, safe); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

func sanitizeName(name string) string {
	safe := unsafeNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(safe, "_")
}
