package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DefaultDir holds the storefront schema, relative to the repository root.
const DefaultDir = "pkg/migrate/migrations"

// Command is a schema action accepted by cmd/migrate.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

// ErrSQLiteCommand is returned for anything but up on sqlite, whose schema
// comes from the models rather than the Postgres SQL files.
var ErrSQLiteCommand = errors.New("sqlite only supports the up command")

func ParseCommand(raw string) (Command, error) {
	switch cmd := Command(strings.ToLower(strings.TrimSpace(raw))); cmd {
	case CommandUp, CommandDown, CommandStatus, CommandVersion:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown migrate command %q", raw)
	}
}

// ParseVersion reads a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return version, nil
}

// Migrator applies the storefront schema to one database. Postgres runs the
// goose SQL files in dir; sqlite is migrated from the gorm models.
type Migrator struct {
	conn   *gorm.DB
	sqlite bool
	dir    string
	logg   *logger.Logger
}

func New(conn *gorm.DB, sqlite bool, dir string, logg *logger.Logger) (*Migrator, error) {
	if conn == nil {
		return nil, fmt.Errorf("db is required")
	}
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Migrator{conn: conn, sqlite: sqlite, dir: dir, logg: logg}, nil
}

// Run executes cmd. target is only read by CommandVersion.
func (m *Migrator) Run(ctx context.Context, cmd Command, target int64) error {
	ctx = m.logg.WithFields(ctx, map[string]any{"cmd": string(cmd), "dir": m.dir, "sqlite": m.sqlite})

	if m.sqlite {
		if cmd != CommandUp {
			return ErrSQLiteCommand
		}
		if err := m.conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate sqlite: %w", err)
		}
		m.logg.Info(ctx, "sqlite schema migrated from models")
		return nil
	}

	provider, err := m.provider()
	if err != nil {
		return err
	}
	defer provider.Close()

	switch cmd {
	case CommandUp:
		results, err := provider.Up(ctx)
		m.logResults(ctx, results)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case CommandDown:
		result, err := provider.Down(ctx)
		if result != nil {
			m.logResults(ctx, []*goose.MigrationResult{result})
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, status := range statuses {
			m.logg.Info(m.logg.WithFields(ctx, map[string]any{
				"version":    status.Source.Version,
				"state":      string(status.State),
				"applied_at": status.AppliedAt,
			}), status.Source.Path)
		}
	case CommandVersion:
		return m.toVersion(ctx, provider, target)
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
	return nil
}

// toVersion migrates up or down until the database sits at target.
func (m *Migrator) toVersion(ctx context.Context, provider *goose.Provider, target int64) error {
	if target <= 0 {
		return fmt.Errorf("target version is required")
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		m.logg.Info(ctx, "schema already at target version")
		return nil
	case current < target:
		results, err = provider.UpTo(ctx, target)
	default:
		results, err = provider.DownTo(ctx, target)
	}
	m.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

func (m *Migrator) provider() (*goose.Provider, error) {
	sqlDB, err := m.conn.DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, os.DirFS(m.dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %q: %w", m.dir, err)
	}
	return provider, nil
}

func (m *Migrator) logResults(ctx context.Context, results []*goose.MigrationResult) {
	for _, result := range results {
		if result == nil || result.Source == nil {
			continue
		}
		fields := m.logg.WithFields(ctx, map[string]any{
			"version":   result.Source.Version,
			"direction": result.Direction,
			"duration":  result.Duration.String(),
		})
		if result.Error != nil {
			m.logg.Error(fields, "migration failed", result.Error)
			continue
		}
		m.logg.Info(fields, "migration applied")
	}
}
