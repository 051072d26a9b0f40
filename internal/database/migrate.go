package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	"agora/internal/middleware"
)

// Migration is one versioned pair of up/down SQL scripts.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
	// Checksum is the hex SHA-256 of Up, recorded when the migration is
	// applied so edited scripts are detected later.
	Checksum string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationFile matches 000001_create_posts.up.sql and its .down.sql twin.
var migrationFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

var migrations []Migration

func init() {
	if err := RegisterMigrations(migrationFS); err != nil {
		middleware.Logger.Error("failed to register embedded migrations", slog.String("error", err.Error()))
	}
}

// RegisterMigrations adds the up/down pairs found in the "migrations"
// directory of fsys. Every up script needs a down script, and a version may
// only be registered once.
func RegisterMigrations(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	found := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationFile.FindStringSubmatch(entry.Name())
		if parts == nil {
			middleware.Logger.Warn("skipping file with invalid migration name", slog.String("file", entry.Name()))
			continue
		}
		version, _ := strconv.Atoi(parts[1])
		if GetMigrationByVersion(version) != nil {
			return fmt.Errorf("duplicate migration version %06d", version)
		}

		raw, err := fs.ReadFile(fsys, path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := found[version]
		if !ok {
			m = &Migration{Version: version, Name: parts[2]}
			found[version] = m
		} else if m.Name != parts[2] {
			return fmt.Errorf("migration %06d has mismatched names %q and %q", version, m.Name, parts[2])
		}
		if parts[3] == "up" {
			m.Up = string(raw)
			sum := sha256.Sum256(raw)
			m.Checksum = hex.EncodeToString(sum[:])
		} else {
			m.Down = string(raw)
		}
	}

	for _, m := range found {
		switch {
		case m.Up == "":
			return fmt.Errorf("migration %s has no up script", m)
		case m.Down == "":
			return fmt.Errorf("migration %s has no down script", m)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return nil
}

// GetMigrations returns the registered migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns the migration with the given version, or nil.
func GetMigrationByVersion(version int) *Migration {
	i := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
	if i < len(migrations) && migrations[i].Version == version {
		return &migrations[i]
	}
	return nil
}
