package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

//go:embed migrations
var migrationsDir embed.FS

var migrationVersion = regexp.MustCompile(`^(\d+)[-_]`)

type migration struct {
	version int
	name    string
}

// pendingMigrations lists the embedded migrations newer than currVer, oldest first.
func pendingMigrations(currVer int) ([]migration, error) {
	files, err := migrationsDir.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, f := range files {
		if !f.IsDir() && filepath.Ext(f.Name()) == ".sql" {
			sqlFiles = append(sqlFiles, f.Name())
		}
	}
	slices.Sort(sqlFiles)

	var pending []migration
	for _, name := range sqlFiles {
		matches := migrationVersion.FindStringSubmatch(name)
		if len(matches) < 2 {
			return nil, fmt.Errorf("parse version from migration file: %s", name)
		}
		nextVer, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("convert migration version from file %s: %w", name, err)
		}
		if nextVer <= currVer {
			continue
		}
		pending = append(pending, migration{version: nextVer, name: name})
	}

	return pending, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	data, err := migrationsDir.ReadFile(path.Join("migrations", m.name))
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", m.name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", m.version)); err != nil {
		return fmt.Errorf("update database version for migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}

	return nil
}
