package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var files embed.FS

type migration struct {
	Name    string
	Version int
}

// Apply runs every embedded migration not yet recorded in schema_migrations.
func Apply(db *sqlx.DB) error {
	return apply(db, files, "sql")
}

func apply(db *sqlx.DB, fsys fs.FS, dir string) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	migs, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}
	applied := []int{}
	if err := db.Select(&applied, `SELECT version FROM schema_migrations`); err != nil {
		return err
	}
	done := map[int]bool{}
	for _, version := range applied {
		done[version] = true
	}
	for _, mig := range migs {
		if done[mig.Version] {
			continue
		}
		content, err := fs.ReadFile(fsys, dir+"/"+mig.Name)
		if err != nil {
			return err
		}
		if err := applyMigration(db, mig, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sqlx.DB, mig migration, content string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(content); err != nil {
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}

func listMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	migs := make([]migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, ok := parseVersion(name)
		if !ok {
			return nil, fmt.Errorf("migration %s: name must look like V<n>__description.sql", name)
		}
		migs = append(migs, migration{Name: name, Version: version})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	for i := 1; i < len(migs); i++ {
		if migs[i].Version == migs[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migs[i].Version)
		}
	}
	return migs, nil
}

func parseVersion(name string) (int, bool) {
	if !strings.HasPrefix(name, "V") {
		return 0, false
	}
	parts := strings.SplitN(name[1:], "__", 2)
	if len(parts) != 2 {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	return value, true
}
