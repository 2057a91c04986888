// Package migrations embeds the schema of each supported store driver.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Script is one schema file, applied in Name order.
type Script struct {
	Name string
	SQL  string
}

// Postgres returns the PostgreSQL schema scripts.
func Postgres() ([]Script, error) { return load(postgresFS, "postgres") }

// SQLite returns the SQLite schema scripts.
func SQLite() ([]Script, error) { return load(sqliteFS, "sqlite") }

func load(fsys fs.FS, dir string) ([]Script, error) {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		scripts = append(scripts, Script{Name: name, SQL: string(b)})
	}
	return scripts, nil
}
