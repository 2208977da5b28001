// Package migrations embeds the SQL migration files that create the trace
// tables. The statements are portable between SQLite and PostgreSQL.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS is the embedded migrations filesystem.
// Contains all .sql files in this directory (e.g. 001_trace_tables.sql).
//
//go:embed *.sql
var FS embed.FS

// Ordered returns the names of the .sql files at the root of fsys in the
// order they must run.
func Ordered(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: read dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
