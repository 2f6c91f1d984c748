// Package migrations embeds the schema migration files so the binary can
// apply them from any working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory. The storage layer applies
// them in lexical order, so file names carry a numeric prefix.
//
//go:embed *.sql
var FS embed.FS
