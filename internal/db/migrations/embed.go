// Package migrations embeds the goose migration files, one directory
// per supported backend.
package migrations

import "embed"

// FS holds the migration SQL for every dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
