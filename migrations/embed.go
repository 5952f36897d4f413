// Package migrations embeds the goose SQL migrations for the local store.
package migrations

import "embed"

// FS holds the migration files applied by store.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
