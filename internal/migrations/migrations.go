package migrations

import "embed"

// Files contains SQL migrations embedded into the binary.
//
// Migrations use a flat naming convention (e.g., 001_create_calendar_events.sql)
// and are applied in lexical order by store.ApplyMigrations.
//
//go:embed *.sql
var Files embed.FS
