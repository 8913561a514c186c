// Package migrations embeds the goose SQL migrations for the plan run store.
package migrations

import "embed"

// Dir каталог миграций внутри FS
const Dir = "sql"

// FS SQL-миграции PostgreSQL
//
//go:embed sql/*.sql
var FS embed.FS
