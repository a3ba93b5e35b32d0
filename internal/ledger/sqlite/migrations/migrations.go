// Package migrations embeds the ledger schema migrations.
package migrations

import "embed"

// FS contains the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
