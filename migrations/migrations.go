// Package migrations embeds the Postgres schema of the queue ledger.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
