// Package migrations embeds the schema migration files so the migrate
// command needs no filesystem access at deploy time.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
