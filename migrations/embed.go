// Package migrations embeds the goose SQL migration files so both binaries
// can apply them without shipping the files alongside the executable.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
