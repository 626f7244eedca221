// Package migrations embeds the goose SQL migrations for the operator schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
