// Package migrations embeds the goose migrations for the local keystore.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
