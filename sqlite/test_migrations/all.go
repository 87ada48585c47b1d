// Package test_migrations holds sql scripts used to test the migrator.
package test_migrations

import "embed"

//go:embed *.sql
var All embed.FS
