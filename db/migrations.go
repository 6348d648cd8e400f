// Package db carries the embedded schema migrations.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
