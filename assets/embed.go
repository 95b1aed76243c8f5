// assets/embed.go
//
// Files compiled into the binary: the SQL migrations applied at startup.

package assets

import "embed"

// Migrations holds sql/*.sql, applied in lexical order by database.Migrate.
//
//go:embed sql/*.sql
var Migrations embed.FS
