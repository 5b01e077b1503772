// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the postgres schema migrations, one file per version,
// named {version}_{name}.sql.
//
//go:embed *.sql
var FS embed.FS
