// Package migrations embeds the SQL schema files, one subdirectory per
// supported dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
