// Package migrations holds the versioned schema as SQL files and embeds
// them so the server and tests can migrate without a checkout on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
