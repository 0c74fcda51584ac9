package runlog

import "embed"

// sqlSchemas embeds the SQL migration files at compile time for
// portability, the same approach the rest of this module's ambient stack
// uses for its own migrations.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
