package embedded

import "embed"

// Release is set to "true" via ldflags for release builds.
var Release = "false"

//go:embed migrations/*.sql
var Migrations embed.FS
