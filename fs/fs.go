package appfs

import "embed"

// FS embeds the database migrations and email templates so the binaries stay
// self-contained.
//go:embed migrations templates
var FS embed.FS
