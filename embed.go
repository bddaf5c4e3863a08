package repcal

import "embed"

// WebFS holds the built PWA frontend, served by the HTTP server.
//
//go:embed web/dist
var WebFS embed.FS
