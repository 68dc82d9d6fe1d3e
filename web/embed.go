// Package web provides embedded static assets (CSS, JS) for the storefront
// UI, served at /static/.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree.
//
//go:embed all:static
var StaticFS embed.FS
