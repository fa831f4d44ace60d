// Package web embeds the review UI served at the root path.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded UI filesystem.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
