// Package web holds the embedded templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// Templates returns the template tree rooted at templates/.
func Templates() (fs.FS, error) {
	return fs.Sub(assets, "templates")
}

// Static returns the static asset tree rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(assets, "static")
}
