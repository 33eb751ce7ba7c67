// Package webassets embeds the dashboard's static SPA shell. Grounded on
// the teacher's embed.FS pattern used for bundled binaries (e.g.
// internal/cli/run/embed_linux_amd64.go), applied here to HTML/CSS/JS
// instead of a bundled executable.
package webassets

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/index.html
var files embed.FS

// Handler serves the embedded static assets rooted at "static/".
func Handler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err) // static/ is embedded at build time; this cannot fail at runtime
	}
	return http.FileServer(http.FS(sub))
}
