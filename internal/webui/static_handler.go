package webui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// allowedExtensions whitelists what the asset route will serve.
var allowedExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true,
	".png": true, ".svg": true, ".ico": true,
}

// dashboardHandler serves the departure board page.
func (webUI *WebUI) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	webUI.servePage(w, r, "index.html")
}

// adminHandler serves the stop administration page.
func (webUI *WebUI) adminHandler(w http.ResponseWriter, r *http.Request) {
	webUI.servePage(w, r, "admin.html")
}

func (webUI *WebUI) servePage(w http.ResponseWriter, r *http.Request, name string) {
	data, err := staticFS.ReadFile("static/" + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// staticHandler serves embedded assets under /static/. The embedded
// filesystem cannot be traversed out of, but the extension whitelist keeps
// the route from ever serving something unintended.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if !allowedExtensions[strings.ToLower(path.Ext(name))] {
		http.NotFound(w, r)
		return
	}

	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.StripPrefix("/static/", http.FileServer(http.FS(sub))).ServeHTTP(w, r)
}
