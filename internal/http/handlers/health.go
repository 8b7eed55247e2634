package handlers

import (
	"net/http"

	"unlockstudio/internal/middleware"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "widgets": a.Registry.Len()})
}

// Me returns the signed-in viewer, or an anonymous marker.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	locale := middleware.LocaleFromContext(r.Context())
	if viewer == nil {
		a.json(w, http.StatusOK, map[string]any{"anonymous": true, "locale": locale})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"anonymous": false, "locale": locale, "viewer": viewer})
}
