package handlers

import "net/http"

// Catalog lists purposes, styles and the wizard's step labels.
func (a *App) GetCatalog(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"steps":    a.Catalog.Steps,
		"purposes": a.Catalog.Purposes,
		"styles":   a.Catalog.Styles,
	})
}
