package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"

	"swipeshop/pkg/zip"
)

// Export composes the kept sequence and returns the image as an attachment.
// The stored copy's URL and the new stage are reported in headers.
func (a *App) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	res, snap, err := s.Export(r.Context(), meta(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("X-Export-Width", strconv.Itoa(res.Width))
	h.Set("X-Export-Height", strconv.Itoa(res.Height))
	h.Set("X-Workflow-Stage", snap.Workflow.Stage)
	if res.URL != "" {
		h.Set("Location", res.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (a *App) ListExports(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	items, err := s.Exports(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ExportArchive zips every stored export of the session.
func (a *App) ExportArchive(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	items, err := s.Exports(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(items) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no exports yet")
		return
	}
	assets := make([]zip.Asset, 0, len(items))
	for _, item := range items {
		data, err := a.Store.Read(r.Context(), item.StorageKey)
		if err != nil {
			a.logger(r).Warn().Err(err).Str("key", item.StorageKey).Msg("exports: skipping unreadable artifact")
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(item.StorageKey), MIME: item.ContentType, Data: data, Modified: item.CreatedAt})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=swipeshop-%s.zip", s.ID()))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, assets); err != nil {
		a.logger(r).Error().Err(err).Msg("exports: archive write failed")
	}
}
