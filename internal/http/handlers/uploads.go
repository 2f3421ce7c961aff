package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swipeshop/internal/domain"
)

type uploadSlotRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (a *App) CreateUploadSlot(w http.ResponseWriter, r *http.Request) {
	var req uploadSlotRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	slot, err := a.Uploads.RequestSlot(req.Filename, req.ContentType)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, slot)
}

func (a *App) PutUpload(w http.ResponseWriter, r *http.Request) {
	limit := a.Uploads.MaxBytes()
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: read body: %v", domain.ErrUploadFailed, err))
		return
	}
	slot, err := a.Uploads.Put(r.Context(), chi.URLParam(r, "token"), data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, slot)
}
