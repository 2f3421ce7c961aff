package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swipeshop/internal/session"
)

type createSessionRequest struct {
	Flow      string `json:"flow"`
	PurposeID string `json:"purpose_id"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	s, err := a.Sessions.Create(req.Flow, req.PurposeID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, s.Snapshot())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.Snapshot())
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.Reset())
}

type purposeRequest struct {
	PurposeID string `json:"purpose_id"`
}

func (a *App) StartProject(w http.ResponseWriter, r *http.Request) {
	a.withPurpose(w, r, (*session.Session).StartProject)
}

func (a *App) SelectPurpose(w http.ResponseWriter, r *http.Request) {
	a.withPurpose(w, r, (*session.Session).SelectPurpose)
}

func (a *App) withPurpose(w http.ResponseWriter, r *http.Request, apply func(*session.Session, string) (session.Snapshot, error)) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req purposeRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := apply(s, req.PurposeID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

type imagesRequest struct {
	Refs []string `json:"refs"`
}

type imagesResponse struct {
	Session  session.Snapshot `json:"session"`
	Accepted int              `json:"accepted"`
}

// AddImages accepts JSON image references or multipart files, which are
// uploaded to storage first.
func (a *App) AddImages(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var refs []string
	if isMultipart(r) {
		files, err := a.readFiles(r, "file")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		for _, f := range files {
			slot, err := a.Uploads.Upload(r.Context(), f.Filename, f.ContentType, f.Data)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			refs = append(refs, slot.PublicURL)
		}
	} else {
		var req imagesRequest
		if err := decode(r, &req, true); err != nil {
			a.fail(w, r, err)
			return
		}
		refs = req.Refs
	}
	snap, n, err := s.AddImages(refs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, imagesResponse{Session: snap, Accepted: n})
}

func (a *App) RemoveImage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "index must be a number")
		return
	}
	snap, err := s.RemoveImage(index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

type descriptionRequest struct {
	Description string `json:"description"`
}

func (a *App) SetDescription(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req descriptionRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, s.SetDescription(req.Description))
}

type styleRequest struct {
	StyleID string `json:"style_id"`
}

func (a *App) SelectStyle(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req styleRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := s.SelectStyle(req.StyleID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Advance()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

type gotoRequest struct {
	Stage int `json:"stage"`
}

func (a *App) GoTo(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req gotoRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := s.GoTo(req.Stage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

// GenerateForSession runs generation for the session's inputs. A multipart
// file is uploaded and added to the inputs first.
func (a *App) GenerateForSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var (
		snap session.Snapshot
		err  error
	)
	if isMultipart(r) {
		files, ferr := a.readFiles(r, "file")
		if ferr != nil {
			a.fail(w, r, ferr)
			return
		}
		if desc := r.FormValue("description"); desc != "" {
			s.SetDescription(desc)
		}
		snap, err = s.GenerateFromUpload(r.Context(), meta(r), files[0])
	} else {
		snap, err = s.Generate(r.Context(), meta(r))
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}
