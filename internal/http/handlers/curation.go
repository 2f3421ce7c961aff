package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"swipeshop/internal/curation"
	"swipeshop/internal/domain"
	"swipeshop/internal/session"
)

type directionRequest struct {
	Direction string `json:"direction"`
}

type decideResponse struct {
	Session session.Snapshot `json:"session"`
	curation.Outcome
}

func (a *App) Decide(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req directionRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, out, err := s.Decide(chi.URLParam(r, "cardID"), req.Direction)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, decideResponse{Session: snap, Outcome: out})
}

func (a *App) Toggle(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	snap, kept, err := s.Toggle(chi.URLParam(r, "cardID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"session": snap, "kept": kept})
}

type customBlockRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) AddCustomBlock(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req customBlockRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, card, err := s.AddCustomBlock(req.Prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"session": snap, "card": card})
}

func (a *App) DeleteCard(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.DeleteCard(chi.URLParam(r, "cardID")))
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (a *App) Reorder(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := s.Reorder(req.IDs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) MoveKept(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req directionRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, moved, err := s.MoveKept(chi.URLParam(r, "cardID"), req.Direction)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"session": snap, "moved": moved})
}

type updateTextRequest struct {
	Copy *string `json:"copy"`
}

func (a *App) UpdateText(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req updateTextRequest
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Copy == nil {
		a.fail(w, r, domain.ErrInvalidInput)
		return
	}
	snap, err := s.UpdateText(chi.URLParam(r, "cardID"), *req.Copy)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) RemoveKept(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.RemoveKept(chi.URLParam(r, "cardID")))
}

func (a *App) Refine(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Refine(r.Context(), chi.URLParam(r, "cardID"), meta(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}
