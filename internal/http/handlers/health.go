package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.Sessions != nil {
		body["sessions"] = a.Sessions.Len()
	}
	if a.Ping != nil {
		if err := a.Ping(r.Context()); err != nil {
			a.logger(r).Warn().Err(err).Msg("health: ledger unreachable")
			body["status"] = "degraded"
			body["ledger"] = "unreachable"
			a.json(w, http.StatusServiceUnavailable, body)
			return
		}
		body["ledger"] = "ok"
	}
	a.json(w, http.StatusOK, body)
}
