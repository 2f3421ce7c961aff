package handlers

import (
	"net/http"
)

// StatsSummary reports live sessions and ledger totals per asset kind.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"sessions_live": 0}
	if a.Sessions != nil {
		body["sessions_live"] = a.Sessions.Len()
	}
	if stats, ok := a.Ledger.(LedgerStats); ok {
		counts, err := stats.CountByKind(r.Context())
		if err != nil {
			a.logger(r).Error().Err(err).Msg("stats: count assets")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
			return
		}
		for kind, n := range counts {
			body[string(kind)+"_total"] = n
		}
	}
	a.json(w, http.StatusOK, body)
}
