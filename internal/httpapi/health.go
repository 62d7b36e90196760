package httpapi

import "net/http"

// HandleHealth implements GET /health. The gateway has no external
// dependency to probe (no database, no cache) — if the process is
// serving HTTP, it is healthy.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
