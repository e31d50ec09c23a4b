package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"sparrowvision/internal/config"
	"sparrowvision/internal/identity"
	"sparrowvision/internal/store"
)

// UsersHandler exposes read access to stored identities and the derived
// risk views.
type UsersHandler struct {
	store *store.Manager
	cfg   *config.Config
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(st *store.Manager, cfg *config.Config) *UsersHandler {
	return &UsersHandler{store: st, cfg: cfg}
}

// List handles GET /api/v1/users?platform=...
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		writeError(w, http.StatusBadRequest, "platform query parameter is required")
		return
	}

	users, err := h.store.ListUsers(r.Context(), platform)
	if err != nil {
		log.Printf("failed to list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	counts, err := h.store.StatusCounts(r.Context(), platform)
	if err != nil {
		log.Printf("failed to count users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":         users,
		"count":         len(users),
		"status_counts": counts,
	})
}

// HighRisk handles GET /api/v1/users/high-risk?threshold=...
// The response also carries the inactive and privileged breakdowns so one
// call answers the standard review questions.
func (h *UsersHandler) HighRisk(w http.ResponseWriter, r *http.Request) {
	threshold := h.cfg.Sync.RiskThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "threshold must be between 0 and 100")
			return
		}
		threshold = n
	}

	users, err := h.store.HighRiskUsers(r.Context(), threshold)
	if err != nil {
		log.Printf("failed to list high-risk users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list high-risk users")
		return
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold":  threshold,
		"users":      users,
		"count":      len(users),
		"inactive":   identity.Inactive(users, now, h.cfg.Sync.InactiveDays),
		"privileged": identity.Privileged(users),
	})
}
