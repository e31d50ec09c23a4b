package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/store"
	"sparrowvision/internal/syncer"
)

// SyncHandler triggers sync cycles and exposes the run history.
type SyncHandler struct {
	syncer *syncer.Syncer
	store  *store.Manager
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(s *syncer.Syncer, st *store.Manager) *SyncHandler {
	return &SyncHandler{syncer: s, store: st}
}

// syncRequest optionally carries a continuation cursor and inline
// credentials. Without inline credentials the stored credential is used.
type syncRequest struct {
	Cursor    string `json:"cursor"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	OrgID     string `json:"org_id"`
	Domain    string `json:"domain"`
	BaseURL   string `json:"base_url"`
}

// Run handles POST /api/v1/sync/{platform}
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var run *store.SyncRun
	var err error
	if req.APIKey != "" {
		cfg := connector.Config{
			APIKey:    req.APIKey,
			APISecret: req.APISecret,
			OrgID:     req.OrgID,
			Domain:    req.Domain,
			BaseURL:   req.BaseURL,
		}
		run, err = h.syncer.RunWithConfig(r.Context(), platform, cfg, req.Cursor)
	} else {
		run, err = h.syncer.Run(r.Context(), platform, req.Cursor)
	}

	if err != nil {
		switch {
		case errors.Is(err, connector.ErrNotRegistered):
			writeError(w, http.StatusNotFound, "unknown platform")
		case errors.Is(err, syncer.ErrNoCredential):
			writeError(w, http.StatusBadRequest, "no credential supplied or stored for platform")
		case errors.Is(err, connector.ErrMissingConfig):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": err.Error(),
				"hint":  connector.Hint(err),
				"run":   run,
			})
		default:
			log.Printf("sync failed: platform=%s: %v", platform, err)
			writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// History handles GET /api/v1/sync/history
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.History(r.Context(), platform, limit)
	if err != nil {
		log.Printf("failed to list sync history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list sync history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
