package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/syncer"
)

// ConnectorsHandler exposes the supported platform set and connection
// diagnostics.
type ConnectorsHandler struct {
	registry *connector.Registry
	syncer   *syncer.Syncer
}

// NewConnectorsHandler creates a new connectors handler.
func NewConnectorsHandler(registry *connector.Registry, s *syncer.Syncer) *ConnectorsHandler {
	return &ConnectorsHandler{registry: registry, syncer: s}
}

type connectorInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// List handles GET /api/v1/connectors
func (h *ConnectorsHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	infos := make([]connectorInfo, 0, len(names))
	for _, name := range names {
		conn, err := h.registry.New(name, connector.Config{})
		if err != nil {
			continue
		}
		infos = append(infos, connectorInfo{Name: conn.Name(), DisplayName: conn.DisplayName()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": infos,
		"count":      len(infos),
	})
}

// testRequest optionally carries inline credentials; when absent the stored
// credential for the platform is used.
type testRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	OrgID     string `json:"org_id"`
	Domain    string `json:"domain"`
	BaseURL   string `json:"base_url"`
}

// Test handles POST /api/v1/connectors/{platform}/test
func (h *ConnectorsHandler) Test(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")

	var req testRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var err error
	if req.APIKey != "" {
		cfg := connector.Config{
			APIKey:    req.APIKey,
			APISecret: req.APISecret,
			OrgID:     req.OrgID,
			Domain:    req.Domain,
			BaseURL:   req.BaseURL,
		}
		err = h.syncer.CheckWithConfig(r.Context(), platform, cfg)
	} else {
		err = h.syncer.Check(r.Context(), platform)
	}

	if err != nil {
		if errors.Is(err, connector.ErrNotRegistered) {
			writeError(w, http.StatusNotFound, "unknown platform")
			return
		}
		if errors.Is(err, syncer.ErrNoCredential) {
			writeError(w, http.StatusBadRequest, "no credential supplied or stored for platform")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
			"hint":    connector.Hint(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
