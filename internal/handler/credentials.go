package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"sparrowvision/internal/credential"
)

// CredentialsHandler manages stored connector credentials.
type CredentialsHandler struct {
	manager *credential.Manager
}

// NewCredentialsHandler creates a new credentials handler.
func NewCredentialsHandler(m *credential.Manager) *CredentialsHandler {
	return &CredentialsHandler{manager: m}
}

// List handles GET /api/v1/credentials
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.manager.List(r.Context())
	if err != nil {
		log.Printf("failed to list credentials: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credentials": creds,
		"count":       len(creds),
	})
}

// createCredentialRequest is the request body for storing a credential.
type createCredentialRequest struct {
	Platform  string `json:"platform"`
	Label     string `json:"label"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	OrgID     string `json:"org_id"`
	Domain    string `json:"domain"`
	BaseURL   string `json:"base_url"`
	Verify    bool   `json:"verify"`
}

// Create handles POST /api/v1/credentials
func (h *CredentialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	cred, err := h.manager.Store(r.Context(), credential.StoreInput{
		Platform: req.Platform,
		Label:    req.Label,
		Payload: credential.Payload{
			APIKey:    req.APIKey,
			APISecret: req.APISecret,
			OrgID:     req.OrgID,
			Domain:    req.Domain,
			BaseURL:   req.BaseURL,
		},
		Verify: req.Verify,
	})
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrInvalidPlatform):
			writeError(w, http.StatusBadRequest, "unsupported platform")
		case errors.Is(err, credential.ErrInvalidLabel):
			writeError(w, http.StatusBadRequest, "credential label is required")
		case errors.Is(err, credential.ErrMissingSecret):
			writeError(w, http.StatusBadRequest, "api_key is required")
		case errors.Is(err, credential.ErrExists):
			writeError(w, http.StatusConflict, "credential already exists for platform")
		case errors.Is(err, credential.ErrVerifyFailed):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("failed to store credential: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to store credential")
		}
		return
	}

	writeJSON(w, http.StatusCreated, cred.ToResponse())
}

// Delete handles DELETE /api/v1/credentials/{id}
func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential ID")
		return
	}

	if err := h.manager.Delete(r.Context(), id); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			writeError(w, http.StatusNotFound, "credential not found")
			return
		}
		log.Printf("failed to delete credential: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
