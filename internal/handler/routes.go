// Package handler exposes the ingestion core over HTTP: connector
// management, sync triggers, CSV processing, and read access to stored
// identities and sync history.
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"sparrowvision/internal/config"
	"sparrowvision/internal/connector"
	"sparrowvision/internal/credential"
	"sparrowvision/internal/database"
	"sparrowvision/internal/store"
	"sparrowvision/internal/syncer"
)

// Deps carries the initialized dependencies handlers need.
type Deps struct {
	Config      *config.Config
	DB          *database.DB
	Registry    *connector.Registry
	Store       *store.Manager
	Credentials *credential.Manager
	Syncer      *syncer.Syncer
}

// RegisterRoutes registers all HTTP routes with the provided mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	mux.HandleFunc("GET /health", NewHealthHandler(deps.DB))
	mux.HandleFunc("GET /api/v1/status", statusHandler(deps.Config))

	connectors := NewConnectorsHandler(deps.Registry, deps.Syncer)
	mux.HandleFunc("GET /api/v1/connectors", connectors.List)
	mux.HandleFunc("POST /api/v1/connectors/{platform}/test", connectors.Test)

	sync := NewSyncHandler(deps.Syncer, deps.Store)
	mux.HandleFunc("POST /api/v1/sync/{platform}", sync.Run)
	mux.HandleFunc("GET /api/v1/sync/history", sync.History)

	users := NewUsersHandler(deps.Store, deps.Config)
	mux.HandleFunc("GET /api/v1/users", users.List)
	mux.HandleFunc("GET /api/v1/users/high-risk", users.HighRisk)

	csv := NewCSVHandler(deps.Syncer)
	mux.HandleFunc("POST /api/v1/csv/process", csv.Process)
	mux.HandleFunc("GET /api/v1/csv/templates", csv.ListTemplates)
	mux.HandleFunc("GET /api/v1/csv/templates/{id}", csv.DownloadTemplate)

	creds := NewCredentialsHandler(deps.Credentials)
	mux.HandleFunc("GET /api/v1/credentials", creds.List)
	mux.HandleFunc("POST /api/v1/credentials", creds.Create)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", creds.Delete)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}
