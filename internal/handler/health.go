package handler

import (
	"log"
	"net/http"

	"sparrowvision/internal/database"
)

// NewHealthHandler reports service and database health. A nil db (tests,
// CSV-only deployments) reports healthy without a connectivity check.
func NewHealthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				log.Printf("health check failed: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "degraded",
					"database": "unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
