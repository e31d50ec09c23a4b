package handler

import (
	"net/http"

	"sparrowvision/internal/config"
)

func statusHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := "development"
		if cfg != nil {
			env = cfg.Environment
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"service":     "sparrowvision",
			"version":     "0.1.0",
			"status":      "operational",
			"environment": env,
		})
	}
}
