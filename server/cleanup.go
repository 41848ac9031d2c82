package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/backsweep/backsweep/api"
)

// CleanupHandler handles the POST /api/cleanup endpoint. The request body is
// an opaque trigger payload and is ignored. The optional dry-run=true query
// parameter evaluates the policies without deleting anything.
//
// Response body:
//
//	{
//	  "message": "Backup cleanup completed",
//	  "total_deleted": 12,
//	  "total_failed": 0,
//	  "results": [
//	    {"folder": "databases/", "total_objects": 40, "objects_to_delete": 12, "deleted": 12, "failed": 0}
//	  ]
//	}
//
// Missing run configuration and invalid retention documents produce a 400
// with {"error": ...}; anything unexpected produces a 500 with
// {"error": "Internal server error", "message": ...}.
func (s *Service) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Received cleanup request", "method", r.Method, "url", r.URL)

	defer func() {
		if err := r.Body.Close(); err != nil {
			slog.Error("Failed to close request body", "error", err)
		}
	}()

	dryRun := r.URL.Query().Get("dry-run") == "true"

	if s.Bucket == "" {
		slog.Error("Missing bucket name")
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "BUCKET_NAME environment variable is required"})

		return
	}

	if s.RetentionConfig == "" {
		slog.Error("Missing retention config")
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "RETENTION_CONFIG environment variable is required"})

		return
	}

	policies, err := s.loadRetentionPolicies(r.Context(), s.RetentionConfig)
	if err != nil {
		if errors.Is(err, errInvalidConfig) {
			slog.Error("Invalid retention configuration", "error", err)
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})

			return
		}

		slog.Error("Failed to load retention configuration", "error", err)
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error", Message: err.Error()})

		return
	}

	if len(policies) == 0 {
		slog.Warn("No retention policies configured")

		// The no-policy response carries no totals, matching the success
		// schema only in message and results.
		writeJSON(w, http.StatusOK, struct {
			Message string             `json:"message"`
			Results []api.FolderResult `json:"results"`
		}{
			Message: "No retention policies configured",
			Results: []api.FolderResult{},
		})

		return
	}

	report := s.runCleanup(r.Context(), policies, dryRun)

	writeJSON(w, http.StatusOK, report)
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
