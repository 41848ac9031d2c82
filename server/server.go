package server

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Service wires the cleanup pipeline to its storage collaborators. The
// collaborators are interfaces so tests can substitute fakes; in production
// all three are the same S3Store.
type Service struct {
	Lister  ObjectLister
	Deleter BatchDeleter
	Fetcher ConfigFetcher

	Bucket          string
	RetentionConfig string
	Concurrency     int
	APIToken        string
}

func (s *Service) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		token := strings.TrimPrefix(authHeader, bearerPrefix)

		if s.APIToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.APIToken)) == 1 {
			next.ServeHTTP(w, r)

			return
		}

		s.logAuthFailure(token)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

// logAuthFailure logs a rejected token without leaking it whole.
func (s *Service) logAuthFailure(token string) {
	tokenPreview := token
	if len(token) > 25 {
		tokenPreview = token[:10] + "..." + token[len(token)-10:]
	}

	slog.Warn("Authentication failed",
		"token_preview", tokenPreview,
		"token_length", len(token),
		"reason", "API token mismatch",
	)
}

func runServer(opts *options) error {
	store, err := newS3Store(opts)
	if err != nil {
		return fmt.Errorf("failed to create S3 store: %w", err)
	}

	service := &Service{
		Lister:  store,
		Deleter: store,
		Fetcher: store,

		Bucket:          opts.Bucket,
		RetentionConfig: opts.RetentionConfig,
		Concurrency:     opts.Concurrency,
		APIToken:        opts.APIToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", service.HealthCheckHandler)
	mux.HandleFunc("POST /api/cleanup", service.AuthMiddleware(service.CleanupHandler))

	server := &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 1 * time.Second,
	}

	slog.Info("Starting HTTP server", "address", opts.HTTPAddr)

	if err = server.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
