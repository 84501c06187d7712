package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hades-kb/hades/internal/knowledge"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Documents   *knowledge.DocumentClient // Required
	Slack       *knowledge.SlackClient    // Required
	Pool        *pgxpool.Pool             // Optional: nil disables pool stats in /ready
	CORSOrigins []string                  // Allowed origins for CORS
	IsDev       bool                      // Disables HSTS header
	TrustProxy  bool                      // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int                       // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Documents == nil {
		return nil, errors.New("document client is required")
	}
	if cfg.Slack == nil {
		return nil, errors.New("slack client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &searchHandler{documents: cfg.Documents, slack: cfg.Slack, logger: logger}
	ih := &ingestHandler{documents: cfg.Documents, slack: cfg.Slack, logger: logger}
	ch := &collectionHandler{documents: cfg.Documents, logger: logger}

	mux := http.NewServeMux()

	// Search
	mux.HandleFunc("POST /api/v1/documents/search", sh.searchDocuments)
	mux.HandleFunc("POST /api/v1/slack/search", sh.searchSlack)

	// Ingestion
	mux.HandleFunc("POST /api/v1/documents", ih.ingestDocument)
	mux.HandleFunc("POST /api/v1/slack/messages", ih.ingestSlackMessage)

	// Collection CRUD (soft-delete via PATCH status)
	mux.HandleFunc("POST /api/v1/collections", ch.createCollection)
	mux.HandleFunc("GET /api/v1/collections", ch.listCollections)
	mux.HandleFunc("GET /api/v1/collections/{id}", ch.getCollection)
	mux.HandleFunc("PATCH /api/v1/collections/{id}", ch.updateCollection)
	mux.HandleFunc("DELETE /api/v1/collections/{id}/documents/{documentID}", ch.removeDocument)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
