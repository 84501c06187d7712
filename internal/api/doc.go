// Package api provides the JSON REST API server over the knowledge base.
//
// # Architecture
//
// The API server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux so they stay fast under rate limiting.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health: liveness, returns {"status":"ok"}
//   - GET /ready: readiness, pings the database and reports pool stats
//
// Search:
//   - POST /api/v1/documents/search: collection-scoped document search
//   - POST /api/v1/slack/search: paginated Slack thread search
//
// Ingestion:
//   - POST /api/v1/documents: ingest (or re-ingest) a document
//   - POST /api/v1/slack/messages: ingest (or re-ingest) a Slack thread
//
// Collections:
//   - POST   /api/v1/collections: create
//   - GET    /api/v1/collections: list (optional ?status=)
//   - GET    /api/v1/collections/{id}: get by ID
//   - PATCH  /api/v1/collections/{id}: partial update / soft-delete
//   - DELETE /api/v1/collections/{id}/documents/{documentID}: unmap a document
//
// DELETE on a mapping soft-deletes it; no endpoint hard-deletes anything.
//
// # Error Handling
//
// Errors use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Codes are machine-readable (invalid_operator, not_found, rate_limited);
// messages are for humans.
//
// # Security
//
// The middleware stack enforces:
//   - Per-IP rate limiting (token bucket, 60 req/min burst)
//   - CORS with explicit origin allowlist
//   - Security headers (CSP, HSTS, X-Frame-Options, etc.)
package api
