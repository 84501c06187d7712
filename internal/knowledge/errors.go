package knowledge

import (
	"errors"
	"fmt"
)

// Sentinel errors for knowledge operations. Part of the public API;
// check with errors.Is().
//
// Example:
//
//	doc, err := client.Ingest(ctx, params)
//	if errors.Is(err, knowledge.ErrEmbedder) {
//	    // Embedding provider failed; retry policy lives with the caller.
//	}
var (
	// ErrNotFound indicates the requested row does not exist.
	// Zero-row search results are NOT errors; only point lookups
	// of a specific id return ErrNotFound.
	ErrNotFound = errors.New("not found")

	// ErrStore indicates a persistence read/write failed.
	ErrStore = errors.New("store operation failed")

	// ErrEmbedder indicates the embedding provider failed.
	ErrEmbedder = errors.New("embedding provider failed")

	// ErrIngest wraps failures in the ingestion pipeline. Chunks
	// inserted before the failure are NOT rolled back.
	ErrIngest = errors.New("ingestion failed")

	// ErrInvalidOperator indicates an unknown distance operator token.
	ErrInvalidOperator = errors.New("invalid distance operator")
)

// storeErr wraps a persistence failure with its operation context so
// callers can match ErrStore while the driver error stays in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// embedErr wraps an embedding-provider failure.
func embedErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrEmbedder, err)
}

// ingestErr wraps an ingestion-pipeline failure.
func ingestErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIngest, err)
}
