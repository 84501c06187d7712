package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Query limits for nearest-neighbor searches.
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// documentCols is the standard SELECT column list for scanDocuments.
const documentCols = `id, file_name, storage_path, file_type, status, last_updated`

// DocumentStore persists document collections, document metadata and
// chunk embeddings backed by PostgreSQL + pgvector.
//
// DocumentStore is safe for concurrent use by multiple goroutines.
type DocumentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(pool *pgxpool.Pool, logger *slog.Logger) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{pool: pool, logger: logger}, nil
}

// CreateCollection inserts a new active collection with a generated
// <uuid>_<unix-millis> identifier.
func (s *DocumentStore) CreateCollection(ctx context.Context, name, description string) (*DocumentCollection, error) {
	c := &DocumentCollection{ID: NewCollectionID()}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO document_collections (id, name, description, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, description, status, created_at, updated_at`,
		c.ID, name, description, StatusActive,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		s.logger.Error("creating collection", "name", name, "error", err)
		return nil, storeErr("creating collection", err)
	}

	s.logger.Debug("created collection", "id", c.ID, "name", c.Name)
	return c, nil
}

// GetCollection retrieves a collection by id.
// Returns ErrNotFound if no such collection exists.
func (s *DocumentStore) GetCollection(ctx context.Context, id string) (*DocumentCollection, error) {
	c := &DocumentCollection{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, status, created_at, updated_at
		 FROM document_collections WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("getting collection", err)
	}
	return c, nil
}

// ListCollections returns collections ordered by creation time, newest
// first. When status is non-empty, only rows with that status are
// returned. Zero rows is a valid empty result.
func (s *DocumentStore) ListCollections(ctx context.Context, status Status) ([]DocumentCollection, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status: %q", status)
		}
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, description, status, created_at, updated_at
			 FROM document_collections WHERE status = $1
			 ORDER BY created_at DESC`,
			status,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, description, status, created_at, updated_at
			 FROM document_collections
			 ORDER BY created_at DESC`,
		)
	}
	if err != nil {
		return nil, storeErr("listing collections", err)
	}
	defer rows.Close()

	var collections []DocumentCollection
	for rows.Next() {
		var c DocumentCollection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storeErr("scanning collection", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating collections", err)
	}
	return collections, nil
}

// UpdateCollection updates name, description and/or status of a
// collection. Nil fields are left unchanged. Collections are never
// deleted; deactivation sets status to inactive.
// Returns ErrNotFound if no such collection exists.
func (s *DocumentStore) UpdateCollection(ctx context.Context, id string, name, description *string, status *Status) (*DocumentCollection, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("invalid status: %q", *status)
	}

	c := &DocumentCollection{}
	err := s.pool.QueryRow(ctx,
		`UPDATE document_collections
		 SET name        = COALESCE($2, name),
		     description = COALESCE($3, description),
		     status      = COALESCE($4, status),
		     updated_at  = now()
		 WHERE id = $1
		 RETURNING id, name, description, status, created_at, updated_at`,
		id, name, description, status,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		s.logger.Error("updating collection", "id", id, "error", err)
		return nil, storeErr("updating collection", err)
	}

	s.logger.Debug("updated collection", "id", c.ID, "status", c.Status)
	return c, nil
}

// UpsertDocument creates the document row for storagePath, or refreshes
// file name, file type and last_updated on the existing row while
// reactivating it. At most one row exists per storage path. The
// returned bool reports whether a new row was created.
func (s *DocumentStore) UpsertDocument(ctx context.Context, fileName, storagePath, fileType string) (*DocumentInformation, bool, error) {
	d := &DocumentInformation{}
	var created bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO document_information (file_name, storage_path, file_type, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (storage_path) DO UPDATE
		 SET file_name = EXCLUDED.file_name,
		     file_type = EXCLUDED.file_type,
		     status = $4,
		     last_updated = now()
		 RETURNING `+documentCols+`, (xmax = 0)`,
		fileName, storagePath, fileType, StatusActive,
	).Scan(&d.ID, &d.FileName, &d.StoragePath, &d.FileType, &d.Status, &d.LastUpdated, &created)
	if err != nil {
		s.logger.Error("upserting document", "storage_path", storagePath, "error", err)
		return nil, false, storeErr("upserting document", err)
	}

	s.logger.Debug("upserted document", "id", d.ID, "storage_path", d.StoragePath, "created", created)
	return d, created, nil
}

// UpdateDocumentStatus flips a document's status.
// Returns ErrNotFound if no such document exists.
func (s *DocumentStore) UpdateDocumentStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status: %q", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE document_information SET status = $2, last_updated = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		s.logger.Error("updating document status", "id", id, "error", err)
		return storeErr("updating document status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetDocumentsByIDs batch-loads documents for a result set. Missing ids
// are simply absent from the returned map, and the caller drops orphaned
// matches.
func (s *DocumentStore) GetDocumentsByIDs(ctx context.Context, ids []int64) (map[int64]DocumentInformation, error) {
	docs := make(map[int64]DocumentInformation, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM document_information WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, storeErr("loading documents", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DocumentInformation
		if err := rows.Scan(&d.ID, &d.FileName, &d.StoragePath, &d.FileType, &d.Status, &d.LastUpdated); err != nil {
			return nil, storeErr("scanning document", err)
		}
		docs[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating documents", err)
	}
	return docs, nil
}

// InsertEmbedding durably writes one chunk embedding for a document.
// No dedup happens at this layer.
func (s *DocumentStore) InsertEmbedding(ctx context.Context, documentID int64, vector []float32, tokenCount int, snippet string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO document_embeddings (document_id, embedding, token_count, chunk_text, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		documentID, pgvector.NewVector(vector), tokenCount, snippet, StatusActive,
	).Scan(&id)
	if err != nil {
		s.logger.Error("inserting document embedding", "document_id", documentID, "error", err)
		return 0, storeErr("inserting document embedding", err)
	}
	return id, nil
}

// InvalidateEmbeddings soft-invalidates all active embeddings of a
// document. Called on re-ingestion; embedding rows are never deleted.
// Returns the number of rows invalidated.
func (s *DocumentStore) InvalidateEmbeddings(ctx context.Context, documentID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE document_embeddings SET status = $2
		 WHERE document_id = $1 AND status = $3`,
		documentID, StatusInactive, StatusActive,
	)
	if err != nil {
		s.logger.Error("invalidating document embeddings", "document_id", documentID, "error", err)
		return 0, storeErr("invalidating document embeddings", err)
	}

	s.logger.Debug("invalidated document embeddings", "document_id", documentID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// UpsertMapping links a document into a collection, creating the
// mapping row or reactivating a previously removed one. Ingesting the
// same document into the same collection twice never duplicates rows.
func (s *DocumentStore) UpsertMapping(ctx context.Context, collectionID string, documentID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_collection_mappings (collection_id, document_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection_id, document_id) DO UPDATE
		 SET status = $3, updated_at = now()`,
		collectionID, documentID, StatusActive,
	)
	if err != nil {
		s.logger.Error("upserting collection mapping",
			"collection_id", collectionID, "document_id", documentID, "error", err)
		return storeErr("upserting collection mapping", err)
	}
	return nil
}

// UpdateMappingStatus "removes" a document from a collection (or
// restores it) without deleting the mapping row.
func (s *DocumentStore) UpdateMappingStatus(ctx context.Context, collectionID string, documentID int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status: %q", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE document_collection_mappings SET status = $3, updated_at = now()
		 WHERE collection_id = $1 AND document_id = $2`,
		collectionID, documentID, status,
	)
	if err != nil {
		return storeErr("updating mapping status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mapping %s/%d: %w", collectionID, documentID, ErrNotFound)
	}
	return nil
}

// QueryNearest runs a nearest-neighbor search over active document
// embeddings, scoped to the given collections.
//
// The scope narrows in three stages before any vector comparison:
// active collections among collectionIDs, then active mappings in those
// collections, then active documents. An empty result at any stage
// short-circuits to an empty match list without running the vector
// query.
//
// An empty query vector returns an empty result without touching the
// database; that is the contract for "no query text provided".
func (s *DocumentStore) QueryNearest(ctx context.Context, vector []float32, op Operator, threshold float64, collectionIDs []string, limit int) ([]EmbeddingMatch, error) {
	if len(vector) == 0 {
		return []EmbeddingMatch{}, nil
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	limit = clampTopK(limit)

	// Stage 1: active collections within the caller's scope.
	activeCollections, err := s.activeCollectionIDs(ctx, collectionIDs)
	if err != nil {
		return nil, err
	}
	if len(activeCollections) == 0 {
		return []EmbeddingMatch{}, nil
	}

	// Stage 2: documents actively mapped into those collections.
	mappedDocs, err := s.activeMappedDocumentIDs(ctx, activeCollections)
	if err != nil {
		return nil, err
	}
	if len(mappedDocs) == 0 {
		return []EmbeddingMatch{}, nil
	}

	// Stage 3: drop documents that are themselves inactive.
	activeDocs, err := s.activeDocumentIDs(ctx, mappedDocs)
	if err != nil {
		return nil, err
	}
	if len(activeDocs) == 0 {
		return []EmbeddingMatch{}, nil
	}

	sim := op.similarityExpr("embedding", "$1")
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, chunk_text, token_count, `+sim+` AS similarity
		 FROM document_embeddings
		 WHERE status = $2
		   AND document_id = ANY($3)
		   AND `+sim+` >= $4
		 ORDER BY similarity DESC
		 LIMIT $5`,
		pgvector.NewVector(vector), StatusActive, activeDocs, threshold, limit,
	)
	if err != nil {
		return nil, storeErr("querying nearest document embeddings", err)
	}
	defer rows.Close()

	var matches []EmbeddingMatch
	for rows.Next() {
		var m EmbeddingMatch
		if err := rows.Scan(&m.EmbeddingID, &m.ParentID, &m.Snippet, &m.TokenCount, &m.Similarity); err != nil {
			return nil, storeErr("scanning embedding match", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating embedding matches", err)
	}
	return matches, nil
}

// activeCollectionIDs filters collectionIDs down to active collections.
func (s *DocumentStore) activeCollectionIDs(ctx context.Context, collectionIDs []string) ([]string, error) {
	if len(collectionIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM document_collections WHERE id = ANY($1) AND status = $2`,
		collectionIDs, StatusActive,
	)
	if err != nil {
		return nil, storeErr("filtering active collections", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scanning collection id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// activeMappedDocumentIDs returns document ids actively mapped into any
// of the given collections.
func (s *DocumentStore) activeMappedDocumentIDs(ctx context.Context, collectionIDs []string) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT document_id FROM document_collection_mappings
		 WHERE collection_id = ANY($1) AND status = $2`,
		collectionIDs, StatusActive,
	)
	if err != nil {
		return nil, storeErr("filtering active mappings", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scanning mapped document id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// activeDocumentIDs filters document ids down to active documents.
func (s *DocumentStore) activeDocumentIDs(ctx context.Context, documentIDs []int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM document_information WHERE id = ANY($1) AND status = $2`,
		documentIDs, StatusActive,
	)
	if err != nil {
		return nil, storeErr("filtering active documents", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scanning document id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// clampTopK bounds a caller-supplied result limit.
func clampTopK(limit int) int {
	if limit <= 0 {
		return DefaultTopK
	}
	if limit > MaxTopK {
		return MaxTopK
	}
	return limit
}
