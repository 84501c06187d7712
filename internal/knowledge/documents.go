package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hades-kb/hades/internal/chunk"
)

// queryNormalizer lower-casing happens separately; this removes newline
// runs entirely so multi-line queries embed as one line.
var queryNormalizer = strings.NewReplacer("\r", "", "\n", "")

// NormalizeQuery lower-cases query text and strips newlines, matching
// the normalization applied to ingested chunks so query and document
// vectors live in the same space.
func NormalizeQuery(query string) string {
	return queryNormalizer.Replace(strings.ToLower(query))
}

// DocumentClient is the retrieval facade for documents: it owns the
// embed query -> similarity search -> hydrate parent metadata pipeline
// and the chunk -> embed -> insert ingestion pipeline.
//
// All collaborators are injected at construction; DocumentClient holds
// no global state and is safe for concurrent use.
type DocumentClient struct {
	store    *DocumentStore
	embedder Embedder
	chunker  *chunk.Chunker
	logger   *slog.Logger
}

// NewDocumentClient creates a DocumentClient.
func NewDocumentClient(store *DocumentStore, embedder Embedder, chunker *chunk.Chunker, logger *slog.Logger) (*DocumentClient, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentClient{store: store, embedder: embedder, chunker: chunker, logger: logger}, nil
}

// DocumentSearchParams scope a document similarity search.
type DocumentSearchParams struct {
	Query         string
	CollectionIDs []string
	Operator      Operator
	Threshold     float64
	Limit         int
}

// Search embeds the normalized query once, runs the scoped
// nearest-neighbor query and hydrates document metadata in a single
// batched lookup. Matches whose parent document cannot be found are
// dropped silently.
//
// An empty query returns an empty result list with no embedding call
// and no store query.
func (c *DocumentClient) Search(ctx context.Context, p DocumentSearchParams) ([]DocumentResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return []DocumentResult{}, nil
	}

	op := p.Operator
	if op == "" {
		op = DefaultOperator
	}

	vector, err := c.embedder.Embed(ctx, NormalizeQuery(p.Query))
	if err != nil {
		c.logger.Error("embedding document query", "error", err)
		return nil, embedErr("embedding document query", err)
	}

	matches, err := c.store.QueryNearest(ctx, vector, op, p.Threshold, p.CollectionIDs, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []DocumentResult{}, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ParentID
	}
	documents, err := c.store.GetDocumentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]DocumentResult, 0, len(matches))
	for _, m := range matches {
		doc, ok := documents[m.ParentID]
		if !ok {
			c.logger.Debug("dropping match with missing parent document",
				"embedding_id", m.EmbeddingID, "document_id", m.ParentID)
			continue
		}
		results = append(results, DocumentResult{
			Snippet:    m.Snippet,
			Similarity: m.Similarity,
			Document:   doc,
		})
	}

	c.logger.Debug("document search complete",
		"matches", len(matches), "results", len(results), "operator", string(op))
	return results, nil
}

// DocumentIngestParams describe one document ingestion.
type DocumentIngestParams struct {
	FileName     string
	StoragePath  string
	FileType     string
	Content      string
	CollectionID string
}

// Ingest upserts the document row keyed by storage path, soft-
// invalidates any embeddings from a prior ingestion, chunks the
// content, embeds and inserts each chunk in chunk order, and finally
// upserts the collection mapping.
//
// The sequence is deliberately non-transactional: each write commits
// independently, and chunks inserted before a mid-pipeline failure
// remain in place. Concurrent ingests of the same path interleave with
// last-write-wins metadata.
func (c *DocumentClient) Ingest(ctx context.Context, p DocumentIngestParams) (*DocumentInformation, error) {
	if p.StoragePath == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrIngest)
	}

	doc, created, err := c.store.UpsertDocument(ctx, p.FileName, p.StoragePath, p.FileType)
	if err != nil {
		return nil, ingestErr("upserting document", err)
	}
	if !created {
		if _, err := c.store.InvalidateEmbeddings(ctx, doc.ID); err != nil {
			return nil, ingestErr("invalidating prior embeddings", err)
		}
	}

	chunks, err := c.chunker.Chunk(p.Content)
	if err != nil {
		// Only invalid chunk configuration reaches here; splitter
		// failures fall back inside Chunk.
		return nil, ingestErr("chunking content", err)
	}

	for i, text := range chunks {
		vector, embErr := c.embedder.Embed(ctx, text)
		if embErr != nil {
			c.logger.Error("embedding document chunk",
				"document_id", doc.ID, "chunk", i, "error", embErr)
			return nil, ingestErr(fmt.Sprintf("embedding chunk %d", i), embErr)
		}
		if _, insErr := c.store.InsertEmbedding(ctx, doc.ID, vector, chunk.EstimateTokens(text), text); insErr != nil {
			return nil, ingestErr(fmt.Sprintf("inserting chunk %d", i), insErr)
		}
	}

	if p.CollectionID != "" {
		if err := c.store.UpsertMapping(ctx, p.CollectionID, doc.ID); err != nil {
			return nil, ingestErr("upserting collection mapping", err)
		}
	}

	c.logger.Info("ingested document",
		"document_id", doc.ID, "storage_path", doc.StoragePath,
		"chunks", len(chunks), "created", created)
	return doc, nil
}

// CreateCollection creates a new active collection.
func (c *DocumentClient) CreateCollection(ctx context.Context, name, description string) (*DocumentCollection, error) {
	return c.store.CreateCollection(ctx, name, description)
}

// GetCollection retrieves a collection by id.
func (c *DocumentClient) GetCollection(ctx context.Context, id string) (*DocumentCollection, error) {
	return c.store.GetCollection(ctx, id)
}

// ListCollections lists collections, optionally filtered by status.
func (c *DocumentClient) ListCollections(ctx context.Context, status Status) ([]DocumentCollection, error) {
	return c.store.ListCollections(ctx, status)
}

// UpdateCollection mutates name/description/status of a collection.
// Deactivation is the only form of deletion.
func (c *DocumentClient) UpdateCollection(ctx context.Context, id string, name, description *string, status *Status) (*DocumentCollection, error) {
	return c.store.UpdateCollection(ctx, id, name, description, status)
}

// RemoveFromCollection soft-removes a document from a collection by
// deactivating the mapping row.
func (c *DocumentClient) RemoveFromCollection(ctx context.Context, collectionID string, documentID int64) error {
	return c.store.UpdateMappingStatus(ctx, collectionID, documentID, StatusInactive)
}
