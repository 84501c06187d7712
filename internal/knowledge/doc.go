// Package knowledge implements the vector-similarity knowledge base:
// chunked document and Slack-thread embeddings stored in PostgreSQL +
// pgvector, nearest-neighbor retrieval with a selectable distance
// operator and similarity threshold, and the client facades the HTTP
// layer calls.
//
// # Architecture
//
//	DocumentClient / SlackClient (facades)
//	     |
//	     +-- chunk.Chunker        (token-bounded overlapping windows)
//	     +-- Embedder             (query/chunk vectors, fixed 768 dims)
//	     +-- DocumentStore        (collection-scoped vector search)
//	     +-- SlackStore           (per-thread dedup + query audit trail)
//	     +-- page.Paginate        (Slack result paging)
//
// # Soft deletion
//
// Nothing in this schema is hard-deleted. Collections, documents,
// mappings and embeddings carry a two-state Status; re-ingestion
// invalidates old embeddings instead of removing them, and searches
// only ever consider rows whose entire status chain is active.
//
// # Consistency model
//
// Ingestion is non-transactional: parent upsert, each chunk
// insert and the mapping upsert commit independently. Concurrent
// ingests of the same natural key interleave with last-write-wins
// metadata; both embedding sets may transiently be active.
package knowledge
