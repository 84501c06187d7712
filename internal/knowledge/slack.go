package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hades-kb/hades/internal/chunk"
	"github.com/hades-kb/hades/internal/page"
)

// SlackClient is the retrieval facade for Slack threads. On top of the
// document pipeline it adds per-thread result dedup (done in the
// store), page slicing over the ranked thread ids, and the query audit
// trail.
//
// SlackClient is safe for concurrent use.
type SlackClient struct {
	store    *SlackStore
	embedder Embedder
	chunker  *chunk.Chunker
	logger   *slog.Logger
}

// NewSlackClient creates a SlackClient.
func NewSlackClient(store *SlackStore, embedder Embedder, chunker *chunk.Chunker, logger *slog.Logger) (*SlackClient, error) {
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
	return &SlackClient{store: store, embedder: embedder, chunker: chunker, logger: logger}, nil
}

// SlackSearchParams scope a Slack similarity search.
type SlackSearchParams struct {
	Query     string
	Operator  Operator
	Threshold float64
	Limit     int
	Page      int
	PageSize  int
}

// SlackSearchPage is one page of hydrated Slack search results.
type SlackSearchPage struct {
	Results    []SlackResult `json:"results"`
	Pagination page.Metadata `json:"pagination"`
}

// Search embeds the normalized query, runs the deduplicated
// nearest-neighbor query, hydrates thread metadata in one batched
// lookup, records the query audit trail, and pages over the ranked
// thread-id list.
//
// The audit score for each result is recomputed client-side with
// InnerProductScore over the stored chunk vector, the same formula the
// store's inner-product ranking evaluates in SQL.
func (c *SlackClient) Search(ctx context.Context, p SlackSearchParams) (*SlackSearchPage, error) {
	if strings.TrimSpace(p.Query) == "" {
		return &SlackSearchPage{Results: []SlackResult{}}, nil
	}

	op := p.Operator
	if op == "" {
		op = DefaultOperator
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultTopK
	}
	pageNum := p.Page
	if pageNum <= 0 {
		pageNum = 1
	}

	query := NormalizeQuery(p.Query)
	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.logger.Error("embedding slack query", "error", err)
		return nil, embedErr("embedding slack query", err)
	}

	matches, err := c.store.QueryNearest(ctx, vector, op, p.Threshold, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &SlackSearchPage{Results: []SlackResult{}}, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ParentID
	}
	messages, err := c.store.GetMessagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Hydrate in rank order, dropping orphans, recomputing the audit
	// score from the stored vector.
	results := make([]SlackResult, 0, len(matches))
	audit := make([]QueryAuditEntry, 0, len(matches))
	for _, m := range matches {
		msg, ok := messages[m.ParentID]
		if !ok {
			c.logger.Debug("dropping match with missing parent message",
				"embedding_id", m.EmbeddingID, "message_id", m.ParentID)
			continue
		}
		score := InnerProductScore(vector, m.Vector)
		results = append(results, SlackResult{
			Snippet:    m.Snippet,
			Similarity: m.Similarity,
			AuditScore: score,
			Message:    msg,
		})
		audit = append(audit, QueryAuditEntry{MessageID: msg.ID, Similarity: score})
	}

	if _, err := c.store.RecordQueryAudit(ctx, query, audit); err != nil {
		return nil, err
	}

	// Page over the hydrated, deduplicated thread ids.
	rankedIDs := make([]int64, len(results))
	byID := make(map[int64]SlackResult, len(results))
	for i, r := range results {
		rankedIDs[i] = r.Message.ID
		byID[r.Message.ID] = r
	}
	pageIDs, meta, err := page.Paginate(rankedIDs, pageNum, pageSize)
	if err != nil {
		return nil, err
	}

	paged := make([]SlackResult, 0, len(pageIDs))
	for _, id := range pageIDs {
		paged = append(paged, byID[id])
	}

	c.logger.Debug("slack search complete",
		"matches", len(matches), "results", len(results),
		"page", meta.CurrentPage, "total_pages", meta.TotalPages)
	return &SlackSearchPage{Results: paged, Pagination: meta}, nil
}

// SlackIngestParams describe one thread ingestion.
type SlackIngestParams struct {
	ChannelID string
	ThreadTS  string
	Summary   string
	History   []SlackChatEntry
}

// Ingest upserts the thread row keyed by (channel, thread), soft-
// invalidates embeddings from a prior ingestion, chunks the summary,
// embeds and inserts each chunk in order, then marks the thread
// embedded.
//
// Like document ingestion this is non-transactional best-effort;
// partial chunk sets survive a mid-pipeline failure.
func (c *SlackClient) Ingest(ctx context.Context, p SlackIngestParams) (*SlackMessage, error) {
	if p.ChannelID == "" || p.ThreadTS == "" {
		return nil, fmt.Errorf("%w: channel id and thread timestamp are required", ErrIngest)
	}

	msg, created, err := c.store.UpsertMessage(ctx, p.ChannelID, p.ThreadTS, p.Summary, p.History)
	if err != nil {
		return nil, ingestErr("upserting slack message", err)
	}
	if !created {
		if _, err := c.store.InvalidateEmbeddings(ctx, msg.ID); err != nil {
			return nil, ingestErr("invalidating prior embeddings", err)
		}
	}

	chunks, err := c.chunker.Chunk(p.Summary)
	if err != nil {
		return nil, ingestErr("chunking summary", err)
	}

	for i, text := range chunks {
		vector, embErr := c.embedder.Embed(ctx, text)
		if embErr != nil {
			c.logger.Error("embedding slack chunk",
				"message_id", msg.ID, "chunk", i, "error", embErr)
			return nil, ingestErr(fmt.Sprintf("embedding chunk %d", i), embErr)
		}
		if _, insErr := c.store.InsertEmbedding(ctx, msg.ID, vector, chunk.EstimateTokens(text), text); insErr != nil {
			return nil, ingestErr(fmt.Sprintf("inserting chunk %d", i), insErr)
		}
	}

	if err := c.store.MarkEmbedded(ctx, msg.ID); err != nil {
		return nil, ingestErr("marking message embedded", err)
	}
	msg.IsEmbedded = true

	c.logger.Info("ingested slack thread",
		"message_id", msg.ID, "channel_id", msg.ChannelID,
		"chunks", len(chunks), "created", created)
	return msg, nil
}
