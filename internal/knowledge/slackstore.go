package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// maxQueryAuditMappings caps how many (query, message, score) rows are
// recorded per search. Fixed design limit, not configurable.
const maxQueryAuditMappings = 5

// slackMessageCols is the standard SELECT column list for scanMessage.
const slackMessageCols = `id, channel_id, thread_ts, summary, chat_history, is_embedded, created_at`

// SlackStore persists Slack thread summaries and their chunk
// embeddings, plus the query audit trail, backed by PostgreSQL +
// pgvector.
//
// SlackStore is safe for concurrent use by multiple goroutines.
type SlackStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSlackStore creates a SlackStore.
func NewSlackStore(pool *pgxpool.Pool, logger *slog.Logger) (*SlackStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackStore{pool: pool, logger: logger}, nil
}

// UpsertMessage creates the thread row for (channelID, threadTS), or
// refreshes summary and chat history on the existing row. At most one
// row exists per (channel_id, thread_ts). The returned bool reports
// whether a new row was created.
//
// is_embedded resets to false on refresh; MarkEmbedded flips it back
// once the new embeddings are in place.
func (s *SlackStore) UpsertMessage(ctx context.Context, channelID, threadTS, summary string, history []SlackChatEntry) (*SlackMessage, bool, error) {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling chat history: %w", err)
	}

	m := &SlackMessage{}
	var created bool
	var rawHistory []byte
	err = s.pool.QueryRow(ctx,
		`INSERT INTO slack_message_information (channel_id, thread_ts, summary, chat_history, is_embedded)
		 VALUES ($1, $2, $3, $4, false)
		 ON CONFLICT (channel_id, thread_ts) DO UPDATE
		 SET summary = EXCLUDED.summary,
		     chat_history = EXCLUDED.chat_history,
		     is_embedded = false,
		     updated_at = now()
		 RETURNING `+slackMessageCols+`, (xmax = 0)`,
		channelID, threadTS, summary, historyJSON,
	).Scan(&m.ID, &m.ChannelID, &m.ThreadTS, &m.Summary, &rawHistory, &m.IsEmbedded, &m.CreatedAt, &created)
	if err != nil {
		s.logger.Error("upserting slack message", "channel_id", channelID, "thread_ts", threadTS, "error", err)
		return nil, false, storeErr("upserting slack message", err)
	}

	if err := json.Unmarshal(rawHistory, &m.History); err != nil {
		s.logger.Warn("failed to parse chat history", "message_id", m.ID, "error", err)
		m.History = nil
	}

	s.logger.Debug("upserted slack message", "id", m.ID, "channel_id", channelID, "created", created)
	return m, created, nil
}

// MarkEmbedded flips is_embedded after a thread's chunks are inserted.
func (s *SlackStore) MarkEmbedded(ctx context.Context, messageID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE slack_message_information SET is_embedded = true, updated_at = now() WHERE id = $1`,
		messageID,
	)
	if err != nil {
		return storeErr("marking slack message embedded", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("slack message %d: %w", messageID, ErrNotFound)
	}
	return nil
}

// GetMessage retrieves a thread by (channelID, threadTS).
// Returns ErrNotFound if no such thread exists.
func (s *SlackStore) GetMessage(ctx context.Context, channelID, threadTS string) (*SlackMessage, error) {
	m := &SlackMessage{}
	var rawHistory []byte
	err := s.pool.QueryRow(ctx,
		`SELECT `+slackMessageCols+` FROM slack_message_information
		 WHERE channel_id = $1 AND thread_ts = $2`,
		channelID, threadTS,
	).Scan(&m.ID, &m.ChannelID, &m.ThreadTS, &m.Summary, &rawHistory, &m.IsEmbedded, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slack message %s/%s: %w", channelID, threadTS, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("getting slack message", err)
	}

	if err := json.Unmarshal(rawHistory, &m.History); err != nil {
		s.logger.Warn("failed to parse chat history", "message_id", m.ID, "error", err)
		m.History = nil
	}
	return m, nil
}

// GetMessagesByIDs batch-loads threads for a result set. Missing ids
// are absent from the returned map.
func (s *SlackStore) GetMessagesByIDs(ctx context.Context, ids []int64) (map[int64]SlackMessage, error) {
	messages := make(map[int64]SlackMessage, len(ids))
	if len(ids) == 0 {
		return messages, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+slackMessageCols+` FROM slack_message_information WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, storeErr("loading slack messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m SlackMessage
		var rawHistory []byte
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.ThreadTS, &m.Summary, &rawHistory, &m.IsEmbedded, &m.CreatedAt); err != nil {
			return nil, storeErr("scanning slack message", err)
		}
		if err := json.Unmarshal(rawHistory, &m.History); err != nil {
			s.logger.Warn("failed to parse chat history", "message_id", m.ID, "error", err)
			m.History = nil
		}
		messages[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating slack messages", err)
	}
	return messages, nil
}

// InsertEmbedding durably writes one chunk embedding for a thread
// summary. No dedup happens at this layer.
func (s *SlackStore) InsertEmbedding(ctx context.Context, messageID int64, vector []float32, tokenCount int, snippet string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO slack_message_embeddings (message_id, embedding, token_count, chunk_text, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		messageID, pgvector.NewVector(vector), tokenCount, snippet, StatusActive,
	).Scan(&id)
	if err != nil {
		s.logger.Error("inserting slack embedding", "message_id", messageID, "error", err)
		return 0, storeErr("inserting slack embedding", err)
	}
	return id, nil
}

// InvalidateEmbeddings soft-invalidates all active embeddings of a
// thread. Returns the number of rows invalidated.
func (s *SlackStore) InvalidateEmbeddings(ctx context.Context, messageID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE slack_message_embeddings SET status = $2
		 WHERE message_id = $1 AND status = $3`,
		messageID, StatusInactive, StatusActive,
	)
	if err != nil {
		s.logger.Error("invalidating slack embeddings", "message_id", messageID, "error", err)
		return 0, storeErr("invalidating slack embeddings", err)
	}

	s.logger.Debug("invalidated slack embeddings", "message_id", messageID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// QueryNearest runs a nearest-neighbor search over active Slack
// embeddings. There is no collection scoping; instead the ranked rows
// are deduplicated by parent message id, keeping only the first
// (highest-ranked) chunk per thread, so a thread never appears twice in
// one result set.
//
// The stored vector is returned with each match so the client can
// recompute the audit score. An empty query vector returns an empty
// result without touching the database.
func (s *SlackStore) QueryNearest(ctx context.Context, vector []float32, op Operator, threshold float64, limit int) ([]EmbeddingMatch, error) {
	if len(vector) == 0 {
		return []EmbeddingMatch{}, nil
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	limit = clampTopK(limit)

	sim := op.similarityExpr("embedding", "$1")
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.message_id, e.chunk_text, e.token_count, e.embedding, `+sim+` AS similarity
		 FROM slack_message_embeddings e
		 WHERE e.status = $2
		   AND `+sim+` >= $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		pgvector.NewVector(vector), StatusActive, threshold, limit,
	)
	if err != nil {
		return nil, storeErr("querying nearest slack embeddings", err)
	}
	defer rows.Close()

	var matches []EmbeddingMatch
	seen := make(map[int64]struct{})
	for rows.Next() {
		var m EmbeddingMatch
		var vec pgvector.Vector
		if err := rows.Scan(&m.EmbeddingID, &m.ParentID, &m.Snippet, &m.TokenCount, &vec, &m.Similarity); err != nil {
			return nil, storeErr("scanning slack embedding match", err)
		}
		if _, dup := seen[m.ParentID]; dup {
			continue
		}
		seen[m.ParentID] = struct{}{}
		m.Vector = vec.Slice()
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating slack embedding matches", err)
	}
	return matches, nil
}

// QueryAuditEntry is one (message, score) pair to record against a
// historical query.
type QueryAuditEntry struct {
	MessageID  int64
	Similarity float64
}

// RecordQueryAudit persists the audit trail for one search: a query
// record with its match count, then up to maxQueryAuditMappings
// mapping rows linking the query to the messages it matched and their
// client-recomputed similarity scores.
func (s *SlackStore) RecordQueryAudit(ctx context.Context, queryText string, entries []QueryAuditEntry) (int64, error) {
	var queryID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO slack_query_records (query_text, match_count)
		 VALUES ($1, $2)
		 RETURNING id`,
		queryText, len(entries),
	).Scan(&queryID)
	if err != nil {
		s.logger.Error("recording query audit", "error", err)
		return 0, storeErr("recording query audit", err)
	}

	if len(entries) > maxQueryAuditMappings {
		entries = entries[:maxQueryAuditMappings]
	}
	for _, e := range entries {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO slack_query_mappings (query_id, message_id, similarity)
			 VALUES ($1, $2, $3)`,
			queryID, e.MessageID, e.Similarity,
		); err != nil {
			s.logger.Error("recording query mapping",
				"query_id", queryID, "message_id", e.MessageID, "error", err)
			return queryID, storeErr("recording query mapping", err)
		}
	}

	s.logger.Debug("recorded query audit", "query_id", queryID, "mappings", len(entries))
	return queryID, nil
}
