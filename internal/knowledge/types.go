package knowledge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the fixed embedding dimensionality across the
// schema and the embedder. The pgvector columns in db/migrations declare
// vector(768); gemini-embedding-001 is truncated to match via
// OutputDimensionality (Matryoshka Representation Learning).
const VectorDimension int32 = 768

// Status is the two-state soft-delete tag carried by collections,
// documents, mappings and embeddings. Rows are never hard-deleted;
// status flips to inactive instead.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// NewCollectionID generates a collection identifier in the
// <uuid>_<unix-millis> form used across the schema.
func NewCollectionID() string {
	return fmt.Sprintf("%s_%d", uuid.New(), time.Now().UnixMilli())
}

// DocumentCollection is a named, status-tagged grouping of documents.
type DocumentCollection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentInformation is one logical source file, unique by storage
// path. Re-ingesting the same path reuses the row, invalidates its
// prior embeddings and bumps LastUpdated.
type DocumentInformation struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	FileType    string    `json:"file_type"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// SlackChatEntry is one message of a thread's raw chat history.
type SlackChatEntry struct {
	Text string `json:"text"`
	User string `json:"user"`
}

// SlackMessage is one logical Slack thread, unique on
// (channel_id, thread_ts).
type SlackMessage struct {
	ID         int64            `json:"id"`
	ChannelID  string           `json:"channel_id"`
	ThreadTS   string           `json:"thread_ts"`
	Summary    string           `json:"summary"`
	History    []SlackChatEntry `json:"history"`
	IsEmbedded bool             `json:"is_embedded"`
	CreatedAt  time.Time        `json:"created_at"`
}

// EmbeddingMatch is one ranked row returned by a nearest-neighbor
// query. Similarity is the sign-corrected score (higher is closer)
// regardless of the operator used. Vector is populated only by the
// Slack store, which needs the stored vector for audit re-scoring.
type EmbeddingMatch struct {
	EmbeddingID int64
	ParentID    int64
	Snippet     string
	TokenCount  int
	Similarity  float64
	Vector      []float32
}

// DocumentResult is one hydrated document search hit.
type DocumentResult struct {
	Snippet    string              `json:"snippet"`
	Similarity float64             `json:"similarity"`
	Document   DocumentInformation `json:"document"`
}

// SlackResult is one hydrated Slack search hit. Similarity is the
// ranking score from the store; AuditScore is the client-side
// recomputation persisted to the query audit trail.
type SlackResult struct {
	Snippet    string       `json:"snippet"`
	Similarity float64      `json:"similarity"`
	AuditScore float64      `json:"audit_score"`
	Message    SlackMessage `json:"message"`
}
