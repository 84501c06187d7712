package api

import (
	"log/slog"
	"net/http"

	"github.com/hades-kb/hades/internal/knowledge"
)

// ingestHandler holds dependencies for the ingestion endpoints.
type ingestHandler struct {
	documents *knowledge.DocumentClient
	slack     *knowledge.SlackClient
	logger    *slog.Logger
}

// documentIngestRequest is the body of POST /api/v1/documents.
type documentIngestRequest struct {
	FileName     string `json:"file_name"`
	StoragePath  string `json:"storage_path"`
	FileType     string `json:"file_type"`
	Content      string `json:"content"`
	CollectionID string `json:"collection_id"`
}

// ingestDocument handles POST /api/v1/documents.
// Re-posting the same storage_path re-ingests the document: prior
// embeddings are invalidated and fresh chunks are embedded.
func (h *ingestHandler) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req documentIngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}
	if req.StoragePath == "" {
		WriteError(w, http.StatusBadRequest, "missing_storage_path", "storage_path is required", h.logger)
		return
	}
	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, "missing_content", "content is required", h.logger)
		return
	}

	doc, err := h.documents.Ingest(r.Context(), knowledge.DocumentIngestParams{
		FileName:     req.FileName,
		StoragePath:  req.StoragePath,
		FileType:     req.FileType,
		Content:      req.Content,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		h.logger.Error("ingesting document", "error", err, "storage_path", req.StoragePath)
		WriteError(w, http.StatusInternalServerError, "ingest_failed", "failed to ingest document", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, doc, h.logger)
}

// slackIngestRequest is the body of POST /api/v1/slack/messages.
type slackIngestRequest struct {
	ChannelID string                     `json:"channel_id"`
	ThreadTS  string                     `json:"thread_ts"`
	Summary   string                     `json:"summary"`
	History   []knowledge.SlackChatEntry `json:"history"`
}

// ingestSlackMessage handles POST /api/v1/slack/messages.
// (channel_id, thread_ts) is the natural key; re-posting a thread
// replaces its summary, history and embeddings.
func (h *ingestHandler) ingestSlackMessage(w http.ResponseWriter, r *http.Request) {
	var req slackIngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}
	if req.ChannelID == "" || req.ThreadTS == "" {
		WriteError(w, http.StatusBadRequest, "missing_thread_key", "channel_id and thread_ts are required", h.logger)
		return
	}
	if req.Summary == "" {
		WriteError(w, http.StatusBadRequest, "missing_summary", "summary is required", h.logger)
		return
	}

	msg, err := h.slack.Ingest(r.Context(), knowledge.SlackIngestParams{
		ChannelID: req.ChannelID,
		ThreadTS:  req.ThreadTS,
		Summary:   req.Summary,
		History:   req.History,
	})
	if err != nil {
		h.logger.Error("ingesting slack message", "error", err, "channel_id", req.ChannelID, "thread_ts", req.ThreadTS)
		WriteError(w, http.StatusInternalServerError, "ingest_failed", "failed to ingest slack message", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, msg, h.logger)
}
