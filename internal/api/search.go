package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hades-kb/hades/internal/knowledge"
	"github.com/hades-kb/hades/internal/page"
)

// maxSearchQueryLength is the maximum allowed search query length in bytes.
const maxSearchQueryLength = 1000

// searchHandler holds dependencies for the search endpoints.
type searchHandler struct {
	documents *knowledge.DocumentClient
	slack     *knowledge.SlackClient
	logger    *slog.Logger
}

// documentSearchRequest is the body of POST /api/v1/documents/search.
type documentSearchRequest struct {
	Query         string   `json:"query"`
	CollectionIDs []string `json:"collection_ids"`
	Operator      string   `json:"operator"`
	Threshold     *float64 `json:"threshold"`
	Limit         int      `json:"limit"`
}

// searchDocuments handles POST /api/v1/documents/search.
func (h *searchHandler) searchDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}
	if len(req.Query) > maxSearchQueryLength {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	params := knowledge.DocumentSearchParams{
		Query:         req.Query,
		CollectionIDs: req.CollectionIDs,
		Operator:      knowledge.Operator(req.Operator),
		Limit:         req.Limit,
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}

	results, err := h.documents.Search(r.Context(), params)
	if err != nil {
		if errors.Is(err, knowledge.ErrInvalidOperator) {
			WriteError(w, http.StatusBadRequest, "invalid_operator", err.Error(), h.logger)
			return
		}
		h.logger.Error("searching documents", "error", err, "query_len", len(req.Query))
		WriteError(w, http.StatusInternalServerError, "search_failed", "failed to search documents", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	}, h.logger)
}

// slackSearchRequest is the body of POST /api/v1/slack/search.
type slackSearchRequest struct {
	Query     string   `json:"query"`
	Operator  string   `json:"operator"`
	Threshold *float64 `json:"threshold"`
	Limit     int      `json:"limit"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
}

// searchSlack handles POST /api/v1/slack/search.
func (h *searchHandler) searchSlack(w http.ResponseWriter, r *http.Request) {
	var req slackSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}
	if len(req.Query) > maxSearchQueryLength {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	params := knowledge.SlackSearchParams{
		Query:    req.Query,
		Operator: knowledge.Operator(req.Operator),
		Limit:    req.Limit,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}

	result, err := h.slack.Search(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, knowledge.ErrInvalidOperator):
			WriteError(w, http.StatusBadRequest, "invalid_operator", err.Error(), h.logger)
		case errors.Is(err, page.ErrPagination):
			WriteError(w, http.StatusBadRequest, "invalid_pagination", err.Error(), h.logger)
		default:
			h.logger.Error("searching slack messages", "error", err, "query_len", len(req.Query))
			WriteError(w, http.StatusInternalServerError, "search_failed", "failed to search slack messages", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, result, h.logger)
}
