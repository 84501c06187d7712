package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hades-kb/hades/internal/knowledge"
)

// collectionHandler holds dependencies for the collection CRUD endpoints.
type collectionHandler struct {
	documents *knowledge.DocumentClient
	logger    *slog.Logger
}

// createCollectionRequest is the body of POST /api/v1/collections.
type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// createCollection handles POST /api/v1/collections.
func (h *collectionHandler) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "missing_name", "name is required", h.logger)
		return
	}

	coll, err := h.documents.CreateCollection(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("creating collection", "error", err, "name", req.Name)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create collection", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, coll, h.logger)
}

// listCollections handles GET /api/v1/collections?status=active.
func (h *collectionHandler) listCollections(w http.ResponseWriter, r *http.Request) {
	status := knowledge.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid_status", "status must be active or inactive", h.logger)
		return
	}

	colls, err := h.documents.ListCollections(r.Context(), status)
	if err != nil {
		h.logger.Error("listing collections", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list collections", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"collections": colls,
		"count":       len(colls),
	}, h.logger)
}

// getCollection handles GET /api/v1/collections/{id}.
func (h *collectionHandler) getCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	coll, err := h.documents.GetCollection(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		h.logger.Error("getting collection", "error", err, "collection_id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get collection", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, coll, h.logger)
}

// updateCollectionRequest is the body of PATCH /api/v1/collections/{id}.
// Omitted fields are left unchanged.
type updateCollectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// updateCollection handles PATCH /api/v1/collections/{id}.
// Setting status to inactive is the soft-delete path; the collection and
// its mappings survive but stop participating in searches.
func (h *collectionHandler) updateCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "malformed request body", h.logger)
		return
	}

	var status *knowledge.Status
	if req.Status != nil {
		s := knowledge.Status(*req.Status)
		if !s.Valid() {
			WriteError(w, http.StatusBadRequest, "invalid_status", "status must be active or inactive", h.logger)
			return
		}
		status = &s
	}

	coll, err := h.documents.UpdateCollection(r.Context(), id, req.Name, req.Description, status)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		h.logger.Error("updating collection", "error", err, "collection_id", id)
		WriteError(w, http.StatusInternalServerError, "update_failed", "failed to update collection", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, coll, h.logger)
}

// removeDocument handles DELETE /api/v1/collections/{id}/documents/{documentID}.
// The mapping is soft-deleted, never removed.
func (h *collectionHandler) removeDocument(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("id")
	documentID, err := strconv.ParseInt(r.PathValue("documentID"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_document_id", "document id must be an integer", h.logger)
		return
	}

	if err := h.documents.RemoveFromCollection(r.Context(), collectionID, documentID); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "mapping not found", h.logger)
			return
		}
		h.logger.Error("removing document from collection",
			"error", err, "collection_id", collectionID, "document_id", documentID)
		WriteError(w, http.StatusInternalServerError, "remove_failed", "failed to remove document from collection", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
