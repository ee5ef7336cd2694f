package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
)

// Reindexer rebuilds a user's search indexes from the note repository.
type Reindexer interface {
	ReindexUser(ctx context.Context, userID string) (int, error)
}

// IndexHandler handles index maintenance requests
type IndexHandler struct {
	indexer Reindexer
	logger  *zap.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(indexer Reindexer, logger *zap.Logger) *IndexHandler {
	return &IndexHandler{indexer: indexer, logger: logger}
}

// Rebuild handles POST /index/rebuild
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	indexed, err := h.indexer.ReindexUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "indexed": indexed})
}
