package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/queries"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
)

// Searcher runs ranked searches.
type Searcher interface {
	Search(ctx context.Context, q queries.SearchQuery) (*queries.SearchResult, error)
}

// SearchHandler handles search requests
type SearchHandler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// Search handles POST /search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var q queries.SearchQuery
	if err := decodeJSON(r, &q); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	q.UserID, _ = middleware.GetUserID(r.Context())
	if err := validateStruct(q); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.searcher.Search(r.Context(), q)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
