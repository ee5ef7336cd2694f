package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/queries"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// GraphService answers graph reads and traversals.
type GraphService interface {
	GetNodeGraph(ctx context.Context, userID, noteID string, depth int) (*aggregates.GraphData, error)
	ExecuteGraphQuery(ctx context.Context, q queries.GraphQuery) (*aggregates.GraphData, error)
	GetUserGraph(ctx context.Context, userID string, includeTags bool) (*aggregates.GraphData, error)
	FindShortestPath(ctx context.Context, userID, sourceID, targetID string, directed bool) ([]string, error)
}

// GraphHandler handles graph-related HTTP requests
type GraphHandler struct {
	graphs GraphService
	logger *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graphs GraphService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{graphs: graphs, logger: logger}
}

// GetNodeGraph handles GET /notes/{noteID}/graph?depth=
func (h *GraphHandler) GetNodeGraph(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 1)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	data, err := h.graphs.GetNodeGraph(r.Context(), userID, chi.URLParam(r, "noteID"), depth)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

// GetUserGraph handles GET /graph?include_tags=
func (h *GraphHandler) GetUserGraph(w http.ResponseWriter, r *http.Request) {
	includeTags, err := queryBool(r, "include_tags", false)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	data, err := h.graphs.GetUserGraph(r.Context(), userID, includeTags)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

// PathResponse is an ordered note path; empty when the notes are disconnected.
type PathResponse struct {
	Path   []string `json:"path"`
	Length int      `json:"length"`
	Found  bool     `json:"found"`
}

// FindShortestPath handles GET /graph/path?source=&target=&directed=
func (h *GraphHandler) FindShortestPath(w http.ResponseWriter, r *http.Request) {
	source, target := r.URL.Query().Get("source"), r.URL.Query().Get("target")
	if source == "" || target == "" {
		respondError(w, r, h.logger, pkgerrors.NewValidationError("source and target are required"))
		return
	}
	directed, err := queryBool(r, "directed", false)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	path, err := h.graphs.FindShortestPath(r.Context(), userID, source, target, directed)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if path == nil {
		path = []string{}
	}
	respondJSON(w, http.StatusOK, PathResponse{
		Path:   path,
		Length: max(len(path)-1, 0),
		Found:  len(path) > 0,
	})
}

// ExecuteGraphQuery handles POST /graph/query
func (h *GraphHandler) ExecuteGraphQuery(w http.ResponseWriter, r *http.Request) {
	var q queries.GraphQuery
	if err := decodeJSON(r, &q); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	q.UserID, _ = middleware.GetUserID(r.Context())
	if err := validateStruct(q); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	data, err := h.graphs.ExecuteGraphQuery(r.Context(), q)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}
