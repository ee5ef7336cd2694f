package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artgluhovskiy/vertex-sub001/infrastructure/config"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/di"
)

const testUser = "user-1"

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("EMBEDDING_DIMENSION", "64")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	container, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	return &apiClient{t: t, handler: container.HTTPHandler()}
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", testUser)
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *apiClient) createNote(title, content string) string {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/v1/notes", map[string]any{"title": title, "content": content})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	var note struct {
		ID string `json:"id"`
	}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &note))
	return note.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_RequiresUserHeader(t *testing.T) {
	// Arrange
	api := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	w := httptest.NewRecorder()

	// Act
	api.handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	// Arrange
	api := newAPI(t)
	api.do(http.MethodGet, "/health", nil)

	// Act
	w := api.do(http.MethodGet, "/metrics", nil)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `vertex_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_NoteLifecycle(t *testing.T) {
	// Arrange
	api := newAPI(t)
	id := api.createNote("Draft", "first words")
	path := "/api/v1/notes/" + id

	// Act
	got := api.do(http.MethodGet, path, nil)
	updated := api.do(http.MethodPut, path, map[string]any{"title": "Final", "content": "last words", "expected_version": 1})
	stale := api.do(http.MethodPut, path, map[string]any{"title": "Lost", "content": "overwritten", "expected_version": 1})
	malformed := api.do(http.MethodGet, "/api/v1/notes/not-a-uuid", nil)
	deleted := api.do(http.MethodDelete, path, nil)
	gone := api.do(http.MethodGet, path, nil)

	// Assert
	assert.Equal(t, http.StatusOK, got.Code)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	assert.Equal(t, "Final", decode[map[string]any](t, updated)["title"])
	assert.Equal(t, http.StatusConflict, stale.Code)
	assert.Equal(t, "VERSION_CONFLICT", decode[map[string]any](t, stale)["type"])
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Equal(t, http.StatusNoContent, deleted.Code)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestRouter_Search(t *testing.T) {
	// Arrange
	api := newAPI(t)
	id := api.createNote("Raft consensus", "leader election and log replication")
	api.createNote("Sourdough", "flour water salt")

	// Act
	hit := api.do(http.MethodPost, "/api/v1/search", map[string]any{"query": "raft consensus", "type": "FULL_TEXT"})
	badType := api.do(http.MethodPost, "/api/v1/search", map[string]any{"query": "raft", "type": "FUZZY"})
	unknownField := api.do(http.MethodPost, "/api/v1/search", map[string]any{"query": "raft", "fuzzy": true})

	// Assert
	require.Equal(t, http.StatusOK, hit.Code, hit.Body.String())
	result := decode[struct {
		Hits []struct {
			NoteID    string `json:"note_id"`
			MatchType string `json:"match_type"`
		} `json:"hits"`
	}](t, hit)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, id, result.Hits[0].NoteID)
	assert.Equal(t, "FULL_TEXT", result.Hits[0].MatchType)
	assert.Equal(t, http.StatusBadRequest, badType.Code)
	assert.Equal(t, http.StatusBadRequest, unknownField.Code)
}

func TestRouter_LinksAndPaths(t *testing.T) {
	// Arrange
	api := newAPI(t)
	a := api.createNote("A", "first")
	b := api.createNote("B", "second")
	c := api.createNote("C", "third")
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/notes/"+a+"/links", map[string]any{"target_id": b}).Code)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/notes/"+b+"/links", map[string]any{"target_id": c, "weight": 0.4}).Code)

	// Act
	forward := api.do(http.MethodGet, "/api/v1/graph/path?source="+a+"&target="+c+"&directed=true", nil)
	backward := api.do(http.MethodGet, "/api/v1/graph/path?source="+c+"&target="+a+"&directed=true", nil)
	selfLink := api.do(http.MethodPost, "/api/v1/notes/"+a+"/links", map[string]any{"target_id": a})
	query := api.do(http.MethodPost, "/api/v1/graph/query", map[string]any{
		"start_note_id": a, "strategy": "WEIGHTED_BY_RELEVANCE", "max_depth": 3,
	})
	neighbourhood := api.do(http.MethodGet, "/api/v1/notes/"+c+"/graph?depth=1", nil)
	userGraph := api.do(http.MethodGet, "/api/v1/graph?include_tags=true", nil)

	// Assert
	fwd := decode[map[string]any](t, forward)
	assert.Equal(t, []any{a, b, c}, fwd["path"])
	assert.Equal(t, float64(2), fwd["length"])
	bwd := decode[map[string]any](t, backward)
	assert.Equal(t, []any{}, bwd["path"])
	assert.Equal(t, false, bwd["found"])
	assert.Equal(t, http.StatusBadRequest, selfLink.Code)
	require.Equal(t, http.StatusOK, query.Code, query.Body.String())
	assert.Equal(t, http.StatusOK, neighbourhood.Code)
	assert.Equal(t, http.StatusOK, userGraph.Code)
	assert.Len(t, decode[map[string]any](t, userGraph)["nodes"], 3)
}

func TestRouter_SyncAndRebuild(t *testing.T) {
	// Arrange
	api := newAPI(t)
	api.createNote("Local only", "pushed on first sync")

	// Act
	synced := api.do(http.MethodPost, "/api/v1/sync", map[string]any{})
	resolved := api.do(http.MethodPost, "/api/v1/sync/conflicts/resolve", map[string]any{"strategy": "KEEP_LOCAL"})
	badStrategy := api.do(http.MethodPost, "/api/v1/sync", map[string]any{"conflict_strategy": "FLIP_A_COIN"})
	rebuilt := api.do(http.MethodPost, "/api/v1/index/rebuild", nil)

	// Assert
	require.Equal(t, http.StatusOK, synced.Code, synced.Body.String())
	assert.Equal(t, float64(1), decode[map[string]any](t, synced)["success_count"])
	assert.Equal(t, http.StatusOK, resolved.Code)
	assert.Equal(t, http.StatusBadRequest, badStrategy.Code)
	require.Equal(t, http.StatusOK, rebuilt.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rebuilt)["indexed"])
	assert.True(t, strings.HasPrefix(rebuilt.Header().Get("Content-Type"), "application/json"))
}
