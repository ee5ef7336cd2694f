package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/queries"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/config"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("EMBEDDING_DIMENSION", "64")
	t.Setenv("INDEX_SNAPSHOT_PATH", filepath.Join(t.TempDir(), "fulltext.msgpack"))
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestInitializeContainer_InMemory(t *testing.T) {
	// Arrange
	ctx := context.Background()
	cfg := testConfig(t)

	// Act
	container, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, container.Start(ctx))

	note, err := container.Notes.CreateNote(ctx, commands.CreateNoteCommand{
		UserID:  "user-1",
		Title:   "Wiring check",
		Content: "The container connects every service",
	})
	require.NoError(t, err)
	result, err := container.Search.Search(ctx, queries.SearchQuery{UserID: "user-1", Query: "wiring"})
	require.NoError(t, err)

	// Assert
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, note.ID().String(), result.Hits[0].NoteID)
	assert.Nil(t, container.CloudWatch)
	assert.Equal(t, []string{scheduler.JobOptimizeIndex, scheduler.JobSnapshotIndex}, container.Scheduler.Jobs())
	require.NoError(t, container.Shutdown(ctx))
	assert.FileExists(t, cfg.IndexSnapshotPath)
}

func TestInitializeContainer_RestoresSnapshot(t *testing.T) {
	// Arrange
	ctx := context.Background()
	cfg := testConfig(t)
	first, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	_, err = first.Notes.CreateNote(ctx, commands.CreateNoteCommand{
		UserID: "user-1", Title: "Persisted", Content: "survives a restart",
	})
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(ctx))

	// Act
	second, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Shutdown(ctx) })

	// Assert
	assert.Equal(t, first.FullText.Stats().Documents, second.FullText.Stats().Documents)
	assert.Positive(t, second.FullText.Stats().Documents)
}
