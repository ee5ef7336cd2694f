package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

func TestNoteService_CreateNote(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()

	// Act
	note, err := env.noteSvc.CreateNote(ctx, commands.CreateNoteCommand{
		UserID:  testUser,
		Title:   "  Distributed Systems  ",
		Content: "Consensus and replication",
		Tags:    []string{"Go", "go", "systems"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, testutil.NoteIDString(1), note.ID().String())
	assert.Equal(t, "Distributed Systems", note.Title())
	assert.Equal(t, []string{"go", "systems"}, note.Tags())
	assert.Equal(t, 1, note.Version())
	assert.Equal(t, testutil.Epoch, note.CreatedAt())

	stored, err := env.notes.GetByID(ctx, note.ID())
	require.NoError(t, err)
	assert.Equal(t, note.ContentHash(), stored.ContentHash())
	assert.True(t, env.vectors.Has(note.ID()))
	assert.Equal(t, []string{events.TypeNoteCreated}, env.publisher.types())
}

func TestNoteService_CreateNote_InvalidContent(t *testing.T) {
	tests := []struct {
		name string
		cmd  commands.CreateNoteCommand
	}{
		{name: "blank title", cmd: commands.CreateNoteCommand{UserID: testUser, Title: "   "}},
		{name: "missing user", cmd: commands.CreateNoteCommand{Title: "Title"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)

			// Act
			_, err := env.noteSvc.CreateNote(context.Background(), tt.cmd)

			// Assert
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Empty(t, env.publisher.types())
		})
	}
}

func TestNoteService_UpdateNote_OptimisticLock(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	note := env.create(t, "Draft", "first")
	env.clock.Advance(time.Minute)

	// Act
	updated, err := env.noteSvc.UpdateNote(ctx, commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Draft", Content: "second", ExpectedVersion: 1,
	})
	require.NoError(t, err)
	_, staleErr := env.noteSvc.UpdateNote(ctx, commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Draft", Content: "third", ExpectedVersion: 1,
	})

	// Assert
	assert.Equal(t, 2, updated.Version())
	assert.Equal(t, env.clock.Now(), updated.UpdatedAt())
	require.Error(t, staleErr)
	assert.True(t, pkgerrors.IsVersionConflict(staleErr))

	stored, err := env.notes.GetByID(ctx, note.ID())
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Content())
}

func TestNoteService_UpdateNote_NoChangeKeepsVersion(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	note := env.create(t, "Same", "content", "a")

	// Act
	got, err := env.noteSvc.UpdateNote(context.Background(), commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Same", Content: "content", Tags: []string{"A"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version())
	assert.Equal(t, []string{events.TypeNoteCreated}, env.publisher.types())
}

func TestNoteService_OtherUsersNotesAreNotFound(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	note := env.create(t, "Private", "mine")

	// Act
	_, getErr := env.noteSvc.GetNote(context.Background(), "someone-else", note.ID().String())
	delErr := env.noteSvc.DeleteNote(context.Background(), commands.DeleteNoteCommand{
		NoteID: note.ID().String(), UserID: "someone-else",
	})

	// Assert
	assert.True(t, pkgerrors.IsNotFound(getErr))
	assert.True(t, pkgerrors.IsNotFound(delErr))
}

func TestNoteService_DeleteNote_Cascades(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "Alpha", "alpha notes")
	b := env.create(t, "Beta", "beta notes")
	_, err := env.linkSvc.LinkNotes(ctx, commands.LinkNotesCommand{
		UserID: testUser, SourceID: a.ID().String(), TargetID: b.ID().String(),
	})
	require.NoError(t, err)

	// Act
	err = env.noteSvc.DeleteNote(ctx, commands.DeleteNoteCommand{NoteID: a.ID().String(), UserID: testUser})

	// Assert
	require.NoError(t, err)
	_, err = env.notes.GetByID(ctx, a.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.False(t, env.vectors.Has(a.ID()))

	hits, err := env.fullText.Search(ctx, ports.TextQuery{UserID: testUser, Text: "alpha", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)

	edges, err := env.edges.GetByUserID(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, edges)
	assert.Contains(t, env.publisher.types(), events.TypeNoteDeleted)
}

func TestNoteService_UpsertFromRemote(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	remoteAt := testutil.Epoch.Add(-time.Hour)
	snapshot := testutil.NewNoteBuilder().WithSeq(42).WithUserID(testUser).
		WithTitle("Imported").WithContent("from remote").WithUpdatedAt(remoteAt).MustBuild()

	// Act
	imported, err := env.noteSvc.UpsertFromRemote(ctx, snapshot)
	require.NoError(t, err)
	again, err := env.noteSvc.UpsertFromRemote(ctx, snapshot)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, snapshot.ID(), imported.ID())
	assert.Equal(t, remoteAt, imported.UpdatedAt())
	assert.Equal(t, imported.Version(), again.Version())
	assert.Equal(t, []string{events.TypeNoteCreated}, env.publisher.types())
}

func TestNoteService_RemoveLocal_MissingIsNoop(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	id := testutil.NewNoteBuilder().WithSeq(99).MustBuild().ID()

	// Act
	err := env.noteSvc.RemoveLocal(context.Background(), testUser, id)

	// Assert
	assert.NoError(t, err)
}
