package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/ports/mocks"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/embedding"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/persistence/memory"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

// flakyRemote fails every Put of one note.
type flakyRemote struct {
	*memory.RemoteNoteStore
	failPut string
}

func (r *flakyRemote) Put(ctx context.Context, note *entities.Note) error {
	if note.ID().String() == r.failPut {
		return errors.New("remote unavailable")
	}
	return r.RemoteNoteStore.Put(ctx, note)
}

func (e *testEnv) syncUser(t *testing.T, cmd commands.SyncUserCommand) *commands.SyncResult {
	t.Helper()
	cmd.UserID = testUser
	result, err := e.syncSvc.SyncUser(context.Background(), cmd)
	require.NoError(t, err)
	return result
}

func (e *testEnv) remoteNote(t *testing.T, id string) *entities.Note {
	t.Helper()
	notes, err := e.remote.ListByUserID(context.Background(), testUser)
	require.NoError(t, err)
	for _, n := range notes {
		if n.ID().String() == id {
			return n
		}
	}
	return nil
}

func actions(result *commands.SyncResult) map[string]string {
	out := map[string]string{}
	for _, n := range result.SyncedNotes {
		out[n.NoteID] = n.Action
	}
	return out
}

func TestSyncService_FirstSyncPushesAndPulls(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	local := env.create(t, "Local only", "written here")
	remote := testutil.NewNoteBuilder().WithSeq(100).WithUserID(testUser).
		WithTitle("Remote only").WithContent("written elsewhere").WithUpdatedAt(testutil.Epoch.Add(-time.Hour)).MustBuild()
	require.NoError(t, env.remote.Put(ctx, remote))
	env.clock.Advance(time.Minute)

	// Act
	first := env.syncUser(t, commands.SyncUserCommand{})
	env.clock.Advance(time.Minute)
	second := env.syncUser(t, commands.SyncUserCommand{})

	// Assert
	assert.Equal(t, 2, first.TotalProcessed)
	assert.Equal(t, 2, first.SuccessCount)
	assert.Equal(t, map[string]string{
		local.ID().String():  "PUSH",
		remote.ID().String(): "PULL",
	}, actions(first))
	assert.Equal(t, testutil.Epoch.Add(time.Minute), first.LastSyncTime)
	assert.NoError(t, first.PendingError())

	pulled, err := env.notes.GetByID(ctx, remote.ID())
	require.NoError(t, err)
	assert.Equal(t, remote.ContentHash(), pulled.ContentHash())
	assert.Equal(t, remote.UpdatedAt(), pulled.UpdatedAt())
	require.NotNil(t, env.remoteNote(t, local.ID().String()))

	state, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		local.ID().String():  local.ContentHash(),
		remote.ID().String(): remote.ContentHash(),
	}, state.Baseline)

	assert.Zero(t, second.TotalProcessed)
	assert.Equal(t, testutil.Epoch.Add(2*time.Minute), second.LastSyncTime)
	assert.Contains(t, env.publisher.types(), events.TypeSyncCompleted)
}

func TestSyncService_ConcurrentEditStaysOutstandingUntilResolved(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	note := env.create(t, "Shared", "original")
	env.clock.Advance(time.Minute)
	synced := env.syncUser(t, commands.SyncUserCommand{})

	editedAt := env.clock.Advance(time.Minute)
	_, err := env.noteSvc.UpdateNote(ctx, commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Shared", Content: "local edit",
	})
	require.NoError(t, err)
	remoteEdit := testutil.NewNoteBuilder().WithID(note.ID().String()).WithUserID(testUser).
		WithTitle("Shared").WithContent("remote edit").WithUpdatedAt(editedAt).WithVersion(2).MustBuild()
	require.NoError(t, env.remote.Put(ctx, remoteEdit))
	env.clock.Advance(time.Minute)

	// Act
	pending := env.syncUser(t, commands.SyncUserCommand{})
	resolved, err := env.syncSvc.ResolveConflicts(ctx, commands.ResolveConflictsCommand{
		UserID:   testUser,
		Strategy: entities.StrategyKeepMostRecent,
	})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, pending.ConflictCount)
	assert.Equal(t, 1, pending.TotalProcessed)
	require.Len(t, pending.Conflicts, 1)
	assert.Equal(t, entities.ConflictConcurrentEdit, pending.Conflicts[0].Type)
	assert.Equal(t, synced.LastSyncTime, pending.LastSyncTime)
	assert.True(t, pkgerrors.IsSyncConflictPending(pending.PendingError()))

	require.Len(t, resolved.Resolutions, 1)
	assert.Equal(t, entities.SideLocal, resolved.Resolutions[0].KeptSide)
	assert.Zero(t, resolved.ConflictCount)
	assert.Equal(t, synced.LastSyncTime, resolved.LastSyncTime)
	assert.Equal(t, "local edit", env.remoteNote(t, note.ID().String()).Content())

	after := env.syncUser(t, commands.SyncUserCommand{})
	assert.Zero(t, after.TotalProcessed)
	assert.Equal(t, env.clock.Now(), after.LastSyncTime)
}

func TestSyncService_PropagatesDeletions(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	deletedHere := env.create(t, "Deleted here", "a")
	deletedThere := env.create(t, "Deleted there", "b")
	env.clock.Advance(time.Minute)
	env.syncUser(t, commands.SyncUserCommand{})

	env.clock.Advance(time.Minute)
	require.NoError(t, env.noteSvc.DeleteNote(ctx, commands.DeleteNoteCommand{
		NoteID: deletedHere.ID().String(), UserID: testUser,
	}))
	require.NoError(t, env.remote.Delete(ctx, testUser, deletedThere.ID()))

	// Act
	result := env.syncUser(t, commands.SyncUserCommand{})

	// Assert
	assert.Equal(t, map[string]string{
		deletedHere.ID().String():  "DELETE_REMOTE",
		deletedThere.ID().String(): "DELETE_LOCAL",
	}, actions(result))
	assert.Nil(t, env.remoteNote(t, deletedHere.ID().String()))
	_, err := env.notes.GetByID(ctx, deletedThere.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	state, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, state.Baseline)
}

func TestSyncService_DeleteVsEditNeedsItsOwnStrategy(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	note := env.create(t, "Contested", "v1")
	env.clock.Advance(time.Minute)
	env.syncUser(t, commands.SyncUserCommand{})

	env.clock.Advance(time.Minute)
	_, err := env.noteSvc.UpdateNote(ctx, commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Contested", Content: "v2",
	})
	require.NoError(t, err)
	require.NoError(t, env.remote.Delete(ctx, testUser, note.ID()))

	// Act
	generalOnly := env.syncUser(t, commands.SyncUserCommand{ConflictStrategy: entities.StrategyKeepRemote})
	explicit := env.syncUser(t, commands.SyncUserCommand{DeleteVsEditStrategy: entities.StrategyKeepRemote})

	// Assert
	require.Len(t, generalOnly.Conflicts, 1)
	assert.Equal(t, entities.ConflictDeleteVsEdit, generalOnly.Conflicts[0].Type)
	assert.True(t, generalOnly.Conflicts[0].RemoteDeleted)

	require.Len(t, explicit.Resolutions, 1)
	assert.Equal(t, entities.SideRemote, explicit.Resolutions[0].KeptSide)
	_, err = env.notes.GetByID(ctx, note.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, env.clock.Now(), explicit.LastSyncTime)
}

func TestSyncService_ManualMergeUpdatesBothSides(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	note := env.create(t, "Draft", "base")
	env.clock.Advance(time.Minute)
	env.syncUser(t, commands.SyncUserCommand{})

	editedAt := env.clock.Advance(time.Minute)
	_, err := env.noteSvc.UpdateNote(ctx, commands.UpdateNoteCommand{
		NoteID: note.ID().String(), UserID: testUser, Title: "Draft", Content: "mine",
	})
	require.NoError(t, err)
	require.NoError(t, env.remote.Put(ctx, testutil.NewNoteBuilder().WithID(note.ID().String()).
		WithUserID(testUser).WithTitle("Draft").WithContent("theirs").WithUpdatedAt(editedAt.Add(time.Second)).MustBuild()))
	env.clock.Advance(time.Minute)

	// Act
	result := env.syncUser(t, commands.SyncUserCommand{
		Decisions: map[string]entities.ManualDecision{
			note.ID().String(): {Merged: &entities.NoteContent{Title: "Draft", Content: "mine and theirs"}},
		},
	})

	// Assert
	require.Len(t, result.Resolutions, 1)
	assert.Equal(t, entities.SideMerged, result.Resolutions[0].KeptSide)
	assert.Equal(t, entities.StrategyManual, result.Resolutions[0].Strategy)

	local, err := env.notes.GetByID(ctx, note.ID())
	require.NoError(t, err)
	assert.Equal(t, "mine and theirs", local.Content())
	assert.Equal(t, "mine and theirs", env.remoteNote(t, note.ID().String()).Content())

	state, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, local.ContentHash(), state.Baseline[note.ID().String()])
}

func TestSyncService_FailuresDoNotAbortThePass(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	broken := env.create(t, "Broken", "cannot push")
	fine := env.create(t, "Fine", "pushes")
	remote := &flakyRemote{RemoteNoteStore: env.remote, failPut: broken.ID().String()}
	svc := NewSyncService(env.notes, env.noteSvc, remote, env.states, env.publisher, env.clock, env.cfg, nil, zap.NewNop())

	// Act
	result, err := svc.SyncUser(ctx, commands.SyncUserCommand{UserID: testUser})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID().String(), result.Failures[0].NoteID)
	assert.Equal(t, "PUSH", result.Failures[0].Action)
	assert.True(t, result.LastSyncTime.IsZero())

	state, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{fine.ID().String(): fine.ContentHash()}, state.Baseline)
}

func TestSyncService_DefersBeyondPassLimit(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.cfg.Sync.MaxNotesPerPass = 1
	env.syncSvc = NewSyncService(env.notes, env.noteSvc, env.remote, env.states, env.publisher, env.clock, env.cfg, nil, zap.NewNop())
	env.create(t, "One", "1")
	env.create(t, "Two", "2")
	env.clock.Advance(time.Minute)

	// Act
	first := env.syncUser(t, commands.SyncUserCommand{})
	second := env.syncUser(t, commands.SyncUserCommand{})

	// Assert
	assert.Equal(t, 1, first.SuccessCount)
	assert.Equal(t, 1, first.DeferredCount)
	assert.True(t, first.LastSyncTime.IsZero())
	assert.Equal(t, 1, second.SuccessCount)
	assert.Zero(t, second.DeferredCount)
	assert.Equal(t, env.clock.Now(), second.LastSyncTime)
}

func TestSyncService_Sync_ExplicitLists(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	lastSync := testutil.Epoch
	local := testutil.NewNoteBuilder().WithSeq(1).WithUserID(testUser).WithContent("old").
		WithUpdatedAt(lastSync.Add(-time.Hour)).MustBuild()
	remote := testutil.NewNoteBuilder().WithSeq(1).WithUserID(testUser).WithContent("new").
		WithUpdatedAt(lastSync.Add(time.Hour)).MustBuild()
	env.clock.Set(lastSync.Add(2 * time.Hour))

	// Act
	noStrategy, err := env.syncSvc.Sync(context.Background(), commands.SyncCommand{
		UserID:       testUser,
		LocalNotes:   []*entities.Note{local},
		RemoteNotes:  []*entities.Note{remote},
		LastSyncTime: lastSync,
	})
	require.NoError(t, err)
	_, invalidErr := env.syncSvc.Sync(context.Background(), commands.SyncCommand{
		UserID:           testUser,
		ConflictStrategy: "FLIP_A_COIN",
	})

	// Assert
	require.Len(t, noStrategy.Conflicts, 1)
	assert.Equal(t, entities.ConflictContent, noStrategy.Conflicts[0].Type)
	assert.Equal(t, lastSync, noStrategy.LastSyncTime)
	assert.True(t, pkgerrors.IsValidation(invalidErr))
}

func TestSyncService_PullThatFailsToIndexIsRetried(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	remote := testutil.NewNoteBuilder().WithSeq(100).WithUserID(testUser).
		WithTitle("Remote only").WithContent("written elsewhere").WithUpdatedAt(testutil.Epoch.Add(-time.Hour)).MustBuild()
	require.NoError(t, env.remote.Put(ctx, remote))
	env.clock.Advance(time.Minute)

	provider := &mocks.MockEmbeddingProvider{}
	provider.On("Name").Return("broken")
	provider.On("GenerateBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, pkgerrors.NewProviderError("broken", errors.New("model not loaded"), false))
	embeddings := NewEmbeddingService(provider, env.cfg.Embedding, nil, zap.NewNop())
	indexer := NewIndexingService(env.notes, env.fullText, env.vectors, embeddings,
		embedding.NewRecursiveChunker(env.cfg.Embedding), nil, zap.NewNop())
	noteSvc := NewNoteService(env.notes, env.edges, indexer, env.publisher, env.clock,
		&testutil.SequenceIDs{}, env.cfg, NoteServiceConfig{}, zap.NewNop())
	outage := NewSyncService(env.notes, noteSvc, env.remote, env.states, env.publisher, env.clock, env.cfg, nil, zap.NewNop())

	// Act
	first, err := outage.SyncUser(ctx, commands.SyncUserCommand{UserID: testUser})
	require.NoError(t, err)
	embeddedAfterFirst := env.vectors.Has(remote.ID())
	stateAfterFirst, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	second := env.syncUser(t, commands.SyncUserCommand{})
	env.clock.Advance(time.Minute)
	third := env.syncUser(t, commands.SyncUserCommand{})

	// Assert
	assert.Zero(t, first.SuccessCount)
	assert.Equal(t, 1, first.FailureCount)
	require.Len(t, first.Failures, 1)
	assert.Equal(t, remote.ID().String(), first.Failures[0].NoteID)
	assert.Equal(t, "PULL", first.Failures[0].Action)
	assert.True(t, first.LastSyncTime.IsZero())
	assert.False(t, embeddedAfterFirst)
	assert.NotContains(t, stateAfterFirst.Baseline, remote.ID().String())

	assert.Equal(t, 1, second.SuccessCount)
	assert.Zero(t, second.FailureCount)
	assert.Equal(t, map[string]string{remote.ID().String(): "PULL"}, actions(second))
	assert.True(t, env.vectors.Has(remote.ID()))
	assert.False(t, second.LastSyncTime.IsZero())

	assert.Zero(t, third.TotalProcessed)
}

func TestSyncService_PublishesSyncCompleted(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	note := env.create(t, "Local", "pushed on sync")
	remote := &mocks.MockRemoteNoteStore{}
	remote.On("ListByUserID", mock.Anything, testUser).Return([]*entities.Note{}, nil)
	remote.On("Put", mock.Anything, mock.MatchedBy(func(n *entities.Note) bool {
		return n.ID().Equals(note.ID())
	})).Return(nil)
	publisher := &mocks.MockEventPublisher{}
	publisher.On("PublishAsync", mock.Anything, mock.MatchedBy(func(e events.DomainEvent) bool {
		completed, ok := e.(events.SyncCompleted)
		return ok && completed.GetUserID() == testUser && completed.SuccessCount == 1
	})).Return()
	svc := NewSyncService(env.notes, env.noteSvc, remote, env.states, publisher, env.clock, env.cfg, nil, zap.NewNop())

	// Act
	result, err := svc.SyncUser(context.Background(), commands.SyncUserCommand{UserID: testUser})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	remote.AssertExpectations(t)
	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "PublishAsync", 1)
}

func TestSyncService_RemoteListFailureAbortsBeforeThePass(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.create(t, "Local", "never pushed")
	remote := &mocks.MockRemoteNoteStore{}
	remote.On("ListByUserID", mock.Anything, testUser).Return(nil, errors.New("remote unavailable"))
	publisher := &mocks.MockEventPublisher{}
	svc := NewSyncService(env.notes, env.noteSvc, remote, env.states, publisher, env.clock, env.cfg, nil, zap.NewNop())

	// Act
	_, err := svc.SyncUser(context.Background(), commands.SyncUserCommand{UserID: testUser})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote unavailable")
	remote.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishAsync", mock.Anything, mock.Anything)
}

func TestSyncService_PrunesBaselineOfNotesGoneOnBothSides(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	note := env.create(t, "Short lived", "removed everywhere")
	env.clock.Advance(time.Minute)
	env.syncUser(t, commands.SyncUserCommand{})
	require.NoError(t, env.noteSvc.DeleteNote(ctx, commands.DeleteNoteCommand{NoteID: note.ID().String(), UserID: testUser}))
	require.NoError(t, env.remote.Delete(ctx, testUser, note.ID()))
	env.clock.Advance(time.Minute)

	// Act
	result := env.syncUser(t, commands.SyncUserCommand{})

	// Assert
	assert.Zero(t, result.TotalProcessed)
	state, err := env.states.Get(ctx, testUser)
	require.NoError(t, err)
	assert.NotContains(t, state.Baseline, note.ID().String())
}
