package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

var testTable = TableConfig{TableName: "notes-test"}

func TestNoteRepository_SaveEncodesItem(t *testing.T) {
	// Arrange
	client := newFakeClient()
	repo := NewNoteRepository(client, testTable, zap.NewNop())
	note := testutil.NewNoteBuilder().
		WithSeq(1).
		WithTitle("Raft").
		WithDirectory("dir-1").
		WithTags("consensus", "Go").
		MustBuildNew()

	// Act
	require.NoError(t, repo.Save(context.Background(), note))

	// Assert
	require.Len(t, client.puts, 1)
	item := client.puts[0].Item
	assert.Equal(t, &types.AttributeValueMemberS{Value: "NOTE#" + testutil.NoteIDString(1)}, item["PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "METADATA"}, item["SK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#test-user-123"}, item["GSI1PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "NOTE"}, item["EntityType"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, item["Version"])
	assert.Contains(t, client.puts[0].ExpressionAttributeNames, "#0")
	assert.Equal(t, 1, note.PersistedVersion())

	loaded, err := repo.GetByID(context.Background(), note.ID())
	require.NoError(t, err)
	assert.Equal(t, note.Snapshot(), loaded.Snapshot())
}

func TestNoteRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	repo := NewNoteRepository(client, testTable, zap.NewNop())
	rules := config.DefaultDomainConfig().Note

	note := testutil.NewNoteBuilder().WithSeq(1).MustBuildNew()
	require.NoError(t, repo.Save(ctx, note))

	a, err := repo.GetByID(ctx, note.ID())
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, note.ID())
	require.NoError(t, err)

	_, err = a.Update(entities.NoteContent{Title: "A"}, rules, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, a))

	_, err = b.Update(entities.NoteContent{Title: "B"}, rules, testutil.Epoch)
	require.NoError(t, err)
	err = repo.Save(ctx, b)

	require.True(t, pkgerrors.IsVersionConflict(err))
	appErr := pkgerrors.GetAppError(err)
	assert.Equal(t, 1, appErr.Details["expected_version"])
	assert.Equal(t, 2, appErr.Details["actual_version"])

	// Creating an existing note fails the attribute_not_exists condition.
	again := testutil.NewNoteBuilder().WithSeq(1).MustBuildNew()
	assert.True(t, pkgerrors.IsVersionConflict(repo.Save(ctx, again)))
}

func TestNoteRepository_Queries(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.pageSize = 1
	repo := NewNoteRepository(client, testTable, zap.NewNop())

	for i, user := range []string{"u", "u", "u", "other"} {
		require.NoError(t, repo.Save(ctx, testutil.NewNoteBuilder().WithSeq(i+1).WithUserID(user).MustBuildNew()))
	}

	notes, err := repo.GetByUserID(ctx, "u")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, testutil.NoteIDString(1), notes[0].ID().String())

	got, err := repo.GetByIDs(ctx, []valueobjects.NoteID{
		valueobjects.MustNoteID(testutil.NoteIDString(4)),
		valueobjects.MustNoteID(testutil.NoteIDString(99)),
		valueobjects.MustNoteID(testutil.NoteIDString(2)),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testutil.NoteIDString(4), got[0].ID().String())
	assert.Equal(t, testutil.NoteIDString(2), got[1].ID().String())

	require.NoError(t, repo.Delete(ctx, valueobjects.MustNoteID(testutil.NoteIDString(2))))
	_, err = repo.GetByID(ctx, valueobjects.MustNoteID(testutil.NoteIDString(2)))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEdgeRepository_SaveQueryAndCascade(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	repo := NewEdgeRepository(client, testTable, zap.NewNop())
	a, b, c := testutil.NoteIDString(1), testutil.NoteIDString(2), testutil.NoteIDString(3)

	for _, e := range []struct {
		src, tgt string
		typ      aggregates.EdgeType
		w        float64
	}{
		{a, b, aggregates.EdgeTypeManual, 1},
		{b, c, aggregates.EdgeTypeSemantic, 0.4},
		{a, c, aggregates.EdgeTypeTagShared, 0.5},
		{a, b, aggregates.EdgeTypeManual, 0.9},
	} {
		edge, err := aggregates.NewEdge("u", e.src, e.tgt, e.typ, e.w, testutil.Epoch)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, edge))
	}

	all, err := repo.GetByUserID(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ofA, err := repo.GetByNoteID(ctx, "u", a)
	require.NoError(t, err)
	assert.Len(t, ofA, 2)

	// One delete request comes back unprocessed and is retried.
	client.unprocessedOne = true
	require.NoError(t, repo.DeleteByNoteID(ctx, "u", a))
	assert.Equal(t, 2, client.batchWrites)

	rest, err := repo.GetByUserID(ctx, "u")
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, aggregates.EdgeTypeSemantic, rest[0].Type)
	assert.Equal(t, testutil.Epoch, rest[0].CreatedAt)
}

func TestSyncStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncStateRepository(newFakeClient(), testTable, zap.NewNop())

	empty, err := repo.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, empty.LastSyncTime.IsZero())
	assert.Empty(t, empty.Baseline)

	empty.LastSyncTime = testutil.Epoch
	empty.Baseline["n1"] = "h1"
	require.NoError(t, repo.Save(ctx, empty))

	got, err := repo.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, testutil.Epoch.Equal(got.LastSyncTime))
	assert.Equal(t, map[string]string{"n1": "h1"}, got.Baseline)
}

func TestRemoteNoteStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewRemoteNoteStore(client, testTable, zap.NewNop())
	notes := NewNoteRepository(client, testTable, zap.NewNop())

	local := testutil.NewNoteBuilder().WithSeq(1).WithUserID("u").MustBuildNew()
	require.NoError(t, notes.Save(ctx, local))
	remote := testutil.NewNoteBuilder().WithSeq(2).WithUserID("u").WithTags("a", "b").MustBuild()
	require.NoError(t, store.Put(ctx, remote))

	// Local notes in the same table are not part of the remote copy.
	listed, err := store.ListByUserID(ctx, "u")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, remote.ContentHash(), listed[0].ContentHash())
	assert.True(t, remote.UpdatedAt().Equal(listed[0].UpdatedAt()))

	require.NoError(t, store.Delete(ctx, "u", remote.ID()))
	listed, err = store.ListByUserID(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestNoteRepository_StorageErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{name: "throttled", err: &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, wantTransient: true},
		{name: "service unavailable", err: &smithy.GenericAPIError{Code: "ServiceUnavailable"}, wantTransient: true},
		{name: "bad request", err: &smithy.GenericAPIError{Code: "ValidationException"}},
		{name: "network", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			client := newFakeClient()
			client.getErr = tt.err
			repo := NewNoteRepository(client, testTable, zap.NewNop())

			// Act
			_, err := repo.GetByID(context.Background(), valueobjects.MustNoteID(testutil.NoteIDString(1)))

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantTransient, pkgerrors.IsTransient(err))
			assert.False(t, pkgerrors.IsNotFound(err))
		})
	}
}
