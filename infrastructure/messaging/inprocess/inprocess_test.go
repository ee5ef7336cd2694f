package inprocess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

type recordingIndexer struct {
	mu   sync.Mutex
	ids  []string
	fail bool
}

func (r *recordingIndexer) IndexNoteByID(ctx context.Context, noteID valueobjects.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, noteID.String())
	if r.fail {
		return errors.New("index unavailable")
	}
	return nil
}

func (r *recordingIndexer) indexed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestPublisher_EnvelopeCarriesEventFields(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubSub := NewPubSub(16, zap.NewNop())
	defer pubSub.Close()
	messages, err := pubSub.Subscribe(ctx, TopicNoteEvents)
	require.NoError(t, err)
	publisher := NewPublisher(pubSub, zap.NewNop())
	noteID := testutil.NoteIDString(1)

	// Act
	err = publisher.Publish(ctx, events.NewNoteCreated(noteID, "user-1", "Title", []string{"go"}, testutil.Epoch))

	// Assert
	require.NoError(t, err)
	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, events.TypeNoteCreated, msg.Metadata.Get(metadataEventType))
		env, err := DecodeEnvelope(msg)
		require.NoError(t, err)
		assert.Equal(t, noteID, env.AggregateID)
		assert.Equal(t, "user-1", env.UserID)
		assert.True(t, testutil.Epoch.Equal(env.Timestamp))
		assert.Contains(t, string(env.Payload), `"title":"Title"`)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestIndexingSubscriber_IndexesCreatedAndUpdatedNotes(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	pubSub := NewPubSub(16, zap.NewNop())
	indexer := &recordingIndexer{}
	sub := NewIndexingSubscriber(pubSub, indexer, zap.NewNop())
	require.NoError(t, sub.Start(ctx))
	publisher := NewPublisher(pubSub, zap.NewNop())

	created := testutil.NoteIDString(1)
	updated := testutil.NoteIDString(2)
	deleted := testutil.NoteIDString(3)

	// Act
	require.NoError(t, publisher.Publish(ctx, events.NewNoteCreated(created, "u", "a", nil, testutil.Epoch)))
	require.NoError(t, publisher.Publish(ctx, events.NewNoteUpdated(updated, "u", "b", 2, true, false, testutil.Epoch)))
	require.NoError(t, publisher.Publish(ctx, events.NewNoteDeleted(deleted, "u", 3, testutil.Epoch)))
	require.NoError(t, publisher.Publish(ctx, events.NewSyncCompleted("u", 1, 1, 0, 0, testutil.Epoch)))

	// Assert
	assert.Eventually(t, func() bool {
		return len(indexer.indexed()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{created, updated}, indexer.indexed())

	cancel()
	require.NoError(t, pubSub.Close())
	sub.Wait()
}

func TestIndexingSubscriber_FailuresAndBadMessagesAreAcked(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubSub := NewPubSub(16, zap.NewNop())
	defer pubSub.Close()
	indexer := &recordingIndexer{fail: true}
	sub := NewIndexingSubscriber(pubSub, indexer, zap.NewNop())
	require.NoError(t, sub.Start(ctx))

	bad := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	bad.Metadata.Set(metadataEventType, events.TypeNoteCreated)

	// Act
	require.NoError(t, pubSub.Publish(TopicNoteEvents, bad))
	require.NoError(t, NewPublisher(pubSub, zap.NewNop()).Publish(ctx,
		events.NewNoteCreated(testutil.NoteIDString(7), "u", "t", nil, testutil.Epoch)))

	// Assert: the failing note is attempted exactly once, with no redelivery.
	assert.Eventually(t, func() bool {
		return len(indexer.indexed()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, indexer.indexed(), 1)
}
