package inprocess

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

// NoteIndexer refreshes the search indexes of one note.
type NoteIndexer interface {
	IndexNoteByID(ctx context.Context, noteID valueobjects.NoteID) error
}

// IndexingSubscriber re-indexes notes when they are created or updated.
// Deletions are cascaded synchronously by the note service and ignored here.
type IndexingSubscriber struct {
	sub     message.Subscriber
	indexer NoteIndexer
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewIndexingSubscriber(sub message.Subscriber, indexer NoteIndexer, logger *zap.Logger) *IndexingSubscriber {
	return &IndexingSubscriber{sub: sub, indexer: indexer, logger: logger}
}

// Start consumes the note topic until ctx is cancelled.
func (s *IndexingSubscriber) Start(ctx context.Context) error {
	messages, err := s.sub.Subscribe(ctx, TopicNoteEvents)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range messages {
			s.process(ctx, msg)
		}
	}()
	return nil
}

// Wait blocks until the consumer loop has exited.
func (s *IndexingSubscriber) Wait() {
	s.wg.Wait()
}

// process always acks: retrying is the embedding service's job, and a
// redelivered poison message would spin forever on a Go channel.
func (s *IndexingSubscriber) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while indexing note", zap.Any("panic", r), zap.String("messageID", msg.UUID))
		}
	}()

	switch msg.Metadata.Get(metadataEventType) {
	case events.TypeNoteCreated, events.TypeNoteUpdated:
	default:
		return
	}

	env, err := DecodeEnvelope(msg)
	if err != nil {
		s.logger.Warn("Dropping malformed event", zap.String("messageID", msg.UUID), zap.Error(err))
		return
	}
	noteID, err := valueobjects.NewNoteIDFromString(env.AggregateID)
	if err != nil {
		s.logger.Warn("Dropping event with invalid note id", zap.String("aggregateID", env.AggregateID))
		return
	}
	if err := s.indexer.IndexNoteByID(ctx, noteID); err != nil {
		s.logger.Warn("Asynchronous indexing failed",
			zap.String("noteID", env.AggregateID),
			zap.String("eventType", env.EventType),
			zap.Error(err))
		return
	}
	s.logger.Debug("Note indexed from event",
		zap.String("noteID", env.AggregateID),
		zap.String("eventType", env.EventType))
}
