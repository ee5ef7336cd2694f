// Package inprocess carries domain events over a watermill Go-channel
// pub/sub inside one process. It drives asynchronous re-indexing.
package inprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

// TopicNoteEvents carries every note and sync event.
const TopicNoteEvents = "note-events"

const metadataEventType = "event_type"

// Envelope is the wire form of an event on the bus.
type Envelope struct {
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	UserID      string          `json:"user_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// NewPubSub creates the Go-channel pub/sub shared by publisher and
// subscribers.
func NewPubSub(bufferSize int64, logger *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: bufferSize}, NewZapAdapter(logger))
}

// Publisher implements ports.EventPublisher on a watermill publisher.
type Publisher struct {
	pub    message.Publisher
	topic  string
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

func NewPublisher(pub message.Publisher, logger *zap.Logger) *Publisher {
	return &Publisher{pub: pub, topic: TopicNoteEvents, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.GetEventType(), err)
	}
	body, err := json.Marshal(Envelope{
		EventType:   event.GetEventType(),
		AggregateID: event.GetAggregateID(),
		UserID:      event.GetUserID(),
		Timestamp:   event.GetTimestamp(),
		Version:     event.GetVersion(),
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(metadataEventType, event.GetEventType())
	msg.SetContext(context.WithoutCancel(ctx))
	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.GetEventType(), err)
	}
	return nil
}

// PublishAsync never blocks the caller; failures are only logged.
func (p *Publisher) PublishAsync(ctx context.Context, event events.DomainEvent) {
	go func() {
		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("Async event publication failed",
				zap.String("eventType", event.GetEventType()),
				zap.Error(err))
		}
	}()
}

// DecodeEnvelope parses a bus message.
func DecodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid event envelope: %w", err)
	}
	return env, nil
}
