// Package eventbridge publishes domain events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

// Source is the EventBridge source of every event this service emits.
const Source = "vertex.knowledge-base"

// EventBridge limits PutEvents to 10 entries.
const batchSize = 10

// API is the part of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher on EventBridge.
type Publisher struct {
	client       API
	eventBusName string
	maxRetries   int
	backoff      time.Duration
	logger       *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
		logger:       logger,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishAsync publishes in the background, detached from the caller's
// cancellation; failures are only logged.
func (p *Publisher) PublishAsync(ctx context.Context, event events.DomainEvent) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("Async event publication failed",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err))
		}
	}()
}

// PublishBatch sends events in chunks of 10.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := min(i+batchSize, len(domainEvents))
		if err := p.publishWithRetry(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) entries(domainEvents []events.DomainEvent) ([]types.PutEventsRequestEntry, error) {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s event: %w", event.GetEventType(), err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{"vertex:" + event.GetUserID() + ":" + event.GetAggregateID()},
		})
	}
	return entries, nil
}

// publishWithRetry resends only the entries EventBridge reported as
// failed, with exponential backoff.
func (p *Publisher) publishWithRetry(ctx context.Context, domainEvents []events.DomainEvent) error {
	pending, err := p.entries(domainEvents)
	if err != nil {
		return err
	}
	backoff := p.backoff

	for attempt := 1; ; attempt++ {
		result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: pending})
		if err == nil && result.FailedEntryCount == 0 {
			p.logger.Debug("Events published to EventBridge",
				zap.Int("count", len(pending)),
				zap.String("eventBus", p.eventBusName))
			return nil
		}

		if err == nil {
			var failed []types.PutEventsRequestEntry
			for i, entry := range result.Entries {
				if entry.ErrorCode != nil && i < len(pending) {
					p.logger.Warn("Failed to publish event",
						zap.String("eventType", aws.ToString(pending[i].DetailType)),
						zap.String("errorCode", aws.ToString(entry.ErrorCode)),
						zap.String("errorMessage", aws.ToString(entry.ErrorMessage)))
					failed = append(failed, pending[i])
				}
			}
			pending = failed
			err = fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
		}

		if attempt >= p.maxRetries {
			return fmt.Errorf("failed to publish events after %d attempts: %w", attempt, err)
		}
		p.logger.Warn("Retrying event publication",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
