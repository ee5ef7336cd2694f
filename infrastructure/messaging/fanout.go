// Package messaging holds the event publishing adapters.
package messaging

import (
	"context"
	"errors"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

// Fanout publishes every event to all of its publishers.
type Fanout []ports.EventPublisher

var _ ports.EventPublisher = Fanout(nil)

// Publish tries every publisher and joins their errors.
func (f Fanout) Publish(ctx context.Context, event events.DomainEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishAsync(ctx context.Context, event events.DomainEvent) {
	for _, p := range f {
		p.PublishAsync(ctx, event)
	}
}
