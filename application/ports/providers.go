package ports

import (
	"context"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

// EmbeddingProvider turns text into embeddings. Failures are reported as
// ProviderFailure errors marked transient or permanent.
type EmbeddingProvider interface {
	Name() string
	Generate(ctx context.Context, text, model string) (*entities.Embedding, error)
	// GenerateBatch returns one embedding per text, in input order.
	GenerateBatch(ctx context.Context, texts []string, model string) ([]*entities.Embedding, error)
	Supports(providerName string) bool
}

// Clock stamps every createdAt/updatedAt/detectedAt.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique, roughly time-ordered identifiers.
type IDGenerator interface {
	NewID() string
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish delivers an event and reports delivery errors
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishAsync delivers in the background; failures are only logged
	PublishAsync(ctx context.Context, event events.DomainEvent)
}

// TextChunker splits long text into overlapping chunks for embedding. Text
// that fits in one chunk comes back as a single element.
type TextChunker interface {
	Split(text string) ([]string, error)
}
