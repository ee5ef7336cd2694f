//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/application/services"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/config"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/search"
)

// InfrastructureSet provides clients, stores, indexes and telemetry.
var InfrastructureSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideRepositories,
	wire.FieldsOf(new(Repositories), "Notes", "Edges", "Remote", "States"),
	ProvideClock,
	ProvideIDGenerator,
	ProvideDomainConfig,
	ProvideTextAnalyzer,
	ProvideCollector,
	ProvideCloudWatchReporter,
	ProvideRecorder,
	ProvideTracerProvider,
	ProvidePubSub,
	ProvideEventPublisher,
	ProvideEmbeddingRegistry,
	ProvideEmbeddingProvider,
	ProvideChunker,
	ProvideFullTextIndex,
	wire.Bind(new(ports.FullTextIndex), new(*search.FullTextIndex)),
	ProvideEmbeddingStore,
	wire.Bind(new(ports.VectorIndex), new(*search.EmbeddingStore)),
)

// ServiceSet provides the application services and background workers.
var ServiceSet = wire.NewSet(
	ProvideEmbeddingService,
	services.NewIndexingService,
	ProvideNoteServiceConfig,
	services.NewNoteService,
	services.NewSearchService,
	services.NewGraphService,
	services.NewLinkService,
	services.NewSyncService,
	ProvideIndexingSubscriber,
	ProvideScheduler,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	InfrastructureSet,
	ServiceSet,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
