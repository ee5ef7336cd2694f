package di

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/application/services"
	domainconfig "github.com/artgluhovskiy/vertex-sub001/domain/config"
	domainservices "github.com/artgluhovskiy/vertex-sub001/domain/services"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/config"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/embedding"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/messaging"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/messaging/eventbridge"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/messaging/inprocess"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/persistence/dynamodb"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/persistence/memory"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/scheduler"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/search"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
	"github.com/artgluhovskiy/vertex-sub001/pkg/utils"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	return zapCfg.Build(zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	))
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// Repositories groups the stores behind one storage backend.
type Repositories struct {
	Notes  ports.NoteRepository
	Edges  ports.EdgeRepository
	Remote ports.RemoteNoteStore
	States ports.SyncStateStore
}

// ProvideRepositories selects the storage backend from configuration.
func ProvideRepositories(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) Repositories {
	if cfg.StorageBackend == config.StorageDynamoDB {
		table := dynamodb.TableConfig{
			TableName: cfg.DynamoDBTable,
			GSI1Name:  cfg.IndexName,
		}
		logger.Info("Using DynamoDB storage", zap.String("table", cfg.DynamoDBTable))
		return Repositories{
			Notes:  dynamodb.NewNoteRepository(client, table, logger),
			Edges:  dynamodb.NewEdgeRepository(client, table, logger),
			Remote: dynamodb.NewRemoteNoteStore(client, table, logger),
			States: dynamodb.NewSyncStateRepository(client, table, logger),
		}
	}

	logger.Info("Using in-memory storage")
	return Repositories{
		Notes:  memory.NewNoteRepository(),
		Edges:  memory.NewEdgeRepository(),
		Remote: memory.NewRemoteNoteStore(),
		States: memory.NewSyncStateStore(),
	}
}

// ProvideClock returns the wall clock
func ProvideClock() ports.Clock {
	return utils.SystemClock{}
}

// ProvideIDGenerator returns the UUIDv7 generator
func ProvideIDGenerator() ports.IDGenerator {
	return utils.UUIDv7Generator{}
}

// ProvideDomainConfig resolves the domain rules for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.Domain()
}

// ProvideTextAnalyzer returns the analyzer shared by indexing and querying
func ProvideTextAnalyzer() domainservices.TextAnalyzer {
	return domainservices.NewDefaultTextAnalyzer()
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideCloudWatchReporter returns nil unless CloudWatch is enabled.
func ProvideCloudWatchReporter(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchReporter {
	if !cfg.EnableCloudWatch {
		return nil
	}
	return observability.NewCloudWatchReporter(cfg.MetricsNamespace, client, logger)
}

// ProvideRecorder fans service measurements out to the enabled sinks.
func ProvideRecorder(cfg *config.Config, collector *observability.Collector, cw *observability.CloudWatchReporter) observability.Recorder {
	var recorders observability.Recorders
	if cfg.EnableMetrics {
		recorders = append(recorders, collector)
	}
	if cw != nil {
		recorders = append(recorders, cw)
	}
	if len(recorders) == 0 {
		return observability.NopRecorder{}
	}
	return recorders
}

// ProvideTracerProvider installs the OTLP exporter when tracing is enabled
func ProvideTracerProvider(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	return observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRate:  cfg.TraceSampleRate,
	})
}

// ProvidePubSub creates the in-process event channel
func ProvidePubSub(cfg *config.Config, logger *zap.Logger) *gochannel.GoChannel {
	return inprocess.NewPubSub(cfg.EventBufferSize, logger)
}

// ProvideEventPublisher always publishes in-process and, when enabled, to EventBridge.
func ProvideEventPublisher(
	cfg *config.Config,
	pubsub *gochannel.GoChannel,
	client *awseventbridge.Client,
	logger *zap.Logger,
) ports.EventPublisher {
	publishers := messaging.Fanout{inprocess.NewPublisher(pubsub, logger)}
	if cfg.EnableEventBridge {
		publishers = append(publishers, eventbridge.NewPublisher(client, cfg.EventBusName, logger))
	}
	return publishers
}

// ProvideEmbeddingRegistry registers the local provider and, when configured,
// the HTTP provider.
func ProvideEmbeddingRegistry(
	cfg *config.Config,
	domain *domainconfig.DomainConfig,
	analyzer domainservices.TextAnalyzer,
	clock ports.Clock,
	logger *zap.Logger,
) *embedding.Registry {
	registry := embedding.NewRegistry(cfg.EmbeddingProvider,
		embedding.NewHashProvider(domain.Embedding.Dimension, analyzer, clock))

	if cfg.EmbeddingProvider == config.ProviderHTTP {
		registry.Register(embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			Name:    config.ProviderHTTP,
			BaseURL: cfg.EmbeddingBaseURL,
			APIKey:  cfg.EmbeddingAPIKey,
			Timeout: cfg.EmbeddingTimeout,
			Breaker: embedding.DefaultBreakerConfig(),
		}, clock, logger))
	}
	return registry
}

// ProvideEmbeddingProvider returns the registry's default provider
func ProvideEmbeddingProvider(registry *embedding.Registry) (ports.EmbeddingProvider, error) {
	provider, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	return provider, nil
}

// ProvideChunker creates the text splitter for long notes
func ProvideChunker(domain *domainconfig.DomainConfig) ports.TextChunker {
	return embedding.NewRecursiveChunker(domain.Embedding)
}

// ProvideFullTextIndex creates the BM25 index and restores the last snapshot.
func ProvideFullTextIndex(
	cfg *config.Config,
	analyzer domainservices.TextAnalyzer,
	domain *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*search.FullTextIndex, error) {
	index := search.NewFullTextIndex(analyzer, domain.Search, logger)
	if cfg.IndexSnapshotPath != "" {
		if err := index.LoadFile(cfg.IndexSnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to restore full-text snapshot: %w", err)
		}
	}
	return index, nil
}

// ProvideEmbeddingStore creates the vector store sized to the model
func ProvideEmbeddingStore(domain *domainconfig.DomainConfig, logger *zap.Logger) *search.EmbeddingStore {
	return search.NewEmbeddingStore(domain.Embedding.Dimension, logger)
}

// ProvideEmbeddingService binds the embedding rules to the provider
func ProvideEmbeddingService(
	provider ports.EmbeddingProvider,
	domain *domainconfig.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *services.EmbeddingService {
	return services.NewEmbeddingService(provider, domain.Embedding, recorder, logger)
}

// ProvideNoteServiceConfig selects synchronous or event-driven indexing
func ProvideNoteServiceConfig(cfg *config.Config) services.NoteServiceConfig {
	return services.NoteServiceConfig{AsyncIndexing: cfg.AsyncIndexing}
}

// ProvideIndexingSubscriber consumes note events from the in-process channel
func ProvideIndexingSubscriber(
	pubsub *gochannel.GoChannel,
	indexing *services.IndexingService,
	logger *zap.Logger,
) *inprocess.IndexingSubscriber {
	return inprocess.NewIndexingSubscriber(pubsub, indexing, logger)
}

// ProvideScheduler registers the index maintenance jobs.
func ProvideScheduler(
	cfg *config.Config,
	indexing *services.IndexingService,
	fullText *search.FullTextIndex,
	cw *observability.CloudWatchReporter,
	logger *zap.Logger,
) (*scheduler.Scheduler, error) {
	// A nil reporter must not become a non-nil interface.
	var flusher scheduler.Flusher
	if cw != nil {
		flusher = cw
	}

	s := scheduler.New(cfg.ShutdownTimeout, logger.Named("scheduler"))
	jobs := scheduler.MaintenanceJobs(scheduler.Schedules{
		Optimize:     cfg.OptimizeSchedule,
		Snapshot:     cfg.SnapshotSchedule,
		MetricsFlush: cfg.MetricsFlushSchedule,
	}, indexing, fullText, cfg.IndexSnapshotPath, flusher)

	if err := s.Register(jobs...); err != nil {
		return nil, err
	}
	return s, nil
}
