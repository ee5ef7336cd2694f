package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	domainservices "github.com/artgluhovskiy/vertex-sub001/domain/services"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/embedding"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/persistence/memory"
	"github.com/artgluhovskiy/vertex-sub001/infrastructure/search"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

const testUser = "user-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishAsync(ctx context.Context, event events.DomainEvent) {
	_ = p.Publish(ctx, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

// testEnv wires every service over in-memory adapters and the hash provider.
type testEnv struct {
	cfg       *config.DomainConfig
	clock     *testutil.FixedClock
	notes     *memory.NoteRepository
	edges     *memory.EdgeRepository
	remote    *memory.RemoteNoteStore
	states    *memory.SyncStateStore
	fullText  *search.FullTextIndex
	vectors   *search.EmbeddingStore
	publisher *recordingPublisher

	embeddings *EmbeddingService
	indexer    *IndexingService
	noteSvc    *NoteService
	searchSvc  *SearchService
	graphSvc   *GraphService
	linkSvc    *LinkService
	syncSvc    *SyncService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	cfg.Embedding.Dimension = 256
	cfg.Embedding.Model = "test-model"
	cfg.Embedding.RetryBackoff = 0
	logger := zap.NewNop()
	analyzer := domainservices.NewDefaultTextAnalyzer()

	env := &testEnv{
		cfg:       cfg,
		clock:     testutil.NewFixedClock(testutil.Epoch),
		notes:     memory.NewNoteRepository(),
		edges:     memory.NewEdgeRepository(),
		remote:    memory.NewRemoteNoteStore(),
		states:    memory.NewSyncStateStore(),
		fullText:  search.NewFullTextIndex(analyzer, cfg.Search, logger),
		vectors:   search.NewEmbeddingStore(cfg.Embedding.Dimension, logger),
		publisher: &recordingPublisher{},
	}
	provider := embedding.NewHashProvider(cfg.Embedding.Dimension, analyzer, env.clock)
	env.embeddings = NewEmbeddingService(provider, cfg.Embedding, nil, logger)
	env.indexer = NewIndexingService(env.notes, env.fullText, env.vectors, env.embeddings,
		embedding.NewRecursiveChunker(cfg.Embedding), nil, logger)
	env.noteSvc = NewNoteService(env.notes, env.edges, env.indexer, env.publisher, env.clock,
		&testutil.SequenceIDs{}, cfg, NoteServiceConfig{}, logger)
	env.searchSvc = NewSearchService(env.notes, env.fullText, env.vectors, env.embeddings, analyzer, cfg, nil, logger)
	env.graphSvc = NewGraphService(env.notes, env.edges, cfg, nil, logger)
	env.linkSvc = NewLinkService(env.notes, env.edges, env.vectors, env.clock, cfg, logger)
	env.syncSvc = NewSyncService(env.notes, env.noteSvc, env.remote, env.states, env.publisher, env.clock, cfg, nil, logger)
	return env
}

func (e *testEnv) create(t *testing.T, title, content string, tags ...string) *entities.Note {
	t.Helper()
	note, err := e.noteSvc.CreateNote(context.Background(), commands.CreateNoteCommand{
		UserID:  testUser,
		Title:   title,
		Content: content,
		Tags:    tags,
	})
	require.NoError(t, err)
	return note
}

func intPtr(v int) *int { return &v }
