package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/application/queries"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	domainservices "github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
)

const tracerName = "vertex/application/services"

// SearchService answers full-text, semantic and hybrid queries.
type SearchService struct {
	notes      ports.NoteRepository
	fullText   ports.FullTextIndex
	vectors    ports.VectorIndex
	embeddings *EmbeddingService
	analyzer   domainservices.TextAnalyzer
	rules      config.SearchRules
	recorder   observability.Recorder
	logger     *zap.Logger
}

// NewSearchService creates a new search service
func NewSearchService(
	notes ports.NoteRepository,
	fullText ports.FullTextIndex,
	vectors ports.VectorIndex,
	embeddings *EmbeddingService,
	analyzer domainservices.TextAnalyzer,
	domainConfig *config.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *SearchService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &SearchService{
		notes:      notes,
		fullText:   fullText,
		vectors:    vectors,
		embeddings: embeddings,
		analyzer:   analyzer,
		rules:      domainConfig.Search,
		recorder:   recorder,
		logger:     logger,
	}
}

// Search dispatches on the query type; HYBRID is the default.
func (s *SearchService) Search(ctx context.Context, q queries.SearchQuery) (*queries.SearchResult, error) {
	switch q.Type {
	case queries.SearchTypeFullText:
		return s.SearchFullText(ctx, q)
	case queries.SearchTypeSemantic:
		return s.SearchSemantic(ctx, q)
	default:
		return s.SearchHybrid(ctx, q)
	}
}

// SearchFullText ranks by raw BM25 score.
func (s *SearchService) SearchFullText(ctx context.Context, q queries.SearchQuery) (result *queries.SearchResult, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "SearchService.SearchFullText",
		attribute.String("user.id", q.UserID))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	limit := q.Limit(s.rules)
	scored, err := s.fullTextCandidates(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]scoredHit, len(scored))
	for i, c := range scored {
		hits[i] = scoredHit{noteID: c.NoteID, score: c.Score, match: queries.SearchTypeFullText}
	}
	return s.finish(ctx, q, queries.SearchTypeFullText, hits, limit, start)
}

// SearchSemantic ranks by raw cosine similarity to the embedded query.
func (s *SearchService) SearchSemantic(ctx context.Context, q queries.SearchQuery) (result *queries.SearchResult, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "SearchService.SearchSemantic",
		attribute.String("user.id", q.UserID))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	limit := q.Limit(s.rules)
	scored, err := s.semanticCandidates(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]scoredHit, len(scored))
	for i, c := range scored {
		hits[i] = scoredHit{noteID: c.NoteID, score: c.Score, match: queries.SearchTypeSemantic}
	}
	return s.finish(ctx, q, queries.SearchTypeSemantic, hits, limit, start)
}

// SearchHybrid runs both engines in parallel on an enlarged candidate pool,
// min-max normalizes each ranking and fuses them by weighted sum.
func (s *SearchService) SearchHybrid(ctx context.Context, q queries.SearchQuery) (result *queries.SearchResult, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "SearchService.SearchHybrid",
		attribute.String("user.id", q.UserID))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	limit := q.Limit(s.rules)
	pool := limit * max(s.rules.CandidateMultiplier, 1)

	var fullText, semantic []ports.ScoredNote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fullText, err = s.fullTextCandidates(gctx, q, pool)
		return err
	})
	g.Go(func() error {
		var err error
		semantic, err = s.semanticCandidates(gctx, q, pool)
		if pkgerrors.IsProviderFailure(err) {
			// Degrade to lexical ranking while the provider is unavailable.
			s.logger.Warn("Semantic half of hybrid search failed",
				zap.String("userID", q.UserID),
				zap.Error(err))
			semantic = nil
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := domainservices.FusionWeights{FullText: s.rules.FullTextWeight, Semantic: s.rules.SemanticWeight}
	if q.Weights != nil {
		weights = domainservices.FusionWeights{FullText: q.Weights.FullText, Semantic: q.Weights.Semantic}
	}
	fused := domainservices.FuseScores(toRanked(fullText), toRanked(semantic), weights)

	hits := make([]scoredHit, len(fused))
	for i, c := range fused {
		match := queries.SearchTypeHybrid
		switch {
		case !c.InSemantic:
			match = queries.SearchTypeFullText
		case !c.InFullText:
			match = queries.SearchTypeSemantic
		}
		hits[i] = scoredHit{noteID: c.NoteID, score: c.Score, match: match}
	}
	return s.finish(ctx, q, queries.SearchTypeHybrid, hits, limit, start)
}

func (s *SearchService) fullTextCandidates(ctx context.Context, q queries.SearchQuery, limit int) ([]ports.ScoredNote, error) {
	return s.fullText.Search(ctx, ports.TextQuery{
		UserID: q.UserID,
		Text:   q.Query,
		Filter: filterOf(q),
		Limit:  limit,
	})
}

func (s *SearchService) semanticCandidates(ctx context.Context, q queries.SearchQuery, limit int) ([]ports.ScoredNote, error) {
	vector, err := s.embeddings.EmbedQuery(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	return s.vectors.FindKNearest(ctx, ports.VectorQuery{
		UserID: q.UserID,
		Vector: vector,
		K:      limit,
		Filter: filterOf(q),
	})
}

type scoredHit struct {
	noteID string
	score  float64
	match  queries.MatchType
}

// finish enriches ranked hits from the repository and truncates. Hits whose
// note no longer exists, or belongs to someone else, are dropped.
func (s *SearchService) finish(
	ctx context.Context,
	q queries.SearchQuery,
	searchType queries.SearchType,
	ranked []scoredHit,
	limit int,
	start time.Time,
) (*queries.SearchResult, error) {
	ids := make([]valueobjects.NoteID, 0, len(ranked))
	for _, h := range ranked {
		id, err := valueobjects.NewNoteIDFromString(h.noteID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	notes, err := s.notes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Note, len(notes))
	for _, n := range notes {
		byID[n.ID().String()] = n
	}

	terms := s.analyzer.Terms(q.Query)
	hits := make([]queries.SearchHit, 0, min(limit, len(ranked)))
	for _, h := range ranked {
		if len(hits) == limit {
			break
		}
		note, ok := byID[h.noteID]
		if !ok || note.UserID() != q.UserID || note.IsDeleted() {
			continue
		}
		hits = append(hits, queries.SearchHit{
			NoteID:     h.noteID,
			Title:      note.Title(),
			Summary:    note.Summary(),
			Tags:       note.Tags(),
			Score:      h.score,
			MatchType:  h.match,
			Highlights: s.highlights(note, terms),
			UpdatedAt:  note.UpdatedAt(),
		})
	}

	elapsed := time.Since(start)
	s.recorder.ObserveSearch(string(searchType), elapsed, len(hits))
	s.logger.Debug("Search completed",
		zap.String("userID", q.UserID),
		zap.String("type", string(searchType)),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", elapsed))

	return &queries.SearchResult{
		Hits:         hits,
		TotalHits:    len(hits),
		SearchTimeMs: elapsed.Milliseconds(),
		Type:         searchType,
	}, nil
}

// highlights marks query terms in the title first, then the content.
func (s *SearchService) highlights(note *entities.Note, terms []string) []string {
	limit := s.rules.HighlightFragments
	out := s.analyzer.Highlight(note.Title(), terms, limit, s.rules.FragmentRadius)
	if len(out) < limit {
		out = append(out, s.analyzer.Highlight(note.Content(), terms, limit-len(out), s.rules.FragmentRadius)...)
	}
	return out
}

func filterOf(q queries.SearchQuery) ports.SearchFilter {
	return ports.SearchFilter{DirectoryID: q.DirectoryID, Tags: q.Tags}
}

func toRanked(scored []ports.ScoredNote) []domainservices.RankedCandidate {
	out := make([]domainservices.RankedCandidate, len(scored))
	for i, c := range scored {
		out[i] = domainservices.RankedCandidate{NoteID: c.NoteID, Score: c.Score, UpdatedAt: c.UpdatedAt}
	}
	return out
}
