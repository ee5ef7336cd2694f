package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
)

// EmbeddingService wraps an EmbeddingProvider with batching and retries.
//
// A batch is first sent as one provider call. When that call fails
// transiently, each text of the batch is retried on its own with exponential
// backoff. The result is all-or-nothing: any permanent failure, or a text that
// exhausts its retries, fails the whole request.
type EmbeddingService struct {
	provider ports.EmbeddingProvider
	rules    config.EmbeddingRules
	recorder observability.Recorder
	logger   *zap.Logger
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(
	provider ports.EmbeddingProvider,
	rules config.EmbeddingRules,
	recorder observability.Recorder,
	logger *zap.Logger,
) *EmbeddingService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &EmbeddingService{
		provider: provider,
		rules:    rules,
		recorder: recorder,
		logger:   logger,
	}
}

// Model is the embedding model requested from the provider.
func (s *EmbeddingService) Model() string { return s.rules.Model }

// Generate embeds one text.
func (s *EmbeddingService) Generate(ctx context.Context, text string) (*entities.Embedding, error) {
	out, err := s.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedQuery embeds search text and returns its unit vector.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) (valueobjects.Vector, error) {
	emb, err := s.Generate(ctx, text)
	if err != nil {
		return valueobjects.Vector{}, err
	}
	return emb.Vector(), nil
}

// GenerateBatch embeds texts and returns one embedding per text, in order.
func (s *EmbeddingService) GenerateBatch(ctx context.Context, texts []string) ([]*entities.Embedding, error) {
	out := make([]*entities.Embedding, len(texts))
	size := s.rules.MaxBatchSize
	if size <= 0 {
		size = len(texts)
	}
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		if err := s.generateInto(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *EmbeddingService) generateInto(ctx context.Context, texts []string, out []*entities.Embedding) error {
	batch, err := s.provider.GenerateBatch(ctx, texts, s.rules.Model)
	if err == nil {
		if err := s.checkBatch(batch, len(texts)); err != nil {
			return err
		}
		copy(out, batch)
		return nil
	}

	s.recordFailure(err)
	if !pkgerrors.IsTransient(err) {
		return s.asProviderError(err)
	}
	s.logger.Warn("Embedding batch failed, retrying items individually",
		zap.String("provider", s.provider.Name()),
		zap.Int("batchSize", len(texts)),
		zap.Error(err))

	g, gctx := errgroup.WithContext(ctx)
	if s.rules.Parallelism > 0 {
		g.SetLimit(s.rules.Parallelism)
	}
	for i, text := range texts {
		g.Go(func() error {
			emb, err := s.generateWithRetry(gctx, text)
			if err != nil {
				return err
			}
			out[i] = emb
			return nil
		})
	}
	return g.Wait()
}

// generateWithRetry tries one text up to MaxRetries+1 times, doubling the
// backoff after every transient failure.
func (s *EmbeddingService) generateWithRetry(ctx context.Context, text string) (*entities.Embedding, error) {
	backoff := s.rules.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.rules.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, s.asProviderError(ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}

		emb, err := s.provider.Generate(ctx, text, s.rules.Model)
		if err == nil {
			if err := s.checkBatch([]*entities.Embedding{emb}, 1); err != nil {
				return nil, err
			}
			return emb, nil
		}
		s.recordFailure(err)
		if !pkgerrors.IsTransient(err) {
			return nil, s.asProviderError(err)
		}
		lastErr = err
	}
	return nil, s.asProviderError(fmt.Errorf("retries exhausted after %d attempts: %w", s.rules.MaxRetries+1, lastErr))
}

func (s *EmbeddingService) checkBatch(batch []*entities.Embedding, want int) error {
	if len(batch) != want {
		return pkgerrors.NewProviderError(s.provider.Name(),
			fmt.Errorf("expected %d embeddings, got %d", want, len(batch)), false)
	}
	for i, emb := range batch {
		if emb == nil {
			return pkgerrors.NewProviderError(s.provider.Name(), fmt.Errorf("embedding %d is missing", i), false)
		}
		if s.rules.Dimension > 0 && emb.Dimension() != s.rules.Dimension {
			return pkgerrors.NewProviderError(s.provider.Name(),
				fmt.Errorf("embedding dimension %d, expected %d", emb.Dimension(), s.rules.Dimension), false)
		}
	}
	return nil
}

func (s *EmbeddingService) recordFailure(err error) {
	s.recorder.IncProviderFailure(s.provider.Name(), pkgerrors.IsTransient(err))
}

// asProviderError keeps provider failures as they are and wraps anything
// else as a ProviderFailure.
func (s *EmbeddingService) asProviderError(err error) error {
	if pkgerrors.IsProviderFailure(err) {
		return err
	}
	return pkgerrors.NewProviderError(s.provider.Name(), err, pkgerrors.IsTransient(err))
}
