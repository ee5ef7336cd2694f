package embedding

import (
	"context"
	"hash/fnv"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// HashProviderName identifies the local feature-hashing provider.
const HashProviderName = "local-hash"

// HashProvider embeds text by feature hashing its normalized tokens and
// token bigrams. It needs no network and is fully deterministic, which makes
// it the provider for development and tests.
type HashProvider struct {
	dimension int
	analyzer  services.TextAnalyzer
	clock     ports.Clock
}

var _ ports.EmbeddingProvider = (*HashProvider)(nil)

// NewHashProvider creates a provider producing vectors of the given dimension.
func NewHashProvider(dimension int, analyzer services.TextAnalyzer, clock ports.Clock) *HashProvider {
	return &HashProvider{dimension: dimension, analyzer: analyzer, clock: clock}
}

func (p *HashProvider) Name() string { return HashProviderName }

func (p *HashProvider) Supports(providerName string) bool {
	return providerName == HashProviderName
}

// Generate embeds one text. Text without any indexable token is a permanent
// failure since it has no direction.
func (p *HashProvider) Generate(ctx context.Context, text, model string) (*entities.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewProviderError(HashProviderName, err, true)
	}
	values := make([]float32, p.dimension)
	tokens := p.analyzer.Tokenize(text)
	for i, tok := range tokens {
		p.add(values, tok, 1)
		if i > 0 {
			p.add(values, tokens[i-1]+" "+tok, 0.5)
		}
	}
	emb, err := entities.NewEmbedding(values, model, p.clock.Now())
	if err != nil {
		return nil, pkgerrors.NewProviderError(HashProviderName, err, false)
	}
	return emb, nil
}

// GenerateBatch embeds texts in order.
func (p *HashProvider) GenerateBatch(ctx context.Context, texts []string, model string) ([]*entities.Embedding, error) {
	out := make([]*entities.Embedding, len(texts))
	for i, text := range texts {
		emb, err := p.Generate(ctx, text, model)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (p *HashProvider) add(values []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(len(values)))
	if sum>>63 == 1 {
		weight = -weight
	}
	values[bucket] += weight
}
