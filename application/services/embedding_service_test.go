package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/testutil"
)

const fakeDimension = 8

// scriptedProvider embeds a text as a one-hot vector at the position of its
// first letter. Batch calls and per-text calls can be scripted to fail.
type scriptedProvider struct {
	mu        sync.Mutex
	batchErr  error
	itemErrs  map[string][]error
	batches   [][]string
	itemCalls map[string]int
}

func (p *scriptedProvider) Name() string                      { return "scripted" }
func (p *scriptedProvider) Supports(providerName string) bool { return providerName == "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, text, model string) (*entities.Embedding, error) {
	p.mu.Lock()
	if p.itemCalls == nil {
		p.itemCalls = map[string]int{}
	}
	call := p.itemCalls[text]
	p.itemCalls[text]++
	var err error
	if errs := p.itemErrs[text]; call < len(errs) {
		err = errs[call]
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return oneHot(text, model), nil
}

func (p *scriptedProvider) GenerateBatch(ctx context.Context, texts []string, model string) ([]*entities.Embedding, error) {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	err := p.batchErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*entities.Embedding, len(texts))
	for i, text := range texts {
		out[i] = oneHot(text, model)
	}
	return out, nil
}

func oneHot(text, model string) *entities.Embedding {
	values := make([]float32, fakeDimension)
	values[int(text[0]-'a')%fakeDimension] = 1
	emb, err := entities.NewEmbedding(values, model, testutil.Epoch)
	if err != nil {
		panic(err)
	}
	return emb
}

func hotIndex(emb *entities.Embedding) int {
	for i, v := range emb.Vector().Values() {
		if v > 0 {
			return i
		}
	}
	return -1
}

func embeddingRules() config.EmbeddingRules {
	return config.EmbeddingRules{
		Model:        "test-model",
		Dimension:    fakeDimension,
		MaxBatchSize: 2,
		MaxRetries:   2,
		Parallelism:  2,
	}
}

func TestEmbeddingService_GenerateBatch_KeepsInputOrder(t *testing.T) {
	// Arrange
	provider := &scriptedProvider{}
	svc := NewEmbeddingService(provider, embeddingRules(), nil, zap.NewNop())
	texts := []string{"alpha", "bravo", "charlie", "delta", "echo"}

	// Act
	out, err := svc.GenerateBatch(context.Background(), texts)

	// Assert
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	for i, emb := range out {
		assert.Equal(t, i, hotIndex(emb))
		assert.Equal(t, "test-model", emb.Model())
	}
	assert.Equal(t, [][]string{{"alpha", "bravo"}, {"charlie", "delta"}, {"echo"}}, provider.batches)
}

func TestEmbeddingService_GenerateBatch_RetriesItemsAfterTransientBatchFailure(t *testing.T) {
	// Arrange
	transient := pkgerrors.NewProviderError("scripted", errors.New("503"), true)
	provider := &scriptedProvider{
		batchErr: transient,
		itemErrs: map[string][]error{"bravo": {transient, transient}},
	}
	svc := NewEmbeddingService(provider, embeddingRules(), nil, zap.NewNop())

	// Act
	out, err := svc.GenerateBatch(context.Background(), []string{"alpha", "bravo"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, hotIndex(out[0]))
	assert.Equal(t, 1, hotIndex(out[1]))
	assert.Equal(t, 1, provider.itemCalls["alpha"])
	assert.Equal(t, 3, provider.itemCalls["bravo"])
}

func TestEmbeddingService_GenerateBatch_FailsAtomically(t *testing.T) {
	transient := pkgerrors.NewProviderError("scripted", errors.New("503"), true)
	permanent := pkgerrors.NewProviderError("scripted", errors.New("bad request"), false)

	tests := []struct {
		name          string
		provider      *scriptedProvider
		wantTransient bool
	}{
		{
			name:     "permanent batch failure is not retried",
			provider: &scriptedProvider{batchErr: permanent},
		},
		{
			name: "item exhausts its retries",
			provider: &scriptedProvider{
				batchErr: transient,
				itemErrs: map[string][]error{"charlie": {transient, transient, transient}},
			},
			wantTransient: true,
		},
		{
			name: "item fails permanently during retry",
			provider: &scriptedProvider{
				batchErr: transient,
				itemErrs: map[string][]error{"alpha": {permanent}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := NewEmbeddingService(tt.provider, embeddingRules(), nil, zap.NewNop())

			// Act
			out, err := svc.GenerateBatch(context.Background(), []string{"alpha", "bravo", "charlie"})

			// Assert
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, pkgerrors.IsProviderFailure(err))
			assert.Equal(t, tt.wantTransient, pkgerrors.IsTransient(err))
		})
	}
}

func TestEmbeddingService_RejectsWrongDimension(t *testing.T) {
	// Arrange
	rules := embeddingRules()
	rules.Dimension = 16
	svc := NewEmbeddingService(&scriptedProvider{}, rules, nil, zap.NewNop())

	// Act
	_, err := svc.Generate(context.Background(), "alpha")

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.IsProviderFailure(err))
	assert.False(t, pkgerrors.IsTransient(err))
}
