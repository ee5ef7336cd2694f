package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HTTPProviderConfig configures an embedding server speaking the Ollama
// /api/embed protocol.
type HTTPProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker BreakerConfig
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPProvider calls a remote embedding server through a circuit breaker.
// Network errors, 429 and 5xx responses and an open breaker are transient;
// other failures are permanent.
type HTTPProvider struct {
	cfg     HTTPProviderConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	clock   ports.Clock
	logger  *zap.Logger
}

var _ ports.EmbeddingProvider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider for cfg.BaseURL.
func NewHTTPProvider(cfg HTTPProviderConfig, clock ports.Clock, logger *zap.Logger) *HTTPProvider {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	p := &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clock,
		logger: logger,
	}
	bc := cfg.Breaker
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Embedding provider circuit breaker changed state",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Only outages count against the breaker; a rejected input does not.
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsTransient(err)
		},
	})
	return p
}

func (p *HTTPProvider) Name() string { return p.cfg.Name }

func (p *HTTPProvider) Supports(providerName string) bool {
	return providerName == p.cfg.Name
}

// Generate embeds a single text.
func (p *HTTPProvider) Generate(ctx context.Context, text, model string) (*entities.Embedding, error) {
	out, err := p.GenerateBatch(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// GenerateBatch embeds texts with one request; the response must carry one
// vector per input, in order.
func (p *HTTPProvider) GenerateBatch(ctx context.Context, texts []string, model string) ([]*entities.Embedding, error) {
	if len(texts) == 0 {
		return []*entities.Embedding{}, nil
	}
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.call(ctx, texts, model)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.NewProviderError(p.cfg.Name, err, true)
		}
		return nil, err
	}
	resp := result.(*embedResponse)

	now := p.clock.Now()
	out := make([]*entities.Embedding, len(texts))
	for i, values := range resp.Embeddings {
		emb, err := entities.NewEmbedding(values, model, now)
		if err != nil {
			return nil, pkgerrors.NewProviderError(p.cfg.Name, fmt.Errorf("embedding %d: %w", i, err), false)
		}
		out[i] = emb
	}
	return out, nil
}

func (p *HTTPProvider) call(ctx context.Context, texts []string, model string) (*embedResponse, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, pkgerrors.NewProviderError(p.cfg.Name, err, false)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.NewProviderError(p.cfg.Name, err, false)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		return nil, pkgerrors.NewProviderError(p.cfg.Name, err, isTransientNetError(err))
	}
	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, pkgerrors.NewProviderError(p.cfg.Name, err, true)
	}
	if res.StatusCode != http.StatusOK {
		transient := res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500
		return nil, pkgerrors.NewProviderError(p.cfg.Name,
			fmt.Errorf("status %d: %s", res.StatusCode, truncate(resBytes, 256)), transient)
	}

	var parsed embedResponse
	if err := json.Unmarshal(resBytes, &parsed); err != nil {
		return nil, pkgerrors.NewProviderError(p.cfg.Name, fmt.Errorf("decode response: %w", err), false)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, pkgerrors.NewProviderError(p.cfg.Name,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings)), false)
	}

	p.logger.Debug("Embedding batch generated",
		zap.String("provider", p.cfg.Name),
		zap.Int("count", len(texts)),
		zap.Duration("duration", time.Since(start)))
	return &parsed, nil
}

func isTransientNetError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Covers timeouts, resets and refused connections.
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
