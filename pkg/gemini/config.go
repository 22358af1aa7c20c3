package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/WessleyAI/minesafe/pkg/config"
	"github.com/WessleyAI/minesafe/pkg/resilience"
)

// FromConfig builds the embedding and generation clients on one shared
// transport, so both count against the same rate limit and breaker.
func FromConfig(cfg config.Gemini, logger *slog.Logger) (*EmbedClient, *GenerateClient) {
	bopts := resilience.DefaultBreakerOpts
	bopts.IsFailure = breakerFailure
	if logger != nil {
		bopts.OnStateChange = func(from, to resilience.State) {
			logger.Warn("gemini circuit breaker", "from", from.String(), "to", to.String())
		}
	}
	c := NewClient(Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RatePerSecond, Burst: cfg.Burst}),
		Breaker: resilience.NewBreaker(bopts),
		Logger:  logger,
	})
	gcfg := DefaultGenerationConfig()
	gcfg.Temperature = cfg.Temperature
	if cfg.MaxTokens > 0 {
		gcfg.MaxOutputTokens = cfg.MaxTokens
	}
	return NewEmbedClient(c, cfg.EmbedModel), NewGenerateClient(c, cfg.GenerateModel, gcfg)
}

// breakerFailure counts server-side and transport failures. Client errors
// and caller cancellation say nothing about the endpoint's health.
func breakerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == 429 || se.code >= 500
	}
	return !errors.Is(err, errMalformed)
}
