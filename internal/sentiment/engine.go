package sentiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients"
	"github.com/spacesedan/tickerpulse/internal/sources"
)

// Engine owns everything built from configuration at startup. It is
// created once and passed explicitly to callers.
type Engine struct {
	*Aggregator

	// Analyzer is set only for the remote backend so its health can be
	// monitored
	Analyzer *clients.HuggingFaceClient

	closers []func()
}

// Initialize validates cfg and builds the classifier, clients and source
// adapters. Missing credentials or model artifacts surface here as a
// ConfigurationError and never during a request.
func Initialize(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigurationError("", apperrors.InvalidInput("nil configuration"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{}

	var classifier TextClassifier
	switch cfg.Classifier.Backend {
	case config.BackendRemote:
		engine.Analyzer = clients.NewHuggingFaceClient(cfg.Classifier.Endpoint, cfg.Classifier.HealthURL, cfg.Classifier.Timeout)
		if !engine.Analyzer.AnalyzerHealthCheck(ctx) {
			return nil, apperrors.NewConfigurationError("CLASSIFIER_HEALTH_URL",
				fmt.Errorf("analyzer at %s is unreachable", cfg.Classifier.HealthURL))
		}
		classifier = NewRemoteClassifier(engine.Analyzer)
	case config.BackendVader:
		classifier = NewVaderClassifier()
	default:
		factory, ok := lookupBackend(cfg.Classifier.Backend)
		if !ok {
			return nil, apperrors.NewConfigurationError("CLASSIFIER_BACKEND",
				fmt.Errorf("backend %q is not linked into this binary", cfg.Classifier.Backend))
		}
		backend, closeFn, err := factory(cfg.Classifier)
		if err != nil {
			return nil, err
		}
		if closeFn != nil {
			engine.closers = append(engine.closers, func() {
				if err := closeFn(); err != nil {
					slog.Warn("[Engine] Failed to release classifier", slog.String("error", err.Error()))
				}
			})
		}
		classifier = backend
	}

	if cfg.Cache.Enabled() {
		cache, err := clients.NewValkeyClient(ctx, cfg.Cache)
		if err != nil {
			slog.Warn("[Engine] Classification cache unavailable, continuing without it",
				slog.String("error", err.Error()))
		} else {
			engine.closers = append(engine.closers, cache.Close)
			classifier = NewCachedClassifier(classifier, cache, cfg.Classifier.Backend)
		}
	}

	newsClient := clients.NewNewsAPIClient(cfg.Credentials.NewsAPIKey, cfg.News.Endpoint, cfg.News.MaxRetries)
	twitterClient := clients.NewTwitterClient(ctx, cfg.Credentials.TwitterBearerToken, clients.TwitterOptions{
		Endpoint:          cfg.Social.Endpoint,
		MaxResults:        cfg.Social.MaxResults,
		RequestsPerMinute: cfg.Social.RequestsPerMinute,
		InitialBackoff:    cfg.Social.InitialBackoff,
		MaxBackoff:        cfg.Social.MaxBackoff,
		MaxRateLimitWait:  cfg.Social.MaxRateLimitWait,
	})

	engine.Aggregator = NewAggregator(
		classifier,
		sources.NewNewsAdapter(newsClient, cfg.Aggregation.NewsMinConfidence),
		sources.NewSocialAdapter(twitterClient, cfg.Aggregation.SocialMinConfidence),
		WithSourcePolicy(cfg.Aggregation.SourcePolicy),
		WithLookbacks(cfg.Aggregation.NewsLookback, cfg.Aggregation.SocialLookback),
	)

	slog.Info("[Engine] Initialized",
		slog.String("backend", cfg.Classifier.Backend),
		slog.String("policy", cfg.Aggregation.SourcePolicy),
		slog.Bool("cache", cfg.Cache.Enabled()))
	return engine, nil
}

// Close releases the model session and cache connection
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
