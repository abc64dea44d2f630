package sentiment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
	"github.com/spacesedan/tickerpulse/internal/sources"
)

// Aggregator turns the text items of one or two sources into a single
// verdict by majority vote. It keeps no state between calls.
type Aggregator struct {
	classifier     TextClassifier
	news           sources.SourceAdapter
	social         sources.SourceAdapter
	policy         string
	newsLookback   time.Duration
	socialLookback time.Duration
}

type AggregatorOption func(*Aggregator)

// WithSourcePolicy sets how a failing source is treated, one of
// config.PolicyBestEffort or config.PolicyFailFast
func WithSourcePolicy(policy string) AggregatorOption {
	return func(a *Aggregator) { a.policy = policy }
}

func WithLookbacks(news, social time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.newsLookback = news
		a.socialLookback = social
	}
}

func NewAggregator(classifier TextClassifier, news, social sources.SourceAdapter, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		classifier:   classifier,
		news:         news,
		social:       social,
		policy:       config.PolicyBestEffort,
		newsLookback: sources.DefaultNewsLookback,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetSentiment returns only the verdict for symbol
func (a *Aggregator) GetSentiment(ctx context.Context, symbol string, useSocial bool) (models.Verdict, error) {
	report, err := a.Analyze(ctx, symbol, useSocial)
	if err != nil {
		return "", err
	}
	return report.Verdict, nil
}

// sourceRun is the outcome of fetching and classifying one source
type sourceRun struct {
	adapter  sources.SourceAdapter
	lookback time.Duration
	fetched  int
	results  []models.ClassificationResult
	unscored int
	err      error
}

// Analyze fetches news, and social when useSocial is set, classifies every
// item and resolves the tally. Under best-effort policy a failed source is
// left out of the vote and listed in FailedSources.
func (a *Aggregator) Analyze(ctx context.Context, symbol string, useSocial bool) (*models.Report, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, apperrors.InvalidInput("empty ticker symbol")
	}

	runs := []*sourceRun{{adapter: a.news, lookback: a.newsLookback}}
	if useSocial {
		runs = append(runs, &sourceRun{adapter: a.social, lookback: a.socialLookback})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		g.Go(func() error {
			return a.runSource(gctx, symbol, run)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tally := models.NewSentimentTally()
	report := &models.Report{Symbol: symbol, UseSocial: useSocial, Tally: tally}

	var failures []error
	for _, run := range runs {
		source := run.adapter.Source()
		if run.err != nil {
			failures = append(failures, run.err)
			report.FailedSources = append(report.FailedSources, source)
			continue
		}

		tally.Fetched(source, run.fetched)
		for i := 0; i < run.unscored; i++ {
			tally.Discard(source)
		}
		minConfidence := run.adapter.MinConfidence()
		for _, result := range run.results {
			if result.Confidence < minConfidence {
				slog.Debug("[Aggregator] Discarding low-confidence classification",
					slog.String("source", source.String()),
					slog.Float64("confidence", result.Confidence),
					slog.Float64("threshold", minConfidence))
				tally.Discard(source)
				continue
			}
			tally.Accept(source, result.Label)
		}
	}

	if len(failures) == len(runs) {
		return nil, errors.Join(failures...)
	}

	report.Verdict = tally.Verdict()
	slog.Info("[Aggregator] Sentiment resolved",
		slog.String("symbol", symbol),
		slog.String("verdict", report.Verdict.String()),
		slog.Int("positive", tally.Positive),
		slog.Int("negative", tally.Negative),
		slog.Int("filtered", tally.Filtered))
	return report, nil
}

// runSource records a source failure on run under best-effort policy and
// returns it otherwise. Classifier errors always fail the call.
func (a *Aggregator) runSource(ctx context.Context, symbol string, run *sourceRun) error {
	source := run.adapter.Source()

	items, err := run.adapter.Fetch(ctx, symbol, run.lookback)
	if err != nil {
		var srcErr *apperrors.SourceUnavailableError
		if a.policy == config.PolicyBestEffort && errors.As(err, &srcErr) && ctx.Err() == nil {
			slog.Warn("[Aggregator] Source unavailable, continuing without it",
				slog.String("source", source.String()),
				slog.String("error", err.Error()))
			run.err = err
			return nil
		}
		return err
	}

	run.fetched = len(items)
	run.results = make([]models.ClassificationResult, 0, len(items))
	for _, item := range items {
		result, err := a.classifier.Classify(ctx, item.Text)
		if errors.Is(err, ErrNoSentiment) {
			run.unscored++
			continue
		}
		if err != nil {
			slog.Error("[Aggregator] Classification failed",
				slog.String("source", source.String()),
				slog.String("item", item.ID),
				slog.String("error", err.Error()))
			return err
		}
		run.results = append(run.results, result)
	}
	return nil
}
