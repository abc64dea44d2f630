package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
)

// scored is a text paired with the classification the fake classifier
// returns for it
type scored struct {
	text  string
	label models.Label
	conf  float64
}

func pos(text string, conf float64) scored { return scored{text, models.LabelPositive, conf} }
func neg(text string, conf float64) scored { return scored{text, models.LabelNegative, conf} }

type fakeClassifier struct {
	mu       sync.Mutex
	results  map[string]models.ClassificationResult
	unscored map[string]bool
	err      error
	calls    atomic.Int32
}

func newFakeClassifier(feeds ...[]scored) *fakeClassifier {
	f := &fakeClassifier{results: make(map[string]models.ClassificationResult)}
	for _, feed := range feeds {
		for _, s := range feed {
			f.results[s.text] = models.ClassificationResult{Label: s.label, Confidence: s.conf}
		}
	}
	return f
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (models.ClassificationResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.ClassificationResult{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unscored[text] {
		return models.ClassificationResult{}, ErrNoSentiment
	}
	r, ok := f.results[text]
	if !ok {
		return models.ClassificationResult{}, fmt.Errorf("unexpected text %q", text)
	}
	return r, nil
}

type fakeAdapter struct {
	source        models.Source
	minConfidence float64
	feed          []scored
	err           error
	calls         atomic.Int32
	lookback      time.Duration
}

func (f *fakeAdapter) Source() models.Source { return f.source }
func (f *fakeAdapter) MinConfidence() float64 { return f.minConfidence }

func (f *fakeAdapter) Fetch(_ context.Context, symbol string, lookback time.Duration) ([]models.TextItem, error) {
	f.calls.Add(1)
	f.lookback = lookback
	if f.err != nil {
		return nil, f.err
	}
	items := make([]models.TextItem, 0, len(f.feed))
	for i, s := range f.feed {
		item, err := models.NewTextItem(f.source, s.text, fmt.Sprintf("%s-%d", f.source, i), time.Time{})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func newsFeed(feed ...scored) *fakeAdapter {
	return &fakeAdapter{source: models.SourceNews, minConfidence: 0.9, feed: feed}
}

func socialFeed(feed ...scored) *fakeAdapter {
	return &fakeAdapter{source: models.SourceSocial, minConfidence: 0, feed: feed}
}

func newTestAggregator(news, social *fakeAdapter, opts ...AggregatorOption) (*Aggregator, *fakeClassifier) {
	classifier := newFakeClassifier(news.feed, social.feed)
	return NewAggregator(classifier, news, social, opts...), classifier
}

func TestScenarioLowConfidenceNewsDiscarded(t *testing.T) {
	news := newsFeed(pos("Apple beats estimates", 0.95), pos("Apple unveils new chip", 0.92), neg("Apple faces probe", 0.5))
	agg, _ := newTestAggregator(news, socialFeed())

	report, err := agg.Analyze(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tally.Positive)
	assert.Equal(t, 0, report.Tally.Negative)
	assert.Equal(t, 1, report.Tally.Filtered)
	assert.Equal(t, models.VerdictPositive, report.Verdict)
}

func TestScenarioNewsTie(t *testing.T) {
	news := newsFeed(pos("Apple beats estimates", 0.95), neg("Apple faces probe", 0.91))
	social := socialFeed(neg("selling AAPL", 0.99))
	agg, _ := newTestAggregator(news, social)

	verdict, err := agg.GetSentiment(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNeutral, verdict)
	assert.Zero(t, social.calls.Load())
}

func TestScenarioSocialAlwaysCounted(t *testing.T) {
	social := socialFeed(neg("TSLA is overvalued", 0.3))
	agg, _ := newTestAggregator(newsFeed(), social)

	report, err := agg.Analyze(context.Background(), "TSLA", true)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Tally.Positive)
	assert.Equal(t, 1, report.Tally.Negative)
	assert.Equal(t, models.VerdictNegative, report.Verdict)
	assert.Equal(t, int32(1), social.calls.Load())
}

func TestScenarioAllSourcesEmpty(t *testing.T) {
	agg, classifier := newTestAggregator(newsFeed(), socialFeed())

	for _, useSocial := range []bool{false, true} {
		verdict, err := agg.GetSentiment(context.Background(), "ZZZZ", useSocial)
		require.NoError(t, err)
		assert.Equal(t, models.VerdictNeutral, verdict)
	}
	assert.Zero(t, classifier.calls.Load())
}

func TestZeroAcceptedIsNeutral(t *testing.T) {
	news := newsFeed(pos("a", 0.2), neg("b", 0.89), pos("c", 0.5))
	agg, _ := newTestAggregator(news, socialFeed())

	report, err := agg.Analyze(context.Background(), "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Tally.Positive+report.Tally.Negative)
	assert.Equal(t, 3, report.Tally.Filtered)
	assert.Equal(t, models.VerdictNeutral, report.Verdict)
}

func TestNewsThresholdIsInclusive(t *testing.T) {
	news := newsFeed(neg("Apple faces probe", 0.9))
	agg, _ := newTestAggregator(news, socialFeed())

	verdict, err := agg.GetSentiment(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNegative, verdict)
}

func TestSocialCountedRegardlessOfConfidence(t *testing.T) {
	// the same low confidence filters a news item but votes for social
	news := newsFeed(pos("Apple beats estimates", 0.95), neg("Apple faces probe", 0.05))
	social := socialFeed(neg("AAPL dumping", 0.05), neg("AAPL overpriced", 0.01))
	agg, _ := newTestAggregator(news, social)

	without, err := agg.GetSentiment(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictPositive, without)

	report, err := agg.Analyze(context.Background(), "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNegative, report.Verdict)
	assert.Equal(t, models.SourceTally{Fetched: 2, Negative: 2}, report.Tally.PerSource[models.SourceSocial])
	assert.Equal(t, models.SourceTally{Fetched: 2, Positive: 1, Filtered: 1}, report.Tally.PerSource[models.SourceNews])
}

func TestUnscoredTextIsDiscarded(t *testing.T) {
	social := socialFeed(neg("TSLA deliveries miss", 0.6), pos("TSLA reports earnings on Tuesday", 0))
	agg, classifier := newTestAggregator(newsFeed(), social)
	classifier.unscored = map[string]bool{"TSLA reports earnings on Tuesday": true}

	report, err := agg.Analyze(context.Background(), "TSLA", true)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNegative, report.Verdict)
	assert.Equal(t, models.SourceTally{Fetched: 2, Negative: 1, Filtered: 1}, report.Tally.PerSource[models.SourceSocial])
}

func randomFeed(r *rand.Rand, prefix string, n int) []scored {
	feed := make([]scored, 0, n)
	for i := 0; i < n; i++ {
		s := scored{text: fmt.Sprintf("%s-%d", prefix, i), label: models.LabelPositive, conf: r.Float64()}
		if r.Intn(2) == 0 {
			s.label = models.LabelNegative
		}
		feed = append(feed, s)
	}
	return feed
}

func TestRemovingLowConfidenceNewsNeverChangesVerdict(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		feed := randomFeed(r, "news", r.Intn(12))
		social := randomFeed(r, "social", r.Intn(5))
		useSocial := r.Intn(2) == 0

		full, _ := newTestAggregator(newsFeed(feed...), socialFeed(social...))
		want, err := full.GetSentiment(context.Background(), "AAPL", useSocial)
		require.NoError(t, err)

		for i, s := range feed {
			if s.conf >= 0.9 {
				continue
			}
			trimmed := append(append([]scored{}, feed[:i]...), feed[i+1:]...)
			agg, _ := newTestAggregator(newsFeed(trimmed...), socialFeed(social...))
			got, err := agg.GetSentiment(context.Background(), "AAPL", useSocial)
			require.NoError(t, err)
			assert.Equal(t, want, got, "round %d removing %q", round, s.text)
		}
	}
}

func TestVerdictAlwaysValidAndSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	flip := map[models.Verdict]models.Verdict{
		models.VerdictPositive: models.VerdictNegative,
		models.VerdictNegative: models.VerdictPositive,
		models.VerdictNeutral:  models.VerdictNeutral,
	}

	for round := 0; round < 100; round++ {
		news := randomFeed(r, "news", r.Intn(10))
		social := randomFeed(r, "social", r.Intn(6))

		agg, _ := newTestAggregator(newsFeed(news...), socialFeed(social...))
		verdict, err := agg.GetSentiment(context.Background(), "MSFT", true)
		require.NoError(t, err)
		assert.Contains(t, []models.Verdict{models.VerdictPositive, models.VerdictNegative, models.VerdictNeutral}, verdict)

		swapped := func(feed []scored) []scored {
			out := make([]scored, len(feed))
			for i, s := range feed {
				out[i] = s
				if s.label == models.LabelPositive {
					out[i].label = models.LabelNegative
				} else {
					out[i].label = models.LabelPositive
				}
			}
			return out
		}
		mirror, _ := newTestAggregator(newsFeed(swapped(news)...), socialFeed(swapped(social)...))
		mirrored, err := mirror.GetSentiment(context.Background(), "MSFT", true)
		require.NoError(t, err)
		assert.Equal(t, flip[verdict], mirrored, "round %d", round)
	}
}

func TestUseSocialFalseNeverCallsSocial(t *testing.T) {
	social := socialFeed(pos("MSFT rally", 0.99))
	agg, _ := newTestAggregator(newsFeed(pos("Microsoft beats", 0.95)), social)

	for i := 0; i < 5; i++ {
		_, err := agg.GetSentiment(context.Background(), "MSFT", false)
		require.NoError(t, err)
	}
	assert.Zero(t, social.calls.Load())
}

func TestEmptySymbolRejected(t *testing.T) {
	news := newsFeed()
	agg, _ := newTestAggregator(news, socialFeed())

	_, err := agg.GetSentiment(context.Background(), "   ", true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, news.calls.Load())
}

func TestLookbacksPassedToAdapters(t *testing.T) {
	news, social := newsFeed(), socialFeed()
	agg, _ := newTestAggregator(news, social, WithLookbacks(48*time.Hour, time.Hour))

	_, err := agg.GetSentiment(context.Background(), "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, news.lookback)
	assert.Equal(t, time.Hour, social.lookback)
}

func TestBestEffortSkipsFailedSource(t *testing.T) {
	social := socialFeed()
	social.err = apperrors.NewSourceUnavailableError("social", apperrors.ErrRateLimited)
	news := newsFeed(neg("Tesla recall", 0.97))
	agg, _ := newTestAggregator(news, social)

	report, err := agg.Analyze(context.Background(), "TSLA", true)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNegative, report.Verdict)
	assert.Equal(t, []models.Source{models.SourceSocial}, report.FailedSources)
}

func TestBestEffortAllSourcesFailed(t *testing.T) {
	news := newsFeed()
	news.err = apperrors.NewSourceUnavailableError("news", errors.New("502"))
	social := socialFeed()
	social.err = apperrors.NewSourceUnavailableError("social", errors.New("timeout"))
	agg, _ := newTestAggregator(news, social)

	_, err := agg.GetSentiment(context.Background(), "TSLA", true)
	require.Error(t, err)
	var srcErr *apperrors.SourceUnavailableError
	assert.True(t, errors.As(err, &srcErr))
	assert.Equal(t, apperrors.ExitSource, apperrors.ExitCode(err))

	// news alone is every consulted source
	_, err = agg.GetSentiment(context.Background(), "TSLA", false)
	assert.True(t, errors.As(err, &srcErr))
}

func TestFailFastPropagatesSourceFailure(t *testing.T) {
	social := socialFeed()
	social.err = apperrors.NewSourceUnavailableError("social", errors.New("503"))
	agg, _ := newTestAggregator(newsFeed(pos("Tesla deliveries up", 0.99)), social, WithSourcePolicy(config.PolicyFailFast))

	_, err := agg.GetSentiment(context.Background(), "TSLA", true)
	var srcErr *apperrors.SourceUnavailableError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "social", srcErr.Source)
}

func TestClassifierErrorFailsRequest(t *testing.T) {
	news := newsFeed(pos("Apple beats estimates", 0.95))
	agg, classifier := newTestAggregator(news, socialFeed())
	classifier.err = apperrors.NewClassifierError("hugot", errors.New("onnx failure"))

	_, err := agg.GetSentiment(context.Background(), "AAPL", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitClassifier, apperrors.ExitCode(err))
}
