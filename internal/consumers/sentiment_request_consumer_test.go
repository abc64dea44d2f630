package consumers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client"
	"github.com/spacesedan/tickerpulse/internal/models"
)

type fakeAnalyzer struct {
	report *models.Report
	err    error
	symbol string
	social bool
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, symbol string, useSocial bool) (*models.Report, error) {
	f.calls++
	f.symbol = symbol
	f.social = useSocial
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

type published struct {
	topic string
	key   string
	value models.SentimentResult
}

type fakePublisher struct {
	failures int
	err      error
	sent     []published
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, value any) error {
	if f.failures > 0 {
		f.failures--
		if f.err != nil {
			return f.err
		}
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, published{topic: topic, key: key, value: value.(models.SentimentResult)})
	return nil
}

// sliceIterator hands out msgs then cancels the run
type sliceIterator struct {
	msgs   []*kafka.Message
	cancel context.CancelFunc
	calls  int
}

func (s *sliceIterator) Next() (*kafka.Message, error) {
	s.calls++
	if len(s.msgs) == 0 {
		s.cancel()
		return nil, context.Canceled
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

type fakeCommitter struct {
	committed []*kafka.Message
}

func (f *fakeCommitter) Commit(msg *kafka.Message) error {
	f.committed = append(f.committed, msg)
	return nil
}

func positiveReport() *models.Report {
	tally := models.NewSentimentTally()
	tally.Accept(models.SourceNews, models.LabelPositive)
	tally.Accept(models.SourceNews, models.LabelPositive)
	tally.Discard(models.SourceNews)
	return &models.Report{Symbol: "AAPL", Verdict: models.VerdictPositive, Tally: tally}
}

func TestHandleRequest(t *testing.T) {
	analyzer := &fakeAnalyzer{report: positiveReport()}
	c := NewSentimentRequestConsumer(analyzer, &fakePublisher{}, "", time.Minute)

	result := c.HandleRequest(context.Background(), []byte(`{"request_id":"r1","symbol":" aapl ","use_social":true}`))

	assert.Equal(t, "AAPL", analyzer.symbol)
	assert.True(t, analyzer.social)
	assert.Equal(t, "r1", result.RequestID)
	assert.Equal(t, models.VerdictPositive, result.Verdict)
	assert.Equal(t, 2, result.Positive)
	assert.Equal(t, 1, result.Filtered)
	assert.Empty(t, result.Error)
	assert.False(t, result.CompletedAt.IsZero())
}

func TestHandleRequestFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		err     error
		kind    string
	}{
		{"malformed", `{"symbol":`, nil, "invalid_input"},
		{"source", `{"request_id":"r2","symbol":"TSLA"}`, apperrors.NewSourceUnavailableError("news", errors.New("502")), "source_unavailable"},
		{"classifier", `{"request_id":"r3","symbol":"TSLA"}`, apperrors.NewClassifierError("hugot", errors.New("oom")), "classifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSentimentRequestConsumer(&fakeAnalyzer{err: tt.err}, &fakePublisher{}, "", 0)

			result := c.HandleRequest(context.Background(), []byte(tt.payload))
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, tt.kind, result.ErrorKind)
			assert.Empty(t, result.Verdict)
		})
	}
}

func TestRunPublishesThenCommits(t *testing.T) {
	publishRetryDelay = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := []*kafka.Message{
		{Value: []byte(`{"request_id":"r1","symbol":"AAPL"}`)},
		{Value: []byte(`not json`)},
	}
	iterator := &sliceIterator{msgs: msgs, cancel: cancel}
	committer := &fakeCommitter{}
	publisher := &fakePublisher{failures: 1}

	c := NewSentimentRequestConsumer(&fakeAnalyzer{report: positiveReport()}, publisher, "sentiment-results", time.Minute)
	require.NoError(t, c.Run(ctx, iterator, committer))

	require.Len(t, publisher.sent, 2)
	assert.Equal(t, "sentiment-results", publisher.sent[0].topic)
	assert.Equal(t, "AAPL", publisher.sent[0].key)
	assert.Equal(t, models.VerdictPositive, publisher.sent[0].value.Verdict)
	assert.Equal(t, "invalid_input", publisher.sent[1].value.ErrorKind)
	assert.Equal(t, msgs, committer.committed)
}

func TestRunStopsWhenPublishFails(t *testing.T) {
	publishRetryDelay = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iterator := &sliceIterator{msgs: []*kafka.Message{
		{Value: []byte(`{"request_id":"r1","symbol":"AAPL"}`)},
		{Value: []byte(`{"request_id":"r2","symbol":"TSLA"}`)},
	}, cancel: cancel}
	committer := &fakeCommitter{}
	publisher := &fakePublisher{failures: PUBLISH_RETRIES}

	c := NewSentimentRequestConsumer(&fakeAnalyzer{report: positiveReport()}, publisher, "", 0)
	err := c.Run(ctx, iterator, committer)

	require.ErrorIs(t, err, ErrResultNotPublished)
	assert.Contains(t, err.Error(), "r1")
	assert.Empty(t, committer.committed)
	assert.Empty(t, publisher.sent)
	// r2 is never read, so nothing past r1 can be committed
	assert.Equal(t, 1, iterator.calls)
	assert.Len(t, iterator.msgs, 1)
}

func TestRunStopsOnFatalProducer(t *testing.T) {
	publishRetryDelay = time.Hour
	t.Cleanup(func() { publishRetryDelay = time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iterator := &sliceIterator{msgs: []*kafka.Message{{Value: []byte(`{"request_id":"r1","symbol":"AAPL"}`)}}, cancel: cancel}
	publisher := &fakePublisher{failures: 1, err: fmt.Errorf("%w: producer fenced", kafka_client.ErrProducerFatal)}

	c := NewSentimentRequestConsumer(&fakeAnalyzer{report: positiveReport()}, publisher, "", 0)
	err := c.Run(ctx, iterator, &fakeCommitter{})

	require.ErrorIs(t, err, ErrResultNotPublished)
	assert.ErrorIs(t, err, kafka_client.ErrProducerFatal)
	assert.Zero(t, publisher.failures)
}

func TestRunPausesWhileUnhealthy(t *testing.T) {
	unhealthyWait = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var healthy atomic.Bool
	iterator := &sliceIterator{cancel: cancel}

	c := NewSentimentRequestConsumer(&fakeAnalyzer{}, &fakePublisher{}, "", 0)
	require.NoError(t, c.Run(ctx, iterator, &fakeCommitter{}, &healthy))
	assert.Zero(t, iterator.calls)
}

func TestConsumerWrapperHealth(t *testing.T) {
	var up, down atomic.Bool
	up.Store(true)

	assert.True(t, allHealthy(nil))
	assert.True(t, allHealthy([]*atomic.Bool{&up}))
	assert.False(t, allHealthy([]*atomic.Bool{&up, &down}))

	var got int
	wrapped := WrapConsumer(func(_ context.Context, _ *kafka.Consumer, health ...*atomic.Bool) error {
		got = len(health)
		return nil
	}, &up).WithHealthCheck(&down)

	require.NoError(t, wrapped.Handler()(context.Background(), nil))
	assert.Equal(t, 2, got)
}
