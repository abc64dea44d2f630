package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client"
	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client/utils"
	"github.com/spacesedan/tickerpulse/internal/models"
)

const PUBLISH_RETRIES = 3

// ErrResultNotPublished stops Run. The request stays uncommitted and is
// redelivered once the consumer is rebuilt from the committed offset.
var ErrResultNotPublished = errors.New("sentiment result not published")

var (
	publishRetryDelay = 2 * time.Second
	unhealthyWait     = 5 * time.Second
)

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, symbol string, useSocial bool) (*models.Report, error)
}

type MessageIterator interface {
	Next() (*kafka.Message, error)
}

type Committer interface {
	Commit(msg *kafka.Message) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// SentimentRequestConsumer answers every request on the request topic with
// a result envelope. Offsets are committed only after the result has been
// published, and Run stops at the first request it could not answer.
type SentimentRequestConsumer struct {
	analyzer       SentimentAnalyzer
	publisher      Publisher
	resultTopic    string
	requestTimeout time.Duration
	now            func() time.Time
}

func NewSentimentRequestConsumer(analyzer SentimentAnalyzer, publisher Publisher, resultTopic string, requestTimeout time.Duration) *SentimentRequestConsumer {
	if resultTopic == "" {
		resultTopic = kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS
	}
	return &SentimentRequestConsumer{
		analyzer:       analyzer,
		publisher:      publisher,
		resultTopic:    resultTopic,
		requestTimeout: requestTimeout,
		now:            time.Now,
	}
}

// Start matches HealthAwareConsumer so it can be wrapped and registered
func (c *SentimentRequestConsumer) Start(ctx context.Context, consumer *kafka.Consumer, health ...*atomic.Bool) error {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
	committer := kafka_client.NewCommitHandler(ctx, consumer)

	slog.Info("[SentimentRequestConsumer] Listening for sentiment requests")
	return c.Run(ctx, iterator, committer, health...)
}

func (c *SentimentRequestConsumer) Run(ctx context.Context, iterator MessageIterator, committer Committer, health ...*atomic.Bool) error {
	for {
		select {
		case <-ctx.Done():
			slog.Warn("[SentimentRequestConsumer] Consumer shutting down...")
			return nil
		default:
		}

		if !allHealthy(health) {
			slog.Warn("[SentimentRequestConsumer] Classifier unhealthy, pausing consumption")
			if !waitFor(ctx, unhealthyWait) {
				return nil
			}
			continue
		}

		msg, err := iterator.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			utils.HandleConsumerError(err)
			return err
		}

		result := c.HandleRequest(ctx, msg.Value)
		if err := c.publish(ctx, result); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("[SentimentRequestConsumer] Failed to publish result, stopping before the offset moves past it",
				slog.String("request_id", result.RequestID),
				slog.String("error", err.Error()))
			return fmt.Errorf("%w: request %q: %w", ErrResultNotPublished, result.RequestID, err)
		}

		if err := committer.Commit(msg); err != nil {
			slog.Warn("[SentimentRequestConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
}

// HandleRequest decodes one request payload and runs it through the
// analyzer. Every failure is reported inside the returned envelope.
func (c *SentimentRequestConsumer) HandleRequest(ctx context.Context, payload []byte) models.SentimentResult {
	var request models.SentimentRequest
	if err := utils.DeserializeFromJSON(payload, &request); err != nil {
		return c.failed(request, apperrors.InvalidInput("malformed request: %v", err))
	}
	request.Symbol = strings.ToUpper(strings.TrimSpace(request.Symbol))

	runCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	start := c.now()
	report, err := c.analyzer.Analyze(runCtx, request.Symbol, request.UseSocial)
	if err != nil {
		slog.Error("[SentimentRequestConsumer] Sentiment request failed",
			slog.String("request_id", request.RequestID),
			slog.String("symbol", request.Symbol),
			slog.String("kind", apperrors.Kind(err)),
			slog.String("error", err.Error()))
		return c.failed(request, err)
	}

	slog.Info("[SentimentRequestConsumer] Sentiment request completed",
		slog.String("request_id", request.RequestID),
		slog.String("symbol", request.Symbol),
		slog.String("verdict", report.Verdict.String()),
		slog.Duration("elapsed", c.now().Sub(start)))

	return models.SentimentResult{
		RequestID:     request.RequestID,
		Symbol:        request.Symbol,
		UseSocial:     request.UseSocial,
		Verdict:       report.Verdict,
		Positive:      report.Tally.Positive,
		Negative:      report.Tally.Negative,
		Filtered:      report.Tally.Filtered,
		FailedSources: report.FailedSources,
		CompletedAt:   c.now().UTC(),
	}
}

func (c *SentimentRequestConsumer) failed(request models.SentimentRequest, err error) models.SentimentResult {
	return models.SentimentResult{
		RequestID:   request.RequestID,
		Symbol:      request.Symbol,
		UseSocial:   request.UseSocial,
		Error:       err.Error(),
		ErrorKind:   apperrors.Kind(err),
		CompletedAt: c.now().UTC(),
	}
}

func (c *SentimentRequestConsumer) publish(ctx context.Context, result models.SentimentResult) error {
	key := result.Symbol
	if key == "" {
		key = result.RequestID
	}

	var err error
	for i := 0; i < PUBLISH_RETRIES; i++ {
		err = c.publisher.Publish(ctx, c.resultTopic, key, result)
		if err == nil {
			return nil
		}
		if errors.Is(err, kafka_client.ErrProducerFatal) {
			return err
		}
		slog.Warn("[SentimentRequestConsumer] Result publishing failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if !waitFor(ctx, publishRetryDelay) {
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

func waitFor(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
