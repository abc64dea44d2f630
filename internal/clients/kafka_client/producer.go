package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client/utils"
)

// ErrProducerFatal means the producer can no longer run transactions and
// has to be closed and rebuilt
var ErrProducerFatal = errors.New("kafka producer is in a fatal state")

// transactionalProducer is the part of *kafka.Producer that Publish drives
type transactionalProducer interface {
	BeginTransaction() error
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Flush(timeoutMs int) int
	Close()
}

// Producer publishes each message in its own transaction so consumers
// reading with read_committed never see a partial write
type Producer struct {
	producer transactionalProducer
}

func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...", slog.String("broker", cfg.Broker))

	p, err := kafka.NewProducer(ProducerConfigMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p}, nil
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(FLUSH_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// Publish serializes value as JSON and writes it to topic under key. A
// failed transaction is always aborted before returning, so the next call
// can begin a new one. Errors wrapping ErrProducerFatal mean it cannot.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	payload, err := utils.SerializeToJSON(value)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to serialize message: %w", err)
	}

	if err := p.producer.BeginTransaction(); err != nil {
		return classifyTxnError("begin transaction", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
	}

	for i := 0; i < 3; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	if err != nil {
		return p.abort(ctx, "produce", err)
	}

	for i := 0; i < 3; i++ {
		err = p.producer.CommitTransaction(ctx)
		if err == nil || !isRetriable(err) {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	if err != nil {
		return p.abort(ctx, "commit transaction", err)
	}

	slog.Debug("[KafkaClient] Published message transactionally",
		slog.String("topic", topic),
		slog.String("key", key))
	return nil
}

// abort rolls back the open transaction after cause. A fatal cause skips
// the abort since the producer has to be rebuilt anyway.
func (p *Producer) abort(ctx context.Context, op string, cause error) error {
	if isFatal(cause) {
		return classifyTxnError(op, cause)
	}

	if abortErr := p.producer.AbortTransaction(ctx); abortErr != nil {
		slog.Error("[KafkaClient] Failed to abort transaction",
			slog.String("op", op),
			slog.String("error", abortErr.Error()))
		return fmt.Errorf("%w: %s failed: %w, abort failed: %w", ErrProducerFatal, op, cause, abortErr)
	}

	slog.Warn("[KafkaClient] Aborted transaction",
		slog.String("op", op),
		slog.String("error", cause.Error()))
	return fmt.Errorf("[KafkaClient] failed to %s: %w", op, cause)
}

func classifyTxnError(op string, err error) error {
	if isFatal(err) {
		return fmt.Errorf("%w: %s: %w", ErrProducerFatal, op, err)
	}
	return fmt.Errorf("[KafkaClient] failed to %s: %w", op, err)
}

func isFatal(err error) bool {
	var kErr kafka.Error
	return errors.As(err, &kErr) && kErr.IsFatal()
}

func isRetriable(err error) bool {
	var kErr kafka.Error
	return errors.As(err, &kErr) && kErr.IsRetriable()
}
