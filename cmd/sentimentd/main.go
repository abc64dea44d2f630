package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client"
	"github.com/spacesedan/tickerpulse/internal/consumers"
	"github.com/spacesedan/tickerpulse/internal/logging"
	"github.com/spacesedan/tickerpulse/internal/monitoring"
	"github.com/spacesedan/tickerpulse/internal/sentiment"
	_ "github.com/spacesedan/tickerpulse/internal/sentiment/onnx"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger(os.Getenv("LOG_LEVEL"))
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(apperrors.ExitCode(err))
	}
	logging.InitLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, err := sentiment.Initialize(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to initialize engine", slog.String("error", err.Error()))
		os.Exit(apperrors.ExitCode(err))
	}
	defer engine.Close()

	var health []*atomic.Bool
	if engine.Analyzer != nil {
		analyzerHealthy := &atomic.Bool{}
		analyzerHealthy.Store(true)
		go monitoring.MonitorAnalyzerHealth(ctx, engine.Analyzer, analyzerHealthy, monitoring.HEALTHCHECK_INTERVAL)
		health = append(health, analyzerHealthy)
	}

	var producer *kafka_client.Producer
	defer func() {
		if producer != nil {
			producer.Close()
		}
	}()

	// A stopped consumer is rebuilt so it resumes from the last committed
	// offset and redelivers any request whose result was never published.
	for {
		if producer == nil {
			producer = connectProducer(ctx, cfg.Kafka)
			if producer == nil {
				return
			}
		}

		requestConsumer := consumers.NewSentimentRequestConsumer(engine, producer, cfg.Kafka.ResultTopic, cfg.App.RequestTimeout)
		wrapped := consumers.WrapConsumer(requestConsumer.Start, health...)
		kafka_client.RegisterConsumer(cfg.Kafka.RequestTopic, wrapped.Handler())

		err := kafka_client.StartConsumer(ctx, cfg.Kafka, cfg.Kafka.RequestTopic)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("consumer returned without error")
		}
		slog.Error("[Main] Consumer stopped, restarting...", slog.String("error", err.Error()))

		if errors.Is(err, kafka_client.ErrProducerFatal) {
			slog.Warn("[Main] Rebuilding Kafka producer")
			producer.Close()
			producer = nil
		}
		if !sleep(ctx, restartDelay) {
			return
		}
	}
}

const restartDelay = 5 * time.Second

// connectProducer retries until a producer is up or ctx is done
func connectProducer(ctx context.Context, cfg config.KafkaConfig) *kafka_client.Producer {
	for {
		producer, err := kafka_client.NewProducer(ctx, cfg)
		if err == nil {
			return producer
		}

		slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
		if !sleep(ctx, restartDelay) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
