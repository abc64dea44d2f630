package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// SerializeToJSON encodes a message payload
func SerializeToJSON(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("[KafkaUtils] Failed to encode payload",
			slog.String("type", fmt.Sprintf("%T", value)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("encode %T: %w", value, err)
	}
	return data, nil
}

// DeserializeFromJSON decodes a message payload into v
func DeserializeFromJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("[KafkaUtils] Failed to decode payload",
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()))
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// HandleConsumerError logs a consumer failure along with the broker error
// code when there is one
func HandleConsumerError(err error) {
	if err == nil {
		return
	}

	var kErr kafka.Error
	if errors.As(err, &kErr) {
		slog.Error("[KafkaUtils] Kafka consumer error",
			slog.String("code", kErr.Code().String()),
			slog.Bool("fatal", kErr.IsFatal()),
			slog.String("error", err.Error()))
		return
	}
	slog.Error("[KafkaUtils] Kafka consumer error", slog.String("error", err.Error()))
}
