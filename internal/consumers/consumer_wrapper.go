package consumers

import (
	"context"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickerpulse/internal/clients/kafka_client"
)

type HealthAwareConsumer func(ctx context.Context, consumer *kafka.Consumer, health ...*atomic.Bool) error

// ConsumerWrapper binds health flags to a consumer so it can be registered
// with the kafka_client consumer factory
type ConsumerWrapper struct {
	fn     HealthAwareConsumer
	health []*atomic.Bool
}

func WrapConsumer(fn HealthAwareConsumer, health ...*atomic.Bool) ConsumerWrapper {
	return ConsumerWrapper{
		fn:     fn,
		health: health,
	}
}

func (cw ConsumerWrapper) WithHealthCheck(health *atomic.Bool) ConsumerWrapper {
	cw.health = append(cw.health, health)
	return cw
}

func (cw ConsumerWrapper) Handler() kafka_client.ConsumerFunc {
	return func(ctx context.Context, consumer *kafka.Consumer) error {
		return cw.fn(ctx, consumer, cw.health...)
	}
}

// allHealthy reports false if any dependency is currently marked down
func allHealthy(health []*atomic.Bool) bool {
	for _, h := range health {
		if h != nil && !h.Load() {
			return false
		}
	}
	return true
}
