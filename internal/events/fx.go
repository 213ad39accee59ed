package events

import (
	"context"

	"github.com/smallbiznis/digistore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Named("events").Info("KAFKA_BROKERS not set, order events are dropped")
		return NoopPublisher{}
	}
	publisher := NewKafkaPublisher(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher
}
