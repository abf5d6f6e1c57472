package events

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fkhayef/splitledger/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the broker publisher selected by cfg.EventsBackend and the closer
// that releases its connection.
func Open(cfg *config.Config) (Publisher, io.Closer, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		p := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("Publishing events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return p, p, nil
	case config.EventsAMQP:
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to AMQP broker: %w", err)
		}
		slog.Info("Publishing events to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return p, p, nil
	default:
		return Noop{}, nopCloser{}, nil
	}
}
