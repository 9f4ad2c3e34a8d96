// Package kafka_middleware holds producer middleware for booking events.
package kafka_middleware

import (
	"context"
	"time"

	"ticketing/pkg/kafka"
	"ticketing/pkg/logger"
	"ticketing/pkg/metrics"
)

type next = func(ctx context.Context, msg kafka.Message) error

// timed runs the rest of the chain and reports its outcome to observe.
func timed(observe func(msg kafka.Message, err error, elapsed time.Duration)) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, n next) error {
		start := time.Now()
		err := n(ctx, msg)
		observe(msg, err, time.Since(start))
		return err
	}
}

// LoggingProducerMiddleware logs every publish, tagged with the booking
// event type and the originating request id.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return timed(func(msg kafka.Message, err error, elapsed time.Duration) {
		attrs := []any{
			"topic", msg.Topic,
			"event_id", msg.Key,
			"event_type", msg.GetEventType(),
			"message_id", msg.GetEventID(),
			"request_id", msg.GetCorrelationID(),
			"duration_ms", elapsed.Milliseconds(),
		}
		if err != nil {
			log.Error("Booking event publish failed", append(attrs, "error", err)...)
			return
		}
		log.Debug("Booking event published", attrs...)
	})
}

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return timed(func(msg kafka.Message, err error, elapsed time.Duration) {
		metrics.ObserveKafkaPublish(msg.Topic, err, elapsed)
	})
}
