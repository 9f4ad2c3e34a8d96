package publisher

import (
	"context"
	"fmt"
	"time"

	"ticketing/pkg/kafka"
	"ticketing/pkg/middleware"
	"ticketing/pkg/model"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"

	schemaVersion = "1"
)

// BookingEvent is the payload published for every booking state change.
type BookingEvent struct {
	BookingID  string              `json:"booking_id"`
	EventID    string              `json:"event_id"`
	UserID     string              `json:"user_id"`
	Quantity   int                 `json:"quantity"`
	TotalPrice float64             `json:"total_price"`
	Status     model.BookingStatus `json:"status"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Publisher announces committed booking changes. Publication is
// best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, booking *model.Booking) error
}

type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		source:   source,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, booking *model.Booking) error {
	msg, err := kafka.NewMessage().
		WithKey(booking.EventID).
		WithValue(NewBookingEvent(booking)).
		WithEventType(eventType).
		WithSource(p.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		Build()
	if err != nil {
		return fmt.Errorf("build %s message: %w", eventType, err)
	}

	return p.producer.Publish(ctx, msg)
}

// NewBookingEvent snapshots a booking. A cancelled booking reports its
// cancellation time.
func NewBookingEvent(booking *model.Booking) BookingEvent {
	occurredAt := booking.CreatedAt
	if booking.CancelledAt != nil {
		occurredAt = *booking.CancelledAt
	}

	return BookingEvent{
		BookingID:  booking.ID,
		EventID:    booking.EventID,
		UserID:     booking.UserID,
		Quantity:   booking.Quantity,
		TotalPrice: booking.TotalPrice,
		Status:     booking.Status,
		OccurredAt: occurredAt,
	}
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, *model.Booking) error {
	return nil
}
