package publisher

import (
	"context"
	"testing"
	"time"

	"ticketing/pkg/model"
)

func TestNewBookingEvent(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cancelled := created.Add(2 * time.Hour)

	tests := []struct {
		name    string
		booking *model.Booking
		want    time.Time
	}{
		{
			name: "confirmed uses creation time",
			booking: &model.Booking{
				ID: "b1", EventID: "e1", UserID: "u1", Quantity: 2, TotalPrice: 40,
				Status: model.BookingConfirmed, CreatedAt: created,
			},
			want: created,
		},
		{
			name: "cancelled uses cancellation time",
			booking: &model.Booking{
				ID: "b1", EventID: "e1", UserID: "u1", Quantity: 2, TotalPrice: 40,
				Status: model.BookingCancelled, CreatedAt: created, CancelledAt: &cancelled,
			},
			want: cancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewBookingEvent(tt.booking)
			if !got.OccurredAt.Equal(tt.want) {
				t.Errorf("occurred_at = %v, want %v", got.OccurredAt, tt.want)
			}
			if got.BookingID != "b1" || got.EventID != "e1" || got.UserID != "u1" {
				t.Errorf("ids not carried over: %+v", got)
			}
			if got.Quantity != 2 || got.TotalPrice != 40 || got.Status != tt.booking.Status {
				t.Errorf("amounts not carried over: %+v", got)
			}
		})
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(context.Background(), EventBookingConfirmed, &model.Booking{}); err != nil {
		t.Errorf("Publish() error: %v", err)
	}
}
