package model

import "time"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EventID     string        `json:"event_id" bson:"event_id" validate:"required,mongodb"`
	UserID      string        `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	Quantity    int           `json:"quantity" bson:"quantity" validate:"required,min=1"`
	UnitPrice   float64       `json:"unit_price" bson:"unit_price" validate:"gte=0"`
	TotalPrice  float64       `json:"total_price" bson:"total_price" validate:"gte=0"`
	Status      BookingStatus `json:"status" bson:"status" validate:"required,oneof=confirmed cancelled"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

type BookingRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
