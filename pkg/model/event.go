package model

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

const (
	CategoryConcert    = "concert"
	CategoryConference = "conference"
	CategoryWorkshop   = "workshop"
	CategorySports     = "sports"
	CategoryOther      = "other"

	// CategoryAll is a listing filter value, never stored.
	CategoryAll = "all"
)

var EventCategories = []string{CategoryConcert, CategoryConference, CategoryWorkshop, CategorySports, CategoryOther}

func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventApproved, EventRejected:
		return true
	default:
		return false
	}
}

type Event struct {
	ID          string      `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Title       string      `json:"title" bson:"title" validate:"required,min=1,max=100"`
	Description string      `json:"description" bson:"description" validate:"required,min=1,max=2000"`
	Datetime    time.Time   `json:"datetime" bson:"datetime" validate:"required"`
	Location    string      `json:"location" bson:"location" validate:"required,min=1,max=200"`
	Category    string      `json:"category" bson:"category" validate:"required,event_category"`
	Price       float64     `json:"price" bson:"price" validate:"gte=0"`
	Capacity    int         `json:"capacity" bson:"capacity" validate:"required,min=1"`
	BookedCount int         `json:"booked_count" bson:"booked_count" validate:"gte=0,ltefield=Capacity"`
	Status      EventStatus `json:"status" bson:"status" validate:"required,event_status"`
	Image       string      `json:"image,omitempty" bson:"image,omitempty" validate:"omitempty,url,max=2048"`
	OrganizerID string      `json:"organizer_id" bson:"organizer_id" validate:"required,mongodb"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`

	// Organizer is filled on reads and never stored.
	Organizer *OrganizerSummary `json:"organizer,omitempty" bson:"-"`
}

type OrganizerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (e *Event) AvailableTickets() int {
	return max(0, e.Capacity-e.BookedCount)
}

// MarshalJSON adds the derived available_tickets field.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		AvailableTickets int `json:"available_tickets"`
	}{
		alias:            alias(e),
		AvailableTickets: e.AvailableTickets(),
	})
}

type EventCreate struct {
	Title       string    `json:"title" validate:"required,min=1,max=100"`
	Description string    `json:"description" validate:"required,min=1,max=2000"`
	Datetime    time.Time `json:"datetime" validate:"required"`
	Location    string    `json:"location" validate:"required,min=1,max=200"`
	Category    string    `json:"category" validate:"required,event_category"`
	Price       float64   `json:"price" validate:"gte=0"`
	Capacity    int       `json:"capacity" validate:"required,min=1"`
	Image       string    `json:"image,omitempty" validate:"omitempty,url,max=2048"`
}

type EventUpdate struct {
	Title       *string      `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string      `json:"description,omitempty" validate:"omitempty,min=1,max=2000"`
	Datetime    *time.Time   `json:"datetime,omitempty" validate:"omitempty"`
	Location    *string      `json:"location,omitempty" validate:"omitempty,min=1,max=200"`
	Category    *string      `json:"category,omitempty" validate:"omitempty,event_category"`
	Price       *float64     `json:"price,omitempty" validate:"omitempty,gte=0"`
	Capacity    *int         `json:"capacity,omitempty" validate:"omitempty,min=1"`
	Image       *string      `json:"image,omitempty" validate:"omitempty,url,max=2048"`
	Status      *EventStatus `json:"status,omitempty" validate:"omitempty,event_status"`
}

func (u *EventUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Datetime == nil && u.Location == nil &&
		u.Category == nil && u.Price == nil && u.Capacity == nil && u.Image == nil && u.Status == nil
}

type EventFilter struct {
	Category string
	Search   string
	Status   EventStatus
}

type EventStats struct {
	EventID           string  `json:"event_id"`
	Title             string  `json:"title"`
	Capacity          int     `json:"capacity"`
	BookedCount       int     `json:"booked_count"`
	AvailableTickets  int     `json:"available_tickets"`
	BookingPercentage float64 `json:"booking_percentage"`
	ConfirmedBookings int64   `json:"confirmed_bookings"`
	CancelledBookings int64   `json:"cancelled_bookings"`
	Revenue           float64 `json:"revenue"`
}
