package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ticketing/internal/auth"
	bookingserrors "ticketing/internal/bookings/errors"
	"ticketing/internal/bookings/publisher"
	"ticketing/internal/bookings/repository"
	eventserrors "ticketing/internal/events/errors"
	"ticketing/pkg/config"
	mongotx "ticketing/pkg/db/mongo"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/metrics"
	"ticketing/pkg/model"
	"ticketing/pkg/validation"
)

type BookingService interface {
	Book(ctx context.Context, identity *auth.Identity, eventID string, req *model.BookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error)
	GetByID(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error)
	ListForUser(ctx context.Context, identity *auth.Identity) ([]*model.Booking, error)
	ListForEvent(ctx context.Context, identity *auth.Identity, eventID string) ([]*model.Booking, error)
}

// EventInventory is the event-side counter the booking manager owns.
type EventInventory interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
	ReserveTickets(ctx context.Context, id string, quantity int) (*model.Event, error)
	ReleaseTickets(ctx context.Context, id string, quantity int) error
}

type bookingService struct {
	repo      repository.BookingRepository
	events    EventInventory
	txManager mongotx.TransactionManager
	publisher publisher.Publisher
	validator *validation.Validator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	events EventInventory,
	txManager mongotx.TransactionManager,
	publisher publisher.Publisher,
	validator *validation.Validator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		events:    events,
		txManager: txManager,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
	}
}

// Book reserves tickets and records the booking in one transaction. The
// reservation is a single conditional increment, so concurrent bookings for
// the same event can never push booked_count past capacity.
func (s *bookingService) Book(ctx context.Context, identity *auth.Identity, eventID string, req *model.BookingRequest) (*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, s.mapEventError(err, eventID, req.Quantity)
	}
	if event.Status != model.EventApproved {
		metrics.IncBookingRejected("not_bookable")
		return nil, notBookable(event.Status)
	}
	if event.AvailableTickets() < req.Quantity {
		metrics.IncBookingRejected("capacity")
		s.cfg.Log.Warn("Booking rejected: not enough tickets",
			"event_id", eventID,
			"requested", req.Quantity,
			"available", event.AvailableTickets(),
		)
		appErr := apperrors.CapacityExceeded(eventID, req.Quantity)
		appErr.Details["available"] = event.AvailableTickets()
		return nil, appErr
	}

	var booking *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		reserved, err := s.events.ReserveTickets(txCtx, eventID, req.Quantity)
		if err != nil {
			return s.mapEventError(err, eventID, req.Quantity)
		}

		booking = &model.Booking{
			EventID:    eventID,
			UserID:     identity.UserID,
			Quantity:   req.Quantity,
			UnitPrice:  reserved.Price,
			TotalPrice: totalPrice(reserved.Price, req.Quantity),
			Status:     model.BookingConfirmed,
		}
		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
			metrics.IncBookingRejected("capacity")
			s.cfg.Log.Warn("Booking rejected: capacity reached concurrently", "event_id", eventID, "requested", req.Quantity)
			return nil, err
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Booking transaction failed", "event_id", eventID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	metrics.IncBookingConfirmed(booking.Quantity)
	s.publish(ctx, publisher.EventBookingConfirmed, booking)

	s.cfg.Log.Info("Booking confirmed",
		"id", booking.ID,
		"event_id", booking.EventID,
		"user_id", booking.UserID,
		"quantity", booking.Quantity,
		"total_price", booking.TotalPrice,
	)
	return booking, nil
}

// Cancel flips the booking to cancelled and returns its tickets to the event.
func (s *bookingService) Cancel(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingCancelled {
		return nil, apperrors.AlreadyCancelled(id)
	}

	var cancelled *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		var err error
		cancelled, err = s.repo.MarkCancelled(txCtx, id, time.Now())
		if err != nil {
			return s.mapRepoError(err, id, "Failed to cancel booking")
		}

		err = s.events.ReleaseTickets(txCtx, cancelled.EventID, cancelled.Quantity)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, eventserrors.ErrNotFound):
			s.cfg.Log.Warn("Cancelled booking of a deleted event", "id", id, "event_id", cancelled.EventID)
			return nil
		default:
			return apperrors.Internal("Failed to release tickets", err)
		}
	})
	if err != nil {
		appErr := apperrors.AsAppError(err)
		if appErr.Code == apperrors.CodeInternal {
			s.cfg.Log.Error("Cancel transaction failed", "id", id, "error", err)
		}
		return nil, appErr
	}

	metrics.IncBookingCancelled()
	s.publish(ctx, publisher.EventBookingCancelled, cancelled)

	s.cfg.Log.Info("Booking cancelled",
		"id", id,
		"event_id", cancelled.EventID,
		"user_id", identity.UserID,
		"quantity", cancelled.Quantity,
	)
	return cancelled, nil
}

func (s *bookingService) GetByID(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve booking")
	}
	if !identity.Owns(booking.UserID) {
		s.cfg.Log.Warn("Booking access denied", "id", id, "user_id", identity.UserID)
		return nil, apperrors.Forbidden("you can only access your own bookings")
	}
	return booking, nil
}

func (s *bookingService) ListForUser(ctx context.Context, identity *auth.Identity) ([]*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	bookings, err := s.repo.FindByUser(ctx, identity.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to list user bookings", "user_id", identity.UserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) ListForEvent(ctx context.Context, identity *auth.Identity, eventID string) ([]*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, s.mapEventError(err, eventID, 0)
	}
	if !identity.Owns(event.OrganizerID) {
		s.cfg.Log.Warn("Event bookings access denied", "event_id", eventID, "user_id", identity.UserID)
		return nil, apperrors.Forbidden("you can only view bookings of your own events")
	}

	bookings, err := s.repo.FindByEvent(ctx, eventID)
	if err != nil {
		s.cfg.Log.Error("Failed to list event bookings", "event_id", eventID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

// publish runs after commit; a broker outage never undoes a booking.
func (s *bookingService) publish(ctx context.Context, eventType string, booking *model.Booking) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), eventType, booking); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_type", eventType,
			"id", booking.ID,
			"error", err,
		)
	}
}

func (s *bookingService) validateRequest(req *model.BookingRequest) error {
	if req == nil {
		return apperrors.InvalidInput("request body is required")
	}
	if err := s.validator.Struct(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Invalid booking input", verrs.Details())
		}
		return apperrors.Validation("Invalid booking input", map[string]any{"error": err.Error()})
	}
	if limit := s.cfg.MaxTicketsPerBooking; limit > 0 && req.Quantity > limit {
		return apperrors.Validation("Invalid booking input",
			validation.Field("quantity", fmt.Sprintf("quantity must be at most %d", limit)).Details())
	}
	return nil
}

func totalPrice(unitPrice float64, quantity int) float64 {
	return math.Round(unitPrice*float64(quantity)*100) / 100
}

func notBookable(status model.EventStatus) error {
	return apperrors.Validation("event is not open for booking", map[string]any{"status": status})
}

func (s *bookingService) mapEventError(err error, eventID string, quantity int) error {
	switch {
	case errors.Is(err, eventserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Event", eventID)
	case errors.Is(err, eventserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid event ID format")
	case errors.Is(err, eventserrors.ErrCapacityExceeded):
		return apperrors.CapacityExceeded(eventID, quantity)
	case errors.Is(err, eventserrors.ErrNotBookable):
		return notBookable("")
	default:
		s.cfg.Log.Error("Failed to access event", "event_id", eventID, "error", err)
		return apperrors.Internal("Failed to access event", err)
	}
}

func (s *bookingService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrAlreadyCancelled):
		return apperrors.AlreadyCancelled(id)
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
