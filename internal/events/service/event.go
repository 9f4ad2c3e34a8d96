package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"ticketing/internal/auth"
	"ticketing/internal/bookings/publisher"
	bookingsrepo "ticketing/internal/bookings/repository"
	eventserrors "ticketing/internal/events/errors"
	"ticketing/internal/events/repository"
	"ticketing/pkg/config"
	mongotx "ticketing/pkg/db/mongo"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/metrics"
	"ticketing/pkg/model"
	"ticketing/pkg/sanitizer"
	"ticketing/pkg/validation"

	"go.mongodb.org/mongo-driver/bson"
)

type EventService interface {
	Create(ctx context.Context, identity *auth.Identity, req *model.EventCreate) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter, page, limit int) ([]*model.Event, int64, error)
	ListMine(ctx context.Context, identity *auth.Identity) ([]*model.Event, error)
	Update(ctx context.Context, identity *auth.Identity, id string, update *model.EventUpdate) (*model.Event, error)
	Delete(ctx context.Context, identity *auth.Identity, id string) error
	Stats(ctx context.Context, identity *auth.Identity, id string) (*model.EventStats, error)
}

// BookingLedger is the slice of booking storage the event store needs for
// cascading deletes and statistics.
type BookingLedger interface {
	CancelAllForEvent(ctx context.Context, eventID string, at time.Time) ([]*model.Booking, error)
	SummarizeByEvent(ctx context.Context, eventID string) (map[model.BookingStatus]bookingsrepo.StatusTotals, error)
}

// OrganizerDirectory resolves organizer ids to user records.
type OrganizerDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type eventService struct {
	repo       repository.EventRepository
	bookings   BookingLedger
	organizers OrganizerDirectory
	publisher  publisher.Publisher
	txManager mongotx.TransactionManager
	validator *validation.Validator
	cfg       *config.Config
}

func NewEventService(
	repo repository.EventRepository,
	bookings BookingLedger,
	organizers OrganizerDirectory,
	publisher publisher.Publisher,
	txManager mongotx.TransactionManager,
	validator *validation.Validator,
	cfg *config.Config,
) EventService {
	return &eventService{
		repo:       repo,
		bookings:   bookings,
		organizers: organizers,
		publisher:  publisher,
		txManager:  txManager,
		validator:  validator,
		cfg:        cfg,
	}
}

func (s *eventService) Create(ctx context.Context, identity *auth.Identity, req *model.EventCreate) (*model.Event, error) {
	if err := auth.Authorize(identity, model.RoleOrganizer, model.RoleAdmin); err != nil {
		return nil, err
	}

	req.Title = sanitizer.NormalizeTitle(req.Title)
	req.Description = sanitizer.NormalizeText(req.Description)
	req.Location = sanitizer.NormalizeLocation(req.Location)
	req.Category = sanitizer.NormalizeCategory(req.Category)
	if req.Image != "" {
		req.Image = sanitizer.NormalizeURL(req.Image)
	}
	if err := s.validate(req, "event"); err != nil {
		return nil, err
	}

	status := model.EventApproved
	if s.cfg.EventRequireApproval {
		status = model.EventPending
	}

	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		Datetime:    req.Datetime.UTC(),
		Location:    req.Location,
		Category:    req.Category,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Status:      status,
		Image:       req.Image,
		OrganizerID: identity.UserID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to create event", "organizer_id", identity.UserID, "error", err)
		return nil, apperrors.Internal("Failed to create event", err)
	}

	s.cfg.Log.Info("Event created successfully",
		"id", event.ID,
		"organizer_id", event.OrganizerID,
		"status", event.Status,
		"capacity", event.Capacity,
	)
	return event, nil
}

func (s *eventService) GetByID(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Event ID cannot be empty")
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve event")
	}
	s.attachOrganizers(ctx, event)
	return event, nil
}

func (s *eventService) List(ctx context.Context, filter model.EventFilter, page, limit int) ([]*model.Event, int64, error) {
	filter.Category = sanitizer.NormalizeCategory(filter.Category)
	filter.Search = sanitizer.CollapseSpace(filter.Search)
	if filter.Category != "" && filter.Category != model.CategoryAll {
		if err := s.validator.Var(filter.Category, "event_category"); err != nil {
			return nil, 0, apperrors.Validation("Invalid event filter", validation.Field("category", "category must be one of: concert conference workshop sports other all").Details())
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.Validation("Invalid event filter", validation.Field("status", "status must be one of: pending approved rejected").Details())
	}

	offset := config.PageOffset(page, limit)

	var count int64
	var events []*model.Event
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count events", "error", errCount)
			errCount = apperrors.Internal("Failed to count events", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		events, errFind = s.repo.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list events", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve events", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.attachOrganizers(ctx, events...)
	return events, count, nil
}

// attachOrganizers fills each event's organizer summary. A lookup failure
// leaves the summaries empty rather than failing the read.
func (s *eventService) attachOrganizers(ctx context.Context, events ...*model.Event) {
	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.OrganizerID]; !ok {
			seen[e.OrganizerID] = struct{}{}
			ids = append(ids, e.OrganizerID)
		}
	}
	if len(ids) == 0 {
		return
	}

	users, err := s.organizers.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to load event organizers", "count", len(ids), "error", err)
		return
	}

	byID := make(map[string]*model.OrganizerSummary, len(users))
	for _, u := range users {
		byID[u.ID] = &model.OrganizerSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	for _, e := range events {
		e.Organizer = byID[e.OrganizerID]
	}
}

func (s *eventService) ListMine(ctx context.Context, identity *auth.Identity) ([]*model.Event, error) {
	if err := auth.Authorize(identity, model.RoleOrganizer, model.RoleAdmin); err != nil {
		return nil, err
	}

	events, err := s.repo.FindByOrganizer(ctx, identity.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to list organizer events", "organizer_id", identity.UserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve events", err)
	}
	s.attachOrganizers(ctx, events...)
	return events, nil
}

func (s *eventService) Update(ctx context.Context, identity *auth.Identity, id string, update *model.EventUpdate) (*model.Event, error) {
	if update == nil || update.IsEmpty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	event, err := s.ownedEvent(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if update.Status != nil && !identity.IsAdmin() {
		s.cfg.Log.Warn("Non-admin attempted event status change", "id", id, "user_id", identity.UserID)
		return nil, apperrors.Forbidden("only admins can change event status")
	}

	s.sanitizeUpdate(update)
	if err := s.validate(update, "event update"); err != nil {
		return nil, err
	}
	if update.Capacity != nil && *update.Capacity < event.BookedCount {
		return nil, capacityBelowBooked(event.BookedCount)
	}

	updated, err := s.repo.Update(ctx, id, updateFields(update))
	if err != nil {
		if errors.Is(err, eventserrors.ErrCapacityBelowBooked) {
			// Bookings landed between the read above and the guarded update.
			current, findErr := s.repo.FindByID(ctx, id)
			if findErr != nil {
				return nil, s.mapRepoError(findErr, id, "Failed to update event")
			}
			return nil, capacityBelowBooked(current.BookedCount)
		}
		return nil, s.mapRepoError(err, id, "Failed to update event")
	}

	s.cfg.Log.Info("Event updated successfully", "id", id, "user_id", identity.UserID)
	return updated, nil
}

func (s *eventService) sanitizeUpdate(update *model.EventUpdate) {
	if update.Title != nil {
		v := sanitizer.NormalizeTitle(*update.Title)
		update.Title = &v
	}
	if update.Description != nil {
		v := sanitizer.NormalizeText(*update.Description)
		update.Description = &v
	}
	if update.Location != nil {
		v := sanitizer.NormalizeLocation(*update.Location)
		update.Location = &v
	}
	if update.Category != nil {
		v := sanitizer.NormalizeCategory(*update.Category)
		update.Category = &v
	}
	if update.Image != nil && *update.Image != "" {
		v := sanitizer.NormalizeURL(*update.Image)
		update.Image = &v
	}
}

func updateFields(update *model.EventUpdate) bson.M {
	fields := bson.M{}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Datetime != nil {
		fields["datetime"] = update.Datetime.UTC()
	}
	if update.Location != nil {
		fields["location"] = *update.Location
	}
	if update.Category != nil {
		fields["category"] = *update.Category
	}
	if update.Price != nil {
		fields["price"] = *update.Price
	}
	if update.Capacity != nil {
		fields["capacity"] = *update.Capacity
	}
	if update.Image != nil {
		fields["image"] = *update.Image
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	return fields
}

func capacityBelowBooked(booked int) error {
	return apperrors.Validation("Invalid event update input", map[string]any{
		"capacity":     eventserrors.ErrCapacityBelowBooked.Error(),
		"booked_count": booked,
	})
}

// Delete cancels the event's confirmed bookings and removes the event in one
// transaction, so no confirmed booking outlives its event.
func (s *eventService) Delete(ctx context.Context, identity *auth.Identity, id string) error {
	if _, err := s.ownedEvent(ctx, identity, id); err != nil {
		return err
	}

	var cancelled []*model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		bookings, err := s.bookings.CancelAllForEvent(txCtx, id, time.Now())
		if err != nil {
			return apperrors.Internal("Failed to cancel event bookings", err)
		}
		cancelled = bookings

		if err := s.repo.Delete(txCtx, id); err != nil {
			return s.mapRepoError(err, id, "Failed to delete event")
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Event delete transaction failed", "id", id, "error", err)
		return apperrors.Internal("Failed to delete event", err)
	}

	// Published after commit; a broker outage never resurrects the event.
	for _, booking := range cancelled {
		metrics.IncBookingCancelled()
		if err := s.publisher.Publish(context.WithoutCancel(ctx), publisher.EventBookingCancelled, booking); err != nil {
			s.cfg.Log.Error("Failed to publish booking event",
				"event_type", publisher.EventBookingCancelled,
				"id", booking.ID,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Event deleted successfully",
		"id", id,
		"user_id", identity.UserID,
		"cancelled_bookings", len(cancelled),
	)
	return nil
}

func (s *eventService) Stats(ctx context.Context, identity *auth.Identity, id string) (*model.EventStats, error) {
	event, err := s.ownedEvent(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	totals, err := s.bookings.SummarizeByEvent(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to summarize bookings", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to compute event statistics", err)
	}

	confirmed := totals[model.BookingConfirmed]
	cancelled := totals[model.BookingCancelled]

	var percentage float64
	if event.Capacity > 0 {
		percentage = math.Round(float64(event.BookedCount)/float64(event.Capacity)*10000) / 100
	}

	return &model.EventStats{
		EventID:           event.ID,
		Title:             event.Title,
		Capacity:          event.Capacity,
		BookedCount:       event.BookedCount,
		AvailableTickets:  event.AvailableTickets(),
		BookingPercentage: percentage,
		ConfirmedBookings: confirmed.Count,
		CancelledBookings: cancelled.Count,
		Revenue:           confirmed.Revenue,
	}, nil
}

// ownedEvent loads the event and checks the caller is its organizer or an admin.
func (s *eventService) ownedEvent(ctx context.Context, identity *auth.Identity, id string) (*model.Event, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	event, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.Owns(event.OrganizerID) {
		s.cfg.Log.Warn("Event access denied", "id", id, "user_id", identity.UserID)
		return nil, apperrors.Forbidden("you can only manage your own events")
	}
	return event, nil
}

func (s *eventService) validate(v any, operation string) error {
	if err := s.validator.Struct(v); err != nil {
		s.cfg.Log.Warn("Event validation failed", "operation", operation, "error", err)
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Invalid "+operation+" input", verrs.Details())
		}
		return apperrors.Validation("Invalid "+operation+" input", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *eventService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, eventserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Event", id)
	case errors.Is(err, eventserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid event ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
