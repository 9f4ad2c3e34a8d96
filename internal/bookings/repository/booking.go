package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "ticketing/internal/bookings/errors"
	"ticketing/pkg/config"
	mongotx "ticketing/pkg/db/mongo"
	"ticketing/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// StatusTotals aggregates the bookings of one event that share a status.
type StatusTotals struct {
	Count    int64   `bson:"count"`
	Quantity int64   `bson:"quantity"`
	Revenue  float64 `bson:"revenue"`
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Booking, error)
	FindByEvent(ctx context.Context, eventID string) ([]*model.Booking, error)

	// MarkCancelled flips a confirmed booking to cancelled. A booking that is
	// no longer confirmed yields ErrAlreadyCancelled.
	MarkCancelled(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	// CancelAllForEvent cancels every confirmed booking of the event and
	// returns them in their cancelled state.
	CancelAllForEvent(ctx context.Context, eventID string, at time.Time) ([]*model.Booking, error)
	SummarizeByEvent(ctx context.Context, eventID string) (map[model.BookingStatus]StatusTotals, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config, db *mongo.Database) BookingRepository {
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// Inside a transaction the session context is returned unchanged.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	return r.findNewestFirst(ctx, bson.M{"user_id": userID})
}

func (r *mongoBookingRepository) FindByEvent(ctx context.Context, eventID string) ([]*model.Booking, error) {
	return r.findNewestFirst(ctx, bson.M{"event_id": eventID})
}

func (r *mongoBookingRepository) findNewestFirst(ctx context.Context, filter bson.M) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.BookingConfirmed}
	update := bson.M{"$set": bson.M{
		"status":       model.BookingCancelled,
		"cancelled_at": at.UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, bookingserrors.ErrAlreadyCancelled
}

func (r *mongoBookingRepository) CancelAllForEvent(ctx context.Context, eventID string, at time.Time) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"event_id": eventID, "status": model.BookingConfirmed})
	if err != nil {
		return nil, fmt.Errorf("failed to find event bookings: %w", err)
	}
	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode event bookings: %w", err)
	}
	if len(bookings) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		oid, err := primitive.ObjectIDFromHex(b.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, b.ID)
		}
		ids = append(ids, oid)
	}

	cancelledAt := at.UTC().Truncate(time.Millisecond)
	filter := bson.M{"_id": bson.M{"$in": ids}, "status": model.BookingConfirmed}
	update := bson.M{"$set": bson.M{
		"status":       model.BookingCancelled,
		"cancelled_at": cancelledAt,
	}}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to cancel event bookings: %w", err)
	}

	for _, b := range bookings {
		b.Status = model.BookingCancelled
		b.CancelledAt = &cancelledAt
	}
	return bookings, nil
}

func (r *mongoBookingRepository) SummarizeByEvent(ctx context.Context, eventID string) (map[model.BookingStatus]StatusTotals, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$status",
			"count":    bson.M{"$sum": 1},
			"quantity": bson.M{"$sum": "$quantity"},
			"revenue":  bson.M{"$sum": "$total_price"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status       model.BookingStatus `bson:"_id"`
		StatusTotals `bson:",inline"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode booking summary: %w", err)
	}

	totals := make(map[model.BookingStatus]StatusTotals, len(rows))
	for _, row := range rows {
		totals[row.Status] = row.StatusTotals
	}
	return totals, nil
}
