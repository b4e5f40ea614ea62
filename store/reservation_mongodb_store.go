package store

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

const (
	RESERVATIONS_COLLECTION      = "reservations"
	TEMP_RESERVATIONS_COLLECTION = "temporary_reservations"
)

type ReservationMongoDBStore struct {
	reservations     *mongo.Collection
	tempReservations *mongo.Collection
	logger           *log.Logger
	tracer           trace.Tracer
}

func NewReservationMongoDBStore(client *mongo.Client, logger *log.Logger, tracer trace.Tracer) domain.ReservationStore {
	database := client.Database(DATABASE)
	return &ReservationMongoDBStore{
		reservations:     database.Collection(RESERVATIONS_COLLECTION),
		tempReservations: database.Collection(TEMP_RESERVATIONS_COLLECTION),
		logger:           logger,
		tracer:           tracer,
	}
}

// EnsureIndexes creates the partial unique index on
// metadata.originalTempId. Under concurrent duplicate promotion the
// second insert fails with a duplicate key error instead of
// double-booking a paid guest.
func (store *ReservationMongoDBStore) EnsureIndexes(ctx context.Context) error {
	_, err := store.reservations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metadata.originalTempId", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"metadata.originalTempId": bson.M{"$exists": true, "$type": "string"},
			}),
	})
	if err != nil {
		return err
	}
	_, err = store.reservations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "checkInDate", Value: 1}},
	})
	return err
}

func (store *ReservationMongoDBStore) InsertReservation(ctx context.Context, reservation *domain.Reservation) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.InsertReservation")
	defer span.End()

	if reservation.ID.IsZero() {
		reservation.ID = primitive.NewObjectID()
	}
	reservation.CreatedAt = time.Now()
	reservation.UpdatedAt = reservation.CreatedAt

	_, err := store.reservations.InsertOne(ctx, reservation)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && reservation.Metadata.OriginalTempID != "" {
			return apperrors.ErrAlreadyPromoted
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *ReservationMongoDBStore) GetReservation(ctx context.Context, id primitive.ObjectID) (*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservation")
	defer span.End()

	return store.filterOne(ctx, span, bson.M{"_id": id})
}

func (store *ReservationMongoDBStore) GetReservationByConfirmationCode(ctx context.Context, code string) (*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationByConfirmationCode")
	defer span.End()

	return store.filterOne(ctx, span, bson.M{"confirmationCode": code})
}

func (store *ReservationMongoDBStore) GetReservationByOriginalTempID(ctx context.Context, originalTempID string) (*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationByOriginalTempID")
	defer span.End()

	return store.filterOne(ctx, span, bson.M{"metadata.originalTempId": originalTempID})
}

func (store *ReservationMongoDBStore) UpdateReservation(ctx context.Context, reservation *domain.Reservation) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.UpdateReservation")
	defer span.End()

	reservation.UpdatedAt = time.Now()
	result, err := store.reservations.ReplaceOne(ctx, bson.M{"_id": reservation.ID}, reservation)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (store *ReservationMongoDBStore) UpdateReservationStatus(ctx context.Context, id primitive.ObjectID, status domain.ReservationStatus) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.UpdateReservationStatus")
	defer span.End()

	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	result, err := store.reservations.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (store *ReservationMongoDBStore) UpdateReservationPayment(ctx context.Context, id primitive.ObjectID, paymentStatus domain.ReservationPaymentStatus, method string) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.UpdateReservationPayment")
	defer span.End()

	fields := bson.M{"paymentStatus": paymentStatus, "updatedAt": time.Now()}
	if method != "" {
		fields["paymentMethod"] = method
	}
	result, err := store.reservations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (store *ReservationMongoDBStore) DeleteReservation(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.DeleteReservation")
	defer span.End()

	result, err := store.reservations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (store *ReservationMongoDBStore) FindOverlapping(ctx context.Context, roomIDs []string, checkIn, checkOut time.Time, statuses []domain.ReservationStatus) ([]*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.FindOverlapping")
	defer span.End()

	// Interval overlap on half-open [checkIn, checkOut):
	// existing.start < new.end AND existing.end > new.start.
	filter := bson.M{
		"roomId":       bson.M{"$in": roomIDs},
		"status":       bson.M{"$in": statuses},
		"checkInDate":  bson.M{"$lt": checkOut},
		"checkOutDate": bson.M{"$gt": checkIn},
	}
	return store.filter(ctx, span, filter)
}

func (store *ReservationMongoDBStore) GetReservationsByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationsByUser")
	defer span.End()

	return store.filter(ctx, span, bson.M{"userId": userID})
}

func (store *ReservationMongoDBStore) GetReservationsByEmail(ctx context.Context, email string) ([]*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationsByEmail")
	defer span.End()

	return store.filter(ctx, span, bson.M{"guest.email": email})
}

func (store *ReservationMongoDBStore) GetReservationsByStatus(ctx context.Context, status domain.ReservationStatus) ([]*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationsByStatus")
	defer span.End()

	return store.filter(ctx, span, bson.M{"status": status})
}

func (store *ReservationMongoDBStore) GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Reservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetReservationsByDateRange")
	defer span.End()

	filter := bson.M{
		"checkInDate":  bson.M{"$lt": to},
		"checkOutDate": bson.M{"$gt": from},
	}
	return store.filter(ctx, span, filter)
}

func (store *ReservationMongoDBStore) InsertTemporaryReservation(ctx context.Context, reservation *domain.TemporaryReservation) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.InsertTemporaryReservation")
	defer span.End()

	if reservation.ID.IsZero() {
		reservation.ID = primitive.NewObjectID()
	}
	reservation.CreatedAt = time.Now()
	if reservation.ExpiresAt.IsZero() {
		reservation.ExpiresAt = reservation.CreatedAt.Add(domain.TemporaryReservationTTL)
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationPending
	}

	_, err := store.tempReservations.InsertOne(ctx, reservation)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *ReservationMongoDBStore) GetTemporaryReservation(ctx context.Context, id primitive.ObjectID) (*domain.TemporaryReservation, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.GetTemporaryReservation")
	defer span.End()

	var reservation domain.TemporaryReservation
	err := store.tempReservations.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	return &reservation, nil
}

func (store *ReservationMongoDBStore) DeleteTemporaryReservation(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.DeleteTemporaryReservation")
	defer span.End()

	_, err := store.tempReservations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *ReservationMongoDBStore) CountLiveOverlapping(ctx context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time, now time.Time) (int, error) {
	ctx, span := store.tracer.Start(ctx, "ReservationMongoDBStore.CountLiveOverlapping")
	defer span.End()

	// Expired holds are filtered by the query itself, no sweeper runs.
	filter := bson.M{
		"roomTypeId":   roomTypeID,
		"expiresAt":    bson.M{"$gt": now},
		"checkInDate":  bson.M{"$lt": checkOut},
		"checkOutDate": bson.M{"$gt": checkIn},
	}
	count, err := store.tempReservations.CountDocuments(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return 0, err
	}
	return int(count), nil
}

func (store *ReservationMongoDBStore) filterOne(ctx context.Context, span trace.Span, filter interface{}) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := store.reservations.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	return &reservation, nil
}

func (store *ReservationMongoDBStore) filter(ctx context.Context, span trace.Span, filter interface{}) ([]*domain.Reservation, error) {
	cursor, err := store.reservations.Find(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	for cursor.Next(ctx) {
		var reservation domain.Reservation
		if err := cursor.Decode(&reservation); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		reservations = append(reservations, &reservation)
	}
	return reservations, cursor.Err()
}
