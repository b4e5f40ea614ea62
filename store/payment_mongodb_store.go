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

const PAYMENTS_COLLECTION = "payments"

type PaymentMongoDBStore struct {
	payments *mongo.Collection
	logger   *log.Logger
	tracer   trace.Tracer
}

func NewPaymentMongoDBStore(client *mongo.Client, logger *log.Logger, tracer trace.Tracer) domain.PaymentStore {
	return &PaymentMongoDBStore{
		payments: client.Database(DATABASE).Collection(PAYMENTS_COLLECTION),
		logger:   logger,
		tracer:   tracer,
	}
}

func (store *PaymentMongoDBStore) EnsureIndexes(ctx context.Context) error {
	_, err := store.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "metadata.referenceCode", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (store *PaymentMongoDBStore) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.InsertPayment")
	defer span.End()

	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	if payment.Status == "" {
		payment.Status = domain.PaymentPending
	}

	_, err := store.payments.InsertOne(ctx, payment)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *PaymentMongoDBStore) GetPayment(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.GetPayment")
	defer span.End()

	return store.filterOne(ctx, span, bson.M{"_id": id})
}

func (store *PaymentMongoDBStore) GetPaymentByReferenceCode(ctx context.Context, referenceCode string) (*domain.Payment, error) {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.GetPaymentByReferenceCode")
	defer span.End()

	return store.filterOne(ctx, span, bson.M{"metadata.referenceCode": referenceCode})
}

func (store *PaymentMongoDBStore) UpdatePayment(ctx context.Context, payment *domain.Payment) error {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.UpdatePayment")
	defer span.End()

	payment.UpdatedAt = time.Now()
	result, err := store.payments.ReplaceOne(ctx, bson.M{"_id": payment.ID}, payment)
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

func (store *PaymentMongoDBStore) UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status domain.PaymentStatus, transactionID string) error {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.UpdatePaymentStatus")
	defer span.End()

	// A payment that already reached a terminal status is never
	// downgraded by a late duplicate notification, and a redelivery of
	// the current status matches nothing, so paymentDate is written once
	// per transition and never drifts under repeated webhook delivery.
	statusFilter := bson.M{"$ne": status}
	if !status.Terminal() {
		statusFilter["$nin"] = bson.A{domain.PaymentCompleted, domain.PaymentRefunded}
	}
	filter := bson.M{"_id": id, "status": statusFilter}

	fields := bson.M{"status": status, "updatedAt": time.Now()}
	if transactionID != "" {
		fields["transactionId"] = transactionID
	}
	if status == domain.PaymentCompleted {
		fields["paymentDate"] = time.Now()
	}

	result, err := store.payments.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if result.MatchedCount == 0 {
		store.logger.Printf("payment %s: dropped status update to %s (already in that status, terminal status set, or missing row)", id.Hex(), status)
	}
	return nil
}

func (store *PaymentMongoDBStore) UpdatePaymentReservation(ctx context.Context, id primitive.ObjectID, reservationID string) error {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.UpdatePaymentReservation")
	defer span.End()

	update := bson.M{"$set": bson.M{"reservationId": reservationID, "updatedAt": time.Now()}}
	_, err := store.payments.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *PaymentMongoDBStore) GetCompletedPaymentsByReservation(ctx context.Context, reservationID string) ([]*domain.Payment, error) {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.GetCompletedPaymentsByReservation")
	defer span.End()

	filter := bson.M{"reservationId": reservationID, "status": domain.PaymentCompleted}
	return store.filter(ctx, span, filter)
}

func (store *PaymentMongoDBStore) GetPaymentsByReservation(ctx context.Context, reservationID string) ([]*domain.Payment, error) {
	ctx, span := store.tracer.Start(ctx, "PaymentMongoDBStore.GetPaymentsByReservation")
	defer span.End()

	return store.filter(ctx, span, bson.M{"reservationId": reservationID})
}

func (store *PaymentMongoDBStore) filterOne(ctx context.Context, span trace.Span, filter interface{}) (*domain.Payment, error) {
	var payment domain.Payment
	err := store.payments.FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	return &payment, nil
}

func (store *PaymentMongoDBStore) filter(ctx context.Context, span trace.Span, filter interface{}) ([]*domain.Payment, error) {
	cursor, err := store.payments.Find(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []*domain.Payment
	for cursor.Next(ctx) {
		var payment domain.Payment
		if err := cursor.Decode(&payment); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		payments = append(payments, &payment)
	}
	return payments, cursor.Err()
}
