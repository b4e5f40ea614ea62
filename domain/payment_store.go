package domain

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStore interface {
	InsertPayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, id primitive.ObjectID) (*Payment, error)
	GetPaymentByReferenceCode(ctx context.Context, referenceCode string) (*Payment, error)
	UpdatePayment(ctx context.Context, payment *Payment) error
	// UpdatePaymentStatus refuses to downgrade a terminal status; a late
	// DECLINED notification after a Completed capture is dropped.
	UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status PaymentStatus, transactionID string) error
	UpdatePaymentReservation(ctx context.Context, id primitive.ObjectID, reservationID string) error
	GetCompletedPaymentsByReservation(ctx context.Context, reservationID string) ([]*Payment, error)
	GetPaymentsByReservation(ctx context.Context, reservationID string) ([]*Payment, error)
}
