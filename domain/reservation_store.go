package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReservationStore interface {
	// InsertReservation persists a permanent reservation. When the
	// reservation carries Metadata.OriginalTempID and another reservation
	// already holds the same token, the store returns ErrAlreadyPromoted
	// (unique partial index backstop for duplicate promotion).
	InsertReservation(ctx context.Context, reservation *Reservation) error
	GetReservation(ctx context.Context, id primitive.ObjectID) (*Reservation, error)
	GetReservationByConfirmationCode(ctx context.Context, code string) (*Reservation, error)
	GetReservationByOriginalTempID(ctx context.Context, originalTempID string) (*Reservation, error)
	UpdateReservation(ctx context.Context, reservation *Reservation) error
	UpdateReservationStatus(ctx context.Context, id primitive.ObjectID, status ReservationStatus) error
	UpdateReservationPayment(ctx context.Context, id primitive.ObjectID, paymentStatus ReservationPaymentStatus, method string) error
	DeleteReservation(ctx context.Context, id primitive.ObjectID) error

	// FindOverlapping returns reservations in the given statuses whose
	// room is in roomIDs and whose [checkIn, checkOut) interval intersects
	// the queried one.
	FindOverlapping(ctx context.Context, roomIDs []string, checkIn, checkOut time.Time, statuses []ReservationStatus) ([]*Reservation, error)
	GetReservationsByUser(ctx context.Context, userID string) ([]*Reservation, error)
	GetReservationsByEmail(ctx context.Context, email string) ([]*Reservation, error)
	GetReservationsByStatus(ctx context.Context, status ReservationStatus) ([]*Reservation, error)
	GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*Reservation, error)

	InsertTemporaryReservation(ctx context.Context, reservation *TemporaryReservation) error
	GetTemporaryReservation(ctx context.Context, id primitive.ObjectID) (*TemporaryReservation, error)
	DeleteTemporaryReservation(ctx context.Context, id primitive.ObjectID) error
	// CountLiveOverlapping counts non-expired temporary holds on the room
	// type intersecting the interval. Expired holds are excluded by the
	// query itself; there is no background sweeper.
	CountLiveOverlapping(ctx context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time, now time.Time) (int, error)
}
