package application

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

// PendingRoomAssignment is the placeholder room reference carried by a
// Conflict reservation until staff assigns a real room.
const PendingRoomAssignment = "pending-assignment"

// EventType tags the post-commit events emitted once the transactional
// core of a promotion has finished. Listeners (mail, cache) consume them
// best-effort; their failures never touch committed state.
type EventType string

const (
	EventReservationPromoted EventType = "ReservationPromoted"
	EventConflictDetected    EventType = "ConflictDetected"
	EventPaymentReconciled   EventType = "PaymentReconciled"
)

type Event struct {
	Type        EventType
	Reservation *domain.Reservation
	Payment     *domain.Payment
}

// EventListener handles post-commit events. Errors are logged by the
// dispatcher and swallowed.
type EventListener interface {
	HandleEvent(ctx context.Context, event Event) error
}

// PromotionService converts a paid temporary reservation into a
// permanent one bound to a concrete room. It is triggered from both the
// synchronous payment response and the webhook, in either order, and
// the webhook may be delivered more than once; the originalTempId
// uniqueness in the reservation store makes the conversion happen at
// most once.
type PromotionService struct {
	roomStore        domain.RoomStore
	reservationStore domain.ReservationStore
	paymentStore     domain.PaymentStore
	availability     *AvailabilityService
	payments         *PaymentService
	listeners        []EventListener
	logger           *logrus.Logger
	tracer           trace.Tracer
}

func NewPromotionService(roomStore domain.RoomStore, reservationStore domain.ReservationStore, paymentStore domain.PaymentStore, availability *AvailabilityService, payments *PaymentService, logger *logrus.Logger, tracer trace.Tracer, listeners ...EventListener) *PromotionService {
	return &PromotionService{
		roomStore:        roomStore,
		reservationStore: reservationStore,
		paymentStore:     paymentStore,
		availability:     availability,
		payments:         payments,
		listeners:        listeners,
		logger:           logger,
		tracer:           tracer,
	}
}

// Promote runs the promotion state machine for a completed payment on a
// temporary reservation. Returns the permanent reservation, or nil when
// there was nothing to do (temp already cleaned up and never promoted).
func (service *PromotionService) Promote(ctx context.Context, payment *domain.Payment) (*domain.Reservation, error) {
	ctx, span := service.tracer.Start(ctx, "PromotionService.Promote")
	defer span.End()

	if !payment.Metadata.IsTemporary {
		service.logger.Warnf("PromotionService.Promote : payment %s is not a temporary-reservation payment", payment.ID.Hex())
		return nil, nil
	}

	originalTempID := payment.Metadata.OriginalTempID
	if originalTempID == "" {
		originalTempID = payment.ReservationID
	}

	// Idempotency short-circuit: a permanent reservation already carries
	// this originalTempId. Recompute the aggregate and refresh caches,
	// nothing else.
	existing, err := service.reservationStore.GetReservationByOriginalTempID(ctx, originalTempID)
	if err == nil {
		service.logger.Infof("PromotionService.Promote : %s already promoted to %s", originalTempID, existing.ID.Hex())
		service.finishNoOp(ctx, existing, payment)
		return existing, nil
	}
	if err != apperrors.ErrNotFound {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tempID, err := primitive.ObjectIDFromHex(payment.ReservationID)
	if err != nil {
		service.logger.Warnf("PromotionService.Promote : payment %s references invalid temporary id %q", payment.ID.Hex(), payment.ReservationID)
		return nil, nil
	}
	temporary, err := service.reservationStore.GetTemporaryReservation(ctx, tempID)
	if err == apperrors.ErrNotFound {
		// Already cleaned up or an invalid reference; not an error for
		// the caller.
		service.logger.Infof("PromotionService.Promote : temporary reservation %s not found, nothing to promote", payment.ReservationID)
		return nil, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	freeRooms, err := service.availability.FreeRooms(ctx, temporary.RoomTypeID, temporary.CheckInDate, temporary.CheckOutDate)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reservation := service.buildReservation(temporary, payment, originalTempID)
	var allocated *domain.Room
	if len(freeRooms) > 0 {
		allocated = freeRooms[0]
		reservation.RoomID = allocated.ID.Hex()
	} else {
		// The guest already paid; never drop the booking. Flag it for
		// manual room assignment instead.
		reservation.Status = domain.ReservationConflict
		reservation.RoomID = PendingRoomAssignment
		reservation.Metadata.NeedsRoomAssignment = true
		service.logger.Warnf("PromotionService.Promote : no free room of type %s for paid reservation %s", temporary.RoomTypeID.Hex(), originalTempID)
	}

	err = service.reservationStore.InsertReservation(ctx, reservation)
	if err == apperrors.ErrAlreadyPromoted {
		// Lost the race against a concurrent duplicate delivery; the
		// winner's reservation is the one that counts.
		winner, lookupErr := service.reservationStore.GetReservationByOriginalTempID(ctx, originalTempID)
		if lookupErr != nil {
			span.SetStatus(codes.Error, lookupErr.Error())
			return nil, lookupErr
		}
		service.finishNoOp(ctx, winner, payment)
		return winner, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if allocated != nil {
		if err := service.roomStore.UpdateRoomStatus(ctx, allocated.ID, domain.RoomReserved); err != nil {
			service.logger.Errorf("PromotionService.Promote : reserving room %s failed: %s", allocated.ID.Hex(), err)
		}
	}

	if err := service.reservationStore.DeleteTemporaryReservation(ctx, tempID); err != nil {
		service.logger.Errorf("PromotionService.Promote : deleting temporary reservation %s failed: %s", tempID.Hex(), err)
	}

	if err := service.paymentStore.UpdatePaymentReservation(ctx, payment.ID, reservation.ID.Hex()); err != nil {
		service.logger.Errorf("PromotionService.Promote : relinking payment %s failed: %s", payment.ID.Hex(), err)
	}

	if _, err := service.payments.CalculateReservationPaymentStatus(ctx, reservation.ID); err != nil {
		service.logger.Errorf("PromotionService.Promote : aggregate recompute for %s failed: %s", reservation.ID.Hex(), err)
	}

	events := []Event{
		{Type: EventReservationPromoted, Reservation: reservation, Payment: payment},
		{Type: EventPaymentReconciled, Reservation: reservation, Payment: payment},
	}
	if reservation.Status == domain.ReservationConflict {
		events = append(events, Event{Type: EventConflictDetected, Reservation: reservation, Payment: payment})
	}
	service.dispatch(ctx, events)

	return reservation, nil
}

func (service *PromotionService) buildReservation(temporary *domain.TemporaryReservation, payment *domain.Payment, originalTempID string) *domain.Reservation {
	paymentStatus := domain.PaymentStatusPartial
	if payment.Type == domain.PaymentTypeFull {
		paymentStatus = domain.PaymentStatusPaid
	}

	return &domain.Reservation{
		Guest:            temporary.Guest,
		CheckInDate:      temporary.CheckInDate,
		CheckOutDate:     temporary.CheckOutDate,
		Adults:           temporary.Adults,
		Children:         temporary.Children,
		TotalPrice:       temporary.TotalPrice,
		Status:           domain.ReservationConfirmed,
		PaymentStatus:    paymentStatus,
		PaymentMethod:    payment.Method,
		ConfirmationCode: temporary.ConfirmationCode,
		SpecialRequests:  temporary.SpecialRequests,
		Metadata: domain.ReservationMetadata{
			OriginalTempID: originalTempID,
		},
	}
}

// finishNoOp is the duplicate-delivery path: the permanent reservation
// exists, so only the aggregate payment status and the caches are
// refreshed.
func (service *PromotionService) finishNoOp(ctx context.Context, reservation *domain.Reservation, payment *domain.Payment) {
	if payment.ReservationID != reservation.ID.Hex() {
		if err := service.paymentStore.UpdatePaymentReservation(ctx, payment.ID, reservation.ID.Hex()); err != nil {
			service.logger.Errorf("PromotionService : relinking payment %s failed: %s", payment.ID.Hex(), err)
		}
	}
	if _, err := service.payments.CalculateReservationPaymentStatus(ctx, reservation.ID); err != nil {
		service.logger.Errorf("PromotionService : aggregate recompute for %s failed: %s", reservation.ID.Hex(), err)
	}
	service.dispatch(ctx, []Event{{Type: EventPaymentReconciled, Reservation: reservation, Payment: payment}})
}

func (service *PromotionService) dispatch(ctx context.Context, events []Event) {
	for _, event := range events {
		for _, listener := range service.listeners {
			if err := listener.HandleEvent(ctx, event); err != nil {
				service.logger.Errorf("PromotionService : %s listener failed: %s", event.Type, err)
			}
		}
	}
}
