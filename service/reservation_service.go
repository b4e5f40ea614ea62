package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

const confirmationCodeAttempts = 5

type ReservationService struct {
	roomStore        domain.RoomStore
	reservationStore domain.ReservationStore
	availability     *AvailabilityService
	cache            domain.BookingCache
	logger           *logrus.Logger
	tracer           trace.Tracer
}

func NewReservationService(roomStore domain.RoomStore, reservationStore domain.ReservationStore, availability *AvailabilityService, cache domain.BookingCache, logger *logrus.Logger, tracer trace.Tracer) *ReservationService {
	return &ReservationService{
		roomStore:        roomStore,
		reservationStore: reservationStore,
		availability:     availability,
		cache:            cache,
		logger:           logger,
		tracer:           tracer,
	}
}

// BookingResult identifies the reservation created from a booking
// request, permanent or temporary.
type BookingResult struct {
	ReservationID    string
	ConfirmationCode string
	IsTemporary      bool
}

// CreateBooking runs the guest booking flow: availability pass on the
// room type, then either a temporary hold (unauthenticated guests) or a
// permanent reservation on the first free room.
func (service *ReservationService) CreateBooking(ctx context.Context, request *domain.CreateReservationRequest) (*BookingResult, error) {
	ctx, span := service.tracer.Start(ctx, "ReservationService.CreateBooking")
	defer span.End()

	roomTypeID, err := primitive.ObjectIDFromHex(request.RoomTypeID)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	if _, err := service.roomStore.GetRoomType(ctx, roomTypeID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	checkIn, checkOut, err := request.Dates()
	if err != nil {
		return nil, err
	}

	availability, err := service.availability.CheckAvailability(ctx, roomTypeID, checkIn, checkOut)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !availability.Available {
		return nil, apperrors.ErrNoAvailability
	}

	paymentMethod := ""
	if request.PayOnArrival {
		paymentMethod = "on_arrival"
	}

	if request.IsTemporary {
		temporary := &domain.TemporaryReservation{
			RoomTypeID:      roomTypeID,
			Guest:           request.Guest,
			CheckInDate:     checkIn,
			CheckOutDate:    checkOut,
			Adults:          request.Adults,
			Children:        request.Children,
			TotalPrice:      request.TotalPrice,
			SpecialRequests: request.SpecialRequests,
		}
		if err := service.CreateTemporaryReservation(ctx, temporary); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return &BookingResult{
			ReservationID:    temporary.ID.Hex(),
			ConfirmationCode: temporary.ConfirmationCode,
			IsTemporary:      true,
		}, nil
	}

	freeRooms, err := service.availability.FreeRooms(ctx, roomTypeID, checkIn, checkOut)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(freeRooms) == 0 {
		return nil, apperrors.ErrNoAvailability
	}

	reservation := &domain.Reservation{
		RoomID:          freeRooms[0].ID.Hex(),
		UserID:          request.UserID,
		Guest:           request.Guest,
		CheckInDate:     checkIn,
		CheckOutDate:    checkOut,
		Adults:          request.Adults,
		Children:        request.Children,
		TotalPrice:      request.TotalPrice,
		Status:          domain.ReservationPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   paymentMethod,
		SpecialRequests: request.SpecialRequests,
	}
	if err := service.CreateReservation(ctx, reservation); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &BookingResult{
		ReservationID:    reservation.ID.Hex(),
		ConfirmationCode: reservation.ConfirmationCode,
		IsTemporary:      false,
	}, nil
}

// CreateReservation persists a permanent reservation after re-validating
// the target room and re-checking the exact-room overlap.
func (service *ReservationService) CreateReservation(ctx context.Context, reservation *domain.Reservation) error {
	ctx, span := service.tracer.Start(ctx, "ReservationService.CreateReservation")
	defer span.End()

	if err := reservation.Guest.Validate(); err != nil {
		return err
	}
	if !reservation.CheckOutDate.After(reservation.CheckInDate) {
		return apperrors.ErrInvalidDateRange
	}

	roomID, err := primitive.ObjectIDFromHex(reservation.RoomID)
	if err != nil {
		return apperrors.ErrNotFound
	}
	room, err := service.roomStore.GetRoom(ctx, roomID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if room.Status != domain.RoomAvailable && room.Status != domain.RoomReserved {
		return apperrors.ErrInvalidState
	}

	if err := service.checkRoomOverlap(ctx, reservation.RoomID, reservation.CheckInDate, reservation.CheckOutDate, primitive.NilObjectID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if reservation.ConfirmationCode == "" {
		code, err := service.uniqueConfirmationCode(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		reservation.ConfirmationCode = code
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationPending
	}
	if reservation.PaymentStatus == "" {
		reservation.PaymentStatus = domain.PaymentStatusPending
	}

	if err := service.reservationStore.InsertReservation(ctx, reservation); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := service.roomStore.UpdateRoomStatus(ctx, roomID, domain.RoomReserved); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	service.invalidateBookingCaches(ctx)
	return nil
}

// CreateTemporaryReservation records a 30 minute hold on the room type.
// No concrete room is touched.
func (service *ReservationService) CreateTemporaryReservation(ctx context.Context, reservation *domain.TemporaryReservation) error {
	ctx, span := service.tracer.Start(ctx, "ReservationService.CreateTemporaryReservation")
	defer span.End()

	if err := reservation.Guest.Validate(); err != nil {
		return err
	}
	if !reservation.CheckOutDate.After(reservation.CheckInDate) {
		return apperrors.ErrInvalidDateRange
	}

	if reservation.ConfirmationCode == "" {
		code, err := service.uniqueConfirmationCode(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		reservation.ConfirmationCode = code
	}
	reservation.Status = domain.ReservationPending
	reservation.ExpiresAt = time.Now().Add(domain.TemporaryReservationTTL)

	if err := service.reservationStore.InsertTemporaryReservation(ctx, reservation); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	service.invalidateBookingCaches(ctx)
	return nil
}

// UpdateReservation applies edits. A room change re-validates the new
// room and releases the old one; status transitions drive the room
// status side effects.
func (service *ReservationService) UpdateReservation(ctx context.Context, updated *domain.Reservation) error {
	ctx, span := service.tracer.Start(ctx, "ReservationService.UpdateReservation")
	defer span.End()

	if !updated.CheckOutDate.After(updated.CheckInDate) {
		return apperrors.ErrInvalidDateRange
	}

	existing, err := service.reservationStore.GetReservation(ctx, updated.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if updated.RoomID != existing.RoomID {
		newRoomID, err := primitive.ObjectIDFromHex(updated.RoomID)
		if err != nil {
			return apperrors.ErrNotFound
		}
		newRoom, err := service.roomStore.GetRoom(ctx, newRoomID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if newRoom.Status != domain.RoomAvailable && newRoom.Status != domain.RoomReserved {
			return apperrors.ErrInvalidState
		}
		if err := service.checkRoomOverlap(ctx, updated.RoomID, updated.CheckInDate, updated.CheckOutDate, updated.ID); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		// Release the old room unless the guest is physically in it.
		if existing.Status != domain.ReservationCheckedIn {
			if oldRoomID, err := primitive.ObjectIDFromHex(existing.RoomID); err == nil {
				if err := service.roomStore.UpdateRoomStatus(ctx, oldRoomID, domain.RoomAvailable); err != nil {
					service.logger.Errorf("ReservationService.UpdateReservation : releasing old room failed: %s", err)
				}
			}
		}
		if err := service.roomStore.UpdateRoomStatus(ctx, newRoomID, domain.RoomReserved); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := service.reservationStore.UpdateReservation(ctx, updated); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if updated.Status != existing.Status {
		service.applyStatusSideEffects(ctx, updated)
	}

	service.invalidateBookingCaches(ctx)
	return nil
}

// UpdateReservationStatus transitions the booking status and fires the
// room side effects (Checked-in -> Occupied, Checked-out/Cancelled ->
// Cleaning). The guards are idempotent: nothing fires when the status is
// unchanged.
func (service *ReservationService) UpdateReservationStatus(ctx context.Context, id primitive.ObjectID, status domain.ReservationStatus) error {
	ctx, span := service.tracer.Start(ctx, "ReservationService.UpdateReservationStatus")
	defer span.End()

	existing, err := service.reservationStore.GetReservation(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if existing.Status == status {
		return nil
	}

	if err := service.reservationStore.UpdateReservationStatus(ctx, id, status); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	existing.Status = status
	service.applyStatusSideEffects(ctx, existing)
	service.invalidateBookingCaches(ctx)
	return nil
}

// DeleteReservation removes a booking that never progressed: only
// Pending and Cancelled reservations may be deleted, and the room is
// released back to Available.
func (service *ReservationService) DeleteReservation(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := service.tracer.Start(ctx, "ReservationService.DeleteReservation")
	defer span.End()

	reservation, err := service.reservationStore.GetReservation(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if reservation.Status != domain.ReservationPending && reservation.Status != domain.ReservationCancelled {
		return apperrors.ErrInvalidState
	}

	if err := service.reservationStore.DeleteReservation(ctx, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if roomID, err := primitive.ObjectIDFromHex(reservation.RoomID); err == nil {
		if err := service.roomStore.UpdateRoomStatus(ctx, roomID, domain.RoomAvailable); err != nil {
			service.logger.Errorf("ReservationService.DeleteReservation : releasing room failed: %s", err)
		}
	}

	service.invalidateBookingCaches(ctx)
	return nil
}

func (service *ReservationService) GetReservation(ctx context.Context, id primitive.ObjectID) (*domain.Reservation, error) {
	return service.reservationStore.GetReservation(ctx, id)
}

func (service *ReservationService) GetReservationByConfirmationCode(ctx context.Context, code string) (*domain.Reservation, error) {
	return service.reservationStore.GetReservationByConfirmationCode(ctx, code)
}

func (service *ReservationService) GetTemporaryReservation(ctx context.Context, id primitive.ObjectID) (*domain.TemporaryReservation, error) {
	return service.reservationStore.GetTemporaryReservation(ctx, id)
}

func (service *ReservationService) GetReservationsByEmail(ctx context.Context, email string) ([]*domain.Reservation, error) {
	return service.reservationStore.GetReservationsByEmail(ctx, email)
}

func (service *ReservationService) GetReservationsByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	return service.reservationStore.GetReservationsByUser(ctx, userID)
}

func (service *ReservationService) GetReservationsByStatus(ctx context.Context, status domain.ReservationStatus) ([]*domain.Reservation, error) {
	return service.reservationStore.GetReservationsByStatus(ctx, status)
}

func (service *ReservationService) GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Reservation, error) {
	return service.reservationStore.GetReservationsByDateRange(ctx, from, to)
}

// ReservationDetails joins the room and room type for display.
type ReservationDetails struct {
	Reservation *domain.Reservation `json:"reservation"`
	Room        *domain.Room        `json:"room,omitempty"`
	RoomType    *domain.RoomType    `json:"roomType,omitempty"`
}

func (service *ReservationService) GetReservationDetails(ctx context.Context, id primitive.ObjectID) (*ReservationDetails, error) {
	ctx, span := service.tracer.Start(ctx, "ReservationService.GetReservationDetails")
	defer span.End()

	reservation, err := service.reservationStore.GetReservation(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	details := &ReservationDetails{Reservation: reservation}
	if roomID, err := primitive.ObjectIDFromHex(reservation.RoomID); err == nil {
		if room, err := service.roomStore.GetRoom(ctx, roomID); err == nil {
			details.Room = room
			if roomType, err := service.roomStore.GetRoomType(ctx, room.RoomTypeID); err == nil {
				details.RoomType = roomType
			}
		}
	}
	return details, nil
}

func (service *ReservationService) checkRoomOverlap(ctx context.Context, roomID string, checkIn, checkOut time.Time, exclude primitive.ObjectID) error {
	overlapping, err := service.reservationStore.FindOverlapping(ctx, []string{roomID}, checkIn, checkOut, domain.ActiveReservationStatuses)
	if err != nil {
		return err
	}
	for _, other := range overlapping {
		if other.ID != exclude {
			return apperrors.ErrConflict
		}
	}
	return nil
}

func (service *ReservationService) applyStatusSideEffects(ctx context.Context, reservation *domain.Reservation) {
	roomID, err := primitive.ObjectIDFromHex(reservation.RoomID)
	if err != nil {
		return
	}

	var roomStatus domain.RoomStatus
	switch reservation.Status {
	case domain.ReservationCheckedIn:
		roomStatus = domain.RoomOccupied
	case domain.ReservationCheckedOut, domain.ReservationCancelled:
		roomStatus = domain.RoomCleaning
	default:
		return
	}

	if err := service.roomStore.UpdateRoomStatus(ctx, roomID, roomStatus); err != nil {
		service.logger.Errorf("ReservationService : room %s status side effect failed: %s", reservation.RoomID, err)
	}
}

func (service *ReservationService) uniqueConfirmationCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < confirmationCodeAttempts; attempt++ {
		code := domain.GenerateConfirmationCode()
		_, err := service.reservationStore.GetReservationByConfirmationCode(ctx, code)
		if err == apperrors.ErrNotFound {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	// Collisions five times in a row over a 36^8 space means something
	// else is wrong; surface it.
	return "", apperrors.ErrConflict
}

func (service *ReservationService) invalidateBookingCaches(ctx context.Context) {
	for _, pattern := range []string{"availability:*", "reservations:*", "roomtypes:*"} {
		if err := service.cache.InvalidatePattern(ctx, pattern); err != nil {
			service.logger.Errorf("ReservationService : cache invalidation %s failed: %s", pattern, err)
		}
	}
}
