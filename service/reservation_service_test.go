package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

func TestCreateBookingAllocatesFirstFreeRoom(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)
	fixture.addRoom(roomType.ID, "102", domain.RoomAvailable)

	result, err := fixture.reservations.CreateBooking(ctx, &domain.CreateReservationRequest{
		RoomTypeID:   roomType.ID.Hex(),
		CheckInDate:  "2026-03-10",
		CheckOutDate: "2026-03-13",
		Adults:       2,
		TotalPrice:   450,
		Guest:        testGuest(),
	})
	require.NoError(t, err)
	assert.False(t, result.IsTemporary)
	assert.Len(t, result.ConfirmationCode, 8)

	reservation, err := fixture.reservations.GetReservation(ctx, mustObjectID(t, result.ReservationID))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, reservation.Status)
	assert.Equal(t, domain.PaymentStatusPending, reservation.PaymentStatus)

	room, err := fixture.roomStore.GetRoom(ctx, mustObjectID(t, reservation.RoomID))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomReserved, room.Status)
}

func TestCreateBookingTemporaryHold(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	result, err := fixture.reservations.CreateBooking(ctx, &domain.CreateReservationRequest{
		RoomTypeID:   roomType.ID.Hex(),
		CheckInDate:  "2026-03-10",
		CheckOutDate: "2026-03-13",
		Adults:       1,
		TotalPrice:   450,
		Guest:        testGuest(),
		IsTemporary:  true,
	})
	require.NoError(t, err)
	assert.True(t, result.IsTemporary)

	temporary, err := fixture.reservations.GetTemporaryReservation(ctx, mustObjectID(t, result.ReservationID))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, temporary.Status)
	assert.False(t, temporary.ExpiresAt.IsZero())

	// The hold consumes the single room of this type.
	checkIn, checkOut := dates(9, 13)
	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.False(t, availability.Available)
}

func TestCreateBookingNoAvailability(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	require.NoError(t, fixture.reservationStore.InsertReservation(ctx, &domain.Reservation{
		RoomID:           room.ID.Hex(),
		Guest:            testGuest(),
		CheckInDate:      checkIn,
		CheckOutDate:     checkOut,
		Status:           domain.ReservationConfirmed,
		ConfirmationCode: "AAAA1111",
	}))

	_, err := fixture.reservations.CreateBooking(ctx, &domain.CreateReservationRequest{
		RoomTypeID:   roomType.ID.Hex(),
		CheckInDate:  "2026-03-11",
		CheckOutDate: "2026-03-12",
		Adults:       1,
		TotalPrice:   150,
		Guest:        testGuest(),
	})
	assert.Equal(t, apperrors.ErrNoAvailability, err)
}

func TestCreateBookingRejectsInvertedDates(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	_, err := fixture.reservations.CreateBooking(ctx, &domain.CreateReservationRequest{
		RoomTypeID:   roomType.ID.Hex(),
		CheckInDate:  "2026-03-13",
		CheckOutDate: "2026-03-10",
		Adults:       1,
		TotalPrice:   450,
		Guest:        testGuest(),
	})
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)

	// Zero-length stays are rejected too.
	_, err = fixture.reservations.CreateBooking(ctx, &domain.CreateReservationRequest{
		RoomTypeID:   roomType.ID.Hex(),
		CheckInDate:  "2026-03-10",
		CheckOutDate: "2026-03-10",
		Adults:       1,
		TotalPrice:   150,
		Guest:        testGuest(),
	})
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)

	// Nothing was stored and the room was not touched.
	pending, err := fixture.reservationStore.GetReservationsByStatus(ctx, domain.ReservationPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	untouched, _ := fixture.roomStore.GetRoom(ctx, room.ID)
	assert.Equal(t, domain.RoomAvailable, untouched.Status)
}

func TestCreateReservationRejectsInvertedDates(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(13, 10)
	err := fixture.reservations.CreateReservation(ctx, &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	})
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)

	untouched, _ := fixture.roomStore.GetRoom(ctx, room.ID)
	assert.Equal(t, domain.RoomAvailable, untouched.Status)
}

func TestCreateTemporaryReservationRejectsInvertedDates(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)

	checkIn, checkOut := dates(13, 10)
	err := fixture.reservations.CreateTemporaryReservation(ctx, &domain.TemporaryReservation{
		RoomTypeID:   roomType.ID,
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	})
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)

	from, to := dates(1, 30)
	count, err := fixture.reservationStore.CountLiveOverlapping(ctx, roomType.ID, from, to, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCreateBookingUnknownRoomType(t *testing.T) {
	fixture := newServiceFixture()

	_, err := fixture.reservations.CreateBooking(context.Background(), &domain.CreateReservationRequest{
		RoomTypeID:   "64f000000000000000000000",
		CheckInDate:  "2026-03-10",
		CheckOutDate: "2026-03-13",
		Adults:       1,
		Guest:        testGuest(),
	})
	assert.Equal(t, apperrors.ErrNotFound, err)
}

func TestCreateReservationRejectsOverlap(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	first := &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	}
	require.NoError(t, fixture.reservations.CreateReservation(ctx, first))

	overlapIn, overlapOut := dates(12, 15)
	second := &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  overlapIn,
		CheckOutDate: overlapOut,
	}
	assert.Equal(t, apperrors.ErrConflict, fixture.reservations.CreateReservation(ctx, second))
}

func TestCreateReservationRejectsUnbookableRoom(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomMaintenance)

	checkIn, checkOut := dates(10, 13)
	err := fixture.reservations.CreateReservation(ctx, &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	})
	assert.Equal(t, apperrors.ErrInvalidState, err)
}

func TestUpdateReservationStatusSideEffects(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	reservation := &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	}
	require.NoError(t, fixture.reservations.CreateReservation(ctx, reservation))

	require.NoError(t, fixture.reservations.UpdateReservationStatus(ctx, reservation.ID, domain.ReservationCheckedIn))
	room1, _ := fixture.roomStore.GetRoom(ctx, room.ID)
	assert.Equal(t, domain.RoomOccupied, room1.Status)

	require.NoError(t, fixture.reservations.UpdateReservationStatus(ctx, reservation.ID, domain.ReservationCheckedOut))
	room2, _ := fixture.roomStore.GetRoom(ctx, room.ID)
	assert.Equal(t, domain.RoomCleaning, room2.Status)

	// Repeating the same transition is a no-op.
	require.NoError(t, fixture.reservations.UpdateReservationStatus(ctx, reservation.ID, domain.ReservationCheckedOut))
}

func TestDeleteReservationRules(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	reservation := &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	}
	require.NoError(t, fixture.reservations.CreateReservation(ctx, reservation))

	require.NoError(t, fixture.reservations.UpdateReservationStatus(ctx, reservation.ID, domain.ReservationCheckedIn))
	assert.Equal(t, apperrors.ErrInvalidState, fixture.reservations.DeleteReservation(ctx, reservation.ID))

	require.NoError(t, fixture.reservations.UpdateReservationStatus(ctx, reservation.ID, domain.ReservationCancelled))
	require.NoError(t, fixture.reservations.DeleteReservation(ctx, reservation.ID))

	_, err := fixture.reservations.GetReservation(ctx, reservation.ID)
	assert.Equal(t, apperrors.ErrNotFound, err)

	released, _ := fixture.roomStore.GetRoom(ctx, room.ID)
	assert.Equal(t, domain.RoomAvailable, released.Status)
}

func TestCreateReservationInvalidatesCaches(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	room := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	require.NoError(t, fixture.reservations.CreateReservation(ctx, &domain.Reservation{
		RoomID:       room.ID.Hex(),
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	}))

	assert.Contains(t, fixture.cache.invalidated, "availability:*")
	assert.Contains(t, fixture.cache.invalidated, "reservations:*")
}
