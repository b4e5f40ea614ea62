package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking_service/domain"
)

func dates(checkInDay, checkOutDay int) (time.Time, time.Time) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, checkInDay), base.AddDate(0, 0, checkOutDay)
}

func TestCheckAvailabilityCountsOccupiedRooms(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	roomA := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)
	fixture.addRoom(roomType.ID, "102", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	require.NoError(t, fixture.reservationStore.InsertReservation(ctx, &domain.Reservation{
		RoomID:           roomA.ID.Hex(),
		Guest:            testGuest(),
		CheckInDate:      checkIn,
		CheckOutDate:     checkOut,
		Status:           domain.ReservationConfirmed,
		ConfirmationCode: "AAAA1111",
	}))

	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.True(t, availability.Available)
	assert.Equal(t, 1, availability.FreeCount)
	assert.Equal(t, 2, availability.TotalRooms)
}

func TestCheckAvailabilityBackToBackStaysFree(t *testing.T) {
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

	// Checkout day equals the next guest's checkin day. Half-open
	// intervals make this a non-overlap.
	nextIn, nextOut := dates(13, 15)
	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, nextIn, nextOut)
	require.NoError(t, err)
	assert.True(t, availability.Available)
	assert.Equal(t, 1, availability.FreeCount)
}

func TestCheckAvailabilityTemporaryHoldsReduceCapacity(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Suite", 300)
	fixture.addRoom(roomType.ID, "301", domain.RoomAvailable)
	fixture.addRoom(roomType.ID, "302", domain.RoomAvailable)

	checkIn, checkOut := dates(5, 8)
	for i := 0; i < 2; i++ {
		require.NoError(t, fixture.reservationStore.InsertTemporaryReservation(ctx, &domain.TemporaryReservation{
			RoomTypeID:   roomType.ID,
			Guest:        testGuest(),
			CheckInDate:  checkIn,
			CheckOutDate: checkOut,
			ExpiresAt:    time.Now().Add(domain.TemporaryReservationTTL),
		}))
	}

	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.False(t, availability.Available)
	assert.Equal(t, 0, availability.FreeCount)
}

func TestCheckAvailabilityExpiredHoldFreesCapacity(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Suite", 300)
	fixture.addRoom(roomType.ID, "301", domain.RoomAvailable)

	checkIn, checkOut := dates(5, 8)
	require.NoError(t, fixture.reservationStore.InsertTemporaryReservation(ctx, &domain.TemporaryReservation{
		RoomTypeID:   roomType.ID,
		Guest:        testGuest(),
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.True(t, availability.Available)
	assert.Equal(t, 1, availability.FreeCount)
}

func TestCheckAvailabilityNoRooms(t *testing.T) {
	fixture := newServiceFixture()

	roomType := fixture.addRoomType("Empty", 100)
	checkIn, checkOut := dates(1, 2)

	availability, err := fixture.availability.CheckAvailability(context.Background(), roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.False(t, availability.Available)
	assert.Equal(t, 0, availability.TotalRooms)
}

func TestFreeRoomsSkipsMaintenanceAndOccupied(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	roomType := fixture.addRoomType("Double", 150)
	occupied := fixture.addRoom(roomType.ID, "101", domain.RoomAvailable)
	fixture.addRoom(roomType.ID, "102", domain.RoomMaintenance)
	free := fixture.addRoom(roomType.ID, "103", domain.RoomAvailable)

	checkIn, checkOut := dates(10, 13)
	require.NoError(t, fixture.reservationStore.InsertReservation(ctx, &domain.Reservation{
		RoomID:           occupied.ID.Hex(),
		Guest:            testGuest(),
		CheckInDate:      checkIn,
		CheckOutDate:     checkOut,
		Status:           domain.ReservationPending,
		ConfirmationCode: "BBBB2222",
	}))

	rooms, err := fixture.availability.FreeRooms(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, free.ID, rooms[0].ID)
}

func TestCancelledReservationDoesNotBlock(t *testing.T) {
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
		Status:           domain.ReservationCancelled,
		ConfirmationCode: "CCCC3333",
	}))

	availability, err := fixture.availability.CheckAvailability(ctx, roomType.ID, checkIn, checkOut)
	require.NoError(t, err)
	assert.True(t, availability.Available)
	assert.Equal(t, 1, availability.FreeCount)
}
