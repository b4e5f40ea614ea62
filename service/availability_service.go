package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
)

const availabilityCacheTTL = 60 * time.Second

// Availability is the answer to "can this room type host these dates".
type Availability struct {
	Available  bool `json:"available"`
	FreeCount  int  `json:"freeCount"`
	TotalRooms int  `json:"totalRooms"`
}

type AvailabilityService struct {
	roomStore        domain.RoomStore
	reservationStore domain.ReservationStore
	cache            domain.BookingCache
	logger           *logrus.Logger
	tracer           trace.Tracer
}

func NewAvailabilityService(roomStore domain.RoomStore, reservationStore domain.ReservationStore, cache domain.BookingCache, logger *logrus.Logger, tracer trace.Tracer) *AvailabilityService {
	return &AvailabilityService{
		roomStore:        roomStore,
		reservationStore: reservationStore,
		cache:            cache,
		logger:           logger,
		tracer:           tracer,
	}
}

// CheckAvailability counts occupancy for the room type over
// [checkIn, checkOut): distinct rooms held by active permanent
// reservations plus live temporary holds. It always hits the store -
// booking and promotion decisions never read through the cache.
func (service *AvailabilityService) CheckAvailability(ctx context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time) (*Availability, error) {
	ctx, span := service.tracer.Start(ctx, "AvailabilityService.CheckAvailability")
	defer span.End()

	rooms, err := service.roomStore.GetRoomsByType(ctx, roomTypeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(rooms) == 0 {
		return &Availability{Available: false, FreeCount: 0, TotalRooms: 0}, nil
	}

	occupied, err := service.occupiedRoomIDs(ctx, rooms, checkIn, checkOut)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	temporaryCount, err := service.reservationStore.CountLiveOverlapping(ctx, roomTypeID, checkIn, checkOut, time.Now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	free := len(rooms) - len(occupied) - temporaryCount
	if free < 0 {
		free = 0
	}
	return &Availability{
		Available:  free > 0,
		FreeCount:  free,
		TotalRooms: len(rooms),
	}, nil
}

// CachedAvailability is the read-path variant used by the availability
// endpoint; staleness up to the TTL is fine there.
func (service *AvailabilityService) CachedAvailability(ctx context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time) (*Availability, error) {
	key := fmt.Sprintf("availability:%s:%s:%s", roomTypeID.Hex(),
		checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))

	value, err := service.cache.GetOrCompute(ctx, key, availabilityCacheTTL, func() ([]byte, error) {
		availability, err := service.CheckAvailability(ctx, roomTypeID, checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		return json.Marshal(availability)
	})
	if err != nil {
		return nil, err
	}

	var availability Availability
	if err := json.Unmarshal(value, &availability); err != nil {
		service.logger.Errorf("AvailabilityService.CachedAvailability : corrupt cache entry %s", key)
		return service.CheckAvailability(ctx, roomTypeID, checkIn, checkOut)
	}
	return &availability, nil
}

// FreeRooms lists the rooms of the type with no overlapping active
// reservation, in stable id order so allocation is deterministic.
// Rooms under maintenance are skipped.
func (service *AvailabilityService) FreeRooms(ctx context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time) ([]*domain.Room, error) {
	ctx, span := service.tracer.Start(ctx, "AvailabilityService.FreeRooms")
	defer span.End()

	rooms, err := service.roomStore.GetRoomsByType(ctx, roomTypeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	occupied, err := service.occupiedRoomIDs(ctx, rooms, checkIn, checkOut)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var free []*domain.Room
	for _, room := range rooms {
		if room.Status == domain.RoomMaintenance {
			continue
		}
		if _, taken := occupied[room.ID.Hex()]; !taken {
			free = append(free, room)
		}
	}
	sort.Slice(free, func(i, j int) bool {
		return free[i].ID.Hex() < free[j].ID.Hex()
	})
	return free, nil
}

func (service *AvailabilityService) occupiedRoomIDs(ctx context.Context, rooms []*domain.Room, checkIn, checkOut time.Time) (map[string]struct{}, error) {
	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID.Hex())
	}

	overlapping, err := service.reservationStore.FindOverlapping(ctx, roomIDs, checkIn, checkOut, domain.ActiveReservationStatuses)
	if err != nil {
		return nil, err
	}

	// Count distinct rooms; with the no-double-booking invariant a room
	// appears once but the set keeps the count honest either way.
	occupied := make(map[string]struct{})
	for _, reservation := range overlapping {
		occupied[reservation.RoomID] = struct{}{}
	}
	return occupied, nil
}
