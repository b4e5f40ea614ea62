package domain

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RoomStore interface {
	InsertRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id primitive.ObjectID) (*Room, error)
	GetRoomsByType(ctx context.Context, roomTypeID primitive.ObjectID) ([]*Room, error)
	// UpdateRoomStatus only writes when the stored status differs, so the
	// reservation lifecycle side effects stay idempotent.
	UpdateRoomStatus(ctx context.Context, id primitive.ObjectID, status RoomStatus) error
	DeleteRoom(ctx context.Context, id primitive.ObjectID) error

	InsertRoomType(ctx context.Context, roomType *RoomType) error
	GetRoomType(ctx context.Context, id primitive.ObjectID) (*RoomType, error)
	GetAllRoomTypes(ctx context.Context) ([]*RoomType, error)
}
