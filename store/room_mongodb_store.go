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
	DATABASE             = "hotel"
	ROOMS_COLLECTION     = "rooms"
	ROOMTYPES_COLLECTION = "room_types"
)

type RoomMongoDBStore struct {
	rooms        *mongo.Collection
	roomTypes    *mongo.Collection
	reservations *mongo.Collection
	logger       *log.Logger
	tracer       trace.Tracer
}

func NewRoomMongoDBStore(client *mongo.Client, logger *log.Logger, tracer trace.Tracer) domain.RoomStore {
	database := client.Database(DATABASE)
	return &RoomMongoDBStore{
		rooms:        database.Collection(ROOMS_COLLECTION),
		roomTypes:    database.Collection(ROOMTYPES_COLLECTION),
		reservations: database.Collection(RESERVATIONS_COLLECTION),
		logger:       logger,
		tracer:       tracer,
	}
}

// EnsureIndexes creates the unique room number index.
func (store *RoomMongoDBStore) EnsureIndexes(ctx context.Context) error {
	_, err := store.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (store *RoomMongoDBStore) InsertRoom(ctx context.Context, room *domain.Room) error {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.InsertRoom")
	defer span.End()

	room.ID = primitive.NewObjectID()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	if room.Status == "" {
		room.Status = domain.RoomAvailable
	}

	_, err := store.rooms.InsertOne(ctx, room)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *RoomMongoDBStore) GetRoom(ctx context.Context, id primitive.ObjectID) (*domain.Room, error) {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.GetRoom")
	defer span.End()

	var room domain.Room
	err := store.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	return &room, nil
}

func (store *RoomMongoDBStore) GetRoomsByType(ctx context.Context, roomTypeID primitive.ObjectID) ([]*domain.Room, error) {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.GetRoomsByType")
	defer span.End()

	// Stable id order so room allocation picks deterministically.
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := store.rooms.Find(ctx, bson.M{"roomTypeId": roomTypeID}, findOptions)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeRooms(ctx, cursor)
}

func (store *RoomMongoDBStore) UpdateRoomStatus(ctx context.Context, id primitive.ObjectID, status domain.RoomStatus) error {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.UpdateRoomStatus")
	defer span.End()

	// Only fires when the stored status differs - lifecycle side effects
	// stay idempotent under duplicate delivery.
	filter := bson.M{"_id": id, "status": bson.M{"$ne": status}}
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}

	_, err := store.rooms.UpdateOne(ctx, filter, update)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *RoomMongoDBStore) DeleteRoom(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.DeleteRoom")
	defer span.End()

	// A room referenced by any reservation is never deleted.
	count, err := store.reservations.CountDocuments(ctx, bson.M{"roomId": id.Hex()})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	if count > 0 {
		return apperrors.ErrInvalidState
	}

	result, err := store.rooms.DeleteOne(ctx, bson.M{"_id": id})
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

func (store *RoomMongoDBStore) InsertRoomType(ctx context.Context, roomType *domain.RoomType) error {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.InsertRoomType")
	defer span.End()

	roomType.ID = primitive.NewObjectID()
	roomType.CreatedAt = time.Now()
	roomType.UpdatedAt = roomType.CreatedAt

	_, err := store.roomTypes.InsertOne(ctx, roomType)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return err
	}
	return nil
}

func (store *RoomMongoDBStore) GetRoomType(ctx context.Context, id primitive.ObjectID) (*domain.RoomType, error) {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.GetRoomType")
	defer span.End()

	var roomType domain.RoomType
	err := store.roomTypes.FindOne(ctx, bson.M{"_id": id}).Decode(&roomType)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	return &roomType, nil
}

func (store *RoomMongoDBStore) GetAllRoomTypes(ctx context.Context) ([]*domain.RoomType, error) {
	ctx, span := store.tracer.Start(ctx, "RoomMongoDBStore.GetAllRoomTypes")
	defer span.End()

	cursor, err := store.roomTypes.Find(ctx, bson.M{})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		store.logger.Println(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var roomTypes []*domain.RoomType
	for cursor.Next(ctx) {
		var roomType domain.RoomType
		if err := cursor.Decode(&roomType); err != nil {
			return nil, err
		}
		roomTypes = append(roomTypes, &roomType)
	}
	return roomTypes, cursor.Err()
}

func decodeRooms(ctx context.Context, cursor *mongo.Cursor) ([]*domain.Room, error) {
	var rooms []*domain.Room
	for cursor.Next(ctx) {
		var room domain.Room
		if err := cursor.Decode(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	return rooms, cursor.Err()
}
