package domain

import (
	"encoding/json"
	"io"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "Available"
	RoomOccupied    RoomStatus = "Occupied"
	RoomMaintenance RoomStatus = "Maintenance"
	RoomCleaning    RoomStatus = "Cleaning"
	RoomReserved    RoomStatus = "Reserved"
)

type RoomType struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	BasePrice   float64            `bson:"basePrice" json:"basePrice"`
	Capacity    int                `bson:"capacity" json:"capacity"`
	Amenities   []string           `bson:"amenities,omitempty" json:"amenities,omitempty"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Room struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number     string             `bson:"number" json:"number"`
	Floor      int                `bson:"floor" json:"floor"`
	RoomTypeID primitive.ObjectID `bson:"roomTypeId" json:"roomTypeId"`
	Status     RoomStatus         `bson:"status" json:"status"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ReservationStatus string

const (
	ReservationPending    ReservationStatus = "Pending"
	ReservationConfirmed  ReservationStatus = "Confirmed"
	ReservationCheckedIn  ReservationStatus = "Checked-in"
	ReservationCheckedOut ReservationStatus = "Checked-out"
	ReservationCancelled  ReservationStatus = "Cancelled"
	ReservationNoShow     ReservationStatus = "No-show"
	// ReservationConflict marks a paid booking for which no physical room
	// could be allocated at promotion time. Needs manual staff resolution.
	ReservationConflict ReservationStatus = "Conflict"
)

// ActiveReservationStatuses are the booking states that hold a room
// against overlapping date ranges.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCheckedIn,
}

// ReservationPaymentStatus is the reservation-level summary. It is a
// distinct vocabulary from PaymentStatus and the two are mapped, never
// conflated.
type ReservationPaymentStatus string

const (
	PaymentStatusPending ReservationPaymentStatus = "Pending"
	PaymentStatusPartial ReservationPaymentStatus = "Partial"
	PaymentStatusPaid    ReservationPaymentStatus = "Paid"
)

type Guest struct {
	FirstName string `bson:"firstName" json:"firstName" validate:"required"`
	LastName  string `bson:"lastName" json:"lastName" validate:"required"`
	Email     string `bson:"email" json:"email" validate:"required,email"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

func (g *Guest) FullName() string {
	return g.FirstName + " " + g.LastName
}

// ReservationMetadata carries promotion bookkeeping. OriginalTempID is
// unique across permanent reservations (partial index) so a temporary
// reservation can be promoted at most once.
type ReservationMetadata struct {
	OriginalTempID      string `bson:"originalTempId,omitempty" json:"originalTempId,omitempty"`
	NeedsRoomAssignment bool   `bson:"needsRoomAssignment,omitempty" json:"needsRoomAssignment,omitempty"`
}

type Reservation struct {
	ID               primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	RoomID           string                   `bson:"roomId" json:"roomId"`
	UserID           string                   `bson:"userId,omitempty" json:"userId,omitempty"`
	Guest            Guest                    `bson:"guest" json:"guest"`
	CheckInDate      time.Time                `bson:"checkInDate" json:"checkInDate"`
	CheckOutDate     time.Time                `bson:"checkOutDate" json:"checkOutDate"`
	Adults           int                      `bson:"adults" json:"adults"`
	Children         int                      `bson:"children" json:"children"`
	TotalPrice       float64                  `bson:"totalPrice" json:"totalPrice"`
	Status           ReservationStatus        `bson:"status" json:"status"`
	PaymentStatus    ReservationPaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	PaymentMethod    string                   `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	ConfirmationCode string                   `bson:"confirmationCode" json:"confirmationCode"`
	SpecialRequests  string                   `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
	Metadata         ReservationMetadata      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt        time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time                `bson:"updatedAt" json:"updatedAt"`
}

// TemporaryReservationTTL is how long an unauthenticated guest's hold on
// a room type stays alive while payment is pending.
const TemporaryReservationTTL = 30 * time.Minute

// TemporaryReservation holds capacity on a room *type*, not a concrete
// room. It only counts toward occupancy while ExpiresAt is in the future.
type TemporaryReservation struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomTypeID       primitive.ObjectID `bson:"roomTypeId" json:"roomTypeId"`
	Guest            Guest              `bson:"guest" json:"guest"`
	CheckInDate      time.Time          `bson:"checkInDate" json:"checkInDate"`
	CheckOutDate     time.Time          `bson:"checkOutDate" json:"checkOutDate"`
	Adults           int                `bson:"adults" json:"adults"`
	Children         int                `bson:"children" json:"children"`
	TotalPrice       float64            `bson:"totalPrice" json:"totalPrice"`
	Status           ReservationStatus  `bson:"status" json:"status"`
	ConfirmationCode string             `bson:"confirmationCode" json:"confirmationCode"`
	SpecialRequests  string             `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
	// OriginalID is the client-generated "temp-..." token used before the
	// hold was persisted server-side.
	OriginalID string    `bson:"originalId,omitempty" json:"originalId,omitempty"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

func (t *TemporaryReservation) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Overlaps reports whether two half-open [checkIn, checkOut) intervals
// intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

const confirmationCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateConfirmationCode returns an 8 character [A-Z0-9] booking code.
// Uniqueness is enforced by the caller with a store lookup.
func GenerateConfirmationCode() string {
	code := make([]byte, 8)
	for i := range code {
		code[i] = confirmationCodeCharset[rand.Intn(len(confirmationCodeCharset))]
	}
	return string(code)
}

var validate = validator.New()

func (g *Guest) Validate() error {
	return validate.Struct(g)
}

func (o *Reservation) ToJSON(w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(o)
}

func (o *Reservation) FromJSON(r io.Reader) error {
	d := json.NewDecoder(r)
	return d.Decode(o)
}

func (o *TemporaryReservation) ToJSON(w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(o)
}

func (o *Room) ToJSON(w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(o)
}

func (o *RoomType) ToJSON(w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(o)
}
