package domain

import (
	"encoding/json"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus is the per-attempt vocabulary used by the payment
// records and the gateway adapter. Reservation-level aggregation maps it
// into ReservationPaymentStatus, see MapToReservationPaymentStatus.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
	PaymentPartial   PaymentStatus = "Partial"
)

// Terminal reports whether no later gateway notification may change the
// status anymore. Completed is terminal so a duplicate webhook carrying
// DECLINED can never revert a captured payment.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentRefunded
}

type PaymentType string

const (
	PaymentTypeFull      PaymentType = "Full"
	PaymentTypePartial   PaymentType = "Partial"
	PaymentTypeOnArrival PaymentType = "OnArrival"
)

// PaymentMetadata is the bag of gateway bookkeeping attached to one
// checkout attempt. For guest checkouts the payment references the
// temporary reservation, flagged with IsTemporary + OriginalTempID.
type PaymentMetadata struct {
	ReferenceCode   string `bson:"referenceCode" json:"referenceCode"`
	ReturnURL       string `bson:"returnUrl,omitempty" json:"returnUrl,omitempty"`
	CancelURL       string `bson:"cancelUrl,omitempty" json:"cancelUrl,omitempty"`
	IsTemporary     bool   `bson:"isTemporary,omitempty" json:"isTemporary,omitempty"`
	OriginalTempID  string `bson:"originalTempId,omitempty" json:"originalTempId,omitempty"`
	GatewayResponse string `bson:"gatewayResponse,omitempty" json:"gatewayResponse,omitempty"`
}

type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReservationID string             `bson:"reservationId" json:"reservationId"`
	TransactionID string             `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	Amount        float64            `bson:"amount" json:"amount"`
	Currency      string             `bson:"currency" json:"currency"`
	Status        PaymentStatus      `bson:"status" json:"status"`
	Method        string             `bson:"method,omitempty" json:"method,omitempty"`
	Type          PaymentType        `bson:"type" json:"type"`
	PaymentDate   time.Time          `bson:"paymentDate" json:"paymentDate"`
	Metadata      PaymentMetadata    `bson:"metadata" json:"metadata"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PaymentSummary is the aggregate view rendered on confirmation pages.
type PaymentSummary struct {
	TotalPrice      float64                  `json:"totalPrice"`
	TotalPaid       float64                  `json:"totalPaid"`
	Remaining       float64                  `json:"remaining"`
	PaymentStatus   ReservationPaymentStatus `json:"paymentStatus"`
	PaymentMethod   string                   `json:"paymentMethod,omitempty"`
	PaymentMetadata *PaymentMetadata         `json:"paymentMetadata,omitempty"`
}

// MapToReservationPaymentStatus folds the total captured amount against
// the reservation price into the 3-state reservation vocabulary.
func MapToReservationPaymentStatus(totalPaid, totalPrice float64) ReservationPaymentStatus {
	switch {
	case totalPrice > 0 && totalPaid >= totalPrice:
		return PaymentStatusPaid
	case totalPaid > 0:
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

func (o *Payment) ToJSON(w io.Writer) error {
	e := json.NewEncoder(w)
	return e.Encode(o)
}

func (o *Payment) FromJSON(r io.Reader) error {
	d := json.NewDecoder(r)
	return d.Decode(o)
}
