package domain

import (
	"encoding/json"
	"io"
	"time"

	apperrors "booking_service/errors"
)

// CreateReservationRequest is the guest-facing booking payload. The
// booking is made against a room type; a concrete room is allocated
// server-side.
type CreateReservationRequest struct {
	RoomTypeID      string  `json:"roomTypeId" validate:"required"`
	CheckInDate     string  `json:"checkInDate" validate:"required"`
	CheckOutDate    string  `json:"checkOutDate" validate:"required"`
	Adults          int     `json:"adults" validate:"min=1"`
	Children        int     `json:"children" validate:"min=0"`
	TotalPrice      float64 `json:"totalPrice" validate:"min=0"`
	Guest           Guest   `json:"guest"`
	SpecialRequests string  `json:"specialRequests,omitempty"`
	PayOnArrival    bool    `json:"payOnArrival,omitempty"`
	IsTemporary     bool    `json:"isTemporary,omitempty"`
	UserID          string  `json:"userId,omitempty"`
}

func (r *CreateReservationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return r.Guest.Validate()
}

func (r *CreateReservationRequest) Dates() (time.Time, time.Time, error) {
	checkIn, err := parseDate(r.CheckInDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	checkOut, err := parseDate(r.CheckOutDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !checkOut.After(checkIn) {
		return time.Time{}, time.Time{}, apperrors.ErrInvalidDateRange
	}
	return checkIn, checkOut, nil
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// CreatePaymentRequest starts one checkout attempt. ReservationID may be
// a client-side "temp-..." token, in which case ReservationData carries
// the booking details to persist server-side first.
type CreatePaymentRequest struct {
	ReservationID   string                    `json:"reservationId" validate:"required"`
	Amount          float64                   `json:"amount" validate:"gt=0"`
	Currency        string                    `json:"currency,omitempty"`
	PaymentType     PaymentType               `json:"paymentType" validate:"required"`
	PaymentMethod   string                    `json:"paymentMethod" validate:"required"`
	ReturnURL       string                    `json:"returnUrl,omitempty"`
	CancelURL       string                    `json:"cancelUrl,omitempty"`
	ReservationData *CreateReservationRequest `json:"reservationData,omitempty"`
	CardData        *CardData                 `json:"cardData,omitempty"`
	OTPCode         string                    `json:"otpCode,omitempty"`
}

type CardData struct {
	Number         string `json:"number"`
	SecurityCode   string `json:"securityCode"`
	ExpirationDate string `json:"expirationDate"`
	Name           string `json:"name"`
}

func (r *CreatePaymentRequest) Validate() error {
	return validate.Struct(r)
}

func (r *CreatePaymentRequest) FromJSON(reader io.Reader) error {
	return json.NewDecoder(reader).Decode(r)
}

func (r *CreateReservationRequest) FromJSON(reader io.Reader) error {
	return json.NewDecoder(reader).Decode(r)
}

// CreateReservationResponse echoes the identifiers the booking UI needs
// to continue into the payment flow.
type CreateReservationResponse struct {
	Success          bool   `json:"success"`
	ReservationID    string `json:"reservationId"`
	ConfirmationCode string `json:"confirmationCode"`
	IsTemporary      bool   `json:"isTemporary"`
}

type CreatePaymentResponse struct {
	Success             bool          `json:"success"`
	PaymentID           string        `json:"paymentId,omitempty"`
	PaymentStatus       PaymentStatus `json:"paymentStatus,omitempty"`
	IsTemporary         bool          `json:"isTemporary,omitempty"`
	ActualReservationID string        `json:"actualReservationId,omitempty"`
	PayuResponse        interface{}   `json:"payuResponse,omitempty"`
	Error               string        `json:"error,omitempty"`
}

func (r *CreateReservationResponse) ToJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

func (r *CreatePaymentResponse) ToJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}
