package errors

import "errors"

const (
	MissingFieldsError       = "Missing required fields"
	RoomTypeNotFoundError    = "Room type not found"
	RoomNotFoundError        = "Room not found"
	ReservationNotFoundError = "Reservation not found"
	PaymentNotFoundError     = "Payment not found"
	NoAvailabilityError      = "No rooms available for the selected dates"
	OverlappingBookingError  = "Room is already booked for the selected dates"
	InvalidRequestFormat     = "Invalid request format"
	InvalidDateRangeError    = "Check-out date must be after check-in date"
	GatewayNotConfigured     = "Payment gateway is not configured"
	UnrecognizedWebhook      = "Unrecognized webhook notification format"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("overlapping booking for the room")
	ErrNoAvailability       = errors.New("no rooms available")
	ErrInvalidState         = errors.New("invalid state for the requested transition")
	ErrInvalidDateRange     = errors.New("check-out date not after check-in date")
	ErrAlreadyPromoted      = errors.New("temporary reservation already promoted")
	ErrInvalidSignature     = errors.New("webhook signature mismatch")
	ErrUnrecognizedPayload  = errors.New("unrecognized webhook payload")
	ErrGatewayNotConfigured = errors.New("payment gateway credentials missing")
)
