package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "booking_service/errors"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlapsHalfOpenIntervals(t *testing.T) {
	// [1,5) vs [5,8): checkout day equals checkin day, no overlap.
	assert.False(t, Overlaps(day(1), day(5), day(5), day(8)))
	assert.False(t, Overlaps(day(5), day(8), day(1), day(5)))

	assert.True(t, Overlaps(day(1), day(5), day(4), day(8)))
	assert.True(t, Overlaps(day(1), day(10), day(3), day(5)))
	assert.True(t, Overlaps(day(3), day(5), day(1), day(10)))
	assert.True(t, Overlaps(day(1), day(5), day(1), day(5)))
}

func TestGenerateConfirmationCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateConfirmationCode()
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, confirmationCodeCharset, string(r))
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.True(t, PaymentCompleted.Terminal())
	assert.True(t, PaymentRefunded.Terminal())
	assert.False(t, PaymentPending.Terminal())
	assert.False(t, PaymentFailed.Terminal())
	assert.False(t, PaymentPartial.Terminal())
}

func TestMapToReservationPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusPaid, MapToReservationPaymentStatus(200, 200))
	assert.Equal(t, PaymentStatusPaid, MapToReservationPaymentStatus(250, 200))
	assert.Equal(t, PaymentStatusPartial, MapToReservationPaymentStatus(80, 200))
	assert.Equal(t, PaymentStatusPending, MapToReservationPaymentStatus(0, 200))
	assert.Equal(t, PaymentStatusPartial, MapToReservationPaymentStatus(80, 0))
}

func TestTemporaryReservationExpired(t *testing.T) {
	now := time.Now()
	hold := &TemporaryReservation{ExpiresAt: now.Add(TemporaryReservationTTL)}
	assert.False(t, hold.Expired(now))
	assert.True(t, hold.Expired(now.Add(TemporaryReservationTTL)))
	assert.True(t, hold.Expired(now.Add(31*time.Minute)))
}

func TestGuestValidate(t *testing.T) {
	valid := Guest{FirstName: "Ana", LastName: "Quispe", Email: "ana@example.com"}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "Ana Quispe", valid.FullName())

	missingEmail := Guest{FirstName: "Ana", LastName: "Quispe"}
	assert.Error(t, missingEmail.Validate())

	badEmail := Guest{FirstName: "Ana", LastName: "Quispe", Email: "not-an-email"}
	assert.Error(t, badEmail.Validate())
}

func TestCreateReservationRequestDates(t *testing.T) {
	request := &CreateReservationRequest{CheckInDate: "2026-03-10", CheckOutDate: "2026-03-13"}
	checkIn, checkOut, err := request.Dates()
	assert.NoError(t, err)
	assert.Equal(t, day(10), checkIn)
	assert.Equal(t, day(13), checkOut)

	request = &CreateReservationRequest{CheckInDate: "2026-03-10T15:00:00Z", CheckOutDate: "2026-03-13T11:00:00Z"}
	_, _, err = request.Dates()
	assert.NoError(t, err)

	request = &CreateReservationRequest{CheckInDate: "10/03/2026", CheckOutDate: "2026-03-13"}
	_, _, err = request.Dates()
	assert.Error(t, err)

	request = &CreateReservationRequest{CheckInDate: "2026-03-13", CheckOutDate: "2026-03-10"}
	_, _, err = request.Dates()
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)

	request = &CreateReservationRequest{CheckInDate: "2026-03-10", CheckOutDate: "2026-03-10"}
	_, _, err = request.Dates()
	assert.Equal(t, apperrors.ErrInvalidDateRange, err)
}
