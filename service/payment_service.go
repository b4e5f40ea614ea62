package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
)

type PaymentService struct {
	paymentStore     domain.PaymentStore
	reservationStore domain.ReservationStore
	logger           *logrus.Logger
	tracer           trace.Tracer
}

func NewPaymentService(paymentStore domain.PaymentStore, reservationStore domain.ReservationStore, logger *logrus.Logger, tracer trace.Tracer) *PaymentService {
	return &PaymentService{
		paymentStore:     paymentStore,
		reservationStore: reservationStore,
		logger:           logger,
		tracer:           tracer,
	}
}

// ReferenceCode builds the gateway-facing identifier for one checkout
// attempt: HOTEL_<reservationId>_<unixMillis>.
func ReferenceCode(reservationID string, at time.Time) string {
	return fmt.Sprintf("HOTEL_%s_%d", reservationID, at.UnixMilli())
}

// CreatePayment inserts the single Pending payment row for a checkout
// attempt. Later gateway responses mutate this row in place; a retry of
// the same attempt never inserts a second row.
func (service *PaymentService) CreatePayment(ctx context.Context, reservationID string, request *domain.CreatePaymentRequest, isTemporary bool, originalTempID string) (*domain.Payment, error) {
	ctx, span := service.tracer.Start(ctx, "PaymentService.CreatePayment")
	defer span.End()

	currency := request.Currency
	if currency == "" {
		currency = "COP"
	}

	payment := &domain.Payment{
		ReservationID: reservationID,
		Amount:        request.Amount,
		Currency:      currency,
		Status:        domain.PaymentPending,
		Method:        request.PaymentMethod,
		Type:          request.PaymentType,
		Metadata: domain.PaymentMetadata{
			ReferenceCode:  ReferenceCode(reservationID, time.Now()),
			ReturnURL:      request.ReturnURL,
			CancelURL:      request.CancelURL,
			IsTemporary:    isTemporary,
			OriginalTempID: originalTempID,
		},
	}

	if err := service.paymentStore.InsertPayment(ctx, payment); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payment, nil
}

func (service *PaymentService) GetPayment(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	return service.paymentStore.GetPayment(ctx, id)
}

func (service *PaymentService) GetPaymentByReferenceCode(ctx context.Context, referenceCode string) (*domain.Payment, error) {
	return service.paymentStore.GetPaymentByReferenceCode(ctx, referenceCode)
}

// ApplyGatewayResult records a gateway outcome on the payment row. The
// store's monotonic guard drops downgrades of a terminal status, so a
// duplicate DECLINED after APPROVED is a no-op. Returns the refreshed
// payment.
func (service *PaymentService) ApplyGatewayResult(ctx context.Context, paymentID primitive.ObjectID, status domain.PaymentStatus, transactionID, gatewayResponse string) (*domain.Payment, error) {
	ctx, span := service.tracer.Start(ctx, "PaymentService.ApplyGatewayResult")
	defer span.End()

	if err := service.paymentStore.UpdatePaymentStatus(ctx, paymentID, status, transactionID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payment, err := service.paymentStore.GetPayment(ctx, paymentID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if gatewayResponse != "" && payment.Metadata.GatewayResponse != gatewayResponse {
		payment.Metadata.GatewayResponse = gatewayResponse
		if err := service.paymentStore.UpdatePayment(ctx, payment); err != nil {
			service.logger.Errorf("PaymentService.ApplyGatewayResult : storing gateway echo failed: %s", err)
		}
	}
	return payment, nil
}

// CalculateReservationPaymentStatus aggregates the completed payments
// against the reservation price and writes the summary back onto the
// reservation. Payment rows use the 5-state vocabulary; the reservation
// carries the 3-state one - the mapping is explicit, never a cast.
func (service *PaymentService) CalculateReservationPaymentStatus(ctx context.Context, reservationID primitive.ObjectID) (*domain.PaymentSummary, error) {
	ctx, span := service.tracer.Start(ctx, "PaymentService.CalculateReservationPaymentStatus")
	defer span.End()

	reservation, err := service.reservationStore.GetReservation(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	completed, err := service.paymentStore.GetCompletedPaymentsByReservation(ctx, reservationID.Hex())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var totalPaid float64
	var latest *domain.Payment
	for _, payment := range completed {
		totalPaid += payment.Amount
		if latest == nil || payment.PaymentDate.After(latest.PaymentDate) {
			latest = payment
		}
	}

	summary := &domain.PaymentSummary{
		TotalPrice:    reservation.TotalPrice,
		TotalPaid:     totalPaid,
		Remaining:     reservation.TotalPrice - totalPaid,
		PaymentStatus: domain.MapToReservationPaymentStatus(totalPaid, reservation.TotalPrice),
		PaymentMethod: reservation.PaymentMethod,
	}
	if summary.Remaining < 0 {
		summary.Remaining = 0
	}
	if latest != nil {
		summary.PaymentMethod = latest.Method
		summary.PaymentMetadata = &latest.Metadata
	}

	if err := service.reservationStore.UpdateReservationPayment(ctx, reservationID, summary.PaymentStatus, summary.PaymentMethod); err != nil {
		service.logger.Errorf("PaymentService.CalculateReservationPaymentStatus : writing summary failed: %s", err)
	}

	// A reservation that saw real money but still sits in Pending moves
	// to Confirmed.
	if totalPaid > 0 && reservation.Status == domain.ReservationPending {
		if err := service.reservationStore.UpdateReservationStatus(ctx, reservationID, domain.ReservationConfirmed); err != nil {
			service.logger.Errorf("PaymentService.CalculateReservationPaymentStatus : confirming reservation failed: %s", err)
		}
	}

	return summary, nil
}
