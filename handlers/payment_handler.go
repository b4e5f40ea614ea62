package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
	"booking_service/payu"
	application "booking_service/service"
)

// tempTokenPrefix marks client-generated reservation identifiers that
// have not been persisted server-side yet.
const tempTokenPrefix = "temp-"

type PaymentHandler struct {
	logger       *logrus.Logger
	reservations *application.ReservationService
	payments     *application.PaymentService
	promotion    *application.PromotionService
	gateway      *payu.Client
	tracer       trace.Tracer
}

func NewPaymentHandler(logger *logrus.Logger, reservations *application.ReservationService, payments *application.PaymentService, promotion *application.PromotionService, gateway *payu.Client, tracer trace.Tracer) *PaymentHandler {
	return &PaymentHandler{
		logger:       logger,
		reservations: reservations,
		payments:     payments,
		promotion:    promotion,
		gateway:      gateway,
		tracer:       tracer,
	}
}

// resolvedReservation is the booking a checkout attempt pays for, after
// "temp-" token resolution.
type resolvedReservation struct {
	id             string
	guest          domain.Guest
	isTemporary    bool
	originalTempID string
}

func (handler *PaymentHandler) CreatePayment(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "PaymentHandler.CreatePayment")
	defer span.End()

	request := h.Context().Value(KeyProduct{}).(*domain.CreatePaymentRequest)
	if err := request.Validate(); err != nil {
		handler.logger.Errorf("PaymentHandler.CreatePayment : %s", err)
		http.Error(rw, apperrors.MissingFieldsError, http.StatusBadRequest)
		return
	}

	resolved, err := handler.resolveReservation(ctx, request)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch err {
		case apperrors.ErrNotFound:
			http.Error(rw, apperrors.ReservationNotFoundError, http.StatusBadRequest)
		case apperrors.ErrInvalidDateRange:
			http.Error(rw, apperrors.InvalidDateRangeError, http.StatusBadRequest)
		case apperrors.ErrNoAvailability:
			http.Error(rw, apperrors.NoAvailabilityError, http.StatusConflict)
		default:
			http.Error(rw, apperrors.MissingFieldsError, http.StatusBadRequest)
		}
		return
	}

	payment, err := handler.payments.CreatePayment(ctx, resolved.id, request, resolved.isTemporary, resolved.originalTempID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to create payment", http.StatusInternalServerError)
		return
	}

	response := &domain.CreatePaymentResponse{
		PaymentID:           payment.ID.Hex(),
		IsTemporary:         resolved.isTemporary,
		ActualReservationID: resolved.id,
	}

	// Missing credentials: the Pending row stays for later
	// reconciliation and the client keeps the payment id to poll.
	if !handler.gateway.Config().Configured() {
		handler.logger.Error("PaymentHandler.CreatePayment : gateway credentials missing")
		response.PaymentStatus = domain.PaymentPending
		response.Error = apperrors.GatewayNotConfigured
		handler.writePaymentResponse(rw, http.StatusInternalServerError, response)
		return
	}

	submitResponse, err := handler.gateway.SubmitTransaction(ctx, handler.buildGatewayRequest(h, request, payment, resolved))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if err == payu.ErrTimeout {
			// The gateway may still settle the transaction; the webhook
			// decides. Never flip a timed-out attempt to Failed.
			handler.logger.Errorf("PaymentHandler.CreatePayment : gateway timeout on %s", payment.Metadata.ReferenceCode)
			response.PaymentStatus = domain.PaymentPending
			response.Error = "Payment gateway timed out, status pending"
			handler.writePaymentResponse(rw, http.StatusInternalServerError, response)
			return
		}
		handler.logger.Errorf("PaymentHandler.CreatePayment : gateway error: %s", err)
		if _, updateErr := handler.payments.ApplyGatewayResult(ctx, payment.ID, domain.PaymentFailed, "", ""); updateErr != nil {
			handler.logger.Errorf("PaymentHandler.CreatePayment : marking payment failed: %s", updateErr)
		}
		response.PaymentStatus = domain.PaymentFailed
		response.Error = err.Error()
		handler.writePaymentResponse(rw, http.StatusInternalServerError, response)
		return
	}

	transaction := submitResponse.TransactionResponse
	if transaction == nil {
		handler.logger.Errorf("PaymentHandler.CreatePayment : gateway response without transaction on %s", payment.Metadata.ReferenceCode)
		response.PaymentStatus = domain.PaymentPending
		response.Error = "Gateway response missing transaction data"
		handler.writePaymentResponse(rw, http.StatusInternalServerError, response)
		return
	}

	echo, _ := json.Marshal(transaction)
	status := payu.MapTransactionStatus(transaction.State)
	payment, err = handler.payments.ApplyGatewayResult(ctx, payment.ID, status, transaction.TransactionID, string(echo))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to record payment result", http.StatusInternalServerError)
		return
	}

	response.PaymentStatus = payment.Status
	response.PayuResponse = transaction

	switch status {
	case domain.PaymentCompleted:
		if resolved.isTemporary {
			promoted, err := handler.promotion.Promote(ctx, payment)
			if err != nil {
				// Money was captured; the booking is flagged, never lost.
				handler.logger.Errorf("PaymentHandler.CreatePayment : promotion failed for %s: %s", payment.ID.Hex(), err)
			} else if promoted != nil {
				response.ActualReservationID = promoted.ID.Hex()
			}
		} else if reservationID, err := primitive.ObjectIDFromHex(resolved.id); err == nil {
			if _, err := handler.payments.CalculateReservationPaymentStatus(ctx, reservationID); err != nil {
				handler.logger.Errorf("PaymentHandler.CreatePayment : aggregate recompute failed: %s", err)
			}
		}
		response.Success = true
		handler.writePaymentResponse(rw, http.StatusOK, response)
	case domain.PaymentPending:
		response.Success = true
		handler.writePaymentResponse(rw, http.StatusOK, response)
	default:
		// Declined by the gateway: a clear "card was declined", not a
		// system failure.
		response.Success = false
		response.Error = transaction.ResponseCode
		handler.writePaymentResponse(rw, http.StatusBadRequest, response)
	}
}

func (handler *PaymentHandler) GetPayment(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "PaymentHandler.GetPayment")
	defer span.End()

	vars := mux.Vars(h)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(rw, apperrors.PaymentNotFoundError, http.StatusBadRequest)
		return
	}

	payment, err := handler.payments.GetPayment(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if err == apperrors.ErrNotFound {
			http.Error(rw, apperrors.PaymentNotFoundError, http.StatusNotFound)
			return
		}
		http.Error(rw, "Unable to retrieve payment", http.StatusInternalServerError)
		return
	}

	if err := payment.ToJSON(rw); err != nil {
		handler.logger.Errorf("PaymentHandler.GetPayment : unable to convert to JSON")
	}
}

func (handler *PaymentHandler) resolveReservation(ctx context.Context, request *domain.CreatePaymentRequest) (*resolvedReservation, error) {
	if strings.HasPrefix(request.ReservationID, tempTokenPrefix) {
		if request.ReservationData == nil {
			return nil, apperrors.ErrInvalidState
		}
		if err := request.ReservationData.Validate(); err != nil {
			return nil, err
		}

		roomTypeID, err := primitive.ObjectIDFromHex(request.ReservationData.RoomTypeID)
		if err != nil {
			return nil, apperrors.ErrNotFound
		}
		checkIn, checkOut, err := request.ReservationData.Dates()
		if err != nil {
			return nil, err
		}

		temporary := &domain.TemporaryReservation{
			RoomTypeID:      roomTypeID,
			Guest:           request.ReservationData.Guest,
			CheckInDate:     checkIn,
			CheckOutDate:    checkOut,
			Adults:          request.ReservationData.Adults,
			Children:        request.ReservationData.Children,
			TotalPrice:      request.ReservationData.TotalPrice,
			SpecialRequests: request.ReservationData.SpecialRequests,
			OriginalID:      request.ReservationID,
		}
		if err := handler.reservations.CreateTemporaryReservation(ctx, temporary); err != nil {
			return nil, err
		}
		return &resolvedReservation{
			id:             temporary.ID.Hex(),
			guest:          temporary.Guest,
			isTemporary:    true,
			originalTempID: request.ReservationID,
		}, nil
	}

	id, err := primitive.ObjectIDFromHex(request.ReservationID)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}

	if reservation, err := handler.reservations.GetReservation(ctx, id); err == nil {
		return &resolvedReservation{id: reservation.ID.Hex(), guest: reservation.Guest}, nil
	} else if err != apperrors.ErrNotFound {
		return nil, err
	}

	// Not a permanent reservation; it may be a persisted temporary hold.
	temporary, err := handler.reservations.GetTemporaryReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	originalTempID := temporary.OriginalID
	if originalTempID == "" {
		originalTempID = temporary.ID.Hex()
	}
	return &resolvedReservation{
		id:             temporary.ID.Hex(),
		guest:          temporary.Guest,
		isTemporary:    true,
		originalTempID: originalTempID,
	}, nil
}

func (handler *PaymentHandler) buildGatewayRequest(h *http.Request, request *domain.CreatePaymentRequest, payment *domain.Payment, resolved *resolvedReservation) payu.PaymentRequest {
	ip := h.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = h.RemoteAddr
	}

	gatewayRequest := payu.PaymentRequest{
		ReferenceCode: payment.Metadata.ReferenceCode,
		Description:   "Hotel reservation " + resolved.id,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaymentMethod: request.PaymentMethod,
		Buyer: payu.Buyer{
			FullName: resolved.guest.FullName(),
			Email:    resolved.guest.Email,
			Phone:    resolved.guest.Phone,
		},
		Client: payu.ClientInfo{
			IPAddress: ip,
			UserAgent: h.UserAgent(),
			Cookie:    handler.sessionCookie(h),
		},
		OTPCode:     request.OTPCode,
		ResponseURL: request.ReturnURL,
	}
	if request.CardData != nil {
		gatewayRequest.Card = &payu.CardData{
			Number:         request.CardData.Number,
			SecurityCode:   request.CardData.SecurityCode,
			ExpirationDate: request.CardData.ExpirationDate,
			Name:           request.CardData.Name,
		}
	}
	return gatewayRequest
}

func (handler *PaymentHandler) sessionCookie(h *http.Request) string {
	if cookie, err := h.Cookie("session_id"); err == nil {
		return cookie.Value
	}
	return ""
}

func (handler *PaymentHandler) writePaymentResponse(rw http.ResponseWriter, status int, response *domain.CreatePaymentResponse) {
	rw.WriteHeader(status)
	if err := response.ToJSON(rw); err != nil {
		handler.logger.Errorf("PaymentHandler : unable to convert to JSON")
	}
}

func (handler *PaymentHandler) MiddlewarePaymentDeserialization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, h *http.Request) {
		request := &domain.CreatePaymentRequest{}
		if err := request.FromJSON(h.Body); err != nil {
			handler.logger.Errorf("PaymentHandler : unable to decode json: %s", err)
			http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(h.Context(), KeyProduct{}, request)
		next.ServeHTTP(rw, h.WithContext(ctx))
	})
}
