package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
	"booking_service/payu"
	application "booking_service/service"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives asynchronous PayU notifications. Delivery is
// at-least-once and may race the synchronous payment response; the
// promotion workflow absorbs duplicates, so this handler just
// normalizes, records and hands off.
type WebhookHandler struct {
	logger     *logrus.Logger
	payments   *application.PaymentService
	promotion  *application.PromotionService
	normalizer *payu.Normalizer
	tracer     trace.Tracer
}

func NewWebhookHandler(logger *logrus.Logger, payments *application.PaymentService, promotion *application.PromotionService, normalizer *payu.Normalizer, tracer trace.Tracer) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger,
		payments:   payments,
		promotion:  promotion,
		normalizer: normalizer,
		tracer:     tracer,
	}
}

func (handler *WebhookHandler) HandleNotification(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "WebhookHandler.HandleNotification")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(h.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
		return
	}

	notification, err := handler.normalizer.Normalize(h.Header.Get("Content-Type"), body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		// Raw payload already logged by the normalizer for inspection.
		http.Error(rw, apperrors.UnrecognizedWebhook, http.StatusBadRequest)
		return
	}

	payment, err := handler.payments.GetPaymentByReferenceCode(ctx, notification.ReferenceCode)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if err == apperrors.ErrNotFound {
			handler.logger.Errorf("WebhookHandler : no payment for reference %s", notification.ReferenceCode)
			http.Error(rw, apperrors.PaymentNotFoundError, http.StatusNotFound)
			return
		}
		http.Error(rw, "Unable to look up payment", http.StatusInternalServerError)
		return
	}

	echo, _ := json.Marshal(notification)
	payment, err = handler.payments.ApplyGatewayResult(ctx, payment.ID, notification.Status, notification.TransactionID, string(echo))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to record payment status", http.StatusInternalServerError)
		return
	}

	if payment.Status == domain.PaymentCompleted {
		if payment.Metadata.IsTemporary {
			if _, err := handler.promotion.Promote(ctx, payment); err != nil {
				// The payment stays Completed; promotion is retried on
				// the next delivery or resolved manually.
				handler.logger.Errorf("WebhookHandler : promotion failed for payment %s: %s", payment.ID.Hex(), err)
			}
		} else if reservationID, err := primitive.ObjectIDFromHex(payment.ReservationID); err == nil {
			if _, err := handler.payments.CalculateReservationPaymentStatus(ctx, reservationID); err != nil {
				handler.logger.Errorf("WebhookHandler : aggregate recompute failed: %s", err)
			}
		}
	}

	rw.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(rw).Encode(map[string]bool{"success": true}); err != nil {
		handler.logger.Errorf("WebhookHandler : unable to convert to JSON")
	}
}
