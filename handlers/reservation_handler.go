package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
	application "booking_service/service"
)

type KeyProduct struct{}

type ReservationHandler struct {
	logger       *logrus.Logger
	reservations *application.ReservationService
	availability *application.AvailabilityService
	roomStore    domain.RoomStore
	tracer       trace.Tracer
}

func NewReservationHandler(logger *logrus.Logger, reservations *application.ReservationService, availability *application.AvailabilityService, roomStore domain.RoomStore, tracer trace.Tracer) *ReservationHandler {
	return &ReservationHandler{
		logger:       logger,
		reservations: reservations,
		availability: availability,
		roomStore:    roomStore,
		tracer:       tracer,
	}
}

func (handler *ReservationHandler) CreateReservation(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.CreateReservation")
	defer span.End()

	request := h.Context().Value(KeyProduct{}).(*domain.CreateReservationRequest)
	if err := request.Validate(); err != nil {
		handler.logger.Errorf("ReservationHandler.CreateReservation : %s", err)
		http.Error(rw, apperrors.MissingFieldsError, http.StatusBadRequest)
		return
	}

	result, err := handler.reservations.CreateBooking(ctx, request)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch err {
		case apperrors.ErrNotFound:
			http.Error(rw, apperrors.RoomTypeNotFoundError, http.StatusBadRequest)
		case apperrors.ErrInvalidDateRange:
			http.Error(rw, apperrors.InvalidDateRangeError, http.StatusBadRequest)
		case apperrors.ErrNoAvailability, apperrors.ErrConflict:
			http.Error(rw, apperrors.NoAvailabilityError, http.StatusConflict)
		case apperrors.ErrInvalidState:
			http.Error(rw, apperrors.OverlappingBookingError, http.StatusConflict)
		default:
			handler.logger.Errorf("ReservationHandler.CreateReservation : %s", err)
			http.Error(rw, "Error creating reservation", http.StatusInternalServerError)
		}
		return
	}

	rw.WriteHeader(http.StatusCreated)
	response := &domain.CreateReservationResponse{
		Success:          true,
		ReservationID:    result.ReservationID,
		ConfirmationCode: result.ConfirmationCode,
		IsTemporary:      result.IsTemporary,
	}
	if err := response.ToJSON(rw); err != nil {
		handler.logger.Errorf("ReservationHandler.CreateReservation : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) GetReservation(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.GetReservation")
	defer span.End()

	id, err := primitive.ObjectIDFromHex(mux.Vars(h)["id"])
	if err != nil {
		http.Error(rw, apperrors.ReservationNotFoundError, http.StatusBadRequest)
		return
	}

	details, err := handler.reservations.GetReservationDetails(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if err == apperrors.ErrNotFound {
			http.Error(rw, apperrors.ReservationNotFoundError, http.StatusNotFound)
			return
		}
		http.Error(rw, "Unable to retrieve reservation", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(rw).Encode(details); err != nil {
		handler.logger.Errorf("ReservationHandler.GetReservation : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) GetReservationByConfirmationCode(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.GetReservationByConfirmationCode")
	defer span.End()

	reservation, err := handler.reservations.GetReservationByConfirmationCode(ctx, mux.Vars(h)["code"])
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if err == apperrors.ErrNotFound {
			http.Error(rw, apperrors.ReservationNotFoundError, http.StatusNotFound)
			return
		}
		http.Error(rw, "Unable to retrieve reservation", http.StatusInternalServerError)
		return
	}

	if err := reservation.ToJSON(rw); err != nil {
		handler.logger.Errorf("ReservationHandler.GetReservationByConfirmationCode : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) ListReservations(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.ListReservations")
	defer span.End()

	query := h.URL.Query()
	var (
		reservations []*domain.Reservation
		err          error
	)

	switch {
	case query.Get("email") != "":
		reservations, err = handler.reservations.GetReservationsByEmail(ctx, query.Get("email"))
	case query.Get("userId") != "":
		reservations, err = handler.reservations.GetReservationsByUser(ctx, query.Get("userId"))
	case query.Get("status") != "":
		reservations, err = handler.reservations.GetReservationsByStatus(ctx, domain.ReservationStatus(query.Get("status")))
	case query.Get("from") != "" && query.Get("to") != "":
		from, fromErr := time.Parse("2006-01-02", query.Get("from"))
		to, toErr := time.Parse("2006-01-02", query.Get("to"))
		if fromErr != nil || toErr != nil {
			http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
			return
		}
		reservations, err = handler.reservations.GetReservationsByDateRange(ctx, from, to)
	default:
		http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
		return
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to retrieve reservations", http.StatusInternalServerError)
		return
	}
	if len(reservations) == 0 {
		rw.WriteHeader(http.StatusNoContent)
		return
	}

	if err := json.NewEncoder(rw).Encode(reservations); err != nil {
		handler.logger.Errorf("ReservationHandler.ListReservations : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) UpdateReservationStatus(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.UpdateReservationStatus")
	defer span.End()

	id, err := primitive.ObjectIDFromHex(mux.Vars(h)["id"])
	if err != nil {
		http.Error(rw, apperrors.ReservationNotFoundError, http.StatusBadRequest)
		return
	}

	var body struct {
		Status domain.ReservationStatus `json:"status"`
	}
	if err := json.NewDecoder(h.Body).Decode(&body); err != nil || body.Status == "" {
		http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
		return
	}

	if err := handler.reservations.UpdateReservationStatus(ctx, id, body.Status); err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch err {
		case apperrors.ErrNotFound:
			http.Error(rw, apperrors.ReservationNotFoundError, http.StatusNotFound)
		case apperrors.ErrInvalidState:
			http.Error(rw, "Invalid status transition", http.StatusConflict)
		default:
			http.Error(rw, "Unable to update reservation", http.StatusInternalServerError)
		}
		return
	}

	rw.WriteHeader(http.StatusOK)
}

func (handler *ReservationHandler) DeleteReservation(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.DeleteReservation")
	defer span.End()

	id, err := primitive.ObjectIDFromHex(mux.Vars(h)["id"])
	if err != nil {
		http.Error(rw, apperrors.ReservationNotFoundError, http.StatusBadRequest)
		return
	}

	if err := handler.reservations.DeleteReservation(ctx, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch err {
		case apperrors.ErrNotFound:
			http.Error(rw, apperrors.ReservationNotFoundError, http.StatusNotFound)
		case apperrors.ErrInvalidState:
			http.Error(rw, "Only pending or cancelled reservations can be deleted", http.StatusConflict)
		default:
			http.Error(rw, "Unable to delete reservation", http.StatusInternalServerError)
		}
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (handler *ReservationHandler) CheckAvailability(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.CheckAvailability")
	defer span.End()

	query := h.URL.Query()
	roomTypeID, err := primitive.ObjectIDFromHex(query.Get("roomTypeId"))
	if err != nil {
		http.Error(rw, apperrors.RoomTypeNotFoundError, http.StatusBadRequest)
		return
	}
	checkIn, inErr := time.Parse("2006-01-02", query.Get("checkIn"))
	checkOut, outErr := time.Parse("2006-01-02", query.Get("checkOut"))
	if inErr != nil || outErr != nil || !checkOut.After(checkIn) {
		http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
		return
	}

	availability, err := handler.availability.CachedAvailability(ctx, roomTypeID, checkIn, checkOut)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to check availability", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(rw).Encode(availability); err != nil {
		handler.logger.Errorf("ReservationHandler.CheckAvailability : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) GetRoomTypes(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.GetRoomTypes")
	defer span.End()

	roomTypes, err := handler.roomStore.GetAllRoomTypes(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to retrieve room types", http.StatusInternalServerError)
		return
	}
	if len(roomTypes) == 0 {
		rw.WriteHeader(http.StatusNoContent)
		return
	}

	if err := json.NewEncoder(rw).Encode(roomTypes); err != nil {
		handler.logger.Errorf("ReservationHandler.GetRoomTypes : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) GetRoomsByType(rw http.ResponseWriter, h *http.Request) {
	ctx, span := handler.tracer.Start(h.Context(), "ReservationHandler.GetRoomsByType")
	defer span.End()

	roomTypeID, err := primitive.ObjectIDFromHex(mux.Vars(h)["id"])
	if err != nil {
		http.Error(rw, apperrors.RoomTypeNotFoundError, http.StatusBadRequest)
		return
	}

	rooms, err := handler.roomStore.GetRoomsByType(ctx, roomTypeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(rw, "Unable to retrieve rooms", http.StatusInternalServerError)
		return
	}
	if len(rooms) == 0 {
		rw.WriteHeader(http.StatusNoContent)
		return
	}

	if err := json.NewEncoder(rw).Encode(rooms); err != nil {
		handler.logger.Errorf("ReservationHandler.GetRoomsByType : unable to convert to JSON")
	}
}

func (handler *ReservationHandler) MiddlewareReservationDeserialization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, h *http.Request) {
		request := &domain.CreateReservationRequest{}
		if err := request.FromJSON(h.Body); err != nil {
			handler.logger.Errorf("ReservationHandler : unable to decode json: %s", err)
			http.Error(rw, apperrors.InvalidRequestFormat, http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(h.Context(), KeyProduct{}, request)
		next.ServeHTTP(rw, h.WithContext(ctx))
	})
}
