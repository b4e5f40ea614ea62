package application

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

type mockRoomStore struct {
	mu        sync.Mutex
	rooms     map[primitive.ObjectID]*domain.Room
	roomTypes map[primitive.ObjectID]*domain.RoomType
}

func newMockRoomStore() *mockRoomStore {
	return &mockRoomStore{
		rooms:     make(map[primitive.ObjectID]*domain.Room),
		roomTypes: make(map[primitive.ObjectID]*domain.RoomType),
	}
}

func (m *mockRoomStore) InsertRoom(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.ID.IsZero() {
		room.ID = primitive.NewObjectID()
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *mockRoomStore) GetRoom(_ context.Context, id primitive.ObjectID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *mockRoomStore) GetRoomsByType(_ context.Context, roomTypeID primitive.ObjectID) ([]*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Room
	for _, room := range m.rooms {
		if room.RoomTypeID == roomTypeID {
			copied := *room
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockRoomStore) UpdateRoomStatus(_ context.Context, id primitive.ObjectID, status domain.RoomStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	room.Status = status
	return nil
}

func (m *mockRoomStore) DeleteRoom(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *mockRoomStore) InsertRoomType(_ context.Context, roomType *domain.RoomType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomType.ID.IsZero() {
		roomType.ID = primitive.NewObjectID()
	}
	m.roomTypes[roomType.ID] = roomType
	return nil
}

func (m *mockRoomStore) GetRoomType(_ context.Context, id primitive.ObjectID) (*domain.RoomType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomType, ok := m.roomTypes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *roomType
	return &copied, nil
}

func (m *mockRoomStore) GetAllRoomTypes(_ context.Context) ([]*domain.RoomType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RoomType
	for _, roomType := range m.roomTypes {
		copied := *roomType
		result = append(result, &copied)
	}
	return result, nil
}

type mockReservationStore struct {
	mu           sync.Mutex
	reservations map[primitive.ObjectID]*domain.Reservation
	temporary    map[primitive.ObjectID]*domain.TemporaryReservation
}

func newMockReservationStore() *mockReservationStore {
	return &mockReservationStore{
		reservations: make(map[primitive.ObjectID]*domain.Reservation),
		temporary:    make(map[primitive.ObjectID]*domain.TemporaryReservation),
	}
}

func (m *mockReservationStore) InsertReservation(_ context.Context, reservation *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reservation.Metadata.OriginalTempID != "" {
		for _, other := range m.reservations {
			if other.Metadata.OriginalTempID == reservation.Metadata.OriginalTempID {
				return apperrors.ErrAlreadyPromoted
			}
		}
	}
	if reservation.ID.IsZero() {
		reservation.ID = primitive.NewObjectID()
	}
	reservation.CreatedAt = time.Now()
	reservation.UpdatedAt = reservation.CreatedAt
	copied := *reservation
	m.reservations[reservation.ID] = &copied
	return nil
}

func (m *mockReservationStore) GetReservation(_ context.Context, id primitive.ObjectID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reservation, ok := m.reservations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (m *mockReservationStore) GetReservationByConfirmationCode(_ context.Context, code string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reservation := range m.reservations {
		if reservation.ConfirmationCode == code {
			copied := *reservation
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockReservationStore) GetReservationByOriginalTempID(_ context.Context, originalTempID string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reservation := range m.reservations {
		if reservation.Metadata.OriginalTempID == originalTempID {
			copied := *reservation
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockReservationStore) UpdateReservation(_ context.Context, reservation *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[reservation.ID]; !ok {
		return apperrors.ErrNotFound
	}
	reservation.UpdatedAt = time.Now()
	copied := *reservation
	m.reservations[reservation.ID] = &copied
	return nil
}

func (m *mockReservationStore) UpdateReservationStatus(_ context.Context, id primitive.ObjectID, status domain.ReservationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reservation, ok := m.reservations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	reservation.Status = status
	return nil
}

func (m *mockReservationStore) UpdateReservationPayment(_ context.Context, id primitive.ObjectID, paymentStatus domain.ReservationPaymentStatus, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reservation, ok := m.reservations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	reservation.PaymentStatus = paymentStatus
	reservation.PaymentMethod = method
	return nil
}

func (m *mockReservationStore) DeleteReservation(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.reservations, id)
	return nil
}

func (m *mockReservationStore) FindOverlapping(_ context.Context, roomIDs []string, checkIn, checkOut time.Time, statuses []domain.ReservationStatus) ([]*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wantedRoom := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wantedRoom[id] = struct{}{}
	}
	wantedStatus := make(map[domain.ReservationStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wantedStatus[status] = struct{}{}
	}

	var result []*domain.Reservation
	for _, reservation := range m.reservations {
		if _, ok := wantedRoom[reservation.RoomID]; !ok {
			continue
		}
		if _, ok := wantedStatus[reservation.Status]; !ok {
			continue
		}
		if domain.Overlaps(reservation.CheckInDate, reservation.CheckOutDate, checkIn, checkOut) {
			copied := *reservation
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockReservationStore) GetReservationsByUser(_ context.Context, userID string) ([]*domain.Reservation, error) {
	return m.filter(func(r *domain.Reservation) bool { return r.UserID == userID })
}

func (m *mockReservationStore) GetReservationsByEmail(_ context.Context, email string) ([]*domain.Reservation, error) {
	return m.filter(func(r *domain.Reservation) bool {
		return strings.EqualFold(r.Guest.Email, email)
	})
}

func (m *mockReservationStore) GetReservationsByStatus(_ context.Context, status domain.ReservationStatus) ([]*domain.Reservation, error) {
	return m.filter(func(r *domain.Reservation) bool { return r.Status == status })
}

func (m *mockReservationStore) GetReservationsByDateRange(_ context.Context, from, to time.Time) ([]*domain.Reservation, error) {
	return m.filter(func(r *domain.Reservation) bool {
		return domain.Overlaps(r.CheckInDate, r.CheckOutDate, from, to)
	})
}

func (m *mockReservationStore) filter(keep func(*domain.Reservation) bool) ([]*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Reservation
	for _, reservation := range m.reservations {
		if keep(reservation) {
			copied := *reservation
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockReservationStore) InsertTemporaryReservation(_ context.Context, reservation *domain.TemporaryReservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reservation.ID.IsZero() {
		reservation.ID = primitive.NewObjectID()
	}
	reservation.CreatedAt = time.Now()
	copied := *reservation
	m.temporary[reservation.ID] = &copied
	return nil
}

func (m *mockReservationStore) GetTemporaryReservation(_ context.Context, id primitive.ObjectID) (*domain.TemporaryReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reservation, ok := m.temporary[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (m *mockReservationStore) DeleteTemporaryReservation(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.temporary, id)
	return nil
}

func (m *mockReservationStore) CountLiveOverlapping(_ context.Context, roomTypeID primitive.ObjectID, checkIn, checkOut time.Time, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, temp := range m.temporary {
		if temp.RoomTypeID != roomTypeID || temp.Expired(now) {
			continue
		}
		if domain.Overlaps(temp.CheckInDate, temp.CheckOutDate, checkIn, checkOut) {
			count++
		}
	}
	return count, nil
}

type mockPaymentStore struct {
	mu       sync.Mutex
	payments map[primitive.ObjectID]*domain.Payment
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{payments: make(map[primitive.ObjectID]*domain.Payment)}
}

func (m *mockPaymentStore) InsertPayment(_ context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	copied := *payment
	m.payments[payment.ID] = &copied
	return nil
}

func (m *mockPaymentStore) GetPayment(_ context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *payment
	return &copied, nil
}

func (m *mockPaymentStore) GetPaymentByReferenceCode(_ context.Context, referenceCode string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.Metadata.ReferenceCode == referenceCode {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPaymentStore) UpdatePayment(_ context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return apperrors.ErrNotFound
	}
	payment.UpdatedAt = time.Now()
	copied := *payment
	m.payments[payment.ID] = &copied
	return nil
}

func (m *mockPaymentStore) UpdatePaymentStatus(_ context.Context, id primitive.ObjectID, status domain.PaymentStatus, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if payment.Status == status {
		return nil
	}
	if !status.Terminal() && payment.Status.Terminal() {
		return nil
	}
	payment.Status = status
	if transactionID != "" {
		payment.TransactionID = transactionID
	}
	if status == domain.PaymentCompleted {
		payment.PaymentDate = time.Now()
	}
	return nil
}

func (m *mockPaymentStore) UpdatePaymentReservation(_ context.Context, id primitive.ObjectID, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	payment.ReservationID = reservationID
	return nil
}

func (m *mockPaymentStore) GetCompletedPaymentsByReservation(_ context.Context, reservationID string) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Payment
	for _, payment := range m.payments {
		if payment.ReservationID == reservationID && payment.Status == domain.PaymentCompleted {
			copied := *payment
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockPaymentStore) GetPaymentsByReservation(_ context.Context, reservationID string) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Payment
	for _, payment := range m.payments {
		if payment.ReservationID == reservationID {
			copied := *payment
			result = append(result, &copied)
		}
	}
	return result, nil
}

type mockCache struct {
	mu          sync.Mutex
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{}
}

func (m *mockCache) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, key)
	return nil
}

func (m *mockCache) InvalidatePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, pattern)
	return nil
}

func (m *mockCache) GetOrCompute(_ context.Context, _ string, _ time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	return compute()
}

type mockMailer struct {
	mu   sync.Mutex
	sent []domain.Mail
}

func (m *mockMailer) Send(mail domain.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) HandleEvent(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *recordingListener) byType(eventType EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []Event
	for _, event := range l.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type serviceFixture struct {
	roomStore        *mockRoomStore
	reservationStore *mockReservationStore
	paymentStore     *mockPaymentStore
	cache            *mockCache
	listener         *recordingListener
	availability     *AvailabilityService
	reservations     *ReservationService
	payments         *PaymentService
	promotion        *PromotionService
}

func newServiceFixture() *serviceFixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tracer := trace.NewNoopTracerProvider().Tracer("")

	fixture := &serviceFixture{
		roomStore:        newMockRoomStore(),
		reservationStore: newMockReservationStore(),
		paymentStore:     newMockPaymentStore(),
		cache:            newMockCache(),
		listener:         &recordingListener{},
	}
	fixture.availability = NewAvailabilityService(fixture.roomStore, fixture.reservationStore, fixture.cache, logger, tracer)
	fixture.reservations = NewReservationService(fixture.roomStore, fixture.reservationStore, fixture.availability, fixture.cache, logger, tracer)
	fixture.payments = NewPaymentService(fixture.paymentStore, fixture.reservationStore, logger, tracer)
	fixture.promotion = NewPromotionService(fixture.roomStore, fixture.reservationStore, fixture.paymentStore, fixture.availability, fixture.payments, logger, tracer, fixture.listener)
	return fixture
}

func (f *serviceFixture) addRoomType(name string, basePrice float64) *domain.RoomType {
	roomType := &domain.RoomType{Name: name, BasePrice: basePrice, Capacity: 2}
	_ = f.roomStore.InsertRoomType(context.Background(), roomType)
	return roomType
}

func (f *serviceFixture) addRoom(roomTypeID primitive.ObjectID, number string, status domain.RoomStatus) *domain.Room {
	room := &domain.Room{Number: number, Floor: 1, RoomTypeID: roomTypeID, Status: status}
	_ = f.roomStore.InsertRoom(context.Background(), room)
	return room
}

func mustObjectID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		t.Fatalf("invalid object id %q: %s", hex, err)
	}
	return id
}

func testGuest() domain.Guest {
	return domain.Guest{
		FirstName: "Ana",
		LastName:  "Quispe",
		Email:     "ana.quispe@example.com",
		Phone:     "+51 987 654 321",
	}
}
