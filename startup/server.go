package startup

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"booking_service/domain"
	"booking_service/handlers"
	"booking_service/payu"
	application "booking_service/service"
	"booking_service/startup/config"
	store2 "booking_service/store"
)

type Server struct {
	config *config.Config
}

func NewServer(config *config.Config) *Server {
	return &Server{
		config: config,
	}
}

func (server *Server) Start() {
	logger := logrus.New()
	storeLogger := log.New(os.Stdout, "[booking-store] ", log.LstdFlags)

	ctx := context.Background()
	exp, err := newExporter(server.config.JaegerAddress)
	if err != nil {
		log.Fatalf("Failed to Initialize Exporter: %v", err)
	}

	tp := newTraceProvider(exp)
	defer func() { _ = tp.Shutdown(ctx) }()
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer("booking_service")

	mongoClient := server.initMongoClient(ctx)
	defer func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	redisClient := server.initRedisClient()

	roomStore := store2.NewRoomMongoDBStore(mongoClient, storeLogger, tracer)
	reservationStore := store2.NewReservationMongoDBStore(mongoClient, storeLogger, tracer)
	paymentStore := store2.NewPaymentMongoDBStore(mongoClient, storeLogger, tracer)
	server.ensureIndexes(ctx, roomStore, reservationStore, paymentStore)
	cache := store2.NewBookingRedisCache(redisClient, storeLogger, tracer)

	gatewayConfig := payu.GatewayConfig{
		MerchantID:  server.config.PayUMerchantID,
		AccountID:   server.config.PayUAccountID,
		APIKey:      server.config.PayUAPIKey,
		APILogin:    server.config.PayUAPILogin,
		PaymentsURL: server.config.PayUURL,
		Test:        server.config.PayUTest,
	}
	gateway := payu.NewClient(gatewayConfig, storeLogger)
	normalizer := payu.NewNormalizer(gatewayConfig, storeLogger)

	mailService := application.NewMailService(application.SMTPConfig{
		Server:   server.config.SMTPServer,
		Port:     server.config.SMTPPort,
		Email:    server.config.SMTPEmail,
		Password: server.config.SMTPPassword,
	}, logger)
	notifier := application.NewBookingNotifier(mailService, server.config.OperatorEmail, logger)
	invalidator := application.NewCacheInvalidator(cache, logger)

	availabilityService := application.NewAvailabilityService(roomStore, reservationStore, cache, logger, tracer)
	reservationService := application.NewReservationService(roomStore, reservationStore, availabilityService, cache, logger, tracer)
	paymentService := application.NewPaymentService(paymentStore, reservationStore, logger, tracer)
	promotionService := application.NewPromotionService(roomStore, reservationStore, paymentStore, availabilityService, paymentService, logger, tracer, notifier, invalidator)

	reservationHandler := handlers.NewReservationHandler(logger, reservationService, availabilityService, roomStore, tracer)
	paymentHandler := handlers.NewPaymentHandler(logger, reservationService, paymentService, promotionService, gateway, tracer)
	webhookHandler := handlers.NewWebhookHandler(logger, paymentService, promotionService, normalizer, tracer)

	server.start(reservationHandler, paymentHandler, webhookHandler)
}

func (server *Server) initMongoClient(ctx context.Context) *mongo.Client {
	client, err := store2.GetClient(ctx, server.config.BookingDBHost, server.config.BookingDBPort)
	if err != nil {
		log.Fatal(err)
	}
	return client
}

func (server *Server) initRedisClient() *redis.Client {
	client, err := store2.GetRedisClient(server.config.CacheHost, server.config.CachePort)
	if err != nil {
		log.Fatal(err)
	}
	return client
}

func (server *Server) ensureIndexes(ctx context.Context, roomStore domain.RoomStore, reservationStore domain.ReservationStore, paymentStore domain.PaymentStore) {
	if store, ok := roomStore.(*store2.RoomMongoDBStore); ok {
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Printf("room indexes: %v", err)
		}
	}
	if store, ok := reservationStore.(*store2.ReservationMongoDBStore); ok {
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Printf("reservation indexes: %v", err)
		}
	}
	if store, ok := paymentStore.(*store2.PaymentMongoDBStore); ok {
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Printf("payment indexes: %v", err)
		}
	}
}

func (server *Server) start(reservationHandler *handlers.ReservationHandler, paymentHandler *handlers.PaymentHandler, webhookHandler *handlers.WebhookHandler) {
	router := mux.NewRouter()
	router.Use(MiddlewareContentTypeSet)

	createReservation := router.Methods(http.MethodPost).Subrouter()
	createReservation.HandleFunc("/api/reservations/create", reservationHandler.CreateReservation)
	createReservation.Use(reservationHandler.MiddlewareReservationDeserialization)

	createPayment := router.Methods(http.MethodPost).Subrouter()
	createPayment.HandleFunc("/api/payments/create", paymentHandler.CreatePayment)
	createPayment.Use(paymentHandler.MiddlewarePaymentDeserialization)

	webhook := router.Methods(http.MethodPost).Subrouter()
	webhook.HandleFunc("/api/payments/webhook", webhookHandler.HandleNotification)

	get := router.Methods(http.MethodGet).Subrouter()
	get.HandleFunc("/api/reservations/code/{code}", reservationHandler.GetReservationByConfirmationCode)
	get.HandleFunc("/api/reservations/{id}", reservationHandler.GetReservation)
	get.HandleFunc("/api/reservations", reservationHandler.ListReservations)
	get.HandleFunc("/api/availability", reservationHandler.CheckAvailability)
	get.HandleFunc("/api/room-types", reservationHandler.GetRoomTypes)
	get.HandleFunc("/api/room-types/{id}/rooms", reservationHandler.GetRoomsByType)
	get.HandleFunc("/api/payments/{id}", paymentHandler.GetPayment)

	patch := router.Methods(http.MethodPatch).Subrouter()
	patch.HandleFunc("/api/reservations/{id}/status", reservationHandler.UpdateReservationStatus)

	del := router.Methods(http.MethodDelete).Subrouter()
	del.HandleFunc("/api/reservations/{id}", reservationHandler.DeleteReservation)

	cors := gorillaHandlers.CORS(gorillaHandlers.AllowedOrigins([]string{"*"}))

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", server.config.Port),
		Handler:     cors(router),
		IdleTimeout: 120 * time.Second,
		ReadTimeout: 15 * time.Second,
	}

	wait := time.Second * 15
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()

	c := make(chan os.Signal, 1)

	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	<-c

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Error Shutting Down Server %s", err)
	}
	log.Println("Server Gracefully Stopped")
}

func newExporter(address string) (*jaeger.Exporter, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(address)))
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func newTraceProvider(exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("booking_service"),
		),
	)

	if err != nil {
		panic(err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(r),
	)
}

func MiddlewareContentTypeSet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, h *http.Request) {
		rw.Header().Add("Content-Type", "application/json")
		rw.Header().Set("X-Content-Type-Options", "nosniff")

		next.ServeHTTP(rw, h)
	})
}
