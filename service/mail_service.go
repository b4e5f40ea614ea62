package application

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"booking_service/domain"
)

// SMTPConfig is built once at startup from the environment.
type SMTPConfig struct {
	Server   string
	Port     int
	Email    string
	Password string
}

type MailService struct {
	config SMTPConfig
	logger *logrus.Logger
}

func NewMailService(config SMTPConfig, logger *logrus.Logger) *MailService {
	return &MailService{config: config, logger: logger}
}

func (service *MailService) Send(mail domain.Mail) error {
	m := gomail.NewMessage()
	m.SetHeader("From", service.config.Email)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/plain", mail.Text)
	if mail.HTML != "" {
		m.AddAlternative("text/html", mail.HTML)
	}

	client := gomail.NewDialer(service.config.Server, service.config.Port, service.config.Email, service.config.Password)
	if err := client.DialAndSend(m); err != nil {
		service.logger.Errorf("MailService.Send : sending to %s failed: %s", mail.To, err)
		return err
	}
	return nil
}

// BookingNotifier turns promotion events into guest and operator mail.
// Everything here is best-effort: a failed send is logged and never
// affects the committed reservation or payment.
type BookingNotifier struct {
	mailer        domain.Mailer
	operatorEmail string
	logger        *logrus.Logger
}

func NewBookingNotifier(mailer domain.Mailer, operatorEmail string, logger *logrus.Logger) *BookingNotifier {
	return &BookingNotifier{
		mailer:        mailer,
		operatorEmail: operatorEmail,
		logger:        logger,
	}
}

func (notifier *BookingNotifier) HandleEvent(_ context.Context, event Event) error {
	switch event.Type {
	case EventReservationPromoted:
		return notifier.sendGuestConfirmation(event.Reservation)
	case EventConflictDetected:
		return notifier.sendOperatorAlert(event.Reservation)
	default:
		return nil
	}
}

func (notifier *BookingNotifier) sendGuestConfirmation(reservation *domain.Reservation) error {
	text := fmt.Sprintf(
		"Dear %s,\n\nYour reservation is confirmed.\n\nConfirmation code: %s\nCheck-in: %s\nCheck-out: %s\nTotal: %.2f\n\nWe look forward to welcoming you.",
		reservation.Guest.FullName(),
		reservation.ConfirmationCode,
		reservation.CheckInDate.Format("2006-01-02"),
		reservation.CheckOutDate.Format("2006-01-02"),
		reservation.TotalPrice,
	)
	html := fmt.Sprintf(
		"<p>Dear %s,</p><p>Your reservation is confirmed.</p><p><b>Confirmation code:</b> %s<br><b>Check-in:</b> %s<br><b>Check-out:</b> %s<br><b>Total:</b> %.2f</p><p>We look forward to welcoming you.</p>",
		reservation.Guest.FullName(),
		reservation.ConfirmationCode,
		reservation.CheckInDate.Format("2006-01-02"),
		reservation.CheckOutDate.Format("2006-01-02"),
		reservation.TotalPrice,
	)
	return notifier.mailer.Send(domain.Mail{
		To:      reservation.Guest.Email,
		Subject: "Reservation confirmed - " + reservation.ConfirmationCode,
		Text:    text,
		HTML:    html,
	})
}

func (notifier *BookingNotifier) sendOperatorAlert(reservation *domain.Reservation) error {
	if notifier.operatorEmail == "" {
		notifier.logger.Warn("BookingNotifier : no operator email configured, dropping conflict alert")
		return nil
	}
	text := fmt.Sprintf(
		"A paid reservation could not be assigned a room and needs manual resolution.\n\nConfirmation code: %s\nGuest: %s (%s)\nCheck-in: %s\nCheck-out: %s\nTotal: %.2f",
		reservation.ConfirmationCode,
		reservation.Guest.FullName(),
		reservation.Guest.Email,
		reservation.CheckInDate.Format("2006-01-02"),
		reservation.CheckOutDate.Format("2006-01-02"),
		reservation.TotalPrice,
	)
	return notifier.mailer.Send(domain.Mail{
		To:      notifier.operatorEmail,
		Subject: "Room assignment needed - " + reservation.ConfirmationCode,
		Text:    text,
	})
}

// CacheInvalidator refreshes the booking cache namespaces after a
// promotion commits.
type CacheInvalidator struct {
	cache  domain.BookingCache
	logger *logrus.Logger
}

func NewCacheInvalidator(cache domain.BookingCache, logger *logrus.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, logger: logger}
}

func (invalidator *CacheInvalidator) HandleEvent(ctx context.Context, event Event) error {
	if event.Type != EventPaymentReconciled {
		return nil
	}
	for _, pattern := range []string{"availability:*", "reservations:*", "roomtypes:*"} {
		if err := invalidator.cache.InvalidatePattern(ctx, pattern); err != nil {
			invalidator.logger.Errorf("CacheInvalidator : %s failed: %s", pattern, err)
		}
	}
	return nil
}
