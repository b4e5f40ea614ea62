package payu

import (
	"strings"

	"booking_service/domain"
)

// MapTransactionStatus folds a PayU transaction state into the internal
// payment vocabulary. It is the single source of truth for both the
// synchronous create-response path and the webhook path.
func MapTransactionStatus(state string) domain.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "APPROVED":
		return domain.PaymentCompleted
	case "DECLINED", "EXPIRED", "REJECTED", "ENTITY_DECLINED":
		return domain.PaymentFailed
	default:
		// Unknown, empty and PENDING states all stay Pending; the webhook
		// will settle them later.
		return domain.PaymentPending
	}
}

// MapPolState translates the numeric state_pol codes carried by legacy
// form-encoded notifications into transaction states.
func MapPolState(statePol string) string {
	switch strings.TrimSpace(statePol) {
	case "4":
		return "APPROVED"
	case "6":
		return "DECLINED"
	case "5":
		return "EXPIRED"
	default:
		return "PENDING"
	}
}
