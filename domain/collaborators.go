package domain

import (
	"context"
	"time"
)

// BookingCache is the cache collaborator. It is fire-and-forget: every
// failure is logged by the implementation and never reaches a caller's
// correctness path.
type BookingCache interface {
	Invalidate(ctx context.Context, key string) error
	InvalidatePattern(ctx context.Context, pattern string) error
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error)
}

type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends best-effort notifications. Failures are logged only.
type Mailer interface {
	Send(mail Mail) error
}
