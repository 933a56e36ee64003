package reminders

import (
	"context"
	"time"

	"hospops/internal/models"
)

// ReservationSource lists reservations; the repository and the reservation
// controller both satisfy it.
type ReservationSource interface {
	List(ctx context.Context) ([]models.Reservation, error)
}

// Sender delivers a text to the operations chat.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// Marker remembers which reservations were already announced.
type Marker interface {
	// TryMark records id and reports whether it was not marked before.
	TryMark(ctx context.Context, id int64, ttl time.Duration) (bool, error)

	// Unmark forgets id, so a failed delivery is retried on the next check.
	Unmark(ctx context.Context, id int64) error
}
