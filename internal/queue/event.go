// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit-log consumer.
package queue

// Queue names used on the broker. Both queues are declared durable.
const (
	BookingHeldQueue     = "booking.held"
	BookingReleasedQueue = "booking.released"
)

// BookingHeldEvent is published after a batch of slots has been held and a
// checkout session created. It carries enough information for downstream
// consumers to log, notify or reconcile without querying the primary
// database.
type BookingHeldEvent struct {
	BookingIDs []string `json:"booking_ids"`
	RoomID     string   `json:"room_id"`
	UserID     string   `json:"user_id"`
	TotalPrice float64  `json:"total_price"`
	SessionID  string   `json:"session_id"`
	HeldAt     string   `json:"held_at"`
}

// BookingReleasedEvent is published when slots return to the pool: explicit
// cancellation, batch compensation or the reconciliation sweep.
type BookingReleasedEvent struct {
	BookingIDs []string `json:"booking_ids"`
	RoomID     string   `json:"room_id"`
	UserID     string   `json:"user_id"`
	Reason     string   `json:"reason"`
	ReleasedAt string   `json:"released_at"`
}
