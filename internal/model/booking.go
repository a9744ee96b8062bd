package model

import "time"

// DateLayout is the calendar-day format used throughout the API and the
// bookings table. Dates carry no time zone beyond the operator's local
// civil date.
const DateLayout = "2006-01-02"

// Period identifies one of the two fixed half-day windows a room can be
// booked for. Mornings run 08:00–13:00 and afternoons 14:00–19:00; the
// 13:00–14:00 gap and anything outside 08:00–19:00 are never bookable.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
)

// Valid reports whether p is one of the two known periods.
func (p Period) Valid() bool {
	return p == PeriodMorning || p == PeriodAfternoon
}

// Label returns the Portuguese label shown in user-facing messages and
// payment descriptions.
func (p Period) Label() string {
	if p == PeriodMorning {
		return "Manhã"
	}
	return "Tarde"
}

// Times returns the start and end of the period as "HH:MM" strings.
func (p Period) Times() (start, end string) {
	if p == PeriodMorning {
		return "08:00", "13:00"
	}
	return "14:00", "19:00"
}

// Status enumerates the lifecycle states of a booking.  The engine itself
// only performs pending → cancelled; pending → confirmed is driven by the
// external payment webhook and completed is assigned once a paid booking
// has elapsed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Blocks reports whether a booking in this status holds its slot against
// new reservation requests.
func (s Status) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Booking is one held (room, date, period) slot as stored in the
// `bookings` table. The tuple (RoomID, Date, Period) is the natural key
// for conflict purposes: at most one non-cancelled booking may exist per
// key at any time, enforced by a uniqueness constraint in the schema.
//
// Fields:
//
//	ID              – UUID primary key.
//	RoomID          – room being booked (owned by the rooms collaborator).
//	UserID          – subject claim of the authenticated caller.
//	Date            – calendar day in DateLayout format.
//	Period          – morning or afternoon.
//	TotalPrice      – per-period price charged for this slot (not the batch total).
//	Status          – lifecycle state, see Status.
//	Notes           – optional free-form note from the caller.
//	StripeSessionID – checkout session reference, nil until attached.
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Booking struct {
	ID              string    // bookings.id
	RoomID          string    // bookings.room_id
	UserID          string    // bookings.user_id
	Date            string    // bookings.date
	Period          Period    // bookings.period
	TotalPrice      float64   // bookings.total_price
	Status          Status    // bookings.status
	Notes           *string   // bookings.notes (nullable)
	StripeSessionID *string   // bookings.stripe_session_id (nullable)
	CreatedAt       time.Time // bookings.created_at
	UpdatedAt       time.Time // bookings.updated_at
}

// AvailabilityEntry is one held slot as returned by the availability index.
// Only pending and confirmed bookings appear here; cancelled and completed
// slots never block new requests.
type AvailabilityEntry struct {
	Date   string `json:"date"`
	Period Period `json:"period"`
	Status Status `json:"status"`
}
