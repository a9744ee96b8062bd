package model

import "time"

// Room mirrors the `rooms` table. Rooms are owned by an external
// collaborator; the booking engine reads them only as a price and title
// source and never writes to them.
//
// Fields:
//
//	ID             – UUID primary key.
//	Title          – display name used in payment descriptions.
//	Address        – street address.
//	RoomType       – free-form category (office, studio, ...).
//	PricePerPeriod – price charged per half-day period.
//	PricePerDay    – legacy daily price kept from an earlier schema.
//	PricePerHour   – legacy hourly price kept from an earlier schema.
//	CreatedAt      – creation timestamp.
type Room struct {
	ID             string    // rooms.id
	Title          string    // rooms.title
	Address        string    // rooms.address
	RoomType       string    // rooms.room_type
	PricePerPeriod float64   // rooms.price_per_period
	PricePerDay    float64   // rooms.price_per_day (legacy)
	PricePerHour   float64   // rooms.price_per_hour (legacy)
	CreatedAt      time.Time // rooms.created_at
}

// PeriodPrice resolves the per-period price, falling back to the legacy
// per-day and per-hour columns when the period price is unset.
func (r *Room) PeriodPrice() float64 {
	if r.PricePerPeriod > 0 {
		return r.PricePerPeriod
	}
	if r.PricePerDay > 0 {
		return r.PricePerDay
	}
	return r.PricePerHour
}
