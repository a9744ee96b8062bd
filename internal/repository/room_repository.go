package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/essenza/room-booking/internal/model"
)

// RoomRepo provides read-only access to the rooms table. Rooms are owned
// by an external collaborator; the engine only reads titles and prices.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// GetByID loads a single room. It returns ErrRoomNotFound when no room
// with the given id exists. The legacy price columns are nullable; unset
// values scan as zero so model.Room.PeriodPrice can apply the fallback
// chain.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	const q = `SELECT id, title, address, room_type,
	                  price_per_period, price_per_day, price_per_hour, created_at
	           FROM rooms WHERE id = ?`
	var room model.Room
	var perPeriod, perDay, perHour sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Title, &room.Address, &room.RoomType,
		&perPeriod, &perDay, &perHour, &room.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	room.PricePerPeriod = perPeriod.Float64
	room.PricePerDay = perDay.Float64
	room.PricePerHour = perHour.Float64
	return &room, nil
}
