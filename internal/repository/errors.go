// Package repository defines error types that are reused across
// repositories. These sentinel values allow higher layers such as the
// booking engine to distinguish between failure scenarios without
// inspecting driver errors. ErrSlotTaken in particular is the
// authoritative conflict signal: it is produced when the uniqueness
// constraint over non-cancelled (room_id, date, period) rows rejects an
// insert, which is the serialization point between racing requests.
package repository

import "errors"

// ErrSlotTaken is returned when inserting a pending booking violates the
// uniqueness constraint, i.e. another non-cancelled booking already holds
// the same (room, date, period) key.
var ErrSlotTaken = errors.New("slot already booked")

// ErrRoomNotFound is returned when the requested room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrBookingNotFound is returned when the requested booking does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrForbidden is returned when the caller attempts an operation on a
// booking they do not own.
var ErrForbidden = errors.New("forbidden")
