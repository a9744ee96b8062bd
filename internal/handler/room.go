package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/essenza/room-booking/internal/model"
	"github.com/essenza/room-booking/internal/repository"
)

// RoomGetter is the read surface this handler needs, satisfied by
// *repository.RoomRepo.
type RoomGetter interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
}

// RoomHandler serves read-only room data owned by the rooms collaborator.
// The booking engine never writes to rooms; this handler only exposes what
// a caller needs to render a room page and its price.
type RoomHandler struct {
	rooms RoomGetter
	log   *zap.Logger
}

// NewRoomHandler constructs a RoomHandler bound to the room repository.
func NewRoomHandler(rooms RoomGetter, log *zap.Logger) *RoomHandler {
	if rooms == nil {
		panic("nil repository passed to NewRoomHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomHandler{rooms: rooms, log: log}
}

// GetRoom handles GET /v1/rooms/:id. The response carries the resolved
// per-period price so clients do not re-implement the legacy fallback
// chain.
func (h *RoomHandler) GetRoom(c echo.Context) error {
	id := c.Param("id")
	room, err := h.rooms.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Room not found"})
		}
		h.log.Error("room lookup failed", zap.String("room_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load room"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               room.ID,
		"title":            room.Title,
		"address":          room.Address,
		"room_type":        room.RoomType,
		"price_per_period": room.PeriodPrice(),
	})
}
