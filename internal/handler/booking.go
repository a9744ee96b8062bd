package handler

import (
	"errors"   // for errors.Is/As comparisons against the engine taxonomy
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // structured logging for internal errors

	"github.com/essenza/room-booking/internal/booking" // reservation engine
)

// msgMissingFields is returned for malformed checkout requests; the wording
// matches what the web client expects.
const msgMissingFields = "Missing fields: room_id and periods are required"

// msgPaymentError is the generic message for storage and payment failures.
// Internal detail goes to the log, never to the caller.
const msgPaymentError = "Erro interno ao processar pagamento."

// BookingHandler exposes the reservation engine over HTTP. JWT
// authentication runs as middleware before every protected method; handlers
// read the caller's identity from the context and never trust the body for
// it.
type BookingHandler struct {
	svc *booking.Service
	log *zap.Logger
}

// NewBookingHandler constructs a BookingHandler. The service must be
// non-nil; a nil logger is replaced with a no-op one.
func NewBookingHandler(svc *booking.Service, log *zap.Logger) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log}
}

// getUserID extracts the authenticated subject stored by the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	id, ok := c.Get("user_id").(string)
	if !ok || id == "" {
		return "", errors.New("missing user id in context")
	}
	return id, nil
}

// Checkout handles POST /v1/checkout. It validates the requested periods,
// holds them atomically as pending, prices the batch and returns the
// payment redirect URL. Any conflict rejects the entire batch; the caller
// always knows unambiguously that nothing was held.
func (h *BookingHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}
	var req booking.ReserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgMissingFields})
	}
	req.UserID = userID

	res, err := h.svc.Reserve(c.Request().Context(), req)
	if err != nil {
		return h.writeReserveError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": res.URL})
}

// writeReserveError maps the engine's error taxonomy onto the HTTP
// contract. Conflict responses carry the user-presentable message naming
// the first offending date and period.
func (h *BookingHandler) writeReserveError(c echo.Context, err error) error {
	var conflict *booking.ConflictError
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgMissingFields})
	case errors.Is(err, booking.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Room not found"})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": conflict.Error()})
	case errors.Is(err, booking.ErrPaymentInitiation):
		// Already logged with detail inside the engine.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgPaymentError})
	default:
		h.log.Error("checkout failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgPaymentError})
	}
}

// Availability handles GET /v1/rooms/:id/availability?from=&to=. It returns
// the held slots (pending or confirmed) of a room inside the closed date
// range, for rendering the booking calendar. Public; responses are served
// through the Redis cache when configured.
func (h *BookingHandler) Availability(c echo.Context) error {
	roomID := c.Param("id")
	from := c.QueryParam("from")
	to := c.QueryParam("to")

	entries, err := h.svc.Availability(c.Request().Context(), roomID, from, to)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id or date range"})
		}
		h.log.Error("availability query failed", zap.String("room_id", roomID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": entries})
}

// MyBookings handles GET /v1/my-bookings. It returns all bookings created
// by the current user with room details, newest date first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}
	items, err := h.svc.BookingsFor(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("listing bookings failed", zap.String("user_id", userID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CancelBooking handles DELETE /v1/bookings/:id. It releases a booking
// belonging to the current user, returning its slot to the pool. Returns
// 204 on success, 404 when the booking does not exist, 403 when it belongs
// to another user and 409 when it is already in a terminal state.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}
	bookingID := c.Param("id")
	if bookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.svc.Cancel(c.Request().Context(), userID, bookingID); err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, booking.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, booking.ErrNotCancellable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already finished"})
		default:
			h.log.Error("cancel failed", zap.String("booking_id", bookingID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}
