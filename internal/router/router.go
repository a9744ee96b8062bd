package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/essenza/room-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/essenza/room-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check, used by
// load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated read endpoints: room details
// and room availability. These back the booking calendar shown to guests
// before they sign in. The optional cache middleware (Redis response cache)
// is applied to this group only — availability is the hot read path and the
// responses carry no caller-specific data.
func RegisterPublic(e *echo.Echo, rooms *handler.RoomHandler, bookings *handler.BookingHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("/rooms/:id", rooms.GetRoom)
	g.GET("/rooms/:id/availability", bookings.Availability)
}

// RegisterBooking registers the reservation endpoints under /v1. All routes
// require a valid access token from the identity provider and one of the
// roles allowed to book. Checkout holds the requested periods and returns
// the payment redirect; cancellation releases a booking's slot.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER", "ADMIN"),
	)
	g.POST("/checkout", h.Checkout)
	g.GET("/my-bookings", h.MyBookings)
	g.DELETE("/bookings/:id", h.CancelBooking)
}
