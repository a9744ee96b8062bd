// Package payment defines the contract with the external payment
// collaborator and its Stripe Checkout implementation. The engine hands a
// priced, held reservation to a SessionCreator and expects a redirect URL
// back; anything else is treated as a failure that triggers compensation.
package payment

import (
	"context"
	"errors"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// ErrNoRedirectURL is returned when the provider reports success but the
// session carries no redirect URL. Callers must treat it like any other
// initiation failure: slots must never stay held without a reachable
// payment path.
var ErrNoRedirectURL = errors.New("payment session has no redirect URL")

// SessionRequest carries everything the payment provider needs to build a
// checkout session for one reservation batch.
type SessionRequest struct {
	AmountCents   int64  // total price in minor currency units
	Currency      string // ISO currency code, e.g. "brl"
	RoomID        string // used to build the cancel redirect
	RoomTitle     string // shown as the product name
	Description   string // human-readable enumeration of the held periods
	CorrelationID string // comma-joined booking ids
	PeriodsCount  int
}

// Session is the provider's answer: an opaque session id to persist against
// the bookings and the URL the caller is redirected to.
type Session struct {
	ID  string
	URL string
}

// SessionCreator is implemented by payment collaborators able to turn a
// priced, held reservation into a redirect target.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// StripeCheckout creates Stripe Checkout sessions in payment mode. The
// package-level stripe.Key must be set at startup before the first call.
type StripeCheckout struct {
	// AppURL is the public base URL of the web application; success and
	// cancel redirects are derived from it.
	AppURL string
}

// CreateSession builds a single-line-item checkout session for the whole
// batch. The booking ids travel in the session metadata so the payment
// webhook can confirm every member of the reservation.
func (s *StripeCheckout) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.AppURL + "/app/bookings?status=success"),
		CancelURL:  stripe.String(s.AppURL + "/app/rooms/" + req.RoomID + "?status=cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Reserva: " + req.RoomTitle),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_ids", req.CorrelationID)
	params.AddMetadata("room_id", req.RoomID)
	params.AddMetadata("periods_count", strconv.Itoa(req.PeriodsCount))

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}
	if sess.URL == "" {
		return nil, ErrNoRedirectURL
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}
