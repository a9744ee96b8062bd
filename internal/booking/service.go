// Package booking implements the period-based reservation conflict engine:
// deciding whether a requested set of (room, date, period) slots can be
// booked atomically, holding them as pending, pricing the batch and driving
// payment initiation. Correctness under concurrency rests entirely on the
// storage layer's uniqueness constraint; the engine takes no in-process
// locks and never assumes it is the sole writer.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/essenza/room-booking/internal/model"
	"github.com/essenza/room-booking/internal/payment"
	"github.com/essenza/room-booking/internal/pricing"
	"github.com/essenza/room-booking/internal/queue"
	"github.com/essenza/room-booking/internal/repository"
)

// SlotStore is the persistence surface the engine needs. It is satisfied by
// *repository.BookingRepo; any store with an equivalent conditional-insert
// primitive works, as long as InsertPending fails with
// repository.ErrSlotTaken when the uniqueness invariant would be violated.
type SlotStore interface {
	ListHeld(ctx context.Context, roomID, from, to string) ([]model.AvailabilityEntry, error)
	HasActiveSlot(ctx context.Context, roomID, date string, period model.Period) (bool, error)
	InsertPending(ctx context.Context, b *model.Booking) error
	UpdateStatus(ctx context.Context, ids []string, status model.Status) error
	AttachPaymentSession(ctx context.Context, ids []string, sessionID string) error
	GetForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]repository.UserBooking, error)
}

// RoomSource provides read-only access to rooms, the engine's price source.
type RoomSource interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
}

// EventPublisher receives best-effort lifecycle events. Publish failures
// are logged and never fail the request.
type EventPublisher interface {
	PublishBookingHeld(ctx context.Context, ev queue.BookingHeldEvent) error
	PublishBookingReleased(ctx context.Context, ev queue.BookingReleasedEvent) error
}

// Service is the reservation engine. All state lives in the SlotStore;
// Service itself is stateless and safe for concurrent use.
type Service struct {
	rooms    RoomSource
	slots    SlotStore
	payments payment.SessionCreator
	events   EventPublisher // optional, may be nil
	currency string
	log      *zap.Logger
}

// NewService wires the engine. events may be nil when no broker is
// configured; currency defaults to "brl".
func NewService(rooms RoomSource, slots SlotStore, payments payment.SessionCreator, events EventPublisher, currency string, log *zap.Logger) *Service {
	if rooms == nil || slots == nil || payments == nil {
		panic("nil dependency passed to booking.NewService")
	}
	if currency == "" {
		currency = "brl"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rooms: rooms, slots: slots, payments: payments, events: events, currency: currency, log: log}
}

// PeriodSelection is one requested (date, period) pair.
type PeriodSelection struct {
	Date   string       `json:"date"`
	Period model.Period `json:"period"`
}

// ReserveRequest is the engine's caller-facing contract for creating a
// reservation. UserID comes from the identity collaborator, not the body.
type ReserveRequest struct {
	RoomID  string            `json:"room_id"`
	Periods []PeriodSelection `json:"periods"`
	Notes   string            `json:"notes"`
	UserID  string            `json:"-"`
}

// ReserveResult references everything created for a successful attempt.
type ReserveResult struct {
	URL        string
	SessionID  string
	BookingIDs []string
	TotalPrice float64
}

// Availability lists the held slots of a room inside the closed date range
// [from, to]. Cancelled and completed bookings never appear.
func (s *Service) Availability(ctx context.Context, roomID, from, to string) ([]model.AvailabilityEntry, error) {
	if roomID == "" || !validDate(from) || !validDate(to) {
		return nil, ErrInvalidInput
	}
	entries, err := s.slots.ListHeld(ctx, roomID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: list held slots: %v", ErrStorage, err)
	}
	return entries, nil
}

// BookingsFor returns the caller's bookings with room details.
func (s *Service) BookingsFor(ctx context.Context, userID string) ([]repository.UserBooking, error) {
	items, err := s.slots.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrStorage, err)
	}
	return items, nil
}

// Reserve runs one reservation attempt in its fixed order: validate, hold,
// price, initiate payment, attach the session. Each step's postcondition is
// the next step's precondition, so the steps never reorder. Either every
// requested slot reaches pending or the whole batch is compensated to
// cancelled — a partial set never survives.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	periods, err := normalizePeriods(req)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("%w: load room: %v", ErrStorage, err)
	}
	perPeriod := room.PeriodPrice()
	if perPeriod <= 0 {
		return nil, ErrInvalidInput
	}

	// Fast-path check for the caller's benefit. The unique index at
	// insertion time remains the authoritative guard against races.
	for _, p := range periods {
		held, err := s.slots.HasActiveSlot(ctx, req.RoomID, p.Date, p.Period)
		if err != nil {
			return nil, fmt.Errorf("%w: availability check: %v", ErrStorage, err)
		}
		if held {
			return nil, &ConflictError{Date: p.Date, Period: p.Period}
		}
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	inserted := make([]string, 0, len(periods))
	for _, p := range periods {
		b := &model.Booking{
			ID:         uuid.NewString(),
			RoomID:     req.RoomID,
			UserID:     req.UserID,
			Date:       p.Date,
			Period:     p.Period,
			TotalPrice: perPeriod,
			Status:     model.StatusPending,
			Notes:      notes,
		}
		if err := s.slots.InsertPending(ctx, b); err != nil {
			s.release(ctx, req, inserted, "insert failed")
			if errors.Is(err, repository.ErrSlotTaken) {
				// Lost the insertion race after passing the pre-check.
				// Same outcome as a pre-check conflict; no automatic retry.
				return nil, &ConflictError{Date: p.Date, Period: p.Period}
			}
			return nil, fmt.Errorf("%w: insert booking: %v", ErrStorage, err)
		}
		inserted = append(inserted, b.ID)
	}

	total := pricing.Total(perPeriod, len(periods))
	sess, err := s.payments.CreateSession(ctx, payment.SessionRequest{
		AmountCents:   pricing.MinorUnits(total),
		Currency:      s.currency,
		RoomID:        room.ID,
		RoomTitle:     room.Title,
		Description:   describePeriods(periods),
		CorrelationID: strings.Join(inserted, ","),
		PeriodsCount:  len(periods),
	})
	if err != nil || sess == nil || sess.URL == "" {
		s.release(ctx, req, inserted, "payment initiation failed")
		s.log.Error("payment session initiation failed",
			zap.Error(err),
			zap.String("room_id", req.RoomID),
			zap.Strings("booking_ids", inserted),
		)
		return nil, ErrPaymentInitiation
	}

	if err := s.slots.AttachPaymentSession(ctx, inserted, sess.ID); err != nil {
		// The bookings stay pending without a session reference; the
		// reconciliation sweep re-examines them later.
		s.log.Warn("failed to attach payment session",
			zap.String("session_id", sess.ID),
			zap.Strings("booking_ids", inserted),
			zap.Error(err),
		)
	}

	if s.events != nil {
		ev := queue.BookingHeldEvent{
			BookingIDs: inserted,
			RoomID:     room.ID,
			UserID:     req.UserID,
			TotalPrice: total,
			SessionID:  sess.ID,
			HeldAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishBookingHeld(ctx, ev); err != nil {
			s.log.Warn("publish booking.held failed", zap.Error(err))
		}
	}

	return &ReserveResult{
		URL:        sess.URL,
		SessionID:  sess.ID,
		BookingIDs: inserted,
		TotalPrice: total,
	}, nil
}

// Cancel releases a booking owned by userID, returning its slot to the
// pool. Terminal bookings cannot be cancelled again.
func (s *Service) Cancel(ctx context.Context, userID, bookingID string) error {
	b, err := s.slots.GetForUser(ctx, bookingID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return ErrBookingNotFound
		case errors.Is(err, repository.ErrForbidden):
			return ErrForbidden
		default:
			return fmt.Errorf("%w: load booking: %v", ErrStorage, err)
		}
	}
	if b.Status.Terminal() {
		return ErrNotCancellable
	}
	if err := s.slots.UpdateStatus(ctx, []string{b.ID}, model.StatusCancelled); err != nil {
		return fmt.Errorf("%w: cancel booking: %v", ErrStorage, err)
	}
	if s.events != nil {
		ev := queue.BookingReleasedEvent{
			BookingIDs: []string{b.ID},
			RoomID:     b.RoomID,
			UserID:     userID,
			Reason:     "cancelled by user",
			ReleasedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishBookingReleased(ctx, ev); err != nil {
			s.log.Warn("publish booking.released failed", zap.Error(err))
		}
	}
	return nil
}

// release compensates a partially created batch: every row already inserted
// is returned to the pool by marking it cancelled. Compensation failures
// are logged; the reconciliation sweep is the backstop for rows that stay
// pending.
func (s *Service) release(ctx context.Context, req ReserveRequest, ids []string, reason string) {
	if len(ids) == 0 {
		return
	}
	if err := s.slots.UpdateStatus(ctx, ids, model.StatusCancelled); err != nil {
		s.log.Error("compensation failed",
			zap.Strings("booking_ids", ids),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	if s.events != nil {
		ev := queue.BookingReleasedEvent{
			BookingIDs: ids,
			RoomID:     req.RoomID,
			UserID:     req.UserID,
			Reason:     reason,
			ReleasedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishBookingReleased(ctx, ev); err != nil {
			s.log.Warn("publish booking.released failed", zap.Error(err))
		}
	}
}

// normalizePeriods validates the request and de-duplicates repeated
// (date, period) pairs, preserving order of first occurrence.
func normalizePeriods(req ReserveRequest) ([]PeriodSelection, error) {
	if req.RoomID == "" || len(req.Periods) == 0 {
		return nil, ErrInvalidInput
	}
	out := make([]PeriodSelection, 0, len(req.Periods))
	seen := make(map[string]struct{}, len(req.Periods))
	for _, p := range req.Periods {
		if !validDate(p.Date) || !p.Period.Valid() {
			return nil, ErrInvalidInput
		}
		key := p.Date + "|" + string(p.Period)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func validDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

// describePeriods builds the human-readable enumeration sent to the payment
// provider, e.g. "3 período(s): 2025-06-01 (Manhã), 2025-06-02 (Tarde), ...".
func describePeriods(periods []PeriodSelection) string {
	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, fmt.Sprintf("%s (%s)", p.Date, p.Period.Label()))
	}
	return fmt.Sprintf("%d período(s): %s", len(periods), strings.Join(parts, ", "))
}
