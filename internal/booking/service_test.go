package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/essenza/room-booking/internal/model"
	"github.com/essenza/room-booking/internal/payment"
	"github.com/essenza/room-booking/internal/queue"
	"github.com/essenza/room-booking/internal/repository"
)

// fakeStore is an in-memory SlotStore enforcing the same uniqueness
// invariant as the MySQL schema: at most one non-cancelled row per
// (room, date, period). The mutex makes InsertPending the serialization
// point, mirroring the unique index.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]*model.Booking
	calls     int
	insertErr map[string]error // keyed by date|period, forces an insert failure
	attachErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*model.Booking{}, insertErr: map[string]error{}}
}

func (f *fakeStore) activeHolder(roomID, date string, period model.Period) *model.Booking {
	for _, b := range f.rows {
		if b.RoomID == roomID && b.Date == date && b.Period == period && b.Status != model.StatusCancelled {
			return b
		}
	}
	return nil
}

func (f *fakeStore) seed(b model.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := b
	f.rows[b.ID] = &cp
}

func (f *fakeStore) ListHeld(_ context.Context, roomID, from, to string) ([]model.AvailabilityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	entries := make([]model.AvailabilityEntry, 0)
	for _, b := range f.rows {
		if b.RoomID == roomID && b.Status.Blocks() && b.Date >= from && b.Date <= to {
			entries = append(entries, model.AvailabilityEntry{Date: b.Date, Period: b.Period, Status: b.Status})
		}
	}
	return entries, nil
}

func (f *fakeStore) HasActiveSlot(_ context.Context, roomID, date string, period model.Period) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b := f.activeHolder(roomID, date, period)
	return b != nil && b.Status.Blocks(), nil
}

func (f *fakeStore) InsertPending(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.insertErr[b.Date+"|"+string(b.Period)]; err != nil {
		return err
	}
	if f.activeHolder(b.RoomID, b.Date, b.Period) != nil {
		return repository.ErrSlotTaken
	}
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, ids []string, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, id := range ids {
		if b, ok := f.rows[id]; ok {
			b.Status = status
		}
	}
	return nil
}

func (f *fakeStore) AttachPaymentSession(_ context.Context, ids []string, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.attachErr != nil {
		return f.attachErr
	}
	for _, id := range ids {
		if b, ok := f.rows[id]; ok {
			s := sessionID
			b.StripeSessionID = &s
		}
	}
	return nil
}

func (f *fakeStore) GetForUser(_ context.Context, bookingID, userID string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b, ok := f.rows[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]repository.UserBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	items := make([]repository.UserBooking, 0)
	for _, b := range f.rows {
		if b.UserID == userID {
			items = append(items, repository.UserBooking{
				ID: b.ID, RoomID: b.RoomID, Date: b.Date, Period: b.Period,
				Status: b.Status, TotalPrice: b.TotalPrice,
			})
		}
	}
	return items, nil
}

func (f *fakeStore) byStatus(status model.Status) []*model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.rows {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

type fakeRooms map[string]*model.Room

func (f fakeRooms) GetByID(_ context.Context, id string) (*model.Room, error) {
	r, ok := f[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return r, nil
}

type fakePayments struct {
	mu   sync.Mutex
	url  string
	err  error
	reqs []payment.SessionRequest
}

func (f *fakePayments) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Session{ID: "cs_test_123", URL: f.url}, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	held     []queue.BookingHeldEvent
	released []queue.BookingReleasedEvent
}

func (f *fakeEvents) PublishBookingHeld(_ context.Context, ev queue.BookingHeldEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = append(f.held, ev)
	return nil
}

func (f *fakeEvents) PublishBookingReleased(_ context.Context, ev queue.BookingReleasedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ev)
	return nil
}

func testRoom() *model.Room {
	return &model.Room{ID: "room-1", Title: "Sala Aurora", PricePerPeriod: 100}
}

func newTestService(store *fakeStore, rooms fakeRooms, pay *fakePayments, events EventPublisher) *Service {
	return NewService(rooms, store, pay, events, "brl", nil)
}

func reserveReq(periods ...PeriodSelection) ReserveRequest {
	return ReserveRequest{RoomID: "room-1", UserID: "user-1", Periods: periods}
}

func TestReserveCreatesPendingBatch(t *testing.T) {
	store := newFakeStore()
	pay := &fakePayments{url: "https://checkout.stripe.test/pay"}
	events := &fakeEvents{}
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, pay, events)

	res, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-02", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-02", Period: model.PeriodAfternoon},
	))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.URL != "https://checkout.stripe.test/pay" {
		t.Errorf("url = %q", res.URL)
	}
	if res.TotalPrice != 300 {
		t.Errorf("total = %v, want 300", res.TotalPrice)
	}
	if len(res.BookingIDs) != 3 {
		t.Fatalf("booking ids = %d, want 3", len(res.BookingIDs))
	}

	pending := store.byStatus(model.StatusPending)
	if len(pending) != 3 {
		t.Fatalf("pending rows = %d, want 3", len(pending))
	}
	for _, b := range pending {
		if b.TotalPrice != 100 {
			t.Errorf("per-slot price = %v, want 100", b.TotalPrice)
		}
		if b.StripeSessionID == nil || *b.StripeSessionID != "cs_test_123" {
			t.Errorf("session not attached on %s", b.ID)
		}
	}

	if len(pay.reqs) != 1 {
		t.Fatalf("payment calls = %d, want 1", len(pay.reqs))
	}
	req := pay.reqs[0]
	if req.AmountCents != 30000 {
		t.Errorf("amount = %d cents, want 30000", req.AmountCents)
	}
	if req.Currency != "brl" {
		t.Errorf("currency = %q", req.Currency)
	}
	want := "3 período(s): 2025-06-01 (Manhã), 2025-06-02 (Manhã), 2025-06-02 (Tarde)"
	if req.Description != want {
		t.Errorf("description = %q, want %q", req.Description, want)
	}
	if req.CorrelationID != strings.Join(res.BookingIDs, ",") {
		t.Errorf("correlation id = %q", req.CorrelationID)
	}

	if len(events.held) != 1 {
		t.Errorf("held events = %d, want 1", len(events.held))
	}
}

func TestReserveRejectsHeldSlot(t *testing.T) {
	store := newFakeStore()
	store.seed(model.Booking{
		ID: "b-0", RoomID: "room-1", UserID: "other",
		Date: "2025-06-01", Period: model.PeriodMorning, Status: model.StatusConfirmed,
	})
	pay := &fakePayments{url: "https://checkout.stripe.test/pay"}
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, pay, nil)

	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if got, want := conflict.Error(), "O período Manhã do dia 2025-06-01 não está disponível."; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	store.mu.Lock()
	rows := len(store.rows)
	store.mu.Unlock()
	if rows != 1 {
		t.Errorf("rows = %d, want only the seeded one", rows)
	}
	if len(pay.reqs) != 0 {
		t.Errorf("payment was called on a conflicting batch")
	}
}

func TestReserveRejectsWholeBatchOnSingleConflict(t *testing.T) {
	store := newFakeStore()
	store.seed(model.Booking{
		ID: "b-0", RoomID: "room-1", UserID: "other",
		Date: "2025-06-02", Period: model.PeriodAfternoon, Status: model.StatusPending,
	})
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-02", Period: model.PeriodAfternoon},
	))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Date != "2025-06-02" || conflict.Period != model.PeriodAfternoon {
		t.Errorf("offending slot = %s %s", conflict.Date, conflict.Period)
	}
	if got := len(store.byStatus(model.StatusPending)); got != 1 {
		t.Errorf("pending rows = %d, want only the seeded one", got)
	}
}

func TestReserveRaceSingleWinner(t *testing.T) {
	store := newFakeStore()
	pay := &fakePayments{url: "https://checkout.stripe.test/pay"}
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, pay, nil)

	slot := PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning}
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), reserveReq(slot))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		var conflict *ConflictError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d; want exactly one of each", wins, conflicts)
	}
	if got := len(store.byStatus(model.StatusPending)); got != 1 {
		t.Errorf("pending rows = %d, want 1", got)
	}
}

func TestReserveLostRaceAtInsertCompensates(t *testing.T) {
	store := newFakeStore()
	// The pre-check passes but the second insert loses the race.
	store.insertErr["2025-06-02|afternoon"] = repository.ErrSlotTaken
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-02", Period: model.PeriodAfternoon},
	))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if got := len(store.byStatus(model.StatusPending)); got != 0 {
		t.Errorf("pending rows = %d, want 0 after compensation", got)
	}
	if got := len(store.byStatus(model.StatusCancelled)); got != 1 {
		t.Errorf("cancelled rows = %d, want 1", got)
	}
}

func TestReserveStorageFailureRollsBackBatch(t *testing.T) {
	store := newFakeStore()
	store.insertErr["2025-06-03|morning"] = errors.New("connection reset")
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-02", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-03", Period: model.PeriodMorning},
	))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if got := len(store.byStatus(model.StatusCancelled)); got != 2 {
		t.Errorf("cancelled rows = %d, want the 2 already inserted", got)
	}
	if got := len(store.byStatus(model.StatusPending)); got != 0 {
		t.Errorf("pending rows = %d, want 0", got)
	}
}

func TestReservePaymentFailureRollsBack(t *testing.T) {
	for name, pay := range map[string]*fakePayments{
		"provider error": {err: errors.New("stripe: api unreachable")},
		"no url":         {url: ""},
	} {
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			events := &fakeEvents{}
			svc := newTestService(store, fakeRooms{"room-1": testRoom()}, pay, events)

			_, err := svc.Reserve(context.Background(), reserveReq(
				PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
				PeriodSelection{Date: "2025-06-01", Period: model.PeriodAfternoon},
			))
			if !errors.Is(err, ErrPaymentInitiation) {
				t.Fatalf("err = %v, want ErrPaymentInitiation", err)
			}
			if got := len(store.byStatus(model.StatusCancelled)); got != 2 {
				t.Errorf("cancelled rows = %d, want 2", got)
			}
			if got := len(store.byStatus(model.StatusPending)); got != 0 {
				t.Errorf("pending rows = %d, want 0", got)
			}
			if len(events.released) != 1 {
				t.Errorf("released events = %d, want 1", len(events.released))
			}
		})
	}
}

func TestReserveInvalidInputTouchesNothing(t *testing.T) {
	cases := map[string]ReserveRequest{
		"empty periods": {RoomID: "room-1", UserID: "user-1"},
		"no room":       reserveReqWithRoom("", PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning}),
		"bad date":      reserveReq(PeriodSelection{Date: "01/06/2025", Period: model.PeriodMorning}),
		"bad period":    reserveReq(PeriodSelection{Date: "2025-06-01", Period: "evening"}),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)
			_, err := svc.Reserve(context.Background(), req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if store.calls != 0 {
				t.Errorf("store was touched %d times before validation failed", store.calls)
			}
		})
	}
}

func reserveReqWithRoom(roomID string, periods ...PeriodSelection) ReserveRequest {
	r := reserveReq(periods...)
	r.RoomID = roomID
	return r
}

func TestReserveUnknownRoom(t *testing.T) {
	svc := newTestService(newFakeStore(), fakeRooms{}, &fakePayments{url: "u"}, nil)
	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestReserveRejectsUnpricedRoom(t *testing.T) {
	rooms := fakeRooms{"room-1": {ID: "room-1", Title: "Sala"}}
	svc := newTestService(newFakeStore(), rooms, &fakePayments{url: "u"}, nil)
	_, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReserveUsesLegacyPriceFallback(t *testing.T) {
	rooms := fakeRooms{"room-1": {ID: "room-1", Title: "Sala", PricePerDay: 80}}
	pay := &fakePayments{url: "u"}
	svc := newTestService(newFakeStore(), rooms, pay, nil)
	res, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.TotalPrice != 80 {
		t.Errorf("total = %v, want 80", res.TotalPrice)
	}
	if pay.reqs[0].AmountCents != 8000 {
		t.Errorf("amount = %d, want 8000", pay.reqs[0].AmountCents)
	}
}

func TestReserveDeduplicatesRepeatedPeriods(t *testing.T) {
	store := newFakeStore()
	pay := &fakePayments{url: "u"}
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, pay, nil)
	res, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(res.BookingIDs) != 1 || res.TotalPrice != 100 {
		t.Errorf("got %d bookings, total %v; want 1 booking, total 100", len(res.BookingIDs), res.TotalPrice)
	}
}

func TestReserveSurvivesAttachFailure(t *testing.T) {
	store := newFakeStore()
	store.attachErr = errors.New("connection reset")
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	res, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	// The booking stays pending without a session reference; the
	// reconciliation sweep handles it from here.
	pending := store.byStatus(model.StatusPending)
	if len(pending) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(pending))
	}
	if pending[0].StripeSessionID != nil {
		t.Errorf("session reference should not be attached")
	}
	if res.URL == "" {
		t.Errorf("caller should still receive the payment URL")
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newFakeStore()
	store.seed(model.Booking{
		ID: "b-1", RoomID: "room-1", UserID: "user-1",
		Date: "2025-06-01", Period: model.PeriodMorning, Status: model.StatusPending,
	})
	events := &fakeEvents{}
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, events)

	if err := svc.Cancel(context.Background(), "user-1", "b-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := len(store.byStatus(model.StatusCancelled)); got != 1 {
		t.Errorf("cancelled rows = %d, want 1", got)
	}
	if len(events.released) != 1 {
		t.Errorf("released events = %d, want 1", len(events.released))
	}

	// The slot is bookable again.
	if _, err := svc.Reserve(context.Background(), reserveReq(
		PeriodSelection{Date: "2025-06-01", Period: model.PeriodMorning},
	)); err != nil {
		t.Errorf("slot should be bookable after cancellation: %v", err)
	}
}

func TestCancelErrors(t *testing.T) {
	store := newFakeStore()
	store.seed(model.Booking{ID: "b-1", RoomID: "room-1", UserID: "user-1", Status: model.StatusCompleted})
	store.seed(model.Booking{ID: "b-2", RoomID: "room-1", UserID: "someone-else", Status: model.StatusPending})
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	if err := svc.Cancel(context.Background(), "user-1", "missing"); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("missing: err = %v, want ErrBookingNotFound", err)
	}
	if err := svc.Cancel(context.Background(), "user-1", "b-2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign: err = %v, want ErrForbidden", err)
	}
	if err := svc.Cancel(context.Background(), "user-1", "b-1"); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("terminal: err = %v, want ErrNotCancellable", err)
	}
}

func TestAvailabilityExcludesReleasedSlots(t *testing.T) {
	store := newFakeStore()
	store.seed(model.Booking{ID: "b-1", RoomID: "room-1", UserID: "u", Date: "2025-06-01", Period: model.PeriodMorning, Status: model.StatusPending})
	store.seed(model.Booking{ID: "b-2", RoomID: "room-1", UserID: "u", Date: "2025-06-01", Period: model.PeriodAfternoon, Status: model.StatusConfirmed})
	store.seed(model.Booking{ID: "b-3", RoomID: "room-1", UserID: "u", Date: "2025-06-02", Period: model.PeriodMorning, Status: model.StatusCancelled})
	svc := newTestService(store, fakeRooms{"room-1": testRoom()}, &fakePayments{url: "u"}, nil)

	entries, err := svc.Availability(context.Background(), "room-1", "2025-06-01", "2025-06-30")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2 (cancelled never blocks)", len(entries))
	}

	if _, err := svc.Availability(context.Background(), "room-1", "junk", "2025-06-30"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad range: err = %v, want ErrInvalidInput", err)
	}
}
