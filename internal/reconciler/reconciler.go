// Package reconciler implements the background sweep that releases
// bookings stuck in pending without a payment session reference — the case
// where payment initiation succeeded but attaching the session id failed,
// or the process died between the two steps.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/essenza/room-booking/internal/model"
)

// Store is the slice of the booking repository the sweep needs.
type Store interface {
	ListStalePending(ctx context.Context, cutoff time.Time) ([]string, error)
	UpdateStatus(ctx context.Context, ids []string, status model.Status) error
}

// Reconciler periodically cancels pending bookings older than TTL that
// never received a session reference, returning their slots to the pool.
type Reconciler struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

// New builds a Reconciler. Non-positive ttl and interval fall back to
// 30 minutes and 5 minutes respectively.
func New(store Store, ttl, interval time.Duration, log *zap.Logger) *Reconciler {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, ttl: ttl, interval: interval, log: log}
}

// Run blocks, sweeping once per interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Sweep(ctx); err != nil {
				r.log.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one pass: pending bookings created before now-TTL with no
// session reference are released to cancelled.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.ttl)
	ids, err := r.store.ListStalePending(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := r.store.UpdateStatus(ctx, ids, model.StatusCancelled); err != nil {
		return err
	}
	r.log.Info("released stale pending bookings",
		zap.Int("count", len(ids)),
		zap.Strings("booking_ids", ids),
	)
	return nil
}
