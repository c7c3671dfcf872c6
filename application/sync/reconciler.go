// Package sync drains the backlog of memos not yet confirmed by the server,
// independently of the mutations that created them.
package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"easymemo/application/ports"
	"easymemo/domain/memo"
	pkgerrors "easymemo/pkg/errors"
)

// DefaultInterval is how often a running reconciler retries while online
const DefaultInterval = 30 * time.Second

// Result summarizes one reconciliation pass
type Result struct {
	Attempted int
	Synced    int
	Failed    int
}

// Backlog is the slice of the repository the reconciler drives
type Backlog interface {
	PendingCreates() []memo.ID
	PendingEdits() []memo.ID
	Push(ctx context.Context, id memo.ID) error
}

// Reconciler retries the remote propagation of pending and failed memos. One
// pass runs at a time; triggers are connectivity-restored events and a
// periodic timer while online.
type Reconciler struct {
	mu sync.Mutex

	repo        Backlog
	conn        ports.Connectivity
	interval    time.Duration
	rescheduled chan struct{}
	logger      *zap.Logger
}

// New creates a reconciler. interval <= 0 falls back to DefaultInterval.
func New(repo Backlog, conn ports.Connectivity, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		repo:        repo,
		conn:        conn,
		interval:    interval,
		rescheduled: make(chan struct{}, 1),
		logger:      logger,
	}
}

// Reconcile runs one pass over the backlog: first the memos that still need
// their initial remote create, sequentially and oldest-first so the server
// sees them in creation order, then server-backed memos with unconfirmed
// edits. One memo failing never aborts the pass for the rest.
//
// A pass cannot tell whether a previously timed-out create actually committed
// server-side, so a retry may duplicate the record remotely; the wire contract
// offers no idempotency key to close that window.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result
	r.pushAll(ctx, r.repo.PendingCreates(), &res)
	r.pushAll(ctx, r.repo.PendingEdits(), &res)

	if res.Attempted > 0 {
		r.logger.Info("Reconciliation pass finished",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
		)
	}
	return res
}

// pushAll pushes each memo in the batch. A memo deleted since the scan is
// skipped entirely: there is nothing left to sync, so it is neither a failure
// nor an attempt.
func (r *Reconciler) pushAll(ctx context.Context, ids []memo.ID, res *Result) {
	for _, id := range ids {
		err := r.repo.Push(ctx, id)
		if pkgerrors.IsNotFound(err) {
			continue
		}

		res.Attempted++
		if err != nil {
			res.Failed++
			continue
		}
		res.Synced++
	}
}

// SetInterval changes the retry cadence. A running Run loop picks the new
// cadence up immediately.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()

	select {
	case r.rescheduled <- struct{}{}:
	default:
	}
}

func (r *Reconciler) currentInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// Run reconciles on a periodic timer until the context is cancelled. Passes
// are skipped while offline; connectivity-restored triggers arrive separately
// through the monitor's subscription.
func (r *Reconciler) Run(ctx context.Context) {
	timer := time.NewTimer(r.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.rescheduled:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.currentInterval())
		case <-timer.C:
			if r.conn.Online() {
				r.Reconcile(ctx)
			}
			timer.Reset(r.currentInterval())
		}
	}
}
