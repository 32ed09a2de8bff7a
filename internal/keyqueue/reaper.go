package keyqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nickweedon/leasedkeyq/pkg/log"
)

// reaper is the per-queue background loop that returns expired leases to
// the front of the queue. It is started lazily on the first timed checkout
// (or eagerly by Start when the queue has a default TTL) and stopped only
// by Close.
type reaper[K comparable, V any] struct {
	q        *Queue[K, V]
	interval time.Duration
	logger   log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newReaper[K comparable, V any](q *Queue[K, V], interval time.Duration, logger log.Logger) *reaper[K, V] {
	ctx, cancel := context.WithCancel(context.Background())
	return &reaper[K, V]{
		q:        q,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *reaper[K, V]) start() {
	r.wg.Add(1)
	go r.run()
}

// stop cancels the loop and waits for it to exit. Callers must not hold the
// queue mutex.
func (r *reaper[K, V]) stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *reaper[K, V]) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("lease reaper started", log.Dur("interval", r.interval))
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("lease reaper stopped")
			return
		case <-ticker.C:
			r.scan()
		}
	}
}

// scan releases every expired in-flight lease to the front of the queue. A
// lease that was resolved between collection and release is an expected
// race and is ignored; anything else is logged and the loop continues.
func (r *reaper[K, V]) scan() {
	r.q.mu.Lock()
	if r.q.closed {
		r.q.mu.Unlock()
		return
	}

	now := time.Now()
	var expired []Lease[K]
	for _, rec := range r.q.inFlight {
		if rec.expired(now) {
			expired = append(expired, rec.lease)
		}
	}

	released := 0
	for _, lease := range expired {
		switch err := r.q.releaseLocked(lease, true); {
		case err == nil:
			released++
		case errors.Is(err, ErrInvalidLease), errors.Is(err, ErrLeaseAcknowledged):
			// resolved concurrently; nothing to do
		default:
			r.logger.Error("requeue of expired lease failed",
				log.Err(err), log.Str("token", lease.token))
		}
	}
	hook := r.q.settings.onExpire
	r.q.mu.Unlock()

	if released > 0 {
		r.logger.Debug("requeued expired leases", log.Int("count", released))
		if hook != nil {
			hook(released)
		}
	}
}
