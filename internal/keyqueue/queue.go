package keyqueue

import (
	"context"
	"sync"
	"time"

	"github.com/nickweedon/leasedkeyq/pkg/log"
)

// Queue is an in-memory, concurrency-safe queue that merges keyed access,
// FIFO ordering, and lease-based exclusive checkout.
//
// Producers Put values under unique keys; consumers Get (FIFO) or Take (by
// key), receive an exclusive Lease, and resolve it with Ack (permanent
// removal) or Release (return to the queue). Leases with a timeout that go
// unresolved are requeued to the front by a background reaper, giving
// at-least-once delivery with automatic recovery from consumer failure.
//
// All operations are O(1) except the key-set accessors. A single mutex
// serializes every read and write of queue state; blocking calls drop the
// mutex while waiting and re-check their predicate on every wake.
type Queue[K comparable, V any] struct {
	mu sync.Mutex

	// notifyCh is the wake-all broadcast: closed and replaced under mu on
	// every state change a waiter could care about. Waiters capture the
	// current channel under mu before releasing it.
	notifyCh chan struct{}

	available  map[K]*node[K, V]
	inFlight   map[string]*leaseRecord[K, V]
	keyToToken map[K]string
	acked      map[string]struct{}
	order      *list[K, V]

	settings settings
	reap     *reaper[K, V] // nil until lazily started
	closed   bool
}

// New builds a Queue. The zero configuration has no default lease TTL, so
// leases never expire unless a checkout asks for one.
func New[K comparable, V any](opts ...Option) *Queue[K, V] {
	s := settings{reaperInterval: defaultReaperInterval}
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = log.NewLogger(log.WithLevel(log.InfoLevel)).With(log.Component("keyqueue"))
	}
	return &Queue[K, V]{
		notifyCh:   make(chan struct{}),
		available:  make(map[K]*node[K, V]),
		inFlight:   make(map[string]*leaseRecord[K, V]),
		keyToToken: make(map[K]string),
		acked:      make(map[string]struct{}),
		order:      newList[K, V](),
		settings:   s,
	}
}

// broadcastLocked wakes every waiter. Callers must hold mu.
func (q *Queue[K, V]) broadcastLocked() {
	close(q.notifyCh)
	q.notifyCh = make(chan struct{})
}

// Start idempotently launches the reaper when a default lease TTL is
// configured. It is optional: the reaper also starts lazily on the first
// checkout that carries a TTL.
func (q *Queue[K, V]) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.settings.hasDefaultTTL {
		q.startReaperLocked()
	}
	return nil
}

func (q *Queue[K, V]) startReaperLocked() {
	if q.reap != nil || q.closed {
		return
	}
	q.reap = newReaper(q, q.settings.reaperInterval, q.settings.logger)
	q.reap.start()
}

// Put inserts or updates the value for key. The policy governs the case
// where key is currently in flight; see PutPolicy. When key already has an
// available entry, that entry's value is overwritten in place, never
// duplicated.
func (q *Queue[K, V]) Put(key K, value V, policy PutPolicy) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	if token, ok := q.keyToToken[key]; ok {
		switch policy {
		case PutUpdate:
			q.inFlight[token].value = value
			return nil
		case PutReject:
			return ErrKeyInFlight
		case PutBuffer:
			// fall through to the available slot below
		}
	}

	if n, ok := q.available[key]; ok {
		n.value = value
		return nil
	}

	n := &node[K, V]{key: key, value: value}
	q.order.append(n)
	q.available[key] = n
	q.broadcastLocked()
	return nil
}

// Get dequeues the front item, mints a lease for its key, and returns it.
// It blocks until an item is available, ctx is done, or the queue closes.
// A bounded wait is a deadline on ctx; the deadline surfaces as ctx.Err()
// (context.DeadlineExceeded), distinct from ErrQueueClosed.
func (q *Queue[K, V]) Get(ctx context.Context, opts ...DequeueOption) (K, V, Lease[K], error) {
	var ds dequeueSettings
	for _, o := range opts {
		o(&ds)
	}

	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return zero3[K, V](ErrQueueClosed)
		}
		if q.order.len() > 0 {
			break
		}
		if err := q.waitLocked(ctx); err != nil {
			return zero3[K, V](err)
		}
	}

	n := q.order.popFront()
	delete(q.available, n.key)
	lease := q.checkoutLocked(n.key, n.value, ds)
	q.mu.Unlock()
	return n.key, n.value, lease, nil
}

// Take dequeues the specific key, ignoring the FIFO order of other keys. It
// blocks until key has an available entry, ctx is done, or the queue
// closes. No ordering is guaranteed among concurrent waiters for the same
// key; exactly one wins each time the key becomes available.
func (q *Queue[K, V]) Take(ctx context.Context, key K, opts ...DequeueOption) (K, V, Lease[K], error) {
	var ds dequeueSettings
	for _, o := range opts {
		o(&ds)
	}

	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return zero3[K, V](ErrQueueClosed)
		}
		if _, ok := q.available[key]; ok {
			break
		}
		if err := q.waitLocked(ctx); err != nil {
			return zero3[K, V](err)
		}
	}

	n := q.available[key]
	q.order.remove(n)
	delete(q.available, key)
	lease := q.checkoutLocked(key, n.value, ds)
	q.mu.Unlock()
	return key, n.value, lease, nil
}

// waitLocked blocks until the next broadcast or ctx done. It is entered and
// re-entered with mu held; on a nil return mu is held again and the caller
// must re-check its predicate. On error mu is released.
func (q *Queue[K, V]) waitLocked(ctx context.Context) error {
	ch := q.notifyCh
	q.mu.Unlock()
	select {
	case <-ch:
		q.mu.Lock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkoutLocked mints a lease for key, registers the in-flight record, and
// lazily starts the reaper when the record carries a TTL.
func (q *Queue[K, V]) checkoutLocked(key K, value V, ds dequeueSettings) Lease[K] {
	lease := newLease(key)
	rec := &leaseRecord[K, V]{
		lease:     lease,
		key:       key,
		value:     value,
		createdAt: time.Now(),
	}
	switch ds.mode {
	case ttlInherit:
		rec.ttl, rec.hasTTL = q.settings.defaultTTL, q.settings.hasDefaultTTL
	case ttlExplicit:
		rec.ttl, rec.hasTTL = ds.ttl, true
	case ttlNone:
	}
	q.inFlight[lease.token] = rec
	q.keyToToken[key] = lease.token
	if rec.hasTTL {
		q.startReaperLocked()
	}
	return lease
}

// Ack permanently removes the leased item from the queue. The token is
// retired: any further Ack or Release on it fails with
// ErrLeaseAcknowledged, and the key never returns to available through this
// path.
func (q *Queue[K, V]) Ack(lease Lease[K]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.acked[lease.token]; ok {
		return ErrLeaseAcknowledged
	}
	rec, ok := q.inFlight[lease.token]
	if !ok {
		return ErrInvalidLease
	}
	if rec.acknowledged {
		return ErrLeaseAcknowledged
	}
	rec.acknowledged = true
	q.acked[lease.token] = struct{}{}
	delete(q.inFlight, lease.token)
	delete(q.keyToToken, rec.key)
	return nil
}

// Release returns the leased item to the queue: to the front when
// requeueFront is true, else to the back. If the key already has an
// available entry (a buffered put), the buffered value wins and the
// in-flight snapshot is dropped.
func (q *Queue[K, V]) Release(lease Lease[K], requeueFront bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return q.releaseLocked(lease, requeueFront)
}

// releaseLocked is the shared release path used by Release, the reaper, and
// Close. Callers must hold mu.
func (q *Queue[K, V]) releaseLocked(lease Lease[K], requeueFront bool) error {
	if _, ok := q.acked[lease.token]; ok {
		return ErrLeaseAcknowledged
	}
	rec, ok := q.inFlight[lease.token]
	if !ok {
		return ErrInvalidLease
	}
	if rec.acknowledged {
		return ErrLeaseAcknowledged
	}

	delete(q.inFlight, lease.token)
	delete(q.keyToToken, rec.key)

	if _, ok := q.available[rec.key]; ok {
		return nil
	}

	n := &node[K, V]{key: rec.key, value: rec.value}
	if requeueFront {
		q.order.appendLeft(n)
	} else {
		q.order.append(n)
	}
	q.available[rec.key] = n
	q.broadcastLocked()
	return nil
}

// Peek returns the available value for key without dequeuing it.
func (q *Queue[K, V]) Peek(key K) (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n, ok := q.available[key]; ok {
		return n.value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key currently has an available entry.
func (q *Queue[K, V]) Contains(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.available[key]
	return ok
}

// AvailableKeys returns a snapshot of all keys with an available entry.
func (q *Queue[K, V]) AvailableKeys() []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]K, 0, len(q.available))
	for k := range q.available {
		keys = append(keys, k)
	}
	return keys
}

// InFlightKeys returns a snapshot of all keys currently held under a lease.
func (q *Queue[K, V]) InFlightKeys() []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]K, 0, len(q.keyToToken))
	for k := range q.keyToToken {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of available items.
func (q *Queue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.len()
}

// InFlightLen returns the number of items currently held under a lease.
func (q *Queue[K, V]) InFlightLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Close shuts the queue down: it stops the reaper, returns every
// non-acknowledged in-flight item to the front of the queue, and wakes all
// waiters, which fail with ErrQueueClosed. Close is idempotent, and every
// later mutating or blocking operation fails with ErrQueueClosed.
func (q *Queue[K, V]) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	r := q.reap
	q.mu.Unlock()

	// The reaper takes mu each scan, so it must be cancelled and awaited
	// without holding the lock.
	if r != nil {
		r.stop()
	}

	q.mu.Lock()
	for _, rec := range q.inFlight {
		if rec.acknowledged {
			continue
		}
		_ = q.releaseLocked(rec.lease, true)
	}
	q.broadcastLocked()
	q.mu.Unlock()
	return nil
}

func zero3[K comparable, V any](err error) (K, V, Lease[K], error) {
	var zk K
	var zv V
	return zk, zv, Lease[K]{}, err
}
