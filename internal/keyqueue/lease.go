package keyqueue

import (
	"time"

	"github.com/google/uuid"
)

// Lease is an exclusive, time-scoped claim on a checked-out key. It is
// immutable; the holder resolves it with Queue.Ack (permanent removal) or
// Queue.Release (return to the queue). Tokens are minted fresh per checkout
// and never reused.
type Lease[K comparable] struct {
	token string
	key   K
}

// Token returns the unique lease token.
func (l Lease[K]) Token() string { return l.token }

// Key returns the key this lease covers.
func (l Lease[K]) Key() K { return l.key }

func newLease[K comparable](key K) Lease[K] {
	return Lease[K]{token: uuid.NewString(), key: key}
}

// LeaseFrom reconstructs a lease handle from its token and key. It exists
// for callers that marshal leases across a process boundary (the HTTP
// layer); a handle with a token the queue never issued is rejected by Ack
// and Release with ErrInvalidLease.
func LeaseFrom[K comparable](token string, key K) Lease[K] {
	return Lease[K]{token: token, key: key}
}

// leaseRecord tracks one in-flight checkout. It is owned by the engine and
// only read or mutated while the engine mutex is held.
type leaseRecord[K comparable, V any] struct {
	lease        Lease[K]
	key          K
	value        V
	acknowledged bool
	createdAt    time.Time
	ttl          time.Duration
	hasTTL       bool
}

// expired reports whether the lease has outlived its TTL at now. Records
// without a TTL never expire. createdAt is taken from time.Now, which
// carries Go's monotonic clock, so wall-clock adjustments cannot expire a
// lease early.
func (r *leaseRecord[K, V]) expired(now time.Time) bool {
	if !r.hasTTL {
		return false
	}
	return now.Sub(r.createdAt) >= r.ttl
}
