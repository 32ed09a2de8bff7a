package keyqueue

import (
	"time"

	"github.com/nickweedon/leasedkeyq/pkg/log"
)

// PutPolicy selects what Put does when the key is currently in flight.
type PutPolicy int

const (
	// PutUpdate overwrites the in-flight record's value snapshot, so a later
	// Release requeues the new value. This is the default policy.
	PutUpdate PutPolicy = iota
	// PutReject fails with ErrKeyInFlight and changes no state.
	PutReject
	// PutBuffer holds the value in the key's single available slot so it
	// becomes visible once the in-flight lease resolves. A second buffered
	// put for the same key overwrites the first; it never queues a
	// duplicate entry.
	PutBuffer
)

// String returns the wire name of the policy.
func (p PutPolicy) String() string {
	switch p {
	case PutUpdate:
		return "update"
	case PutReject:
		return "reject"
	case PutBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// ParsePutPolicy maps a wire name to a PutPolicy. Empty means PutUpdate.
func ParsePutPolicy(s string) (PutPolicy, bool) {
	switch s {
	case "", "update":
		return PutUpdate, true
	case "reject":
		return PutReject, true
	case "buffer":
		return PutBuffer, true
	default:
		return PutUpdate, false
	}
}

// defaultReaperInterval is the expiry scan cadence; it is tuned well below
// typical lease TTLs so an expired lease is requeued promptly.
const defaultReaperInterval = 100 * time.Millisecond

type settings struct {
	defaultTTL     time.Duration
	hasDefaultTTL  bool
	reaperInterval time.Duration
	logger         log.Logger
	onExpire       func(expired int)
}

// Option configures a Queue at construction.
type Option func(*settings)

// WithDefaultLeaseTTL sets the lease timeout applied to every checkout that
// does not override it. Without a default, leases never expire unless a
// per-call TTL is given.
func WithDefaultLeaseTTL(d time.Duration) Option {
	return func(s *settings) {
		s.defaultTTL = d
		s.hasDefaultTTL = true
	}
}

// WithReaperInterval overrides the expiry scan cadence.
func WithReaperInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.reaperInterval = d
		}
	}
}

// WithLogger sets the logger used by the background reaper.
func WithLogger(logger log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithExpiryHook registers fn to be called after each reaper scan that
// requeues expired leases, with the number requeued. fn runs outside the
// queue mutex and may call back into the queue.
func WithExpiryHook(fn func(expired int)) Option {
	return func(s *settings) {
		s.onExpire = fn
	}
}

// ttlMode distinguishes "inherit the queue default" from an explicit
// duration and from an explicit no-timeout, which must remain expressible
// even when the queue has a default.
type ttlMode int

const (
	ttlInherit ttlMode = iota
	ttlExplicit
	ttlNone
)

type dequeueSettings struct {
	mode ttlMode
	ttl  time.Duration
}

// DequeueOption configures a single Get or Take.
type DequeueOption func(*dequeueSettings)

// WithLeaseTTL gives the checkout an explicit lease timeout, overriding the
// queue default.
func WithLeaseTTL(d time.Duration) DequeueOption {
	return func(ds *dequeueSettings) {
		ds.mode = ttlExplicit
		ds.ttl = d
	}
}

// WithoutLeaseTTL checks out with no lease timeout, even when the queue has
// a default.
func WithoutLeaseTTL() DequeueOption {
	return func(ds *dequeueSettings) {
		ds.mode = ttlNone
	}
}
