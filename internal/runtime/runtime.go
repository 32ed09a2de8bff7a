package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	cfgpkg "github.com/nickweedon/leasedkeyq/internal/config"
	"github.com/nickweedon/leasedkeyq/internal/keyqueue"
	logpkg "github.com/nickweedon/leasedkeyq/pkg/log"
)

var (
	// ErrQueueNotFound is returned when the named queue does not exist and
	// auto-creation is disabled.
	ErrQueueNotFound = errors.New("queue not found")
	// ErrInvalidQueueName is returned when a queue name fails the
	// configured name regex.
	ErrInvalidQueueName = errors.New("invalid queue name")
	// ErrTooManyQueues is returned when creating a queue would exceed
	// MaxQueues.
	ErrTooManyQueues = errors.New("queue limit reached")
	// ErrRuntimeClosed is returned by operations on a closed runtime.
	ErrRuntimeClosed = errors.New("runtime closed")
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime owns the registry of named queues for a single-node instance. All
// queues carry string keys and opaque byte payloads; the engine's generics
// are narrowed here at the service boundary.
type Runtime struct {
	mu       sync.RWMutex
	config   cfgpkg.Config
	logger   logpkg.Logger
	nameRe   *regexp.Regexp
	queues   map[string]*keyqueue.Queue[string, []byte]
	onExpiry func(queue string, expired int)
	closed   bool
}

// Open validates the configuration and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	re, err := regexp.Compile(opts.Config.QueueNameRegex)
	if err != nil {
		return nil, fmt.Errorf("compile queue name regex: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	return &Runtime{
		config: opts.Config,
		logger: logger,
		nameRe: re,
		queues: make(map[string]*keyqueue.Queue[string, []byte]),
	}, nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config {
	return r.config
}

// SetLeaseExpiryObserver registers fn to be notified whenever a queue's
// reaper requeues expired leases. The observer is read dynamically, so it
// also covers queues created before registration.
func (r *Runtime) SetLeaseExpiryObserver(fn func(queue string, expired int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpiry = fn
}

func (r *Runtime) notifyExpiry(queue string, expired int) {
	r.mu.RLock()
	fn := r.onExpiry
	r.mu.RUnlock()
	if fn != nil {
		fn(queue, expired)
	}
}

// Queue returns the named queue if it exists.
func (r *Runtime) Queue(name string) (*keyqueue.Queue[string, []byte], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// EnsureQueue returns the named queue, creating it when allowed. Creation
// validates the name, honors MaxQueues, applies the queue's configured
// defaults, and starts the new queue.
func (r *Runtime) EnsureQueue(name string) (*keyqueue.Queue[string, []byte], error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRuntimeClosed
	}
	if ok {
		return q, nil
	}
	if !r.config.AllowAutoCreateQueues {
		return nil, ErrQueueNotFound
	}
	return r.CreateQueue(name)
}

// CreateQueue explicitly creates the named queue. Creating an existing
// queue returns it unchanged.
func (r *Runtime) CreateQueue(name string) (*keyqueue.Queue[string, []byte], error) {
	if !r.nameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueueName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRuntimeClosed
	}
	if q, ok := r.queues[name]; ok {
		return q, nil
	}
	if r.config.MaxQueues > 0 && len(r.queues) >= r.config.MaxQueues {
		return nil, ErrTooManyQueues
	}

	defaults := r.config.ForQueue(name)
	opts := []keyqueue.Option{
		keyqueue.WithLogger(r.logger.With(logpkg.Component("keyqueue"), logpkg.Str("queue", name))),
		keyqueue.WithExpiryHook(func(expired int) { r.notifyExpiry(name, expired) }),
	}
	if ttl, ok := defaults.LeaseTimeout(); ok {
		opts = append(opts, keyqueue.WithDefaultLeaseTTL(ttl))
	}
	if interval, ok := defaults.ReaperInterval(); ok {
		opts = append(opts, keyqueue.WithReaperInterval(interval))
	}

	q := keyqueue.New[string, []byte](opts...)
	if err := q.Start(); err != nil {
		return nil, err
	}
	r.queues[name] = q
	r.logger.Info("queue created",
		logpkg.Str("queue", name),
		logpkg.Int64("lease_timeout_ms", defaults.LeaseTimeoutMs),
	)
	return q, nil
}

// ListQueues returns all queue names, sorted.
func (r *Runtime) ListQueues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	return nil
}

// Close closes every queue and rejects further operations. Idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	queues := make([]*keyqueue.Queue[string, []byte], 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	for _, q := range queues {
		_ = q.Close()
	}
	return nil
}
