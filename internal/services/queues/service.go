package queues

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/nickweedon/leasedkeyq/internal/keyqueue"
	"github.com/nickweedon/leasedkeyq/internal/runtime"
	logpkg "github.com/nickweedon/leasedkeyq/pkg/log"
)

// Service is the layer between transports and the queue engine. It resolves
// named queues through the runtime and adds structured logging and
// Prometheus instrumentation around every operation.
type Service struct {
	rt      *runtime.Runtime
	logger  logpkg.Logger
	metrics *Metrics

	// defaultBlock bounds Get/Take waits that do not specify one, so a
	// remote caller can never park a handler forever.
	defaultBlock time.Duration
}

// New creates a queues service with default settings.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger creates a queues service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("queues"))
	}
	s := &Service{
		rt:           rt,
		logger:       logger,
		metrics:      NewMetrics(),
		defaultBlock: 5 * time.Second,
	}
	rt.SetLeaseExpiryObserver(func(queue string, expired int) {
		s.metrics.expiries.WithLabelValues(queue).Add(float64(expired))
	})
	return s
}

// Metrics returns the service's Prometheus instruments.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Item is one checked-out entry: the key, its value, and the lease token
// the consumer must present to Ack or Release.
type Item struct {
	Key   string
	Value []byte
	Token string
}

// DequeueRequest parameterizes Get and Take.
type DequeueRequest struct {
	Queue string
	Key   string // Take only
	// WaitMs bounds the wait. 0 uses the service default; negative means
	// do not wait beyond the caller's context.
	WaitMs int64
	// LeaseTTLMs selects the lease timeout: 0 inherits the queue default,
	// positive is an explicit timeout, negative means no timeout.
	LeaseTTLMs int64
}

// Stats is a read-only snapshot of one queue.
type Stats struct {
	Queue         string   `json:"queue"`
	Available     int      `json:"available"`
	InFlight      int      `json:"inflight"`
	AvailableKeys []string `json:"available_keys"`
	InFlightKeys  []string `json:"inflight_keys"`
}

// CreateQueue explicitly creates a queue.
func (s *Service) CreateQueue(name string) error {
	_, err := s.rt.CreateQueue(name)
	return err
}

// ListQueues returns all queue names, sorted.
func (s *Service) ListQueues() []string {
	return s.rt.ListQueues()
}

// Put inserts or updates value under key in the named queue.
func (s *Service) Put(_ context.Context, queue, key string, value []byte, policy keyqueue.PutPolicy) error {
	q, err := s.rt.EnsureQueue(queue)
	if err != nil {
		return err
	}
	if err := q.Put(key, value, policy); err != nil {
		s.metrics.failures.WithLabelValues(queue, "put", errKind(err)).Inc()
		return err
	}
	s.metrics.puts.WithLabelValues(queue, policy.String()).Inc()
	s.observe(queue, q)
	s.logger.Debug("put", logpkg.Str("queue", queue), logpkg.Str("key", key),
		logpkg.Str("policy", policy.String()), logpkg.Int("bytes", len(value)))
	return nil
}

// Get checks out the next item in FIFO order.
func (s *Service) Get(ctx context.Context, req DequeueRequest) (Item, error) {
	return s.dequeue(ctx, req, "get")
}

// Take checks out the specific key named in req.Key.
func (s *Service) Take(ctx context.Context, req DequeueRequest) (Item, error) {
	return s.dequeue(ctx, req, "take")
}

func (s *Service) dequeue(ctx context.Context, req DequeueRequest, op string) (Item, error) {
	q, err := s.rt.EnsureQueue(req.Queue)
	if err != nil {
		return Item{}, err
	}

	if req.WaitMs >= 0 {
		wait := s.defaultBlock
		if req.WaitMs > 0 {
			wait = time.Duration(req.WaitMs) * time.Millisecond
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	var opts []keyqueue.DequeueOption
	switch {
	case req.LeaseTTLMs > 0:
		opts = append(opts, keyqueue.WithLeaseTTL(time.Duration(req.LeaseTTLMs)*time.Millisecond))
	case req.LeaseTTLMs < 0:
		opts = append(opts, keyqueue.WithoutLeaseTTL())
	}

	var (
		key   string
		value []byte
		lease keyqueue.Lease[string]
	)
	if op == "take" {
		key, value, lease, err = q.Take(ctx, req.Key, opts...)
	} else {
		key, value, lease, err = q.Get(ctx, opts...)
	}
	if err != nil {
		s.metrics.failures.WithLabelValues(req.Queue, op, errKind(err)).Inc()
		return Item{}, err
	}

	s.metrics.dequeues.WithLabelValues(req.Queue, op).Inc()
	s.observe(req.Queue, q)
	s.logger.Debug("dequeue", logpkg.Str("queue", req.Queue), logpkg.Str("op", op),
		logpkg.Str("key", key), logpkg.Str("token", lease.Token()))
	return Item{Key: key, Value: value, Token: lease.Token()}, nil
}

// Ack permanently resolves a lease.
func (s *Service) Ack(_ context.Context, queue, key, token string) error {
	q, ok := s.rt.Queue(queue)
	if !ok {
		return runtime.ErrQueueNotFound
	}
	if err := q.Ack(keyqueue.LeaseFrom(token, key)); err != nil {
		s.metrics.failures.WithLabelValues(queue, "ack", errKind(err)).Inc()
		return err
	}
	s.metrics.acks.WithLabelValues(queue).Inc()
	s.observe(queue, q)
	s.logger.Debug("ack", logpkg.Str("queue", queue), logpkg.Str("key", key))
	return nil
}

// Release returns a leased item to the queue.
func (s *Service) Release(_ context.Context, queue, key, token string, front bool) error {
	q, ok := s.rt.Queue(queue)
	if !ok {
		return runtime.ErrQueueNotFound
	}
	if err := q.Release(keyqueue.LeaseFrom(token, key), front); err != nil {
		s.metrics.failures.WithLabelValues(queue, "release", errKind(err)).Inc()
		return err
	}
	s.metrics.releases.WithLabelValues(queue).Inc()
	s.observe(queue, q)
	s.logger.Debug("release", logpkg.Str("queue", queue), logpkg.Str("key", key),
		logpkg.Bool("front", front))
	return nil
}

// Peek returns the available value for key without checking it out.
func (s *Service) Peek(_ context.Context, queue, key string) ([]byte, bool, error) {
	q, ok := s.rt.Queue(queue)
	if !ok {
		return nil, false, runtime.ErrQueueNotFound
	}
	value, ok := q.Peek(key)
	return value, ok, nil
}

// Stats snapshots the named queue.
func (s *Service) Stats(_ context.Context, queue string) (Stats, error) {
	q, ok := s.rt.Queue(queue)
	if !ok {
		return Stats{}, runtime.ErrQueueNotFound
	}
	availableKeys := q.AvailableKeys()
	inFlightKeys := q.InFlightKeys()
	sort.Strings(availableKeys)
	sort.Strings(inFlightKeys)
	s.observe(queue, q)
	return Stats{
		Queue:         queue,
		Available:     q.Len(),
		InFlight:      q.InFlightLen(),
		AvailableKeys: availableKeys,
		InFlightKeys:  inFlightKeys,
	}, nil
}

func (s *Service) observe(name string, q *keyqueue.Queue[string, []byte]) {
	s.metrics.available.WithLabelValues(name).Set(float64(q.Len()))
	s.metrics.inFlight.WithLabelValues(name).Set(float64(q.InFlightLen()))
}

// errKind maps an error to a low-cardinality metric label.
func errKind(err error) string {
	switch {
	case errors.Is(err, keyqueue.ErrQueueClosed):
		return "closed"
	case errors.Is(err, keyqueue.ErrKeyInFlight):
		return "key_in_flight"
	case errors.Is(err, keyqueue.ErrInvalidLease):
		return "invalid_lease"
	case errors.Is(err, keyqueue.ErrLeaseAcknowledged):
		return "acknowledged"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
