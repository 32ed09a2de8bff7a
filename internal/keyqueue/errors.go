package keyqueue

import "errors"

var (
	// ErrQueueClosed is returned by every mutating or blocking operation on
	// a closed queue, including waits interrupted by Close.
	ErrQueueClosed = errors.New("keyqueue: queue closed")

	// ErrKeyInFlight is returned by Put with PutReject when the key is
	// currently held under a lease.
	ErrKeyInFlight = errors.New("keyqueue: key already in flight")

	// ErrInvalidLease is returned by Ack and Release when the lease token is
	// unknown: never issued by this queue, or already resolved.
	ErrInvalidLease = errors.New("keyqueue: unknown lease token")

	// ErrLeaseAcknowledged is returned by Ack and Release when the lease
	// token was already permanently acknowledged.
	ErrLeaseAcknowledged = errors.New("keyqueue: lease already acknowledged")
)
