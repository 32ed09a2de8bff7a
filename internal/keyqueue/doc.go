// Package keyqueue implements an in-memory queue that merges three
// semantics: keyed (map-like) access, FIFO ordering, and lease-based
// exclusive checkout. It is a single-process analog of visibility-timeout
// message queues.
//
// # Model
//
//   - Put inserts a value under a unique key. A key has at most one
//     available entry and at most one in-flight lease at any time.
//   - Get dequeues in FIFO order; Take dequeues a specific key. Both return
//     an exclusive Lease and block (context-aware) until satisfiable.
//   - Ack resolves a lease permanently; Release returns the item to the
//     queue (front or back). Acknowledged tokens are retired forever.
//   - Leases with a timeout that go unresolved are auto-released to the
//     front of the queue by a background reaper, so a crashed consumer's
//     work is retried.
//
// # Key lifecycle
//
//	Absent → Available (Put) → InFlight (Get/Take)
//	         InFlight → Acknowledged (Ack, terminal)
//	         InFlight → Available (Release or lease expiry)
//
// A PutBuffer while the key is in flight parks the value in the key's
// available slot without disturbing the in-flight record.
//
// # Delivery guarantees
//
// At-least-once: an item is redelivered whenever its lease expires or is
// released, so consumers must be idempotent or deduplicate. Exactly-once is
// out of scope. Duplicate resolution of a single lease is always detected:
// the second Ack or Release fails with ErrLeaseAcknowledged.
//
// # Concurrency
//
// One mutex serializes all state; enqueue, dequeue, removal, ack, and
// release are O(1). Blocking calls drop the mutex while parked on a
// broadcast channel and re-check their predicate on every wake, so an
// unrelated wakeup (another key's release waking a Take) is never treated
// as success. Cancellation mid-wait leaves state untouched because nothing
// mutates before the predicate holds under the lock.
package keyqueue
