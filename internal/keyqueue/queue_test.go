package keyqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustPut(t *testing.T, q *Queue[string, int], key string, value int, policy PutPolicy) {
	t.Helper()
	if err := q.Put(key, value, policy); err != nil {
		t.Fatalf("put %q: %v", key, err)
	}
}

func mustGet(t *testing.T, q *Queue[string, int]) (string, int, Lease[string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	key, value, lease, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return key, value, lease
}

func TestGetFIFOOrder(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	mustPut(t, q, "c", 3, PutUpdate)

	for _, want := range []struct {
		key   string
		value int
	}{{"a", 1}, {"b", 2}, {"c", 3}} {
		key, value, _ := mustGet(t, q)
		if key != want.key || value != want.value {
			t.Fatalf("get = (%q, %d), want (%q, %d)", key, value, want.key, want.value)
		}
	}
}

func TestPutOverwritesAvailableValue(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	mustPut(t, q, "k", 2, PutUpdate)
	if n := q.Len(); n != 1 {
		t.Fatalf("len = %d, want 1 (no duplicate entries per key)", n)
	}
	_, value, _ := mustGet(t, q)
	if value != 2 {
		t.Fatalf("value = %d, want 2", value)
	}
}

func TestTakeSpecificKey(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	mustPut(t, q, "c", 3, PutUpdate)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	key, value, lease, err := q.Take(ctx, "b")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if key != "b" || value != 2 {
		t.Fatalf("take = (%q, %d), want (b, 2)", key, value)
	}
	if err := q.Ack(lease); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// FIFO order of the remaining keys is undisturbed
	key, _, _ = mustGet(t, q)
	if key != "a" {
		t.Fatalf("get after take = %q, want a", key)
	}
	key, _, _ = mustGet(t, q)
	if key != "c" {
		t.Fatalf("get after take = %q, want c", key)
	}
}

func TestAckRemovesPermanently(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)
	if err := q.Ack(lease); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if n := q.Len(); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
	if n := q.InFlightLen(); n != 0 {
		t.Fatalf("inflight = %d, want 0", n)
	}
}

func TestDoubleAckFails(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)
	if err := q.Ack(lease); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := q.Ack(lease); !errors.Is(err, ErrLeaseAcknowledged) {
		t.Fatalf("second ack = %v, want ErrLeaseAcknowledged", err)
	}
	if err := q.Release(lease, false); !errors.Is(err, ErrLeaseAcknowledged) {
		t.Fatalf("release after ack = %v, want ErrLeaseAcknowledged", err)
	}
}

func TestAckUnknownLease(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	if err := q.Ack(LeaseFrom("no-such-token", "k")); !errors.Is(err, ErrInvalidLease) {
		t.Fatalf("ack unknown = %v, want ErrInvalidLease", err)
	}
	if err := q.Release(LeaseFrom("no-such-token", "k"), false); !errors.Is(err, ErrInvalidLease) {
		t.Fatalf("release unknown = %v, want ErrInvalidLease", err)
	}
}

func TestReleaseRequeueBack(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	_, _, lease := mustGet(t, q) // a

	if err := q.Release(lease, false); err != nil {
		t.Fatalf("release: %v", err)
	}
	key, _, _ := mustGet(t, q)
	if key != "b" {
		t.Fatalf("get = %q, want b (released item went to the back)", key)
	}
	key, _, _ = mustGet(t, q)
	if key != "a" {
		t.Fatalf("get = %q, want a", key)
	}
}

func TestReleaseRequeueFront(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	_, _, lease := mustGet(t, q) // a

	if err := q.Release(lease, true); err != nil {
		t.Fatalf("release: %v", err)
	}
	key, _, _ := mustGet(t, q)
	if key != "a" {
		t.Fatalf("get = %q, want a (released item went to the front)", key)
	}
}

func TestReleasedLeaseIsRetired(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)
	if err := q.Release(lease, false); err != nil {
		t.Fatalf("release: %v", err)
	}
	// the token was resolved; a second resolution must fail
	if err := q.Ack(lease); !errors.Is(err, ErrInvalidLease) {
		t.Fatalf("ack after release = %v, want ErrInvalidLease", err)
	}

	// the requeued item checks out under a fresh token
	_, _, lease2 := mustGet(t, q)
	if lease2.Token() == lease.Token() {
		t.Fatalf("token reused across checkouts")
	}
}

func TestPutUpdatePolicyOnInFlightKey(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)

	// default policy updates the in-flight snapshot in place
	mustPut(t, q, "k", 2, PutUpdate)
	if n := q.Len(); n != 0 {
		t.Fatalf("len = %d, want 0 (update must not enqueue)", n)
	}

	if err := q.Release(lease, false); err != nil {
		t.Fatalf("release: %v", err)
	}
	_, value, _ := mustGet(t, q)
	if value != 2 {
		t.Fatalf("value = %d, want 2 (update preserved through release)", value)
	}
}

func TestPutRejectPolicyOnInFlightKey(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, _ = mustGet(t, q)

	if err := q.Put("k", 2, PutReject); !errors.Is(err, ErrKeyInFlight) {
		t.Fatalf("put reject = %v, want ErrKeyInFlight", err)
	}
	if q.Len() != 0 || q.InFlightLen() != 1 {
		t.Fatalf("state changed by rejected put: len=%d inflight=%d", q.Len(), q.InFlightLen())
	}
}

func TestPutBufferPolicyOnInFlightKey(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)

	mustPut(t, q, "k", 2, PutBuffer)
	if q.Len() != 1 || q.InFlightLen() != 1 {
		t.Fatalf("after buffer: len=%d inflight=%d, want 1/1", q.Len(), q.InFlightLen())
	}

	// a second buffered put overwrites the slot, never queues a duplicate
	mustPut(t, q, "k", 3, PutBuffer)
	if n := q.Len(); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}

	if err := q.Ack(lease); err != nil {
		t.Fatalf("ack: %v", err)
	}
	key, value, _ := mustGet(t, q)
	if key != "k" || value != 3 {
		t.Fatalf("get = (%q, %d), want (k, 3)", key, value)
	}
}

func TestReleaseKeepsBufferedValue(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)
	mustPut(t, q, "k", 2, PutBuffer)

	// release must not clobber the buffered value or queue a duplicate
	if err := q.Release(lease, true); err != nil {
		t.Fatalf("release: %v", err)
	}
	if q.Len() != 1 || q.InFlightLen() != 0 {
		t.Fatalf("after release: len=%d inflight=%d, want 1/0", q.Len(), q.InFlightLen())
	}
	_, value, _ := mustGet(t, q)
	if value != 2 {
		t.Fatalf("value = %d, want buffered 2", value)
	}
}

func TestMutualExclusionPerKey(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "k", 1, PutUpdate)
	_, _, _ = mustGet(t, q)

	// the key is in flight; a take on it must not be satisfiable now
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, _, err := q.Take(ctx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("take on in-flight key = %v, want DeadlineExceeded", err)
	}
}

func TestReadAccessors(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)

	if v, ok := q.Peek("a"); !ok || v != 1 {
		t.Fatalf("peek a = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := q.Peek("zz"); ok {
		t.Fatalf("peek of absent key succeeded")
	}
	if !q.Contains("b") || q.Contains("zz") {
		t.Fatalf("contains wrong")
	}

	_, _, _ = mustGet(t, q) // a goes in flight

	available := q.AvailableKeys()
	if len(available) != 1 || available[0] != "b" {
		t.Fatalf("available keys = %v, want [b]", available)
	}
	inFlight := q.InFlightKeys()
	if len(inFlight) != 1 || inFlight[0] != "a" {
		t.Fatalf("inflight keys = %v, want [a]", inFlight)
	}
	if q.Contains("a") {
		t.Fatalf("in-flight key still reported available")
	}
	if v, ok := q.Peek("a"); ok {
		t.Fatalf("peek of in-flight key = %d, want miss", v)
	}
}

func TestConservation(t *testing.T) {
	q := New[string, int]()
	defer q.Close()

	total := func() int { return q.Len() + q.InFlightLen() }

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	if total() != 2 {
		t.Fatalf("total = %d, want 2", total())
	}

	_, _, la := mustGet(t, q)
	if total() != 2 {
		t.Fatalf("total after get = %d, want 2", total())
	}

	if err := q.Release(la, false); err != nil {
		t.Fatalf("release: %v", err)
	}
	if total() != 2 {
		t.Fatalf("total after release = %d, want 2", total())
	}

	_, _, lb := mustGet(t, q)
	if err := q.Ack(lb); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if total() != 1 {
		t.Fatalf("total after ack = %d, want 1", total())
	}
}

func TestCloseReturnsInFlightToFront(t *testing.T) {
	q := New[string, int]()

	mustPut(t, q, "a", 1, PutUpdate)
	mustPut(t, q, "b", 2, PutUpdate)
	_, _, _ = mustGet(t, q)
	_, _, _ = mustGet(t, q)
	if q.Len() != 0 || q.InFlightLen() != 2 {
		t.Fatalf("precondition: len=%d inflight=%d", q.Len(), q.InFlightLen())
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if q.Len() != 2 || q.InFlightLen() != 0 {
		t.Fatalf("after close: len=%d inflight=%d, want 2/0", q.Len(), q.InFlightLen())
	}
}

func TestOperationsAfterClose(t *testing.T) {
	q := New[string, int]()
	mustPut(t, q, "k", 1, PutUpdate)
	_, _, lease := mustGet(t, q)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := q.Put("x", 1, PutUpdate); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("put after close = %v, want ErrQueueClosed", err)
	}
	if _, _, _, err := q.Get(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("get after close = %v, want ErrQueueClosed", err)
	}
	if _, _, _, err := q.Take(context.Background(), "k"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("take after close = %v, want ErrQueueClosed", err)
	}
	if err := q.Ack(lease); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("ack after close = %v, want ErrQueueClosed", err)
	}
	if err := q.Release(lease, false); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("release after close = %v, want ErrQueueClosed", err)
	}
	if err := q.Start(); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("start after close = %v, want ErrQueueClosed", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	q := New[string, int]()
	if err := q.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
