package keyqueue

import "testing"

func keysOf[K comparable, V any](l *list[K, V]) []K {
	var keys []K
	for n := l.head.next; n != l.tail; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

func TestListAppendPopOrder(t *testing.T) {
	l := newList[string, int]()
	if l.len() != 0 {
		t.Fatalf("new list len = %d, want 0", l.len())
	}
	if n := l.popFront(); n != nil {
		t.Fatalf("popFront on empty list returned %v", n)
	}

	l.append(&node[string, int]{key: "a", value: 1})
	l.append(&node[string, int]{key: "b", value: 2})
	l.append(&node[string, int]{key: "c", value: 3})
	if l.len() != 3 {
		t.Fatalf("len = %d, want 3", l.len())
	}

	for _, want := range []string{"a", "b", "c"} {
		n := l.popFront()
		if n == nil || n.key != want {
			t.Fatalf("popFront = %v, want key %q", n, want)
		}
	}
	if l.len() != 0 {
		t.Fatalf("len after draining = %d, want 0", l.len())
	}
}

func TestListAppendLeft(t *testing.T) {
	l := newList[string, int]()
	l.append(&node[string, int]{key: "b"})
	l.appendLeft(&node[string, int]{key: "a"})
	l.append(&node[string, int]{key: "c"})

	got := keysOf(l)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListRemoveMiddle(t *testing.T) {
	l := newList[string, int]()
	a := &node[string, int]{key: "a"}
	b := &node[string, int]{key: "b"}
	c := &node[string, int]{key: "c"}
	l.append(a)
	l.append(b)
	l.append(c)

	l.remove(b)
	if l.len() != 2 {
		t.Fatalf("len = %d, want 2", l.len())
	}
	if b.prev != nil || b.next != nil {
		t.Fatalf("removed node retains links: prev=%v next=%v", b.prev, b.next)
	}
	got := keysOf(l)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("order after remove = %v, want [a c]", got)
	}
}

func TestListRemoveEnds(t *testing.T) {
	l := newList[string, int]()
	a := &node[string, int]{key: "a"}
	b := &node[string, int]{key: "b"}
	l.append(a)
	l.append(b)

	l.remove(a)
	l.remove(b)
	if l.len() != 0 {
		t.Fatalf("len = %d, want 0", l.len())
	}
	if n := l.popFront(); n != nil {
		t.Fatalf("popFront after removing all = %v, want nil", n)
	}

	// list must still be usable
	l.append(&node[string, int]{key: "c"})
	if n := l.popFront(); n == nil || n.key != "c" {
		t.Fatalf("popFront = %v, want c", n)
	}
}
