package keyqueue

// node is a member of both the ordering list and the available index. The
// same allocation carries the link fields and the keyed identity, which is
// what keeps lookup-by-key, arbitrary removal, and pop all O(1).
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// list is a doubly-linked list with sentinel head and tail nodes. The
// sentinels mean no operation ever has to special-case an empty or
// single-element list.
type list[K comparable, V any] struct {
	head *node[K, V]
	tail *node[K, V]
	size int
}

func newList[K comparable, V any]() *list[K, V] {
	l := &list[K, V]{
		head: &node[K, V]{},
		tail: &node[K, V]{},
	}
	l.head.next = l.tail
	l.tail.prev = l.head
	return l
}

// append links n in before the tail sentinel.
func (l *list[K, V]) append(n *node[K, V]) {
	n.prev = l.tail.prev
	n.next = l.tail
	l.tail.prev.next = n
	l.tail.prev = n
	l.size++
}

// appendLeft links n in after the head sentinel.
func (l *list[K, V]) appendLeft(n *node[K, V]) {
	n.prev = l.head
	n.next = l.head.next
	l.head.next.prev = n
	l.head.next = n
	l.size++
}

// remove unlinks n and clears its link fields. n must currently be a member.
func (l *list[K, V]) remove(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
	l.size--
}

// popFront unlinks and returns the first node, or nil if the list is empty.
func (l *list[K, V]) popFront() *node[K, V] {
	if l.head.next == l.tail {
		return nil
	}
	n := l.head.next
	l.remove(n)
	return n
}

func (l *list[K, V]) len() int { return l.size }
