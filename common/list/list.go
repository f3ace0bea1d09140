package list

import (
	"iter"

	"github.com/cockroachdb/errors"
)

// Link is a node of an intrusive circular doubly linked list.
// A list is anchored by a sentinel link that never carries an owner:
// the sentinel is both the next link of the last node and the previous
// link of the first node, so an empty list is a sentinel pointing at itself.
type Link[T any] struct {
	// next and prev only navigate, they never own the node they point to.
	next, prev *Link[T]
	// element embedding this link, nil for a sentinel
	owner *T
}

// Init makes l a one node cycle belonging to owner and returns l.
// Use a nil owner to build a sentinel.
func (l *Link[T]) Init(owner *T) *Link[T] {
	l.next = l
	l.prev = l
	l.owner = owner
	return l
}

func (l *Link[T]) Next() *Link[T] { return l.next }

func (l *Link[T]) Prev() *Link[T] { return l.prev }

// Owner returns the element embedding l.
func (l *Link[T]) Owner() *T { return l.owner }

// Empty reports whether the sentinel l is alone in its cycle.
func (l *Link[T]) Empty() bool {
	return l.next == l
}

// InsertAfter splices n right after l.
func (l *Link[T]) InsertAfter(n *Link[T]) {
	n.prev = l
	n.next = l.next
	l.next.prev = n
	l.next = n
}

// InsertBefore splices n right before l.
func (l *Link[T]) InsertBefore(n *Link[T]) {
	l.prev.InsertAfter(n)
}

// Unlink splices l out of its cycle, l becomes a one node cycle again.
func (l *Link[T]) Unlink() {
	l.prev.next = l.next
	l.next.prev = l.prev
	l.next = l
	l.prev = l
}

// CutRange relinks first.prev directly to last.next, detaching the run
// first..last. The detached run is terminated by nil on both ends so the
// caller can walk it with Next until nil and dispose of every node.
func CutRange[T any](first, last *Link[T]) {
	before, after := first.prev, last.next
	before.next = after
	after.prev = before
	first.prev = nil
	last.next = nil
}

// Len counts the nodes after the sentinel head.
func (head *Link[T]) Len() int {
	n := 0
	for l := head.next; l != head; l = l.next {
		n++
	}
	return n
}

// Entries yields the owner of every node after the sentinel head in order.
// The loop body must not unlink the yielded node, use EntriesSafe for that.
func (head *Link[T]) Entries() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for l := head.next; l != head; l = l.next {
			if !yield(l.owner) {
				return
			}
		}
	}
}

// EntriesSafe is like Entries but fetches the following node before the
// loop body runs, so the body may unlink or release the yielded owner.
func (head *Link[T]) EntriesSafe() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for l, safe := head.next, head.next.next; l != head; l, safe = safe, safe.next {
			if !yield(l.owner) {
				return
			}
		}
	}
}

// Validate walks the cycle from the sentinel head and checks that every
// next/prev pair are mutual inverses and that the walk comes back to head.
func (head *Link[T]) Validate() error {
	slow := head
	for pos, l := 0, head; ; pos++ {
		next := l.next
		switch {
		case next == nil || l.prev == nil:
			return errors.Newf("list: nil link at position %d", pos)
		case next.prev != l:
			return errors.Newf("list: next.prev of position %d does not point back", pos)
		case l.prev.next != l:
			return errors.Newf("list: prev.next of position %d does not point back", pos)
		}
		if next == head {
			return nil
		}
		if next.owner == nil {
			return errors.Newf("list: ownerless node at position %d", pos+1)
		}
		l = next
		if pos%2 == 1 {
			slow = slow.next
			if slow == l {
				return errors.Newf("list: cycle closing at position %d skips the sentinel", pos+1)
			}
		}
	}
}

// Reverse exchanges next and prev of every node, the sentinel included.
// Nothing is allocated or released.
func (head *Link[T]) Reverse() {
	l := head
	for {
		l.next, l.prev = l.prev, l.next
		// prev now holds the old next
		l = l.prev
		if l == head {
			return
		}
	}
}

// SwapPairs exchanges the positions of every two adjacent nodes after head.
// An odd node at the tail stays in place.
func (head *Link[T]) SwapPairs() {
	for a := head.next; a != head && a.next != head; a = a.next {
		b := a.next
		a.prev.next = b
		b.next.prev = a
		a.next = b.next
		b.prev = a.prev
		a.prev = b
		b.next = a
	}
}

// Sort orders the nodes after head ascending by cmp with a bottom-up merge
// sort. Every node starts as its own nil terminated run, runs are merged
// first with last, second with second to last and so on until one remains,
// then prev links and the cycle are restored. Only the run slice is
// allocated, nodes are relinked in place.
func (head *Link[T]) Sort(cmp func(a, b *T) int) {
	if head.next == head || head.next.next == head {
		return
	}

	runs := make([]*Link[T], 0, head.Len())
	for l := head.next; l != head; {
		next := l.next
		l.next, l.prev = nil, nil
		runs = append(runs, l)
		l = next
	}

	for len(runs) > 1 {
		for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
			runs[i] = merge(runs[i], runs[j], cmp)
		}
		runs = runs[:(len(runs)+1)/2]
	}

	prev := head
	head.next = runs[0]
	for l := runs[0]; l != nil; prev, l = l, l.next {
		l.prev = prev
	}
	prev.next = head
	head.prev = prev
}

// merge joins two nil terminated ascending runs through next only.
// On equal keys the node of a goes first.
func merge[T any](a, b *Link[T], cmp func(x, y *T) int) *Link[T] {
	var first *Link[T]
	tail := &first
	for a != nil && b != nil {
		if cmp(a.owner, b.owner) <= 0 {
			*tail = a
			tail, a = &a.next, a.next
		} else {
			*tail = b
			tail, b = &b.next, b.next
		}
	}
	if a != nil {
		*tail = a
	} else {
		*tail = b
	}
	return first
}
