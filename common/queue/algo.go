package queue

import (
	"strings"

	"github.com/Qthai16/lab0-queue/common/list"
)

func compareElement(a, b *Element) int {
	return strings.Compare(a.Value, b.Value)
}

// DeleteMid releases the element at 0-based index ⌊n/2⌋ of a queue of n
// elements, e.g. the fourth of six.
func (q *Queue) DeleteMid() error {
	if !q.valid() {
		return ErrNilQueue
	}
	if q.head.Empty() {
		return ErrEmpty
	}
	mid := q.Size() / 2
	l := q.head.Next()
	for i := 0; i < mid; i++ {
		l = l.Next()
	}
	l.Unlink()
	l.Owner().Release()
	return nil
}

// DeleteDup releases every element whose value occurs more than once,
// keeping only values that were unique. q must already be sorted ascending,
// this is not checked and an unsorted queue only loses adjacent runs.
func (q *Queue) DeleteDup() error {
	if !q.valid() {
		return ErrNilQueue
	}
	for first := q.head.Next(); first != &q.head; {
		v := first.Owner().Value
		last := first
		for last.Next() != &q.head && last.Next().Owner().Value == v {
			last = last.Next()
		}
		next := last.Next()
		if last != first {
			list.CutRange(first, last)
			for l := first; l != nil; {
				dead := l.Owner()
				l = l.Next()
				dead.Release()
			}
		}
		first = next
	}
	return nil
}

// Swap exchanges every two adjacent elements, the last one of an odd
// sized queue stays in place.
func (q *Queue) Swap() {
	if !q.valid() {
		return
	}
	q.head.SwapPairs()
}

// Reverse reverses q in place without allocating or releasing elements.
func (q *Queue) Reverse() {
	if !q.valid() {
		return
	}
	q.head.Reverse()
}

// Sort orders q ascending by byte-wise string comparison. Elements are
// relinked in place, equal values keep the order of the runs they are
// merged from.
func (q *Queue) Sort() {
	if !q.valid() {
		return
	}
	q.head.Sort(compareElement)
}
