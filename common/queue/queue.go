// Package queue implements a double-ended queue of strings on top of an
// intrusive circular doubly linked list anchored by a sentinel.
//
// A Queue is not safe for concurrent use. Every method accepts a nil
// receiver and treats it, like a freed queue, as an invalid argument.
package queue

import (
	"iter"
	"strings"

	"github.com/Qthai16/lab0-queue/common/alloc"
	"github.com/Qthai16/lab0-queue/common/list"
	"github.com/cockroachdb/errors"
)

type (
	Queue struct {
		head list.Link[Element]
		// nil once freed
		alloc alloc.Allocator
	}

	Option func(*Queue)
)

// WithAllocator charges the sentinel and every element of the queue to a.
func WithAllocator(a alloc.Allocator) Option {
	return func(q *Queue) {
		q.alloc = a
	}
}

// New returns an empty queue, or nil when the allocator refuses the sentinel.
func New(opts ...Option) *Queue {
	q := &Queue{alloc: alloc.Default}
	for _, opt := range opts {
		opt(q)
	}
	if q.alloc == nil || !q.alloc.Malloc(headSize) {
		return nil
	}
	q.head.Init(nil)
	return q
}

func (q *Queue) valid() bool {
	return q != nil && q.alloc != nil
}

// Free releases every element and the sentinel. Freeing nil or an already
// freed queue does nothing.
func (q *Queue) Free() {
	if !q.valid() {
		return
	}
	for e := range q.head.EntriesSafe() {
		e.Release()
	}
	q.head.Init(nil)
	q.alloc.Free(headSize)
	q.alloc = nil
}

// InsertHead copies s into a new element at the head of q.
func (q *Queue) InsertHead(s string) error {
	if !q.valid() {
		return ErrNilQueue
	}
	e := newElement(q.alloc, s)
	if e == nil {
		return ErrNoMemory
	}
	q.head.InsertAfter(&e.link)
	return nil
}

// InsertTail copies s into a new element at the tail of q.
func (q *Queue) InsertTail(s string) error {
	if !q.valid() {
		return ErrNilQueue
	}
	e := newElement(q.alloc, s)
	if e == nil {
		return ErrNoMemory
	}
	q.head.InsertBefore(&e.link)
	return nil
}

// RemoveHead unlinks the head element and hands it to the caller, who must
// Release it. When sp is not empty, at most len(sp)-1 bytes of the value are
// copied into it followed by zero bytes; longer values are truncated.
// Returns nil if q is nil or empty.
func (q *Queue) RemoveHead(sp []byte) *Element {
	if !q.valid() || q.head.Empty() {
		return nil
	}
	return remove(q.head.Next(), sp)
}

// RemoveTail is RemoveHead for the tail element.
func (q *Queue) RemoveTail(sp []byte) *Element {
	if !q.valid() || q.head.Empty() {
		return nil
	}
	return remove(q.head.Prev(), sp)
}

func remove(l *list.Link[Element], sp []byte) *Element {
	l.Unlink()
	e := l.Owner()
	CopyValue(sp, e.Value)
	return e
}

// CopyValue copies at most len(sp)-1 bytes of v into sp and zero fills the rest.
func CopyValue(sp []byte, v string) {
	if len(sp) == 0 {
		return
	}
	n := copy(sp[:len(sp)-1], v)
	clear(sp[n:])
}

// Size counts the elements of q, 0 for a nil queue.
func (q *Queue) Size() int {
	if !q.valid() {
		return 0
	}
	return q.head.Len()
}

// Head returns the head element without removing it.
func (q *Queue) Head() *Element {
	if !q.valid() {
		return nil
	}
	return q.head.Next().Owner()
}

// Tail returns the tail element without removing it.
func (q *Queue) Tail() *Element {
	if !q.valid() {
		return nil
	}
	return q.head.Prev().Owner()
}

// All yields the elements from head to tail.
func (q *Queue) All() iter.Seq[*Element] {
	if !q.valid() {
		return func(func(*Element) bool) {}
	}
	return q.head.Entries()
}

// Values returns a copy of the values from head to tail.
func (q *Queue) Values() []string {
	values := make([]string, 0)
	for e := range q.All() {
		values = append(values, e.Value)
	}
	return values
}

// Sorted reports whether the values are in ascending order.
func (q *Queue) Sorted() bool {
	var prev *Element
	for e := range q.All() {
		if prev != nil && strings.Compare(prev.Value, e.Value) > 0 {
			return false
		}
		prev = e
	}
	return true
}

// Check validates the link structure of q.
func (q *Queue) Check() error {
	if !q.valid() {
		return ErrNilQueue
	}
	return errors.Wrap(q.head.Validate(), "queue")
}
