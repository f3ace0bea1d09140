package queue

import (
	"strings"
	"unsafe"

	"github.com/Qthai16/lab0-queue/common/alloc"
	"github.com/Qthai16/lab0-queue/common/list"
)

// Element is a queue entry. It embeds its own link, so moving it between
// positions never allocates.
type Element struct {
	link  list.Link[Element]
	Value string
	// nil once released
	alloc alloc.Allocator
	// bytes charged for Value at insert
	charged int
}

var (
	elementSize = int(unsafe.Sizeof(Element{}))
	headSize    = int(unsafe.Sizeof(list.Link[Element]{}))
)

// valueSize accounts for the terminator the value would need in a C string
// so empty values still own a block.
func valueSize(s string) int {
	return len(s) + 1
}

// newElement charges the element and its value to a, copies s and returns
// an unlinked element, or nil when either allocation is refused.
func newElement(a alloc.Allocator, s string) *Element {
	if !a.Malloc(elementSize) {
		return nil
	}
	charged := valueSize(s)
	if !a.Malloc(charged) {
		a.Free(elementSize)
		return nil
	}
	e := &Element{
		Value:   strings.Clone(s),
		alloc:   a,
		charged: charged,
	}
	e.link.Init(e)
	return e
}

// Release gives the value and the element back to the allocator they were
// charged to. The element must not be linked into a queue and must not be
// used afterwards. Releasing nil or an already released element is a no-op.
// Every element is a distinct object, so a stale handle never reaches an
// element inserted later.
func (e *Element) Release() {
	if e == nil || e.alloc == nil {
		return
	}
	e.alloc.Free(e.charged)
	e.alloc.Free(elementSize)
	e.alloc = nil
	e.charged = 0
}

// Next returns the element after e, nil at the tail or when e is unlinked.
func (e *Element) Next() *Element {
	return e.neighbor(e.link.Next())
}

// Prev returns the element before e, nil at the head or when e is unlinked.
func (e *Element) Prev() *Element {
	return e.neighbor(e.link.Prev())
}

func (e *Element) neighbor(l *list.Link[Element]) *Element {
	if l == nil || l == &e.link {
		return nil
	}
	return l.Owner()
}
