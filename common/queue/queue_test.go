package queue

import (
	"bytes"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/Qthai16/lab0-queue/common/alloc"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, values ...string) (*Queue, *alloc.Tracker) {
	tr := alloc.NewTracker(alloc.Config{Seed: 1})
	q := New(WithAllocator(tr))
	require.NotNil(t, q)
	for _, v := range values {
		require.NoError(t, q.InsertTail(v))
	}
	require.NoError(t, q.Check())
	return q, tr
}

// expectFreed frees q and checks that nothing charged to tr survives.
func expectFreed(t *testing.T, q *Queue, tr *alloc.Tracker) {
	q.Free()
	assert.Equal(t, int64(0), tr.Blocks(), "leaked blocks")
	assert.Equal(t, int64(0), tr.Bytes(), "leaked bytes")
	assert.Equal(t, int64(0), tr.Violations())
}

func cstr(sp []byte) string {
	if i := bytes.IndexByte(sp, 0); i >= 0 {
		return string(sp[:i])
	}
	return string(sp)
}

func TestNewAndFree(t *testing.T) {
	q, tr := newTestQueue(t)
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, int64(1), tr.Blocks())
	expectFreed(t, q, tr)

	// freeing twice and freeing nil are no-ops
	q.Free()
	var nilQueue *Queue
	nilQueue.Free()
	assert.Equal(t, int64(0), tr.Violations())
}

func TestNewFailsWithoutMemory(t *testing.T) {
	tr := alloc.NewTracker(alloc.Config{Seed: 1})
	tr.FailNext(1)
	assert.Nil(t, New(WithAllocator(tr)))
	assert.Equal(t, int64(0), tr.Blocks())
}

func TestNilQueue(t *testing.T) {
	var q *Queue
	assert.True(t, errors.Is(q.InsertHead("a"), ErrNilQueue))
	assert.True(t, errors.Is(q.InsertTail("a"), ErrNilQueue))
	assert.Nil(t, q.RemoveHead(nil))
	assert.Nil(t, q.RemoveTail(nil))
	assert.Equal(t, 0, q.Size())
	assert.True(t, errors.Is(q.DeleteMid(), ErrNilQueue))
	assert.True(t, errors.Is(q.DeleteDup(), ErrNilQueue))
	assert.True(t, errors.Is(q.Check(), ErrNilQueue))
	assert.Nil(t, q.Head())
	assert.Nil(t, q.Tail())
	assert.Empty(t, q.Values())
	q.Swap()
	q.Reverse()
	q.Sort()
}

func TestFreedQueueRejectsInsert(t *testing.T) {
	q, tr := newTestQueue(t, "a")
	expectFreed(t, q, tr)
	assert.True(t, errors.Is(q.InsertHead("b"), ErrNilQueue))
	assert.Equal(t, 0, q.Size())
}

func TestInsertHeadTail(t *testing.T) {
	q, tr := newTestQueue(t)
	require.NoError(t, q.InsertHead("b"))
	require.NoError(t, q.InsertHead("a"))
	require.NoError(t, q.InsertTail("c"))
	require.NoError(t, q.Check())

	assert.Equal(t, []string{"a", "b", "c"}, q.Values())
	assert.Equal(t, 3, q.Size())
	assert.Equal(t, "a", q.Head().Value)
	assert.Equal(t, "c", q.Tail().Value)
	assert.Equal(t, "b", q.Head().Next().Value)
	assert.Nil(t, q.Head().Prev())
	assert.Nil(t, q.Tail().Next())
	assert.Equal(t, int64(7), tr.Blocks())
	expectFreed(t, q, tr)
}

func TestInsertCopiesValue(t *testing.T) {
	q, tr := newTestQueue(t)
	b := []byte("abc")
	require.NoError(t, q.InsertTail(string(b)))
	b[0] = 'x'
	assert.Equal(t, "abc", q.Head().Value)
	expectFreed(t, q, tr)
}

func TestInsertRollsBackOnFailure(t *testing.T) {
	q, tr := newTestQueue(t, "a")
	before := tr.Blocks()

	// element refused
	tr.FailNext(1)
	assert.True(t, errors.Is(q.InsertHead("x"), ErrNoMemory))
	assert.Equal(t, before, tr.Blocks())

	// element granted, value refused: the element must be given back
	q.alloc = &failSecond{Allocator: tr}
	assert.True(t, errors.Is(q.InsertTail("x"), ErrNoMemory))
	q.alloc = tr
	assert.Equal(t, before, tr.Blocks())
	assert.Equal(t, []string{"a"}, q.Values())
	require.NoError(t, q.Check())
	expectFreed(t, q, tr)
}

// failSecond refuses every second Malloc.
type failSecond struct {
	alloc.Allocator
	calls int
}

func (f *failSecond) Malloc(size int) bool {
	f.calls++
	if f.calls%2 == 0 {
		return false
	}
	return f.Allocator.Malloc(size)
}

func TestRemove(t *testing.T) {
	q, tr := newTestQueue(t, "a", "b", "c")
	sp := make([]byte, 16)

	e := q.RemoveHead(sp)
	require.NotNil(t, e)
	assert.Equal(t, "a", e.Value)
	assert.Equal(t, "a", cstr(sp))
	assert.Nil(t, e.Next())
	e.Release()

	e = q.RemoveTail(sp)
	require.NotNil(t, e)
	assert.Equal(t, "c", cstr(sp))
	e.Release()
	e.Release()

	e = q.RemoveTail(nil)
	require.NotNil(t, e)
	assert.Equal(t, "b", e.Value)
	e.Release()

	assert.Nil(t, q.RemoveHead(sp))
	assert.Nil(t, q.RemoveTail(sp))
	require.NoError(t, q.Check())
	expectFreed(t, q, tr)
}

func TestReleaseStaleHandle(t *testing.T) {
	q, tr := newTestQueue(t, "a", "b")
	e := q.RemoveHead(nil)
	require.NotNil(t, e)
	e.Release()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.InsertTail("c"))
	}
	// a second release through the old handle must not touch the new elements
	e.Release()
	require.NoError(t, q.Check())
	assert.Equal(t, []string{"b", "c", "c", "c", "c"}, q.Values())
	assert.Equal(t, int64(1+2*5), tr.Blocks())
	assert.Equal(t, int64(0), tr.Violations())
	expectFreed(t, q, tr)
}

func TestReleaseUsesChargedSize(t *testing.T) {
	q, tr := newTestQueue(t, "ab")
	e := q.RemoveHead(nil)
	require.NotNil(t, e)
	e.Value = "a much longer value than the one inserted"
	e.Release()
	expectFreed(t, q, tr)

	q, tr = newTestQueue(t, "a much longer value")
	e = q.RemoveTail(nil)
	require.NotNil(t, e)
	e.Value = ""
	e.Release()
	expectFreed(t, q, tr)
}

func TestRemoveTruncates(t *testing.T) {
	q, tr := newTestQueue(t, "hello")
	sp := []byte{'x', 'x', 'x', 'x'}
	e := q.RemoveHead(sp)
	require.NotNil(t, e)
	assert.Equal(t, []byte{'h', 'e', 'l', 0}, sp)
	assert.Equal(t, "hello", e.Value)
	e.Release()
	expectFreed(t, q, tr)
}

func TestRemoveTransfersOwnership(t *testing.T) {
	q, tr := newTestQueue(t, "a", "b")
	e := q.RemoveHead(nil)
	require.NotNil(t, e)
	q.Free()
	// the removed element is still live until released
	assert.Equal(t, int64(2), tr.Blocks())
	assert.Equal(t, "a", e.Value)
	e.Release()
	assert.Equal(t, int64(0), tr.Blocks())
}

func TestCopyValue(t *testing.T) {
	tests := []struct {
		size   int
		value  string
		expect string
	}{
		{1, "abc", ""},
		{3, "abc", "ab"},
		{4, "abc", "abc"},
		{8, "abc", "abc"},
		{8, "", ""},
	}
	for idx, tt := range tests {
		sp := bytes.Repeat([]byte{'z'}, tt.size)
		CopyValue(sp, tt.value)
		if v := cstr(sp); v != tt.expect {
			t.Errorf("%d, got %q, want %q", idx, v, tt.expect)
		}
		assert.Equal(t, byte(0), sp[tt.size-1], "case %d", idx)
	}
	CopyValue(nil, "abc")
}

func TestSizeTracksInsertAndRemove(t *testing.T) {
	q, tr := newTestQueue(t)
	const k = 50
	for i := 0; i < k; i++ {
		if i%2 == 0 {
			require.NoError(t, q.InsertHead(fmt.Sprint(i)))
		} else {
			require.NoError(t, q.InsertTail(fmt.Sprint(i)))
		}
		require.NoError(t, q.Check())
	}
	assert.Equal(t, k, q.Size())
	for j := 1; j <= 20; j++ {
		var e *Element
		if j%2 == 0 {
			e = q.RemoveHead(nil)
		} else {
			e = q.RemoveTail(nil)
		}
		require.NotNil(t, e)
		e.Release()
		require.NoError(t, q.Check())
		assert.Equal(t, k-j, q.Size())
	}
	expectFreed(t, q, tr)
}

func TestDeleteMid(t *testing.T) {
	tests := []struct {
		in     []string
		expect []string
	}{
		{[]string{"a"}, []string{}},
		{[]string{"a", "b"}, []string{"a"}},
		{[]string{"a", "b", "c"}, []string{"a", "c"}},
		{[]string{"a", "b", "c", "d", "e", "f"}, []string{"a", "b", "c", "e", "f"}},
		{[]string{"a", "b", "c", "d", "e", "f", "g"}, []string{"a", "b", "c", "e", "f", "g"}},
	}
	for idx, tt := range tests {
		q, tr := newTestQueue(t, tt.in...)
		require.NoError(t, q.DeleteMid(), "case %d", idx)
		require.NoError(t, q.Check(), "case %d", idx)
		assert.Equal(t, tt.expect, q.Values(), "case %d", idx)
		expectFreed(t, q, tr)
	}

	q, tr := newTestQueue(t)
	assert.True(t, errors.Is(q.DeleteMid(), ErrEmpty))
	expectFreed(t, q, tr)
}

func TestDeleteDup(t *testing.T) {
	tests := []struct {
		in     []string
		expect []string
	}{
		{[]string{}, []string{}},
		{[]string{"a"}, []string{"a"}},
		{[]string{"a", "a"}, []string{}},
		{[]string{"a", "b", "b", "c"}, []string{"a", "c"}},
		{[]string{"a", "a", "a", "b", "c", "c"}, []string{"b"}},
		{[]string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{[]string{"a", "b", "c", "c", "c"}, []string{"a", "b"}},
		{[]string{"", "", "x"}, []string{"x"}},
	}
	for idx, tt := range tests {
		q, tr := newTestQueue(t, tt.in...)
		require.NoError(t, q.DeleteDup(), "case %d", idx)
		require.NoError(t, q.Check(), "case %d", idx)
		assert.Equal(t, tt.expect, q.Values(), "case %d", idx)
		assert.Equal(t, int64(1+2*len(tt.expect)), tr.Blocks(), "case %d", idx)
		expectFreed(t, q, tr)
	}
}

func TestSwap(t *testing.T) {
	q, tr := newTestQueue(t, "a", "b", "c", "d", "e")
	head := q.Head()
	tr.Forbid()
	q.Swap()
	tr.Allow()
	require.NoError(t, q.Check())
	assert.Equal(t, []string{"b", "a", "d", "c", "e"}, q.Values())
	// nodes move, values are not copied
	assert.Same(t, head, q.Head().Next())
	expectFreed(t, q, tr)
}

func TestReverse(t *testing.T) {
	values := []string{"a", "b", "c", "d"}
	q, tr := newTestQueue(t, values...)
	tr.Forbid()
	q.Reverse()
	tr.Allow()
	require.NoError(t, q.Check())
	assert.Equal(t, []string{"d", "c", "b", "a"}, q.Values())

	q.Reverse()
	assert.Equal(t, values, q.Values())
	expectFreed(t, q, tr)

	empty, tr := newTestQueue(t)
	empty.Reverse()
	require.NoError(t, empty.Check())
	assert.Equal(t, 0, empty.Size())
	expectFreed(t, empty, tr)
}

func TestSort(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	values := make([]string, 0, 2000)
	for i := 0; i < cap(values); i++ {
		values = append(values, randomString(r, 1+r.Intn(6)))
	}
	q, tr := newTestQueue(t, values...)
	blocks := tr.Blocks()

	tr.Forbid()
	q.Sort()
	tr.Allow()
	require.NoError(t, q.Check())
	assert.Equal(t, blocks, tr.Blocks())
	assert.True(t, q.Sorted())

	want := slices.Clone(values)
	slices.Sort(want)
	assert.Equal(t, want, q.Values())

	q.Sort()
	assert.Equal(t, want, q.Values())
	expectFreed(t, q, tr)
}

func TestSortThenDeleteDup(t *testing.T) {
	q, tr := newTestQueue(t, "c", "a", "b", "a", "d", "c")
	q.Sort()
	require.NoError(t, q.DeleteDup())
	assert.Equal(t, []string{"b", "d"}, q.Values())
	expectFreed(t, q, tr)
}

func TestRandomOperationsKeepInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	q, tr := newTestQueue(t)
	model := make([]string, 0)
	for i := 0; i < 3000; i++ {
		switch op := r.Intn(9); op {
		case 0:
			s := randomString(r, 3)
			require.NoError(t, q.InsertHead(s))
			model = append([]string{s}, model...)
		case 1:
			s := randomString(r, 3)
			require.NoError(t, q.InsertTail(s))
			model = append(model, s)
		case 2:
			e := q.RemoveHead(nil)
			if len(model) == 0 {
				assert.Nil(t, e)
				break
			}
			assert.Equal(t, model[0], e.Value)
			model = model[1:]
			e.Release()
		case 3:
			e := q.RemoveTail(nil)
			if len(model) == 0 {
				assert.Nil(t, e)
				break
			}
			assert.Equal(t, model[len(model)-1], e.Value)
			model = model[:len(model)-1]
			e.Release()
		case 4:
			q.Reverse()
			slices.Reverse(model)
		case 5:
			q.Swap()
			for j := 0; j+1 < len(model); j += 2 {
				model[j], model[j+1] = model[j+1], model[j]
			}
		case 6:
			q.Sort()
			slices.Sort(model)
		case 7:
			if len(model) > 0 {
				require.NoError(t, q.DeleteMid())
				model = slices.Delete(model, len(model)/2, len(model)/2+1)
			}
		case 8:
			assert.Equal(t, len(model), q.Size())
		}
		require.NoError(t, q.Check(), "step %d", i)
	}
	assert.Equal(t, model, q.Values())
	expectFreed(t, q, tr)
}

func randomString(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.Intn(4))
	}
	return string(b)
}
