// Package alloc accounts for every block a queue owns and can be told to
// refuse allocations, so callers can verify there are no leaks and that
// failure paths roll back.
package alloc

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/Qthai16/lab0-queue/utils"
)

type (
	// Allocator grants or refuses blocks. Malloc returning false means the
	// allocation failed and nothing has to be freed.
	Allocator interface {
		Malloc(size int) bool
		Free(size int)
	}

	Config struct {
		FailProbability int `toml:"fail-probability"` // percent of Malloc calls refused, 0..100
		Seed            int64
	}

	Tracker struct {
		blocks     atomic.Int64
		bytes      atomic.Int64
		failures   atomic.Int64
		violations atomic.Int64
		failPct    atomic.Int32
		failNext   atomic.Int32
		forbidden  atomic.Bool

		mu  sync.Mutex
		rnd *rand.Rand
	}
)

var (
	// Default is used by queues built without an explicit allocator.
	Default = NewTracker(Config{})

	_ Allocator = (*Tracker)(nil)
)

func NewTracker(conf Config) *Tracker {
	seed := conf.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	t := &Tracker{rnd: rand.New(rand.NewSource(seed))}
	t.SetFailProbability(conf.FailProbability)
	return t
}

// SetFailProbability clamps pct into 0..100.
func (t *Tracker) SetFailProbability(pct int) {
	pct = max(0, min(pct, 100))
	t.failPct.Store(int32(pct))
}

func (t *Tracker) FailProbability() int {
	return int(t.failPct.Load())
}

// FailNext makes the next n Malloc calls fail regardless of the probability.
func (t *Tracker) FailNext(n int) {
	t.failNext.Store(int32(max(n, 0)))
}

// Forbid makes any Malloc or Free a recorded violation until Allow is called.
// Used to check operations that must only relink existing nodes.
func (t *Tracker) Forbid() {
	t.forbidden.Store(true)
}

func (t *Tracker) Allow() {
	t.forbidden.Store(false)
}

func (t *Tracker) Malloc(size int) bool {
	if t.forbidden.Load() {
		t.violations.Add(1)
		utils.LogWarn("[alloc] malloc of %d bytes while allocation is forbidden", size)
	}
	if t.shouldFail() {
		t.failures.Add(1)
		return false
	}
	t.blocks.Add(1)
	t.bytes.Add(int64(size))
	return true
}

func (t *Tracker) Free(size int) {
	if t.forbidden.Load() {
		t.violations.Add(1)
		utils.LogWarn("[alloc] free of %d bytes while allocation is forbidden", size)
	}
	if t.blocks.Add(-1) < 0 {
		t.blocks.Add(1)
		t.violations.Add(1)
		utils.LogWarn("[alloc] free of %d bytes without a live block", size)
		return
	}
	t.bytes.Add(-int64(size))
}

func (t *Tracker) shouldFail() bool {
	for {
		n := t.failNext.Load()
		if n <= 0 {
			break
		}
		if t.failNext.CompareAndSwap(n, n-1) {
			return true
		}
	}
	pct := t.failPct.Load()
	if pct == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rnd.Int31n(100) < pct
}

// Blocks is the number of live blocks.
func (t *Tracker) Blocks() int64 { return t.blocks.Load() }

// Bytes is the size of all live blocks.
func (t *Tracker) Bytes() int64 { return t.bytes.Load() }

// Failures counts refused Malloc calls.
func (t *Tracker) Failures() int64 { return t.failures.Load() }

// Violations counts frees without a live block and accesses while forbidden.
func (t *Tracker) Violations() int64 { return t.violations.Load() }
