package common

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrTimeLimit = errors.New("time limit exceeded")

	_TimerPool sync.Pool
)

func BorrowTimer(d time.Duration) *time.Timer {
	x := _TimerPool.Get()
	if x == nil {
		return time.NewTimer(d)
	}
	t := x.(*time.Timer)
	t.Reset(d)
	return t
}

// ReturnTimer stops t, drains a pending fire and pools it.
func ReturnTimer(t *time.Timer) {
	if !t.Stop() && len(t.C) != 0 {
		<-t.C
	}
	_TimerPool.Put(t)
}

// RunLimited runs fn and waits at most limit for it. A panic inside fn is
// returned as an error. On ErrTimeLimit fn may still be running, so the
// caller must not touch anything fn uses. A limit <= 0 waits forever.
func RunLimited(limit time.Duration, fn func()) error {
	done := make(chan any, 1)
	go func() {
		defer func() {
			done <- recover()
		}()
		fn()
	}()
	if limit <= 0 {
		return panicErr(<-done)
	}
	t := BorrowTimer(limit)
	defer ReturnTimer(t)
	select {
	case r := <-done:
		return panicErr(r)
	case <-t.C:
		return errors.Wrapf(ErrTimeLimit, "after %v", limit)
	}
}

func panicErr(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Newf("panic: %v", r)
}
