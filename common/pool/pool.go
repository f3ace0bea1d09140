package pool

import (
	"sync"
	"sync/atomic"
)

type Config[T any] struct {
	Generate func() *T // constructor, new(T) is used if nil
	Reset    func(*T)  // called on every object handed out by Get
	Cleanup  func(*T)  // called before the object goes back to the pool
}

// Pool is a typed sync.Pool with reset/cleanup hooks and a count of
// objects it had to construct.
type Pool[T any] struct {
	pool    sync.Pool
	conf    Config[T]
	created atomic.Int64
}

func New[T any](conf Config[T]) *Pool[T] {
	if conf.Generate == nil {
		conf.Generate = func() *T {
			return new(T)
		}
	}
	p := &Pool[T]{conf: conf}
	p.pool.New = func() any {
		p.created.Add(1)
		return p.conf.Generate()
	}
	return p
}

func (p *Pool[T]) Get() *T {
	r := p.pool.Get().(*T)
	if p.conf.Reset != nil {
		p.conf.Reset(r)
	}
	return r
}

// Put returns *r to the pool and clears the caller's reference.
func (p *Pool[T]) Put(r **T) {
	if r == nil || *r == nil {
		return
	}
	if p.conf.Cleanup != nil {
		p.conf.Cleanup(*r)
	}
	p.pool.Put(*r)
	*r = nil
}

// Created is the number of objects built by Generate so far.
func (p *Pool[T]) Created() int64 {
	return p.created.Load()
}
