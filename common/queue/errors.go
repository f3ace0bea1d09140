package queue

import "github.com/cockroachdb/errors"

var (
	ErrNilQueue = errors.New("queue is nil or already freed")
	ErrNoMemory = errors.New("allocation failed")
	ErrEmpty    = errors.New("queue is empty")
)
