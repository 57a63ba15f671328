package router

import (
	"sync/atomic"
)

// Sequence hands out request ids. The server owns one and passes it to
// HandleRequest; ids start at 1.
type Sequence struct {
	value atomic.Uint64
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Next() uint64 {
	return s.value.Add(1)
}

func (s *Sequence) Current() uint64 {
	return s.value.Load()
}
