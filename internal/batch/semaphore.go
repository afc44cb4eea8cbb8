package batch

import "context"

// semaphore bounds how many grids of a batch hit the store at once.
// A nil semaphore is unlimited.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(n int) *semaphore {
	if n <= 0 {
		return nil
	}
	return &semaphore{ch: make(chan struct{}, n)}
}

// acquire blocks until a slot is free. It returns false if ctx ends first.
func (s *semaphore) acquire(ctx context.Context) bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *semaphore) release() {
	if s == nil {
		return
	}
	<-s.ch
}

func (s *semaphore) capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.ch)
}
