package pipeline

import "context"

// semaphore bounds concurrent transcoder-backed jobs. A nil semaphore
// never blocks.
type semaphore struct {
	ch chan struct{}
}

// newSemaphore returns nil for capacity <= 0 (unlimited).
func newSemaphore(capacity int) *semaphore {
	if capacity <= 0 {
		return nil
	}
	return &semaphore{
		ch: make(chan struct{}, capacity),
	}
}

func (s *semaphore) acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	if s == nil {
		return
	}
	<-s.ch
}
