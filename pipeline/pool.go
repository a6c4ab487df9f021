package pipeline

import (
	"context"
	"sync"
)

// Pool recycles span buffers for a block. At most limit buffers are handed
// out at once, which bounds memory the way a ring of fixed depth would;
// Get blocks until a buffer comes back. Free buffers too small for a
// request stay in the pool for later sequences.
type Pool[T any] struct {
	mu   sync.Mutex
	free []T
	all  []T

	limit int
	slots chan struct{}

	alloc   func(n int) (T, error)
	size    func(T) int
	destroy func(T) error
}

// NewPool returns a pool. destroy may be nil.
func NewPool[T any](limit int, alloc func(n int) (T, error), size func(T) int, destroy func(T) error) *Pool[T] {
	if limit < 1 {
		limit = 1
	}

	return &Pool[T]{
		limit:   limit,
		slots:   make(chan struct{}, limit),
		alloc:   alloc,
		size:    size,
		destroy: destroy,
	}
}

// Get returns a buffer holding at least n elements.
func (p *Pool[T]) Get(ctx context.Context, n int) (T, error) {
	var zero T

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.free) - 1; i >= 0; i-- {
		if v := p.free[i]; p.size(v) >= n {
			p.free = append(p.free[:i], p.free[i+1:]...)
			return v, nil
		}
	}

	v, err := p.alloc(n)
	if err != nil {
		<-p.slots
		return zero, err
	}

	p.all = append(p.all, v)
	return v, nil
}

// Put returns a buffer taken with Get.
func (p *Pool[T]) Put(v T) {
	p.mu.Lock()
	p.free = append(p.free, v)
	p.mu.Unlock()

	<-p.slots
}

// Reset marks every buffer free. Call it only when no buffer is in use,
// such as at the start of a run.
func (p *Pool[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = append(p.free[:0], p.all...)
	p.slots = make(chan struct{}, p.limit)
}

// Allocated is the number of buffers the pool owns.
func (p *Pool[T]) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.all)
}

// Close destroys every buffer the pool allocated.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	if p.destroy != nil {
		for _, v := range p.all {
			if err := p.destroy(v); err != nil && first == nil {
				first = err
			}
		}
	}

	p.free, p.all = nil, nil
	return first
}
