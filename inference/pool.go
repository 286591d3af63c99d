package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Acquire once the pool has been closed.
var ErrPoolClosed = errors.New("inference: pool closed")

// Closer is a pooled resource. Pools compare against the zero value, so
// implementations are typically pointers.
type Closer interface {
	comparable
	Close() error
}

// Pool hands out a fixed set of resources, such as ONNX sessions, to
// concurrent callers.
type Pool[S Closer] struct {
	items  chan S
	size   int
	mu     sync.Mutex
	closed bool
}

// NewPool fills a pool with size resources built by open. A size <= 0 is
// treated as 1. If any open fails, the ones already built are closed.
func NewPool[S Closer](size int, open func() (S, error)) (*Pool[S], error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool[S]{
		items: make(chan S, size),
		size:  size,
	}

	for i := 0; i < size; i++ {
		item, err := open()
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("opening pool member %d: %w", i, err)
		}
		pool.items <- item
	}

	return pool, nil
}

// Acquire takes a resource, blocking until one is free or ctx is done.
func (p *Pool[S]) Acquire(ctx context.Context) (S, error) {
	var zero S
	select {
	case item, ok := <-p.items:
		if !ok {
			return zero, ErrPoolClosed
		}
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release gives a resource back. Resources released after Close, or beyond
// the pool's capacity, are closed instead.
func (p *Pool[S]) Release(item S) {
	var zero S
	if item == zero {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = item.Close()
		return
	}

	select {
	case p.items <- item:
	default:
		_ = item.Close()
	}
}

// Close closes every idle resource. Resources still checked out are closed
// when released. Close is idempotent.
func (p *Pool[S]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.items)
	p.mu.Unlock()

	var errs []error
	for item := range p.items {
		if err := item.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *Pool[S]) Size() int {
	return p.size
}
