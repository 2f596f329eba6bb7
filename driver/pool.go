package driver

import (
	"context"
	"fmt"
	"sync"
)

// walkerPool is a fixed set of worker goroutines shared by every step of a
// run. Submission is bounded by the pool and aborts when the caller's
// context is cancelled, so a stuck step cannot pile up goroutines.
type walkerPool struct {
	tasks     chan func()
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newWalkerPool(workers int) *walkerPool {
	p := &walkerPool{
		tasks:  make(chan func()),
		closed: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.closed:
					return
				case f := <-p.tasks:
					f()
				}
			}
		}()
	}
	return p
}

// Submit hands one task to the pool. It blocks until a worker picks the
// task up, the context is cancelled, or the pool is closed.
func (p *walkerPool) Submit(ctx context.Context, f func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return fmt.Errorf("pool is closed")
	case p.tasks <- f:
		return nil
	}
}

// Close stops the workers. No Submit may be in flight.
func (p *walkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}
