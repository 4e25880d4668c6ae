package worker

import (
	"context"
	"sync"
)

// Task is one unit of work run by a Pool
type Task[T any] func(ctx context.Context) T

// Pool runs tasks on a fixed number of goroutines. Outcomes go through a
// single aggregator goroutine, so a slow consumer never blocks the workers
// and the onDone callback is never called concurrently.
type Pool[T any] struct {
	workers int
	tasks   chan Task[T]
	out     chan T
	onDone  func(T)

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	aggDone  chan struct{}
	results  []T
	waitOnce sync.Once
	outOnce  sync.Once
}

// NewPool starts a pool of workers bound to parent. onDone may be nil.
func NewPool[T any](parent context.Context, workers int, onDone func(T)) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Pool[T]{
		workers: workers,
		tasks:   make(chan Task[T], workers*2),
		out:     make(chan T, workers*2),
		onDone:  onDone,
		ctx:     ctx,
		cancel:  cancel,
		aggDone: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	go p.aggregate()
	return p
}

func (p *Pool[T]) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			v := task(p.ctx)
			select {
			case p.out <- v:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Pool[T]) aggregate() {
	defer close(p.aggDone)
	for v := range p.out {
		if p.onDone != nil {
			p.onDone(v)
		}
		p.results = append(p.results, v)
	}
}

// Go queues a task. It returns false once the pool is cancelled and must
// not be called after Wait.
func (p *Pool[T]) Go(task Task[T]) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

// Wait waits for every queued task and returns the outcomes in completion
// order. Tasks still queued when the parent context ends are dropped.
func (p *Pool[T]) Wait() []T {
	p.waitOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
		p.closeOut()
		<-p.aggDone
		p.cancel()
	})
	return p.results
}

// Stop cancels running tasks and waits for the workers to exit
func (p *Pool[T]) Stop() {
	p.cancel()
	p.wg.Wait()
	p.closeOut()
	<-p.aggDone
}

func (p *Pool[T]) closeOut() {
	p.outOnce.Do(func() { close(p.out) })
}
