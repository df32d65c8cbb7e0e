package manager

import (
	"sync"

	"github.com/rs/zerolog"
)

// task is one unit of lifecycle work the pool executes: spawning an agent,
// stopping one, or applying a restart. It is a plain closure rather than a
// typed job registry (unlike the teacher's queue.WorkerPool) because the
// manager's task set is small, fixed, and entirely in-process.
type task func()

// workerPool runs queued tasks across a bounded number of goroutines,
// capping how many agents can be mid-spawn at once (max_parallel_spawns),
// following the same fixed-worker-count, panic-recovering shape as the
// teacher's queue.WorkerPool.
type workerPool struct {
	mu      sync.Mutex
	tasks   chan task
	stop    chan struct{}
	wg      sync.WaitGroup
	workers int
	started bool
	log     zerolog.Logger
}

// newWorkerPool creates a workerPool with the given worker count and queue
// depth. A workers value <= 0 is treated as 1.
func newWorkerPool(workers, queueDepth int, log zerolog.Logger) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers * 4
	}
	return &workerPool{
		tasks:   make(chan task, queueDepth),
		stop:    make(chan struct{}),
		workers: workers,
		log:     log.With().Str("component", "manager_worker_pool").Logger(),
	}
}

// Start launches the pool's worker goroutines. Calling Start twice without
// an intervening Stop is a no-op.
func (p *workerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop signals every worker to exit once the queue drains and blocks until
// they do.
func (p *workerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit enqueues t for execution. It blocks if the queue is full, applying
// natural backpressure rather than growing unbounded.
func (p *workerPool) Submit(t task) {
	p.tasks <- t
}

func (p *workerPool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			for {
				select {
				case t := <-p.tasks:
					p.execute(id, t)
				default:
					return
				}
			}
		case t := <-p.tasks:
			p.execute(id, t)
		}
	}
}

func (p *workerPool) execute(id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker_id", id).Interface("panic", r).Msg("manager task panicked")
		}
	}()
	t()
}
