package workers

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/web-crawler/pkg/queue"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// Pool runs submitted tasks on at most `size` goroutines at a time.
// Submit never blocks: overflow waits in an unbounded priority queue until a slot frees up.
type Pool struct {
	name  string
	size  int64
	queue *queue.TaskQueue
	sem   *semaphore.Weighted // One permit per running task
	log   *logrus.Entry

	ctx    context.Context    // Passed to every running task; cancelled by ShutdownNow
	cancel context.CancelFunc

	running    atomic.Int64
	wg         sync.WaitGroup // Running task goroutines
	terminated chan struct{}  // Closed once the dispatcher has exited and every task has returned
}

// NewPool creates a pool and starts its dispatcher.
func NewPool(name string, size int, baseLogger *logrus.Entry) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: pool '%s' size must be >= 1, got %d", utils.ErrConfigValidation, name, size)
	}
	logger := baseLogger.WithFields(logrus.Fields{"component": "pool", "pool": name})
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		name:       name,
		size:       int64(size),
		queue:      queue.NewTaskQueue(logger),
		sem:        semaphore.NewWeighted(int64(size)),
		log:        logger,
		ctx:        ctx,
		cancel:     cancel,
		terminated: make(chan struct{}),
	}
	go p.dispatch()
	logger.Debugf("Pool started with %d worker slot(s)", size)
	return p, nil
}

// Name returns the pool's name
func (p *Pool) Name() string { return p.name }

// Size returns the maximum number of concurrently running tasks
func (p *Pool) Size() int { return int(p.size) }

// Submit queues a task for execution. Returns ErrPoolClosed once shutdown has begun.
func (p *Pool) Submit(task *queue.Task) error {
	if !p.queue.Add(task) {
		return fmt.Errorf("%w: %s pool rejected '%s'", utils.ErrPoolClosed, p.name, task.Name)
	}
	return nil
}

// dispatch pops tasks in priority order and starts each one as soon as a slot is free.
func (p *Pool) dispatch() {
	defer func() {
		p.wg.Wait()
		close(p.terminated)
		p.log.Debug("Pool terminated")
	}()

	for {
		task, ok := p.queue.Pop()
		if !ok {
			return // Closed and empty
		}

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.reject(task, fmt.Errorf("%w: %s pool stopped before '%s' ran", utils.ErrPoolClosed, p.name, task.Name))
			continue
		}
		// Acquire may succeed on an already cancelled context
		if p.ctx.Err() != nil {
			p.sem.Release(1)
			p.reject(task, fmt.Errorf("%w: %s pool stopped before '%s' ran", utils.ErrPoolClosed, p.name, task.Name))
			continue
		}

		p.running.Add(1)
		p.wg.Add(1)
		go p.run(task)
	}
}

// run executes a single task, recovering panics so the slot is always returned.
func (p *Pool) run(task *queue.Task) {
	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"task":        task.Name,
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in pool task")
		}
		p.running.Add(-1)
		p.sem.Release(1)
		p.wg.Done()
	}()

	task.Run(p.ctx)
}

// reject hands a dropped task its Reject hook. Panics in the hook are logged, not propagated.
func (p *Pool) reject(task *queue.Task, err error) {
	if task.Reject == nil {
		p.log.Warnf("Dropped task '%s' without reject hook: %v", task.Name, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"task":        task.Name,
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in task reject hook")
		}
	}()
	task.Reject(err)
}

// Shutdown stops accepting tasks. Queued and running tasks still complete.
func (p *Pool) Shutdown() {
	p.queue.Close()
	p.log.Debug("Pool shutdown requested")
}

// ShutdownNow stops accepting tasks, cancels the context seen by running tasks,
// and drops everything still queued. Returns the number of tasks dropped.
func (p *Pool) ShutdownNow() int {
	p.cancel()
	p.queue.Close()

	dropped := p.queue.Drain()
	for _, task := range dropped {
		p.reject(task, fmt.Errorf("%w: %s pool forced shutdown dropped '%s'", utils.ErrPoolClosed, p.name, task.Name))
	}
	if len(dropped) > 0 {
		p.log.Warnf("Forced shutdown dropped %d queued task(s)", len(dropped))
	}
	return len(dropped)
}

// AwaitTermination blocks until the pool has fully stopped or the timeout elapses.
// Only meaningful after Shutdown or ShutdownNow.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.terminated:
		return true
	case <-timer.C:
		return false
	}
}

// Terminated is closed once the pool has stopped and no task is running
func (p *Pool) Terminated() <-chan struct{} { return p.terminated }

// Running returns the number of tasks currently executing
func (p *Pool) Running() int64 { return p.running.Load() }

// Queued returns the number of tasks waiting for a slot
func (p *Pool) Queued() int { return p.queue.Len() }
