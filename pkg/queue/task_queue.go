package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is a unit of work waiting for a worker slot
type Task struct {
	Name     string                    // Used in logs (usually the URL the task works on)
	Priority int                       // Lower value runs first (crawl level: seed = 0)
	Run      func(ctx context.Context) // Executed on a worker; ctx is cancelled on forced shutdown
	Reject   func(err error)           // Optional; called instead of Run when the task is dropped
}

// --- Priority Queue Implementation ---

// pqItem represents an item in the heap
type pqItem struct {
	task     *Task
	priority int
	seq      uint64 // Insertion order; keeps equal priorities FIFO
	index    int    // The index of the item in the heap (required by heap interface)
}

// priorityQueue implements heap.Interface
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// TaskQueue is an unbounded, blocking, thread-safe task backlog.
// Add never blocks, so tasks may be queued from inside running tasks and while holding other locks.
type TaskQueue struct {
	pq      priorityQueue
	mu      sync.Mutex
	cond    *sync.Cond // Signalled when an item is added or the queue is closed
	closed  bool
	nextSeq uint64
	log     *logrus.Entry
}

// NewTaskQueue creates an empty queue
func NewTaskQueue(logger *logrus.Entry) *TaskQueue {
	q := &TaskQueue{log: logger}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.pq)
	return q
}

// Add pushes a task onto the queue. It returns false if the queue is closed.
func (q *TaskQueue) Add(task *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Debugf("Attempted to add task to closed queue: %s", task.Name)
		return false
	}

	heap.Push(&q.pq, &pqItem{task: task, priority: task.Priority, seq: q.nextSeq})
	q.nextSeq++
	q.cond.Signal()
	return true
}

// Pop removes and returns the highest priority task, blocking while the queue is empty and open.
// Returns nil, false once the queue is closed and empty.
func (q *TaskQueue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq) == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}

	item := heap.Pop(&q.pq).(*pqItem)
	return item.task, true
}

// Close stops the queue from accepting tasks. Tasks already queued can still be popped.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast() // Wake every blocked Pop so it can observe the closed state
	}
}

// Drain removes every queued task and returns them in priority order.
func (q *TaskQueue) Drain() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]*Task, 0, len(q.pq))
	for len(q.pq) > 0 {
		drained = append(drained, heap.Pop(&q.pq).(*pqItem).task)
	}
	return drained
}

// Len returns the current number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
