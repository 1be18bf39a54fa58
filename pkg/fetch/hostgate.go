package fetch

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/queue"
)

// Submitter accepts tasks for execution without blocking the caller.
type Submitter interface {
	Submit(task *queue.Task) error
}

// hostState tracks a single host's admitted downloads and its FIFO backlog.
type hostState struct {
	mu       sync.Mutex
	inFlight int           // Tasks holding a slot: submitted to the pool and not yet released
	pending  []*queue.Task // Waiting for a slot, oldest first
}

// HostGate caps concurrent downloads per host. Tasks beyond the cap wait in the host's own
// queue rather than occupying the shared download pool.
//
// A task that holds a slot must call Release exactly once when it finishes. Its Reject hook
// runs if the pool drops it, and must Release as well, since the slot is handed to it.
type HostGate struct {
	mu      sync.Mutex // Guards the hosts map only
	hosts   map[string]*hostState
	perHost int
	pool    Submitter
	log     *logrus.Entry
}

// NewHostGate creates a gate submitting admitted tasks to pool.
func NewHostGate(perHost int, pool Submitter, log *logrus.Entry) *HostGate {
	if perHost <= 0 {
		perHost = 1
		log.Warnf("per_host invalid or zero, defaulting to %d", perHost)
	}
	return &HostGate{
		hosts:   make(map[string]*hostState),
		perHost: perHost,
		pool:    pool,
		log:     log,
	}
}

// state gets or lazily creates a host's entry
func (g *HostGate) state(host string) *hostState {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, exists := g.hosts[host]
	if !exists {
		h = &hostState{}
		g.hosts[host] = h
		g.log.WithFields(logrus.Fields{"host": host, "limit": g.perHost}).Debug("Created new host gate entry")
	}
	return h
}

func (g *HostGate) lookup(host string) (*hostState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, exists := g.hosts[host]
	return h, exists
}

// Admit submits the task if the host has a free slot, otherwise queues it behind the host's
// earlier tasks. If the pool refuses the task the slot is rolled back and the error returned.
func (g *HostGate) Admit(host string, task *queue.Task) error {
	h := g.state(host)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight < g.perHost {
		h.inFlight++
		if err := g.pool.Submit(task); err != nil {
			h.inFlight--
			return err
		}
		return nil
	}

	h.pending = append(h.pending, task)
	g.log.WithFields(logrus.Fields{"host": host, "queued": len(h.pending)}).Debugf("Host at capacity, queued %s", task.Name)
	return nil
}

// Release frees the caller's slot. If tasks are waiting for this host, the slot passes to
// the oldest one instead.
func (g *HostGate) Release(host string) {
	h, exists := g.lookup(host)
	if !exists {
		g.log.Errorf("hostgate: Release called for unknown host: %s", host)
		return
	}

	h.mu.Lock()
	if len(h.pending) == 0 {
		if h.inFlight <= 0 {
			h.mu.Unlock()
			g.log.Errorf("hostgate: Release without matching Admit for host: %s", host)
			return
		}
		h.inFlight--
		h.mu.Unlock()
		return
	}

	next := h.pending[0]
	h.pending[0] = nil
	h.pending = h.pending[1:]
	err := g.pool.Submit(next)
	h.mu.Unlock()

	if err != nil {
		// The slot now belongs to next; its Reject hook gives it back
		g.log.WithField("host", host).Debugf("Dropping queued task %s: %v", next.Name, err)
		if next.Reject != nil {
			next.Reject(err)
		} else {
			g.Release(host)
		}
	}
}

// InFlight returns the number of slots currently held for host
func (g *HostGate) InFlight(host string) int {
	h, exists := g.lookup(host)
	if !exists {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inFlight
}

// Queued returns the number of tasks waiting for a slot on host
func (g *HostGate) Queued(host string) int {
	h, exists := g.lookup(host)
	if !exists {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Hosts returns every host seen so far, sorted.
func (g *HostGate) Hosts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	hosts := make([]string, 0, len(g.hosts))
	for host := range g.hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Len returns the number of tracked hosts.
func (g *HostGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.hosts)
}
