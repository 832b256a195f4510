package host

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/types"
	"github.com/paravirt/cryptodev/pkg/vq"
)

// ErrMalformedChain marks a chain that failed structural validation:
// too few segments or segments smaller than the records they must
// carry. Such chains are answered with an error status where possible
// and counted, never indexed out of bounds.
var ErrMalformedChain = errors.New("malformed descriptor chain")

// Agent is the host-side dispatcher. It wakes on queue notifications,
// processes one chain at a time to completion (including the underlying
// facility call) and releases it back to the submitter.
type Agent struct {
	queue    *vq.Queue
	facility types.Facility

	mu          sync.Mutex
	connections map[int32]time.Time
	processed   uint64
	malformed   uint64
}

// New creates an agent serving one queue against one facility.
func New(queue *vq.Queue, facility types.Facility) *Agent {
	return &Agent{
		queue:       queue,
		facility:    facility,
		connections: map[int32]time.Time{},
	}
}

// Run dispatches chains until the context is canceled or the queue is
// closed. The loop blocks on the queue's kick channel between polls
// rather than spinning.
func (a *Agent) Run(ctx context.Context) error {
	for {
		for {
			chain := a.queue.PollForWork()
			if chain == nil {
				break
			}
			if err := a.handle(chain); err != nil {
				logrus.WithError(err).Warn("Rejected descriptor chain")
			}
			a.queue.Complete(chain)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.queue.Done():
			return nil
		case <-a.queue.Kick():
		}
	}
}

// Stats is a point-in-time snapshot of the agent's counters.
type Stats struct {
	Processed   uint64 `json:"processed"`
	Malformed   uint64 `json:"malformed"`
	Connections int    `json:"connections"`
	QueueDepth  int    `json:"queueDepth"`
}

// Stats snapshots the dispatch counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Processed:   a.processed,
		Malformed:   a.malformed,
		Connections: len(a.connections),
		QueueDepth:  a.queue.Depth(),
	}
}

// Connection describes one live guest connection handle.
type Connection struct {
	Handle int32     `json:"handle"`
	Opened time.Time `json:"opened"`
}

// Connections lists the live connection handles.
func (a *Agent) Connections() []Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	conns := make([]Connection, 0, len(a.connections))
	for fd, opened := range a.connections {
		conns = append(conns, Connection{Handle: fd, Opened: opened})
	}
	return conns
}

func (a *Agent) trackOpen(fd int32) {
	a.mu.Lock()
	a.connections[fd] = time.Now()
	a.mu.Unlock()
}

func (a *Agent) trackClose(fd int32) {
	a.mu.Lock()
	delete(a.connections, fd)
	a.mu.Unlock()
}

func (a *Agent) countProcessed() {
	a.mu.Lock()
	a.processed++
	a.mu.Unlock()
}

func (a *Agent) countMalformed() {
	a.mu.Lock()
	a.malformed++
	a.mu.Unlock()
}
