package remote

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/paravirt/cryptodev/pkg/vq"
)

// Client runs the guest side of the protocol against a host agent on
// the far end of a connection. It owns a local queue with the usual
// submit/kick/wait contract; a forwarder drains submitted chains onto
// the wire and a reader matches responses back to their chains by
// sequence number, so racing submitters only ever see their own
// completions.
type Client struct {
	wire  *Wire
	queue *vq.Queue

	mu       sync.Mutex
	seq      uint32
	inflight map[uint32]*vq.Chain

	closeOnce sync.Once
}

// NewClient starts a client on an established connection.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		wire:     NewWire(conn),
		queue:    vq.New(128),
		inflight: map[uint32]*vq.Chain{},
	}
	go c.forward()
	go c.read()
	return c
}

// Queue returns the local queue to bind a guest device to.
func (c *Client) Queue() *vq.Queue {
	return c.queue
}

func (c *Client) forward() {
	for {
		for {
			chain := c.queue.PollForWork()
			if chain == nil {
				break
			}
			c.mu.Lock()
			c.seq++
			seq := c.seq
			c.inflight[seq] = chain
			c.mu.Unlock()

			if err := c.wire.WriteRequest(seq, chain); err != nil {
				logrus.WithError(err).Error("Failed to write request to wire")
				c.shutdown()
				return
			}
		}

		select {
		case <-c.queue.Done():
			return
		case <-c.queue.Kick():
		}
	}
}

func (c *Client) read() {
	for {
		seq, ins, err := c.wire.ReadResponse(DefaultMaxSegment)
		if err != nil {
			c.shutdown()
			return
		}

		c.mu.Lock()
		chain, ok := c.inflight[seq]
		delete(c.inflight, seq)
		c.mu.Unlock()
		if !ok {
			logrus.Warnf("Dropping response with unknown sequence %d", seq)
			continue
		}

		for i, data := range ins {
			seg, err := chain.In(i)
			if err != nil {
				break
			}
			copy(seg, data)
		}
		c.queue.Complete(chain)
	}
}

// shutdown fails the queue so every in-flight and future waiter gets
// ErrChannelUnavailable instead of blocking forever.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.queue.Close()
		if err := c.wire.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close wire")
		}
	})
}

// Close tears the client down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.queue.Close()
		err = multierr.Append(err, c.wire.Close())
	})
	return err
}
