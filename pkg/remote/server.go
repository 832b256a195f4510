package remote

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/vq"
)

const submitRetries = 20

// Server bridges connections onto a host-side queue. Each request
// frame is rebuilt into a chain, submitted, and its completion written
// back as a response frame. The host agent consuming the queue never
// knows whether a chain arrived locally or over the wire.
type Server struct {
	queue      *vq.Queue
	maxSegment uint32
}

// NewServer creates a bridge feeding the given queue. maxSegment caps
// per-segment sizes on the wire; 0 picks DefaultMaxSegment.
func NewServer(queue *vq.Queue, maxSegment uint32) *Server {
	if maxSegment == 0 {
		maxSegment = DefaultMaxSegment
	}
	return &Server{queue: queue, maxSegment: maxSegment}
}

// Serve accepts connections until the listener closes, handling each
// on its own goroutine. Temporary accept errors back off and retry.
func (s *Server) Serve(ln net.Listener) error {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = s.sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		go func() {
			if err := s.Handle(conn); err != nil && err != io.EOF {
				logrus.WithError(err).Error("Connection handler failed")
			}
		}()
	}
}

func (s *Server) sleep(tempDelay time.Duration) time.Duration {
	if tempDelay == 0 {
		tempDelay = 5 * time.Millisecond
	} else {
		tempDelay *= 2
	}
	if max := 1 * time.Second; tempDelay > max {
		tempDelay = max
	}
	time.Sleep(tempDelay)
	return tempDelay
}

// Handle serves one connection until EOF or error.
func (s *Server) Handle(conn net.Conn) error {
	wire := NewWire(conn)
	defer func() {
		if err := wire.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close connection")
		}
	}()

	logrus.Infof("New crypto device connection from %v", conn.RemoteAddr())
	for {
		seq, chain, err := wire.ReadRequest(s.maxSegment)
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return errors.Wrap(err, "failed to read request frame")
		}

		receipt, err := s.submit(chain)
		if err != nil {
			return errors.Wrap(err, "failed to submit chain for remote peer")
		}
		s.queue.Notify()

		if _, err := receipt.Wait(0); err != nil {
			return errors.Wrap(err, "failed waiting for remote chain completion")
		}
		if err := wire.WriteResponse(seq, chain); err != nil {
			return errors.Wrap(err, "failed to write response frame")
		}
	}
}

// submit retries with backoff while the ring is momentarily full; a
// persistently full ring fails the connection rather than stalling the
// read loop forever.
func (s *Server) submit(chain *vq.Chain) (*vq.Receipt, error) {
	var tempDelay time.Duration
	for retry := 0; ; retry++ {
		receipt, err := s.queue.Submit(chain)
		if err == nil {
			return receipt, nil
		}
		if err != vq.ErrChannelFull || retry >= submitRetries {
			return nil, err
		}
		tempDelay = s.sleep(tempDelay)
	}
}
