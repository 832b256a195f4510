package guest

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/vq"
)

// Device is the guest-side agent for one paravirtualized crypto device.
// Every entry point performs a full submit-then-block-until-complete
// exchange on the queue and is stateless between calls apart from the
// open-file records it hands out.
//
// Submissions through one device serialize under a single lock: two
// goroutines calling concurrently through the same device complete one
// at a time even though their requests are independent. The per-chain
// receipt underneath would support finer-grained locking without
// changing the wire contract.
type Device struct {
	queue *vq.Queue

	// Timeout bounds each exchange. Zero blocks until the host
	// responds, however long that takes.
	Timeout time.Duration

	mu sync.Mutex
}

// NewDevice binds a guest agent to a queue.
func NewDevice(queue *vq.Queue) *Device {
	return &Device{queue: queue}
}

// exchange submits one chain, kicks the host and blocks until that
// chain's own completion.
func (d *Device) exchange(chain *vq.Chain) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	receipt, err := d.queue.Submit(chain)
	if err != nil {
		return errors.Wrap(err, "failed to submit descriptor chain")
	}
	d.queue.Notify()

	if _, err := receipt.Wait(d.Timeout); err != nil {
		return errors.Wrap(err, "failed waiting for chain completion")
	}
	return nil
}

// OpenFile is the per-open record. It owns the host connection handle
// from a successful open until exactly one close retires it.
type OpenFile struct {
	dev    *Device
	fd     int32
	mu     sync.Mutex
	closed bool
}

// Open performs the OPEN exchange and returns a new open-file record
// owning the host-assigned connection handle.
func (d *Device) Open() (*OpenFile, error) {
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallOpen)).
		AddIn(cryptodev.HandleSize)

	if err := d.exchange(chain); err != nil {
		return nil, err
	}

	seg, err := chain.In(0)
	if err != nil {
		return nil, err
	}
	fd, err := cryptodev.GetInt32(seg)
	if err != nil {
		return nil, err
	}
	if fd < 0 {
		return nil, ErrConnectionRefused
	}
	logrus.Debugf("guest: opened connection handle %d", fd)
	return &OpenFile{dev: d, fd: fd}, nil
}

// Close performs the CLOSE exchange and retires the record. Host-side
// close failures are not surfaced; teardown is best effort. Only
// channel-level failures (the close never reached the host) are
// reported.
func (f *OpenFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.closed = true

	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallClose)).
		AddOut(cryptodev.PutInt32(f.fd))

	if err := f.dev.exchange(chain); err != nil {
		return errors.Wrapf(err, "failed to close connection handle %d", f.fd)
	}
	return nil
}

// Handle exposes the connection handle for inspection and tests.
func (f *OpenFile) Handle() (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return -1, ErrClosed
	}
	return f.fd, nil
}

// ioctlChain builds the segments common to every ioctl: envelope,
// connection handle and command code.
func ioctlChain(fd int32, cmd uint32) *vq.Chain {
	return new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl)).
		AddOut(cryptodev.PutInt32(fd)).
		AddOut(cryptodev.PutUint32(cmd))
}

// status reads the trailing IN status segment of a completed chain.
func status(chain *vq.Chain) (int32, error) {
	seg, err := chain.In(chain.Ins() - 1)
	if err != nil {
		return 0, err
	}
	return cryptodev.GetInt32(seg)
}
