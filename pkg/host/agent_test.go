package host

import (
	"context"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/facility"
	"github.com/paravirt/cryptodev/pkg/vq"
)

func Test(t *testing.T) { TestingT(t) }

type TestSuite struct {
	queue  *vq.Queue
	agent  *Agent
	cancel context.CancelFunc
}

var _ = Suite(&TestSuite{})

func (s *TestSuite) SetUpTest(c *C) {
	s.queue = vq.New(16)
	s.agent = New(s.queue, facility.New())
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.agent.Run(ctx)
}

func (s *TestSuite) TearDownTest(c *C) {
	s.cancel()
	s.queue.Close()
}

func (s *TestSuite) exchange(c *C, chain *vq.Chain) *vq.Chain {
	receipt, err := s.queue.Submit(chain)
	c.Assert(err, IsNil)
	s.queue.Notify()
	done, err := receipt.Wait(2 * time.Second)
	c.Assert(err, IsNil)
	return done
}

func (s *TestSuite) status(c *C, chain *vq.Chain) int32 {
	seg, err := chain.In(chain.Ins() - 1)
	c.Assert(err, IsNil)
	code, err := cryptodev.GetInt32(seg)
	c.Assert(err, IsNil)
	return code
}

func (s *TestSuite) open(c *C) int32 {
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallOpen)).
		AddIn(cryptodev.HandleSize)
	done := s.exchange(c, chain)
	seg, err := done.In(0)
	c.Assert(err, IsNil)
	fd, err := cryptodev.GetInt32(seg)
	c.Assert(err, IsNil)
	c.Assert(fd >= 0, Equals, true)
	return fd
}

func (s *TestSuite) TestOpenTracksConnection(c *C) {
	fd := s.open(c)
	conns := s.agent.Connections()
	c.Assert(conns, HasLen, 1)
	c.Assert(conns[0].Handle, Equals, fd)

	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallClose)).
		AddOut(cryptodev.PutInt32(fd))
	s.exchange(c, chain)
	c.Assert(s.agent.Connections(), HasLen, 0)
}

func (s *TestSuite) TestChainWithTooFewSegmentsRejected(c *C) {
	// IOCTL envelope with neither handle nor command segment.
	chain := new(vq.Chain).AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl))
	s.exchange(c, chain)

	stats := s.agent.Stats()
	c.Assert(stats.Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestShortEnvelopeRejected(c *C) {
	chain := new(vq.Chain).AddOut([]byte{1, 2}).AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusInvalid)
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestUnknownSyscallRejected(c *C) {
	chain := new(vq.Chain).AddOut(cryptodev.PutUint32(77)).AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusInvalid)
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestCreateSessionMissingKeySegment(c *C) {
	fd := s.open(c)
	record := &cryptodev.Session{Cipher: cryptodev.CipherAESCBC, KeyLen: 16}
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl)).
		AddOut(cryptodev.PutInt32(fd)).
		AddOut(cryptodev.PutUint32(cryptodev.CmdCreateSession)).
		AddOut(cryptodev.EncodeSession(record)).
		AddIn(cryptodev.SessionSize).
		AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusInvalid)
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestDeclaredKeyLengthBeyondSegmentRejected(c *C) {
	fd := s.open(c)
	// KeyLen claims more bytes than the key segment actually carries.
	record := &cryptodev.Session{Cipher: cryptodev.CipherAESCBC, KeyLen: 32}
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl)).
		AddOut(cryptodev.PutInt32(fd)).
		AddOut(cryptodev.PutUint32(cryptodev.CmdCreateSession)).
		AddOut(cryptodev.EncodeSession(record)).
		AddOut(make([]byte, 16)).
		AddIn(cryptodev.SessionSize).
		AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusInvalid)
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestCryptLengthBeyondSegmentsRejected(c *C) {
	fd := s.open(c)
	desc := &cryptodev.CryptDesc{Session: 1, Op: cryptodev.OpEncrypt, Len: 64, IVLen: cryptodev.IVSize}
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl)).
		AddOut(cryptodev.PutInt32(fd)).
		AddOut(cryptodev.PutUint32(cryptodev.CmdCryptOperate)).
		AddOut(cryptodev.EncodeCryptDesc(desc)).
		AddOut(make([]byte, 16)). // src smaller than declared Len
		AddOut(make([]byte, cryptodev.IVSize)).
		AddIn(64).
		AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusInvalid)
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(1))
}

func (s *TestSuite) TestUnknownIoctlCommand(c *C) {
	fd := s.open(c)
	chain := new(vq.Chain).
		AddOut(cryptodev.PutUint32(cryptodev.SyscallIoctl)).
		AddOut(cryptodev.PutInt32(fd)).
		AddOut(cryptodev.PutUint32(0xdead)).
		AddIn(cryptodev.StatusSize)
	done := s.exchange(c, chain)
	c.Assert(s.status(c, done), Equals, cryptodev.StatusNotSupported)
	// Not a structural defect, just an unsupported command.
	c.Assert(s.agent.Stats().Malformed, Equals, uint64(0))
}
