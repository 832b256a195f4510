package facility

import (
	"bytes"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/types"
)

func Test(t *testing.T) { TestingT(t) }

type TestSuite struct{}

var _ = Suite(&TestSuite{})

var testKey = []byte("0123456789abcdef")

func (s *TestSuite) TestOpenCloseLifecycle(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)
	c.Assert(fd >= 0, Equals, true)
	c.Assert(f.OpenHandles(), Equals, 1)

	c.Assert(f.Close(fd), Equals, cryptodev.StatusOK)
	c.Assert(f.OpenHandles(), Equals, 0)
	c.Assert(f.Close(fd), Equals, cryptodev.StatusBadHandle)
}

func (s *TestSuite) TestHandleNeverReused(c *C) {
	f := New()
	fd1, err := f.Open()
	c.Assert(err, IsNil)
	c.Assert(f.Close(fd1), Equals, cryptodev.StatusOK)

	fd2, err := f.Open()
	c.Assert(err, IsNil)
	c.Assert(fd2, Not(Equals), fd1)
}

func (s *TestSuite) TestSessionIdentifiersDistinct(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	seen := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		args := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
		c.Assert(f.CreateSession(fd, args), Equals, cryptodev.StatusOK)
		c.Assert(seen[args.ID], Equals, false)
		seen[args.ID] = true
	}
	c.Assert(f.LiveSessions(), Equals, 10)
}

func (s *TestSuite) TestCreateSessionErrors(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	badCipher := &types.SessionArgs{Cipher: 99, Key: testKey}
	c.Assert(f.CreateSession(fd, badCipher), Equals, cryptodev.StatusInvalid)

	badKey := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: []byte("short")}
	c.Assert(f.CreateSession(fd, badKey), Equals, cryptodev.StatusInvalid)

	badFD := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
	c.Assert(f.CreateSession(fd+100, badFD), Equals, cryptodev.StatusBadHandle)
}

func (s *TestSuite) TestDestroySession(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	args := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
	c.Assert(f.CreateSession(fd, args), Equals, cryptodev.StatusOK)

	c.Assert(f.DestroySession(fd, args.ID), Equals, cryptodev.StatusOK)
	c.Assert(f.DestroySession(fd, args.ID), Equals, cryptodev.StatusNoSession)
	c.Assert(f.DestroySession(fd+100, args.ID), Equals, cryptodev.StatusBadHandle)
}

func (s *TestSuite) TestCloseTearsDownSessions(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	args := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
	c.Assert(f.CreateSession(fd, args), Equals, cryptodev.StatusOK)
	c.Assert(f.Close(fd), Equals, cryptodev.StatusOK)
	c.Assert(f.LiveSessions(), Equals, 0)
}

func (s *TestSuite) TestCryptRoundTrip(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	args := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
	c.Assert(f.CreateSession(fd, args), Equals, cryptodev.StatusOK)

	plaintext := bytes.Repeat([]byte("deadbeef01234567"), 4)
	iv := make([]byte, cryptodev.IVSize)

	encrypted := make([]byte, len(plaintext))
	status := f.Crypt(fd, &types.CryptArgs{
		Session: args.ID,
		Op:      cryptodev.OpEncrypt,
		Src:     plaintext,
		Dst:     encrypted,
		IV:      iv,
	})
	c.Assert(status, Equals, cryptodev.StatusOK)
	c.Assert(bytes.Equal(encrypted, plaintext), Equals, false)

	decrypted := make([]byte, len(encrypted))
	status = f.Crypt(fd, &types.CryptArgs{
		Session: args.ID,
		Op:      cryptodev.OpDecrypt,
		Src:     encrypted,
		Dst:     decrypted,
		IV:      iv,
	})
	c.Assert(status, Equals, cryptodev.StatusOK)
	c.Assert(decrypted, DeepEquals, plaintext)
}

func (s *TestSuite) TestCryptErrors(c *C) {
	f := New()
	fd, err := f.Open()
	c.Assert(err, IsNil)

	args := &types.SessionArgs{Cipher: cryptodev.CipherAESCBC, Key: testKey}
	c.Assert(f.CreateSession(fd, args), Equals, cryptodev.StatusOK)

	iv := make([]byte, cryptodev.IVSize)
	block := make([]byte, cryptodev.BlockSize)

	// Length not a block multiple.
	status := f.Crypt(fd, &types.CryptArgs{
		Session: args.ID, Op: cryptodev.OpEncrypt,
		Src: make([]byte, 15), Dst: make([]byte, 15), IV: iv,
	})
	c.Assert(status, Equals, cryptodev.StatusInvalid)

	// Bad IV size.
	status = f.Crypt(fd, &types.CryptArgs{
		Session: args.ID, Op: cryptodev.OpEncrypt,
		Src: block, Dst: make([]byte, cryptodev.BlockSize), IV: iv[:8],
	})
	c.Assert(status, Equals, cryptodev.StatusInvalid)

	// Unknown session.
	status = f.Crypt(fd, &types.CryptArgs{
		Session: args.ID + 100, Op: cryptodev.OpEncrypt,
		Src: block, Dst: make([]byte, cryptodev.BlockSize), IV: iv,
	})
	c.Assert(status, Equals, cryptodev.StatusNoSession)

	// Unknown op.
	status = f.Crypt(fd, &types.CryptArgs{
		Session: args.ID, Op: 42,
		Src: block, Dst: make([]byte, cryptodev.BlockSize), IV: iv,
	})
	c.Assert(status, Equals, cryptodev.StatusInvalid)
}
