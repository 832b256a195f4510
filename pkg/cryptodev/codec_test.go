package cryptodev

import (
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type TestSuite struct{}

var _ = Suite(&TestSuite{})

func (s *TestSuite) TestSessionRecord(c *C) {
	record := &Session{Cipher: CipherAESCBC, KeyLen: 24, ID: 7}
	buf := EncodeSession(record)
	c.Assert(buf, HasLen, SessionSize)

	got, err := DecodeSession(buf)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, record)

	// Short records are rejected, never sliced out of bounds.
	_, err = DecodeSession(buf[:SessionSize-1])
	c.Assert(err, NotNil)
}

func (s *TestSuite) TestCryptRecord(c *C) {
	desc := &CryptDesc{Session: 3, Op: OpDecrypt, Len: 128, IVLen: IVSize}
	buf := EncodeCryptDesc(desc)
	c.Assert(buf, HasLen, CryptDescSize)

	got, err := DecodeCryptDesc(buf)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, desc)

	_, err = DecodeCryptDesc(buf[:8])
	c.Assert(err, NotNil)
}

func (s *TestSuite) TestScalars(c *C) {
	v, err := GetUint32(PutUint32(0xdeadbeef))
	c.Assert(err, IsNil)
	c.Assert(v, Equals, uint32(0xdeadbeef))

	i, err := GetInt32(PutInt32(-9))
	c.Assert(err, IsNil)
	c.Assert(i, Equals, int32(-9))

	_, err = GetUint32([]byte{1, 2})
	c.Assert(err, NotNil)
}
