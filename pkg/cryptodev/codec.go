package cryptodev

import (
	"encoding/binary"
	"fmt"
)

const (
	// EnvelopeSize is the byte size of the request envelope segment.
	EnvelopeSize = 4

	// HandleSize is the byte size of a connection handle on the wire.
	HandleSize = 4

	// StatusSize is the byte size of the host status segment.
	StatusSize = 4

	// SessionSize is the encoded size of a Session record.
	SessionSize = 12

	// CryptDescSize is the encoded size of a CryptDesc record.
	CryptDescSize = 16
)

// All records use little-endian fixed layouts. There is no
// self-describing schema on the wire, so field order and width here
// are the protocol.

func PutUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func GetUint32(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("short u32 record: %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func PutInt32(v int32) []byte {
	return PutUint32(uint32(v))
}

func GetInt32(buf []byte) (int32, error) {
	v, err := GetUint32(buf)
	return int32(v), err
}

// EncodeSession serializes a Session record.
func EncodeSession(s *Session) []byte {
	buf := make([]byte, SessionSize)
	binary.LittleEndian.PutUint32(buf[0:], s.Cipher)
	binary.LittleEndian.PutUint32(buf[4:], s.KeyLen)
	binary.LittleEndian.PutUint32(buf[8:], s.ID)
	return buf
}

// DecodeSession parses a Session record, rejecting short buffers.
func DecodeSession(buf []byte) (*Session, error) {
	if len(buf) < SessionSize {
		return nil, fmt.Errorf("short session record: %d bytes, need %d", len(buf), SessionSize)
	}
	return &Session{
		Cipher: binary.LittleEndian.Uint32(buf[0:]),
		KeyLen: binary.LittleEndian.Uint32(buf[4:]),
		ID:     binary.LittleEndian.Uint32(buf[8:]),
	}, nil
}

// EncodeCryptDesc serializes a CryptDesc record.
func EncodeCryptDesc(d *CryptDesc) []byte {
	buf := make([]byte, CryptDescSize)
	binary.LittleEndian.PutUint32(buf[0:], d.Session)
	binary.LittleEndian.PutUint32(buf[4:], d.Op)
	binary.LittleEndian.PutUint32(buf[8:], d.Len)
	binary.LittleEndian.PutUint32(buf[12:], d.IVLen)
	return buf
}

// DecodeCryptDesc parses a CryptDesc record, rejecting short buffers.
func DecodeCryptDesc(buf []byte) (*CryptDesc, error) {
	if len(buf) < CryptDescSize {
		return nil, fmt.Errorf("short crypt record: %d bytes, need %d", len(buf), CryptDescSize)
	}
	return &CryptDesc{
		Session: binary.LittleEndian.Uint32(buf[0:]),
		Op:      binary.LittleEndian.Uint32(buf[4:]),
		Len:     binary.LittleEndian.Uint32(buf[8:]),
		IVLen:   binary.LittleEndian.Uint32(buf[12:]),
	}, nil
}
