package remote

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/paravirt/cryptodev/pkg/vq"
)

const (
	// MagicVersion guards against protocol drift between the two
	// agents; a mismatch aborts the connection.
	MagicVersion = uint16(0x7601)

	readBufferSize  = 8096
	writeBufferSize = 8096

	// DefaultMaxSegment caps a single wire segment. Anything larger is
	// treated as a hostile frame before allocation.
	DefaultMaxSegment = 1 << 20

	maxSegments = 16
)

// Wire frames descriptor chains over a net.Conn. A request frame
// carries every segment descriptor (direction and length) but payload
// bytes only for OUT segments; a response frame carries the filled IN
// payloads back, in order. The framing is positional and little-endian
// like the chain contents themselves.
type Wire struct {
	conn   net.Conn
	writer *bufio.Writer
	reader *bufio.Reader
}

// NewWire wraps a connection.
func NewWire(conn net.Conn) *Wire {
	return &Wire{
		conn:   conn,
		writer: bufio.NewWriterSize(conn, writeBufferSize),
		reader: bufio.NewReaderSize(conn, readBufferSize),
	}
}

func (w *Wire) writeHeader(seq uint32, count int) error {
	header := make([]byte, 10)
	binary.LittleEndian.PutUint16(header[0:], MagicVersion)
	binary.LittleEndian.PutUint32(header[2:], seq)
	binary.LittleEndian.PutUint32(header[6:], uint32(count))
	_, err := w.writer.Write(header)
	return err
}

func (w *Wire) readHeader() (uint32, uint32, error) {
	header := make([]byte, 10)
	if _, err := io.ReadFull(w.reader, header); err != nil {
		return 0, 0, err
	}
	if magic := binary.LittleEndian.Uint16(header[0:]); magic != MagicVersion {
		return 0, 0, fmt.Errorf("wrong protocol version received: %#x", magic)
	}
	seq := binary.LittleEndian.Uint32(header[2:])
	count := binary.LittleEndian.Uint32(header[6:])
	return seq, count, nil
}

// WriteRequest sends a chain to the peer.
func (w *Wire) WriteRequest(seq uint32, chain *vq.Chain) error {
	segments := chain.Segments()
	if err := w.writeHeader(seq, len(segments)); err != nil {
		return err
	}
	desc := make([]byte, 5)
	for _, s := range segments {
		desc[0] = byte(s.Dir)
		binary.LittleEndian.PutUint32(desc[1:], uint32(len(s.Data)))
		if _, err := w.writer.Write(desc); err != nil {
			return err
		}
		if s.Dir == vq.DirOut && len(s.Data) > 0 {
			if _, err := w.writer.Write(s.Data); err != nil {
				return err
			}
		}
	}
	return w.writer.Flush()
}

// ReadRequest reconstructs a chain sent by the peer. IN segments arrive
// as lengths only and are allocated zeroed; segment sizes beyond
// maxSegment reject the frame before any allocation happens.
func (w *Wire) ReadRequest(maxSegment uint32) (uint32, *vq.Chain, error) {
	seq, count, err := w.readHeader()
	if err != nil {
		return 0, nil, err
	}
	if count == 0 || count > maxSegments {
		return 0, nil, fmt.Errorf("request frame with %d segments", count)
	}

	chain := new(vq.Chain)
	desc := make([]byte, 5)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(w.reader, desc); err != nil {
			return 0, nil, err
		}
		dir := vq.Dir(desc[0])
		size := binary.LittleEndian.Uint32(desc[1:])
		if size > maxSegment {
			return 0, nil, fmt.Errorf("segment of %d bytes exceeds limit %d", size, maxSegment)
		}
		switch dir {
		case vq.DirOut:
			data := make([]byte, size)
			if _, err := io.ReadFull(w.reader, data); err != nil {
				return 0, nil, err
			}
			chain.AddOut(data)
		case vq.DirIn:
			chain.AddIn(int(size))
		default:
			return 0, nil, fmt.Errorf("unknown segment direction %d", desc[0])
		}
	}
	return seq, chain, nil
}

// WriteResponse sends the filled IN segments of a processed chain back.
func (w *Wire) WriteResponse(seq uint32, chain *vq.Chain) error {
	if err := w.writeHeader(seq, chain.Ins()); err != nil {
		return err
	}
	size := make([]byte, 4)
	for _, s := range chain.Segments() {
		if s.Dir != vq.DirIn {
			continue
		}
		binary.LittleEndian.PutUint32(size, uint32(len(s.Data)))
		if _, err := w.writer.Write(size); err != nil {
			return err
		}
		if _, err := w.writer.Write(s.Data); err != nil {
			return err
		}
	}
	return w.writer.Flush()
}

// ReadResponse reads the IN payloads of a completed exchange.
func (w *Wire) ReadResponse(maxSegment uint32) (uint32, [][]byte, error) {
	seq, count, err := w.readHeader()
	if err != nil {
		return 0, nil, err
	}
	if count > maxSegments {
		return 0, nil, fmt.Errorf("response frame with %d segments", count)
	}

	ins := make([][]byte, 0, count)
	size := make([]byte, 4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(w.reader, size); err != nil {
			return 0, nil, err
		}
		n := binary.LittleEndian.Uint32(size)
		if n > maxSegment {
			return 0, nil, fmt.Errorf("segment of %d bytes exceeds limit %d", n, maxSegment)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(w.reader, data); err != nil {
			return 0, nil, err
		}
		ins = append(ins, data)
	}
	return seq, ins, nil
}

// Close closes the underlying connection.
func (w *Wire) Close() error {
	return w.conn.Close()
}
