package vq

import "fmt"

// Dir tags a segment's direction on the ring.
type Dir uint8

const (
	// DirOut segments are guest to host, read-only to the host.
	DirOut Dir = iota
	// DirIn segments are host to guest, writable by the host.
	DirIn
)

// Segment is one buffer of a descriptor chain.
type Segment struct {
	Dir  Dir
	Data []byte
}

// Chain is a non-empty ordered list of segments. The protocol is
// positional: handlers address segments by index within a direction
// class, the way virtio exposes out_sg/in_sg, and both agents must
// agree on the ordering at the binary level.
type Chain struct {
	segments []Segment
	done     chan struct{}
}

// AddOut appends a guest-to-host segment carrying data.
func (c *Chain) AddOut(data []byte) *Chain {
	c.segments = append(c.segments, Segment{Dir: DirOut, Data: data})
	return c
}

// AddIn appends a host-writable segment of the given size.
func (c *Chain) AddIn(size int) *Chain {
	c.segments = append(c.segments, Segment{Dir: DirIn, Data: make([]byte, size)})
	return c
}

// AddInBuf appends a host-writable segment backed by a caller buffer.
func (c *Chain) AddInBuf(buf []byte) *Chain {
	c.segments = append(c.segments, Segment{Dir: DirIn, Data: buf})
	return c
}

// Segments returns the chain's segments in submission order.
func (c *Chain) Segments() []Segment {
	return c.segments
}

func (c *Chain) nth(d Dir, i int) ([]byte, error) {
	if i < 0 {
		return nil, fmt.Errorf("negative segment index %d", i)
	}
	n := 0
	for _, s := range c.segments {
		if s.Dir != d {
			continue
		}
		if n == i {
			return s.Data, nil
		}
		n++
	}
	return nil, fmt.Errorf("chain has %d %s segments, index %d out of range", n, d, i)
}

// Out returns the i-th guest-to-host segment, bounds-checked.
func (c *Chain) Out(i int) ([]byte, error) {
	return c.nth(DirOut, i)
}

// In returns the i-th host-writable segment, bounds-checked.
func (c *Chain) In(i int) ([]byte, error) {
	return c.nth(DirIn, i)
}

// Outs counts the guest-to-host segments.
func (c *Chain) Outs() int {
	return c.count(DirOut)
}

// Ins counts the host-writable segments.
func (c *Chain) Ins() int {
	return c.count(DirIn)
}

func (c *Chain) count(d Dir) int {
	n := 0
	for _, s := range c.segments {
		if s.Dir == d {
			n++
		}
	}
	return n
}

func (d Dir) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}
