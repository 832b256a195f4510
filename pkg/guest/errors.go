package guest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument rejects malformed caller input before anything
	// is submitted on the channel.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConnectionRefused is returned when the host answered an open
	// request with a negative handle.
	ErrConnectionRefused = errors.New("host refused connection")
	// ErrClosed is returned by operations on a retired open-file record.
	ErrClosed = errors.New("device file already closed")
)

// HostError carries a negative errno-style status reported by the host
// facility, forwarded verbatim. It is distinct from channel failures:
// the exchange itself succeeded, the operation did not.
type HostError struct {
	Code int32
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host facility returned status %d", e.Code)
}
