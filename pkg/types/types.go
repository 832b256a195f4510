package types

// SessionArgs is the in-process argument structure for a session-create
// call into the facility. It is constructed fresh by the host agent from
// validated, independently-owned buffers; it never aliases guest memory.
type SessionArgs struct {
	Cipher uint32
	Key    []byte

	// ID is filled in by the facility on success.
	ID uint32
}

// CryptArgs is the in-process argument structure for a crypt call.
// Dst is owned by the caller and must be len(Src) bytes.
type CryptArgs struct {
	Session uint32
	Op      uint32
	Src     []byte
	Dst     []byte
	IV      []byte
}

// Facility is the host-side cryptographic device the host agent calls
// through unchanged. The shape mirrors a POSIX ioctl surface: Open
// yields a file-descriptor-like handle, the remaining calls take it and
// return 0 or a negative errno-style status.
type Facility interface {
	Open() (int32, error)
	Close(fd int32) int32
	CreateSession(fd int32, args *SessionArgs) int32
	DestroySession(fd int32, session uint32) int32
	Crypt(fd int32, args *CryptArgs) int32
}

// FacilityStats exposes read-only facility counters for the status
// surface. Implemented optionally; the REST server type-asserts for it.
type FacilityStats interface {
	OpenHandles() int
	LiveSessions() int
}
