package facility

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/types"
)

// Soft is an in-process cryptographic facility with the same call shape
// as a /dev/crypto character device: open yields an fd-like handle,
// sessions hang off the handle, crypt operates on a session. All calls
// except Open report failure as a negative errno-style status.
//
// Handles and session identifiers are allocated from monotonically
// increasing counters and never reused, so a stale reference can never
// alias a newer connection or session.
type Soft struct {
	mu          sync.Mutex
	nextFD      int32
	nextSession uint32
	handles     map[int32]map[uint32]*session
}

type session struct {
	block cipher.Block
}

// New creates an empty facility.
func New() *Soft {
	return &Soft{
		nextFD:      3,
		nextSession: 1,
		handles:     map[int32]map[uint32]*session{},
	}
}

// Open allocates a new handle.
func (f *Soft) Open() (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd := f.nextFD
	f.nextFD++
	f.handles[fd] = map[uint32]*session{}
	logrus.Debugf("facility: opened handle %d", fd)
	return fd, nil
}

// Close releases a handle and every session created on it. Closing an
// unknown handle fails with EBADF, mirroring the underlying device.
func (f *Soft) Close(fd int32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handles[fd]; !ok {
		return cryptodev.StatusBadHandle
	}
	delete(f.handles, fd)
	logrus.Debugf("facility: closed handle %d", fd)
	return cryptodev.StatusOK
}

// CreateSession sets up cipher state for the given key and fills in the
// assigned session identifier.
func (f *Soft) CreateSession(fd int32, args *types.SessionArgs) int32 {
	if args.Cipher != cryptodev.CipherAESCBC {
		return cryptodev.StatusInvalid
	}
	switch len(args.Key) {
	case 16, 24, 32:
	default:
		return cryptodev.StatusInvalid
	}

	block, err := aes.NewCipher(args.Key)
	if err != nil {
		return cryptodev.StatusInvalid
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	sessions, ok := f.handles[fd]
	if !ok {
		return cryptodev.StatusBadHandle
	}
	id := f.nextSession
	f.nextSession++
	sessions[id] = &session{block: block}
	args.ID = id
	return cryptodev.StatusOK
}

// DestroySession retires a session created on the same handle.
func (f *Soft) DestroySession(fd int32, id uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessions, ok := f.handles[fd]
	if !ok {
		return cryptodev.StatusBadHandle
	}
	if _, ok := sessions[id]; !ok {
		return cryptodev.StatusNoSession
	}
	delete(sessions, id)
	return cryptodev.StatusOK
}

// Crypt runs one AES-CBC operation. Payload length must be a positive
// block multiple, the IV exactly one block, and Dst at least Src-sized.
func (f *Soft) Crypt(fd int32, args *types.CryptArgs) int32 {
	if len(args.Src) == 0 || len(args.Src)%cryptodev.BlockSize != 0 {
		return cryptodev.StatusInvalid
	}
	if len(args.IV) != cryptodev.IVSize {
		return cryptodev.StatusInvalid
	}
	if len(args.Dst) < len(args.Src) {
		return cryptodev.StatusInvalid
	}

	f.mu.Lock()
	sessions, ok := f.handles[fd]
	if !ok {
		f.mu.Unlock()
		return cryptodev.StatusBadHandle
	}
	sess, ok := sessions[args.Session]
	f.mu.Unlock()
	if !ok {
		return cryptodev.StatusNoSession
	}

	switch args.Op {
	case cryptodev.OpEncrypt:
		cipher.NewCBCEncrypter(sess.block, args.IV).CryptBlocks(args.Dst[:len(args.Src)], args.Src)
	case cryptodev.OpDecrypt:
		cipher.NewCBCDecrypter(sess.block, args.IV).CryptBlocks(args.Dst[:len(args.Src)], args.Src)
	default:
		return cryptodev.StatusInvalid
	}
	return cryptodev.StatusOK
}

// OpenHandles reports the number of live handles.
func (f *Soft) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

// LiveSessions reports the number of live sessions across all handles.
func (f *Soft) LiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sessions := range f.handles {
		n += len(sessions)
	}
	return n
}
