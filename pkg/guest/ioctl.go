package guest

import (
	"github.com/pkg/errors"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
)

// CreateSession performs the session-create exchange and returns the
// host-assigned session identifier.
//
// The caller's key is copied into a device-owned buffer before
// submission; ownership of the submitted bytes is handed off, so the
// caller may reuse or free its buffer while the exchange is in flight.
func (f *OpenFile) CreateSession(cipher uint32, key []byte) (uint32, error) {
	if len(key) == 0 || len(key) > cryptodev.MaxKeyLen {
		return 0, errors.Wrapf(ErrInvalidArgument, "key length %d, maximum %d", len(key), cryptodev.MaxKeyLen)
	}
	fd, err := f.Handle()
	if err != nil {
		return 0, err
	}

	record := &cryptodev.Session{
		Cipher: cipher,
		KeyLen: uint32(len(key)),
	}
	ownedKey := append([]byte(nil), key...)

	chain := ioctlChain(fd, cryptodev.CmdCreateSession).
		AddOut(cryptodev.EncodeSession(record)).
		AddOut(ownedKey).
		AddIn(cryptodev.SessionSize).
		AddIn(cryptodev.StatusSize)

	if err := f.dev.exchange(chain); err != nil {
		return 0, err
	}

	code, err := status(chain)
	if err != nil {
		return 0, err
	}
	if code < 0 {
		return 0, &HostError{Code: code}
	}

	replySeg, err := chain.In(0)
	if err != nil {
		return 0, err
	}
	reply, err := cryptodev.DecodeSession(replySeg)
	if err != nil {
		return 0, err
	}
	return reply.ID, nil
}

// DestroySession performs the session-destroy exchange.
func (f *OpenFile) DestroySession(id uint32) error {
	fd, err := f.Handle()
	if err != nil {
		return err
	}

	chain := ioctlChain(fd, cryptodev.CmdDestroySession).
		AddOut(cryptodev.PutUint32(id)).
		AddIn(cryptodev.StatusSize)

	if err := f.dev.exchange(chain); err != nil {
		return err
	}
	code, err := status(chain)
	if err != nil {
		return err
	}
	if code < 0 {
		return &HostError{Code: code}
	}
	return nil
}

// Crypt performs one symmetric crypt exchange and returns the
// transformed bytes. Source and IV are copied into device-owned buffers
// before submission and the destination is pre-allocated to match the
// source length.
func (f *OpenFile) Crypt(session uint32, op uint32, src, iv []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "empty crypt source")
	}
	if len(iv) != cryptodev.IVSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "IV length %d, expected %d", len(iv), cryptodev.IVSize)
	}
	fd, err := f.Handle()
	if err != nil {
		return nil, err
	}

	desc := &cryptodev.CryptDesc{
		Session: session,
		Op:      op,
		Len:     uint32(len(src)),
		IVLen:   cryptodev.IVSize,
	}
	ownedSrc := append([]byte(nil), src...)
	ownedIV := append([]byte(nil), iv...)
	dst := make([]byte, len(src))

	chain := ioctlChain(fd, cryptodev.CmdCryptOperate).
		AddOut(cryptodev.EncodeCryptDesc(desc)).
		AddOut(ownedSrc).
		AddOut(ownedIV).
		AddInBuf(dst).
		AddIn(cryptodev.StatusSize)

	if err := f.dev.exchange(chain); err != nil {
		return nil, err
	}
	code, err := status(chain)
	if err != nil {
		return nil, err
	}
	if code < 0 {
		return nil, &HostError{Code: code}
	}
	return dst, nil
}

// Ioctl submits a command the guest agent has no marshaling for: the
// common segments plus a status segment, nothing command-specific. The
// caller gets the raw host status and must interpret it; a well-behaved
// host answers an unknown command with -ENOTTY.
func (f *OpenFile) Ioctl(cmd uint32) (int32, error) {
	fd, err := f.Handle()
	if err != nil {
		return 0, err
	}

	chain := ioctlChain(fd, cmd).AddIn(cryptodev.StatusSize)
	if err := f.dev.exchange(chain); err != nil {
		return 0, err
	}
	return status(chain)
}
