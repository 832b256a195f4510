package host

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/types"
	"github.com/paravirt/cryptodev/pkg/vq"
)

// handle decodes the request envelope and dispatches one chain. Every
// positional segment access is bounds-checked before use; nothing in a
// guest-controlled field reaches a memory operation unvalidated.
func (a *Agent) handle(chain *vq.Chain) error {
	a.countProcessed()

	envelope, err := chain.Out(0)
	if err != nil {
		return a.reject(chain, err)
	}
	syscall, err := cryptodev.GetUint32(envelope)
	if err != nil {
		return a.reject(chain, err)
	}

	switch syscall {
	case cryptodev.SyscallOpen:
		return a.handleOpen(chain)
	case cryptodev.SyscallClose:
		return a.handleClose(chain)
	case cryptodev.SyscallIoctl:
		return a.handleIoctl(chain)
	default:
		return a.reject(chain, errors.Errorf("unknown syscall type %d", syscall))
	}
}

// reject records a structurally invalid chain. If the chain carries a
// status segment the error is surfaced to the guest as EINVAL; either
// way the chain is returned, never dropped, so the submitter unblocks.
func (a *Agent) reject(chain *vq.Chain, cause error) error {
	a.countMalformed()
	a.writeStatus(chain, cryptodev.StatusInvalid)
	return errors.Wrap(ErrMalformedChain, cause.Error())
}

// writeStatus fills the trailing IN status segment when present.
func (a *Agent) writeStatus(chain *vq.Chain, status int32) {
	n := chain.Ins()
	if n == 0 {
		return
	}
	seg, err := chain.In(n - 1)
	if err != nil || len(seg) < cryptodev.StatusSize {
		return
	}
	binary.LittleEndian.PutUint32(seg, uint32(status))
}

func (a *Agent) handleOpen(chain *vq.Chain) error {
	seg, err := chain.In(0)
	if err != nil {
		return a.reject(chain, err)
	}
	if len(seg) < cryptodev.HandleSize {
		return a.reject(chain, errors.Errorf("handle segment too small: %d bytes", len(seg)))
	}

	fd, err := a.facility.Open()
	if err != nil {
		logrus.WithError(err).Error("Failed to open crypto facility")
		fd = -1
	} else {
		a.trackOpen(fd)
	}
	binary.LittleEndian.PutUint32(seg, uint32(fd))
	return nil
}

func (a *Agent) handleClose(chain *vq.Chain) error {
	seg, err := chain.Out(1)
	if err != nil {
		return a.reject(chain, err)
	}
	fd, err := cryptodev.GetInt32(seg)
	if err != nil {
		return a.reject(chain, err)
	}

	// Forwarded as-is: closing a bogus handle fails inside the
	// facility, exactly as it would on the real device.
	if status := a.facility.Close(fd); status != cryptodev.StatusOK {
		logrus.Warnf("Facility close of handle %d returned %d", fd, status)
	}
	a.trackClose(fd)
	return nil
}

func (a *Agent) handleIoctl(chain *vq.Chain) error {
	fdSeg, err := chain.Out(1)
	if err != nil {
		return a.reject(chain, err)
	}
	fd, err := cryptodev.GetInt32(fdSeg)
	if err != nil {
		return a.reject(chain, err)
	}
	cmdSeg, err := chain.Out(2)
	if err != nil {
		return a.reject(chain, err)
	}
	cmd, err := cryptodev.GetUint32(cmdSeg)
	if err != nil {
		return a.reject(chain, err)
	}

	switch cmd {
	case cryptodev.CmdCreateSession:
		return a.createSession(chain, fd)
	case cryptodev.CmdDestroySession:
		return a.destroySession(chain, fd)
	case cryptodev.CmdCryptOperate:
		return a.cryptOperate(chain, fd)
	default:
		logrus.Debugf("Unsupported ioctl command %#x", cmd)
		a.writeStatus(chain, cryptodev.StatusNotSupported)
		return nil
	}
}

func (a *Agent) createSession(chain *vq.Chain, fd int32) error {
	recordSeg, err := chain.Out(3)
	if err != nil {
		return a.reject(chain, err)
	}
	record, err := cryptodev.DecodeSession(recordSeg)
	if err != nil {
		return a.reject(chain, err)
	}
	keySeg, err := chain.Out(4)
	if err != nil {
		return a.reject(chain, err)
	}
	replySeg, err := chain.In(0)
	if err != nil {
		return a.reject(chain, err)
	}
	if len(replySeg) < cryptodev.SessionSize {
		return a.reject(chain, errors.Errorf("session reply segment too small: %d bytes", len(replySeg)))
	}

	// The guest-declared key length is the trust boundary: it must fit
	// both the protocol bound and the segment that actually arrived.
	if record.KeyLen == 0 || record.KeyLen > cryptodev.MaxKeyLen || int(record.KeyLen) > len(keySeg) {
		return a.reject(chain, errors.Errorf("key length %d outside segment of %d bytes", record.KeyLen, len(keySeg)))
	}

	// Build the facility call arguments fresh from owned copies; the
	// guest record is never patched in place.
	args := &types.SessionArgs{
		Cipher: record.Cipher,
		Key:    append([]byte(nil), keySeg[:record.KeyLen]...),
	}
	status := a.facility.CreateSession(fd, args)
	if status == cryptodev.StatusOK {
		record.ID = args.ID
	}
	copy(replySeg, cryptodev.EncodeSession(record))
	a.writeStatus(chain, status)
	return nil
}

func (a *Agent) destroySession(chain *vq.Chain, fd int32) error {
	seg, err := chain.Out(3)
	if err != nil {
		return a.reject(chain, err)
	}
	id, err := cryptodev.GetUint32(seg)
	if err != nil {
		return a.reject(chain, err)
	}
	a.writeStatus(chain, a.facility.DestroySession(fd, id))
	return nil
}

func (a *Agent) cryptOperate(chain *vq.Chain, fd int32) error {
	descSeg, err := chain.Out(3)
	if err != nil {
		return a.reject(chain, err)
	}
	desc, err := cryptodev.DecodeCryptDesc(descSeg)
	if err != nil {
		return a.reject(chain, err)
	}
	srcSeg, err := chain.Out(4)
	if err != nil {
		return a.reject(chain, err)
	}
	ivSeg, err := chain.Out(5)
	if err != nil {
		return a.reject(chain, err)
	}
	dstSeg, err := chain.In(0)
	if err != nil {
		return a.reject(chain, err)
	}

	if desc.Len == 0 || int(desc.Len) > len(srcSeg) || int(desc.Len) > len(dstSeg) {
		return a.reject(chain, errors.Errorf("crypt length %d outside src %d / dst %d segments", desc.Len, len(srcSeg), len(dstSeg)))
	}
	if desc.IVLen != cryptodev.IVSize || len(ivSeg) < cryptodev.IVSize {
		return a.reject(chain, errors.Errorf("bad IV: declared %d, segment %d bytes", desc.IVLen, len(ivSeg)))
	}

	args := &types.CryptArgs{
		Session: desc.Session,
		Op:      desc.Op,
		Src:     append([]byte(nil), srcSeg[:desc.Len]...),
		Dst:     make([]byte, desc.Len),
		IV:      append([]byte(nil), ivSeg[:cryptodev.IVSize]...),
	}
	status := a.facility.Crypt(fd, args)
	if status == cryptodev.StatusOK {
		copy(dstSeg, args.Dst)
	}
	a.writeStatus(chain, status)
	return nil
}
