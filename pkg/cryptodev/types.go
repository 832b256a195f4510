package cryptodev

// Request types occupy the first OUT segment of every chain. The host
// agent reads this envelope to pick a handler before touching anything
// else in the chain.
const (
	SyscallOpen = iota
	SyscallClose
	SyscallIoctl
)

// Ioctl command codes. Both agents import this package, so the values
// only have to agree here; they are not the kernel's CIOC* numbers.
const (
	CmdCreateSession  = uint32(0x0101)
	CmdDestroySession = uint32(0x0102)
	CmdCryptOperate   = uint32(0x0103)
)

// Crypt operation directions.
const (
	OpEncrypt = uint32(0)
	OpDecrypt = uint32(1)
)

// Cipher identifiers. Only AES-CBC is forwarded today.
const (
	CipherAESCBC = uint32(1)
)

const (
	// MaxKeyLen bounds the key segment. It matches the largest key the
	// forwarded cipher accepts; requests exceeding it are rejected on
	// the guest side before submission.
	MaxKeyLen = 32

	// IVSize is the fixed initialization vector length on the wire.
	IVSize = 16

	// BlockSize is the cipher block size; crypt payloads must be a
	// multiple of it.
	BlockSize = 16
)

// Errno-style status codes written into the IN status segment by the
// host agent. 0 is success; anything negative is a host-side failure
// forwarded verbatim to the guest.
const (
	StatusOK           = int32(0)
	StatusBadHandle    = int32(-9)  // EBADF
	StatusNoSession    = int32(-2)  // ENOENT
	StatusInvalid      = int32(-22) // EINVAL
	StatusNotSupported = int32(-25) // ENOTTY
)

// Session is the fixed-size session descriptor exchanged on the wire.
// It carries scalars only; the key bytes travel in their own OUT
// segment so neither side ever dereferences a pointer field embedded
// in guest-supplied memory.
type Session struct {
	Cipher uint32
	KeyLen uint32
	ID     uint32
}

// CryptDesc is the fixed-size crypt operation descriptor. Source,
// destination and IV bytes travel in sibling segments; Len and IVLen
// are re-validated by the host against the actual segment sizes before
// any call into the facility.
type CryptDesc struct {
	Session uint32
	Op      uint32
	Len     uint32
	IVLen   uint32
}
