package remote

import (
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
	"github.com/pkg/errors"
)

// Address schemes: "tcp://host:port" for development and testing,
// "vsock://cid:port" across a real guest/host boundary. A vsock listen
// address may leave the cid empty ("vsock://:port") to bind every
// context.

func splitScheme(addr string) (string, string, error) {
	parts := strings.SplitN(addr, "://", 2)
	if len(parts) != 2 {
		return "", "", errors.Errorf("address %q has no scheme", addr)
	}
	return parts[0], parts[1], nil
}

func vsockParts(rest string) (uint32, uint32, error) {
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid vsock address %q", rest)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid vsock port %q", portStr)
	}
	if host == "" {
		return 0, uint32(port), nil
	}
	cid, err := strconv.ParseUint(host, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid vsock context id %q", host)
	}
	return uint32(cid), uint32(port), nil
}

// Listen opens a listener for the given address.
func Listen(addr string) (net.Listener, error) {
	scheme, rest, err := splitScheme(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return net.Listen("tcp", rest)
	case "vsock":
		cid, port, err := vsockParts(rest)
		if err != nil {
			return nil, err
		}
		if cid == 0 {
			return vsock.Listen(port, nil)
		}
		return vsock.ListenContextID(cid, port, nil)
	default:
		return nil, errors.Errorf("unsupported listen scheme %q", scheme)
	}
}

// Dial connects to the given address.
func Dial(addr string) (net.Conn, error) {
	scheme, rest, err := splitScheme(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return net.Dial("tcp", rest)
	case "vsock":
		cid, port, err := vsockParts(rest)
		if err != nil {
			return nil, err
		}
		return vsock.Dial(cid, port, nil)
	default:
		return nil, errors.Errorf("unsupported dial scheme %q", scheme)
	}
}
