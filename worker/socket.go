package worker

import (
	"errors"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// ControlSocket is the worker's duplex byte channel to the daemon (spec.md
// 1): a UNIX stream socket, dialed as an abstract-namespace name on Linux
// (prefixed with a NUL byte per spec.md 6) or a plain filesystem path
// elsewhere. Built on golang.org/x/sys/unix rather than net.Dial so the
// receive timeout can be set with SO_RCVTIMEO the same way the daemon
// side does, and so the abstract-namespace case needs no string hackery
// on top of net.UnixAddr.
type ControlSocket struct {
	fd int
}

// DialControlSocket connects to addr, picking the abstract-namespace or
// filesystem form of AF_UNIX depending on the platform.
func DialControlSocket(addr string) (*ControlSocket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}

	sa := controlSocketAddr(addr)
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &ControlSocket{fd: fd}, nil
}

// controlSocketAddr builds the sockaddr for addr, using the Linux abstract
// namespace (leading NUL byte, no trailing NUL) when running on Linux and
// a plain filesystem path on every other platform, per spec.md 6.
func controlSocketAddr(addr string) *unix.SockaddrUnix {
	if runtime.GOOS == "linux" {
		return &unix.SockaddrUnix{Name: "@" + addr}
	}
	return &unix.SockaddrUnix{Name: addr}
}

// SetReadTimeout sets SO_RCVTIMEO so a blocking Read returns with EAGAIN
// after d with no data, giving the request loop its 1-second idle tick
// (spec.md 4.5 step 2).
func (c *ControlSocket) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

// Read reads into p, returning ErrTimeout (wrapping EAGAIN/EWOULDBLOCK) so
// the caller's idle-tick logic can use errors.Is rather than inspecting a
// syscall-specific errno.
func (c *ControlSocket) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrTimeout
		}
		return 0, err
	}
	return n, nil
}

// Write writes p in full, retrying on short writes.
func (c *ControlSocket) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *ControlSocket) Close() error {
	return unix.Close(c.fd)
}

// ErrTimeout is returned by Read when SO_RCVTIMEO elapsed with no data,
// the signal the request loop's idle-tick logic watches for.
var ErrTimeout = errors.New("worker: control socket read timeout")
