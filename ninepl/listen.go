package ninepl

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Listen opens a listener for the transports the daemon supports. "tcp" and
// "unix" delegate to the net package; "vsock" addresses are "cid:port" with
// an empty or "*" cid binding any context id, which is the usual shape for a
// host daemon waiting on guests.
func Listen(network, addr string) (net.Listener, error) {
	if network == "vsock" {
		return listenVsock(addr)
	}
	return net.Listen(network, addr)
}

type vsockAddr struct {
	cid  uint32
	port uint32
}

func (a vsockAddr) Network() string { return "vsock" }
func (a vsockAddr) String() string {
	if a.cid == unix.VMADDR_CID_ANY {
		return fmt.Sprintf("*:%d", a.port)
	}
	return fmt.Sprintf("%d:%d", a.cid, a.port)
}

func parseVsockAddr(addr string) (vsockAddr, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return vsockAddr{}, fmt.Errorf("vsock address %q missing port", addr)
	}
	cidStr, portStr := addr[:i], addr[i+1:]
	cid := uint32(unix.VMADDR_CID_ANY)
	if cidStr != "" && cidStr != "*" {
		v, err := strconv.ParseUint(cidStr, 10, 32)
		if err != nil {
			return vsockAddr{}, fmt.Errorf("vsock address %q: bad cid: %w", addr, err)
		}
		cid = uint32(v)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return vsockAddr{}, fmt.Errorf("vsock address %q: bad port: %w", addr, err)
	}
	return vsockAddr{cid: cid, port: uint32(port)}, nil
}

type vsockListener struct {
	fd   int
	addr vsockAddr
}

func listenVsock(addr string) (net.Listener, error) {
	va, err := parseVsockAddr(addr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrVM{CID: va.cid, Port: va.port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &vsockListener{fd: fd, addr: va}, nil
}

func (l *vsockListener) Accept() (net.Conn, error) {
	fd, sa, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}
	remote := vsockAddr{cid: unix.VMADDR_CID_ANY}
	if vm, ok := sa.(*unix.SockaddrVM); ok {
		remote = vsockAddr{cid: vm.CID, port: vm.Port}
	}
	return &vsockConn{fd: fd, local: l.addr, remote: remote}, nil
}

func (l *vsockListener) Close() error   { return unix.Close(l.fd) }
func (l *vsockListener) Addr() net.Addr { return l.addr }

// vsockConn is a blocking-descriptor net.Conn. Deadlines map onto the
// socket's SO_RCVTIMEO/SO_SNDTIMEO, so a timed-out Read or Write fails with
// EAGAIN rather than net's timeout error; the session loop treats either as
// fatal to the connection, which is the behavior the timeouts exist for.
type vsockConn struct {
	fd     int
	local  vsockAddr
	remote vsockAddr
}

func (c *vsockConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (c *vsockConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (c *vsockConn) Close() error         { return unix.Close(c.fd) }
func (c *vsockConn) LocalAddr() net.Addr  { return c.local }
func (c *vsockConn) RemoteAddr() net.Addr { return c.remote }

func (c *vsockConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c *vsockConn) SetReadDeadline(t time.Time) error {
	return setSockTimeout(c.fd, unix.SO_RCVTIMEO, t)
}

func (c *vsockConn) SetWriteDeadline(t time.Time) error {
	return setSockTimeout(c.fd, unix.SO_SNDTIMEO, t)
}

// setSockTimeout arms a socket-level timeout for the given deadline. The
// zero time clears it, matching net.Conn's contract.
func setSockTimeout(fd int, opt int, t time.Time) error {
	var tv unix.Timeval
	if !t.IsZero() {
		d := time.Until(t)
		if d <= 0 {
			// deadline already passed; the shortest non-zero timeout, since
			// a zero timeval means "block forever"
			d = time.Microsecond
		}
		tv = unix.NsecToTimeval(int64(d))
	}
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv)
}
