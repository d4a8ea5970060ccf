package ninepl

import (
	"errors"
	"io"
	"io/fs"

	"golang.org/x/sys/unix"
)

var (
	// ErrBadMessage indicates framing that can no longer be trusted; the
	// connection carrying it is torn down.
	ErrBadMessage = errors.New("malformed 9P message")

	ErrUnrecognizedFid = errors.New("referred to unknown fid")
	ErrFidExists       = errors.New("attempted to create a new fid where one already exists")
	ErrNotAttached     = errors.New("no attach on this connection yet")
	ErrEscapesRoot     = errors.New("path escapes the exported root")

	ErrNotOpen       = errors.New("fid is not open")
	ErrNotADirectory = errors.New("fid is not a directory")
	ErrOpUnsupported = errors.New("operation not supported")
)

var ErrServerClosed = errors.New("server closed")

// Wire ecodes are Linux errno values; this is what makes Rlerror
// platform-independent from the guest's point of view.
const (
	ecodePERM        = uint32(unix.EPERM)
	ecodeNOENT       = uint32(unix.ENOENT)
	ecodeIO          = uint32(unix.EIO)
	ecodeBADF        = uint32(unix.EBADF)
	ecodeACCES       = uint32(unix.EACCES)
	ecodeEXIST       = uint32(unix.EEXIST)
	ecodeNOTDIR      = uint32(unix.ENOTDIR)
	ecodeISDIR       = uint32(unix.EISDIR)
	ecodeINVAL       = uint32(unix.EINVAL)
	ecodeNAMETOOLONG = uint32(unix.ENAMETOOLONG)
	ecodeNOTEMPTY    = uint32(unix.ENOTEMPTY)
	ecodeLOOP        = uint32(unix.ELOOP)
	ecodeRANGE       = uint32(unix.ERANGE)
	ecodeOPNOTSUPP   = uint32(unix.EOPNOTSUPP)
)

// ecodeForError maps a host-side failure onto the protocol's error space.
// unix errnos pass through unchanged; portable error classes are translated;
// anything unrecognized degrades to EIO rather than leaking host state.
func ecodeForError(err error) uint32 {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	switch {
	case errors.Is(err, ErrUnrecognizedFid), errors.Is(err, ErrNotOpen):
		return ecodeBADF
	case errors.Is(err, ErrFidExists), errors.Is(err, ErrNotAttached), errors.Is(err, fs.ErrInvalid):
		return ecodeINVAL
	case errors.Is(err, ErrEscapesRoot):
		return ecodeACCES
	case errors.Is(err, ErrNotADirectory):
		return ecodeNOTDIR
	case errors.Is(err, ErrOpUnsupported):
		return ecodeOPNOTSUPP
	case errors.Is(err, fs.ErrNotExist):
		return ecodeNOENT
	case errors.Is(err, fs.ErrPermission):
		return ecodeACCES
	case errors.Is(err, fs.ErrExist):
		return ecodeEXIST
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ecodeIO
	default:
		return ecodeIO
	}
}
