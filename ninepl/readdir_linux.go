package ninepl

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// DirEntry is one native directory record. Offset is the kernel-assigned
// resume token for the entry that follows this one; it is opaque and only
// meaningful to a later OpenDirReader on the same directory.
type DirEntry struct {
	Ino    uint64
	Offset uint64
	Type   byte
	Name   []byte
}

// DirReader produces a lazy, finite, non-restartable sequence of entries
// from one open directory. It owns a duplicate of the directory descriptor,
// so iteration is independent of whatever else happens to the fid it came
// from. Not safe for concurrent Next calls; the dispatcher serializes reads
// per reader.
type DirReader struct {
	fd  int
	buf []byte
	pos int
	n   int
}

// getdents64 record header: ino[8] off[8] reclen[2] type[1], then the
// nul-terminated name padded out to reclen.
const direntHeaderSize = 19

// OpenDirReader duplicates fd (close-on-exec), seeks the duplicate to the
// resume offset, and returns a reader positioned there. The duplicate is
// closed on any failure here; a failed open never leaks.
func OpenDirReader(fd int, offset uint64) (*DirReader, error) {
	dup, err := dupCloexec(fd)
	if err != nil {
		return nil, err
	}
	if _, err := unix.Seek(dup, int64(offset), 0); err != nil {
		unix.Close(dup)
		return nil, err
	}
	return &DirReader{fd: dup, buf: make([]byte, 8<<10)}, nil
}

// Next returns the next entry. ok is false at end of stream. The entry's
// name is copied out of the internal buffer and remains valid after further
// calls.
func (r *DirReader) Next() (ent DirEntry, ok bool, err error) {
	if r.fd < 0 {
		return DirEntry{}, false, unix.EBADF
	}
	if r.pos >= r.n {
		n, err := unix.Getdents(r.fd, r.buf)
		if err != nil {
			return DirEntry{}, false, err
		}
		if n == 0 {
			return DirEntry{}, false, nil
		}
		r.pos, r.n = 0, n
	}
	b := r.buf[r.pos:r.n]
	if len(b) < direntHeaderSize {
		return DirEntry{}, false, unix.EIO
	}
	reclen := int(bo.Uint16(b[16:18]))
	if reclen < direntHeaderSize || reclen > len(b) {
		return DirEntry{}, false, unix.EIO
	}
	name := stripPadding(b[direntHeaderSize:reclen])
	ent = DirEntry{
		Ino:    bo.Uint64(b[0:8]),
		Offset: bo.Uint64(b[8:16]),
		Type:   b[18],
		Name:   append([]byte(nil), name...),
	}
	r.pos += reclen
	return ent, true, nil
}

// Close releases the duplicated descriptor. Exactly one close happens no
// matter how iteration ended; further calls are no-ops.
func (r *DirReader) Close() error {
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}

// stripPadding trims the name at its first nul byte. The kernel always
// nul-terminates dirent names inside reclen, so a missing terminator is a
// caller-side bug, not guest-triggerable input.
func stripPadding(b []byte) []byte {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		panic("dirent name has no nul terminator")
	}
	return b[:i]
}
