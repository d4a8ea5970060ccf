package ninepl

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

// Symlink expansion budget during a walk. Mirrors the kernel's ELOOP
// behavior rather than any protocol requirement.
const maxSymlinkHops = 8

// walker resolves path components against the filesystem one descriptor at
// a time. It never builds a host path string for resolution: every component
// is opened relative to the previous descriptor with O_NOFOLLOW, so a guest
// cannot race a rename or plant a symlink to reach outside the export.
type walker struct {
	rootFD int
}

// walk resolves names starting from start's descriptor. It returns one qid
// per resolved component and a new resource for the final object when every
// component resolved.
//
// Failure on a non-first component is a partial walk: the leading qids are
// returned with a nil resource (9P semantics; the request itself succeeds).
// A resolution that would leave the exported root fails the whole walk with
// ErrEscapesRoot and reports nothing.
func (w *walker) walk(pool *QidPool, start *resource, names []string) ([]Qid, *resource, error) {
	curFD, err := dupCloexec(start.fd)
	if err != nil {
		return nil, nil, err
	}
	curRel := start.relPath
	wqids := make([]Qid, 0, len(names))
	for i, name := range names {
		// Intermediate symlinks are expanded so the walk can descend through
		// them; a final symlink stays unexpanded (but containment-checked) so
		// the fid can name the link itself for readlink and getattr.
		follow := i < len(names)-1
		fd, rel, err := w.step(curFD, curRel, name, maxSymlinkHops, follow)
		unix.Close(curFD)
		if err != nil {
			if errors.Is(err, ErrEscapesRoot) {
				return nil, nil, err
			}
			if i > 0 {
				return wqids, nil, nil
			}
			return nil, nil, err
		}
		curFD, curRel = fd, rel
		var st unix.Stat_t
		if err := unix.Fstat(curFD, &st); err != nil {
			unix.Close(curFD)
			return nil, nil, err
		}
		wqids = append(wqids, pool.QidForStat(&st))
	}
	return wqids, &resource{kind: resPath, fd: curFD, relPath: curRel}, nil
}

// step resolves one component against (curFD, curRel) and returns a newly
// owned descriptor plus the resulting root-relative path. curFD is left
// open for the caller.
func (w *walker) step(curFD int, curRel, name string, hops int, follow bool) (int, string, error) {
	switch name {
	case "", ".":
		fd, err := dupCloexec(curFD)
		return fd, curRel, err
	case "..":
		// ".." at the export root stays at the root; below it, the parent is
		// reopened from the root descriptor rather than trusting curFD.
		if curRel == "." {
			fd, err := dupCloexec(w.rootFD)
			return fd, ".", err
		}
		parent := path.Dir(curRel)
		fd, err := w.openRel(parent, hops)
		return fd, parent, err
	}
	if strings.ContainsAny(name, "/\x00") {
		return -1, "", unix.EINVAL
	}
	if len(name) > unix.NAME_MAX {
		return -1, "", unix.ENAMETOOLONG
	}
	fd, err := unix.Openat(curFD, name, unix.O_PATH|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, "", err
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return -1, "", err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFLNK {
		return fd, path.Join(curRel, name), nil
	}

	// The component is a symlink. Expand it ourselves so a link pointing
	// outside the export is refused instead of silently followed. A final
	// component gets the same containment check but keeps the link's own
	// descriptor.
	if hops <= 0 {
		unix.Close(fd)
		return -1, "", unix.ELOOP
	}
	target, err := readlinkAt(curFD, name)
	if err != nil {
		unix.Close(fd)
		return -1, "", err
	}
	resolved, err := resolveLink(curRel, target)
	if err != nil {
		unix.Close(fd)
		return -1, "", err
	}
	if !follow {
		return fd, path.Join(curRel, name), nil
	}
	unix.Close(fd)
	fd, err = w.openRel(resolved, hops-1)
	return fd, resolved, err
}

// openRel reopens a clean root-relative path by walking it from the root
// descriptor one component at a time.
func (w *walker) openRel(rel string, hops int) (int, error) {
	curFD, err := dupCloexec(w.rootFD)
	if err != nil {
		return -1, err
	}
	if rel == "." {
		return curFD, nil
	}
	curRel := "."
	for _, name := range strings.Split(rel, "/") {
		fd, next, err := w.step(curFD, curRel, name, hops, true)
		unix.Close(curFD)
		if err != nil {
			return -1, err
		}
		curFD, curRel = fd, next
	}
	return curFD, nil
}

// resolveLink rebases a symlink target found at dir/<name> onto the export
// root. Absolute targets and targets that climb above the root are escapes.
func resolveLink(dir, target string) (string, error) {
	if target == "" {
		return "", unix.ENOENT
	}
	if path.IsAbs(target) {
		return "", ErrEscapesRoot
	}
	resolved := path.Join(dir, target)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "", ErrEscapesRoot
	}
	return resolved, nil
}

// dupCloexec duplicates fd with close-on-exec set atomically.
func dupCloexec(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
}

// readlinkAt reads the target of the symlink at dirFD/name.
func readlinkAt(dirFD int, name string) (string, error) {
	for size := 256; ; size *= 2 {
		buf := make([]byte, size)
		n, err := unix.Readlinkat(dirFD, name, buf)
		if err != nil {
			return "", err
		}
		if n < size {
			return string(buf[:n]), nil
		}
	}
}

// procFdPath names fd in /proc, which lets an O_PATH descriptor be reopened
// or operated on without re-walking the guest-supplied path.
func procFdPath(fd int) string {
	return fmt.Sprintf("/proc/self/fd/%d", fd)
}

// reopen upgrades an O_PATH descriptor to a usable one with the given
// flags. The open target is pinned by the descriptor, so this cannot be
// raced the way a path-based reopen could.
func reopen(fd int, flags int) (int, error) {
	// No O_NOFOLLOW here: /proc/self/fd entries are themselves symlinks.
	return unix.Open(procFdPath(fd), flags|unix.O_CLOEXEC, 0)
}
