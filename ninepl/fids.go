package ninepl

import (
	"sync"

	"golang.org/x/sys/unix"
)

type resourceKind int

const (
	// resPath is a walked-to but unopened object, held as an O_PATH
	// descriptor so later operations stay race-free.
	resPath resourceKind = iota
	resFile
	resDir
)

func (k resourceKind) String() string {
	switch k {
	case resPath:
		return "path"
	case resFile:
		return "file"
	case resDir:
		return "dir"
	}
	return "unknown"
}

// resource is what a fid names: exactly one host descriptor, owned
// exclusively by the table entry holding it. relPath is root-relative and
// kept for qid-independent diagnostics only; resolution never trusts it.
type resource struct {
	kind    resourceKind
	fd      int
	relPath string

	// Resume offset of the last readdir on this fid. Only meaningful for
	// resDir and only advisory; each Treaddir opens its own stream.
	lastOffset uint64
}

// release closes the owned descriptor. Safe to call once per resource value;
// the table guarantees a resource is released exactly once.
func (r *resource) release() {
	if r.fd >= 0 {
		unix.Close(r.fd)
		r.fd = -1
	}
}

// FidTable maps guest-chosen fids to host resources for one connection.
// The dispatch loop is serial, but teardown can race a slow handler, so the
// table carries its own lock like the teacher's fid tracker.
type FidTable struct {
	m    sync.Mutex
	fids map[Fid]*resource
}

func NewFidTable() *FidTable {
	return &FidTable{fids: make(map[Fid]*resource)}
}

// Insert binds fid to res. The guest choosing an occupied fid is a protocol
// violation and leaves the table unchanged.
func (t *FidTable) Insert(f Fid, res *resource) error {
	t.m.Lock()
	defer t.m.Unlock()
	if _, ok := t.fids[f]; ok {
		return ErrFidExists
	}
	t.fids[f] = res
	return nil
}

func (t *FidTable) Get(f Fid) (*resource, error) {
	t.m.Lock()
	defer t.m.Unlock()
	res, ok := t.fids[f]
	if !ok {
		return nil, ErrUnrecognizedFid
	}
	return res, nil
}

// Replace swaps the resource bound to fid, releasing the old one. Used when
// an unopened fid is opened in place.
func (t *FidTable) Replace(f Fid, res *resource) error {
	t.m.Lock()
	defer t.m.Unlock()
	old, ok := t.fids[f]
	if !ok {
		return ErrUnrecognizedFid
	}
	t.fids[f] = res
	old.release()
	return nil
}

// Remove unbinds fid and releases its descriptor (clunk). A second remove of
// the same fid reports ErrUnrecognizedFid; clunked fids do not resurrect.
func (t *FidTable) Remove(f Fid) error {
	t.m.Lock()
	res, ok := t.fids[f]
	if ok {
		delete(t.fids, f)
	}
	t.m.Unlock()
	if !ok {
		return ErrUnrecognizedFid
	}
	res.release()
	return nil
}

func (t *FidTable) Len() int {
	t.m.Lock()
	defer t.m.Unlock()
	return len(t.fids)
}

// Drain releases every live resource. Called on connection teardown so a
// guest that disconnects without clunking leaks nothing.
func (t *FidTable) Drain() {
	t.m.Lock()
	fids := t.fids
	t.fids = make(map[Fid]*resource)
	t.m.Unlock()
	for _, res := range fids {
		res.release()
	}
}
