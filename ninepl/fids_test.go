package ninepl

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func openNull(t *testing.T) int {
	t.Helper()
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("open /dev/null: %v", err)
	}
	return fd
}

func fdOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

func TestFidTableRejectsDuplicateInsert(t *testing.T) {
	tbl := NewFidTable()
	a := &resource{kind: resPath, fd: openNull(t)}
	b := &resource{kind: resPath, fd: openNull(t)}
	defer tbl.Drain()
	if err := tbl.Insert(1, a); err != nil {
		t.Fatalf("expected first insert to succeed, got %v", err)
	}
	if err := tbl.Insert(1, b); !errors.Is(err, ErrFidExists) {
		t.Fatalf("expected ErrFidExists, got %v", err)
	}
	b.release()
	got, err := tbl.Get(1)
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got != a {
		t.Fatalf("expected the original binding to survive a duplicate insert")
	}
}

func TestFidTableGetUnknown(t *testing.T) {
	tbl := NewFidTable()
	if _, err := tbl.Get(42); !errors.Is(err, ErrUnrecognizedFid) {
		t.Fatalf("expected ErrUnrecognizedFid, got %v", err)
	}
}

func TestFidTableRemoveClosesDescriptor(t *testing.T) {
	tbl := NewFidTable()
	fd := openNull(t)
	if err := tbl.Insert(1, &resource{kind: resFile, fd: fd}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tbl.Remove(1); err != nil {
		t.Fatalf("expected remove to succeed, got %v", err)
	}
	if fdOpen(fd) {
		t.Fatalf("expected descriptor %d to be closed by remove", fd)
	}
	if err := tbl.Remove(1); !errors.Is(err, ErrUnrecognizedFid) {
		t.Fatalf("expected a second remove to fail, got %v", err)
	}
}

func TestFidTableReplaceReleasesOld(t *testing.T) {
	tbl := NewFidTable()
	oldFD := openNull(t)
	if err := tbl.Insert(1, &resource{kind: resPath, fd: oldFD}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	newFD := openNull(t)
	if err := tbl.Replace(1, &resource{kind: resFile, fd: newFD}); err != nil {
		t.Fatalf("expected replace to succeed, got %v", err)
	}
	if fdOpen(oldFD) {
		t.Fatalf("expected the replaced descriptor %d to be closed", oldFD)
	}
	if !fdOpen(newFD) {
		t.Fatalf("expected the new descriptor %d to stay open", newFD)
	}
	tbl.Drain()
}

func TestFidTableDrainReleasesEverything(t *testing.T) {
	tbl := NewFidTable()
	fds := []int{openNull(t), openNull(t), openNull(t)}
	for i, fd := range fds {
		if err := tbl.Insert(Fid(i), &resource{kind: resFile, fd: fd}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	tbl.Drain()
	if tbl.Len() != 0 {
		t.Fatalf("expected table to be empty, got %d", tbl.Len())
	}
	for _, fd := range fds {
		if fdOpen(fd) {
			t.Fatalf("expected descriptor %d to be closed by drain", fd)
		}
	}
}
