package ninepl

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"golang.org/x/sys/unix"
)

func openDir(t *testing.T, dir string) int {
	t.Helper()
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	t.Cleanup(func() { unix.Close(fd) })
	return fd
}

func openFDCount(t *testing.T) int {
	t.Helper()
	ents, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("read /proc/self/fd: %v", err)
	}
	return len(ents)
}

func collectEntries(t *testing.T, r *DirReader) []DirEntry {
	t.Helper()
	var ents []DirEntry
	for {
		ent, ok, err := r.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			return ents
		}
		ents = append(ents, ent)
	}
}

func TestDirReaderListsAllEntries(t *testing.T) {
	dir := t.TempDir()
	names := []string{"alpha", "beta", "gamma"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	fd := openDir(t, dir)

	r, err := OpenDirReader(fd, 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	var got []string
	for _, ent := range collectEntries(t, r) {
		name := string(ent.Name)
		if name == "." || name == ".." {
			continue
		}
		got = append(got, name)
	}
	sort.Strings(got)
	if len(got) != len(names) {
		t.Fatalf("expected %d entries, got %d (%v)", len(names), len(got), got)
	}
	for i, n := range names {
		if got[i] != n {
			t.Fatalf("expected entry %d to be %q, got %q", i, n, got[i])
		}
	}
}

func TestDirReaderResumesFromOffset(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"one", "two", "three", "four"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	fd := openDir(t, dir)

	r, err := OpenDirReader(fd, 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	all := collectEntries(t, r)
	r.Close()
	if len(all) < 3 {
		t.Fatalf("expected at least 3 entries, got %d", len(all))
	}

	// resume after the second entry; the rest of the stream must match
	r2, err := OpenDirReader(fd, all[1].Offset)
	if err != nil {
		t.Fatalf("open reader at offset: %v", err)
	}
	defer r2.Close()
	rest := collectEntries(t, r2)
	if len(rest) != len(all)-2 {
		t.Fatalf("expected %d resumed entries, got %d", len(all)-2, len(rest))
	}
	for i, ent := range rest {
		if string(ent.Name) != string(all[i+2].Name) {
			t.Fatalf("expected resumed entry %d to be %q, got %q", i, all[i+2].Name, ent.Name)
		}
	}
}

// The reader duplicates the directory descriptor, so iterating must never
// move the caller's descriptor and closing twice must stay a no-op.
func TestDirReaderOwnsItsDescriptor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fd := openDir(t, dir)

	before := openFDCount(t)
	r, err := OpenDirReader(fd, 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	collectEntries(t, r)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("expected a second close to be a no-op, got %v", err)
	}
	if after := openFDCount(t); after != before {
		t.Fatalf("descriptor leak: %d open before, %d after", before, after)
	}

	// the original descriptor still works
	if _, err := unix.Seek(fd, 0, 0); err != nil {
		t.Fatalf("expected the caller's descriptor to stay usable: %v", err)
	}
}

func TestStripPadding(t *testing.T) {
	var tcs = []struct {
		in       []byte
		expected string
	}{
		{[]byte("name\x00\x00\x00"), "name"},
		{[]byte("a\x00"), "a"},
		{[]byte("\x00"), ""},
	}
	for _, tc := range tcs {
		if got := string(stripPadding(tc.in)); got != tc.expected {
			t.Errorf("stripPadding(%q) => %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestStripPaddingPanicsWithoutTerminator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a name with no nul terminator")
		}
	}()
	stripPadding([]byte("unterminated"))
}
