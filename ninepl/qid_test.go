package ninepl

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestQidPathStableForSameObject(t *testing.T) {
	pool := NewQidPool()
	a := pool.path(3, 77)
	b := pool.path(3, 77)
	if a != b {
		t.Fatalf("expected the same (dev, ino) to produce the same path: %d != %d", a, b)
	}
}

func TestQidPathDistinguishesObjects(t *testing.T) {
	pool := NewQidPool()
	if pool.path(3, 77) == pool.path(3, 78) {
		t.Fatalf("expected different inodes to produce different paths")
	}
	if pool.path(3, 77) == pool.path(4, 77) {
		t.Fatalf("expected different devices to produce different paths")
	}
}

func TestQidPathSurvivesCacheEviction(t *testing.T) {
	pool := NewQidPool()
	want := pool.path(1, 1)
	for i := uint64(0); i < qidCacheSize+16; i++ {
		pool.path(2, i)
	}
	if got := pool.path(1, 1); got != want {
		t.Fatalf("expected path to be stable across eviction: %d != %d", got, want)
	}
}

func TestQidTypeForMode(t *testing.T) {
	var tcs = []struct {
		mode uint32
		want QidType
	}{
		{unix.S_IFDIR | 0o755, QT_DIR},
		{unix.S_IFLNK | 0o777, QT_SYMLINK},
		{unix.S_IFREG | 0o644, QT_FILE},
		{unix.S_IFIFO | 0o600, QT_FILE},
	}
	for _, tc := range tcs {
		if got := qidTypeForMode(tc.mode); got != tc.want {
			t.Errorf("qidTypeForMode(%#o) => %#x, expected %#x", tc.mode, got, tc.want)
		}
	}
}

func TestQidForStat(t *testing.T) {
	pool := NewQidPool()
	st := unix.Stat_t{Mode: unix.S_IFDIR | 0o755, Dev: 9, Ino: 10}
	st.Mtim.Sec = 1234
	q := pool.QidForStat(&st)
	if !q.Type().IsDir() {
		t.Fatalf("expected a directory qid, got %#x", byte(q.Type()))
	}
	if q.Version() != 1234 {
		t.Fatalf("expected version from mtime: %d != %d", q.Version(), 1234)
	}
	if q.Path() != pool.path(9, 10) {
		t.Fatalf("expected path to match the pool's derivation")
	}
}
