package ninepl

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"
)

// devIno identifies a filesystem object on the host; the same (device, inode)
// pair must always produce the same qid path so guests can detect identity.
type devIno struct {
	dev uint64
	ino uint64
}

// QidPool derives wire qids from host stat results. Paths are a 64-bit
// BLAKE2b digest of (device, inode) so they are stable across requests
// without handing raw inode numbers to the guest. A bounded LRU keeps
// recently derived paths around; eviction is harmless since rehashing is
// deterministic.
type QidPool struct {
	m     sync.Mutex
	cache *lru.Cache[devIno, uint64]
}

const qidCacheSize = 4096

func NewQidPool() *QidPool {
	cache, err := lru.New[devIno, uint64](qidCacheSize)
	if err != nil {
		panic(err) // only fails on a non-positive size
	}
	return &QidPool{cache: cache}
}

func (p *QidPool) path(dev, ino uint64) uint64 {
	key := devIno{dev, ino}
	p.m.Lock()
	defer p.m.Unlock()
	if v, ok := p.cache.Get(key); ok {
		return v
	}
	var b [16]byte
	bo.PutUint64(b[:8], dev)
	bo.PutUint64(b[8:], ino)
	sum := blake2b.Sum512(b[:])
	v := bo.Uint64(sum[:8])
	p.cache.Add(key, v)
	return v
}

// QidForStat fills and returns a qid for a host stat result.
func (p *QidPool) QidForStat(st *unix.Stat_t) Qid {
	return NewQid().Fill(
		qidTypeForMode(st.Mode),
		uint32(st.Mtim.Sec),
		p.path(st.Dev, st.Ino),
	)
}

func qidTypeForMode(mode uint32) QidType {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return QT_DIR
	case unix.S_IFLNK:
		return QT_SYMLINK
	default:
		return QT_FILE
	}
}
