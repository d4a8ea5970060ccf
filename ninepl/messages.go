// Package ninepl implements the host side of the 9P2000.L protocol for
// exporting a local directory subtree to a virtual machine guest.
package ninepl

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

type Message interface {
	Tag() Tag
	Bytes() []byte
}

const (
	NO_TAG Tag = ^Tag(0)
	NO_FID Fid = ^Fid(0)

	VERSION_9P2000L string = "9P2000.L"

	// The smallest msize we will negotiate. Must cover the largest
	// fixed-size reply (Rwalk with MAXWELEM qids, Rgetattr) with room to
	// spare so reply fillers never outgrow the out buffer.
	MIN_MESSAGE_SIZE = uint32(4096)
)

// The default maximum size of 9p message blocks. Should never be below MIN_MESSAGE_SIZE
var DEFAULT_MAX_MESSAGE_SIZE uint32

func init() {
	s := uint32(os.Getpagesize() * 8)
	if s < MIN_MESSAGE_SIZE {
		s = MIN_MESSAGE_SIZE
	}
	DEFAULT_MAX_MESSAGE_SIZE = s
}

type MsgType byte

// Message type numbers per the 9P2000.L draft. Tlerror is illegal; servers
// only ever emit Rlerror.
const (
	msgRlerror   MsgType = 7   // size[4] Rlerror tag[2] ecode[4]
	msgTstatfs   MsgType = 8   // size[4] Tstatfs tag[2] fid[4]
	msgRstatfs   MsgType = 9   // size[4] Rstatfs tag[2] type[4] bsize[4] blocks[8] bfree[8] bavail[8] files[8] ffree[8] fsid[8] namelen[4]
	msgTlopen    MsgType = 12  // size[4] Tlopen tag[2] fid[4] flags[4]
	msgRlopen    MsgType = 13  // size[4] Rlopen tag[2] qid[13] iounit[4]
	msgTlcreate  MsgType = 14  // size[4] Tlcreate tag[2] fid[4] name[s] flags[4] mode[4] gid[4]
	msgRlcreate  MsgType = 15  // size[4] Rlcreate tag[2] qid[13] iounit[4]
	msgTsymlink  MsgType = 16  // size[4] Tsymlink tag[2] fid[4] name[s] symtgt[s] gid[4]
	msgRsymlink  MsgType = 17  // size[4] Rsymlink tag[2] qid[13]
	msgTrename   MsgType = 20  // size[4] Trename tag[2] fid[4] dfid[4] name[s]
	msgRrename   MsgType = 21  // size[4] Rrename tag[2]
	msgTreadlink MsgType = 22  // size[4] Treadlink tag[2] fid[4]
	msgRreadlink MsgType = 23  // size[4] Rreadlink tag[2] target[s]
	msgTgetattr  MsgType = 24  // size[4] Tgetattr tag[2] fid[4] request_mask[8]
	msgRgetattr  MsgType = 25  // size[4] Rgetattr tag[2] valid[8] qid[13] mode[4] uid[4] gid[4] nlink[8] rdev[8] size[8] blksize[8] blocks[8] atime[16] mtime[16] ctime[16] btime[16] gen[8] data_version[8]
	msgTsetattr  MsgType = 26  // size[4] Tsetattr tag[2] fid[4] valid[4] mode[4] uid[4] gid[4] size[8] atime[16] mtime[16]
	msgRsetattr  MsgType = 27  // size[4] Rsetattr tag[2]
	msgTreaddir  MsgType = 40  // size[4] Treaddir tag[2] fid[4] offset[8] count[4]
	msgRreaddir  MsgType = 41  // size[4] Rreaddir tag[2] count[4] data[count]
	msgTfsync    MsgType = 50  // size[4] Tfsync tag[2] fid[4]
	msgRfsync    MsgType = 51  // size[4] Rfsync tag[2]
	msgTlink     MsgType = 70  // size[4] Tlink tag[2] dfid[4] fid[4] name[s]
	msgRlink     MsgType = 71  // size[4] Rlink tag[2]
	msgTmkdir    MsgType = 72  // size[4] Tmkdir tag[2] dfid[4] name[s] mode[4] gid[4]
	msgRmkdir    MsgType = 73  // size[4] Rmkdir tag[2] qid[13]
	msgTrenameat MsgType = 74  // size[4] Trenameat tag[2] olddirfid[4] oldname[s] newdirfid[4] newname[s]
	msgRrenameat MsgType = 75  // size[4] Rrenameat tag[2]
	msgTunlinkat MsgType = 76  // size[4] Tunlinkat tag[2] dirfd[4] name[s] flags[4]
	msgRunlinkat MsgType = 77  // size[4] Runlinkat tag[2]
	msgTversion  MsgType = 100 // size[4] Tversion tag[2] msize[4] version[s]
	msgRversion  MsgType = 101 // size[4] Rversion tag[2] msize[4] version[s]
	msgTauth     MsgType = 102 // size[4] Tauth tag[2] afid[4] uname[s] aname[s] n_uname[4]
	msgRauth     MsgType = 103 // size[4] Rauth tag[2] aqid[13]
	msgTattach   MsgType = 104 // size[4] Tattach tag[2] fid[4] afid[4] uname[s] aname[s] n_uname[4]
	msgRattach   MsgType = 105 // size[4] Rattach tag[2] qid[13]
	msgTflush    MsgType = 108 // size[4] Tflush tag[2] oldtag[2]
	msgRflush    MsgType = 109 // size[4] Rflush tag[2]
	msgTwalk     MsgType = 110 // size[4] Twalk tag[2] fid[4] newfid[4] nwname[2] nwname*(wname[s])
	msgRwalk     MsgType = 111 // size[4] Rwalk tag[2] nwqid[2] nwqid*(wqid[13])
	msgTread     MsgType = 116 // size[4] Tread tag[2] fid[4] offset[8] count[4]
	msgRread     MsgType = 117 // size[4] Rread tag[2] count[4] data[count]
	msgTwrite    MsgType = 118 // size[4] Twrite tag[2] fid[4] offset[8] count[4] data[count]
	msgRwrite    MsgType = 119 // size[4] Rwrite tag[2] count[4]
	msgTclunk    MsgType = 120 // size[4] Tclunk tag[2] fid[4]
	msgRclunk    MsgType = 121 // size[4] Rclunk tag[2]
	msgTremove   MsgType = 122 // size[4] Tremove tag[2] fid[4]
	msgRremove   MsgType = 123 // size[4] Rremove tag[2]
)

func (t MsgType) String() string {
	switch t {
	case msgRlerror:
		return "msgRlerror"
	case msgTstatfs:
		return "msgTstatfs"
	case msgRstatfs:
		return "msgRstatfs"
	case msgTlopen:
		return "msgTlopen"
	case msgRlopen:
		return "msgRlopen"
	case msgTlcreate:
		return "msgTlcreate"
	case msgRlcreate:
		return "msgRlcreate"
	case msgTsymlink:
		return "msgTsymlink"
	case msgRsymlink:
		return "msgRsymlink"
	case msgTrename:
		return "msgTrename"
	case msgRrename:
		return "msgRrename"
	case msgTreadlink:
		return "msgTreadlink"
	case msgRreadlink:
		return "msgRreadlink"
	case msgTgetattr:
		return "msgTgetattr"
	case msgRgetattr:
		return "msgRgetattr"
	case msgTsetattr:
		return "msgTsetattr"
	case msgRsetattr:
		return "msgRsetattr"
	case msgTreaddir:
		return "msgTreaddir"
	case msgRreaddir:
		return "msgRreaddir"
	case msgTfsync:
		return "msgTfsync"
	case msgRfsync:
		return "msgRfsync"
	case msgTlink:
		return "msgTlink"
	case msgRlink:
		return "msgRlink"
	case msgTmkdir:
		return "msgTmkdir"
	case msgRmkdir:
		return "msgRmkdir"
	case msgTrenameat:
		return "msgTrenameat"
	case msgRrenameat:
		return "msgRrenameat"
	case msgTunlinkat:
		return "msgTunlinkat"
	case msgRunlinkat:
		return "msgRunlinkat"
	case msgTversion:
		return "msgTversion"
	case msgRversion:
		return "msgRversion"
	case msgTauth:
		return "msgTauth"
	case msgRauth:
		return "msgRauth"
	case msgTattach:
		return "msgTattach"
	case msgRattach:
		return "msgRattach"
	case msgTflush:
		return "msgTflush"
	case msgRflush:
		return "msgRflush"
	case msgTwalk:
		return "msgTwalk"
	case msgRwalk:
		return "msgRwalk"
	case msgTread:
		return "msgTread"
	case msgRread:
		return "msgRread"
	case msgTwrite:
		return "msgTwrite"
	case msgRwrite:
		return "msgRwrite"
	case msgTclunk:
		return "msgTclunk"
	case msgRclunk:
		return "msgRclunk"
	case msgTremove:
		return "msgTremove"
	case msgRremove:
		return "msgRremove"
	}
	return fmt.Sprintf("MsgType(%d)", byte(t))
}

var bo = binary.LittleEndian

/////////////////////////////////////

type Tag uint16

/////////////////////////////////////

type MsgBase []byte

func (r MsgBase) fill(mt MsgType, t Tag, size uint32) {
	bo.PutUint32(r[:4], size)       // Size
	r[4] = byte(mt)                 // MsgType
	bo.PutUint16(r[5:7], uint16(t)) // Tag
}

func (r MsgBase) Bytes() []byte { return r[:int(r.Size())] }
func (r MsgBase) Size() uint32  { return bo.Uint32(r[:4]) }
func (r MsgBase) Type() MsgType { return MsgType(r[4]) }
func (r MsgBase) Tag() Tag      { return Tag(bo.Uint16(r[5:7])) }

const msgOffset = 7

// payloadFits reports whether the declared message size covers n payload bytes.
func (r MsgBase) payloadFits(n int) bool {
	return int(r.Size()) >= msgOffset+n
}

// strEnd bounds-checks the length-prefixed string starting at off and returns
// the offset just past it, or -1 when its declared length runs past the
// message's declared size.
func (r MsgBase) strEnd(off int) int {
	size := int(r.Size())
	if off+2 > size {
		return -1
	}
	n := int(bo.Uint16(r[off : off+2]))
	if off+2+n > size {
		return -1
	}
	return off + 2 + n
}

/////////////////////////////////////

type msgString []byte

const maxStringLen = math.MaxUint16

func (s msgString) Len() uint16     { return bo.Uint16(s[0:2]) }
func (s msgString) SetLen(v uint16) { bo.PutUint16(s[0:2], v) }
func (s msgString) Bytes() []byte   { return s[2 : s.Len()+2] }
func (s msgString) SetBytesAndLen(b []byte) {
	s.SetLen(uint16(len(b)))
	copy(s[2:len(b)+2], b)
}
func (s msgString) String() string { return string(s.Bytes()) }
func (s msgString) SetStringAndLen(v string) int {
	if len(v) > maxStringLen {
		panic(fmt.Errorf("string is too large (%d > %d)", len(v), maxStringLen))
	}
	s.SetLen(uint16(len(v)))
	copy(s[2:len(v)+2], v)
	return 2 + len(v)
}
func (s msgString) Nbytes() int { return int(s.Len()) + 2 }

/////////////////////////////////////

type Fid uint32 // always size 4

func (f Fid) String() string { return fmt.Sprintf("Fid(%d)", uint32(f)) }

/////////////////////////////////////

type QidType byte

const (
	QT_FILE    QidType = 0x00
	QT_SYMLINK QidType = 0x02
	QT_TMP     QidType = 0x04
	QT_AUTH    QidType = 0x08
	QT_MOUNT   QidType = 0x10
	QT_EXCL    QidType = 0x20
	QT_APPEND  QidType = 0x40
	QT_DIR     QidType = 0x80
)

func (qt QidType) IsDir() bool     { return qt&QT_DIR != 0 }
func (qt QidType) IsSymLink() bool { return qt&QT_SYMLINK != 0 }

const QidSize = 13

type Qid []byte // always size 13

func NewQid() Qid { return Qid(make([]byte, QidSize)) }

func (q Qid) Fill(t QidType, version uint32, path uint64) Qid {
	q[0] = byte(t)
	bo.PutUint32(q[1:5], version)
	bo.PutUint64(q[5:13], path)
	return q
}

func (q Qid) Bytes() []byte   { return q[:QidSize] }
func (q Qid) Type() QidType   { return QidType(q[0]) }
func (q Qid) Version() uint32 { return bo.Uint32(q[1:5]) }
func (q Qid) Path() uint64    { return bo.Uint64(q[5 : 5+8]) }

func (q Qid) Clone() Qid {
	qid := make(Qid, len(q))
	copy(qid, q)
	return qid
}

func (q Qid) String() string {
	return fmt.Sprintf("Qid{ type: %#x, version: %v, path: %v }", byte(q.Type()), q.Version(), q.Path())
}

/////////////////////////////////////

// OpenFlags carries Linux open(2) flag values, which is what Tlopen and
// Tlcreate put on the wire.
type OpenFlags uint32

const (
	L_O_RDONLY    OpenFlags = 0x0
	L_O_WRONLY    OpenFlags = 0x1
	L_O_RDWR      OpenFlags = 0x2
	L_O_CREATE    OpenFlags = 0x40
	L_O_EXCL      OpenFlags = 0x80
	L_O_TRUNC     OpenFlags = 0x200
	L_O_APPEND    OpenFlags = 0x400
	L_O_NONBLOCK  OpenFlags = 0x800
	L_O_DSYNC     OpenFlags = 0x1000
	L_O_DIRECT    OpenFlags = 0x4000
	L_O_LARGEFILE OpenFlags = 0x8000
	L_O_DIRECTORY OpenFlags = 0x10000
	L_O_NOFOLLOW  OpenFlags = 0x20000
	L_O_SYNC      OpenFlags = 0x101000

	L_O_ACCMODE OpenFlags = 0x3
)

func (f OpenFlags) IsReadable() bool {
	a := f & L_O_ACCMODE
	return a == L_O_RDONLY || a == L_O_RDWR
}

func (f OpenFlags) IsWriteable() bool {
	a := f & L_O_ACCMODE
	return a == L_O_WRONLY || a == L_O_RDWR
}

/////////////////////////////////////

// Attr is the fixed-size attribute block carried by Rgetattr.
type Attr struct {
	Valid       uint64
	Qid         Qid
	Mode        uint32
	Uid         uint32
	Gid         uint32
	Nlink       uint64
	Rdev        uint64
	Size        uint64
	Blksize     uint64
	Blocks      uint64
	AtimeSec    uint64
	AtimeNsec   uint64
	MtimeSec    uint64
	MtimeNsec   uint64
	CtimeSec    uint64
	CtimeNsec   uint64
	BtimeSec    uint64
	BtimeNsec   uint64
	Gen         uint64
	DataVersion uint64
}

// Tgetattr request_mask bits.
const (
	GETATTR_MODE   uint64 = 0x1
	GETATTR_NLINK  uint64 = 0x2
	GETATTR_UID    uint64 = 0x4
	GETATTR_GID    uint64 = 0x8
	GETATTR_RDEV   uint64 = 0x10
	GETATTR_ATIME  uint64 = 0x20
	GETATTR_MTIME  uint64 = 0x40
	GETATTR_CTIME  uint64 = 0x80
	GETATTR_INO    uint64 = 0x100
	GETATTR_SIZE   uint64 = 0x200
	GETATTR_BLOCKS uint64 = 0x400

	GETATTR_BASIC uint64 = 0x7ff
	GETATTR_ALL   uint64 = 0x3fff
)

// Tsetattr valid bits.
const (
	SETATTR_MODE      uint32 = 0x1
	SETATTR_UID       uint32 = 0x2
	SETATTR_GID       uint32 = 0x4
	SETATTR_SIZE      uint32 = 0x8
	SETATTR_ATIME     uint32 = 0x10
	SETATTR_MTIME     uint32 = 0x20
	SETATTR_CTIME     uint32 = 0x40
	SETATTR_ATIME_SET uint32 = 0x80
	SETATTR_MTIME_SET uint32 = 0x100
)

// Statfs is the fixed-size block carried by Rstatfs.
type Statfs struct {
	Type    uint32
	Bsize   uint32
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Fsid    uint64
	Namelen uint32
}

/////////////////////////////////////
// size[4] Tversion tag[2] msize[4] version[s]
type Tversion []byte

func (r Tversion) fill(t Tag, maxMessageSize uint32, version string) {
	size := uint32(msgOffset + 4 + 2 + len(version))
	MsgBase(r).fill(msgTversion, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], maxMessageSize)
	msgString(r[msgOffset+4:]).SetStringAndLen(version)
}

func (r Tversion) Bytes() []byte   { return MsgBase(r).Bytes() }
func (r Tversion) Size() uint32    { return MsgBase(r).Size() }
func (r Tversion) Tag() Tag        { return MsgBase(r).Tag() }
func (r Tversion) MsgSize() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }

func (r Tversion) version() msgString { return msgString(r[msgOffset+4:]) }
func (r Tversion) Version() string    { return r.version().String() }

func (r Tversion) valid() bool {
	mb := MsgBase(r)
	return mb.payloadFits(4+2) && mb.strEnd(msgOffset+4) == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rversion tag[2] msize[4] version[s]
type Rversion []byte

func (r Rversion) fill(t Tag, maxMessageSize uint32, version string) {
	MsgBase(r).fill(msgRversion, t, uint32(msgOffset+4+2+len(version)))
	bo.PutUint32(r[msgOffset:msgOffset+4], maxMessageSize)
	msgString(r[msgOffset+4:]).SetStringAndLen(version)
}

func (r Rversion) Bytes() []byte   { return MsgBase(r).Bytes() }
func (r Rversion) Size() uint32    { return MsgBase(r).Size() }
func (r Rversion) Tag() Tag        { return MsgBase(r).Tag() }
func (r Rversion) MsgSize() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }

func (r Rversion) version() msgString { return msgString(r[msgOffset+4:]) }
func (r Rversion) Version() string    { return r.version().String() }

/////////////////////////////////////
// size[4] Rlerror tag[2] ecode[4]
type Rlerror []byte

func (r Rlerror) fill(t Tag, ecode uint32) {
	MsgBase(r).fill(msgRlerror, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], ecode)
}

func (r Rlerror) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rlerror) Size() uint32  { return MsgBase(r).Size() }
func (r Rlerror) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rlerror) Ecode() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }

/////////////////////////////////////
// size[4] Tauth tag[2] afid[4] uname[s] aname[s] n_uname[4]
type Tauth []byte

func (r Tauth) fill(t Tag, afid Fid, uname, aname string, nUname uint32) {
	MsgBase(r).fill(msgTauth, t, uint32(msgOffset+4+2+len(uname)+2+len(aname)+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(afid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(uname)
	off += msgString(r[off:]).SetStringAndLen(aname)
	bo.PutUint32(r[off:off+4], nUname)
}

func (r Tauth) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tauth) Size() uint32  { return MsgBase(r).Size() }
func (r Tauth) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tauth) Afid() Fid     { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tauth) uname() msgString { return msgString(r[msgOffset+4:]) }
func (r Tauth) Uname() string    { return r.uname().String() }
func (r Tauth) aname() msgString { return msgString(r[msgOffset+4+r.uname().Nbytes():]) }
func (r Tauth) Aname() string    { return r.aname().String() }

func (r Tauth) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 {
		return false
	}
	off = mb.strEnd(off)
	if off < 0 {
		return false
	}
	return off+4 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Tattach tag[2] fid[4] afid[4] uname[s] aname[s] n_uname[4]
type Tattach []byte

func (r Tattach) fill(t Tag, fid, afid Fid, uname, aname string, nUname uint32) {
	size := uint32(msgOffset + 4 + 4 + 2 + len(uname) + 2 + len(aname) + 4)
	MsgBase(r).fill(msgTattach, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint32(r[msgOffset+4:msgOffset+8], uint32(afid))
	off := msgOffset + 8
	off += msgString(r[off:]).SetStringAndLen(uname)
	off += msgString(r[off:]).SetStringAndLen(aname)
	bo.PutUint32(r[off:off+4], nUname)
}

func (r Tattach) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tattach) Size() uint32  { return MsgBase(r).Size() }
func (r Tattach) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tattach) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tattach) Afid() Fid     { return Fid(bo.Uint32(r[msgOffset+4 : msgOffset+8])) }

func (r Tattach) uname() msgString { return msgString(r[msgOffset+8:]) }
func (r Tattach) Uname() string    { return r.uname().String() }
func (r Tattach) aname() msgString { return msgString(r[msgOffset+8+r.uname().Nbytes():]) }
func (r Tattach) Aname() string    { return r.aname().String() }
func (r Tattach) NUname() uint32 {
	off := msgOffset + 8 + r.uname().Nbytes() + r.aname().Nbytes()
	return bo.Uint32(r[off : off+4])
}

func (r Tattach) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 8)
	if off < 0 {
		return false
	}
	off = mb.strEnd(off)
	if off < 0 {
		return false
	}
	return off+4 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rattach tag[2] qid[13]
type Rattach []byte

func (r Rattach) fill(t Tag, qid Qid) {
	MsgBase(r).fill(msgRattach, t, uint32(msgOffset+QidSize))
	copy(r[msgOffset:msgOffset+QidSize], qid.Bytes())
}

func (r Rattach) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rattach) Size() uint32  { return MsgBase(r).Size() }
func (r Rattach) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rattach) Qid() Qid      { return Qid(r[msgOffset : msgOffset+QidSize]) }

/////////////////////////////////////
// size[4] Tflush tag[2] oldtag[2]
type Tflush []byte

func (r Tflush) fill(t Tag, oldTag Tag) {
	MsgBase(r).fill(msgTflush, t, uint32(msgOffset+2))
	bo.PutUint16(r[msgOffset:msgOffset+2], uint16(oldTag))
}

func (r Tflush) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tflush) Size() uint32  { return MsgBase(r).Size() }
func (r Tflush) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tflush) OldTag() Tag   { return Tag(bo.Uint16(r[msgOffset : msgOffset+2])) }

func (r Tflush) valid() bool { return MsgBase(r).payloadFits(2) }

/////////////////////////////////////
// size[4] Rflush tag[2]
type Rflush []byte

func (r Rflush) fill(t Tag) { MsgBase(r).fill(msgRflush, t, uint32(msgOffset)) }

func (r Rflush) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rflush) Size() uint32  { return MsgBase(r).Size() }
func (r Rflush) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Twalk tag[2] fid[4] newfid[4] nwname[2] nwname*(wname[s])

// A maximum of sixteen name elements may be packed in a single walk message,
// per the protocol (MAXWELEM in fcall(3)).
const MAXWELEM = 16

type Twalk []byte

func (r Twalk) fill(t Tag, fid, newfid Fid, wnames []string) {
	size := uint32(msgOffset + 4 + 4 + 2 + 2*len(wnames))
	for _, n := range wnames {
		size += uint32(len(n))
	}
	MsgBase(r).fill(msgTwalk, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint32(r[msgOffset+4:msgOffset+8], uint32(newfid))
	bo.PutUint16(r[msgOffset+8:msgOffset+10], uint16(len(wnames)))
	off := msgOffset + 10
	for _, n := range wnames {
		off += msgString(r[off:]).SetStringAndLen(n)
	}
}

func (r Twalk) Bytes() []byte    { return MsgBase(r).Bytes() }
func (r Twalk) Size() uint32     { return MsgBase(r).Size() }
func (r Twalk) Tag() Tag         { return MsgBase(r).Tag() }
func (r Twalk) Fid() Fid         { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Twalk) NewFid() Fid      { return Fid(bo.Uint32(r[msgOffset+4 : msgOffset+8])) }
func (r Twalk) NumWname() uint16 { return bo.Uint16(r[msgOffset+8 : msgOffset+10]) }

func (r Twalk) Wnames() []string {
	names := make([]string, 0, MAXWELEM)
	off := msgOffset + 10
	size := int(r.NumWname())
	for j := 0; j < size; j++ {
		mstr := msgString(r[off:])
		names = append(names, mstr.String())
		off += mstr.Nbytes()
	}
	return names
}

func (r Twalk) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 4 + 2) {
		return false
	}
	n := int(r.NumWname())
	if n > MAXWELEM {
		return false
	}
	off := msgOffset + 10
	for j := 0; j < n; j++ {
		off = mb.strEnd(off)
		if off < 0 {
			return false
		}
	}
	return off == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rwalk tag[2] nwqid[2] nwqid*(wqid[13])
type Rwalk []byte

func (r Rwalk) fill(t Tag, wqids []Qid) {
	size := uint32(msgOffset + 2 + len(wqids)*QidSize)
	MsgBase(r).fill(msgRwalk, t, size)
	bo.PutUint16(r[msgOffset:msgOffset+2], uint16(len(wqids)))
	off := msgOffset + 2
	for i, wqid := range wqids {
		o := off + i*QidSize
		copy(r[o:o+QidSize], wqid.Bytes())
	}
}

func (r Rwalk) Bytes() []byte   { return MsgBase(r).Bytes() }
func (r Rwalk) Size() uint32    { return MsgBase(r).Size() }
func (r Rwalk) Tag() Tag        { return MsgBase(r).Tag() }
func (r Rwalk) NumWqid() uint16 { return bo.Uint16(r[msgOffset : msgOffset+2]) }
func (r Rwalk) Wqid(i int) Qid {
	off := msgOffset + 2 + i*QidSize
	return Qid(r[off : off+QidSize])
}

/////////////////////////////////////
// size[4] Tlopen tag[2] fid[4] flags[4]
type Tlopen []byte

func (r Tlopen) fill(t Tag, fid Fid, flags OpenFlags) {
	MsgBase(r).fill(msgTlopen, t, uint32(msgOffset+4+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint32(r[msgOffset+4:msgOffset+8], uint32(flags))
}

func (r Tlopen) Bytes() []byte    { return MsgBase(r).Bytes() }
func (r Tlopen) Size() uint32     { return MsgBase(r).Size() }
func (r Tlopen) Tag() Tag         { return MsgBase(r).Tag() }
func (r Tlopen) Fid() Fid         { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tlopen) Flags() OpenFlags { return OpenFlags(bo.Uint32(r[msgOffset+4 : msgOffset+8])) }

func (r Tlopen) valid() bool { return MsgBase(r).payloadFits(4 + 4) }

/////////////////////////////////////
// size[4] Rlopen tag[2] qid[13] iounit[4]
type Rlopen []byte

func (r Rlopen) fill(t Tag, qid Qid, iounit uint32) {
	MsgBase(r).fill(msgRlopen, t, uint32(msgOffset+QidSize+4))
	copy(r[msgOffset:msgOffset+QidSize], qid.Bytes())
	bo.PutUint32(r[msgOffset+QidSize:msgOffset+QidSize+4], iounit)
}

func (r Rlopen) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Rlopen) Size() uint32   { return MsgBase(r).Size() }
func (r Rlopen) Tag() Tag       { return MsgBase(r).Tag() }
func (r Rlopen) Qid() Qid       { return Qid(r[msgOffset : msgOffset+QidSize]) }
func (r Rlopen) Iounit() uint32 { return bo.Uint32(r[msgOffset+QidSize : msgOffset+QidSize+4]) }

/////////////////////////////////////
// size[4] Tlcreate tag[2] fid[4] name[s] flags[4] mode[4] gid[4]
type Tlcreate []byte

func (r Tlcreate) fill(t Tag, fid Fid, name string, flags OpenFlags, mode, gid uint32) {
	size := uint32(msgOffset + 4 + 2 + len(name) + 4 + 4 + 4)
	MsgBase(r).fill(msgTlcreate, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(name)
	bo.PutUint32(r[off:off+4], uint32(flags))
	bo.PutUint32(r[off+4:off+8], mode)
	bo.PutUint32(r[off+8:off+12], gid)
}

func (r Tlcreate) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tlcreate) Size() uint32  { return MsgBase(r).Size() }
func (r Tlcreate) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tlcreate) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tlcreate) name() msgString { return msgString(r[msgOffset+4:]) }
func (r Tlcreate) Name() string    { return r.name().String() }

func (r Tlcreate) Flags() OpenFlags {
	o := msgOffset + 4 + r.name().Nbytes()
	return OpenFlags(bo.Uint32(r[o : o+4]))
}
func (r Tlcreate) Mode() uint32 {
	o := msgOffset + 4 + r.name().Nbytes() + 4
	return bo.Uint32(r[o : o+4])
}
func (r Tlcreate) Gid() uint32 {
	o := msgOffset + 4 + r.name().Nbytes() + 8
	return bo.Uint32(r[o : o+4])
}

func (r Tlcreate) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 {
		return false
	}
	return off+12 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rlcreate tag[2] qid[13] iounit[4]
type Rlcreate []byte

func (r Rlcreate) fill(t Tag, qid Qid, iounit uint32) {
	MsgBase(r).fill(msgRlcreate, t, uint32(msgOffset+QidSize+4))
	copy(r[msgOffset:msgOffset+QidSize], qid.Bytes())
	bo.PutUint32(r[msgOffset+QidSize:msgOffset+QidSize+4], iounit)
}

func (r Rlcreate) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Rlcreate) Size() uint32   { return MsgBase(r).Size() }
func (r Rlcreate) Tag() Tag       { return MsgBase(r).Tag() }
func (r Rlcreate) Qid() Qid       { return Qid(r[msgOffset : msgOffset+QidSize]) }
func (r Rlcreate) Iounit() uint32 { return bo.Uint32(r[msgOffset+QidSize : msgOffset+QidSize+4]) }

/////////////////////////////////////
// size[4] Tsymlink tag[2] fid[4] name[s] symtgt[s] gid[4]
type Tsymlink []byte

func (r Tsymlink) fill(t Tag, fid Fid, name, symtgt string, gid uint32) {
	size := uint32(msgOffset + 4 + 2 + len(name) + 2 + len(symtgt) + 4)
	MsgBase(r).fill(msgTsymlink, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(name)
	off += msgString(r[off:]).SetStringAndLen(symtgt)
	bo.PutUint32(r[off:off+4], gid)
}

func (r Tsymlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tsymlink) Size() uint32  { return MsgBase(r).Size() }
func (r Tsymlink) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tsymlink) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tsymlink) name() msgString   { return msgString(r[msgOffset+4:]) }
func (r Tsymlink) Name() string      { return r.name().String() }
func (r Tsymlink) symtgt() msgString { return msgString(r[msgOffset+4+r.name().Nbytes():]) }
func (r Tsymlink) Symtgt() string    { return r.symtgt().String() }
func (r Tsymlink) Gid() uint32 {
	o := msgOffset + 4 + r.name().Nbytes() + r.symtgt().Nbytes()
	return bo.Uint32(r[o : o+4])
}

func (r Tsymlink) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 {
		return false
	}
	off = mb.strEnd(off)
	if off < 0 {
		return false
	}
	return off+4 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rsymlink tag[2] qid[13]
type Rsymlink []byte

func (r Rsymlink) fill(t Tag, qid Qid) {
	MsgBase(r).fill(msgRsymlink, t, uint32(msgOffset+QidSize))
	copy(r[msgOffset:msgOffset+QidSize], qid.Bytes())
}

func (r Rsymlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rsymlink) Size() uint32  { return MsgBase(r).Size() }
func (r Rsymlink) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rsymlink) Qid() Qid      { return Qid(r[msgOffset : msgOffset+QidSize]) }

/////////////////////////////////////
// size[4] Trename tag[2] fid[4] dfid[4] name[s]
type Trename []byte

func (r Trename) fill(t Tag, fid, dfid Fid, name string) {
	size := uint32(msgOffset + 4 + 4 + 2 + len(name))
	MsgBase(r).fill(msgTrename, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint32(r[msgOffset+4:msgOffset+8], uint32(dfid))
	msgString(r[msgOffset+8:]).SetStringAndLen(name)
}

func (r Trename) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Trename) Size() uint32  { return MsgBase(r).Size() }
func (r Trename) Tag() Tag      { return MsgBase(r).Tag() }
func (r Trename) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Trename) Dfid() Fid     { return Fid(bo.Uint32(r[msgOffset+4 : msgOffset+8])) }

func (r Trename) name() msgString { return msgString(r[msgOffset+8:]) }
func (r Trename) Name() string    { return r.name().String() }

func (r Trename) valid() bool {
	mb := MsgBase(r)
	return mb.payloadFits(4+4+2) && mb.strEnd(msgOffset+8) == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rrename tag[2]
type Rrename []byte

func (r Rrename) fill(t Tag) { MsgBase(r).fill(msgRrename, t, uint32(msgOffset)) }

func (r Rrename) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rrename) Size() uint32  { return MsgBase(r).Size() }
func (r Rrename) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Treadlink tag[2] fid[4]
type Treadlink []byte

func (r Treadlink) fill(t Tag, fid Fid) {
	MsgBase(r).fill(msgTreadlink, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
}

func (r Treadlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Treadlink) Size() uint32  { return MsgBase(r).Size() }
func (r Treadlink) Tag() Tag      { return MsgBase(r).Tag() }
func (r Treadlink) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Treadlink) valid() bool { return MsgBase(r).payloadFits(4) }

/////////////////////////////////////
// size[4] Rreadlink tag[2] target[s]
type Rreadlink []byte

func (r Rreadlink) fill(t Tag, target string) {
	MsgBase(r).fill(msgRreadlink, t, uint32(msgOffset+2+len(target)))
	msgString(r[msgOffset:]).SetStringAndLen(target)
}

func (r Rreadlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rreadlink) Size() uint32  { return MsgBase(r).Size() }
func (r Rreadlink) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rreadlink) Target() string {
	return msgString(r[msgOffset:]).String()
}

/////////////////////////////////////
// size[4] Tgetattr tag[2] fid[4] request_mask[8]
type Tgetattr []byte

func (r Tgetattr) fill(t Tag, fid Fid, mask uint64) {
	MsgBase(r).fill(msgTgetattr, t, uint32(msgOffset+4+8))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint64(r[msgOffset+4:msgOffset+12], mask)
}

func (r Tgetattr) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tgetattr) Size() uint32  { return MsgBase(r).Size() }
func (r Tgetattr) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tgetattr) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tgetattr) Mask() uint64  { return bo.Uint64(r[msgOffset+4 : msgOffset+12]) }

func (r Tgetattr) valid() bool { return MsgBase(r).payloadFits(4 + 8) }

/////////////////////////////////////
// size[4] Rgetattr tag[2] valid[8] qid[13] mode[4] uid[4] gid[4] nlink[8]
// rdev[8] size[8] blksize[8] blocks[8] atime[16] mtime[16] ctime[16]
// btime[16] gen[8] data_version[8]
type Rgetattr []byte

const rgetattrLen = 8 + QidSize + 4*3 + 8*15

func (r Rgetattr) fill(t Tag, a *Attr) {
	MsgBase(r).fill(msgRgetattr, t, uint32(msgOffset+rgetattrLen))
	off := msgOffset
	bo.PutUint64(r[off:off+8], a.Valid)
	off += 8
	copy(r[off:off+QidSize], a.Qid.Bytes())
	off += QidSize
	bo.PutUint32(r[off:off+4], a.Mode)
	off += 4
	bo.PutUint32(r[off:off+4], a.Uid)
	off += 4
	bo.PutUint32(r[off:off+4], a.Gid)
	off += 4
	for _, v := range []uint64{
		a.Nlink, a.Rdev, a.Size, a.Blksize, a.Blocks,
		a.AtimeSec, a.AtimeNsec, a.MtimeSec, a.MtimeNsec,
		a.CtimeSec, a.CtimeNsec, a.BtimeSec, a.BtimeNsec,
		a.Gen, a.DataVersion,
	} {
		bo.PutUint64(r[off:off+8], v)
		off += 8
	}
}

func (r Rgetattr) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rgetattr) Size() uint32  { return MsgBase(r).Size() }
func (r Rgetattr) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rgetattr) Valid() uint64 { return bo.Uint64(r[msgOffset : msgOffset+8]) }
func (r Rgetattr) Qid() Qid      { return Qid(r[msgOffset+8 : msgOffset+8+QidSize]) }
func (r Rgetattr) Mode() uint32  { return bo.Uint32(r[msgOffset+21 : msgOffset+25]) }
func (r Rgetattr) Uid() uint32   { return bo.Uint32(r[msgOffset+25 : msgOffset+29]) }
func (r Rgetattr) Gid() uint32   { return bo.Uint32(r[msgOffset+29 : msgOffset+33]) }
func (r Rgetattr) Nlink() uint64 { return bo.Uint64(r[msgOffset+33 : msgOffset+41]) }
func (r Rgetattr) Length() uint64 {
	return bo.Uint64(r[msgOffset+49 : msgOffset+57])
}
func (r Rgetattr) MtimeSec() uint64 {
	return bo.Uint64(r[msgOffset+89 : msgOffset+97])
}

/////////////////////////////////////
// size[4] Tsetattr tag[2] fid[4] valid[4] mode[4] uid[4] gid[4] size[8]
// atime_sec[8] atime_nsec[8] mtime_sec[8] mtime_nsec[8]
type Tsetattr []byte

const tsetattrLen = 4*5 + 8*5

func (r Tsetattr) fill(t Tag, fid Fid, valid, mode, uid, gid uint32, size, atimeSec, atimeNsec, mtimeSec, mtimeNsec uint64) {
	MsgBase(r).fill(msgTsetattr, t, uint32(msgOffset+tsetattrLen))
	off := msgOffset
	for _, v := range []uint32{uint32(fid), valid, mode, uid, gid} {
		bo.PutUint32(r[off:off+4], v)
		off += 4
	}
	for _, v := range []uint64{size, atimeSec, atimeNsec, mtimeSec, mtimeNsec} {
		bo.PutUint64(r[off:off+8], v)
		off += 8
	}
}

func (r Tsetattr) Bytes() []byte     { return MsgBase(r).Bytes() }
func (r Tsetattr) Size() uint32      { return MsgBase(r).Size() }
func (r Tsetattr) Tag() Tag          { return MsgBase(r).Tag() }
func (r Tsetattr) Fid() Fid          { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tsetattr) Valid() uint32     { return bo.Uint32(r[msgOffset+4 : msgOffset+8]) }
func (r Tsetattr) Mode() uint32      { return bo.Uint32(r[msgOffset+8 : msgOffset+12]) }
func (r Tsetattr) Uid() uint32       { return bo.Uint32(r[msgOffset+12 : msgOffset+16]) }
func (r Tsetattr) Gid() uint32       { return bo.Uint32(r[msgOffset+16 : msgOffset+20]) }
func (r Tsetattr) Length() uint64    { return bo.Uint64(r[msgOffset+20 : msgOffset+28]) }
func (r Tsetattr) AtimeSec() uint64  { return bo.Uint64(r[msgOffset+28 : msgOffset+36]) }
func (r Tsetattr) AtimeNsec() uint64 { return bo.Uint64(r[msgOffset+36 : msgOffset+44]) }
func (r Tsetattr) MtimeSec() uint64  { return bo.Uint64(r[msgOffset+44 : msgOffset+52]) }
func (r Tsetattr) MtimeNsec() uint64 { return bo.Uint64(r[msgOffset+52 : msgOffset+60]) }

func (r Tsetattr) valid() bool { return MsgBase(r).payloadFits(tsetattrLen) }

/////////////////////////////////////
// size[4] Rsetattr tag[2]
type Rsetattr []byte

func (r Rsetattr) fill(t Tag) { MsgBase(r).fill(msgRsetattr, t, uint32(msgOffset)) }

func (r Rsetattr) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rsetattr) Size() uint32  { return MsgBase(r).Size() }
func (r Rsetattr) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Treaddir tag[2] fid[4] offset[8] count[4]
type Treaddir []byte

func (r Treaddir) fill(t Tag, fid Fid, offset uint64, count uint32) {
	MsgBase(r).fill(msgTreaddir, t, uint32(msgOffset+4+8+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint64(r[msgOffset+4:msgOffset+12], offset)
	bo.PutUint32(r[msgOffset+12:msgOffset+16], count)
}

func (r Treaddir) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Treaddir) Size() uint32   { return MsgBase(r).Size() }
func (r Treaddir) Tag() Tag       { return MsgBase(r).Tag() }
func (r Treaddir) Fid() Fid       { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Treaddir) Offset() uint64 { return bo.Uint64(r[msgOffset+4 : msgOffset+12]) }
func (r Treaddir) Count() uint32  { return bo.Uint32(r[msgOffset+12 : msgOffset+16]) }

func (r Treaddir) valid() bool { return MsgBase(r).payloadFits(4 + 8 + 4) }

/////////////////////////////////////
// size[4] Rreaddir tag[2] count[4] data[count]
//
// data is a packed run of entries: qid[13] offset[8] type[1] name[s]
type Rreaddir []byte

func (r Rreaddir) fill(t Tag, count uint32) {
	MsgBase(r).fill(msgRreaddir, t, uint32(msgOffset+4+count))
	bo.PutUint32(r[msgOffset:msgOffset+4], count)
}

func (r Rreaddir) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rreaddir) Size() uint32  { return MsgBase(r).Size() }
func (r Rreaddir) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rreaddir) Count() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }
func (r Rreaddir) Data() []byte  { return r[msgOffset+4 : msgOffset+4+int(r.Count())] }

// Returns the whole entry area regardless of count; handlers pack entries
// here before calling fill.
func (r Rreaddir) DataNoLimit() []byte { return r[msgOffset+4:] }

// WireDirentSize returns the encoded size of one Rreaddir entry.
func WireDirentSize(name []byte) int { return QidSize + 8 + 1 + 2 + len(name) }

// PutWireDirent packs one entry at the start of b and returns its size.
// b must hold at least WireDirentSize(name) bytes.
func PutWireDirent(b []byte, q Qid, offset uint64, typ byte, name []byte) int {
	copy(b[:QidSize], q.Bytes())
	bo.PutUint64(b[QidSize:QidSize+8], offset)
	b[QidSize+8] = typ
	msgString(b[QidSize+9:]).SetBytesAndLen(name)
	return WireDirentSize(name)
}

/////////////////////////////////////
// size[4] Tfsync tag[2] fid[4]
type Tfsync []byte

func (r Tfsync) fill(t Tag, fid Fid) {
	MsgBase(r).fill(msgTfsync, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
}

func (r Tfsync) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tfsync) Size() uint32  { return MsgBase(r).Size() }
func (r Tfsync) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tfsync) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tfsync) valid() bool { return MsgBase(r).payloadFits(4) }

/////////////////////////////////////
// size[4] Rfsync tag[2]
type Rfsync []byte

func (r Rfsync) fill(t Tag) { MsgBase(r).fill(msgRfsync, t, uint32(msgOffset)) }

func (r Rfsync) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rfsync) Size() uint32  { return MsgBase(r).Size() }
func (r Rfsync) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Tlink tag[2] dfid[4] fid[4] name[s]
type Tlink []byte

func (r Tlink) fill(t Tag, dfid, fid Fid, name string) {
	MsgBase(r).fill(msgTlink, t, uint32(msgOffset+4+4+2+len(name)))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(dfid))
	bo.PutUint32(r[msgOffset+4:msgOffset+8], uint32(fid))
	msgString(r[msgOffset+8:]).SetStringAndLen(name)
}

func (r Tlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tlink) Size() uint32  { return MsgBase(r).Size() }
func (r Tlink) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tlink) Dfid() Fid     { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tlink) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset+4 : msgOffset+8])) }

func (r Tlink) name() msgString { return msgString(r[msgOffset+8:]) }
func (r Tlink) Name() string    { return r.name().String() }

func (r Tlink) valid() bool {
	mb := MsgBase(r)
	return mb.payloadFits(4+4+2) && mb.strEnd(msgOffset+8) == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rlink tag[2]
type Rlink []byte

func (r Rlink) fill(t Tag) { MsgBase(r).fill(msgRlink, t, uint32(msgOffset)) }

func (r Rlink) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rlink) Size() uint32  { return MsgBase(r).Size() }
func (r Rlink) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Tmkdir tag[2] dfid[4] name[s] mode[4] gid[4]
type Tmkdir []byte

func (r Tmkdir) fill(t Tag, dfid Fid, name string, mode, gid uint32) {
	size := uint32(msgOffset + 4 + 2 + len(name) + 4 + 4)
	MsgBase(r).fill(msgTmkdir, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(dfid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(name)
	bo.PutUint32(r[off:off+4], mode)
	bo.PutUint32(r[off+4:off+8], gid)
}

func (r Tmkdir) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tmkdir) Size() uint32  { return MsgBase(r).Size() }
func (r Tmkdir) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tmkdir) Dfid() Fid     { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tmkdir) name() msgString { return msgString(r[msgOffset+4:]) }
func (r Tmkdir) Name() string    { return r.name().String() }

func (r Tmkdir) Mode() uint32 {
	o := msgOffset + 4 + r.name().Nbytes()
	return bo.Uint32(r[o : o+4])
}
func (r Tmkdir) Gid() uint32 {
	o := msgOffset + 4 + r.name().Nbytes() + 4
	return bo.Uint32(r[o : o+4])
}

func (r Tmkdir) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 {
		return false
	}
	return off+8 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rmkdir tag[2] qid[13]
type Rmkdir []byte

func (r Rmkdir) fill(t Tag, qid Qid) {
	MsgBase(r).fill(msgRmkdir, t, uint32(msgOffset+QidSize))
	copy(r[msgOffset:msgOffset+QidSize], qid.Bytes())
}

func (r Rmkdir) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rmkdir) Size() uint32  { return MsgBase(r).Size() }
func (r Rmkdir) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rmkdir) Qid() Qid      { return Qid(r[msgOffset : msgOffset+QidSize]) }

/////////////////////////////////////
// size[4] Trenameat tag[2] olddirfid[4] oldname[s] newdirfid[4] newname[s]
type Trenameat []byte

func (r Trenameat) fill(t Tag, olddirfid Fid, oldname string, newdirfid Fid, newname string) {
	size := uint32(msgOffset + 4 + 2 + len(oldname) + 4 + 2 + len(newname))
	MsgBase(r).fill(msgTrenameat, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(olddirfid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(oldname)
	bo.PutUint32(r[off:off+4], uint32(newdirfid))
	msgString(r[off+4:]).SetStringAndLen(newname)
}

func (r Trenameat) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Trenameat) Size() uint32  { return MsgBase(r).Size() }
func (r Trenameat) Tag() Tag      { return MsgBase(r).Tag() }
func (r Trenameat) OldDirFid() Fid {
	return Fid(bo.Uint32(r[msgOffset : msgOffset+4]))
}

func (r Trenameat) oldname() msgString { return msgString(r[msgOffset+4:]) }
func (r Trenameat) OldName() string    { return r.oldname().String() }

func (r Trenameat) NewDirFid() Fid {
	o := msgOffset + 4 + r.oldname().Nbytes()
	return Fid(bo.Uint32(r[o : o+4]))
}

func (r Trenameat) newname() msgString {
	return msgString(r[msgOffset+4+r.oldname().Nbytes()+4:])
}
func (r Trenameat) NewName() string { return r.newname().String() }

func (r Trenameat) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 || !mb.payloadFits(off-msgOffset+4+2) {
		return false
	}
	return mb.strEnd(off+4) == int(mb.Size())
}

/////////////////////////////////////
// size[4] Rrenameat tag[2]
type Rrenameat []byte

func (r Rrenameat) fill(t Tag) { MsgBase(r).fill(msgRrenameat, t, uint32(msgOffset)) }

func (r Rrenameat) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rrenameat) Size() uint32  { return MsgBase(r).Size() }
func (r Rrenameat) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Tunlinkat tag[2] dirfd[4] name[s] flags[4]
type Tunlinkat []byte

func (r Tunlinkat) fill(t Tag, dirfid Fid, name string, flags uint32) {
	size := uint32(msgOffset + 4 + 2 + len(name) + 4)
	MsgBase(r).fill(msgTunlinkat, t, size)
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(dirfid))
	off := msgOffset + 4
	off += msgString(r[off:]).SetStringAndLen(name)
	bo.PutUint32(r[off:off+4], flags)
}

func (r Tunlinkat) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tunlinkat) Size() uint32  { return MsgBase(r).Size() }
func (r Tunlinkat) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tunlinkat) DirFid() Fid   { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tunlinkat) name() msgString { return msgString(r[msgOffset+4:]) }
func (r Tunlinkat) Name() string    { return r.name().String() }

func (r Tunlinkat) Flags() uint32 {
	o := msgOffset + 4 + r.name().Nbytes()
	return bo.Uint32(r[o : o+4])
}

func (r Tunlinkat) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 2) {
		return false
	}
	off := mb.strEnd(msgOffset + 4)
	if off < 0 {
		return false
	}
	return off+4 == int(mb.Size())
}

/////////////////////////////////////
// size[4] Runlinkat tag[2]
type Runlinkat []byte

func (r Runlinkat) fill(t Tag) { MsgBase(r).fill(msgRunlinkat, t, uint32(msgOffset)) }

func (r Runlinkat) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Runlinkat) Size() uint32  { return MsgBase(r).Size() }
func (r Runlinkat) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Tstatfs tag[2] fid[4]
type Tstatfs []byte

func (r Tstatfs) fill(t Tag, fid Fid) {
	MsgBase(r).fill(msgTstatfs, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
}

func (r Tstatfs) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tstatfs) Size() uint32  { return MsgBase(r).Size() }
func (r Tstatfs) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tstatfs) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tstatfs) valid() bool { return MsgBase(r).payloadFits(4) }

/////////////////////////////////////
// size[4] Rstatfs tag[2] type[4] bsize[4] blocks[8] bfree[8] bavail[8]
// files[8] ffree[8] fsid[8] namelen[4]
type Rstatfs []byte

const rstatfsLen = 4 + 4 + 8*6 + 4

func (r Rstatfs) fill(t Tag, s *Statfs) {
	MsgBase(r).fill(msgRstatfs, t, uint32(msgOffset+rstatfsLen))
	off := msgOffset
	bo.PutUint32(r[off:off+4], s.Type)
	off += 4
	bo.PutUint32(r[off:off+4], s.Bsize)
	off += 4
	for _, v := range []uint64{s.Blocks, s.Bfree, s.Bavail, s.Files, s.Ffree, s.Fsid} {
		bo.PutUint64(r[off:off+8], v)
		off += 8
	}
	bo.PutUint32(r[off:off+4], s.Namelen)
}

func (r Rstatfs) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Rstatfs) Size() uint32   { return MsgBase(r).Size() }
func (r Rstatfs) Tag() Tag       { return MsgBase(r).Tag() }
func (r Rstatfs) FsType() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }
func (r Rstatfs) Bsize() uint32  { return bo.Uint32(r[msgOffset+4 : msgOffset+8]) }
func (r Rstatfs) Blocks() uint64 { return bo.Uint64(r[msgOffset+8 : msgOffset+16]) }
func (r Rstatfs) Namelen() uint32 {
	return bo.Uint32(r[msgOffset+rstatfsLen-4 : msgOffset+rstatfsLen])
}

/////////////////////////////////////
// size[4] Tread tag[2] fid[4] offset[8] count[4]
type Tread []byte

func (r Tread) fill(t Tag, fid Fid, offset uint64, count uint32) {
	MsgBase(r).fill(msgTread, t, uint32(msgOffset+4+8+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint64(r[msgOffset+4:msgOffset+12], offset)
	bo.PutUint32(r[msgOffset+12:msgOffset+16], count)
}

func (r Tread) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Tread) Size() uint32   { return MsgBase(r).Size() }
func (r Tread) Tag() Tag       { return MsgBase(r).Tag() }
func (r Tread) Fid() Fid       { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Tread) Offset() uint64 { return bo.Uint64(r[msgOffset+4 : msgOffset+12]) }
func (r Tread) Count() uint32  { return bo.Uint32(r[msgOffset+12 : msgOffset+16]) }

func (r Tread) valid() bool { return MsgBase(r).payloadFits(4 + 8 + 4) }

/////////////////////////////////////
// size[4] Rread tag[2] count[4] data[count]
type Rread []byte

func (r Rread) fill(t Tag, count uint32) {
	MsgBase(r).fill(msgRread, t, uint32(msgOffset+4+count))
	bo.PutUint32(r[msgOffset:msgOffset+4], count)
}

func (r Rread) Bytes() []byte       { return MsgBase(r).Bytes() }
func (r Rread) Size() uint32        { return MsgBase(r).Size() }
func (r Rread) Tag() Tag            { return MsgBase(r).Tag() }
func (r Rread) Count() uint32       { return bo.Uint32(r[msgOffset : msgOffset+4]) }
func (r Rread) Data() []byte        { return r[msgOffset+4 : msgOffset+4+int(r.Count())] }
func (r Rread) DataNoLimit() []byte { return r[msgOffset+4:] }

/////////////////////////////////////
// size[4] Twrite tag[2] fid[4] offset[8] count[4] data[count]
type Twrite []byte

func (r Twrite) fill(t Tag, fid Fid, offset uint64, count uint32) {
	MsgBase(r).fill(msgTwrite, t, uint32(msgOffset+4+8+4+count))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
	bo.PutUint64(r[msgOffset+4:msgOffset+12], offset)
	bo.PutUint32(r[msgOffset+12:msgOffset+16], count)
}

func (r Twrite) Bytes() []byte  { return MsgBase(r).Bytes() }
func (r Twrite) Size() uint32   { return MsgBase(r).Size() }
func (r Twrite) Tag() Tag       { return MsgBase(r).Tag() }
func (r Twrite) Fid() Fid       { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }
func (r Twrite) Offset() uint64 { return bo.Uint64(r[msgOffset+4 : msgOffset+12]) }
func (r Twrite) Count() uint32  { return bo.Uint32(r[msgOffset+12 : msgOffset+16]) }
func (r Twrite) Data() []byte   { return r[msgOffset+16 : msgOffset+16+int(r.Count())] }

// Returns slice of bytes to write to (ignores message's count)
func (r Twrite) DataNoLimit() []byte { return r[msgOffset+16:] }

func (r Twrite) valid() bool {
	mb := MsgBase(r)
	if !mb.payloadFits(4 + 8 + 4) {
		return false
	}
	return mb.payloadFits(4 + 8 + 4 + int(r.Count()))
}

/////////////////////////////////////
// size[4] Rwrite tag[2] count[4]
type Rwrite []byte

func (r Rwrite) fill(t Tag, count uint32) {
	MsgBase(r).fill(msgRwrite, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], count)
}

func (r Rwrite) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rwrite) Size() uint32  { return MsgBase(r).Size() }
func (r Rwrite) Tag() Tag      { return MsgBase(r).Tag() }
func (r Rwrite) Count() uint32 { return bo.Uint32(r[msgOffset : msgOffset+4]) }

/////////////////////////////////////
// size[4] Tclunk tag[2] fid[4]
type Tclunk []byte

func (r Tclunk) fill(t Tag, fid Fid) {
	MsgBase(r).fill(msgTclunk, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
}

func (r Tclunk) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tclunk) Size() uint32  { return MsgBase(r).Size() }
func (r Tclunk) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tclunk) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tclunk) valid() bool { return MsgBase(r).payloadFits(4) }

/////////////////////////////////////
// size[4] Rclunk tag[2]
type Rclunk []byte

func (r Rclunk) fill(t Tag) { MsgBase(r).fill(msgRclunk, t, uint32(msgOffset)) }

func (r Rclunk) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rclunk) Size() uint32  { return MsgBase(r).Size() }
func (r Rclunk) Tag() Tag      { return MsgBase(r).Tag() }

/////////////////////////////////////
// size[4] Tremove tag[2] fid[4]
type Tremove []byte

func (r Tremove) fill(t Tag, fid Fid) {
	MsgBase(r).fill(msgTremove, t, uint32(msgOffset+4))
	bo.PutUint32(r[msgOffset:msgOffset+4], uint32(fid))
}

func (r Tremove) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Tremove) Size() uint32  { return MsgBase(r).Size() }
func (r Tremove) Tag() Tag      { return MsgBase(r).Tag() }
func (r Tremove) Fid() Fid      { return Fid(bo.Uint32(r[msgOffset : msgOffset+4])) }

func (r Tremove) valid() bool { return MsgBase(r).payloadFits(4) }

/////////////////////////////////////
// size[4] Rremove tag[2]
type Rremove []byte

func (r Rremove) fill(t Tag) { MsgBase(r).fill(msgRremove, t, uint32(msgOffset)) }

func (r Rremove) Bytes() []byte { return MsgBase(r).Bytes() }
func (r Rremove) Size() uint32  { return MsgBase(r).Size() }
func (r Rremove) Tag() Tag      { return MsgBase(r).Tag() }
