package ninepl

import (
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

// handle runs one decoded request to completion. Handlers either fill the
// reply themselves or return an error, which is mapped onto an Rlerror here
// so errno translation lives in exactly one place.
func (s *session) handle(m Message) {
	if err := s.dispatch(m); err != nil {
		s.tracef("%s => error: %s", s.txn.requestType(), err)
		s.txn.Rlerror(ecodeForError(err))
	}
}

func (s *session) dispatch(m Message) error {
	switch m := m.(type) {
	case Tversion:
		return s.renegotiate(m)
	case Tauth:
		// no authentication scheme; the guest must attach with NO_FID
		return ErrOpUnsupported
	case Tattach:
		return s.attach(m)
	case Tflush:
		// requests are handled serially, so the flushed request has always
		// already been answered by the time we see the flush
		s.txn.Rflush()
		return nil
	}

	if s.state != stateAttached {
		return ErrNotAttached
	}

	switch m := m.(type) {
	case Twalk:
		return s.walkFid(m)
	case Tlopen:
		return s.lopen(m)
	case Tlcreate:
		return s.lcreate(m)
	case Tsymlink:
		return s.symlink(m)
	case Tmkdir:
		return s.mkdir(m)
	case Treadlink:
		return s.readlink(m)
	case Tgetattr:
		return s.getattr(m)
	case Tsetattr:
		return s.setattr(m)
	case Treaddir:
		return s.readdir(m)
	case Tfsync:
		return s.fsync(m)
	case Tlink:
		return s.link(m)
	case Trename:
		return s.rename(m)
	case Trenameat:
		return s.renameat(m)
	case Tunlinkat:
		return s.unlinkat(m)
	case Tread:
		return s.read(m)
	case Twrite:
		return s.write(m)
	case Tclunk:
		return s.clunk(m)
	case Tremove:
		return s.remove(m)
	case Tstatfs:
		return s.statfs(m)
	}
	return ErrOpUnsupported
}

// iounit is the largest payload that fits in one message alongside the
// biggest per-request header (Twrite's).
func (s *session) iounit() uint32 {
	return s.msize - 24
}

// maxPayload is what a single Rread or Rreaddir reply can carry.
func (s *session) maxPayload() uint32 {
	return s.msize - (msgOffset + 4)
}

// renegotiate handles a Tversion arriving after the initial handshake. Per
// the protocol this aborts everything in progress and resets the session.
func (s *session) renegotiate(m Tversion) error {
	if m.Tag() != NO_TAG {
		return unix.EINVAL
	}
	if m.MsgSize() < MIN_MESSAGE_SIZE {
		return unix.EINVAL
	}
	s.fids.Drain()
	s.state = stateUnattached

	size := m.MsgSize()
	if max := uint32(len(s.txn.inMsg)); size > max {
		size = max
	}
	if m.Version() != VERSION_9P2000L {
		s.txn.Rversion(size, "unknown")
		return nil
	}
	s.msize = size
	s.txn.Rversion(size, VERSION_9P2000L)
	return nil
}

func (s *session) attach(m Tattach) error {
	if m.Afid() != NO_FID {
		return unix.EINVAL
	}
	fd, err := dupCloexec(s.rootFD)
	if err != nil {
		return err
	}
	res := &resource{kind: resPath, fd: fd, relPath: "."}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		res.release()
		return err
	}
	if err := s.fids.Insert(m.Fid(), res); err != nil {
		res.release()
		return err
	}
	s.state = stateAttached
	s.tracef("attach %s uname=%q aname=%q n_uname=%d", m.Fid(), m.Uname(), m.Aname(), m.NUname())
	s.txn.Rattach(s.qids.QidForStat(&st))
	return nil
}

func (s *session) walkFid(m Twalk) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	if res.kind != resPath {
		// walking an opened fid is a protocol violation
		return unix.EINVAL
	}
	wqids, dest, err := s.walker.walk(s.qids, res, m.Wnames())
	if err != nil {
		return err
	}
	if dest != nil {
		if m.NewFid() == m.Fid() {
			err = s.fids.Replace(m.NewFid(), dest)
		} else {
			err = s.fids.Insert(m.NewFid(), dest)
		}
		if err != nil {
			dest.release()
			return err
		}
	}
	// dest == nil is a partial walk: the request succeeds with the qids that
	// resolved, and newfid is left unbound.
	s.txn.Rwalk(wqids)
	return nil
}

func (s *session) lopen(m Tlopen) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	if res.kind != resPath {
		return unix.EINVAL
	}
	var st unix.Stat_t
	if err := unix.Fstat(res.fd, &st); err != nil {
		return err
	}

	var newRes *resource
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		if m.Flags().IsWriteable() {
			return unix.EISDIR
		}
		fd, err := reopen(res.fd, unix.O_RDONLY|unix.O_DIRECTORY)
		if err != nil {
			return err
		}
		newRes = &resource{kind: resDir, fd: fd, relPath: res.relPath}
	case unix.S_IFLNK:
		return unix.ELOOP
	default:
		fd, err := reopen(res.fd, hostOpenFlags(m.Flags()))
		if err != nil {
			return err
		}
		newRes = &resource{kind: resFile, fd: fd, relPath: res.relPath}
	}

	if err := unix.Fstat(newRes.fd, &st); err != nil {
		newRes.release()
		return err
	}
	if err := s.fids.Replace(m.Fid(), newRes); err != nil {
		newRes.release()
		return err
	}
	s.txn.Rlopen(s.qids.QidForStat(&st), s.iounit())
	return nil
}

func (s *session) lcreate(m Tlcreate) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	if res.kind != resPath {
		return unix.EINVAL
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	flags := hostOpenFlags(m.Flags()) | unix.O_CREAT | unix.O_EXCL | unix.O_NOFOLLOW | unix.O_CLOEXEC
	fd, err := unix.Openat(res.fd, name, flags, m.Mode()&0o7777)
	if err != nil {
		return err
	}
	newRes := &resource{kind: resFile, fd: fd, relPath: path.Join(res.relPath, name)}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		newRes.release()
		return err
	}
	if err := s.fids.Replace(m.Fid(), newRes); err != nil {
		newRes.release()
		return err
	}
	s.txn.Rlcreate(s.qids.QidForStat(&st), s.iounit())
	return nil
}

func (s *session) symlink(m Tsymlink) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	if err := unix.Symlinkat(m.Symtgt(), res.fd, name); err != nil {
		return err
	}
	var st unix.Stat_t
	if err := unix.Fstatat(res.fd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return err
	}
	s.txn.Rsymlink(s.qids.QidForStat(&st))
	return nil
}

func (s *session) mkdir(m Tmkdir) error {
	res, err := s.fids.Get(m.Dfid())
	if err != nil {
		return err
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	if err := unix.Mkdirat(res.fd, name, m.Mode()&0o7777); err != nil {
		return err
	}
	var st unix.Stat_t
	if err := unix.Fstatat(res.fd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return err
	}
	s.txn.Rmkdir(s.qids.QidForStat(&st))
	return nil
}

func (s *session) readlink(m Treadlink) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	// empty path + O_PATH descriptor reads the link the fid itself names
	target, err := readlinkAt(res.fd, "")
	if err != nil {
		return err
	}
	// the only reply whose size the guest does not control; a target too
	// long for the negotiated msize must not outgrow the out buffer
	if uint32(msgOffset+2+len(target)) > s.msize {
		return unix.ERANGE
	}
	s.txn.Rreadlink(target)
	return nil
}

func (s *session) getattr(m Tgetattr) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	var st unix.Stat_t
	if err := unix.Fstat(res.fd, &st); err != nil {
		return err
	}
	a := attrFromStat(s.qids, &st)
	a.Valid = m.Mask() & GETATTR_BASIC
	s.txn.Rgetattr(a)
	return nil
}

func attrFromStat(pool *QidPool, st *unix.Stat_t) *Attr {
	return &Attr{
		Qid:       pool.QidForStat(st),
		Mode:      uint32(st.Mode),
		Uid:       st.Uid,
		Gid:       st.Gid,
		Nlink:     uint64(st.Nlink),
		Rdev:      uint64(st.Rdev),
		Size:      uint64(st.Size),
		Blksize:   uint64(st.Blksize),
		Blocks:    uint64(st.Blocks),
		AtimeSec:  uint64(st.Atim.Sec),
		AtimeNsec: uint64(st.Atim.Nsec),
		MtimeSec:  uint64(st.Mtim.Sec),
		MtimeNsec: uint64(st.Mtim.Nsec),
		CtimeSec:  uint64(st.Ctim.Sec),
		CtimeNsec: uint64(st.Ctim.Nsec),
	}
}

func (s *session) setattr(m Tsetattr) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	// all changes go through /proc so they work uniformly for O_PATH and
	// opened descriptors
	p := procFdPath(res.fd)
	v := m.Valid()

	if v&SETATTR_MODE != 0 {
		if err := unix.Chmod(p, m.Mode()&0o7777); err != nil {
			return err
		}
	}
	if v&(SETATTR_UID|SETATTR_GID) != 0 {
		uid, gid := -1, -1
		if v&SETATTR_UID != 0 {
			uid = int(m.Uid())
		}
		if v&SETATTR_GID != 0 {
			gid = int(m.Gid())
		}
		if err := unix.Chown(p, uid, gid); err != nil {
			return err
		}
	}
	if v&SETATTR_SIZE != 0 {
		if err := unix.Truncate(p, int64(m.Length())); err != nil {
			return err
		}
	}
	if v&(SETATTR_ATIME|SETATTR_MTIME) != 0 {
		ts := []unix.Timespec{
			{Nsec: unix.UTIME_OMIT},
			{Nsec: unix.UTIME_OMIT},
		}
		if v&SETATTR_ATIME != 0 {
			if v&SETATTR_ATIME_SET != 0 {
				ts[0] = unix.Timespec{Sec: int64(m.AtimeSec()), Nsec: int64(m.AtimeNsec())}
			} else {
				ts[0] = unix.Timespec{Nsec: unix.UTIME_NOW}
			}
		}
		if v&SETATTR_MTIME != 0 {
			if v&SETATTR_MTIME_SET != 0 {
				ts[1] = unix.Timespec{Sec: int64(m.MtimeSec()), Nsec: int64(m.MtimeNsec())}
			} else {
				ts[1] = unix.Timespec{Nsec: unix.UTIME_NOW}
			}
		}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, p, ts, 0); err != nil {
			return err
		}
	}
	s.txn.Rsetattr()
	return nil
}

func (s *session) readdir(m Treaddir) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	switch res.kind {
	case resDir:
	case resFile:
		return ErrNotADirectory
	default:
		return ErrNotOpen
	}

	count := m.Count()
	if max := s.maxPayload(); count > max {
		count = max
	}

	rdr, err := OpenDirReader(res.fd, m.Offset())
	if err != nil {
		return err
	}
	defer rdr.Close()

	buf := s.txn.RreaddirBuffer()
	packed := 0
	for {
		ent, ok, err := rdr.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if packed+WireDirentSize(ent.Name) > int(count) {
			if packed == 0 {
				// a zero-entry reply means end-of-directory; if the guest's
				// count cannot hold even one entry it must get an error
				// instead, or it would mistake a full directory for an
				// empty one
				return unix.EINVAL
			}
			break
		}
		var st unix.Stat_t
		if err := unix.Fstatat(res.fd, string(ent.Name), &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			// the entry raced away between getdents and stat; skip it
			continue
		}
		packed += PutWireDirent(buf[packed:], s.qids.QidForStat(&st), ent.Offset, ent.Type, ent.Name)
		res.lastOffset = ent.Offset
	}
	s.txn.Rreaddir(uint32(packed))
	return nil
}

func (s *session) fsync(m Tfsync) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	if res.kind == resPath {
		return ErrNotOpen
	}
	if err := unix.Fsync(res.fd); err != nil {
		return err
	}
	s.txn.Rfsync()
	return nil
}

func (s *session) link(m Tlink) error {
	dres, err := s.fids.Get(m.Dfid())
	if err != nil {
		return err
	}
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	err = unix.Linkat(unix.AT_FDCWD, procFdPath(res.fd), dres.fd, name, unix.AT_SYMLINK_FOLLOW)
	if err != nil {
		return err
	}
	s.txn.Rlink()
	return nil
}

func (s *session) rename(m Trename) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	dres, err := s.fids.Get(m.Dfid())
	if err != nil {
		return err
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	if res.relPath == "." {
		return unix.EBUSY
	}
	parentFD, err := s.walker.openRel(path.Dir(res.relPath), maxSymlinkHops)
	if err != nil {
		return err
	}
	defer unix.Close(parentFD)
	if err := unix.Renameat(parentFD, path.Base(res.relPath), dres.fd, name); err != nil {
		return err
	}
	res.relPath = path.Join(dres.relPath, name)
	s.txn.Rrename()
	return nil
}

func (s *session) renameat(m Trenameat) error {
	oldd, err := s.fids.Get(m.OldDirFid())
	if err != nil {
		return err
	}
	newd, err := s.fids.Get(m.NewDirFid())
	if err != nil {
		return err
	}
	oldname, newname := m.OldName(), m.NewName()
	if err := validName(oldname); err != nil {
		return err
	}
	if err := validName(newname); err != nil {
		return err
	}
	if err := unix.Renameat(oldd.fd, oldname, newd.fd, newname); err != nil {
		return err
	}
	s.txn.Rrenameat()
	return nil
}

func (s *session) unlinkat(m Tunlinkat) error {
	dres, err := s.fids.Get(m.DirFid())
	if err != nil {
		return err
	}
	name := m.Name()
	if err := validName(name); err != nil {
		return err
	}
	flags := 0
	if m.Flags()&unix.AT_REMOVEDIR != 0 {
		flags = unix.AT_REMOVEDIR
	}
	if err := unix.Unlinkat(dres.fd, name, flags); err != nil {
		return err
	}
	s.txn.Runlinkat()
	return nil
}

func (s *session) read(m Tread) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	switch res.kind {
	case resFile:
	case resDir:
		return unix.EISDIR
	default:
		return ErrNotOpen
	}
	count := m.Count()
	if max := s.maxPayload(); count > max {
		count = max
	}
	n, err := unix.Pread(res.fd, s.txn.RreadBuffer()[:count], int64(m.Offset()))
	if err != nil {
		return err
	}
	s.txn.Rread(uint32(n))
	return nil
}

func (s *session) write(m Twrite) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	switch res.kind {
	case resFile:
	case resDir:
		return unix.EISDIR
	default:
		return ErrNotOpen
	}
	n, err := unix.Pwrite(res.fd, m.Data(), int64(m.Offset()))
	if err != nil {
		return err
	}
	s.txn.Rwrite(uint32(n))
	return nil
}

func (s *session) clunk(m Tclunk) error {
	if err := s.fids.Remove(m.Fid()); err != nil {
		return err
	}
	s.txn.Rclunk()
	return nil
}

// remove unlinks the object a fid names. The fid is clunked whether or not
// the unlink itself succeeds.
func (s *session) remove(m Tremove) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	rmErr := s.unlinkResource(res)
	s.fids.Remove(m.Fid())
	if rmErr != nil {
		return rmErr
	}
	s.txn.Rremove()
	return nil
}

func (s *session) unlinkResource(res *resource) error {
	if res.relPath == "." {
		return unix.EBUSY
	}
	var st unix.Stat_t
	if err := unix.Fstat(res.fd, &st); err != nil {
		return err
	}
	flags := 0
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		flags = unix.AT_REMOVEDIR
	}
	parentFD, err := s.walker.openRel(path.Dir(res.relPath), maxSymlinkHops)
	if err != nil {
		return err
	}
	defer unix.Close(parentFD)
	return unix.Unlinkat(parentFD, path.Base(res.relPath), flags)
}

func (s *session) statfs(m Tstatfs) error {
	res, err := s.fids.Get(m.Fid())
	if err != nil {
		return err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(procFdPath(res.fd), &st); err != nil {
		return err
	}
	s.txn.Rstatfs(&Statfs{
		Type:    uint32(st.Type),
		Bsize:   uint32(st.Bsize),
		Blocks:  st.Blocks,
		Bfree:   st.Bfree,
		Bavail:  st.Bavail,
		Files:   st.Files,
		Ffree:   st.Ffree,
		Fsid:    uint64(uint32(st.Fsid.Val[0])) | uint64(uint32(st.Fsid.Val[1]))<<32,
		Namelen: uint32(st.Namelen),
	})
	return nil
}

// validName rejects names that could address anything other than a direct
// child of the directory they are applied to.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return unix.EINVAL
	}
	if strings.ContainsAny(name, "/\x00") {
		return unix.EINVAL
	}
	if len(name) > unix.NAME_MAX {
		return unix.ENAMETOOLONG
	}
	return nil
}

// hostOpenFlags maps wire open flags onto host open(2) flags. Create and
// exclusive bits are handled by Tlcreate, and O_NOFOLLOW is dropped because
// reopening goes through /proc.
func hostOpenFlags(f OpenFlags) int {
	flags := int(f & L_O_ACCMODE)
	for _, fl := range []struct {
		wire OpenFlags
		host int
	}{
		{L_O_APPEND, unix.O_APPEND},
		{L_O_TRUNC, unix.O_TRUNC},
		{L_O_NONBLOCK, unix.O_NONBLOCK},
		{L_O_DSYNC, unix.O_DSYNC},
		{L_O_SYNC, unix.O_SYNC},
	} {
		if f&fl.wire == fl.wire {
			flags |= fl.host
		}
	}
	return flags
}
