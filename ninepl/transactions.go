package ninepl

import (
	"fmt"
	"io"
)

// srvTransaction owns the in/out message buffers for one connection. One
// request is decoded, handled, and answered before the next is read, so a
// single pair of buffers suffices.
type srvTransaction struct {
	inMsg  []byte
	outMsg []byte

	handled bool
}

func newTransaction(maxMsgSize uint32) srvTransaction {
	return srvTransaction{
		inMsg:  make([]byte, int(maxMsgSize)),
		outMsg: make([]byte, int(maxMsgSize)),
	}
}

// readRequest reads exactly one framed message. A declared size below the
// header size or above the negotiated maximum means the framing can no
// longer be trusted.
func (t *srvTransaction) readRequest(rdr io.Reader) error {
	if _, err := readUpTo(rdr, t.inMsg[:4]); err != nil {
		return err
	}
	size := MsgBase(t.inMsg).Size()
	if size < msgOffset {
		return fmt.Errorf("%w: declared size %d below header size", ErrBadMessage, size)
	}
	if size > uint32(len(t.inMsg)) {
		return fmt.Errorf("%w: message too large (%d > %d)", ErrBadMessage, size, len(t.inMsg))
	}
	if _, err := readUpTo(rdr, t.inMsg[4:size]); err != nil {
		return err
	}
	t.handled = false
	return nil
}

func (t *srvTransaction) writeReply(wr io.Writer) error {
	b := MsgBase(t.outMsg).Bytes()
	for len(b) > 0 {
		n, err := wr.Write(b)
		b = b[n:]
		if isTemporaryErr(err) {
			continue
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (t *srvTransaction) requestType() MsgType { return MsgBase(t.inMsg).Type() }
func (t *srvTransaction) reqTag() Tag          { return MsgBase(t.inMsg).Tag() }

// Request decodes the buffered message into its typed view, bounds-checking
// every variable-length field against the declared size. Unknown opcodes
// decode to the bare MsgBase so the dispatcher can answer EOPNOTSUPP;
// a known opcode whose payload lies about its size is ErrBadMessage.
func (t *srvTransaction) Request() (Message, error) {
	mb := MsgBase(t.inMsg)
	var ok bool
	var m Message
	switch mb.Type() {
	case msgTversion:
		v := Tversion(mb)
		m, ok = v, v.valid()
	case msgTauth:
		v := Tauth(mb)
		m, ok = v, v.valid()
	case msgTattach:
		v := Tattach(mb)
		m, ok = v, v.valid()
	case msgTflush:
		v := Tflush(mb)
		m, ok = v, v.valid()
	case msgTwalk:
		v := Twalk(mb)
		m, ok = v, v.valid()
	case msgTlopen:
		v := Tlopen(mb)
		m, ok = v, v.valid()
	case msgTlcreate:
		v := Tlcreate(mb)
		m, ok = v, v.valid()
	case msgTsymlink:
		v := Tsymlink(mb)
		m, ok = v, v.valid()
	case msgTrename:
		v := Trename(mb)
		m, ok = v, v.valid()
	case msgTreadlink:
		v := Treadlink(mb)
		m, ok = v, v.valid()
	case msgTgetattr:
		v := Tgetattr(mb)
		m, ok = v, v.valid()
	case msgTsetattr:
		v := Tsetattr(mb)
		m, ok = v, v.valid()
	case msgTreaddir:
		v := Treaddir(mb)
		m, ok = v, v.valid()
	case msgTfsync:
		v := Tfsync(mb)
		m, ok = v, v.valid()
	case msgTlink:
		v := Tlink(mb)
		m, ok = v, v.valid()
	case msgTmkdir:
		v := Tmkdir(mb)
		m, ok = v, v.valid()
	case msgTrenameat:
		v := Trenameat(mb)
		m, ok = v, v.valid()
	case msgTunlinkat:
		v := Tunlinkat(mb)
		m, ok = v, v.valid()
	case msgTstatfs:
		v := Tstatfs(mb)
		m, ok = v, v.valid()
	case msgTread:
		v := Tread(mb)
		m, ok = v, v.valid()
	case msgTwrite:
		v := Twrite(mb)
		m, ok = v, v.valid()
	case msgTclunk:
		v := Tclunk(mb)
		m, ok = v, v.valid()
	case msgTremove:
		v := Tremove(mb)
		m, ok = v, v.valid()
	default:
		return mb, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: short %s payload", ErrBadMessage, mb.Type())
	}
	return m, nil
}

func (t *srvTransaction) Rversion(msgSize uint32, version string) {
	t.handled = true
	Rversion(t.outMsg).fill(t.reqTag(), msgSize, version)
}

func (t *srvTransaction) Rlerror(ecode uint32) {
	t.handled = true
	Rlerror(t.outMsg).fill(t.reqTag(), ecode)
}

func (t *srvTransaction) Rattach(q Qid) {
	t.handled = true
	Rattach(t.outMsg).fill(t.reqTag(), q)
}

func (t *srvTransaction) Rflush() {
	t.handled = true
	Rflush(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rwalk(wqids []Qid) {
	t.handled = true
	Rwalk(t.outMsg).fill(t.reqTag(), wqids)
}

func (t *srvTransaction) Rlopen(q Qid, iounit uint32) {
	t.handled = true
	Rlopen(t.outMsg).fill(t.reqTag(), q, iounit)
}

func (t *srvTransaction) Rlcreate(q Qid, iounit uint32) {
	t.handled = true
	Rlcreate(t.outMsg).fill(t.reqTag(), q, iounit)
}

func (t *srvTransaction) Rsymlink(q Qid) {
	t.handled = true
	Rsymlink(t.outMsg).fill(t.reqTag(), q)
}

func (t *srvTransaction) Rrename() {
	t.handled = true
	Rrename(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rreadlink(target string) {
	t.handled = true
	Rreadlink(t.outMsg).fill(t.reqTag(), target)
}

func (t *srvTransaction) Rgetattr(a *Attr) {
	t.handled = true
	Rgetattr(t.outMsg).fill(t.reqTag(), a)
}

func (t *srvTransaction) Rsetattr() {
	t.handled = true
	Rsetattr(t.outMsg).fill(t.reqTag())
}

// RreaddirBuffer returns the entry area handlers pack dirents into before
// calling Rreaddir with the packed byte count.
func (t *srvTransaction) RreaddirBuffer() []byte {
	return Rreaddir(t.outMsg).DataNoLimit()
}

func (t *srvTransaction) Rreaddir(count uint32) {
	t.handled = true
	Rreaddir(t.outMsg).fill(t.reqTag(), count)
}

func (t *srvTransaction) Rfsync() {
	t.handled = true
	Rfsync(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rlink() {
	t.handled = true
	Rlink(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rmkdir(q Qid) {
	t.handled = true
	Rmkdir(t.outMsg).fill(t.reqTag(), q)
}

func (t *srvTransaction) Rrenameat() {
	t.handled = true
	Rrenameat(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Runlinkat() {
	t.handled = true
	Runlinkat(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rstatfs(s *Statfs) {
	t.handled = true
	Rstatfs(t.outMsg).fill(t.reqTag(), s)
}

// RreadBuffer returns the data area for Rread replies.
func (t *srvTransaction) RreadBuffer() []byte {
	return Rread(t.outMsg).DataNoLimit()
}

func (t *srvTransaction) Rread(count uint32) {
	t.handled = true
	Rread(t.outMsg).fill(t.reqTag(), count)
}

func (t *srvTransaction) Rwrite(count uint32) {
	t.handled = true
	Rwrite(t.outMsg).fill(t.reqTag(), count)
}

func (t *srvTransaction) Rclunk() {
	t.handled = true
	Rclunk(t.outMsg).fill(t.reqTag())
}

func (t *srvTransaction) Rremove() {
	t.handled = true
	Rremove(t.outMsg).fill(t.reqTag())
}
