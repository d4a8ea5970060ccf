package ninepl

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func startSession(t *testing.T, root string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	srv := &Server{Root: root}
	go srv.ServeConn(server)
	t.Cleanup(func() { client.Close() })
	return client
}

func roundtrip(t *testing.T, c net.Conn, req []byte) []byte {
	t.Helper()
	c.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}
	var hdr [4]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		t.Fatalf("read reply header: %v", err)
	}
	size := bo.Uint32(hdr[:])
	reply := make([]byte, size)
	copy(reply, hdr[:])
	if _, err := io.ReadFull(c, reply[4:]); err != nil {
		t.Fatalf("read reply body: %v", err)
	}
	return reply
}

func handshake(t *testing.T, c net.Conn) {
	t.Helper()
	m := make([]byte, 256)
	Tversion(m).fill(NO_TAG, MIN_MESSAGE_SIZE*8, VERSION_9P2000L)
	reply := roundtrip(t, c, Tversion(m).Bytes())
	if MsgBase(reply).Type() != msgRversion {
		t.Fatalf("expected Rversion, got %s", MsgBase(reply).Type())
	}
	if v := Rversion(reply).Version(); v != VERSION_9P2000L {
		t.Fatalf("expected negotiated version %q, got %q", VERSION_9P2000L, v)
	}
}

func attach(t *testing.T, c net.Conn, fid Fid) Qid {
	t.Helper()
	m := make([]byte, 256)
	Tattach(m).fill(1, fid, NO_FID, "guest", "/", 0)
	reply := roundtrip(t, c, Tattach(m).Bytes())
	if MsgBase(reply).Type() != msgRattach {
		t.Fatalf("expected Rattach, got %s", MsgBase(reply).Type())
	}
	return Rattach(reply).Qid().Clone()
}

func walkTo(t *testing.T, c net.Conn, fid, newfid Fid, names []string) []byte {
	t.Helper()
	m := make([]byte, 1024)
	Twalk(m).fill(2, fid, newfid, names)
	return roundtrip(t, c, Twalk(m).Bytes())
}

func expectRlerror(t *testing.T, reply []byte, ecode uint32) {
	t.Helper()
	if MsgBase(reply).Type() != msgRlerror {
		t.Fatalf("expected Rlerror, got %s", MsgBase(reply).Type())
	}
	if got := Rlerror(reply).Ecode(); got != ecode {
		t.Fatalf("expected ecode %d, got %d", ecode, got)
	}
}

func TestSessionServesFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, guest"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	reply := walkTo(t, c, 0, 1, []string{"hello.txt"})
	if MsgBase(reply).Type() != msgRwalk {
		t.Fatalf("expected Rwalk, got %s", MsgBase(reply).Type())
	}
	if n := Rwalk(reply).NumWqid(); n != 1 {
		t.Fatalf("expected 1 wqid, got %d", n)
	}

	m := make([]byte, 256)
	Tlopen(m).fill(3, 1, L_O_RDONLY)
	reply = roundtrip(t, c, Tlopen(m).Bytes())
	if MsgBase(reply).Type() != msgRlopen {
		t.Fatalf("expected Rlopen, got %s", MsgBase(reply).Type())
	}
	if iounit := Rlopen(reply).Iounit(); iounit == 0 {
		t.Fatalf("expected a nonzero iounit")
	}

	Tread(m).fill(4, 1, 0, 128)
	reply = roundtrip(t, c, Tread(m).Bytes())
	if MsgBase(reply).Type() != msgRread {
		t.Fatalf("expected Rread, got %s", MsgBase(reply).Type())
	}
	if got := string(Rread(reply).Data()); got != "hello, guest" {
		t.Fatalf("expected file contents, got %q", got)
	}

	// reading past the end is a zero-byte read, not an error
	Tread(m).fill(5, 1, 1000, 128)
	reply = roundtrip(t, c, Tread(m).Bytes())
	if MsgBase(reply).Type() != msgRread || Rread(reply).Count() != 0 {
		t.Fatalf("expected an empty Rread at EOF")
	}

	Tclunk(m).fill(6, 1)
	reply = roundtrip(t, c, Tclunk(m).Bytes())
	if MsgBase(reply).Type() != msgRclunk {
		t.Fatalf("expected Rclunk, got %s", MsgBase(reply).Type())
	}

	// the fid is gone now
	Tclunk(m).fill(7, 1)
	expectRlerror(t, roundtrip(t, c, Tclunk(m).Bytes()), ecodeBADF)
}

func TestSessionCreatesAndWrites(t *testing.T) {
	root := t.TempDir()
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	reply := walkTo(t, c, 0, 1, nil)
	if MsgBase(reply).Type() != msgRwalk {
		t.Fatalf("expected Rwalk, got %s", MsgBase(reply).Type())
	}

	m := make([]byte, 1024)
	Tlcreate(m).fill(3, 1, "note.txt", L_O_RDWR, 0o644, 0)
	reply = roundtrip(t, c, Tlcreate(m).Bytes())
	if MsgBase(reply).Type() != msgRlcreate {
		t.Fatalf("expected Rlcreate, got %s", MsgBase(reply).Type())
	}

	data := []byte("written through the wire")
	Twrite(m).fill(4, 1, 0, uint32(len(data)))
	copy(Twrite(m).DataNoLimit(), data)
	reply = roundtrip(t, c, Twrite(m).Bytes())
	if MsgBase(reply).Type() != msgRwrite {
		t.Fatalf("expected Rwrite, got %s", MsgBase(reply).Type())
	}
	if n := Rwrite(reply).Count(); n != uint32(len(data)) {
		t.Fatalf("expected %d bytes written, got %d", len(data), n)
	}

	got, err := os.ReadFile(filepath.Join(root, "note.txt"))
	if err != nil {
		t.Fatalf("read created file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("expected file contents %q, got %q", data, got)
	}
}

func TestSessionReaddir(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"x", "y", "z"} {
		if err := os.WriteFile(filepath.Join(root, n), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	walkTo(t, c, 0, 1, nil)
	m := make([]byte, 1024)
	Tlopen(m).fill(3, 1, L_O_RDONLY)
	reply := roundtrip(t, c, Tlopen(m).Bytes())
	if MsgBase(reply).Type() != msgRlopen {
		t.Fatalf("expected Rlopen, got %s", MsgBase(reply).Type())
	}

	Treaddir(m).fill(4, 1, 0, 512)
	reply = roundtrip(t, c, Treaddir(m).Bytes())
	if MsgBase(reply).Type() != msgRreaddir {
		t.Fatalf("expected Rreaddir, got %s", MsgBase(reply).Type())
	}

	seen := map[string]bool{}
	data := Rreaddir(reply).Data()
	for len(data) > 0 {
		if len(data) < QidSize+8+1+2 {
			t.Fatalf("truncated dirent: %d bytes left", len(data))
		}
		name := msgString(data[QidSize+9:])
		seen[name.String()] = true
		data = data[WireDirentSize(name.Bytes()):]
	}
	for _, n := range []string{"x", "y", "z"} {
		if !seen[n] {
			t.Fatalf("expected entry %q in readdir output (got %v)", n, seen)
		}
	}
}

// the smallest negotiable msize must still hold every fixed-size reply,
// including the largest ones (Rgetattr, a full MAXWELEM Rwalk); the one reply
// whose size the guest cannot bound (Rreadlink) must degrade to an error
// instead of outgrowing the negotiated buffer.
func TestSessionMinimumMsizeReplies(t *testing.T) {
	root := t.TempDir()
	deep := make([]string, MAXWELEM)
	for i := range deep {
		deep[i] = "d"
	}
	if err := os.MkdirAll(filepath.Join(append([]string{root}, deep...)...), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// target long enough that size[4] type[1] tag[2] target[s] exceeds msize
	target := strings.Repeat("t", int(MIN_MESSAGE_SIZE)-6)
	if err := os.Symlink(target, filepath.Join(root, "long")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	c := startSession(t, root)
	m := make([]byte, 1024)
	Tversion(m).fill(NO_TAG, MIN_MESSAGE_SIZE, VERSION_9P2000L)
	reply := roundtrip(t, c, Tversion(m).Bytes())
	if MsgBase(reply).Type() != msgRversion {
		t.Fatalf("expected Rversion, got %s", MsgBase(reply).Type())
	}
	if got := Rversion(reply).MsgSize(); got != MIN_MESSAGE_SIZE {
		t.Fatalf("expected negotiated msize %d, got %d", MIN_MESSAGE_SIZE, got)
	}
	attach(t, c, 0)

	Tgetattr(m).fill(2, 0, GETATTR_BASIC)
	reply = roundtrip(t, c, Tgetattr(m).Bytes())
	if MsgBase(reply).Type() != msgRgetattr {
		t.Fatalf("expected Rgetattr, got %s", MsgBase(reply).Type())
	}

	reply = walkTo(t, c, 0, 1, deep)
	if MsgBase(reply).Type() != msgRwalk {
		t.Fatalf("expected Rwalk, got %s", MsgBase(reply).Type())
	}
	if n := Rwalk(reply).NumWqid(); n != MAXWELEM {
		t.Fatalf("expected %d wqids, got %d", MAXWELEM, n)
	}

	reply = walkTo(t, c, 0, 2, []string{"long"})
	if MsgBase(reply).Type() != msgRwalk {
		t.Fatalf("expected Rwalk, got %s", MsgBase(reply).Type())
	}
	Treadlink(m).fill(4, 2)
	expectRlerror(t, roundtrip(t, c, Treadlink(m).Bytes()), ecodeRANGE)

	// the session keeps serving after the refused readlink
	Tclunk(m).fill(5, 2)
	reply = roundtrip(t, c, Tclunk(m).Bytes())
	if MsgBase(reply).Type() != msgRclunk {
		t.Fatalf("expected Rclunk, got %s", MsgBase(reply).Type())
	}
}

// a count with no room for even one entry is an error, not a zero-entry
// reply a guest would mistake for an empty directory
func TestSessionReaddirCountTooSmall(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "entry"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	walkTo(t, c, 0, 1, nil)
	m := make([]byte, 1024)
	Tlopen(m).fill(3, 1, L_O_RDONLY)
	reply := roundtrip(t, c, Tlopen(m).Bytes())
	if MsgBase(reply).Type() != msgRlopen {
		t.Fatalf("expected Rlopen, got %s", MsgBase(reply).Type())
	}

	Treaddir(m).fill(4, 1, 0, 8)
	expectRlerror(t, roundtrip(t, c, Treaddir(m).Bytes()), ecodeINVAL)

	// with room for entries the same fid serves the directory normally
	Treaddir(m).fill(5, 1, 0, 512)
	reply = roundtrip(t, c, Treaddir(m).Bytes())
	if MsgBase(reply).Type() != msgRreaddir {
		t.Fatalf("expected Rreaddir, got %s", MsgBase(reply).Type())
	}
	if Rreaddir(reply).Count() == 0 {
		t.Fatalf("expected a non-empty Rreaddir")
	}
}

func TestSessionRemoveClunksEitherWay(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "doomed")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	walkTo(t, c, 0, 1, []string{"doomed"})
	m := make([]byte, 256)
	Tremove(m).fill(3, 1)
	reply := roundtrip(t, c, Tremove(m).Bytes())
	if MsgBase(reply).Type() != msgRremove {
		t.Fatalf("expected Rremove, got %s", MsgBase(reply).Type())
	}
	if _, err := os.Lstat(target); !os.IsNotExist(err) {
		t.Fatalf("expected the file to be unlinked, got %v", err)
	}

	// the fid was clunked by the remove
	Tclunk(m).fill(4, 1)
	expectRlerror(t, roundtrip(t, c, Tclunk(m).Bytes()), ecodeBADF)
}

func TestSessionDeniesEscapingWalk(t *testing.T) {
	root := t.TempDir()
	if err := os.Symlink("/etc/passwd", filepath.Join(root, "abs")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	reply := walkTo(t, c, 0, 1, []string{"abs"})
	expectRlerror(t, reply, ecodeACCES)
}

func TestSessionRequiresAttach(t *testing.T) {
	c := startSession(t, t.TempDir())
	handshake(t, c)

	m := make([]byte, 256)
	Tclunk(m).fill(2, 0)
	expectRlerror(t, roundtrip(t, c, Tclunk(m).Bytes()), ecodeINVAL)
}

func TestSessionRefusesAuth(t *testing.T) {
	c := startSession(t, t.TempDir())
	handshake(t, c)

	m := make([]byte, 256)
	Tauth(m).fill(2, 1, "guest", "/", 0)
	expectRlerror(t, roundtrip(t, c, Tauth(m).Bytes()), ecodeOPNOTSUPP)
}

func TestSessionAnswersUnknownOpcode(t *testing.T) {
	c := startSession(t, t.TempDir())
	handshake(t, c)
	attach(t, c, 0)

	m := make([]byte, 256)
	MsgBase(m).fill(MsgType(30), 9, msgOffset)
	expectRlerror(t, roundtrip(t, c, MsgBase(m).Bytes()), ecodeOPNOTSUPP)

	// the connection survives an unknown opcode
	m2 := make([]byte, 256)
	Tclunk(m2).fill(10, 0)
	reply := roundtrip(t, c, Tclunk(m2).Bytes())
	if MsgBase(reply).Type() != msgRclunk {
		t.Fatalf("expected the session to keep serving, got %s", MsgBase(reply).Type())
	}
}

func TestSessionDropsMalformedFrame(t *testing.T) {
	c := startSession(t, t.TempDir())
	handshake(t, c)

	var raw [8]byte
	bo.PutUint32(raw[:4], 3) // frame shorter than its own header
	c.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write(raw[:]); err != nil {
		// the server may tear down before consuming the whole write
		return
	}
	var b [1]byte
	if _, err := c.Read(b[:]); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}

func TestSessionDuplicateAttachFid(t *testing.T) {
	c := startSession(t, t.TempDir())
	handshake(t, c)
	attach(t, c, 0)

	m := make([]byte, 256)
	Tattach(m).fill(2, 0, NO_FID, "guest", "/", 0)
	expectRlerror(t, roundtrip(t, c, Tattach(m).Bytes()), ecodeINVAL)
}

func TestSessionWalkDuplicateNewFid(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "d"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	c := startSession(t, root)
	handshake(t, c)
	attach(t, c, 0)

	reply := walkTo(t, c, 0, 1, []string{"d"})
	if MsgBase(reply).Type() != msgRwalk {
		t.Fatalf("expected Rwalk, got %s", MsgBase(reply).Type())
	}
	expectRlerror(t, walkTo(t, c, 0, 1, []string{"d"}), ecodeINVAL)
}

func TestSessionTeardownLeaksNothing(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	before := openFDCount(t)
	client, server := net.Pipe()
	srv := &Server{Root: root}
	done := make(chan struct{})
	go func() {
		srv.ServeConn(server)
		close(done)
	}()

	handshake(t, client)
	attach(t, client, 0)
	walkTo(t, client, 0, 1, []string{"f"}) // left unclunked on purpose

	client.Close()
	<-done
	if after := openFDCount(t); after != before {
		t.Fatalf("descriptor leak across session teardown: %d before, %d after", before, after)
	}
}

// fuzz the framing and decode path: whatever bytes arrive, the session must
// tear down cleanly instead of panicking or hanging.
func FuzzSession(f *testing.F) {
	seed := make([]byte, 64)
	Tversion(seed).fill(NO_TAG, MIN_MESSAGE_SIZE, VERSION_9P2000L)
	f.Add(append([]byte{}, Tversion(seed).Bytes()...))
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Add([]byte{3, 0, 0, 0, 100})

	root := f.TempDir()
	f.Fuzz(func(t *testing.T, data []byte) {
		srv := &Server{Root: root}
		rwc := &scriptedConn{r: bytes.NewReader(data)}
		srv.ServeConn(rwc)
	})
}

// scriptedConn feeds a canned byte stream and discards replies.
type scriptedConn struct {
	r *bytes.Reader
}

func (c *scriptedConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *scriptedConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *scriptedConn) Close() error                { return nil }
