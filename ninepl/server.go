package ninepl

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

type Logger interface {
	Printf(format string, values ...interface{})
}

// Per-connection protocol states. Only attach (and version/flush/auth) are
// legal before the root fid is established; a framing failure or shutdown is
// terminal.
type connState int

const (
	stateUnattached connState = iota
	stateAttached
	stateClosed
)

// Server exports the directory subtree at Root over 9P2000.L. Connections
// are fully independent: each gets its own fid table, qid pool, and root
// descriptor, so no state is shared between their goroutines.
type Server struct {
	Root string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxMsgSize uint32

	ErrorLog, TraceLog Logger
}

func (s *Server) tracef(f string, values ...interface{}) {
	if s.TraceLog != nil {
		s.TraceLog.Printf(f, values...)
	}
}

func (s *Server) errorf(f string, values ...interface{}) {
	if s.ErrorLog != nil {
		s.ErrorLog.Printf(f, values...)
	}
}

func (s *Server) maxMsgSize() uint32 {
	if s.MaxMsgSize >= MIN_MESSAGE_SIZE {
		return s.MaxMsgSize
	}
	return DEFAULT_MAX_MESSAGE_SIZE
}

func (s *Server) Serve(l net.Listener) error {
	s.tracef("exporting %s on %s", s.Root, l.Addr())
	retries := 0
	const maxWait = 2 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			if isTemporaryErr(err) {
				retries++
				wait := time.Duration(math.Min(math.Pow(float64(10*time.Millisecond), float64(retries)), float64(maxWait)))
				s.tracef("accept error: %s; retrying in %v", err, wait)
				time.Sleep(wait)
				continue
			}
			return err
		}
		s.tracef("accepted connection from %s", conn.RemoteAddr())
		go func() {
			if err := s.serveConn(ctx, conn); err != nil {
				s.errorf("connection from %s: %s", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (s *Server) ListenAndServe(network, addr string) error {
	ln, err := Listen(network, addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// ServeConn runs the protocol on one duplex byte stream until the peer goes
// away or the framing breaks. Used by Serve for accepted sockets and
// directly by tests and the fuzzing harness.
func (s *Server) ServeConn(rwc io.ReadWriteCloser) error {
	return s.serveConn(context.Background(), rwc)
}

func (s *Server) serveConn(ctx context.Context, rwc io.ReadWriteCloser) error {
	rootFD, err := unix.Open(s.Root, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		rwc.Close()
		return err
	}
	sess := &session{
		rwc:      rwc,
		rootFD:   rootFD,
		walker:   walker{rootFD: rootFD},
		fids:     NewFidTable(),
		qids:     NewQidPool(),
		msize:    s.maxMsgSize(),
		ctx:      ctx,
		errorLog: s.ErrorLog,
		traceLog: s.TraceLog,

		readTimeout:  s.ReadTimeout,
		writeTimeout: s.WriteTimeout,
	}
	sess.serve()
	return nil
}

/////////////////////////////////////////////////////////////

type session struct {
	rwc io.ReadWriteCloser
	txn srvTransaction

	rootFD int
	walker walker
	fids   *FidTable
	qids   *QidPool

	state connState
	msize uint32

	ctx context.Context

	readTimeout, writeTimeout time.Duration

	errorLog, traceLog Logger
}

func (s *session) tracef(f string, values ...interface{}) {
	if s.traceLog != nil {
		s.traceLog.Printf(f, values...)
	}
}

func (s *session) errorf(f string, values ...interface{}) {
	if s.errorLog != nil {
		s.errorLog.Printf(f, values...)
	}
}

func (s *session) hasCancelled() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

type deadlineConn interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

func (s *session) readRequest() error {
	if c, ok := s.rwc.(deadlineConn); ok && s.readTimeout != 0 {
		c.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	return s.txn.readRequest(s.rwc)
}

func (s *session) writeReply() error {
	if c, ok := s.rwc.(deadlineConn); ok && s.writeTimeout != 0 {
		c.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.txn.writeReply(s.rwc)
}

// serve drives the connection to completion. All teardown happens here:
// whatever fids are still live when the loop exits are drained, so a guest
// that vanishes without clunking leaks no descriptors.
func (s *session) serve() {
	defer func() {
		s.state = stateClosed
		s.fids.Drain()
		unix.Close(s.rootFD)
		s.rwc.Close()
		s.tracef("connection closed")
	}()

	s.txn = newTransaction(s.msize)

	if !s.acceptTversion() {
		return
	}

	// the negotiated msize may be smaller than what we allocated for
	// negotiation
	s.txn = newTransaction(s.msize)

	for {
		if s.hasCancelled() {
			s.tracef("received shutdown signal")
			return
		}
		if err := s.readRequest(); err != nil {
			if !errors.Is(err, io.EOF) {
				s.errorf("failed to read message: %s", err)
			}
			return
		}
		m, err := s.txn.Request()
		if err != nil {
			// undecodable framing is fatal; there is no way to trust the
			// next message boundary
			s.errorf("dropping connection: %s", err)
			return
		}
		s.handle(m)
		if s.txn.handled {
			if err := s.writeReply(); err != nil {
				s.errorf("failed to write reply: %s", err)
				return
			}
		}
	}
}

// acceptTversion performs version negotiation. The guest may retry with
// different versions; anything that is not a Tversion at all drops the
// connection.
func (s *session) acceptTversion() bool {
	preferredSize := s.msize

	for {
		if err := s.readRequest(); err != nil {
			s.errorf("failed to negotiate version: error when reading: %s", err)
			return false
		}

		m, err := s.txn.Request()
		if err != nil {
			s.errorf("failed to negotiate version: %s", err)
			return false
		}
		request, ok := m.(Tversion)
		if !ok {
			s.errorf("failed to negotiate version: unexpected message type: %s", s.txn.requestType())
			return false
		}

		if request.Tag() != NO_TAG {
			s.errorf("client sent bad tag (got: %d, wanted: NO_TAG/%d)", request.Tag(), NO_TAG)
			return false
		}
		if request.MsgSize() < MIN_MESSAGE_SIZE {
			s.errorf("client requested message size below minimum (got: %d, min: %d)", request.MsgSize(), MIN_MESSAGE_SIZE)
			return false
		}

		size := request.MsgSize()
		if size > preferredSize {
			size = preferredSize
		}

		ok = request.Version() == VERSION_9P2000L
		if ok {
			s.msize = size
			s.txn.Rversion(size, VERSION_9P2000L)
		} else {
			s.tracef("negotiate version: unrecognized protocol version: got %#v, wanted %#v", request.Version(), VERSION_9P2000L)
			s.txn.Rversion(size, "unknown")
		}

		if err := s.writeReply(); err != nil {
			s.errorf("failed to negotiate version: %s", err)
			return false
		}
		if ok {
			return true
		}
	}
}
