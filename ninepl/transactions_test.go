package ninepl

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadRequestRejectsUndersizedFrame(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	var raw [8]byte
	bo.PutUint32(raw[:4], 5) // below the 7 byte header
	err := txn.readRequest(bytes.NewReader(raw[:]))
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}

func TestReadRequestRejectsOversizedFrame(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	var raw [8]byte
	bo.PutUint32(raw[:4], MIN_MESSAGE_SIZE+1)
	err := txn.readRequest(bytes.NewReader(raw[:]))
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}

func TestRequestDecodesKnownMessage(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	Tclunk(txn.inMsg).fill(3, 9)
	m, err := txn.Request()
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	clunk, ok := m.(Tclunk)
	if !ok {
		t.Fatalf("expected a Tclunk, got %T", m)
	}
	if clunk.Fid() != 9 {
		t.Fatalf("expected fid to match: %d != %d", clunk.Fid(), 9)
	}
}

func TestRequestRejectsShortPayload(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	Tclunk(txn.inMsg).fill(3, 9)
	bo.PutUint32(txn.inMsg[:4], msgOffset+2) // fid now truncated
	_, err := txn.Request()
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}

func TestRequestPassesThroughUnknownOpcode(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	MsgBase(txn.inMsg).fill(MsgType(30), 3, msgOffset)
	m, err := txn.Request()
	if err != nil {
		t.Fatalf("expected unknown opcode to decode, got %v", err)
	}
	if _, ok := m.(MsgBase); !ok {
		t.Fatalf("expected a bare MsgBase, got %T", m)
	}
}

func TestWriteReplyFramesExactly(t *testing.T) {
	txn := newTransaction(MIN_MESSAGE_SIZE)
	txn.Rlerror(5)
	var out bytes.Buffer
	if err := txn.writeReply(&out); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	if out.Len() != msgOffset+4 {
		t.Fatalf("expected reply to be %d bytes, got %d", msgOffset+4, out.Len())
	}
	reply := Rlerror(out.Bytes())
	if reply.Tag() != 0 {
		t.Fatalf("expected tag to match: %d != %d", reply.Tag(), 0)
	}
	if reply.Ecode() != 5 {
		t.Fatalf("expected ecode to match: %d != %d", reply.Ecode(), 5)
	}
}
