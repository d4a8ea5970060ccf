package ninepl

import (
	"io"
	"net"
)

func isTimeoutErr(err error) bool {
	if err, ok := err.(net.Error); ok && err.Timeout() {
		return true
	}
	return false
}

func isTemporaryErr(err error) bool {
	type t interface {
		Temporary() bool
	}
	if err, ok := err.(t); ok {
		return err.Temporary()
	}
	return false
}

func readUpTo(r io.Reader, p []byte) (int, error) {
	var err error
	n := 0
	for n < len(p) && err == nil {
		m, e := r.Read(p[n:])
		n += m
		if isTimeoutErr(e) {
			return n, e
		} else if isTemporaryErr(e) {
			continue
		}
		err = e
	}
	if n == len(p) {
		return n, nil
	}
	return n, err
}
