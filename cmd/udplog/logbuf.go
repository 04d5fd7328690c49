package main

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/KarpelesLab/ringbuf"
)

// logRing keeps the most recent agent log output in memory for /api/logs.
type logRing struct {
	buf *ringbuf.Writer
}

func newLogRing() (*logRing, error) {
	buf, err := ringbuf.New(defaultLogRingSize)
	if err != nil {
		return nil, err
	}
	return &logRing{buf: buf}, nil
}

func (r *logRing) Write(p []byte) (int, error) {
	return r.buf.Write(p)
}

// Dump copies the buffered output to w.
func (r *logRing) Dump(w io.Writer) error {
	if r == nil {
		return errors.New("log ring unavailable")
	}
	rd := r.buf.Reader()
	defer rd.Close()
	_, err := io.Copy(w, rd)
	return err
}

func (r *logRing) Close() {
	r.buf.Close()
}

// configureRuntimeLogger sends the standard logger to stderr and the ring.
// The forwarder later wraps this output, so every agent log line is also
// forwarded once it is running.
func configureRuntimeLogger() (*logRing, func()) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ring, err := newLogRing()
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("server: failed to set up log ring: %v", err)
		return nil, func() {}
	}

	log.SetOutput(io.MultiWriter(os.Stderr, ring))
	return ring, func() {
		log.SetOutput(os.Stderr)
		ring.Close()
	}
}
