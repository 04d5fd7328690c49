package control

import (
	"context"
	"errors"
	"log"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/udplog/internal/model"
)

// Conn is the listener socket. *net.UDPConn satisfies it.
type Conn interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	SetReadDeadline(t time.Time) error
}

// ListenerConfig holds tunable parameters for the listener.
type ListenerConfig struct {
	ReadTimeout time.Duration
	BufferSize  int
}

// Listener serves control requests on one socket, one at a time.
type Listener struct {
	conn        Conn
	handler     *Handler
	readTimeout time.Duration
	bufSize     int

	handled atomic.Uint64
}

// NewListener creates a listener answering on conn.
func NewListener(conn Conn, handler *Handler, conf ...ListenerConfig) *Listener {
	l := &Listener{
		conn:        conn,
		handler:     handler,
		readTimeout: model.DefaultReadTimeout,
		bufSize:     model.DefaultControlBuffer,
	}
	if len(conf) > 0 {
		if conf[0].ReadTimeout > 0 {
			l.readTimeout = conf[0].ReadTimeout
		}
		if conf[0].BufferSize > 0 {
			l.bufSize = conf[0].BufferSize
		}
	}
	return l
}

// Run receives and answers requests until ctx is done or the socket is
// closed. A receive timeout only re-checks ctx.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, l.bufSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		n, from, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case errors.Is(err, net.ErrClosed):
				return nil
			case ctx.Err() != nil:
				return nil
			}
			log.Printf("control: receive: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.readTimeout):
			}
			continue
		}

		reply, ok := l.handler.HandleDatagram(buf[:n])
		if !ok {
			continue
		}
		l.handled.Add(1)
		if _, err := l.conn.WriteToUDPAddrPort([]byte(reply), from); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("control: reply to %s: %v", from, err)
		}
	}
}

// Handled returns the number of requests answered.
func (l *Listener) Handled() uint64 { return l.handled.Load() }
