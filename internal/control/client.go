package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/tinytelemetry/udplog/internal/model"
)

// ErrNoReply is returned by Client.Send when the device stayed silent for
// the whole reply window.
var ErrNoReply = errors.New("control: no reply")

// Client sends control requests from an ephemeral local socket.
type Client struct {
	ReplyTimeout time.Duration
}

// NewClient returns a client with the default reply timeout.
func NewClient() *Client {
	return &Client{ReplyTimeout: model.DefaultReplyTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.ReplyTimeout > 0 {
		return c.ReplyTimeout
	}
	return model.DefaultReplyTimeout
}

func (c *Client) send(target netip.AddrPort, cmd string) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("control: open socket: %w", err)
	}
	if _, err := conn.WriteToUDPAddrPort([]byte(cmd), target); err != nil {
		conn.Close()
		return nil, fmt.Errorf("control: send to %s: %w", target, err)
	}
	return conn, nil
}

// Send delivers cmd to target and waits for the reply line.
func (c *Client) Send(ctx context.Context, target netip.AddrPort, cmd string) (string, error) {
	conn, err := c.send(target, cmd)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("control: set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", ErrNoReply
		}
		return "", fmt.Errorf("control: receive from %s: %w", target, err)
	}
	return string(buf[:n]), nil
}

// SendNoReply delivers cmd without waiting for an answer.
func (c *Client) SendNoReply(target netip.AddrPort, cmd string) error {
	conn, err := c.send(target, cmd)
	if err != nil {
		return err
	}
	return conn.Close()
}

// LocalAddrFor returns the local IPv4 address the kernel would use to reach
// target. No packet is sent.
func LocalAddrFor(target netip.Addr) (netip.Addr, error) {
	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(netip.AddrPortFrom(target, 9)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("control: route to %s: %w", target, err)
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr).AddrPort().Addr().Unmap()
	if !local.Is4() {
		return netip.Addr{}, fmt.Errorf("control: route to %s: no IPv4 source address", target)
	}
	return local, nil
}
