package control

import (
	"errors"
	"net/netip"
	"strconv"

	"github.com/tinytelemetry/udplog/internal/destination"
)

var (
	// ErrBadAddress reports an argument that is not a dotted-quad IPv4 address.
	ErrBadAddress = errors.New("control: not an IPv4 address")
	// ErrBadPort reports a port outside 1..65535.
	ErrBadPort = errors.New("control: port out of range")
)

// ParseTarget validates a bind target given as text.
func ParseTarget(ip, port string) (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return netip.AddrPort{}, ErrBadAddress
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return netip.AddrPort{}, ErrBadPort
	}
	return netip.AddrPortFrom(addr, uint16(n)), nil
}

// ParseSwitch reads the argument of the broadcast command.
func ParseSwitch(arg string) (on bool, ok bool) {
	switch arg {
	case "on", "1":
		return true, true
	case "off", "0":
		return false, true
	}
	return false, false
}

// Handler applies commands to the destination state.
type Handler struct {
	state *destination.State
	host  func() string
}

// NewHandler returns a handler mutating state. host reports the identity
// shown by status; it may be nil.
func NewHandler(state *destination.State, host func() string) *Handler {
	if host == nil {
		host = func() string { return "" }
	}
	return &Handler{state: state, host: host}
}

// Handle executes cmd and returns the reply line.
func (h *Handler) Handle(cmd Command) string {
	switch cmd.Name {
	case CmdBind:
		target, err := ParseTarget(cmd.Arg(0), cmd.Arg(1))
		if err != nil {
			return ReplyBindUsage
		}
		h.state.Bind(target)
		return ReplyBound

	case CmdUnbind:
		h.state.Unbind()
		return ReplyUnbound

	case CmdBroadcast:
		on, ok := ParseSwitch(cmd.Arg(0))
		if !ok {
			return ReplyBroadcastHelp
		}
		h.state.SetBroadcastEnabled(on)
		if on {
			return ReplyBroadcastOn
		}
		return ReplyBroadcastOff

	case CmdStatus:
		return FormatStatus(h.host(), h.state.Snapshot())
	}
	return ReplyUnknown
}

// HandleDatagram parses and executes one request. It reports false when the
// datagram was empty and no reply is due.
func (h *Handler) HandleDatagram(p []byte) (string, bool) {
	cmd, ok := Parse(p)
	if !ok {
		return "", false
	}
	return h.Handle(cmd), true
}
