// Package control implements the text command protocol used to steer a
// running forwarder over UDP.
//
// A request is one datagram holding COMMAND [ARG1 [ARG2 [ARG3]]]; tokens are
// separated by any run of space, tab, CR or LF. Every reply is a single line
// terminated by '\n' and is sent back to the datagram's source address.
package control

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/udplog/internal/destination"
)

// MaxTokens is the number of tokens kept from one request.
const MaxTokens = 4

// Command names.
const (
	CmdBind      = "bind"
	CmdUnbind    = "unbind"
	CmdBroadcast = "broadcast"
	CmdStatus    = "status"
)

// Replies.
const (
	ReplyBound         = "OK bound\n"
	ReplyUnbound       = "OK unbound\n"
	ReplyBroadcastOn   = "OK broadcast on\n"
	ReplyBroadcastOff  = "OK broadcast off\n"
	ReplyBindUsage     = "ERR usage: bind <ipv4> <port>\n"
	ReplyBroadcastHelp = "ERR usage: broadcast on|off\n"
	ReplyUnknown       = "ERR unknown command\n"
)

// PendingHost is reported by status while the host identity is unknown.
const PendingHost = "(pending)"

// Command is a tokenized request.
type Command struct {
	Name string
	Args []string
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// String renders the command in wire form, without a trailing newline.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// Parse tokenizes a request datagram. Tokens past MaxTokens are ignored.
// It reports false for a datagram holding only separators.
func Parse(p []byte) (Command, bool) {
	fields := strings.FieldsFunc(string(p), isSeparator)
	if len(fields) == 0 {
		return Command{}, false
	}
	if len(fields) > MaxTokens {
		fields = fields[:MaxTokens]
	}
	cmd := Command{Name: fields[0]}
	if len(fields) > 1 {
		cmd.Args = fields[1:]
	}
	return cmd, true
}

// FormatStatus renders the status reply for a destination snapshot.
func FormatStatus(host string, snap destination.Snapshot) string {
	if host == "" {
		host = PendingHost
	}
	broadcast := "off"
	if snap.BroadcastEnabled {
		broadcast = "on"
	}
	ip, port := "-", uint16(0)
	if snap.UnicastReady {
		ip, port = snap.Unicast.Addr().String(), snap.Unicast.Port()
	}
	return fmt.Sprintf("host=%s mode=%s broadcast=%s drops=%d unicast=%s:%d\n",
		host, snap.Mode, broadcast, snap.Drops, ip, port)
}

// StatusFields splits a status reply into its key/value pairs.
func StatusFields(reply string) map[string]string {
	out := make(map[string]string)
	for _, f := range strings.Fields(reply) {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

