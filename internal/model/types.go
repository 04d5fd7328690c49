package model

// Mode selects where forwarded lines are sent.
type Mode int

const (
	ModeBroadcast Mode = iota
	ModeUnicast
)

func (m Mode) String() string {
	if m == ModeUnicast {
		return "unicast"
	}
	return "broadcast"
}

// LogLine is one formatted log line on its way to the transport socket.
// The bytes are owned by the line; producers hand over a private copy and
// the dispatcher is the only reader.
type LogLine struct {
	data []byte
}

// NewLogLine copies at most capacity bytes of p into a new line.
// A non-positive capacity keeps all of p.
func NewLogLine(p []byte, capacity int) LogLine {
	n := len(p)
	if capacity > 0 && n > capacity {
		n = capacity
	}
	data := make([]byte, n)
	copy(data, p[:n])
	return LogLine{data: data}
}

// Bytes returns the line payload. Callers must not modify it.
func (l LogLine) Bytes() []byte { return l.data }

// Len returns the payload length.
func (l LogLine) Len() int { return len(l.data) }

// Status is the read model served by the admin API.
type Status struct {
	Phase            string `json:"phase"`
	Host             string `json:"host"`
	Mode             string `json:"mode"`
	BroadcastEnabled bool   `json:"broadcast_enabled"`
	BroadcastReady   bool   `json:"broadcast_ready"`
	Broadcast        string `json:"broadcast,omitempty"`
	UnicastReady     bool   `json:"unicast_ready"`
	Unicast          string `json:"unicast,omitempty"`
	Drops            uint64 `json:"drops"`
	Sent             uint64 `json:"sent"`
	Unrouted         uint64 `json:"unrouted"`
	SendErrors       uint64 `json:"send_errors"`
	Queued           int    `json:"queued"`
	QueueCapacity    int    `json:"queue_capacity"`
	Listening        bool   `json:"listening"`
}

// InputLine is one line read from a local input (stdin, TCP) on its way to
// the host log output.
type InputLine struct {
	Source string
	Text   string
}
