// Package logsource reads lines from local inputs so they can be written to
// the host log output and forwarded.
package logsource

import "github.com/tinytelemetry/udplog/internal/model"

// LogSource is a line input (stdin, TCP).
type LogSource interface {
	Lines() <-chan model.InputLine // closed when the source ends
	Stop()                         // idempotent
	Name() string                  // "stdin", "tcp"
}
