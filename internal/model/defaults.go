package model

import "time"

// Shared defaults used by both the agent and CLI binaries.
const (
	DefaultLogPort       = 9999
	DefaultControlPort   = 9998
	DefaultMaxLine       = 256
	DefaultQueueDepth    = 32
	DefaultReadTimeout   = 200 * time.Millisecond
	DefaultReplyTimeout  = time.Second
	DefaultHostPrefix    = "udplog"
	DefaultControlBuffer = 512
)
