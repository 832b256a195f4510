package rest

import (
	"time"

	"github.com/paravirt/cryptodev/pkg/host"
)

// Status is the host agent's point-in-time state.
type Status struct {
	InstanceID   string    `json:"instanceID"`
	StartedAt    time.Time `json:"startedAt"`
	UptimeSec    int64     `json:"uptimeSec"`
	Processed    uint64    `json:"processed"`
	Malformed    uint64    `json:"malformed"`
	Connections  int       `json:"connections"`
	QueueDepth   int       `json:"queueDepth"`
	OpenHandles  int       `json:"openHandles"`
	LiveSessions int       `json:"liveSessions"`
}

// ConnectionCollection wraps the live connection list.
type ConnectionCollection struct {
	Data []host.Connection `json:"data"`
}
