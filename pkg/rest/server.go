package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paravirt/cryptodev/pkg/host"
	"github.com/paravirt/cryptodev/pkg/types"
)

// Server exposes a read-only status surface for one host agent.
type Server struct {
	agent      *host.Agent
	facility   types.Facility
	instanceID string
	startedAt  time.Time
}

// NewServer creates the status server.
func NewServer(agent *host.Agent, facility types.Facility, instanceID string) *Server {
	return &Server{
		agent:      agent,
		facility:   facility,
		instanceID: instanceID,
		startedAt:  time.Now(),
	}
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}

// GetStatus reports agent counters and facility occupancy.
func (s *Server) GetStatus(rw http.ResponseWriter, req *http.Request) {
	stats := s.agent.Stats()
	status := Status{
		InstanceID:  s.instanceID,
		StartedAt:   s.startedAt,
		UptimeSec:   int64(time.Since(s.startedAt).Seconds()),
		Processed:   stats.Processed,
		Malformed:   stats.Malformed,
		Connections: stats.Connections,
		QueueDepth:  stats.QueueDepth,
	}
	if fs, ok := s.facility.(types.FacilityStats); ok {
		status.OpenHandles = fs.OpenHandles()
		status.LiveSessions = fs.LiveSessions()
	}
	writeJSON(rw, &status)
}

// ListConnections reports the live guest connection handles.
func (s *Server) ListConnections(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, &ConnectionCollection{Data: s.agent.Connections()})
}
