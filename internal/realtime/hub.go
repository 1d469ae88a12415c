package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventJobStatus carries a job view after every change.
	EventJobStatus = "job_status"
)

// Publisher forwards job events to other processes (e.g. Redis pub/sub).
type Publisher interface {
	PublishJobEvent(jobID, event string, payload []byte) error
}

// Hub maintains job_id -> set of watching connections and fans out status changes.
type Hub struct {
	// jobID -> map[clientID]*Client
	jobs   map[string]map[string]*Client
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
}

// NewHub creates a hub. pub may be nil.
func NewHub(logger *zap.Logger, pub Publisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		jobs:   make(map[string]map[string]*Client),
		logger: logger,
		pub:    pub,
	}
}

// Register adds a client to a job's watchers.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.jobs[c.JobID] == nil {
		h.jobs[c.JobID] = make(map[string]*Client)
	}
	h.jobs[c.JobID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("watcher joined", zap.String("client_id", c.ID), zap.String("job_id", c.JobID))
}

// Unregister removes a client from a job's watchers.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.jobs[c.JobID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.jobs, c.JobID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("watcher left", zap.String("client_id", c.ID), zap.String("job_id", c.JobID))
}

// WatcherCount returns the number of connections watching a job.
func (h *Hub) WatcherCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs[jobID])
}

// Broadcast sends a message to all local watchers of a job. Slow watchers drop messages.
func (h *Hub) Broadcast(jobID, event string, data []byte, final bool) {
	out := outbound{msg: WSMessage{Event: event, Data: data}, final: final}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.jobs[jobID] {
		select {
		case c.send <- out:
		default:
			// buffer full, skip
		}
	}
}

// Notify is the registry observer: it broadcasts the view to watchers and publishes it.
func (h *Hub) Notify(view models.JobView) {
	data, err := json.Marshal(view)
	if err != nil {
		h.logger.Warn("marshal job view", zap.String("job_id", view.ID), zap.Error(err))
		return
	}
	h.Broadcast(view.ID, EventJobStatus, data, view.Status.Terminal())
	if h.pub != nil {
		if err := h.pub.PublishJobEvent(view.ID, EventJobStatus, data); err != nil {
			h.logger.Warn("publish job event", zap.String("job_id", view.ID), zap.Error(err))
		}
	}
}
