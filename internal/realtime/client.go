package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/models"
	"github.com/saru2020/ClipsExtractor/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // watch streams are read-only job views
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a queued message; final closes the connection after it is written.
type outbound struct {
	msg   WSMessage
	final bool
}

// Client is one WebSocket connection watching a job.
type Client struct {
	ID     string
	JobID  string
	hub    *Hub
	conn   *websocket.Conn
	send   chan outbound
	logger *zap.Logger
}

// ViewFunc looks up the current view of a job.
type ViewFunc func(id string) (models.JobView, error)

// ServeWatch upgrades to a WebSocket that streams job views until the job is terminal.
func ServeWatch(hub *Hub, lookup ViewFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if _, err := lookup(jobID); err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				response.NotFound(c, "Job not found")
				return
			}
			response.Internal(c, err.Error())
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			JobID:  jobID,
			hub:    hub,
			conn:   conn,
			send:   make(chan outbound, 64),
			logger: logger,
		}
		hub.Register(client)

		// Read after registering so no change between lookup and register is missed.
		view, err := lookup(jobID)
		if err != nil {
			hub.Unregister(client)
			_ = conn.Close()
			return
		}
		data, _ := json.Marshal(view)
		client.send <- outbound{msg: WSMessage{Event: EventJobStatus, Data: data}, final: view.Status.Terminal()}

		go client.writePump()
		client.readPump()
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case out := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(out.msg); err != nil {
				return
			}
			if out.final {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
