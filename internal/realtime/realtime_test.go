package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishJobEvent(jobID, event string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, jobID+":"+event)
	return p.err
}

func newWatchServer(t *testing.T) (*httptest.Server, *jobs.Registry, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := jobs.NewRegistry()
	hub := NewHub(nil, nil)
	reg.SetObserver(hub.Notify)

	r := gin.New()
	r.GET("/api/jobs/:id/watch", ServeWatch(hub, reg.View, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, reg, hub
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + id + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) models.JobView {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != EventJobStatus {
		t.Fatalf("event = %s", msg.Event)
	}
	var view models.JobView
	if err := json.Unmarshal(msg.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func waitForWatchers(t *testing.T, hub *Hub, id string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.WatcherCount(id) != n {
		if time.Now().After(deadline) {
			t.Fatalf("watchers = %d, want %d", hub.WatcherCount(id), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchStreamsUntilTerminal(t *testing.T) {
	srv, reg, hub := newWatchServer(t)
	tr := reg.Create("https://example.com/v", "p")
	conn := dial(t, srv, tr.ID())

	if v := readView(t, conn); v.Status != models.JobStatusPending {
		t.Fatalf("initial status = %s", v.Status)
	}
	waitForWatchers(t, hub, tr.ID(), 1)

	_ = tr.Transition(models.JobStatusDownloading, "")
	if v := readView(t, conn); v.Status != models.JobStatusDownloading {
		t.Fatalf("status = %s", v.Status)
	}
	_ = tr.Fail("Job processing failed: download: boom")
	v := readView(t, conn)
	if v.Status != models.JobStatusFailed || v.ErrorMessage == nil {
		t.Fatalf("final view = %+v", v)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after terminal status, got %v", err)
	}
	waitForWatchers(t, hub, tr.ID(), 0)
}

func TestWatchTerminalJobClosesImmediately(t *testing.T) {
	srv, reg, _ := newWatchServer(t)
	tr := reg.Create("https://example.com/v", "p")
	_ = tr.Fail("x")

	conn := dial(t, srv, tr.ID())
	if v := readView(t, conn); v.Status != models.JobStatusFailed {
		t.Fatalf("status = %s", v.Status)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected close, got %v", err)
	}
}

func TestWatchUnknownJob(t *testing.T) {
	srv, _, _ := newWatchServer(t)
	resp, err := http.Get(srv.URL + "/api/jobs/missing/watch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNotifyPublishes(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	hub := NewHub(nil, pub)
	hub.Notify(models.JobView{ID: "job-1", Status: models.JobStatusProcessing})
	hub.Notify(models.JobView{ID: "job-1", Status: models.JobStatusCompleted})

	if len(pub.events) != 2 || pub.events[0] != "job-1:"+EventJobStatus {
		t.Fatalf("published = %v", pub.events)
	}
}

func TestChannelName(t *testing.T) {
	if got := Channel("abc"); got != "clipjob:abc" {
		t.Fatalf("channel = %q", got)
	}
}
