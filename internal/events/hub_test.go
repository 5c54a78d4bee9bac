package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-reading-assistant/internal/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dialHub(t, srv)
	defer a.Close()
	b := dialHub(t, srv)
	defer b.Close()

	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast(models.PlaybackState{
		EventType:  models.EventPlaybackState,
		RequestID:  "abc-req-1",
		Timestamp:  42,
		IsSpeaking: true,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got models.PlaybackState
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if got.RequestID != "abc-req-1" || !got.IsSpeaking {
			t.Errorf("unexpected event: %+v", got)
		}
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after hub shutdown")
	}
}

func TestHub_StalledClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	hub.writeWait = 50 * time.Millisecond
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	healthy := dialHub(t, srv)
	defer healthy.Close()
	stalled := dialHub(t, srv)
	defer stalled.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	var received atomic.Int64
	go func() {
		for {
			if _, _, err := healthy.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	// The stalled client never reads, so socket buffers fill and its writes
	// hit the deadline.
	payload := strings.Repeat("x", 1<<20)
	const events = 48
	go func() {
		for i := 0; i < events; i++ {
			hub.Broadcast(payload)
		}
	}()

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	waitFor(t, func() bool { return received.Load() == events })
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub()

	// No Run loop: the queue fills and further events are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Broadcast(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("expected %d queued events, got %d", broadcastBuffer, len(hub.broadcast))
	}
}
