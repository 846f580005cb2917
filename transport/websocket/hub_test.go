package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *Hub, simulationID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, simulationID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, simulationID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(simulationID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients for %s, got %d", n, simulationID, hub.ClientCount(simulationID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return msg
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	if hub.simulations == nil {
		t.Error("Hub simulations map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialized")
	}
}

func TestHubRegisterAndUnregisterClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{hub: hub, simulationID: "sim-1", send: make(chan []byte, 1)}

	hub.registerClient(client)
	if hub.ClientCount("sim-1") != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount("sim-1"))
	}

	hub.unregisterClient(client)
	if hub.ClientCount("sim-1") != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount("sim-1"))
	}
	if _, exists := hub.simulations["sim-1"]; exists {
		t.Error("Expected empty simulation entry to be removed")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}

	// Second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := &Client{hub: hub, simulationID: "sim-1", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SimulationID: "sim-1", Event: EventSnapshot})
	if hub.ClientCount("sim-1") != 0 {
		t.Error("Expected slow client to be dropped")
	}
}

func TestHubPublishReachesSubscribers(t *testing.T) {
	hub := newRunningHub(t)

	watcher := dial(t, hub, "sim-1")
	other := dial(t, hub, "sim-2")
	waitForClients(t, hub, "sim-1", 1)
	waitForClients(t, hub, "sim-2", 1)

	hub.Publish("sim-1", engine.Snapshot{Tick: 42, Stats: engine.Stats{Spawned: 3}})

	msg := readMessage(t, watcher)
	if msg.Event != EventSnapshot || msg.SimulationID != "sim-1" {
		t.Errorf("Expected snapshot for sim-1, got %s for %s", msg.Event, msg.SimulationID)
	}
	if msg.Snapshot == nil || msg.Snapshot.Tick != 42 || msg.Snapshot.Stats.Spawned != 3 {
		t.Errorf("Unexpected snapshot payload: %+v", msg.Snapshot)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Expected no message for a different simulation")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := newRunningHub(t)
	conn := dial(t, hub, "sim-1")
	waitForClients(t, hub, "sim-1", 1)

	hub.BroadcastEvent("sim-1", EventDeleted, map[string]string{"reason": "deleted"})

	msg := readMessage(t, conn)
	if msg.Event != EventDeleted {
		t.Errorf("Expected %s event, got %s", EventDeleted, msg.Event)
	}
	if msg.Snapshot != nil {
		t.Error("Expected no snapshot on custom event")
	}
}

func TestHubClientDisconnect(t *testing.T) {
	hub := newRunningHub(t)
	conn := dial(t, hub, "sim-1")
	waitForClients(t, hub, "sim-1", 1)

	conn.Close()
	waitForClients(t, hub, "sim-1", 0)
}

func TestHubPublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish("sim-1", engine.Snapshot{Tick: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
