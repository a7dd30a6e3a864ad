package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"zigbee-lumi/internal/coordinator"
)

func newTestHub() *WSHub {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWSHub(logger)
}

func testEvent(typ, ieee string) coordinator.Event {
	return coordinator.Event{Type: typ, Data: coordinator.DeviceData{IEEE: ieee, Name: "Bedroom Curtain"}}
}

func TestWSHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	client := &wsClient{send: make(chan []byte, 16)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	count := len(hub.clients)
	hub.mu.RUnlock()
	if count != 1 {
		t.Errorf("after register: count = %d, want 1", count)
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	count = len(hub.clients)
	hub.mu.RUnlock()
	if count != 0 {
		t.Errorf("after unregister: count = %d, want 0", count)
	}
}

func TestWSHubBroadcast(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	c1 := &wsClient{send: make(chan []byte, 16)}
	c2 := &wsClient{send: make(chan []byte, 16)}
	hub.register <- c1
	hub.register <- c2
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testEvent(coordinator.EventDeviceInstalled, "00158D0001A2B3C4"))
	time.Sleep(10 * time.Millisecond)

	for name, c := range map[string]*wsClient{"c1": c1, "c2": c2} {
		select {
		case msg := <-c.send:
			var ev struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != "device_installed" {
				t.Errorf("%s received %s", name, msg)
			}
		default:
			t.Errorf("%s did not receive broadcast", name)
		}
	}
}

func TestWSHubFilters(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	byDevice := &wsClient{send: make(chan []byte, 16), filter: wsFilter{devices: map[string]bool{"54EF441000ABCDEF": true}}}
	byName := &wsClient{send: make(chan []byte, 16), filter: wsFilter{devices: map[string]bool{"Bedroom Curtain": true}}}
	byType := &wsClient{send: make(chan []byte, 16), filter: wsFilter{types: map[string]bool{"device_removed": true}}}
	hub.register <- byDevice
	hub.register <- byName
	hub.register <- byType
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testEvent(coordinator.EventDeviceInstalled, "00158D0001A2B3C4"))
	time.Sleep(10 * time.Millisecond)

	if len(byDevice.send) != 0 {
		t.Error("device filter passed another device")
	}
	if len(byName.send) != 1 {
		t.Error("name filter dropped its device")
	}
	if len(byType.send) != 0 {
		t.Error("type filter passed another type")
	}
}

func TestParseFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?device=00158d0001a2b3c4,%20Hall&type=health", nil)
	f := parseFilter(r)
	if !f.devices["00158D0001A2B3C4"] || !f.devices["Hall"] {
		t.Errorf("devices = %v", f.devices)
	}
	if !f.types["health"] || len(f.types) != 1 {
		t.Errorf("types = %v", f.types)
	}
	if none := parseFilter(httptest.NewRequest("GET", "/ws", nil)); none.devices != nil || none.types != nil {
		t.Errorf("empty query filter = %+v", none)
	}
}

func TestWSHubSlowClientEviction(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	slow := &wsClient{send: make(chan []byte, 1)}
	fast := &wsClient{send: make(chan []byte, 64)}
	hub.register <- slow
	hub.register <- fast
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(testEvent("a", ""))
	time.Sleep(10 * time.Millisecond)
	hub.Broadcast(testEvent("b", ""))
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	_, slowPresent := hub.clients[slow]
	_, fastPresent := hub.clients[fast]
	hub.mu.RUnlock()

	if slowPresent {
		t.Error("slow client should have been evicted")
	}
	if !fastPresent {
		t.Error("fast client should still be present")
	}
}

func TestWSHubBroadcastDropsWhenFull(t *testing.T) {
	hub := newTestHub()
	defer hub.Stop()

	// Hub not running: the channel fills up.
	for i := 0; i < 256; i++ {
		hub.Broadcast(testEvent("fill", ""))
	}

	done := make(chan struct{})
	go func() {
		hub.Broadcast(testEvent("overflow", ""))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("Broadcast blocked when channel is full")
	}
}

func TestWSHubStopIdempotent(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	hub.Stop()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("second Stop() panicked: %v", r)
		}
	}()
	hub.Stop()
}

func TestWSHubStopClosesClients(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := &wsClient{send: make(chan []byte, 16)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Stop()
	time.Sleep(10 * time.Millisecond)

	if _, ok := <-client.send; ok {
		t.Error("client.send should be closed after hub stop")
	}
}

func TestWSHubUnregisterNonExistentClient(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	unknown := &wsClient{send: make(chan []byte, 16)}
	hub.unregister <- unknown
	time.Sleep(10 * time.Millisecond)

	select {
	case unknown.send <- []byte("test"):
	default:
		t.Error("channel should still be open for non-registered client")
	}
}

func TestWSStreamsEvents(t *testing.T) {
	env := setupTestServer(t, "secret")
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?type=device_removed"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait until the hub has registered the client.
	deadline := time.Now().Add(2 * time.Second)
	for {
		env.srv.wsHub.mu.RLock()
		n := len(env.srv.wsHub.clients)
		env.srv.wsHub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.coord.Devices().Remove(ctx, curtainIEEE); err != nil {
		t.Fatal(err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev struct {
		Type string                 `json:"type"`
		Data coordinator.DeviceData `json:"data"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "device_removed" || ev.Data.IEEE != curtainIEEE {
		t.Errorf("event = %+v", ev)
	}
}
