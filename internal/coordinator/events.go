package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
)

// Event types
const (
	EventPropertyUpdate  = "property_update"
	EventHealth          = "health"
	EventRegionActivity  = "region_activity"
	EventProtocolStatus  = "protocol_status"
	EventDeviceInstalled = "device_installed"
	EventDeviceRemoved   = "device_removed"
	EventCommandSent     = "command_sent"
)

// Event represents a coordinator event. Data is one of the *Data types
// below.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Device returns the address and name of the device the event is about.
// Both are empty for events not tied to a device.
func (e Event) Device() (ieee, name string) {
	switch d := e.Data.(type) {
	case PropertyData:
		return d.IEEE, d.Name
	case HealthData:
		return d.IEEE, d.Name
	case RegionData:
		return d.IEEE, d.Name
	case DeviceData:
		return d.IEEE, d.Name
	case StatusData:
		return d.IEEE, ""
	case CommandData:
		return d.IEEE, ""
	}
	return "", ""
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub for coordinator events.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger,
	}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	eb.handlers[eventType][id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.allHandlers[id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.allHandlers, id)
	}
}

// Emit sends an event to all matching handlers.
// Handlers are called synchronously; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}

// PropertyData is the payload of EventPropertyUpdate.
type PropertyData struct {
	IEEE       string                 `json:"ieee"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
}

// HealthData is the payload of EventHealth.
type HealthData struct {
	IEEE string       `json:"ieee"`
	Name string       `json:"name"`
	From health.State `json:"from"`
	To   health.State `json:"to"`
	At   time.Time    `json:"at"`
}

// RegionData is the payload of EventRegionActivity.
type RegionData struct {
	IEEE   string             `json:"ieee"`
	Name   string             `json:"name"`
	Events []lumi.RegionEvent `json:"events"`
}

// StatusData is the payload of EventProtocolStatus.
type StatusData struct {
	IEEE       string `json:"ieee"`
	Cluster    string `json:"cluster"`
	Command    string `json:"command"`
	Status     uint8  `json:"status"`
	StatusName string `json:"status_name"`
}

// DeviceData is the payload of EventDeviceInstalled and EventDeviceRemoved.
type DeviceData struct {
	IEEE   string `json:"ieee"`
	Name   string `json:"name"`
	Driver string `json:"driver,omitempty"`
}

// CommandData is the payload of EventCommandSent.
type CommandData struct {
	ID           string   `json:"id"`
	IEEE         string   `json:"ieee"`
	Command      string   `json:"command"`
	Instructions []string `json:"instructions"`
}
