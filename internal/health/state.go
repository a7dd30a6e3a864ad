// Package health tracks whether a device is reachable, based on the traffic
// it sends and the replies it owes.
package health

import (
	"fmt"
	"time"
)

// State is the liveness of a device.
type State int

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unknown", "":
		*s = StateUnknown
	case "online":
		*s = StateOnline
	case "offline":
		*s = StateOffline
	default:
		return fmt.Errorf("health: unknown state %q", b)
	}
	return nil
}

// Record is the persisted view of a machine.
type Record struct {
	DeviceID string    `json:"device_id"`
	State    State     `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

// Change describes one state transition.
type Change struct {
	DeviceID string    `json:"device_id"`
	From     State     `json:"from"`
	To       State     `json:"to"`
	At       time.Time `json:"at"`
	LastSeen time.Time `json:"last_seen"`
}
