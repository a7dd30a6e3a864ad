//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"zigbee-lumi/internal/store"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/cover/lumi_00158D.../cover/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	EntityCategory      string   `json:"entity_category,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	PayloadOpen         string   `json:"payload_open,omitempty"`
	PayloadClose        string   `json:"payload_close,omitempty"`
	PayloadStop         string   `json:"payload_stop,omitempty"`
	PositionTopic       string   `json:"position_topic,omitempty"`
	PositionTemplate    string   `json:"position_template,omitempty"`
	SetPositionTopic    string   `json:"set_position_topic,omitempty"`
	SetPositionTemplate string   `json:"set_position_template,omitempty"`
	CommandTemplate     string   `json:"command_template,omitempty"`
	Options             []string `json:"options,omitempty"`
	Device              haDevice `json:"device"`
}

// deviceDisplayName returns a display name for the device.
func deviceDisplayName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	if dev.Manufacturer != "" && dev.Model != "" {
		return dev.Manufacturer + " " + dev.Model
	}
	if dev.Model != "" {
		return dev.Model
	}
	return dev.IEEEAddress
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev *store.Device) string {
	return "lumi_" + dev.IEEEAddress
}

// deviceTopicName returns the topic name for a device (friendly name or IEEE).
func deviceTopicName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		// Sanitize: lowercase and keep only safe chars for MQTT topics.
		name := strings.ToLower(dev.FriendlyName)
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '_'
		}, name)
		return name
	}
	return dev.IEEEAddress
}

// topics groups the per-device topics of one bridge.
type topics struct {
	state, availability, set, ack, regions string
}

func deviceTopics(prefix string, dev *store.Device) topics {
	base := prefix + "/" + deviceTopicName(dev)
	return topics{
		state:        base,
		availability: base + "/availability",
		set:          base + "/set",
		ack:          base + "/ack",
		regions:      base + "/regions",
	}
}

// buildDiscovery generates HA discovery messages for a device based on its driver.
func buildDiscovery(dev *store.Device, prefix string) []discoveryMsg {
	t := deviceTopics(prefix, dev)
	nodeID := deviceIdentifier(dev)
	displayName := deviceDisplayName(dev)

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		Name:         displayName,
	}

	var msgs []discoveryMsg
	switch dev.Driver {
	case "curtain":
		msgs = append(msgs, buildCover(nodeID, displayName, t, haDev))
		msgs = append(msgs, buildSensor(nodeID, displayName, t, haDev,
			"battery", "Battery", "battery", "%", "measurement", "",
			"{{ value_json.battery }}"))
	case "presence":
		msgs = append(msgs, buildBinarySensor(nodeID, displayName, t, haDev,
			"presence", "Presence", "occupancy",
			"{{ 'ON' if value_json.presence else 'OFF' }}"))
		msgs = append(msgs, buildSensor(nodeID, displayName, t, haDev,
			"presence_action", "Presence Action", "", "", "", "",
			"{{ value_json.presence_action }}"))
		msgs = append(msgs, buildSelect(nodeID, displayName, t, haDev,
			"sensitivity", "Sensitivity", "set_sensitivity", []string{"1", "2", "3"}))
		msgs = append(msgs, buildSelect(nodeID, displayName, t, haDev,
			"trigger_distance", "Trigger Distance", "set_trigger_distance", []string{"0", "1", "2"}))
	}

	// Firmware diagnostic for all devices.
	msgs = append(msgs, buildSensor(nodeID, displayName, t, haDev,
		"firmware", "Firmware", "", "", "", "diagnostic",
		"{{ value_json.firmware | default(value_json.sw_build) }}"))

	return msgs
}

// commandJSON renders a /set payload for a command without arguments.
func commandJSON(name string) string {
	return fmt.Sprintf(`{"command":%q}`, name)
}

func buildCover(nodeID, displayName string, t topics, haDev haDevice) discoveryMsg {
	topic := fmt.Sprintf("homeassistant/cover/%s/cover/config", nodeID)
	payload := haDiscovery{
		Name:                displayName,
		UniqueID:            nodeID + "_cover",
		CommandTopic:        t.set,
		AvailabilityTopic:   t.availability,
		DeviceClass:         "curtain",
		PayloadOpen:         commandJSON("open"),
		PayloadClose:        commandJSON("close"),
		PayloadStop:         commandJSON("stop"),
		PositionTopic:       t.state,
		PositionTemplate:    "{{ value_json.position }}",
		SetPositionTopic:    t.set,
		SetPositionTemplate: `{"command":"set_position","args":{"position":{{ position }}}}`,
		Device:              haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildSensor(nodeID, displayName string, t topics, haDev haDevice,
	objectID, suffix, deviceClass, unit, stateClass, category, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        t.state,
		AvailabilityTopic: t.availability,
		ValueTemplate:     valueTmpl,
		UnitOfMeasurement: unit,
		DeviceClass:       deviceClass,
		StateClass:        stateClass,
		EntityCategory:    category,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildBinarySensor(nodeID, displayName string, t topics, haDev haDevice,
	objectID, suffix, deviceClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/binary_sensor/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        t.state,
		AvailabilityTopic: t.availability,
		ValueTemplate:     valueTmpl,
		DeviceClass:       deviceClass,
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildSelect(nodeID, displayName string, t topics, haDev haDevice,
	objectID, suffix, cmd string, options []string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/select/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        t.state,
		CommandTopic:      t.set,
		AvailabilityTopic: t.availability,
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", objectID),
		CommandTemplate:   fmt.Sprintf(`{"command":%q,"args":{"value":{{ value }}}}`, cmd),
		EntityCategory:    "config",
		Options:           options,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(dev *store.Device) []discoveryMsg {
	nodeID := deviceIdentifier(dev)

	// Remove all possible component types.
	components := []struct{ comp, obj string }{
		{"cover", "cover"},
		{"sensor", "battery"},
		{"sensor", "firmware"},
		{"sensor", "presence_action"},
		{"binary_sensor", "presence"},
		{"select", "sensitivity"},
		{"select", "trigger_distance"},
	}

	var msgs []discoveryMsg
	for _, c := range components {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", c.comp, nodeID, c.obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
