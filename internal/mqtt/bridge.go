//go:build !no_mqtt

package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"zigbee-lumi/internal/coordinator"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
	// Discovery publishes Home Assistant discovery configs.
	Discovery bool
}

// commandTimeout bounds one /set command.
const commandTimeout = 10 * time.Second

// client is the subset of pahomqtt.Client the bridge uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Bridge mirrors device state to MQTT and accepts commands from it.
//
// Topics per device, named after the friendly name or the IEEE address:
//
//	<prefix>/<name>               retained JSON properties
//	<prefix>/<name>/availability  retained online/offline
//	<prefix>/<name>/set           {"id":..., "command":..., "args":{...}}
//	<prefix>/<name>/ack           command result
//	<prefix>/<name>/regions       region activity
type Bridge struct {
	client    client
	coord     *coordinator.Coordinator
	prefix    string
	discovery bool
	logger    *slog.Logger
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	devices map[string]*store.Device // IEEE -> device with subscribed topics
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(coord, cfg, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "lumi-hub"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := pahomqtt.NewClient(opts)
	// The connect handler may fire before Connect returns.
	b.client = c
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

func newBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		coord:     coord,
		prefix:    cfg.TopicPrefix,
		discovery: cfg.Discovery,
		logger:    logger.With("component", "mqtt"),
		devices:   make(map[string]*store.Device),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to coordinator events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.coord.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

// onConnect republishes everything retained and resubscribes the command
// topics; the broker may have lost both.
func (b *Bridge) onConnect() {
	b.publishBridgeState("online")
	devices, err := b.coord.Store().ListDevices()
	if err != nil {
		b.logger.Error("list devices", "err", err)
		return
	}
	b.mu.Lock()
	clear(b.devices)
	b.mu.Unlock()
	for _, dev := range devices {
		b.addDevice(dev)
	}
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	switch data := event.Data.(type) {
	case coordinator.PropertyData:
		b.publishState(data.IEEE)
	case coordinator.HealthData:
		b.publishAvailability(data.IEEE, data.To)
	case coordinator.RegionData:
		b.publishRegions(data)
	case coordinator.DeviceData:
		switch event.Type {
		case coordinator.EventDeviceInstalled:
			b.removeDevice(data.IEEE)
			dev, err := b.coord.Store().GetDevice(data.IEEE)
			if err != nil {
				b.logger.Warn("installed device not stored", "ieee", data.IEEE, "err", err)
				return
			}
			b.addDevice(dev)
		case coordinator.EventDeviceRemoved:
			b.removeDevice(data.IEEE)
		}
	}
}

func (b *Bridge) addDevice(dev *store.Device) {
	ieee := dev.IEEEAddress
	t := deviceTopics(b.prefix, dev)

	b.mu.Lock()
	b.devices[ieee] = dev
	b.mu.Unlock()

	b.client.Subscribe(t.set, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(ieee, msg.Payload())
	})
	if b.discovery {
		for _, msg := range buildDiscovery(dev, b.prefix) {
			b.publish(msg.Topic, msg.Payload, true)
		}
		b.logger.Info("published HA discovery", "ieee", ieee, "name", deviceDisplayName(dev))
	}
	if len(dev.Properties) > 0 {
		b.publish(t.state, mustJSON(dev.Properties), true)
	}
	if rec, err := b.coord.Store().GetHealth(ieee); err == nil {
		b.publishAvailability(ieee, rec.State)
	}
}

func (b *Bridge) removeDevice(ieee string) {
	b.mu.Lock()
	dev, ok := b.devices[ieee]
	delete(b.devices, ieee)
	b.mu.Unlock()
	if !ok {
		return
	}
	t := deviceTopics(b.prefix, dev)
	b.client.Unsubscribe(t.set)
	b.publish(t.state, nil, true)
	b.publish(t.availability, nil, true)
	if b.discovery {
		for _, msg := range buildRemoveDiscovery(dev) {
			b.publish(msg.Topic, msg.Payload, true)
		}
	}
}

func (b *Bridge) topics(ieee string) (topics, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.devices[ieee]
	if !ok {
		return topics{}, false
	}
	return deviceTopics(b.prefix, dev), true
}

// publishState publishes the stored properties, which the coordinator has
// already merged when the event arrives.
func (b *Bridge) publishState(ieee string) {
	t, ok := b.topics(ieee)
	if !ok {
		return
	}
	dev, err := b.coord.Store().GetDevice(ieee)
	if err != nil {
		b.logger.Warn("state for unknown device", "ieee", ieee, "err", err)
		return
	}
	b.publish(t.state, mustJSON(dev.Properties), true)
}

func (b *Bridge) publishAvailability(ieee string, s health.State) {
	if s == health.StateUnknown {
		return
	}
	t, ok := b.topics(ieee)
	if !ok {
		return
	}
	b.publish(t.availability, []byte(s.String()), true)
}

func (b *Bridge) publishRegions(data coordinator.RegionData) {
	t, ok := b.topics(data.IEEE)
	if !ok {
		return
	}
	b.publish(t.regions, mustJSON(data.Events), false)
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

// handleCommand executes one /set payload and acknowledges it.
func (b *Bridge) handleCommand(ieee string, payload []byte) {
	t, ok := b.topics(ieee)
	if !ok {
		b.logger.Warn("command for unknown device", "ieee", ieee)
		return
	}

	var req coordinator.CommandRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req.Command == "" {
		if err == nil {
			err = errors.New("missing command")
		}
		b.logger.Warn("invalid command JSON", "ieee", ieee, "err", err)
		b.publish(t.ack, mustJSON(coordinator.CommandResult{ID: req.ID, IEEE: ieee, Error: err.Error()}), false)
		return
	}
	req.IEEE = ieee

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	res, err := b.coord.Devices().Execute(ctx, req)
	if err != nil {
		b.logger.Warn("command failed", "ieee", ieee, "command", req.Command, "err", err)
	}
	b.publish(t.ack, mustJSON(res), false)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
