package coordinator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/store"
	"zigbee-lumi/internal/zcl"
)

// ErrUnknownDevice is returned for IEEE addresses that are not installed.
var ErrUnknownDevice = errors.New("unknown device")

// Config holds the per-device runtime tuning.
type Config struct {
	Health         health.Config
	RegionDebounce time.Duration
	// Configure runs the driver's configure command on install.
	Configure bool
}

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD" or "DDDDDDDDDDDDDDDD" into [8]byte.
func ParseIEEE(s string) ([8]byte, error) {
	var result [8]byte
	s = strings.TrimPrefix(strings.ReplaceAll(s, ":", ""), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return result, fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	copy(result[:], b)
	return result, nil
}

// NormalizeIEEE returns the canonical upper-case 16 digit form.
func NormalizeIEEE(s string) (string, error) {
	b, err := ParseIEEE(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", b), nil
}

// Coordinator ties the installed devices to the transport, the store and the
// event bus.
type Coordinator struct {
	transport driver.Transport
	store     store.Store
	registry  *zcl.Registry
	deviceDB  *DeviceDB
	events    *EventBus
	devices   *DeviceManager
	logger    *slog.Logger
	config    Config
}

// New creates a Coordinator. Call Start to bring up the installed devices.
func New(tr driver.Transport, st store.Store, registry *zcl.Registry, deviceDB *DeviceDB, events *EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		transport: tr,
		store:     st,
		registry:  registry,
		deviceDB:  deviceDB,
		events:    events,
		logger:    logger,
		config:    cfg,
	}
	c.devices = NewDeviceManager(c)
	return c
}

// Start loads installed devices from the store and starts their runtimes.
func (c *Coordinator) Start(ctx context.Context) error {
	n, err := c.devices.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	c.logger.Info("devices started", "count", n)
	return nil
}

// Stop stops every device runtime.
func (c *Coordinator) Stop() {
	c.devices.StopAll()
}

// HandleMessage routes one inbound message to its device.
func (c *Coordinator) HandleMessage(ctx context.Context, ieee string, msg zcl.Message) error {
	return c.devices.HandleMessage(ctx, ieee, msg)
}

// Transport returns the outbound transport.
func (c *Coordinator) Transport() driver.Transport {
	return c.transport
}

// Store returns the store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Registry returns the ZCL registry.
func (c *Coordinator) Registry() *zcl.Registry {
	return c.registry
}

// DeviceDB returns the device definitions database.
func (c *Coordinator) DeviceDB() *DeviceDB {
	return c.deviceDB
}

// Events returns the event bus.
func (c *Coordinator) Events() *EventBus {
	return c.events
}

// Devices returns the device manager.
func (c *Coordinator) Devices() *DeviceManager {
	return c.devices
}
