package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/store"
	"zigbee-lumi/internal/zcl"
)

// InstallRequest installs a device. Driver, profile and endpoint are taken
// from the device definition of manufacturer+model when left empty.
type InstallRequest struct {
	IEEE         string `json:"ieee"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Driver       string `json:"driver,omitempty"`
	Profile      string `json:"profile,omitempty"`
	Endpoint     uint8  `json:"endpoint,omitempty"`
}

// CommandRequest is a named command for one device. ID correlates the reply
// and is generated when empty.
type CommandRequest struct {
	ID      string      `json:"id,omitempty"`
	IEEE    string      `json:"ieee"`
	Command string      `json:"command"`
	Args    driver.Args `json:"args,omitempty"`
}

// CommandResult is the outcome of a CommandRequest.
type CommandResult struct {
	ID           string   `json:"id"`
	IEEE         string   `json:"ieee"`
	Command      string   `json:"command"`
	Instructions []string `json:"instructions,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// DeviceInfo is a stored device merged with its live state.
type DeviceInfo struct {
	store.Device
	Health   health.Record `json:"health"`
	Commands []string      `json:"commands"`
	Regions  []lumi.Region `json:"regions,omitempty"`
}

// DeviceManager owns the device runtimes and implements driver.Listener.
type DeviceManager struct {
	coord  *Coordinator
	logger *slog.Logger

	mu      sync.RWMutex
	devices map[string]*driver.Device
	names   map[string]string

	// Overridable in tests.
	deviceOpts func(ieee string) []driver.DeviceOption
}

// NewDeviceManager creates a new device manager.
func NewDeviceManager(coord *Coordinator) *DeviceManager {
	return &DeviceManager{
		coord:   coord,
		logger:  coord.logger.With("component", "device_manager"),
		devices: make(map[string]*driver.Device),
		names:   make(map[string]string),
	}
}

// LoadAll starts a runtime for every stored device.
func (dm *DeviceManager) LoadAll(ctx context.Context) (int, error) {
	devs, err := dm.coord.Store().ListDevices()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range devs {
		if err := dm.start(ctx, d); err != nil {
			dm.logger.Error("start device", "ieee", d.IEEEAddress, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (dm *DeviceManager) start(ctx context.Context, d *store.Device) error {
	var p *lumi.Profile
	if d.Profile != "" {
		var err error
		if p, err = lumi.ProfileByName(d.Profile); err != nil {
			return err
		}
	}
	drv, err := driver.New(d.Driver, p, d.Endpoint, dm.coord.Registry())
	if err != nil {
		return err
	}

	opts := []driver.DeviceOption{driver.WithProperties(d.Properties)}
	if rec, err := dm.coord.Store().GetHealth(d.IEEEAddress); err == nil {
		opts = append(opts, driver.WithHealthRecord(rec))
	} else if !errors.Is(err, store.ErrNotFound) {
		dm.logger.Warn("load health record", "ieee", d.IEEEAddress, "err", err)
	}
	if dm.deviceOpts != nil {
		opts = append(opts, dm.deviceOpts(d.IEEEAddress)...)
	}

	cfg := dm.coord.config
	dev := driver.NewDevice(d.IEEEAddress, drv, dm.coord.Transport(), dm,
		dm.logger, driver.Config{Health: cfg.Health, RegionDebounce: cfg.RegionDebounce}, opts...)
	if err := dev.Start(ctx); err != nil {
		dev.Stop()
		return fmt.Errorf("start %s: %w", d.IEEEAddress, err)
	}

	dm.mu.Lock()
	old := dm.devices[d.IEEEAddress]
	dm.devices[d.IEEEAddress] = dev
	dm.names[d.IEEEAddress] = d.Name()
	dm.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	return nil
}

// Install stores the device and starts its runtime, replacing an existing
// installation of the same address.
func (dm *DeviceManager) Install(ctx context.Context, req InstallRequest) (*store.Device, error) {
	ieee, err := NormalizeIEEE(req.IEEE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	d := &store.Device{
		IEEEAddress:  ieee,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		FriendlyName: req.FriendlyName,
		Driver:       req.Driver,
		Profile:      req.Profile,
		Endpoint:     req.Endpoint,
		InstalledAt:  time.Now(),
	}
	if def := dm.coord.DeviceDB().Lookup(req.Manufacturer, req.Model); def != nil {
		if d.Driver == "" {
			d.Driver = def.Driver
		}
		if d.Profile == "" {
			d.Profile = def.Profile
		}
		if d.Endpoint == 0 {
			d.Endpoint = def.Endpoint
		}
		if d.FriendlyName == "" {
			d.FriendlyName = def.FriendlyName
		}
	}
	if d.Driver == "" {
		d.Driver = "generic"
	}
	if d.Endpoint == 0 {
		d.Endpoint = 1
	}

	if err := dm.start(ctx, d); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	if err := dm.coord.Store().SaveDevice(d); err != nil {
		dm.stop(ieee)
		return nil, fmt.Errorf("save device: %w", err)
	}

	dm.logger.Info("device installed", "ieee", ieee, "name", d.Name(), "driver", d.Driver, "profile", d.Profile)
	dm.coord.Events().Emit(Event{
		Type: EventDeviceInstalled,
		Data: DeviceData{IEEE: ieee, Name: d.Name(), Driver: d.Driver},
	})

	if dm.coord.config.Configure {
		if _, err := dm.Execute(ctx, CommandRequest{IEEE: ieee, Command: "configure"}); err != nil && !errors.Is(err, driver.ErrUnsupported) {
			dm.logger.Warn("configure on install", "ieee", ieee, "err", err)
		}
	}
	return d, nil
}

// Remove stops the runtime and deletes the device.
func (dm *DeviceManager) Remove(ctx context.Context, ieee string) error {
	ieee, err := NormalizeIEEE(ieee)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownDevice, err)
	}
	name := dm.name(ieee)
	if !dm.stop(ieee) {
		return fmt.Errorf("%s: %w", ieee, ErrUnknownDevice)
	}
	if err := dm.coord.Store().DeleteDevice(ieee); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	dm.logger.Info("device removed", "ieee", ieee, "name", name)
	dm.coord.Events().Emit(Event{Type: EventDeviceRemoved, Data: DeviceData{IEEE: ieee, Name: name}})
	return nil
}

func (dm *DeviceManager) stop(ieee string) bool {
	dm.mu.Lock()
	dev, ok := dm.devices[ieee]
	delete(dm.devices, ieee)
	delete(dm.names, ieee)
	dm.mu.Unlock()
	if ok {
		dev.Stop()
	}
	return ok
}

// StopAll stops every runtime. The store is left untouched.
func (dm *DeviceManager) StopAll() {
	dm.mu.Lock()
	devs := make([]*driver.Device, 0, len(dm.devices))
	for _, d := range dm.devices {
		devs = append(devs, d)
	}
	clear(dm.devices)
	clear(dm.names)
	dm.mu.Unlock()
	for _, d := range devs {
		d.Stop()
	}
}

// Device returns the runtime of an installed device.
func (dm *DeviceManager) Device(ieee string) (*driver.Device, error) {
	norm, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ieee, ErrUnknownDevice)
	}
	dm.mu.RLock()
	dev, ok := dm.devices[norm]
	dm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", norm, ErrUnknownDevice)
	}
	return dev, nil
}

// Lookup resolves an IEEE address or a friendly name to an address.
func (dm *DeviceManager) Lookup(nameOrIEEE string) (string, bool) {
	if norm, err := NormalizeIEEE(nameOrIEEE); err == nil {
		dm.mu.RLock()
		_, ok := dm.devices[norm]
		dm.mu.RUnlock()
		if ok {
			return norm, true
		}
	}
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for ieee, name := range dm.names {
		if name == nameOrIEEE {
			return ieee, true
		}
	}
	return "", false
}

func (dm *DeviceManager) name(ieee string) string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if n, ok := dm.names[ieee]; ok {
		return n
	}
	return ieee
}

// HandleMessage routes an inbound message to the device loop.
func (dm *DeviceManager) HandleMessage(ctx context.Context, ieee string, msg zcl.Message) error {
	dev, err := dm.Device(ieee)
	if err != nil {
		dm.logger.Debug("message from unknown device", "ieee", ieee, "msg", msg.String())
		return err
	}
	return dev.Handle(ctx, msg)
}

// Execute runs a named command. Validation and unsupported-command errors
// leave nothing sent. Region writes are persisted once sent.
func (dm *DeviceManager) Execute(ctx context.Context, req CommandRequest) (CommandResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	res := CommandResult{ID: req.ID, IEEE: req.IEEE, Command: req.Command}

	dev, err := dm.Device(req.IEEE)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.IEEE = dev.ID()

	seq, err := dev.Execute(ctx, req.Command, req.Args)
	if err != nil {
		res.Error = err.Error()
		dm.logger.Warn("command failed", "id", req.ID, "ieee", res.IEEE, "command", req.Command, "err", err)
		return res, err
	}
	for _, in := range seq {
		res.Instructions = append(res.Instructions, in.String())
	}
	dm.persistRegions(dev, seq)

	dm.logger.Info("command sent", "id", req.ID, "ieee", res.IEEE, "command", req.Command, "instructions", len(seq))
	dm.coord.Events().Emit(Event{Type: EventCommandSent, Data: CommandData{
		ID:           req.ID,
		IEEE:         res.IEEE,
		Command:      req.Command,
		Instructions: res.Instructions,
	}})
	return res, nil
}

// persistRegions records set/clear region writes found in seq.
func (dm *DeviceManager) persistRegions(dev *driver.Device, seq []command.Instruction) {
	for _, in := range seq {
		if in.Kind != command.KindWriteAttr || in.ClusterID != lumi.ClusterLumi || in.AttrID != lumi.AttrSetRegion {
			continue
		}
		if len(in.Payload) < 1 {
			continue
		}
		reg, cleared, err := lumi.DecodeRegionBytes(in.Payload[1:], dev.Driver().Profile())
		if err != nil {
			dm.logger.Warn("decode sent region", "ieee", dev.ID(), "err", err)
			continue
		}
		if cleared {
			err = dm.coord.Store().DeleteRegion(dev.ID(), reg.ID)
		} else {
			err = dm.coord.Store().SaveRegion(dev.ID(), reg)
		}
		if err != nil {
			dm.logger.Error("save region", "ieee", dev.ID(), "region", reg.ID, "err", err)
		}
	}
}

// Info returns a device merged with its live state.
func (dm *DeviceManager) Info(ctx context.Context, ieee string) (*DeviceInfo, error) {
	dev, err := dm.Device(ieee)
	if err != nil {
		return nil, err
	}
	stored, err := dm.coord.Store().GetDevice(dev.ID())
	if err != nil {
		return nil, err
	}
	snap, err := dev.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	regions, err := dm.coord.Store().ListRegions(dev.ID())
	if err != nil {
		return nil, err
	}
	info := &DeviceInfo{
		Device:   *stored,
		Health:   snap.Health,
		Commands: dev.Driver().Commands(),
		Regions:  regions,
	}
	info.Properties = driver.NormalizeProperties(snap.Properties)
	return info, nil
}

// List returns every installed device, sorted by address.
func (dm *DeviceManager) List(ctx context.Context) ([]*DeviceInfo, error) {
	dm.mu.RLock()
	ids := make([]string, 0, len(dm.devices))
	for ieee := range dm.devices {
		ids = append(ids, ieee)
	}
	dm.mu.RUnlock()
	sort.Strings(ids)

	out := make([]*DeviceInfo, 0, len(ids))
	for _, ieee := range ids {
		info, err := dm.Info(ctx, ieee)
		if errors.Is(err, ErrUnknownDevice) {
			continue // removed meanwhile
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// OnHealth implements driver.Listener.
func (dm *DeviceManager) OnHealth(c health.Change) {
	rec := health.Record{DeviceID: c.DeviceID, State: c.To, LastSeen: c.LastSeen}
	if err := dm.coord.Store().SaveHealth(rec); err != nil {
		dm.logger.Error("save health", "ieee", c.DeviceID, "err", err)
	}
	dm.coord.Events().Emit(Event{Type: EventHealth, Data: HealthData{
		IEEE: c.DeviceID,
		Name: dm.name(c.DeviceID),
		From: c.From,
		To:   c.To,
		At:   c.At,
	}})
}

// OnRegionActivity implements driver.Listener.
func (dm *DeviceManager) OnRegionActivity(ieee string, events []lumi.RegionEvent) {
	dm.coord.Events().Emit(Event{Type: EventRegionActivity, Data: RegionData{
		IEEE:   ieee,
		Name:   dm.name(ieee),
		Events: events,
	}})
}

// OnProtocolStatus implements driver.Listener.
func (dm *DeviceManager) OnProtocolStatus(ieee string, err *zcl.ProtocolStatusError) {
	dm.coord.Events().Emit(Event{Type: EventProtocolStatus, Data: StatusData{
		IEEE:       ieee,
		Cluster:    dm.coord.Registry().ClusterName(err.ClusterID),
		Command:    fmt.Sprintf("0x%02X", err.CommandID),
		Status:     err.Status,
		StatusName: zcl.StatusName(err.Status),
	}})
}
