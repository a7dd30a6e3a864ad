package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/zcl"
)

// ErrStopped is returned by a device or loop that has been stopped.
var ErrStopped = errors.New("driver: device stopped")

// Transport queues instruction sequences for a device. Send must not block
// on Delay markers; the transport honours them when it writes.
type Transport interface {
	Send(ctx context.Context, deviceID string, seq []command.Instruction) error
}

// Listener receives the effects of device traffic. Calls are made from the
// device loop and must not call back into the device synchronously.
type Listener interface {
	OnProperties(deviceID string, changed map[string]interface{})
	OnHealth(c health.Change)
	OnRegionActivity(deviceID string, events []lumi.RegionEvent)
	OnProtocolStatus(deviceID string, err *zcl.ProtocolStatusError)
}

// Config tunes a Device.
type Config struct {
	Health         health.Config
	RegionDebounce time.Duration
}

// Snapshot is a copy of a device's runtime state.
type Snapshot struct {
	ID         string                 `json:"ieee"`
	Driver     string                 `json:"driver"`
	Profile    string                 `json:"profile"`
	Health     health.Record          `json:"health"`
	Properties map[string]interface{} `json:"properties"`
}

// DeviceOption customizes a Device.
type DeviceOption func(*deviceOptions)

type deviceOptions struct {
	sched  health.Scheduler
	now    func() time.Time
	record *health.Record
	props  map[string]interface{}
	intn   func(int) int
}

// WithScheduler replaces the loop scheduler and clock, for tests.
func WithScheduler(s health.Scheduler, now func() time.Time) DeviceOption {
	return func(o *deviceOptions) { o.sched, o.now = s, now }
}

// WithHealthRecord restores a persisted health record.
func WithHealthRecord(r health.Record) DeviceOption {
	return func(o *deviceOptions) { o.record = &r }
}

// WithProperties restores persisted properties.
func WithProperties(p map[string]interface{}) DeviceOption {
	return func(o *deviceOptions) { o.props = p }
}

// WithProbeRand replaces the probe jitter source.
func WithProbeRand(intn func(int) int) DeviceOption {
	return func(o *deviceOptions) { o.intn = intn }
}

// Device is the runtime of one installed device: a driver, its health
// machine and its region coalescing buffer, all owned by one Loop.
type Device struct {
	id        string
	drv       Driver
	transport Transport
	listener  Listener
	logger    *slog.Logger

	loop    *Loop
	health  *health.Machine
	regions *regionBuffer
	global  *zcl.GlobalInterpreter

	props       map[string]interface{}
	regionState map[string]string
}

// NewDevice starts the device loop. Call Start to begin probing.
func NewDevice(id string, drv Driver, tr Transport, l Listener, logger *slog.Logger, cfg Config, opts ...DeviceOption) *Device {
	var o deviceOptions
	for _, fn := range opts {
		fn(&o)
	}
	logger = logger.With("device", id, "driver", drv.Name())
	d := &Device{
		id:          id,
		drv:         drv,
		transport:   tr,
		listener:    l,
		logger:      logger,
		loop:        NewLoop(64),
		global:      zcl.NewGlobalInterpreter(logger),
		props:       make(map[string]interface{}),
		regionState: make(map[string]string),
	}
	for k, v := range o.props {
		d.props[k] = NormalizeValue(v)
	}
	if o.sched == nil {
		o.sched = health.NewLoopScheduler(d.loop.Post)
	}

	hopts := []health.Option{health.WithOnChange(d.onHealth)}
	if o.now != nil {
		hopts = append(hopts, health.WithClock(o.now))
	}
	if o.record != nil {
		hopts = append(hopts, health.WithRecord(*o.record))
	}
	if o.intn != nil {
		hopts = append(hopts, health.WithRand(o.intn))
	}
	d.health = health.NewMachine(id, o.sched, cfg.Health, hopts...)
	d.regions = newRegionBuffer(o.sched, cfg.RegionDebounce, d.flushRegions)
	return d
}

// ID returns the device IEEE address.
func (d *Device) ID() string { return d.id }

// Driver returns the device driver.
func (d *Device) Driver() Driver { return d.drv }

// Start schedules the liveness probe when the driver supports ping.
func (d *Device) Start(ctx context.Context) error {
	if !d.supports("ping") {
		return nil
	}
	var err error
	if derr := d.loop.Do(ctx, func() { err = d.health.SchedulePing(d.probe) }); derr != nil {
		return derr
	}
	return err
}

func (d *Device) supports(name string) bool {
	for _, c := range d.drv.Commands() {
		if c == name {
			return true
		}
	}
	return false
}

func (d *Device) probe() {
	seq, err := d.drv.Build("ping", nil)
	if err != nil {
		d.logger.Warn("build ping", "err", err)
		return
	}
	if err := d.transport.Send(context.Background(), d.id, seq); err != nil {
		d.logger.Warn("send ping", "err", err)
	}
}

// Handle processes one inbound message on the device loop. A malformed
// message is logged and returned as a *zcl.ParseError; the device is still
// marked online.
func (d *Device) Handle(ctx context.Context, msg zcl.Message) error {
	var err error
	if derr := d.loop.Do(ctx, func() { err = d.handle(msg) }); derr != nil {
		return derr
	}
	return err
}

func (d *Device) handle(msg zcl.Message) error {
	d.health.Observe()

	f, err := msg.Decode()
	if err != nil {
		d.logger.Warn("malformed message", "err", err)
		return err
	}
	d.logger.Debug("frame", "frame", f.String())

	u := newUpdate()
	switch {
	case f.HasAttr:
		for _, a := range f.Attributes() {
			handled, err := d.drv.HandleAttribute(u, f.ClusterID, a)
			if err != nil {
				d.logger.Warn("malformed attribute",
					"cluster", fmt.Sprintf("0x%04X", f.ClusterID),
					"attr", fmt.Sprintf("0x%04X", a.ID),
					"err", err)
				return err
			}
			if !handled {
				d.logger.Debug("unhandled attribute",
					"cluster", fmt.Sprintf("0x%04X", f.ClusterID),
					"attr", fmt.Sprintf("0x%04X", a.ID))
			}
		}
	case f.IsGlobal:
		res := d.global.Interpret(f)
		var pse *zcl.ProtocolStatusError
		if errors.As(res.Err, &pse) {
			d.logger.Info("device reported status", "err", pse)
			d.listener.OnProtocolStatus(d.id, pse)
		} else if res.Err != nil {
			d.logger.Warn("malformed global command", "err", res.Err)
			return res.Err
		}
	default:
		d.logger.Debug("unhandled cluster command",
			"cluster", fmt.Sprintf("0x%04X", f.ClusterID),
			"command", fmt.Sprintf("0x%02X", f.CommandID))
	}

	d.apply(u)
	return nil
}

func (d *Device) apply(u *Update) {
	changed := make(map[string]interface{})
	for k, v := range u.Props {
		v = NormalizeValue(v)
		if old, ok := d.props[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		d.props[k] = v
		changed[k] = v
	}
	if len(changed) > 0 {
		d.listener.OnProperties(d.id, changed)
	}
	d.regions.Add(u.Regions...)
}

func (d *Device) flushRegions(events []lumi.RegionEvent) {
	for _, ev := range events {
		d.regionState[strconv.Itoa(ev.RegionID)] = ev.Action.String()
	}
	d.listener.OnRegionActivity(d.id, events)

	regions := make(map[string]string, len(d.regionState))
	for k, v := range d.regionState {
		regions[k] = v
	}
	d.props[PropRegions] = regions
	d.listener.OnProperties(d.id, map[string]interface{}{PropRegions: regions})
}

func (d *Device) onHealth(c health.Change) {
	d.logger.Info("health changed", "from", c.From.String(), "to", c.To.String())
	d.listener.OnHealth(c)
}

// Execute builds a named command, hands it to the transport and arms the
// command timeout when a reply is owed. Nothing is sent when building fails.
func (d *Device) Execute(ctx context.Context, name string, args Args) ([]command.Instruction, error) {
	var (
		seq []command.Instruction
		err error
	)
	derr := d.loop.Do(ctx, func() {
		seq, err = d.drv.Build(name, args)
		if err != nil {
			return
		}
		if err = d.transport.Send(ctx, d.id, seq); err != nil {
			err = fmt.Errorf("send %s: %w", name, err)
			return
		}
		if command.AnyExpectsReply(seq) {
			d.health.Expect()
		}
	})
	if derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// ResetHealth returns the device to the unknown state.
func (d *Device) ResetHealth(ctx context.Context) error {
	return d.loop.Do(ctx, d.health.Reset)
}

// Snapshot copies the device state.
func (d *Device) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := d.loop.Do(ctx, func() {
		s = Snapshot{
			ID:         d.id,
			Driver:     d.drv.Name(),
			Profile:    d.drv.Profile().Name,
			Health:     d.health.Record(),
			Properties: make(map[string]interface{}, len(d.props)),
		}
		for k, v := range d.props {
			s.Properties[k] = v
		}
	})
	return s, err
}

// Stop cancels timers and ends the loop. It must not be called from a
// Listener callback.
func (d *Device) Stop() {
	_ = d.loop.Do(context.Background(), func() {
		d.health.Stop()
		d.regions.Stop()
	})
	d.loop.Stop()
}
