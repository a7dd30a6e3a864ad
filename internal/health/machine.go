package health

import (
	"math/rand"
	"time"
)

// DefaultCommandTimeout is how long a device may take to answer a command
// before it is considered offline.
const DefaultCommandTimeout = 10 * time.Second

// Config tunes a Machine.
type Config struct {
	CommandTimeout time.Duration
	PingInterval   time.Duration
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithOnChange registers the state change callback.
func WithOnChange(fn func(Change)) Option {
	return func(m *Machine) { m.onChange = fn }
}

// WithRand replaces rand.IntN for probe jitter.
func WithRand(intn func(n int) int) Option {
	return func(m *Machine) { m.intn = intn }
}

// WithRecord restores persisted state without reporting a change.
func WithRecord(r Record) Option {
	return func(m *Machine) {
		m.state = r.State
		m.lastSeen = r.LastSeen
	}
}

// Machine is the liveness state of one device. It is not safe for
// concurrent use: every method and every scheduler callback must run on the
// device's event loop.
type Machine struct {
	id       string
	sched    Scheduler
	cfg      Config
	now      func() time.Time
	intn     func(n int) int
	onChange func(Change)

	state    State
	lastSeen time.Time

	// At most one pending timeout. gen invalidates firings that were
	// already queued when the timer was replaced or cancelled.
	pending Timer
	gen     uint64

	probe    Timer
	probeGen uint64
	plan     *ProbePlan
}

// NewMachine returns a machine in StateUnknown.
func NewMachine(id string, sched Scheduler, cfg Config, opts ...Option) *Machine {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	m := &Machine{
		id:    id,
		sched: sched,
		cfg:   cfg,
		now:   time.Now,
		intn:  rand.Intn,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// LastSeen returns the time of the last inbound message.
func (m *Machine) LastSeen() time.Time { return m.lastSeen }

// Pending reports whether a command timeout is armed.
func (m *Machine) Pending() bool { return m.pending != nil }

// Record returns the persisted view.
func (m *Machine) Record() Record {
	return Record{DeviceID: m.id, State: m.state, LastSeen: m.lastSeen}
}

// Observe records inbound traffic: the device is online and owes nothing.
func (m *Machine) Observe() {
	m.cancelTimeout()
	m.lastSeen = m.now()
	m.setState(StateOnline)
}

// Expect arms the command timeout, replacing any pending one.
func (m *Machine) Expect() {
	m.cancelTimeout()
	m.gen++
	gen := m.gen
	m.pending = m.sched.AfterFunc(m.cfg.CommandTimeout, func() { m.expire(gen) })
}

func (m *Machine) expire(gen uint64) {
	if gen != m.gen || m.pending == nil {
		return
	}
	m.pending = nil
	m.setState(StateOffline)
}

// Reset returns to StateUnknown and drops the pending timeout. The probe
// keeps running.
func (m *Machine) Reset() {
	m.cancelTimeout()
	m.setState(StateUnknown)
}

// SchedulePing starts the periodic probe, replacing a running one. Each
// firing calls send and arms the command timeout. It is a no-op when no
// ping interval is configured.
func (m *Machine) SchedulePing(send func()) error {
	if m.cfg.PingInterval <= 0 {
		return nil
	}
	if m.plan == nil {
		plan, err := NewProbePlan(m.cfg.PingInterval, m.intn)
		if err != nil {
			return err
		}
		m.plan = &plan
	}
	m.stopProbe()
	m.probeGen++
	gen := m.probeGen
	now := m.now()
	m.probe = m.sched.AfterFunc(m.plan.Next(now).Sub(now), func() {
		if gen != m.probeGen {
			return
		}
		send()
		m.Expect()
		_ = m.SchedulePing(send)
	})
	return nil
}

// Plan returns the probe plan once SchedulePing has run.
func (m *Machine) Plan() (ProbePlan, bool) {
	if m.plan == nil {
		return ProbePlan{}, false
	}
	return *m.plan, true
}

// Stop cancels every timer. The machine must not be used afterwards.
func (m *Machine) Stop() {
	m.cancelTimeout()
	m.stopProbe()
}

func (m *Machine) cancelTimeout() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.gen++
}

func (m *Machine) stopProbe() {
	if m.probe != nil {
		m.probe.Stop()
		m.probe = nil
	}
	m.probeGen++
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	c := Change{DeviceID: m.id, From: m.state, To: s, At: m.now(), LastSeen: m.lastSeen}
	m.state = s
	if m.onChange != nil {
		m.onChange(c)
	}
}
