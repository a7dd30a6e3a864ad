package driver

import (
	"sort"
	"time"

	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
)

// DefaultRegionDebounce is how long region events are coalesced before they
// are published.
const DefaultRegionDebounce = time.Second

// regionBuffer coalesces bursts of region events until no event has arrived
// for the window. Only the latest action per region survives. It runs on the
// device loop.
type regionBuffer struct {
	sched  health.Scheduler
	window time.Duration
	flush  func([]lumi.RegionEvent)

	pending map[int]lumi.RegionAction
	timer   health.Timer
	gen     uint64
}

func newRegionBuffer(sched health.Scheduler, window time.Duration, flush func([]lumi.RegionEvent)) *regionBuffer {
	if window <= 0 {
		window = DefaultRegionDebounce
	}
	return &regionBuffer{
		sched:   sched,
		window:  window,
		flush:   flush,
		pending: make(map[int]lumi.RegionAction),
	}
}

// Add buffers events and restarts the quiet window.
func (b *regionBuffer) Add(events ...lumi.RegionEvent) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		b.pending[ev.RegionID] = ev.Action
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = b.sched.AfterFunc(b.window, func() { b.fire(gen) })
}

func (b *regionBuffer) fire(gen uint64) {
	if gen != b.gen {
		return
	}
	b.timer = nil
	if len(b.pending) == 0 {
		return
	}
	out := make([]lumi.RegionEvent, 0, len(b.pending))
	for id, a := range b.pending {
		out = append(out, lumi.RegionEvent{RegionID: id, Action: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	b.pending = make(map[int]lumi.RegionAction)
	b.flush(out)
}

// Stop drops buffered events.
func (b *regionBuffer) Stop() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.pending = make(map[int]lumi.RegionAction)
}
