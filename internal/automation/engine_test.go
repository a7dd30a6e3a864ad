//go:build !no_automation

package automation

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/coordinator"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/store"
	"zigbee-lumi/internal/zcl"
	"zigbee-lumi/internal/zcl/clusters"
)

const curtainIEEE = "00158D0001A2B3C4"

type recordingTransport struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingTransport) Send(_ context.Context, ieee string, seq []command.Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range seq {
		r.lines = append(r.lines, in.String())
	}
	return nil
}

func (r *recordingTransport) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	engine *Engine
	coord  *coordinator.Coordinator
	mgr    *Manager
	tr     *recordingTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	tr := &recordingTransport{}
	coord := coordinator.New(tr, st, zcl.NewRegistry(logger, clusters.All()...), coordinator.NewDeviceDB(),
		coordinator.NewEventBus(logger), coordinator.Config{}, logger)
	t.Cleanup(coord.Stop)

	if _, err := coord.Devices().Install(context.Background(), coordinator.InstallRequest{
		IEEE: curtainIEEE, Model: "lumi.curtain.hagl04", Driver: "curtain", FriendlyName: "Bedroom Curtain",
	}); err != nil {
		t.Fatal(err)
	}

	mgr := newTestManager(t)
	e := NewEngine(coord, mgr, logger)
	return &testEnv{engine: e, coord: coord, mgr: mgr, tr: tr}
}

func (env *testEnv) save(t *testing.T, name, code string) *Script {
	t.Helper()
	s, err := env.mgr.Save(&Script{Meta: ScriptMeta{Name: name, Enabled: true}, LuaCode: code})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// positionReport is a curtain lift percentage report of pct (hex).
func positionReport(pct string) zcl.Message {
	return zcl.Message{Description: "read attr - raw: 7ABF0101020A080020" + pct +
		", dni: 7ABF, endpoint: 01, cluster: 0102, size: 0A, attrId: 0008, result: success, encoding: 20, value: " + pct}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngineCommandsOnEvent(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, "Reopen", `
lumi.on("property_update", {device="Bedroom Curtain", property="position"}, function(event)
  if event.value < 10 then
    local ok, err = lumi.command(event.ieee, "open")
    if not ok then error(err) end
  end
end)
`)
	env.engine.Start()
	defer env.engine.Stop()

	if got := env.engine.Running(); len(got) != 1 || got[0] != "reopen" {
		t.Fatalf("running = %v", got)
	}

	if err := env.coord.HandleMessage(context.Background(), curtainIEEE, positionReport("32")); err != nil {
		t.Fatal(err)
	}
	if err := env.coord.HandleMessage(context.Background(), curtainIEEE, positionReport("05")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "open command", func() bool {
		return slices.Contains(env.tr.sent(), "cmd 01 0102 00 -")
	})
	opens := 0
	for _, line := range env.tr.sent() {
		if line == "cmd 01 0102 00 -" {
			opens++
		}
	}
	if opens != 1 {
		t.Errorf("open sent %d times, want 1: %v", opens, env.tr.sent())
	}
}

func TestEngineReloadAndStop(t *testing.T) {
	env := newTestEnv(t)
	s := env.save(t, "Noop", `lumi.log("loaded")`)
	env.engine.Start()
	defer env.engine.Stop()

	s.Meta.Enabled = false
	if _, err := env.mgr.Save(s); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.ReloadScript(s.ID); err != nil {
		t.Fatal(err)
	}
	if got := env.engine.Running(); len(got) != 0 {
		t.Errorf("running after disable = %v", got)
	}

	s.Meta.Enabled = true
	s.LuaCode = `this is not lua`
	if _, err := env.mgr.Save(s); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.ReloadScript(s.ID); err == nil {
		t.Error("reload of broken script succeeded")
	}
	if err := env.engine.ReloadScript("missing"); err == nil {
		t.Error("reload of missing script succeeded")
	}
}

func TestRunLuaCode(t *testing.T) {
	env := newTestEnv(t)

	res := env.engine.RunLuaCode(`
lumi.log("devices: " .. #lumi.devices())
lumi.log("health: " .. lumi.health("Bedroom Curtain"))
lumi.on("property_update", {device="Bedroom Curtain"}, function(event)
  local ok, err = lumi.command("Bedroom Curtain", "set_position", {position=40})
  lumi.log("ok=" .. tostring(ok))
  ok, err = lumi.command("Bedroom Curtain", "set_position", {position=400})
  lumi.log("err=" .. tostring(err))
  ok, err = lumi.command("Kitchen", "open")
  lumi.log("missing=" .. tostring(ok))
end)
`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	want := []string{"devices: 1", "health: unknown", "ok=true"}
	if len(res.Logs) != 5 || !slices.Equal(res.Logs[:3], want) {
		t.Fatalf("logs = %q", res.Logs)
	}
	if res.Logs[3] == "err=nil" {
		t.Error("out of range position accepted")
	}
	if res.Logs[4] != "missing=false" {
		t.Errorf("unknown device log = %q", res.Logs[4])
	}
	if sent := env.tr.sent(); len(sent) != 1 || sent[0] != "cmd 01 0102 05 28" {
		t.Errorf("sent = %v", sent)
	}
}

func TestRunLuaCodeErrors(t *testing.T) {
	env := newTestEnv(t)

	if res := env.engine.RunLuaCode(`error("boom")`); res.OK || res.Error == "" {
		t.Errorf("error script result = %+v", res)
	}
	if res := env.engine.RunLuaCode(`os.exit(1)`); res.OK {
		t.Error("sandbox exposes os")
	}
	if res := env.engine.RunLuaCode(`while true do end`); res.OK || res.Error != "timeout (5s)" {
		t.Errorf("loop result = %+v", res)
	}
	if res := env.engine.RunScript("missing"); res.OK {
		t.Error("missing script ran")
	}
}

func TestGetPropertyReadsStore(t *testing.T) {
	env := newTestEnv(t)
	if err := env.coord.HandleMessage(context.Background(), curtainIEEE, positionReport("32")); err != nil {
		t.Fatal(err)
	}

	res := env.engine.RunLuaCode(`
lumi.log(tostring(lumi.get_property("00158d0001a2b3c4", "position")))
lumi.log(tostring(lumi.get_property("Bedroom Curtain", "missing")))
lumi.log(lumi.health("Bedroom Curtain"))
`)
	if !res.OK {
		t.Fatal(res.Error)
	}
	if !slices.Equal(res.Logs, []string{"50", "nil", "online"}) {
		t.Errorf("logs = %q", res.Logs)
	}
}

func TestGoToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		val  interface{}
		want lua.LValueType
	}{
		{"nil", nil, lua.LTNil},
		{"bool true", true, lua.LTBool},
		{"string", "hello", lua.LTString},
		{"int", 42, lua.LTNumber},
		{"int64", int64(99), lua.LTNumber},
		{"float64", 3.14, lua.LTNumber},
		{"uint8", uint8(255), lua.LTNumber},
		{"map", map[string]interface{}{"a": 1}, lua.LTTable},
		{"slice", []interface{}{1, 2, 3}, lua.LTTable},
		{"unknown", struct{}{}, lua.LTString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goToLua(L, tt.val).Type(); got != tt.want {
				t.Errorf("goToLua(%v) type = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestLuaToGo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(`_v = {position=40, ratio=0.5, name="x", on=true, list={1, 2}}`); err != nil {
		t.Fatal(err)
	}
	got, ok := luaToGo(L.GetGlobal("_v")).(map[string]interface{})
	if !ok {
		t.Fatalf("luaToGo = %T", got)
	}
	if got["position"] != 40 {
		t.Errorf("position = %#v, want int 40", got["position"])
	}
	if got["ratio"] != 0.5 || got["name"] != "x" || got["on"] != true {
		t.Errorf("scalars = %v", got)
	}
	if list, ok := got["list"].([]interface{}); !ok || len(list) != 2 || list[1] != 2 {
		t.Errorf("list = %#v", got["list"])
	}
}

func TestMatchesHandler(t *testing.T) {
	props := coordinator.Event{Type: coordinator.EventPropertyUpdate, Data: coordinator.PropertyData{
		IEEE: curtainIEEE, Name: "Bedroom Curtain", Properties: map[string]interface{}{"position": 50},
	}}
	regions := coordinator.Event{Type: coordinator.EventRegionActivity, Data: coordinator.RegionData{
		IEEE: "54EF441000ABCDEF", Name: "Hall", Events: []lumi.RegionEvent{{RegionID: 3, Action: lumi.RegionEnter}},
	}}
	healthEv := coordinator.Event{Type: coordinator.EventHealth, Data: coordinator.HealthData{
		IEEE: curtainIEEE, Name: "Bedroom Curtain", From: health.StateOnline, To: health.StateOffline,
	}}

	tests := []struct {
		name    string
		handler luaEventHandler
		event   coordinator.Event
		want    bool
	}{
		{"type only", luaEventHandler{eventType: "property_update"}, props, true},
		{"wrong type", luaEventHandler{eventType: "health"}, props, false},
		{"by ieee", luaEventHandler{eventType: "property_update", device: "00158d0001a2b3c4"}, props, true},
		{"by name", luaEventHandler{eventType: "property_update", device: "Bedroom Curtain"}, props, true},
		{"other device", luaEventHandler{eventType: "property_update", device: "Hall"}, props, false},
		{"property present", luaEventHandler{eventType: "property_update", property: "position"}, props, true},
		{"property absent", luaEventHandler{eventType: "property_update", property: "battery"}, props, false},
		{"property on health", luaEventHandler{eventType: "health", property: "position"}, healthEv, false},
		{"health by name", luaEventHandler{eventType: "health", device: "Bedroom Curtain"}, healthEv, true},
		{"region match", luaEventHandler{eventType: "region_activity", region: 3}, regions, true},
		{"region mismatch", luaEventHandler{eventType: "region_activity", region: 4}, regions, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesHandler(tt.handler, tt.event); got != tt.want {
				t.Errorf("matchesHandler() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventFields(t *testing.T) {
	ev := coordinator.Event{Type: coordinator.EventPropertyUpdate, Data: coordinator.PropertyData{
		IEEE: curtainIEEE, Name: "Bedroom Curtain", Properties: map[string]interface{}{"position": 50},
	}}
	f := eventFields(ev, "position")
	if f["type"] != "property_update" || f["ieee"] != curtainIEEE || f["property"] != "position" {
		t.Errorf("fields = %v", f)
	}
	if f["value"] != 50.0 {
		t.Errorf("value = %#v", f["value"])
	}

	hf := eventFields(coordinator.Event{Type: coordinator.EventHealth, Data: coordinator.HealthData{
		IEEE: curtainIEEE, From: health.StateUnknown, To: health.StateOnline,
	}}, "")
	if hf["to"] != "online" || hf["from"] != "unknown" {
		t.Errorf("health fields = %v", hf)
	}

	rf := eventFields(coordinator.Event{Type: coordinator.EventRegionActivity, Data: coordinator.RegionData{
		Events: []lumi.RegionEvent{{RegionID: 2, Action: lumi.RegionLeave}},
	}}, "")
	events, ok := rf["events"].([]interface{})
	if !ok || len(events) != 1 {
		t.Fatalf("region fields = %v", rf)
	}
	if e := events[0].(map[string]interface{}); e["action"] != "leave" || e["region_id"] != 2.0 {
		t.Errorf("region event = %v", e)
	}
}
