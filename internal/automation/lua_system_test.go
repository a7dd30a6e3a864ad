//go:build !no_automation

package automation

import (
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func newClockEngine(now time.Time) *Engine {
	return &Engine{logger: testLogger(), now: func() time.Time { return now }}
}

func evalSystem(t *testing.T, e *Engine, expr string) lua.LValue {
	t.Helper()
	L := lua.NewState()
	defer L.Close()
	registerSystemModule(L, e)
	if err := L.DoString(`_result = ` + expr); err != nil {
		t.Fatalf("%s: %v", expr, err)
	}
	return L.GetGlobal("_result")
}

func TestSystemDatetime(t *testing.T) {
	e := newClockEngine(time.Date(2024, time.March, 9, 21, 45, 7, 0, time.Local))

	tests := []struct {
		component string
		want      lua.LValue
	}{
		{"hour", lua.LNumber(21)},
		{"minute", lua.LNumber(45)},
		{"second", lua.LNumber(7)},
		{"weekday", lua.LNumber(time.Saturday)},
		{"day", lua.LNumber(9)},
		{"month", lua.LNumber(3)},
		{"year", lua.LNumber(2024)},
		{"time_str", lua.LString("21:45:07")},
		{"date_str", lua.LString("2024-03-09")},
	}
	for _, tt := range tests {
		if got := evalSystem(t, e, `system.datetime("`+tt.component+`")`); got != tt.want {
			t.Errorf("system.datetime(%q) = %v, want %v", tt.component, got, tt.want)
		}
	}
}

func TestSystemDatetimeUnknownComponent(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	registerSystemModule(L, newClockEngine(time.Now()))

	if err := L.DoString(`system.datetime("fortnight")`); err == nil {
		t.Error("unknown component accepted")
	}
}

func TestSystemTimeBetween(t *testing.T) {
	tests := []struct {
		hour     int
		from, to int
		want     bool
	}{
		{9, 8, 22, true},
		{8, 8, 22, true},
		{22, 8, 22, false},
		{7, 8, 22, false},
		{23, 22, 6, true},
		{2, 22, 6, true},
		{6, 22, 6, false},
		{12, 22, 6, false},
	}
	for _, tt := range tests {
		e := newClockEngine(time.Date(2024, 1, 1, tt.hour, 30, 0, 0, time.Local))
		L := lua.NewState()
		registerSystemModule(L, e)
		L.SetGlobal("_from", lua.LNumber(tt.from))
		L.SetGlobal("_to", lua.LNumber(tt.to))
		if err := L.DoString(`_result = system.time_between(_from, _to)`); err != nil {
			t.Fatal(err)
		}
		if got := L.GetGlobal("_result") == lua.LTrue; got != tt.want {
			t.Errorf("time_between(%d, %d) at %02d:30 = %v, want %v", tt.from, tt.to, tt.hour, got, tt.want)
		}
		L.Close()
	}
}

func TestSystemLogLevels(t *testing.T) {
	e := newClockEngine(time.Now())
	for _, level := range []string{"debug", "info", "warn", "error", "other"} {
		if got := evalSystem(t, e, `system.log("`+level+`", "msg")`); got != lua.LNil {
			t.Errorf("system.log(%q) returned %v", level, got)
		}
	}
}
