//go:build !no_automation

package automation

import (
	"context"
	"errors"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-lumi/internal/coordinator"
	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/store"
)

// commandTimeout bounds lumi.command.
const commandTimeout = 10 * time.Second

// registerLumiModule registers the `lumi` global table in a Lua state.
func registerLumiModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return lumiOn(L, vm)
	}))
	mod.RawSetString("command", L.NewFunction(func(L *lua.LState) int {
		return lumiCommand(L, vm, e)
	}))
	mod.RawSetString("get_property", L.NewFunction(func(L *lua.LState) int {
		return lumiGetProperty(L, e)
	}))
	mod.RawSetString("health", L.NewFunction(func(L *lua.LState) int {
		return lumiHealth(L, e)
	}))
	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return lumiAfter(L, vm, e)
	}))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return lumiLog(L, e)
	}))
	mod.RawSetString("devices", L.NewFunction(func(L *lua.LState) int {
		return lumiDevices(L, e)
	}))

	L.SetGlobal("lumi", mod)
}

const maxHandlersPerScript = 100

// lumi.on(type, filter, callback)
//
// filter may be nil or a table with any of device, property, region.
func lumiOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	filter := L.OptTable(2, nil)
	fn := L.CheckFunction(3)

	h := luaEventHandler{eventType: eventType, fn: fn}
	if filter != nil {
		if v := filter.RawGetString("device"); v != lua.LNil {
			h.device = v.String()
		} else if v := filter.RawGetString("ieee"); v != lua.LNil {
			h.device = v.String()
		}
		if v := filter.RawGetString("property"); v != lua.LNil {
			h.property = v.String()
		}
		if v, ok := filter.RawGetString("region").(lua.LNumber); ok {
			h.region = int(v)
		}
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// lumi.command(device, name[, args]) -> ok, err
func lumiCommand(L *lua.LState, vm *scriptVM, e *Engine) int {
	target := L.CheckString(1)
	name := L.CheckString(2)
	args := driver.Args{}
	if tbl := L.OptTable(3, nil); tbl != nil {
		if m, ok := luaToGo(tbl).(map[string]interface{}); ok {
			args = m
		}
	}

	ieee, ok := e.coord.Devices().Lookup(target)
	if !ok {
		e.logger.Warn("device not found", "target", target)
		L.Push(lua.LFalse)
		L.Push(lua.LString(coordinator.ErrUnknownDevice.Error()))
		return 2
	}

	ctx, cancel := context.WithTimeout(vm.ctx, commandTimeout)
	defer cancel()
	res, err := e.coord.Devices().Execute(ctx, coordinator.CommandRequest{
		IEEE:    ieee,
		Command: name,
		Args:    args,
	})
	if err != nil {
		e.logger.Warn("script command failed", "ieee", ieee, "command", name, "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(res.Error))
		return 2
	}
	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

// lumi.get_property(device, property)
func lumiGetProperty(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	prop := L.CheckString(2)

	dev := resolveDevice(e, target)
	if dev == nil || dev.Properties == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, dev.Properties[prop]))
	return 1
}

// lumi.health(device) -> "online" | "offline" | "unknown"
func lumiHealth(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	state := health.StateUnknown
	if ieee, ok := e.coord.Devices().Lookup(target); ok {
		if rec, err := e.coord.Store().GetHealth(ieee); err == nil {
			state = rec.State
		}
	}
	L.Push(lua.LString(state.String()))
	return 1
}

// lumi.after(seconds, callback) runs callback on the script VM later.
func lumiAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// lumi.log(msg)
func lumiLog(L *lua.LState, e *Engine) int {
	msg := L.CheckString(1)
	e.logger.Info("script log", "msg", msg)
	return 0
}

// lumi.devices() returns every installed device.
func lumiDevices(L *lua.LState, e *Engine) int {
	tbl := L.NewTable()
	devices, err := e.coord.Store().ListDevices()
	if err != nil {
		e.logger.Warn("list devices", "err", err)
		L.Push(tbl)
		return 1
	}

	for i, dev := range devices {
		d := L.NewTable()
		d.RawSetString("ieee", lua.LString(dev.IEEEAddress))
		d.RawSetString("name", lua.LString(dev.Name()))
		d.RawSetString("model", lua.LString(dev.Model))
		d.RawSetString("manufacturer", lua.LString(dev.Manufacturer))
		d.RawSetString("driver", lua.LString(dev.Driver))
		tbl.RawSetInt(i+1, d)
	}
	L.Push(tbl)
	return 1
}

// resolveDevice finds a stored device by IEEE address or friendly name.
// Properties are read from the store, which the coordinator updates before
// emitting property_update.
func resolveDevice(e *Engine, target string) *store.Device {
	ieee, ok := e.coord.Devices().Lookup(target)
	if !ok {
		return nil
	}
	dev, err := e.coord.Store().GetDevice(ieee)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("read device", "ieee", ieee, "err", err)
		}
		return nil
	}
	return dev
}
