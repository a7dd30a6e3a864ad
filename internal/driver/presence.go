package driver

import (
	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/zcl"
)

// Mask properties of the presence sensor, rendered as grids.
const (
	PropExitRegion         = "exit_region"
	PropInterferenceRegion = "interference_region"
	PropEdgeRegion         = "edge_region"
)

// NewPresence returns the driver for the FP1 presence sensor. The profile
// selects the firmware variant.
func NewPresence(p *lumi.Profile, ep uint8, reg *zcl.Registry) Driver {
	if p == nil {
		p = lumi.ProfileFP1
	}
	t := newTable("presence", p, ep, reg)
	addBasic(t)

	c := lumi.ClusterLumi
	t.onAttr(c, lumi.AttrTagReport, t.tagReport)
	t.onAttr(c, lumi.AttrPresence, setUint(lumi.PropPresence))
	t.onAttr(c, lumi.AttrPresenceAction, setUint(lumi.PropPresenceAction))
	t.onAttr(c, lumi.AttrSensitivity, setUint(lumi.PropSensitivity))
	t.onAttr(c, lumi.AttrDirectionMode, setUint(lumi.PropDirectionMode))
	t.onAttr(c, lumi.AttrTriggerDistance, setUint(lumi.PropTriggerDistance))
	t.onAttr(c, lumi.AttrRegionEvent, func(u *Update, a zcl.Attribute) error {
		ev, err := lumi.DecodeRegionEvent(a.Value)
		if err != nil {
			return err
		}
		u.Regions = append(u.Regions, ev)
		return nil
	})
	t.onAttr(c, lumi.AttrExitRegion, setMask(PropExitRegion))
	t.onAttr(c, lumi.AttrInterferenceRegion, setMask(PropInterferenceRegion))
	t.onAttr(c, lumi.AttrEdgeRegion, setMask(PropEdgeRegion))

	t.onCommand("set_sensitivity", t.writeInt(lumi.AttrSensitivity, "value", 1, 3))
	t.onCommand("set_trigger_distance", t.writeInt(lumi.AttrTriggerDistance, "value", 0, 2))
	t.onCommand("set_direction_mode", t.writeInt(lumi.AttrDirectionMode, "value", 0, 1))
	t.onCommand("reset_state", func(Args) ([]command.Instruction, error) {
		in, err := t.write(c, lumi.AttrResetPresence, 1)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{in}, nil
	})
	t.onCommand("set_region", func(args Args) ([]command.Instruction, error) {
		id, err := args.Int("id")
		if err != nil {
			return nil, err
		}
		r, err := args.Rect()
		if err != nil {
			return nil, err
		}
		b, err := lumi.RegionBytes(id, r, t.profile)
		if err != nil {
			return nil, err
		}
		in, err := t.write(c, lumi.AttrSetRegion, b)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{in}, nil
	})
	t.onCommand("remove_region", func(args Args) ([]command.Instruction, error) {
		id, err := args.Int("id")
		if err != nil {
			return nil, err
		}
		b, err := lumi.ClearRegionBytes(id)
		if err != nil {
			return nil, err
		}
		in, err := t.write(c, lumi.AttrSetRegion, b)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{in}, nil
	})
	t.onCommand("set_exit_region", t.writeMask(lumi.AttrExitRegion))
	t.onCommand("set_interference_region", t.writeMask(lumi.AttrInterferenceRegion))
	t.onCommand("set_edge_region", t.writeMask(lumi.AttrEdgeRegion))
	t.onCommand("refresh", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{
			t.read(c, lumi.AttrPresence),
			t.read(c, lumi.AttrSensitivity),
			t.read(c, lumi.AttrDirectionMode),
			t.read(c, lumi.AttrTriggerDistance),
		}, nil
	})
	t.onCommand("configure", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{
			command.ConfigureReporting(ep, c, lumi.AttrPresence, zcl.TypeUint8, 1, 3600, []byte{0x01}).Mfg(lumi.ManufacturerCode),
			command.Wait(configureSettle),
			t.read(c, lumi.AttrPresence),
			t.read(clusterBasic, attrAppVersion),
		}, nil
	})
	addPing(t)
	return t
}

func setUint(prop string) attrHandler {
	return func(u *Update, a zcl.Attribute) error {
		u.Set(prop, a.Uint())
		return nil
	}
}

func setMask(prop string) attrHandler {
	return func(u *Update, a zcl.Attribute) error {
		u.Set(prop, lumi.DecodeMask(uint32(a.Uint())).String())
		return nil
	}
}

// writeInt builds a one-attribute write of an integer argument within
// [lo, hi].
func (t *table) writeInt(attr uint16, key string, lo, hi int) builder {
	return func(args Args) ([]command.Instruction, error) {
		v, err := args.IntIn(key, lo, hi)
		if err != nil {
			return nil, err
		}
		in, err := t.write(lumi.ClusterLumi, attr, v)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{in}, nil
	}
}

// writeMask builds the write of a rectangle as a grid mask.
func (t *table) writeMask(attr uint16) builder {
	return func(args Args) ([]command.Instruction, error) {
		r, err := args.Rect()
		if err != nil {
			return nil, err
		}
		v, err := lumi.MaskValue(r)
		if err != nil {
			return nil, err
		}
		in, err := t.write(lumi.ClusterLumi, attr, v)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{in}, nil
	}
}
