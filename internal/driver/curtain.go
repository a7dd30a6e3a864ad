package driver

import (
	"time"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/zcl"
)

// Cluster and attribute ids used by the curtain motor.
const (
	clusterBasic          uint16 = 0x0000
	clusterPower          uint16 = 0x0001
	clusterWindowCovering uint16 = 0x0102

	attrAppVersion   uint16 = 0x0001
	attrModel        uint16 = 0x0005
	attrBatteryPct   uint16 = 0x0021
	attrLiftPct      uint16 = 0x0008
	cmdUpOpen        uint8  = 0x00
	cmdDownClose     uint8  = 0x01
	cmdStop          uint8  = 0x02
	cmdGoToLiftPct   uint8  = 0x05
	configureSettle         = 2 * time.Second
	curtainReportMax uint16 = 600
)

// Curtain properties.
const (
	PropPosition = "position"
	PropBattery  = "battery"
	PropFirmware = "firmware"
	PropModel    = "model"
	PropRegions  = "regions"
)

// NewCurtain returns the driver for Lumi curtain motors.
func NewCurtain(p *lumi.Profile, ep uint8, reg *zcl.Registry) Driver {
	if p == nil {
		p = lumi.ProfileCurtain
	}
	t := newTable("curtain", p, ep, reg)
	addBasic(t)

	t.onAttr(clusterWindowCovering, attrLiftPct, func(u *Update, a zcl.Attribute) error {
		u.Set(PropPosition, a.Uint())
		return nil
	})
	t.onAttr(clusterPower, attrBatteryPct, func(u *Update, a zcl.Attribute) error {
		// Half-percent units; 0xFF is invalid.
		if v := a.Uint(); v != 0xFF {
			u.Set(PropBattery, v/2)
		}
		return nil
	})

	t.onCommand("open", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{command.ClusterCommand(ep, clusterWindowCovering, cmdUpOpen, nil)}, nil
	})
	t.onCommand("close", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{command.ClusterCommand(ep, clusterWindowCovering, cmdDownClose, nil)}, nil
	})
	t.onCommand("stop", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{command.ClusterCommand(ep, clusterWindowCovering, cmdStop, nil)}, nil
	})
	t.onCommand("set_position", func(args Args) ([]command.Instruction, error) {
		pos, err := args.IntIn("position", 0, 100)
		if err != nil {
			return nil, err
		}
		return []command.Instruction{
			command.ClusterCommand(ep, clusterWindowCovering, cmdGoToLiftPct, []byte{uint8(pos)}),
		}, nil
	})
	t.onCommand("refresh", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{
			t.read(clusterWindowCovering, attrLiftPct),
			t.read(clusterPower, attrBatteryPct),
			t.read(clusterBasic, attrAppVersion),
		}, nil
	})
	t.onCommand("configure", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{
			command.ConfigureReporting(ep, clusterWindowCovering, attrLiftPct, zcl.TypeUint8, 0, curtainReportMax, []byte{0x01}),
			command.Wait(configureSettle),
			command.ConfigureReporting(ep, clusterPower, attrBatteryPct, zcl.TypeUint8, 3600, 7200, []byte{0x02}),
			command.Wait(configureSettle),
			t.read(clusterWindowCovering, attrLiftPct),
		}, nil
	})
	addPing(t)
	return t
}

// addBasic registers the Basic cluster handlers every driver shares.
func addBasic(t *table) {
	t.onAttr(clusterBasic, attrAppVersion, func(u *Update, a zcl.Attribute) error {
		u.Set(PropFirmware, a.Uint())
		return nil
	})
	t.onAttr(clusterBasic, attrModel, func(u *Update, a zcl.Attribute) error {
		u.Set(PropModel, a.Text())
		return nil
	})
	t.onAttr(clusterBasic, lumi.AttrBasicTagReport, t.tagReport)
}

// addPing registers the liveness probe: a read of the Basic application
// version, which every Lumi device answers.
func addPing(t *table) {
	t.onCommand("ping", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{t.read(clusterBasic, attrAppVersion)}, nil
	})
}

// tagReport decodes a tag/type/value stream into profile properties.
func (t *table) tagReport(u *Update, a zcl.Attribute) error {
	tags, err := lumi.DecodeTags(tagBytes(a), t.profile)
	if err != nil {
		return err
	}
	for k, v := range t.profile.Properties(tags) {
		u.Set(k, v)
	}
	return nil
}

// tagBytes returns the raw stream. Some gateways deliver it as a character
// string holding hex text.
func tagBytes(a zcl.Attribute) []byte {
	if a.DataType != zcl.TypeCharStr {
		return a.Value
	}
	if b, err := decodeHexText(a.Value); err == nil {
		return b
	}
	return a.Value
}
