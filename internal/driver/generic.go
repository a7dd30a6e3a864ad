package driver

import (
	"encoding/hex"
	"errors"

	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/zcl"
)

// NewGeneric returns a driver that only tracks Basic cluster identity,
// battery and the tag stream. It answers ping and refresh.
func NewGeneric(p *lumi.Profile, ep uint8, reg *zcl.Registry) Driver {
	if p == nil {
		p = lumi.ProfileFP1
	}
	t := newTable("generic", p, ep, reg)
	addBasic(t)
	t.onAttr(clusterPower, attrBatteryPct, func(u *Update, a zcl.Attribute) error {
		if v := a.Uint(); v != 0xFF {
			u.Set(PropBattery, v/2)
		}
		return nil
	})
	t.onAttr(lumi.ClusterLumi, lumi.AttrTagReport, t.tagReport)
	t.onCommand("refresh", func(Args) ([]command.Instruction, error) {
		return []command.Instruction{
			t.read(clusterBasic, attrModel),
			t.read(clusterBasic, attrAppVersion),
		}, nil
	})
	addPing(t)
	return t
}

func decodeHexText(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%2 != 0 {
		return nil, errors.New("not hex text")
	}
	return hex.DecodeString(string(b))
}
