package clusters

import "zigbee-lumi/internal/zcl"

var WindowCovering = zcl.ClusterDef{
	ID:   0x0102,
	Name: "Window Covering",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "WindowCoveringType", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x0007, Name: "ConfigStatus", Type: zcl.TypeBitmap8, Access: zcl.AccessRead},
		{ID: 0x0008, Name: "CurrentPositionLiftPercentage", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0017, Name: "Mode", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "UpOpen"},
		{ID: 0x01, Name: "DownClose"},
		{ID: 0x02, Name: "Stop"},
		{ID: 0x05, Name: "GoToLiftPercentage"},
	},
}
