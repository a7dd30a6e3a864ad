package clusters

import "zigbee-lumi/internal/zcl"

// Lumi is the Xiaomi/Aqara manufacturer cluster. Every frame on it carries
// manufacturer code 0x115F.
var Lumi = zcl.ClusterDef{
	ID:               0xFCC0,
	Name:             "Lumi",
	ManufacturerCode: 0x115F,
	Attributes: []zcl.AttributeDef{
		{ID: 0x00F7, Name: "TagReport", Type: zcl.TypeOctetStr, Access: zcl.AccessReport},
		{ID: 0x010C, Name: "Sensitivity", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: 0x0142, Name: "Presence", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0143, Name: "PresenceAction", Type: zcl.TypeUint8, Access: zcl.AccessReport},
		{ID: 0x0144, Name: "DirectionMode", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0146, Name: "TriggerDistance", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0150, Name: "SetRegion", Type: zcl.TypeOctetStr, Access: zcl.AccessWrite},
		{ID: 0x0151, Name: "RegionEvent", Type: zcl.TypeOctetStr, Access: zcl.AccessReport},
		{ID: 0x0153, Name: "ExitEntranceRegion", Type: zcl.TypeUint32, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0154, Name: "InterferenceRegion", Type: zcl.TypeUint32, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0156, Name: "EdgeRegion", Type: zcl.TypeUint32, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0157, Name: "ResetPresence", Type: zcl.TypeUint8, Access: zcl.AccessWrite},
	},
}

// All lists the clusters the hub decodes.
func All() []zcl.ClusterDef {
	return []zcl.ClusterDef{Basic, PowerConfiguration, WindowCovering, Lumi}
}
