// Package lumi decodes and encodes the Xiaomi/Aqara manufacturer extensions
// carried on cluster 0xFCC0: the tag/type/value report stream and the 7x4
// detection region grid of the FP1 presence sensor.
package lumi

// Manufacturer cluster and code.
const (
	ClusterLumi      uint16 = 0xFCC0
	ManufacturerCode uint16 = 0x115F
)

// Attributes on ClusterLumi.
const (
	AttrTagReport          uint16 = 0x00F7
	AttrSensitivity        uint16 = 0x010C
	AttrPresence           uint16 = 0x0142
	AttrPresenceAction     uint16 = 0x0143
	AttrDirectionMode      uint16 = 0x0144
	AttrTriggerDistance    uint16 = 0x0146
	AttrSetRegion          uint16 = 0x0150
	AttrRegionEvent        uint16 = 0x0151
	AttrExitRegion         uint16 = 0x0153
	AttrInterferenceRegion uint16 = 0x0154
	AttrEdgeRegion         uint16 = 0x0156
	AttrResetPresence      uint16 = 0x0157
)

// AttrBasicTagReport carries the same tag stream on the Basic cluster for
// older firmwares.
const AttrBasicTagReport uint16 = 0xFF01

// Tag ids inside a tag report.
const (
	TagSWBuild         uint8 = 0x08
	TagPresence        uint8 = 0x65
	TagSensitivity     uint8 = 0x66 // presence action on alternate firmware
	TagDirectionMode   uint8 = 0x67
	TagTriggerDistance uint8 = 0x69
)

// Device properties produced from tags and attributes.
const (
	PropPresence        = "presence"
	PropPresenceAction  = "presence_action"
	PropSensitivity     = "sensitivity"
	PropDirectionMode   = "direction_mode"
	PropTriggerDistance = "trigger_distance"
	PropSWBuild         = "sw_build"
)
