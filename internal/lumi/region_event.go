package lumi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"zigbee-lumi/internal/zcl"
)

// RegionAction is the activity reported for a region.
type RegionAction uint8

const (
	RegionEnter      RegionAction = 1
	RegionLeave      RegionAction = 2
	RegionOccupied   RegionAction = 4
	RegionUnoccupied RegionAction = 8
)

// precedence in which set bits are matched.
var regionActions = []RegionAction{RegionEnter, RegionLeave, RegionOccupied, RegionUnoccupied}

func (a RegionAction) String() string {
	switch a {
	case RegionEnter:
		return "enter"
	case RegionLeave:
		return "leave"
	case RegionOccupied:
		return "occupied"
	case RegionUnoccupied:
		return "unoccupied"
	}
	return fmt.Sprintf("action(0x%02X)", uint8(a))
}

// MarshalText renders the action name.
func (a RegionAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (a *RegionAction) UnmarshalText(b []byte) error {
	for _, v := range regionActions {
		if v.String() == string(b) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("lumi: unknown region action %q", b)
}

// RegionEvent is one report on AttrRegionEvent.
type RegionEvent struct {
	RegionID int          `json:"region_id"`
	Action   RegionAction `json:"action"`
}

// DecodeRegionEvent parses <regionId><action>. When several action bits are
// set the first of enter, leave, occupied, unoccupied wins.
func DecodeRegionEvent(b []byte) (RegionEvent, error) {
	in := fmt.Sprintf("%X", b)
	if len(b) < 2 {
		return RegionEvent{}, tagParseErr(in, "region event shorter than 2 bytes")
	}
	id := int(b[0])
	if validateID(id) != nil {
		return RegionEvent{}, tagParseErr(in, fmt.Sprintf("region id %d out of range", id))
	}
	for _, a := range regionActions {
		if b[1]&uint8(a) != 0 {
			return RegionEvent{RegionID: id, Action: a}, nil
		}
	}
	return RegionEvent{}, tagParseErr(in, fmt.Sprintf("no known action in 0x%02X", b[1]))
}

// DecodeRegionEventHex parses the hex form, e.g. "0304".
func DecodeRegionEventHex(s string) (RegionEvent, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return RegionEvent{}, &zcl.ParseError{Input: s, Reason: "region event hex", Err: err}
	}
	return DecodeRegionEvent(b)
}

func tagParseErr(input, reason string) error {
	return &zcl.ParseError{Input: input, Reason: reason}
}
