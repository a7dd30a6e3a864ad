package zcl

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Attribute is one attribute record carried by a frame. Numeric values are
// stored most significant byte first; string values without their length
// prefix.
type Attribute struct {
	ID       uint16 `json:"id" cbor:"1,keyasint"`
	DataType uint8  `json:"type" cbor:"2,keyasint"`
	Value    []byte `json:"value" cbor:"3,keyasint"`
}

// Uint returns the value as an unsigned integer. Strings yield 0.
func (a Attribute) Uint() uint64 {
	if IsDiscrete(a.DataType) {
		return 0
	}
	var v uint64
	for _, b := range a.Value {
		v = v<<8 | uint64(b)
	}
	return v
}

// Text returns character string values as text and everything else as
// upper-case hex.
func (a Attribute) Text() string {
	if a.DataType == TypeCharStr || a.DataType == TypeCharStr16 {
		return string(a.Value)
	}
	return strings.ToUpper(hex.EncodeToString(a.Value))
}

// Frame is one decoded inbound ZCL message. It is not modified after parse.
type Frame struct {
	NetworkAddr      uint16
	Endpoint         uint8
	ClusterID        uint16
	CommandID        uint8
	IsGlobal         bool
	ManufacturerCode uint16

	// Primary attribute, set for attribute reports and read responses.
	HasAttr  bool
	AttrID   uint16
	DataType uint8
	Value    []byte

	// Command payload as received.
	Data []byte

	// Further attribute records of the same cluster, in wire order.
	Additional []Attribute
}

// Attr returns the primary attribute record.
func (f *Frame) Attr() Attribute {
	return Attribute{ID: f.AttrID, DataType: f.DataType, Value: f.Value}
}

// Attributes returns the primary record followed by the additional ones.
func (f *Frame) Attributes() []Attribute {
	if !f.HasAttr {
		return nil
	}
	out := make([]Attribute, 0, 1+len(f.Additional))
	out = append(out, f.Attr())
	return append(out, f.Additional...)
}

func (f *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cluster=0x%04X", f.ClusterID)
	if f.IsGlobal {
		fmt.Fprintf(&b, " global=%s", FoundationName(f.CommandID))
	} else {
		fmt.Fprintf(&b, " command=0x%02X", f.CommandID)
	}
	if f.HasAttr {
		fmt.Fprintf(&b, " attr=0x%04X type=%s value=%X", f.AttrID, TypeName(f.DataType), f.Value)
	}
	if len(f.Additional) > 0 {
		fmt.Fprintf(&b, " additional=%d", len(f.Additional))
	}
	if len(f.Data) > 0 && !f.HasAttr {
		fmt.Fprintf(&b, " data=%X", f.Data)
	}
	return b.String()
}
