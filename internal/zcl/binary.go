package zcl

import (
	"encoding/binary"
	"fmt"

	sbzcl "github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
)

const (
	frameTypeMask        = 0x03
	frameTypeLocal       = 0x01
	frameManufacturerBit = 0x04
)

var commandRegistry = newCommandRegistry()

func newCommandRegistry() *sbzcl.CommandRegistry {
	cr := sbzcl.NewCommandRegistry()
	global.Register(cr)
	return cr
}

// DecodeApplicationFrame decodes a binary ZCL frame (header and payload) as
// forwarded by gateways that pass raw APS data instead of description
// strings.
func DecodeApplicationFrame(clusterID uint16, endpoint uint8, data []byte) (*Frame, error) {
	input := fmt.Sprintf("%04X/%02X:%X", clusterID, endpoint, data)
	if len(data) < 3 {
		return nil, parseErr(input, "zcl header truncated", nil)
	}
	if data[0]&frameTypeMask == frameTypeLocal {
		return decodeLocalFrame(input, clusterID, endpoint, data)
	}

	msg, err := commandRegistry.Unmarshal(zigbee.ApplicationMessage{
		ClusterID:           zigbee.ClusterID(clusterID),
		SourceEndpoint:      zigbee.Endpoint(endpoint),
		DestinationEndpoint: zigbee.Endpoint(1),
		Data:                data,
	})
	if err != nil {
		return nil, parseErr(input, "global command", err)
	}

	f := &Frame{
		ClusterID:        clusterID,
		Endpoint:         endpoint,
		CommandID:        uint8(msg.CommandIdentifier),
		IsGlobal:         true,
		ManufacturerCode: uint16(msg.Manufacturer),
	}

	var recs []Attribute
	switch cmd := msg.Command.(type) {
	case *global.ReportAttributes:
		for _, r := range cmd.Records {
			a, err := attributeFromValue(uint16(r.Identifier), uint8(r.DataTypeValue.DataType), r.DataTypeValue.Value)
			if err != nil {
				return nil, parseErr(input, "report attributes", err)
			}
			recs = append(recs, a)
		}
	case *global.ReadAttributesResponse:
		for _, r := range cmd.Records {
			if uint8(r.Status) != ZCLStatusSuccess {
				continue
			}
			a, err := attributeFromValue(uint16(r.Identifier), uint8(r.DataTypeValue.DataType), r.DataTypeValue.Value)
			if err != nil {
				return nil, parseErr(input, "read attributes response", err)
			}
			recs = append(recs, a)
		}
	case *global.DefaultResponse:
		f.Data = []byte{uint8(cmd.CommandIdentifier), uint8(cmd.Status)}
	case *global.WriteAttributesResponse:
		f.Data = []byte{ZCLStatusSuccess}
		for _, r := range cmd.Records {
			if uint8(r.Status) != ZCLStatusSuccess {
				f.Data = []byte{uint8(r.Status)}
				break
			}
		}
	case *global.ConfigureReportingResponse:
		f.Data = []byte{ZCLStatusSuccess}
	}

	if len(recs) > 0 {
		f.HasAttr = true
		f.AttrID, f.DataType, f.Value = recs[0].ID, recs[0].DataType, recs[0].Value
		f.Additional = recs[1:]
	}
	return f, nil
}

func decodeLocalFrame(input string, clusterID uint16, endpoint uint8, data []byte) (*Frame, error) {
	f := &Frame{ClusterID: clusterID, Endpoint: endpoint}
	hdr := 1
	if data[0]&frameManufacturerBit != 0 {
		if len(data) < 5 {
			return nil, parseErr(input, "manufacturer header truncated", nil)
		}
		f.ManufacturerCode = binary.LittleEndian.Uint16(data[1:3])
		hdr = 3
	}
	// data[hdr] is the transaction sequence number.
	f.CommandID = data[hdr+1]
	f.Data = append([]byte(nil), data[hdr+2:]...)
	return f, nil
}

func attributeFromValue(id uint16, dt uint8, v interface{}) (Attribute, error) {
	wire, err := EncodeValue(dt, v)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute 0x%04X: %w", id, err)
	}
	return Attribute{ID: id, DataType: dt, Value: displayValue(dt, wire)}, nil
}
