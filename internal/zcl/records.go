package zcl

import (
	"encoding/binary"
	"fmt"
)

// walkRecords decodes a run of attribute records. Report layout is
// attrID(2) type(1) value; read-response layout inserts a status byte after
// the id and omits type and value when the status is not success.
func walkRecords(data []byte, withStatus bool) ([]Attribute, error) {
	var out []Attribute
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, fmt.Errorf("record header truncated: %d bytes left", len(data))
		}
		id := binary.LittleEndian.Uint16(data[0:2])
		if withStatus {
			status := data[2]
			data = data[3:]
			if status != ZCLStatusSuccess {
				continue
			}
			if len(data) < 1 {
				return nil, fmt.Errorf("attribute 0x%04X: missing data type", id)
			}
		} else {
			data = data[2:]
		}
		dt := data[0]
		raw, rest, err := SplitValue(dt, data[1:])
		if err != nil {
			return nil, fmt.Errorf("attribute 0x%04X: %w", id, err)
		}
		out = append(out, Attribute{ID: id, DataType: dt, Value: displayValue(dt, raw)})
		data = rest
	}
	return out, nil
}

// displayValue converts wire value bytes to the Attribute representation.
func displayValue(dt uint8, raw []byte) []byte {
	switch TypeWidth(dt) {
	case WidthVariable:
		return raw[1:]
	case WidthVariable16:
		return raw[2:]
	}
	return Reverse(raw)
}
