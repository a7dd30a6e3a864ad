package zcl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZCL data type IDs
const (
	TypeNoData     uint8 = 0x00
	TypeData8      uint8 = 0x08
	TypeBool       uint8 = 0x10
	TypeBitmap8    uint8 = 0x18
	TypeBitmap16   uint8 = 0x19
	TypeBitmap24   uint8 = 0x1A
	TypeBitmap32   uint8 = 0x1B
	TypeUint8      uint8 = 0x20
	TypeUint16     uint8 = 0x21
	TypeUint24     uint8 = 0x22
	TypeUint32     uint8 = 0x23
	TypeUint40     uint8 = 0x24
	TypeUint48     uint8 = 0x25
	TypeUint56     uint8 = 0x26
	TypeUint64     uint8 = 0x27
	TypeInt8       uint8 = 0x28
	TypeInt16      uint8 = 0x29
	TypeInt24      uint8 = 0x2A
	TypeInt32      uint8 = 0x2B
	TypeEnum8      uint8 = 0x30
	TypeEnum16     uint8 = 0x31
	TypeFloat16    uint8 = 0x38
	TypeFloat32    uint8 = 0x39
	TypeFloat64    uint8 = 0x3A
	TypeOctetStr   uint8 = 0x41
	TypeCharStr    uint8 = 0x42
	TypeOctetStr16 uint8 = 0x43
	TypeCharStr16  uint8 = 0x44
	TypeArray      uint8 = 0x48
	TypeStruct     uint8 = 0x4C
	TypeToD        uint8 = 0xE0 // Time of Day
	TypeDate       uint8 = 0xE1
	TypeUTC        uint8 = 0xE2
	TypeClusterID  uint8 = 0xE8
	TypeAttrID     uint8 = 0xE9
	TypeEUI64      uint8 = 0xF0
)

// Width sentinels returned by TypeWidth for types without a fixed size.
const (
	WidthVariable   = -1 // 1-byte length prefix
	WidthUnknown    = -2
	WidthVariable16 = -3 // 2-byte length prefix
)

// TypeWidth returns the fixed value width of a ZCL type in bytes, or one of
// the Width* sentinels.
func TypeWidth(t uint8) int {
	switch {
	case t == TypeNoData:
		return 0
	case t >= 0x08 && t <= 0x0F: // data8..data64
		return int(t-0x08) + 1
	case t == TypeBool:
		return 1
	case t >= TypeBitmap8 && t <= 0x1F: // map8..map64
		return int(t-TypeBitmap8) + 1
	case t >= TypeUint8 && t <= TypeUint64:
		return int(t-TypeUint8) + 1
	case t >= TypeInt8 && t <= 0x2F:
		return int(t-TypeInt8) + 1
	case t == TypeEnum8:
		return 1
	case t == TypeEnum16, t == TypeFloat16:
		return 2
	case t == TypeFloat32:
		return 4
	case t == TypeFloat64:
		return 8
	case t == TypeToD, t == TypeDate, t == TypeUTC:
		return 4
	case t == TypeClusterID, t == TypeAttrID:
		return 2
	case t == TypeEUI64:
		return 8
	case t == TypeOctetStr, t == TypeCharStr:
		return WidthVariable
	case t == TypeOctetStr16, t == TypeCharStr16:
		return WidthVariable16
	}
	return WidthUnknown
}

// IsDiscrete reports whether values of type t are byte strings rather than
// numbers.
func IsDiscrete(t uint8) bool {
	w := TypeWidth(t)
	return w == WidthVariable || w == WidthVariable16
}

var typeNames = map[uint8]string{
	TypeNoData:     "nodata",
	TypeBool:       "bool",
	TypeBitmap8:    "map8",
	TypeBitmap16:   "map16",
	TypeBitmap24:   "map24",
	TypeBitmap32:   "map32",
	TypeUint8:      "uint8",
	TypeUint16:     "uint16",
	TypeUint24:     "uint24",
	TypeUint32:     "uint32",
	TypeUint40:     "uint40",
	TypeUint48:     "uint48",
	TypeUint56:     "uint56",
	TypeUint64:     "uint64",
	TypeInt8:       "int8",
	TypeInt16:      "int16",
	TypeInt24:      "int24",
	TypeInt32:      "int32",
	TypeEnum8:      "enum8",
	TypeEnum16:     "enum16",
	TypeFloat16:    "float16",
	TypeFloat32:    "float32",
	TypeFloat64:    "float64",
	TypeOctetStr:   "octstr",
	TypeCharStr:    "string",
	TypeOctetStr16: "octstr16",
	TypeCharStr16:  "string16",
	TypeArray:      "array",
	TypeStruct:     "struct",
	TypeUTC:        "UTC",
	TypeEUI64:      "EUI64",
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	if n, ok := typeNames[typeID]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", typeID)
}

// SplitValue cuts one value of type t off the front of data and returns the
// value bytes (length prefix included for strings) and the remainder.
func SplitValue(t uint8, data []byte) (value, rest []byte, err error) {
	var n int
	switch w := TypeWidth(t); w {
	case WidthUnknown:
		return nil, nil, fmt.Errorf("zcl: unknown width for type 0x%02X", t)
	case WidthVariable:
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("zcl: no length byte for %s", TypeName(t))
		}
		n = 1 + int(data[0])
		if data[0] == 0xFF {
			n = 1
		}
	case WidthVariable16:
		if len(data) < 2 {
			return nil, nil, fmt.Errorf("zcl: no length bytes for %s", TypeName(t))
		}
		n = 2 + int(binary.LittleEndian.Uint16(data[:2]))
		if n == 2+0xFFFF {
			n = 2
		}
	default:
		n = w
	}
	if len(data) < n {
		return nil, nil, fmt.Errorf("zcl: %s truncated: need %d, have %d", TypeName(t), n, len(data))
	}
	value = make([]byte, n)
	copy(value, data[:n])
	return value, data[n:], nil
}

// LittleEndianUint reassembles an unsigned little-endian integer of up to 8
// bytes.
func LittleEndianUint(b []byte) uint64 {
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// Reverse returns a reversed copy of b. Fixed-width wire values are
// little-endian; description strings print them most significant byte first.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// DecodeValue decodes a ZCL typed value from little-endian wire bytes,
// returning the Go value and bytes consumed.
func DecodeValue(typeID uint8, data []byte) (interface{}, int, error) {
	raw, _, err := SplitValue(typeID, data)
	if err != nil {
		return nil, 0, err
	}
	n := len(raw)

	switch typeID {
	case TypeNoData:
		return nil, 0, nil
	case TypeBool:
		return raw[0] != 0, n, nil
	case TypeUint8, TypeEnum8, TypeBitmap8:
		return raw[0], n, nil
	case TypeUint16, TypeEnum16, TypeBitmap16, TypeClusterID, TypeAttrID, TypeFloat16:
		return binary.LittleEndian.Uint16(raw), n, nil
	case TypeUint24, TypeBitmap24, TypeUint32, TypeBitmap32, TypeUTC, TypeToD, TypeDate:
		return uint32(LittleEndianUint(raw)), n, nil
	case TypeUint40, TypeUint48, TypeUint56, TypeUint64:
		return LittleEndianUint(raw), n, nil
	case TypeInt8:
		return int8(raw[0]), n, nil
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(raw)), n, nil
	case TypeInt24:
		v := uint32(LittleEndianUint(raw))
		if v&0x800000 != 0 {
			v |= 0xFF000000 // sign extend
		}
		return int32(v), n, nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(raw)), n, nil
	case TypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), n, nil
	case TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), n, nil
	case TypeEUI64:
		var addr [8]byte
		copy(addr[:], raw)
		return addr, n, nil
	case TypeCharStr:
		if n == 1 {
			return "", n, nil
		}
		return string(raw[1:]), n, nil
	case TypeCharStr16:
		if n == 2 {
			return "", n, nil
		}
		return string(raw[2:]), n, nil
	case TypeOctetStr:
		return raw[1:], n, nil
	case TypeOctetStr16:
		return raw[2:], n, nil
	}
	return raw, n, nil
}

// EncodeValue encodes a Go value into ZCL wire format.
func EncodeValue(typeID uint8, val interface{}) ([]byte, error) {
	switch typeID {
	case TypeBool:
		v, ok := toBool(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TypeInt8, TypeInt16, TypeInt24, TypeInt32:
		v, ok := toInt64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
		}
		w := TypeWidth(typeID)
		limit := int64(1) << (8*w - 1)
		if v < -limit || v >= limit {
			return nil, fmt.Errorf("zcl: value %d overflows %s", v, TypeName(typeID))
		}
		return putUint(uint64(v), w), nil

	case TypeFloat32:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to float32", val)
		}
		return putUint(uint64(math.Float32bits(float32(v))), 4), nil

	case TypeFloat64:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to float64", val)
		}
		return putUint(math.Float64bits(v), 8), nil

	case TypeCharStr, TypeOctetStr:
		var b []byte
		switch s := val.(type) {
		case string:
			b = []byte(s)
		case []byte:
			b = s
		default:
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
		}
		if len(b) > 254 {
			return nil, fmt.Errorf("zcl: data too long for %s: %d (max 254)", TypeName(typeID), len(b))
		}
		return append([]byte{uint8(len(b))}, b...), nil
	}

	w := TypeWidth(typeID)
	if w <= 0 || w > 8 {
		return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
	}
	v, ok := toUint64(val)
	if !ok {
		return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
	}
	if w < 8 && v >= uint64(1)<<(8*w) {
		return nil, fmt.Errorf("zcl: value %d overflows %s", v, TypeName(typeID))
	}
	return putUint(v, w), nil
}

func putUint(v uint64, width int) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	}
	return false, false
}

func toUint64(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}
