package zcl

import (
	"bytes"
	"testing"
)

func TestTypeWidth(t *testing.T) {
	tests := []struct {
		typeID uint8
		want   int
	}{
		{TypeNoData, 0},
		{TypeData8, 1},
		{0x0F, 8},
		{TypeBool, 1},
		{TypeBitmap8, 1},
		{TypeBitmap32, 4},
		{TypeUint8, 1},
		{TypeUint16, 2},
		{TypeUint24, 3},
		{TypeUint32, 4},
		{TypeUint40, 5},
		{TypeUint48, 6},
		{TypeUint64, 8},
		{TypeInt8, 1},
		{TypeInt24, 3},
		{TypeEnum8, 1},
		{TypeEnum16, 2},
		{TypeFloat32, 4},
		{TypeUTC, 4},
		{TypeAttrID, 2},
		{TypeEUI64, 8},
		{TypeOctetStr, WidthVariable},
		{TypeCharStr, WidthVariable},
		{TypeCharStr16, WidthVariable16},
		{0x4C, WidthUnknown},
		{0xFF, WidthUnknown},
	}
	for _, tt := range tests {
		t.Run(TypeName(tt.typeID), func(t *testing.T) {
			if got := TypeWidth(tt.typeID); got != tt.want {
				t.Errorf("TypeWidth(0x%02X) = %d, want %d", tt.typeID, got, tt.want)
			}
		})
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name     string
		typeID   uint8
		data     []byte
		want     interface{}
		consumed int
	}{
		{"uint8", TypeUint8, []byte{0x42}, uint8(0x42), 1},
		{"uint16", TypeUint16, []byte{0x34, 0x12}, uint16(0x1234), 2},
		{"uint24", TypeUint24, []byte{0x56, 0x34, 0x12}, uint32(0x123456), 3},
		{"uint32", TypeUint32, []byte{0x78, 0x56, 0x34, 0x12, 0xFF}, uint32(0x12345678), 4},
		{"uint40", TypeUint40, []byte{1, 2, 3, 4, 5}, uint64(0x0504030201), 5},
		{"int16", TypeInt16, []byte{0x9C, 0xFF}, int16(-100), 2},
		{"int24 negative", TypeInt24, []byte{0xFF, 0xFF, 0xFF}, int32(-1), 3},
		{"bool", TypeBool, []byte{0x01}, true, 1},
		{"string", TypeCharStr, []byte{5, 'H', 'e', 'l', 'l', 'o'}, "Hello", 6},
		{"string invalid", TypeCharStr, []byte{0xFF}, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := DecodeValue(tt.typeID, tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
			if n != tt.consumed {
				t.Errorf("consumed %d, want %d", n, tt.consumed)
			}
		})
	}
}

func TestDecodeOctetStr(t *testing.T) {
	val, n, err := DecodeValue(TypeOctetStr, []byte{3, 0xAA, 0xBB, 0xCC})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("consumed %d, want 4", n)
	}
	if !bytes.Equal(val.([]byte), []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("got %X", val)
	}
}

func TestDecodeNotEnoughData(t *testing.T) {
	if _, _, err := DecodeValue(TypeUint32, []byte{0x01}); err == nil {
		t.Error("expected error for insufficient data")
	}
	if _, _, err := DecodeValue(TypeCharStr, []byte{0x05, 'a'}); err == nil {
		t.Error("expected error for truncated string")
	}
	if _, _, err := DecodeValue(0x4C, []byte{0x01}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		val    interface{}
		want   []byte
	}{
		{"uint8", TypeUint8, uint8(0x42), []byte{0x42}},
		{"enum8 from float", TypeEnum8, float64(2), []byte{0x02}},
		{"uint16", TypeUint16, 0x1234, []byte{0x34, 0x12}},
		{"uint32", TypeUint32, uint64(0x12345678), []byte{0x78, 0x56, 0x34, 0x12}},
		{"uint40", TypeUint40, uint64(0x0504030201), []byte{1, 2, 3, 4, 5}},
		{"int8", TypeInt8, -128, []byte{0x80}},
		{"int24", TypeInt24, int64(-1), []byte{0xFF, 0xFF, 0xFF}},
		{"bool", TypeBool, true, []byte{0x01}},
		{"string", TypeCharStr, "Hi", []byte{0x02, 'H', 'i'}},
		{"octets", TypeOctetStr, []byte{0x07, 0x01}, []byte{0x02, 0x07, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.typeID, tt.val)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded %X, want %X", got, tt.want)
			}
		})
	}
}

func TestEncodeValueOverflow(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		val    interface{}
	}{
		{"uint8", TypeUint8, 256},
		{"uint16", TypeUint16, 0x10000},
		{"int8", TypeInt8, 128},
		{"negative unsigned", TypeUint8, -1},
		{"wrong kind", TypeCharStr, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeValue(tt.typeID, tt.val); err == nil {
				t.Errorf("expected error encoding %v as %s", tt.val, TypeName(tt.typeID))
			}
		})
	}
}

func TestReverseAndLittleEndian(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	if got := Reverse(b); !bytes.Equal(got, []byte{0x03, 0x02, 0x01}) {
		t.Errorf("Reverse = %X", got)
	}
	if got := LittleEndianUint(b); got != 0x030201 {
		t.Errorf("LittleEndianUint = 0x%X", got)
	}
}
