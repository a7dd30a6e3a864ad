package zcl

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseReadAttr(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		cluster  uint16
		attr     uint16
		dataType uint8
		value    []byte
		ep       uint8
		dni      uint16
		extra    int
	}{
		{
			name:     "curtain lift",
			desc:     "read attr - raw: 7ABF0101020A08002032, dni: 7ABF, endpoint: 01, cluster: 0102, size: 0A, attrId: 0008, result: success, encoding: 20, value: 32",
			cluster:  0x0102,
			attr:     0x0008,
			dataType: TypeUint8,
			value:    []byte{0x32},
			ep:       0x01,
			dni:      0x7ABF,
		},
		{
			name:     "uint16 padded",
			desc:     "read attr - dni: 1234, endpoint: 01, cluster: 0001, size: 08, attrId: 0020, result: success, encoding: 21, value: 1E",
			cluster:  0x0001,
			attr:     0x0020,
			dataType: TypeUint16,
			value:    []byte{0x00, 0x1E},
			ep:       0x01,
			dni:      0x1234,
		},
		{
			name:     "string value",
			desc:     "read attr - raw: , dni: 7ABF, endpoint: 01, cluster: 0000, size: 14, attrId: 0005, result: success, encoding: 42, value: lumi.curtain.hagl04",
			cluster:  0x0000,
			attr:     0x0005,
			dataType: TypeCharStr,
			value:    []byte("lumi.curtain.hagl04"),
			ep:       0x01,
			dni:      0x7ABF,
		},
		{
			name:     "additional attributes from raw",
			desc:     "read attr - raw: 7ABF01010212080020320100215802, dni: 7ABF, endpoint: 01, cluster: 0102, size: 12, attrId: 0008, result: success, encoding: 20, value: 32",
			cluster:  0x0102,
			attr:     0x0008,
			dataType: TypeUint8,
			value:    []byte{0x32},
			ep:       0x01,
			dni:      0x7ABF,
			extra:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseDescription(tt.desc)
			if err != nil {
				t.Fatalf("ParseDescription: %v", err)
			}
			if !f.IsGlobal || f.CommandID != FoundationReportAttributes || !f.HasAttr {
				t.Errorf("frame kind = global:%v cmd:0x%02X attr:%v", f.IsGlobal, f.CommandID, f.HasAttr)
			}
			if f.ClusterID != tt.cluster || f.AttrID != tt.attr || f.DataType != tt.dataType {
				t.Errorf("got cluster 0x%04X attr 0x%04X type 0x%02X", f.ClusterID, f.AttrID, f.DataType)
			}
			if !bytes.Equal(f.Value, tt.value) {
				t.Errorf("value = %X, want %X", f.Value, tt.value)
			}
			if f.Endpoint != tt.ep || f.NetworkAddr != tt.dni {
				t.Errorf("endpoint/dni = %02X/%04X", f.Endpoint, f.NetworkAddr)
			}
			if len(f.Additional) != tt.extra {
				t.Errorf("additional = %d, want %d", len(f.Additional), tt.extra)
			}
		})
	}
}

func TestParseReadAttrCommandField(t *testing.T) {
	tests := []struct {
		desc string
		want uint8
	}{
		{"read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, result: success, encoding: 20, value: 32", FoundationReportAttributes},
		{"read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, command: 01, result: success, encoding: 20, value: 32", FoundationReadAttributesResponse},
		{"read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, command: 0A, result: success, encoding: 20, value: 32", FoundationReportAttributes},
	}
	for _, tt := range tests {
		f, err := ParseDescription(tt.desc)
		if err != nil {
			t.Fatalf("ParseDescription(%q): %v", tt.desc, err)
		}
		if f.CommandID != tt.want {
			t.Errorf("%q: command = 0x%02X, want 0x%02X", tt.desc, f.CommandID, tt.want)
		}
	}
}

func TestParseReadAttrAdditionalOrder(t *testing.T) {
	// attr 0x0008 uint8 0x32, attr 0x0001 uint16 0x0258, attr 0x0005 string "ab"
	desc := "read attr - raw: 7ABF0101021208002032010021580205004202616200, dni: 7ABF, endpoint: 01, cluster: 0102, size: 12, attrId: 0008, result: success, encoding: 20, value: 32"
	f, err := ParseDescription(desc)
	if err == nil {
		t.Fatalf("expected truncation error for trailing byte, got frame %v", f)
	}

	desc = "read attr - raw: 7ABF01010212080020320100215802050042026162, dni: 7ABF, endpoint: 01, cluster: 0102, size: 12, attrId: 0008, result: success, encoding: 20, value: 32"
	f, err = ParseDescription(desc)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Additional) != 2 {
		t.Fatalf("additional = %d, want 2", len(f.Additional))
	}
	if a := f.Additional[0]; a.ID != 0x0001 || a.Uint() != 0x0258 || !bytes.Equal(a.Value, []byte{0x02, 0x58}) {
		t.Errorf("additional[0] = %+v", a)
	}
	if a := f.Additional[1]; a.ID != 0x0005 || a.Text() != "ab" {
		t.Errorf("additional[1] = %+v", a)
	}
	all := f.Attributes()
	if len(all) != 3 || all[0].ID != 0x0008 {
		t.Errorf("Attributes() = %+v", all)
	}
}

func TestParseCatchall(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		global   bool
		cmd      uint8
		data     []byte
		mfg      uint16
		hasAttr  bool
		attrID   uint16
		attrType uint8
	}{
		{
			name:   "default response",
			desc:   "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000 0B 01 0500",
			global: true,
			cmd:    FoundationDefaultResponse,
			data:   []byte{0x05, 0x00},
		},
		{
			name:   "split data tokens",
			desc:   "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000 0B 01 05 01",
			global: true,
			cmd:    FoundationDefaultResponse,
			data:   []byte{0x05, 0x01},
		},
		{
			name:   "cluster specific",
			desc:   "catchall: 0104 0006 01 01 0040 00 7ABF 01 00 0000 01 01",
			global: false,
			cmd:    0x01,
		},
		{
			name:     "manufacturer report",
			desc:     "catchall: 0104 FCC0 01 01 0040 00 7ABF 00 01 115F 0A 01 4201410203 04",
			global:   true,
			cmd:      FoundationReportAttributes,
			data:     []byte{0x42, 0x01, 0x41, 0x02, 0x03, 0x04},
			mfg:      0x115F,
			hasAttr:  true,
			attrID:   0x0142,
			attrType: TypeOctetStr,
		},
		{
			name:     "read response with status",
			desc:     "catchall: 0104 0001 01 01 0040 00 7ABF 00 00 0000 01 01 2100 00 20 C8",
			global:   true,
			cmd:      FoundationReadAttributesResponse,
			data:     []byte{0x21, 0x00, 0x00, 0x20, 0xC8},
			hasAttr:  true,
			attrID:   0x0021,
			attrType: TypeUint8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseDescription(tt.desc)
			if err != nil {
				t.Fatalf("ParseDescription: %v", err)
			}
			if f.IsGlobal != tt.global || f.CommandID != tt.cmd {
				t.Errorf("global=%v cmd=0x%02X, want %v 0x%02X", f.IsGlobal, f.CommandID, tt.global, tt.cmd)
			}
			if len(tt.data) > 0 && !bytes.Equal(f.Data, tt.data) {
				t.Errorf("data = %X, want %X", f.Data, tt.data)
			}
			if f.ManufacturerCode != tt.mfg {
				t.Errorf("mfg = 0x%04X, want 0x%04X", f.ManufacturerCode, tt.mfg)
			}
			if f.HasAttr != tt.hasAttr || f.AttrID != tt.attrID || f.DataType != tt.attrType {
				t.Errorf("attr = %v 0x%04X 0x%02X", f.HasAttr, f.AttrID, f.DataType)
			}
		})
	}
}

func TestParseDescriptionMalformed(t *testing.T) {
	tests := []struct {
		name string
		desc string
	}{
		{"empty", ""},
		{"unknown prefix", "zone status 0x0021 -- extended status 0x00"},
		{"missing cluster", "read attr - dni: 7ABF, endpoint: 01, attrId: 0008, result: success, encoding: 20, value: 32"},
		{"missing value", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, result: success, encoding: 20"},
		{"bad hex value", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, result: success, encoding: 20, value: ZZ"},
		{"value too wide", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, result: success, encoding: 20, value: 0102"},
		{"failed read", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, result: failure, encoding: 20, value: 00"},
		{"bad command", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, command: 0B, result: success, encoding: 20, value: 32"},
		{"command not hex", "read attr - dni: 7ABF, endpoint: 01, cluster: 0102, attrId: 0008, command: xx, result: success, encoding: 20, value: 32"},
		{"truncated raw", "read attr - raw: 7ABF01, dni: 7ABF, endpoint: 01, cluster: 0102, size: 0A, attrId: 0008, result: success, encoding: 20, value: 32"},
		{"short catchall", "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000"},
		{"bad catchall field", "catchall: 0104 XX02 01 01 0040 00 7ABF 00 00 0000 0B 01 0500"},
		{"truncated report", "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000 0A 01 080021"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseDescription(tt.desc)
			if err == nil {
				t.Fatalf("expected error, got frame %v", f)
			}
			if f != nil {
				t.Errorf("partial frame returned with error")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v does not match ErrParse", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error %T is not *ParseError", err)
			}
		})
	}
}
