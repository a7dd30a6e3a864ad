package zcl

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeApplicationFrameReport(t *testing.T) {
	// fc=0x18 (global, server to client), seq, 0x0A, attr 0x0008 uint8 0x32
	f, err := DecodeApplicationFrame(0x0102, 0x01, []byte{0x18, 0x01, 0x0A, 0x08, 0x00, 0x20, 0x32})
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsGlobal || f.CommandID != FoundationReportAttributes {
		t.Errorf("global=%v cmd=0x%02X", f.IsGlobal, f.CommandID)
	}
	if !f.HasAttr || f.AttrID != 0x0008 || f.Attr().Uint() != 0x32 {
		t.Errorf("attr = %+v", f.Attr())
	}
}

func TestDecodeApplicationFrameDefaultResponse(t *testing.T) {
	f, err := DecodeApplicationFrame(0x0102, 0x01, []byte{0x18, 0x02, 0x0B, 0x05, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Data, []byte{0x05, 0x01}) {
		t.Errorf("data = %X", f.Data)
	}
	res := NewGlobalInterpreter(newTestLogger()).Interpret(f)
	if res.OK() {
		t.Error("expected protocol status error")
	}
}

func TestDecodeApplicationFrameLocal(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		cmd  uint8
		mfg  uint16
		body []byte
	}{
		{"plain", []byte{0x01, 0x10, 0x05, 0x32}, 0x05, 0, []byte{0x32}},
		{"manufacturer", []byte{0x05, 0x5F, 0x11, 0x10, 0x02}, 0x02, 0x115F, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeApplicationFrame(0x0102, 0x01, tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if f.IsGlobal || f.CommandID != tt.cmd || f.ManufacturerCode != tt.mfg {
				t.Errorf("frame = %+v", f)
			}
			if !bytes.Equal(f.Data, tt.body) {
				t.Errorf("data = %X, want %X", f.Data, tt.body)
			}
		})
	}
}

func TestDecodeApplicationFrameTruncated(t *testing.T) {
	for _, data := range [][]byte{{}, {0x18, 0x01}, {0x05, 0x5F, 0x11}} {
		if _, err := DecodeApplicationFrame(0x0102, 0x01, data); !errors.Is(err, ErrParse) {
			t.Errorf("data %X: err = %v, want ErrParse", data, err)
		}
	}
}
