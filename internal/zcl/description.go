package zcl

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	prefixReadAttr = "read attr -"
	prefixCatchall = "catchall:"
)

// ParseDescription parses a hub description string. Two forms are accepted:
//
//	read attr - raw: <hex>, dni: <hex>, endpoint: <hex>, cluster: <hex>, size: <hex>, attrId: <hex>, result: success, encoding: <hex>, value: <hex|text>
//	catchall: <profile> <cluster> <srcEp> <dstEp> <options> <type> <dni> <clusterSpecific> <mfgSpecific> <mfgId> <command> <direction> [<data>...]
//
// A read attr description may carry command: 01 for a read response or
// command: 0A for a report; without it the frame is a report. Any malformed
// input yields a *ParseError and a nil frame.
func ParseDescription(desc string) (*Frame, error) {
	d := strings.TrimSpace(desc)
	switch {
	case strings.HasPrefix(d, prefixReadAttr):
		return parseReadAttr(desc, strings.TrimSpace(d[len(prefixReadAttr):]))
	case strings.HasPrefix(d, prefixCatchall):
		return parseCatchall(desc, strings.TrimSpace(d[len(prefixCatchall):]))
	}
	return nil, parseErr(desc, "unrecognized description", nil)
}

func parseReadAttr(desc, body string) (*Frame, error) {
	// value is last and may itself contain separators when it is text.
	var value string
	hasValue := false
	if i := strings.Index(body, "value:"); i >= 0 {
		value = strings.TrimSpace(body[i+len("value:"):])
		body = body[:i]
		hasValue = true
	}
	fields := make(map[string]string)
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return nil, parseErr(desc, fmt.Sprintf("field %q has no value", part), nil)
		}
		fields[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	if !hasValue {
		return nil, parseErr(desc, "missing field value", nil)
	}
	if r, ok := fields["result"]; ok && r != "success" {
		return nil, parseErr(desc, "read result "+r, nil)
	}

	f := &Frame{IsGlobal: true, CommandID: FoundationReportAttributes, HasAttr: true}
	cluster, err := hexField(fields, "cluster", 16, true)
	if err != nil {
		return nil, parseErr(desc, "cluster", err)
	}
	attr, err := hexField(fields, "attrid", 16, true)
	if err != nil {
		return nil, parseErr(desc, "attrId", err)
	}
	enc, err := hexField(fields, "encoding", 8, true)
	if err != nil {
		return nil, parseErr(desc, "encoding", err)
	}
	ep, err := hexField(fields, "endpoint", 8, false)
	if err != nil {
		return nil, parseErr(desc, "endpoint", err)
	}
	dni, err := hexField(fields, "dni", 16, false)
	if err != nil {
		return nil, parseErr(desc, "dni", err)
	}
	mfg, err := hexField(fields, "mfgcode", 16, false)
	if err != nil {
		return nil, parseErr(desc, "mfgCode", err)
	}
	if _, ok := fields["command"]; ok {
		cmd, err := hexField(fields, "command", 8, true)
		if err != nil {
			return nil, parseErr(desc, "command", err)
		}
		switch c := uint8(cmd); c {
		case FoundationReadAttributesResponse, FoundationReportAttributes:
			f.CommandID = c
		default:
			return nil, parseErr(desc, fmt.Sprintf("command 0x%02X is not an attribute response", c), nil)
		}
	}
	f.ClusterID = uint16(cluster)
	f.AttrID = uint16(attr)
	f.DataType = uint8(enc)
	f.Endpoint = uint8(ep)
	f.NetworkAddr = uint16(dni)
	f.ManufacturerCode = uint16(mfg)

	switch {
	case f.DataType == TypeCharStr || f.DataType == TypeCharStr16:
		f.Value = []byte(value)
	case value == "" && !IsDiscrete(f.DataType) && f.DataType != TypeNoData:
		return nil, parseErr(desc, "empty value", nil)
	default:
		v, err := decodeHex(value)
		if err != nil {
			return nil, parseErr(desc, "value", err)
		}
		if w := TypeWidth(f.DataType); w > 0 {
			if len(v) > w {
				return nil, parseErr(desc, fmt.Sprintf("value wider than %s", TypeName(f.DataType)), nil)
			}
			v = leftPad(v, w)
		}
		f.Value = v
	}

	if raw := fields["raw"]; raw != "" {
		extra, err := rawRecords(raw, f.AttrID)
		if err != nil {
			return nil, parseErr(desc, "raw", err)
		}
		f.Additional = extra
	}
	return f, nil
}

// rawRecords walks the raw field: dni(2) ep(1) cluster(2) size(1) records.
// The record matching the primary attribute is dropped.
func rawRecords(raw string, primary uint16) ([]Attribute, error) {
	b, err := decodeHex(raw)
	if err != nil {
		return nil, err
	}
	if len(b) < 6 {
		return nil, fmt.Errorf("raw header truncated: %d bytes", len(b))
	}
	recs, err := walkRecords(b[6:], false)
	if err != nil {
		return nil, err
	}
	var out []Attribute
	skipped := false
	for _, r := range recs {
		if !skipped && r.ID == primary {
			skipped = true
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func parseCatchall(desc, body string) (*Frame, error) {
	tok := strings.Fields(body)
	if len(tok) < 12 {
		return nil, parseErr(desc, fmt.Sprintf("catchall has %d fields, want at least 12", len(tok)), nil)
	}
	var (
		vals  [12]uint64
		bits  = [12]int{16, 16, 8, 8, 16, 8, 16, 8, 8, 16, 8, 8}
		names = [12]string{"profile", "cluster", "source endpoint", "destination endpoint", "options", "type", "dni", "cluster specific", "manufacturer specific", "manufacturer id", "command", "direction"}
	)
	for i := range vals {
		v, err := strconv.ParseUint(tok[i], 16, bits[i])
		if err != nil {
			return nil, parseErr(desc, names[i], err)
		}
		vals[i] = v
	}
	data, err := decodeHex(strings.Join(tok[12:], ""))
	if err != nil {
		return nil, parseErr(desc, "data", err)
	}

	f := &Frame{
		ClusterID:   uint16(vals[1]),
		Endpoint:    uint8(vals[2]),
		NetworkAddr: uint16(vals[6]),
		IsGlobal:    vals[7] == 0,
		CommandID:   uint8(vals[10]),
		Data:        data,
	}
	if vals[8] != 0 {
		f.ManufacturerCode = uint16(vals[9])
	}

	if f.IsGlobal && (f.CommandID == FoundationReportAttributes || f.CommandID == FoundationReadAttributesResponse) {
		recs, err := walkRecords(data, f.CommandID == FoundationReadAttributesResponse)
		if err != nil {
			return nil, parseErr(desc, "attribute records", err)
		}
		if len(recs) > 0 {
			f.HasAttr = true
			f.AttrID, f.DataType, f.Value = recs[0].ID, recs[0].DataType, recs[0].Value
			f.Additional = recs[1:]
		}
	}
	return f, nil
}

func hexField(fields map[string]string, key string, bits int, required bool) (uint64, error) {
	s, ok := fields[key]
	if !ok || s == "" {
		if required {
			return 0, fmt.Errorf("missing field")
		}
		return 0, nil
	}
	return strconv.ParseUint(s, 16, bits)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
