// Package command describes outbound device instructions. Drivers build
// them; the gateway transport executes them in order.
package command

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the instruction type.
type Kind int

const (
	KindReadAttr Kind = iota
	KindWriteAttr
	KindConfigureReporting
	KindClusterCommand
	KindDelay
)

var kindWords = map[Kind]string{
	KindReadAttr:           "rattr",
	KindWriteAttr:          "wattr",
	KindConfigureReporting: "cfgrpt",
	KindClusterCommand:     "cmd",
	KindDelay:              "delay",
}

func (k Kind) String() string {
	if w, ok := kindWords[k]; ok {
		return w
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Instruction is one step of an outbound command sequence.
type Instruction struct {
	Kind             Kind          `json:"kind"`
	Endpoint         uint8         `json:"endpoint,omitempty"`
	ClusterID        uint16        `json:"cluster,omitempty"`
	AttrID           uint16        `json:"attr,omitempty"`
	DataType         uint8         `json:"type,omitempty"`
	CommandID        uint8         `json:"command,omitempty"`
	ManufacturerCode uint16        `json:"mfg,omitempty"`
	Payload          []byte        `json:"payload,omitempty"` // wire bytes: attribute value or command payload
	MinInterval      uint16        `json:"min,omitempty"`
	MaxInterval      uint16        `json:"max,omitempty"`
	Delay            time.Duration `json:"delay,omitempty"`
}

// ReadAttr reads one attribute.
func ReadAttr(ep uint8, cluster, attr uint16) Instruction {
	return Instruction{Kind: KindReadAttr, Endpoint: ep, ClusterID: cluster, AttrID: attr}
}

// WriteAttr writes one attribute; value is in wire format.
func WriteAttr(ep uint8, cluster, attr uint16, dataType uint8, value []byte) Instruction {
	return Instruction{Kind: KindWriteAttr, Endpoint: ep, ClusterID: cluster, AttrID: attr, DataType: dataType, Payload: value}
}

// ConfigureReporting sets the report interval of an attribute. change is the
// reportable change in wire format, empty for discrete types.
func ConfigureReporting(ep uint8, cluster, attr uint16, dataType uint8, min, max uint16, change []byte) Instruction {
	return Instruction{
		Kind: KindConfigureReporting, Endpoint: ep, ClusterID: cluster, AttrID: attr,
		DataType: dataType, MinInterval: min, MaxInterval: max, Payload: change,
	}
}

// ClusterCommand sends a cluster-specific command.
func ClusterCommand(ep uint8, cluster uint16, cmd uint8, payload []byte) Instruction {
	return Instruction{Kind: KindClusterCommand, Endpoint: ep, ClusterID: cluster, CommandID: cmd, Payload: payload}
}

// Wait pauses the sequence.
func Wait(d time.Duration) Instruction {
	return Instruction{Kind: KindDelay, Delay: d}
}

// Mfg returns a copy sent with a manufacturer code.
func (in Instruction) Mfg(code uint16) Instruction {
	in.ManufacturerCode = code
	return in
}

// ExpectsReply reports whether the device answers this instruction.
func (in Instruction) ExpectsReply() bool {
	return in.Kind != KindDelay
}

// AnyExpectsReply reports whether a sequence owes the hub a reply.
func AnyExpectsReply(seq []Instruction) bool {
	for _, in := range seq {
		if in.ExpectsReply() {
			return true
		}
	}
	return false
}

// String renders the single-line gateway form, e.g.
//
//	rattr 01 0102 0008
//	wattr 01 FCC0 010C 20 03 mfg=115F
//	cmd 01 0102 05 32
//	cfgrpt 01 0102 0008 20 0 600 01
//	delay 2s
func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Kind.String())
	switch in.Kind {
	case KindDelay:
		fmt.Fprintf(&b, " %s", in.Delay)
		return b.String()
	case KindReadAttr:
		fmt.Fprintf(&b, " %02X %04X %04X", in.Endpoint, in.ClusterID, in.AttrID)
	case KindWriteAttr:
		fmt.Fprintf(&b, " %02X %04X %04X %02X %s", in.Endpoint, in.ClusterID, in.AttrID, in.DataType, hexOrDash(in.Payload))
	case KindConfigureReporting:
		fmt.Fprintf(&b, " %02X %04X %04X %02X %d %d %s", in.Endpoint, in.ClusterID, in.AttrID, in.DataType, in.MinInterval, in.MaxInterval, hexOrDash(in.Payload))
	case KindClusterCommand:
		fmt.Fprintf(&b, " %02X %04X %02X %s", in.Endpoint, in.ClusterID, in.CommandID, hexOrDash(in.Payload))
	}
	if in.ManufacturerCode != 0 {
		fmt.Fprintf(&b, " mfg=%04X", in.ManufacturerCode)
	}
	return b.String()
}

func hexOrDash(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// Parse reads the String form back.
func Parse(line string) (Instruction, error) {
	tok := strings.Fields(line)
	if len(tok) == 0 {
		return Instruction{}, fmt.Errorf("command: empty instruction")
	}
	var in Instruction
	if last := tok[len(tok)-1]; strings.HasPrefix(last, "mfg=") {
		v, err := strconv.ParseUint(strings.TrimPrefix(last, "mfg="), 16, 16)
		if err != nil {
			return Instruction{}, fmt.Errorf("command: manufacturer code: %w", err)
		}
		in.ManufacturerCode = uint16(v)
		tok = tok[:len(tok)-1]
	}

	p := parser{tok: tok[1:]}
	switch tok[0] {
	case "delay":
		in.Kind = KindDelay
		if len(p.tok) != 1 {
			return Instruction{}, fmt.Errorf("command: delay wants 1 argument, got %d", len(p.tok))
		}
		d, err := time.ParseDuration(p.tok[0])
		if err != nil {
			return Instruction{}, fmt.Errorf("command: delay: %w", err)
		}
		in.Delay = d
		return in, nil
	case "rattr":
		in.Kind = KindReadAttr
		in.Endpoint, in.ClusterID, in.AttrID = p.u8(), p.u16(), p.u16()
	case "wattr":
		in.Kind = KindWriteAttr
		in.Endpoint, in.ClusterID, in.AttrID, in.DataType, in.Payload = p.u8(), p.u16(), p.u16(), p.u8(), p.bytes()
	case "cfgrpt":
		in.Kind = KindConfigureReporting
		in.Endpoint, in.ClusterID, in.AttrID, in.DataType = p.u8(), p.u16(), p.u16(), p.u8()
		in.MinInterval, in.MaxInterval, in.Payload = p.dec16(), p.dec16(), p.bytes()
	case "cmd":
		in.Kind = KindClusterCommand
		in.Endpoint, in.ClusterID, in.CommandID, in.Payload = p.u8(), p.u16(), p.u8(), p.bytes()
	default:
		return Instruction{}, fmt.Errorf("command: unknown instruction %q", tok[0])
	}
	if p.err != nil {
		return Instruction{}, fmt.Errorf("command: %s: %w", tok[0], p.err)
	}
	if len(p.tok) > 0 {
		return Instruction{}, fmt.Errorf("command: %s: %d unexpected arguments", tok[0], len(p.tok))
	}
	return in, nil
}

type parser struct {
	tok []string
	err error
}

func (p *parser) next() (string, bool) {
	if p.err != nil {
		return "", false
	}
	if len(p.tok) == 0 {
		p.err = fmt.Errorf("missing argument")
		return "", false
	}
	s := p.tok[0]
	p.tok = p.tok[1:]
	return s, true
}

func (p *parser) uint(base, bits int) uint64 {
	s, ok := p.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(s, base, bits)
	if err != nil {
		p.err = err
	}
	return v
}

func (p *parser) u8() uint8     { return uint8(p.uint(16, 8)) }
func (p *parser) u16() uint16   { return uint16(p.uint(16, 16)) }
func (p *parser) dec16() uint16 { return uint16(p.uint(10, 16)) }

func (p *parser) bytes() []byte {
	s, ok := p.next()
	if !ok || s == "-" {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		p.err = err
	}
	return b
}
