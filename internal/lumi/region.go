package lumi

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"
)

// Grid dimensions and region id range.
const (
	GridRows    = 7
	GridCols    = 4
	MinRegionID = 1
	MaxRegionID = 10
)

// Region payload opcodes.
const (
	regionMagic     byte = 0x07
	regionOpSet     byte = 0x01
	regionOpClear   byte = 0x03
	regionTrailer   byte = 0xFF
	regionFrameSize      = 8
)

// Rect is an inclusive rectangle of grid cells. Rows are 1..7 from the
// sensor outwards, columns 1..4 from the left. Left and Right both 0 is the
// empty rectangle; its rows must still be in range.
type Rect struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Empty reports whether r selects no cells.
func (r Rect) Empty() bool { return r.Left+r.Right <= 0 }

// Validate checks column and row bounds. Rows are checked even when the
// columns select nothing.
func (r Rect) Validate() error {
	if r.Left < 0 || r.Left > GridCols {
		return invalid("left", r.Left, fmt.Sprintf("must be 0..%d", GridCols))
	}
	if r.Right < 0 || r.Right > GridCols {
		return invalid("right", r.Right, fmt.Sprintf("must be 0..%d", GridCols))
	}
	if r.Right < r.Left {
		return invalid("right", r.Right, fmt.Sprintf("must be >= left %d", r.Left))
	}
	if r.Top < 1 || r.Top > GridRows {
		return invalid("top", r.Top, fmt.Sprintf("must be 1..%d", GridRows))
	}
	if r.Bottom < 1 || r.Bottom > GridRows {
		return invalid("bottom", r.Bottom, fmt.Sprintf("must be 1..%d", GridRows))
	}
	if r.Bottom < r.Top {
		return invalid("bottom", r.Bottom, fmt.Sprintf("must be >= top %d", r.Top))
	}
	return nil
}

// Grid holds one 4-bit column mask per row; bit 0 is the leftmost column.
type Grid [GridRows]uint8

// EncodeRect converts a rectangle into row masks.
func EncodeRect(r Rect) (Grid, error) {
	var g Grid
	if err := r.Validate(); err != nil {
		return g, err
	}
	if r.Empty() {
		return g, nil
	}
	left := r.Left
	if left == 0 {
		left = 1
	}
	mask := uint8((1 << r.Right) - (1 << (left - 1)))
	for i := r.Top - 1; i <= r.Bottom-1; i++ {
		g[i] = mask
	}
	return g, nil
}

// Empty reports whether no cell is set.
func (g Grid) Empty() bool {
	return g == Grid{}
}

// Bounds reconstructs the rectangle a grid was encoded from. ok is false
// when the set cells do not form a rectangle.
func (g Grid) Bounds() (r Rect, ok bool) {
	if g.Empty() {
		return Rect{}, true
	}
	top, bottom := -1, -1
	var mask uint8
	for i, row := range g {
		if row == 0 {
			continue
		}
		if top < 0 {
			top, mask = i, row
		}
		bottom = i
	}
	for i := top; i <= bottom; i++ {
		if g[i] != mask {
			return Rect{}, false
		}
	}
	if mask&0xF0 != 0 {
		return Rect{}, false
	}
	left := bits.TrailingZeros8(mask) + 1
	right := 8 - bits.LeadingZeros8(mask)
	if bits.OnesCount8(mask) != right-left+1 {
		return Rect{}, false
	}
	return Rect{Top: top + 1, Bottom: bottom + 1, Left: left, Right: right}, true
}

func (g Grid) String() string {
	var b strings.Builder
	for i, row := range g {
		if i > 0 {
			b.WriteByte('/')
		}
		for c := 0; c < GridCols; c++ {
			if row&(1<<c) != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

// Region is a numbered detection region.
type Region struct {
	ID   int  `json:"id"`
	Grid Grid `json:"grid"`
}

func validateID(id int) error {
	if id < MinRegionID || id > MaxRegionID {
		return invalid("region id", id, fmt.Sprintf("must be %d..%d", MinRegionID, MaxRegionID))
	}
	return nil
}

// RegionBytes builds the set-region payload written to AttrSetRegion:
// 07 01 <id> <r2r1> <r4r3> <r6r5> <0r7> FF for NibbleSwapped profiles.
func RegionBytes(id int, r Rect, p *Profile) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	g, err := EncodeRect(r)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = ProfileFP1
	}
	out := []byte{regionMagic, regionOpSet, byte(id), 0, 0, 0, g[6], regionTrailer}
	for i := 0; i < 3; i++ {
		lo, hi := g[2*i], g[2*i+1]
		if p.Regions == NibbleNatural {
			lo, hi = hi, lo
		}
		out[3+i] = hi<<4 | lo
	}
	return out, nil
}

// RegionPayload is RegionBytes as upper-case hex.
func RegionPayload(id int, r Rect, p *Profile) (string, error) {
	b, err := RegionBytes(id, r, p)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// ClearRegionBytes builds the payload that deletes a region:
// 07 03 <id> 00 00 00 00 00.
func ClearRegionBytes(id int) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return []byte{regionMagic, regionOpClear, byte(id), 0, 0, 0, 0, 0}, nil
}

// ClearRegionPayload is ClearRegionBytes as upper-case hex.
func ClearRegionPayload(id int) (string, error) {
	b, err := ClearRegionBytes(id)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// DecodeRegionBytes parses a set or clear payload. cleared is true for clear
// payloads; their grid is empty.
func DecodeRegionBytes(b []byte, p *Profile) (reg Region, cleared bool, err error) {
	in := fmt.Sprintf("%X", b)
	if len(b) != regionFrameSize {
		return Region{}, false, tagParseErr(in, fmt.Sprintf("region payload is %d bytes, want %d", len(b), regionFrameSize))
	}
	if b[0] != regionMagic {
		return Region{}, false, tagParseErr(in, fmt.Sprintf("region payload starts with 0x%02X", b[0]))
	}
	id := int(b[2])
	if validateID(id) != nil {
		return Region{}, false, tagParseErr(in, fmt.Sprintf("region id %d out of range", id))
	}
	switch b[1] {
	case regionOpClear:
		return Region{ID: id}, true, nil
	case regionOpSet:
	default:
		return Region{}, false, tagParseErr(in, fmt.Sprintf("unknown region opcode 0x%02X", b[1]))
	}
	if p == nil {
		p = ProfileFP1
	}
	var g Grid
	for i := 0; i < 3; i++ {
		lo, hi := b[3+i]&0x0F, b[3+i]>>4
		if p.Regions == NibbleNatural {
			lo, hi = hi, lo
		}
		g[2*i], g[2*i+1] = lo, hi
	}
	g[6] = b[6] & 0x0F
	return Region{ID: id, Grid: g}, g.Empty(), nil
}

// DecodeRegionPayload parses the hex form of a region payload.
func DecodeRegionPayload(s string, p *Profile) (Region, bool, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return Region{}, false, tagParseErr(s, "region payload hex")
	}
	return DecodeRegionBytes(b, p)
}

// MaskValue encodes a rectangle as the 32-bit value used by the exit,
// interference and edge attributes: row i occupies bits 4i..4i+3.
func MaskValue(r Rect) (uint32, error) {
	g, err := EncodeRect(r)
	if err != nil {
		return 0, err
	}
	var v uint32
	for i, row := range g {
		v |= uint32(row) << (4 * i)
	}
	return v, nil
}

// MaskPayload is MaskValue as eight hex digits, 0<r7><r6>...<r1>.
func MaskPayload(r Rect) (string, error) {
	v, err := MaskValue(r)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08X", v), nil
}

// DecodeMask is the inverse of MaskValue.
func DecodeMask(v uint32) Grid {
	var g Grid
	for i := range g {
		g[i] = uint8(v>>(4*i)) & 0x0F
	}
	return g
}
