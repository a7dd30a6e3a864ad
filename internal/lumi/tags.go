package lumi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"zigbee-lumi/internal/zcl"
)

// Tag is one record of a tag report.
type Tag struct {
	ID     uint8
	Type   uint8
	Uint   uint64
	Text   string
	IsText bool
}

// Tags holds a decoded report keyed by tag id. A repeated tag keeps its last
// value.
type Tags map[uint8]Tag

// DecodeTags walks tag(1) type(1) value records. Discrete types carry a
// length byte and UTF-8 text; fixed types are little-endian with the width
// given by the profile. Fewer than three trailing bytes end the stream.
func DecodeTags(data []byte, p *Profile) (Tags, error) {
	if p == nil {
		p = ProfileFP1
	}
	tags := make(Tags)
	pos := 0
	for len(data)-pos >= 3 {
		tag, typ := data[pos], data[pos+1]
		pos += 2

		if typ == zcl.TypeOctetStr || typ == zcl.TypeCharStr {
			n := int(data[pos])
			pos++
			if pos+n > len(data) {
				return nil, tagErr(data, fmt.Sprintf("tag 0x%02X: text needs %d bytes, have %d", tag, n, len(data)-pos))
			}
			tags[tag] = Tag{ID: tag, Type: typ, Text: string(data[pos : pos+n]), IsText: true}
			pos += n
			continue
		}

		w := p.width(typ)
		if w <= 0 {
			return nil, tagErr(data, fmt.Sprintf("tag 0x%02X: unknown width for type 0x%02X", tag, typ))
		}
		if pos+w > len(data) {
			return nil, tagErr(data, fmt.Sprintf("tag 0x%02X: %s needs %d bytes, have %d", tag, zcl.TypeName(typ), w, len(data)-pos))
		}
		tags[tag] = Tag{ID: tag, Type: typ, Uint: zcl.LittleEndianUint(data[pos : pos+w])}
		pos += w
	}
	return tags, nil
}

// DecodeTagsHex decodes a hex string, spaces allowed.
func DecodeTagsHex(s string, p *Profile) (Tags, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, &zcl.ParseError{Input: s, Reason: "tag report hex", Err: err}
	}
	return DecodeTags(b, p)
}

func tagErr(data []byte, reason string) error {
	return &zcl.ParseError{Input: fmt.Sprintf("%X", data), Reason: reason}
}
