package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{ReadAttr(0x01, 0x0102, 0x0008), "rattr 01 0102 0008"},
		{WriteAttr(0x01, 0xFCC0, 0x010C, 0x20, []byte{0x03}).Mfg(0x115F), "wattr 01 FCC0 010C 20 03 mfg=115F"},
		{ClusterCommand(0x01, 0x0102, 0x05, []byte{0x32}), "cmd 01 0102 05 32"},
		{ClusterCommand(0x01, 0x0102, 0x02, nil), "cmd 01 0102 02 -"},
		{ConfigureReporting(0x01, 0x0102, 0x0008, 0x20, 0, 600, []byte{0x01}), "cfgrpt 01 0102 0008 20 0 600 01"},
		{Wait(2 * time.Second), "delay 2s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())

			back, err := Parse(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"bind 01 0006",
		"rattr 01 0102",
		"rattr 01 0102 0008 extra",
		"wattr 01 FCC0 010C 20 ZZ",
		"cmd 01 0102 05 32 mfg=XYZ",
		"delay soon",
	} {
		_, err := Parse(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestExpectsReply(t *testing.T) {
	assert.True(t, ReadAttr(1, 0, 1).ExpectsReply())
	assert.False(t, Wait(time.Second).ExpectsReply())
	assert.False(t, AnyExpectsReply([]Instruction{Wait(time.Second)}))
	assert.True(t, AnyExpectsReply([]Instruction{Wait(time.Second), ClusterCommand(1, 0x0102, 0, nil)}))
	assert.False(t, AnyExpectsReply(nil))
}
