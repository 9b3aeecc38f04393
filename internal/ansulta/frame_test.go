package ansulta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	got := EncodeFrame(Address{A: 0x12, B: 0x34}, CommandDim50)
	assert.Equal(t, []byte{0x06, 0x55, 0x01, 0x12, 0x34, 0x02, 0xAA, 0xFF}, got)
	assert.Equal(t, byte(0x7F), BurstMarker)
}

func TestCommandBytes(t *testing.T) {
	assert.Equal(t, byte(0x01), CommandOff.Byte())
	assert.Equal(t, byte(0x02), CommandDim50.Byte())
	assert.Equal(t, byte(0x03), CommandDim100.Byte())
	assert.Equal(t, byte(0xFF), CommandPair.Byte())
	assert.Equal(t, "unknown(0xCC)", Command(0xCC).String())
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		want    Address
		wantCmd Command
		wantOK  bool
	}{
		{
			name:    "clean",
			frame:   []byte{0x55, 0x01, 0x2A, 0x7F, 0x02, 0xAA, 0xFF},
			want:    Address{A: 0x2A, B: 0x7F},
			wantCmd: CommandDim50,
			wantOK:  true,
		},
		{
			name:    "leading_noise",
			frame:   []byte{0x13, 0x55, 0x01, 0x2A, 0x7F, 0xCC, 0xAA, 0xFF},
			want:    Address{A: 0x2A, B: 0x7F},
			wantCmd: Command(0xCC),
			wantOK:  true,
		},
		{
			name:    "false_sync_before_real_one",
			frame:   []byte{0x55, 0x55, 0x01, 0x10, 0x20, 0x01, 0xAA, 0xFF},
			want:    Address{A: 0x10, B: 0x20},
			wantCmd: CommandOff,
			wantOK:  true,
		},
		{
			name:   "no_sync",
			frame:  []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			wantOK: false,
		},
		{
			name:   "sync_too_close_to_end",
			frame:  []byte{0x00, 0x00, 0x00, 0x55, 0x01, 0x2A, 0x7F, 0x02},
			wantOK: false,
		},
		{
			name:   "bad_trailer",
			frame:  []byte{0x55, 0x01, 0x2A, 0x7F, 0x02, 0xAB, 0xFF},
			wantOK: false,
		},
		{
			name:   "bad_header",
			frame:  []byte{0x55, 0x02, 0x2A, 0x7F, 0x02, 0xAA, 0xFF},
			wantOK: false,
		},
		{
			name:   "empty",
			frame:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, cmd, ok := ParseFrame(tt.frame)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, addr)
				assert.Equal(t, tt.wantCmd, cmd)
			}
		})
	}
}

func TestParseFrameStaysInBounds(t *testing.T) {
	// A full-length frame ending in a sync byte must not be read past.
	frame := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x55}
	assert.NotPanics(t, func() {
		_, _, ok := ParseFrame(frame[:len(frame):len(frame)])
		assert.False(t, ok)
	})
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("2A7F")
	require.NoError(t, err)
	assert.Equal(t, Address{A: 0x2A, B: 0x7F}, addr)
	assert.Equal(t, "2A7F", addr.String())

	addr, err = ParseAddress(" 0x0a0b ")
	require.NoError(t, err)
	assert.Equal(t, Address{A: 0x0A, B: 0x0B}, addr)

	_, err = ParseAddress("2A7")
	assert.Error(t, err)
	_, err = ParseAddress("zz00")
	assert.Error(t, err)
}

func TestLightStateNames(t *testing.T) {
	for _, s := range []LightState{StateOff, StateDim50, StateDim100} {
		parsed, ok := ParseLightState(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)

		fromCmd, ok := StateForCommand(s.Command())
		require.True(t, ok)
		assert.Equal(t, s, fromCmd)
	}
	_, ok := StateForCommand(CommandPair)
	assert.False(t, ok)
	assert.False(t, StateOff.IsOn())
	assert.True(t, StateDim50.IsOn())
}
