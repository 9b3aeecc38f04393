// Package ansulta drives IKEA Ansluta lights through a CC2500 transceiver.
//
// The fixture has no pairing handshake and never acknowledges. Its two-byte
// address is learned by sniffing a paired remote; commands are then sent as
// fixed nine-byte bursts, repeated many times because any single frame may be
// lost.
package ansulta

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dokzlo13/ansultad/internal/cc2500"
)

// Wire constants shared with the remote and fixture firmware.
const (
	SyncByte       byte = 0x55
	HeaderByte     byte = 0x01
	TrailerByte    byte = 0xAA
	TerminatorByte byte = 0xFF
	// FrameLength is the length byte loaded ahead of the frame.
	FrameLength byte = 0x06
	// BurstMarker is the TX FIFO burst-write header.
	BurstMarker = cc2500.FIFO | cc2500.BurstFlag

	// MaxFrameLen is the longest frame a remote sends. Longer reports are noise.
	MaxFrameLen = 8
)

// Address is the two-byte fixture address. The zero value is the sentinel
// for "not learned".
type Address struct {
	A byte
	B byte
}

// IsZero reports whether a is the unlearned sentinel.
func (a Address) IsZero() bool {
	return a.A == 0 && a.B == 0
}

// String formats the address as four hex digits, e.g. "2A7F".
func (a Address) String() string {
	return fmt.Sprintf("%02X%02X", a.A, a.B)
}

// ParseAddress parses the four hex digit form produced by String.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 2 {
		return Address{}, fmt.Errorf("invalid fixture address %q: want 4 hex digits", s)
	}
	return Address{A: b[0], B: b[1]}, nil
}

// Command is a command byte understood by the fixture.
type Command byte

const (
	CommandOff    Command = 0x01
	CommandDim50  Command = 0x02
	CommandDim100 Command = 0x03
	CommandPair   Command = 0xFF
)

// Byte returns the wire value.
func (c Command) Byte() byte {
	return byte(c)
}

// String returns a human-readable name for the command.
func (c Command) String() string {
	switch c {
	case CommandOff:
		return "off"
	case CommandDim50:
		return "dim_50"
	case CommandDim100:
		return "dim_100"
	case CommandPair:
		return "pair"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(c))
	}
}

// LightState is the driver's belief about the fixture. There is no feedback
// channel, so it only mirrors the last command seen or sent.
type LightState int

const (
	StateOff LightState = iota
	StateDim50
	StateDim100
)

// Command returns the command that puts the fixture into s.
func (s LightState) Command() Command {
	switch s {
	case StateDim50:
		return CommandDim50
	case StateDim100:
		return CommandDim100
	default:
		return CommandOff
	}
}

// IsOn reports whether s is one of the lit states.
func (s LightState) IsOn() bool {
	return s == StateDim50 || s == StateDim100
}

// String returns the state name. It matches the command name.
func (s LightState) String() string {
	return s.Command().String()
}

// StateForCommand maps a command byte to the state it produces.
// PAIR and unknown bytes have no state.
func StateForCommand(c Command) (LightState, bool) {
	switch c {
	case CommandOff:
		return StateOff, true
	case CommandDim50:
		return StateDim50, true
	case CommandDim100:
		return StateDim100, true
	default:
		return StateOff, false
	}
}

// ParseLightState parses the name returned by LightState.String.
func ParseLightState(name string) (LightState, bool) {
	switch name {
	case "off":
		return StateOff, true
	case "dim_50":
		return StateDim50, true
	case "dim_100":
		return StateDim100, true
	default:
		return StateOff, false
	}
}

// EncodeFrame returns the TX FIFO payload for a command, i.e. everything
// after the burst marker:
//
//	[len][0x55][0x01][A][B][cmd][0xAA][0xFF]
func EncodeFrame(addr Address, cmd Command) []byte {
	return []byte{
		FrameLength,
		SyncByte,
		HeaderByte,
		addr.A,
		addr.B,
		cmd.Byte(),
		TrailerByte,
		TerminatorByte,
	}
}

// ParseFrame searches a received frame for a remote packet. Every sync byte
// is tried as a start candidate; a candidate matches when the header byte
// follows it and the trailer sits five bytes later. The scan never reads
// past len(frame).
func ParseFrame(frame []byte) (addr Address, cmd Command, ok bool) {
	for k := 0; k+5 < len(frame); k++ {
		if frame[k] != SyncByte {
			continue
		}
		if frame[k+1] == HeaderByte && frame[k+5] == TrailerByte {
			return Address{A: frame[k+2], B: frame[k+3]}, Command(frame[k+4]), true
		}
	}
	return Address{}, 0, false
}
