package ansulta

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/cc2500"
)

// LearnState is the position of the address-learning state machine.
type LearnState int

const (
	LearnIdle LearnState = iota
	LearnListening
	LearnFound
	LearnExhausted
)

func (s LearnState) String() string {
	switch s {
	case LearnIdle:
		return "idle"
	case LearnListening:
		return "listening"
	case LearnFound:
		return "found"
	case LearnExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("LearnState(%d)", int(s))
	}
}

// packetOutput routes "packet received" to GDO1 while listening.
const packetOutput byte = 0x01

// reception is one frame seen on air.
type reception struct {
	addr Address
	cmd  Command
}

// learn runs up to MaxLearnAttempts receive attempts and commits the first
// non-sentinel address found. It reports whether an address was committed.
func (d *Driver) learn() (bool, error) {
	if d.learnState != LearnListening {
		log.Info().Int("attempts", d.opts.MaxLearnAttempts).Msg("Listening for remote to learn fixture address")
	}
	d.learnState = LearnListening

	for attempt := 0; attempt < d.opts.MaxLearnAttempts; attempt++ {
		rx, ok, err := d.listenOnce()
		if err != nil {
			return false, fmt.Errorf("learn attempt %d: %w", attempt+1, err)
		}
		if !ok {
			continue
		}
		if rx.addr.IsZero() {
			log.Debug().Msg("Ignoring remote frame carrying the zero address")
			continue
		}

		d.addr = rx.addr
		d.learnState = LearnFound
		log.Info().
			Str("address", rx.addr.String()).
			Int("attempt", attempt+1).
			Msg("Fixture address learned")
		d.publish(EventAddressLearned(rx.addr))
		return true, nil
	}

	d.learnState = LearnExhausted
	log.Debug().Int("attempts", d.opts.MaxLearnAttempts).Msg("No remote frame seen")
	d.publish(EventLearnExhausted(d.opts.MaxLearnAttempts))
	return false, nil
}

// listenOnce puts the transceiver into RX for one listen window and parses
// whatever frame arrived. The RX FIFO is flushed whenever a frame was
// reported, matched or not.
func (d *Driver) listenOnce() (reception, bool, error) {
	settle := d.dev.Timing().StrobeSettle

	if err := d.dev.Strobe(cc2500.SRX, settle); err != nil {
		return reception{}, false, err
	}
	if err := d.dev.WriteRegister(cc2500.IOCFG1, packetOutput); err != nil {
		return reception{}, false, err
	}
	d.dev.Sleep(d.opts.ListenWindow)

	n, err := d.dev.ReadRegister(cc2500.FIFO)
	if err != nil {
		return reception{}, false, err
	}
	if n <= 1 {
		return reception{}, false, nil
	}

	var frame []byte
	if int(n) <= MaxFrameLen {
		frame = make([]byte, n)
		for i := range frame {
			if frame[i], err = d.dev.ReadRegister(cc2500.FIFO); err != nil {
				return reception{}, false, err
			}
		}
		log.Debug().Hex("frame", frame).Msg("Frame received")
	} else {
		log.Debug().Int("length", int(n)).Msg("Oversized frame discarded")
	}

	addr, cmd, ok := ParseFrame(frame)

	if err := d.dev.Strobe(cc2500.SIDLE, settle); err != nil {
		return reception{}, false, err
	}
	if err := d.dev.Strobe(cc2500.SFRX, settle); err != nil {
		return reception{}, false, err
	}
	return reception{addr: addr, cmd: cmd}, ok, nil
}

// monitor listens once for the paired remote and follows the state it
// commands. Frames for other fixtures are ignored.
func (d *Driver) monitor() error {
	rx, ok, err := d.listenOnce()
	if err != nil {
		return fmt.Errorf("monitor remote: %w", err)
	}
	if !ok || rx.addr != d.addr {
		return nil
	}
	state, known := StateForCommand(rx.cmd)
	if !known || state == d.state {
		return nil
	}

	d.state = state
	log.Info().Str("state", state.String()).Msg("Remote changed light state")
	d.publish(EventLightState(state, false, ""))
	return nil
}
