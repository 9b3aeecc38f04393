package ansulta

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/cc2500"
	"github.com/dokzlo13/ansultad/internal/eventbus"
)

// ErrNoAddress is returned by commands issued before an address is known.
var ErrNoAddress = errors.New("ansulta: fixture address not learned")

// Options tunes the driver. Non-positive counts and a zero ListenWindow take
// their DefaultOptions value. A zero RepeatBudget disables replays.
type Options struct {
	// MaxLearnAttempts bounds receive attempts per learning round.
	MaxLearnAttempts int
	// CommandRepetitions is the burst size for light commands.
	CommandRepetitions int
	// PairRepetitions is the burst size for PAIR.
	PairRepetitions int
	// RepeatBudget is how many poll ticks replay the last state.
	RepeatBudget int

	ListenWindow   time.Duration // RX time per learn attempt
	TxStrobeSettle time.Duration // after each strobe of a send cycle
	ByteGap        time.Duration // between TX FIFO bytes
	TxSettle       time.Duration // after STX, before the next repetition

	// MonitorRemote follows the paired remote once the address is known.
	MonitorRemote bool
}

// DefaultOptions returns the values the fixture is known to work with.
func DefaultOptions() Options {
	return Options{
		MaxLearnAttempts:   10,
		CommandRepetitions: 50,
		PairRepetitions:    10,
		RepeatBudget:       1,
		ListenWindow:       10 * time.Millisecond,
		TxStrobeSettle:     2 * time.Millisecond,
		ByteGap:            time.Microsecond,
		TxSettle:           255 * time.Microsecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxLearnAttempts <= 0 {
		o.MaxLearnAttempts = def.MaxLearnAttempts
	}
	if o.CommandRepetitions <= 0 {
		o.CommandRepetitions = def.CommandRepetitions
	}
	if o.PairRepetitions <= 0 {
		o.PairRepetitions = def.PairRepetitions
	}
	if o.RepeatBudget < 0 {
		o.RepeatBudget = 0
	}
	if o.ListenWindow <= 0 {
		o.ListenWindow = def.ListenWindow
	}
	if o.TxStrobeSettle < 0 {
		o.TxStrobeSettle = 0
	}
	if o.ByteGap < 0 {
		o.ByteGap = 0
	}
	if o.TxSettle < 0 {
		o.TxSettle = 0
	}
	return o
}

// Status is a snapshot of the driver.
type Status struct {
	Address      Address
	Learned      bool
	State        LightState
	RepeatBudget int
	LearnState   LearnState
}

// Driver controls one Ansluta fixture. It is not safe for concurrent use:
// a single goroutine must own it and call Poll regularly.
type Driver struct {
	dev  *cc2500.Device
	opts Options
	pub  Publisher

	addr       Address
	state      LightState
	learnState LearnState
	repeat     repeater
}

// New creates a driver on an opened device. pub may be nil.
func New(dev *cc2500.Device, opts Options, pub Publisher) *Driver {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Driver{
		dev:   dev,
		opts:  opts.withDefaults(),
		pub:   pub,
		state: StateOff,
	}
}

// Initialize resets the transceiver and loads the Ansluta configuration.
// Calling it again puts the chip back into the same state.
func (d *Driver) Initialize() error {
	if err := d.dev.Reset(); err != nil {
		return fmt.Errorf("reset transceiver: %w", err)
	}
	if err := d.dev.Configure(cc2500.AnslutaConfig); err != nil {
		return fmt.Errorf("configure transceiver: %w", err)
	}
	if err := d.dev.WriteRegister(cc2500.PATABLE, cc2500.MaxPower); err != nil {
		return fmt.Errorf("set output power: %w", err)
	}
	log.Info().Msg("Transceiver initialized")
	return nil
}

// HasLearnedAddress reports whether a fixture address is known.
func (d *Driver) HasLearnedAddress() bool {
	return !d.addr.IsZero()
}

// SetAddress overrides the fixture address. The sentinel (0,0) is rejected
// and leaves the current address untouched.
func (d *Driver) SetAddress(a, b byte) bool {
	addr := Address{A: a, B: b}
	if addr.IsZero() {
		return false
	}
	d.addr = addr
	d.learnState = LearnFound
	return true
}

// Address returns the fixture address, the zero value when unknown.
func (d *Driver) Address() Address {
	return d.addr
}

// LightState returns the last commanded or observed state.
func (d *Driver) LightState() LightState {
	return d.state
}

// RestoreState sets the believed state without transmitting, e.g. from
// persisted state at startup.
func (d *Driver) RestoreState(state LightState) {
	d.state = state
}

// RepeatBudget returns the number of replays still pending.
func (d *Driver) RepeatBudget() int {
	return d.repeat.budget
}

// LearnState returns the learning state machine position.
func (d *Driver) LearnState() LearnState {
	return d.learnState
}

// Status returns a snapshot of the driver.
func (d *Driver) Status() Status {
	return Status{
		Address:      d.addr,
		Learned:      d.HasLearnedAddress(),
		State:        d.state,
		RepeatBudget: d.repeat.budget,
		LearnState:   d.learnState,
	}
}

// TurnOn50 dims the fixture to 50%. repetitions <= 0 uses the configured
// burst size.
func (d *Driver) TurnOn50(repetitions int) error {
	return d.command(StateDim50, repetitions)
}

// TurnOn100 switches the fixture to full brightness.
func (d *Driver) TurnOn100(repetitions int) error {
	return d.command(StateDim100, repetitions)
}

// TurnOff switches the fixture off.
func (d *Driver) TurnOff(repetitions int) error {
	return d.command(StateOff, repetitions)
}

// SetState sends the command for state.
func (d *Driver) SetState(state LightState, repetitions int) error {
	return d.command(state, repetitions)
}

// Pair sends PAIR so a fixture in pairing mode accepts this transmitter.
// Light state and the repeat budget are left alone.
func (d *Driver) Pair(repetitions int) error {
	if repetitions <= 0 {
		repetitions = d.opts.PairRepetitions
	}
	id := uuid.NewString()
	if err := d.transmit(d.addr, CommandPair, repetitions); err != nil {
		d.publish(EventCommandFailed(CommandPair, err, id))
		return err
	}
	log.Info().Str("address", d.addr.String()).Int("repetitions", repetitions).Msg("Pair command sent")
	d.publish(EventCommandSent(d.addr, CommandPair, repetitions, id))
	return nil
}

func (d *Driver) command(state LightState, repetitions int) error {
	if repetitions <= 0 {
		repetitions = d.opts.CommandRepetitions
	}
	cmd := state.Command()
	id := uuid.NewString()

	if err := d.transmit(d.addr, cmd, repetitions); err != nil {
		log.Warn().Err(err).Str("command", cmd.String()).Msg("Command not sent")
		d.publish(EventCommandFailed(cmd, err, id))
		return err
	}

	d.state = state
	d.repeat.arm(d.opts.RepeatBudget)

	log.Info().
		Str("command", cmd.String()).
		Str("address", d.addr.String()).
		Int("repetitions", repetitions).
		Str("command_id", id).
		Msg("Command sent")
	d.publish(EventCommandSent(d.addr, cmd, repetitions, id))
	d.publish(EventLightState(state, true, id))
	return nil
}

// Poll does one tick of background work: a learning round while no address
// is known, then a pending replay, otherwise one remote monitor listen.
func (d *Driver) Poll() error {
	if !d.HasLearnedAddress() {
		if _, err := d.learn(); err != nil {
			return err
		}
	}

	if d.repeat.tick() {
		if err := d.transmit(d.addr, d.state.Command(), 1); err != nil {
			return fmt.Errorf("replay %s: %w", d.state, err)
		}
		return nil
	}

	if d.opts.MonitorRemote && d.HasLearnedAddress() {
		return d.monitor()
	}
	return nil
}

func (d *Driver) publish(e eventbus.Event) {
	d.pub.Publish(e)
}
