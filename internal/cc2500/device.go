package cc2500

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Conn is the physical link to the transceiver: chip select, the chip-ready
// indication and a full-duplex byte exchange.
type Conn interface {
	// Select drives chip select. active=true pulls CSn low.
	Select(active bool) error
	// Ready reports whether the chip signals ready (SO low while selected).
	Ready() (bool, error)
	// Exchange shifts w out and stores the bytes shifted in into r.
	// r may be nil when the response is not needed.
	Exchange(w, r []byte) error
	Close() error
}

// Clock abstracts time so bus timing can be shrunk in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Timing holds the bus delays. All values are minimums taken from the
// transceiver timing requirements and must not be lowered on real hardware.
type Timing struct {
	ReadyTimeout time.Duration // max wait for the chip-ready line
	ReadyPoll    time.Duration // interval between readiness samples
	ReadGap      time.Duration // between header and data byte of a read
	WriteGap     time.Duration // between header and data byte of a write
	WriteSettle  time.Duration // after a register write
	StrobeSettle time.Duration // default delay after a strobe
}

// DefaultTiming returns the delays used by the reference Ansluta firmware.
func DefaultTiming() Timing {
	return Timing{
		ReadyTimeout: 100 * time.Millisecond,
		ReadyPoll:    10 * time.Microsecond,
		ReadGap:      10 * time.Millisecond,
		WriteGap:     200 * time.Microsecond,
		WriteSettle:  0,
		StrobeSettle: 200 * time.Microsecond,
	}
}

// Device performs register, strobe and FIFO transactions on a CC2500.
// It is not safe for concurrent use; exactly one goroutine must own it.
type Device struct {
	conn   Conn
	timing Timing
	clock  Clock
}

// New creates a Device using the wall clock.
func New(conn Conn, timing Timing) *Device {
	return NewWithClock(conn, timing, SystemClock)
}

// NewWithClock creates a Device with a custom clock.
func NewWithClock(conn Conn, timing Timing, clock Clock) *Device {
	if clock == nil {
		clock = SystemClock
	}
	return &Device{
		conn:   conn,
		timing: timing,
		clock:  clock,
	}
}

// Timing returns the bus timing in use.
func (d *Device) Timing() Timing {
	return d.timing
}

// Sleep waits on the device clock.
func (d *Device) Sleep(dur time.Duration) {
	d.clock.Sleep(dur)
}

// ReadRegister reads a single register. For FIFO this pops one RX byte.
func (d *Device) ReadRegister(addr byte) (byte, error) {
	r, err := d.transact(addr|ReadFlag, []byte{0x00}, d.timing.ReadGap, 0)
	if err != nil {
		return 0, fmt.Errorf("read register 0x%02X: %w", addr, err)
	}
	return r[0], nil
}

// WriteRegister writes a single register.
func (d *Device) WriteRegister(addr, value byte) error {
	if _, err := d.transact(addr, []byte{value}, d.timing.WriteGap, d.timing.WriteSettle); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", addr, err)
	}
	return nil
}

// Strobe issues a command strobe and waits settle afterwards.
func (d *Device) Strobe(code byte, settle time.Duration) error {
	if _, err := d.transact(code, nil, 0, settle); err != nil {
		return fmt.Errorf("strobe 0x%02X: %w", code, err)
	}
	return nil
}

// WriteBurst shifts header followed by payload inside one chip-select
// window, waiting gap before each payload byte.
func (d *Device) WriteBurst(header byte, payload []byte, gap time.Duration) error {
	if _, err := d.transact(header, payload, gap, 0); err != nil {
		return fmt.Errorf("burst write 0x%02X: %w", header, err)
	}
	return nil
}

// Reset issues two SRES strobes.
func (d *Device) Reset() error {
	for i := 0; i < 2; i++ {
		if err := d.Strobe(SRES, d.timing.StrobeSettle); err != nil {
			return err
		}
	}
	return nil
}

// Configure writes every register of the table in order.
func (d *Device) Configure(table []Register) error {
	for _, reg := range table {
		if err := d.WriteRegister(reg.Addr, reg.Value); err != nil {
			return err
		}
	}
	log.Debug().Int("registers", len(table)).Msg("Transceiver configured")
	return nil
}

// Close releases the underlying bus.
func (d *Device) Close() error {
	return d.conn.Close()
}

// transact runs one bus transaction and returns the bytes shifted in while
// the payload was shifted out.
func (d *Device) transact(header byte, payload []byte, gap, settle time.Duration) (resp []byte, err error) {
	if err := d.conn.Select(true); err != nil {
		return nil, err
	}
	defer func() {
		if derr := d.conn.Select(false); derr != nil && err == nil {
			err = derr
		}
		if err == nil {
			d.clock.Sleep(settle)
		}
	}()

	if err := d.waitReady(); err != nil {
		return nil, err
	}

	if err := d.conn.Exchange([]byte{header}, nil); err != nil {
		return nil, err
	}

	resp = make([]byte, len(payload))
	for i, b := range payload {
		d.clock.Sleep(gap)
		if err := d.conn.Exchange([]byte{b}, resp[i:i+1]); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// waitReady polls the chip-ready line until it comes up or the timeout
// elapses.
func (d *Device) waitReady() error {
	deadline := d.clock.Now().Add(d.timing.ReadyTimeout)
	for {
		ok, err := d.conn.Ready()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !d.clock.Now().Before(deadline) {
			return ErrNotResponding
		}
		d.clock.Sleep(d.timing.ReadyPoll)
	}
}
