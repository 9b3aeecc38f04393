package cc2500

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphConfig selects the SPI port and the GPIO lines used for chip select
// and the chip-ready indication.
type PeriphConfig struct {
	// Port is the SPI port name, e.g. "/dev/spidev0.0". Empty picks the first.
	Port string
	// ClockHz is the SPI clock. The CC2500 runs up to 6.5MHz without extra
	// delays between bytes.
	ClockHz int64
	// CSPin drives CSn manually (e.g. "GPIO8"). The kernel CS is disabled.
	CSPin string
	// ReadyPin samples the SO line (e.g. "GPIO9"); low means ready.
	ReadyPin string
}

// periphConn drives the transceiver through periph.io.
type periphConn struct {
	mu     sync.Mutex
	port   spi.PortCloser
	conn   spi.Conn
	cs     gpio.PinOut
	ready  gpio.PinIn
	closed bool
}

// OpenPeriph initializes the host drivers and opens the SPI port and pins.
func OpenPeriph(cfg PeriphConfig) (Conn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	if cfg.ClockHz == 0 {
		cfg.ClockHz = 6000000
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.Port, err)
	}

	conn, err := port.Connect(physic.Frequency(cfg.ClockHz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect SPI port: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		port.Close()
		return nil, fmt.Errorf("failed to open chip select pin %q", cfg.CSPin)
	}
	if err := cs.Out(gpio.High); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to drive chip select pin: %w", err)
	}

	ready := gpioreg.ByName(cfg.ReadyPin)
	if ready == nil {
		port.Close()
		return nil, fmt.Errorf("failed to open ready pin %q", cfg.ReadyPin)
	}
	if err := ready.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure ready pin: %w", err)
	}

	return &periphConn{
		port:  port,
		conn:  conn,
		cs:    cs,
		ready: ready,
	}, nil
}

func (c *periphConn) Select(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	// CSn is active low
	return c.cs.Out(gpio.Level(!active))
}

func (c *periphConn) Ready() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	return c.ready.Read() == gpio.Low, nil
}

func (c *periphConn) Exchange(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if r == nil {
		r = make([]byte, len(w))
	}
	return c.conn.Tx(w, r)
}

func (c *periphConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cs.Out(gpio.High)
	return c.port.Close()
}
