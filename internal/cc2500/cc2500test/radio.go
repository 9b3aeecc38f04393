// Package cc2500test provides an in-memory CC2500 for tests.
package cc2500test

import (
	"sync"
	"time"

	"github.com/dokzlo13/ansultad/internal/cc2500"
)

// Radio emulates the transceiver behind a cc2500.Conn. Frames queued with
// QueueFrame are loaded into the RX FIFO on the next SRX strobe. Burst
// writes to the TX FIFO are captured and committed on STX.
type Radio struct {
	mu sync.Mutex

	// Unresponsive keeps the chip-ready line high forever.
	Unresponsive bool

	selected bool
	header   int
	raw      []byte

	regs    [0x40]byte
	rxFIFO  []byte
	txFIFO  []byte
	rxQueue [][]byte

	lastBurst []byte
	sent      [][]byte
	strobes   []byte
	selects   int
}

// NewRadio creates an idle radio.
func NewRadio() *Radio {
	return &Radio{header: -1}
}

// QueueFrame schedules a received frame; the FIFO will report len(frame)
// followed by the frame bytes.
func (r *Radio) QueueFrame(frame []byte) {
	data := make([]byte, 0, len(frame)+1)
	data = append(data, byte(len(frame)))
	data = append(data, frame...)
	r.QueueRaw(data)
}

// QueueRaw schedules raw FIFO contents, length byte included.
func (r *Radio) QueueRaw(fifo []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(fifo))
	copy(cp, fifo)
	r.rxQueue = append(r.rxQueue, cp)
}

// Sent returns every burst transaction that was followed by STX, header
// byte included.
func (r *Radio) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	for i, f := range r.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Strobes returns the strobe codes in the order they were issued.
func (r *Radio) Strobes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.strobes...)
}

// CountStrobe returns how often code was strobed.
func (r *Radio) CountStrobe(code byte) int {
	n := 0
	for _, s := range r.Strobes() {
		if s == code {
			n++
		}
	}
	return n
}

// Register returns the last value written to addr.
func (r *Radio) Register(addr byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[addr&0x3F]
}

// RXPending returns the number of bytes left in the RX FIFO.
func (r *Radio) RXPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rxFIFO)
}

// Selected reports whether chip select is currently asserted.
func (r *Radio) Selected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Transactions returns how many times chip select was asserted.
func (r *Radio) Transactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selects
}

// Reset clears captured traffic.
func (r *Radio) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.strobes = nil
}

// Select implements cc2500.Conn.
func (r *Radio) Select(active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active {
		r.selected = true
		r.selects++
		r.header = -1
		r.raw = r.raw[:0]
		return nil
	}
	if r.selected && r.header >= 0 {
		h := byte(r.header)
		if h&cc2500.ReadFlag == 0 && h&0x3F == cc2500.FIFO && len(r.raw) > 1 {
			r.lastBurst = append([]byte(nil), r.raw...)
		}
	}
	r.selected = false
	r.header = -1
	return nil
}

// Ready implements cc2500.Conn.
func (r *Radio) Ready() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Unresponsive, nil
}

// Exchange implements cc2500.Conn.
func (r *Radio) Exchange(w, resp []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range w {
		out := r.shift(b)
		if resp != nil && i < len(resp) {
			resp[i] = out
		}
	}
	return nil
}

// Close implements cc2500.Conn.
func (r *Radio) Close() error { return nil }

func (r *Radio) shift(b byte) byte {
	r.raw = append(r.raw, b)
	if r.header < 0 {
		r.header = int(b)
		if cc2500.IsStrobe(b) {
			r.strobe(b)
		}
		return 0x0F
	}

	h := byte(r.header)
	addr := h & 0x3F
	if h&cc2500.ReadFlag != 0 {
		if addr == cc2500.FIFO {
			if len(r.rxFIFO) == 0 {
				return 0
			}
			v := r.rxFIFO[0]
			r.rxFIFO = r.rxFIFO[1:]
			return v
		}
		return r.regs[addr]
	}

	if addr == cc2500.FIFO {
		r.txFIFO = append(r.txFIFO, b)
	} else {
		r.regs[addr] = b
	}
	return 0x0F
}

func (r *Radio) strobe(code byte) {
	r.strobes = append(r.strobes, code)
	switch code {
	case cc2500.SRES:
		r.regs = [0x40]byte{}
		r.rxFIFO = nil
		r.txFIFO = nil
	case cc2500.SRX:
		if len(r.rxQueue) > 0 {
			r.rxFIFO = append(r.rxFIFO, r.rxQueue[0]...)
			r.rxQueue = r.rxQueue[1:]
		}
	case cc2500.STX:
		if len(r.txFIFO) > 0 && r.lastBurst != nil {
			r.sent = append(r.sent, r.lastBurst)
			r.lastBurst = nil
		}
	case cc2500.SFRX:
		r.rxFIFO = nil
	case cc2500.SFTX:
		r.txFIFO = nil
	}
}

// Clock is a virtual clock. Sleep advances time without blocking.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now implements cc2500.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements cc2500.Clock. Zero sleeps still advance one microsecond
// so polling loops always make progress.
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		d = time.Microsecond
	} else {
		c.slept += d
	}
	c.now = c.now.Add(d)
}

// Slept returns the total of all positive sleeps.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
