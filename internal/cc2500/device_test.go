package cc2500_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/ansultad/internal/cc2500"
	"github.com/dokzlo13/ansultad/internal/cc2500/cc2500test"
)

func newDevice(t *testing.T) (*cc2500.Device, *cc2500test.Radio, *cc2500test.Clock) {
	t.Helper()
	radio := cc2500test.NewRadio()
	clock := cc2500test.NewClock()
	return cc2500.NewWithClock(radio, cc2500.DefaultTiming(), clock), radio, clock
}

func TestIsStrobe(t *testing.T) {
	tests := []struct {
		header byte
		want   bool
	}{
		{cc2500.SRES, true},
		{cc2500.SRX, true},
		{cc2500.SNOP, true},
		{cc2500.PATABLE, false},
		{cc2500.FIFO, false},
		{cc2500.FIFO | cc2500.ReadFlag, false},
		{cc2500.IOCFG2, false},
		{cc2500.SRX | cc2500.ReadFlag, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cc2500.IsStrobe(tt.header), "header 0x%02X", tt.header)
	}
}

func TestWriteThenReadRegister(t *testing.T) {
	dev, radio, _ := newDevice(t)

	require.NoError(t, dev.WriteRegister(cc2500.CHANNR, 0x10))
	assert.Equal(t, byte(0x10), radio.Register(cc2500.CHANNR))

	v, err := dev.ReadRegister(cc2500.CHANNR)
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), v)
	assert.False(t, radio.Selected(), "chip select must be released")
}

func TestReadFIFOPopsBytes(t *testing.T) {
	dev, radio, _ := newDevice(t)
	radio.QueueFrame([]byte{0xAB, 0xCD})

	require.NoError(t, dev.Strobe(cc2500.SRX, 0))

	n, err := dev.ReadRegister(cc2500.FIFO)
	require.NoError(t, err)
	assert.Equal(t, byte(2), n)

	a, err := dev.ReadRegister(cc2500.FIFO)
	require.NoError(t, err)
	b, err := dev.ReadRegister(cc2500.FIFO)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, []byte{a, b})
	assert.Zero(t, radio.RXPending())
}

func TestStrobeWaitsSettle(t *testing.T) {
	dev, radio, clock := newDevice(t)

	require.NoError(t, dev.Strobe(cc2500.SIDLE, 2*time.Millisecond))
	assert.Equal(t, []byte{cc2500.SIDLE}, radio.Strobes())
	assert.GreaterOrEqual(t, clock.Slept(), 2*time.Millisecond)
}

func TestWriteBurstSingleSelectWindow(t *testing.T) {
	dev, radio, clock := newDevice(t)

	payload := []byte{0x06, 0x55, 0x01, 0x12, 0x34, 0x02, 0xAA, 0xFF}
	require.NoError(t, dev.WriteBurst(cc2500.FIFO|cc2500.BurstFlag, payload, time.Microsecond))
	require.NoError(t, dev.Strobe(cc2500.STX, 0))

	assert.Equal(t, 2, radio.Transactions(), "one window for the burst, one for STX")
	require.Len(t, radio.Sent(), 1)
	assert.Equal(t, append([]byte{0x7F}, payload...), radio.Sent()[0])
	// one gap before each payload byte
	assert.Equal(t, time.Duration(len(payload))*time.Microsecond, clock.Slept())
}

func TestResetAndConfigure(t *testing.T) {
	dev, radio, _ := newDevice(t)

	require.NoError(t, dev.Reset())
	require.NoError(t, dev.Configure(cc2500.AnslutaConfig))

	assert.Equal(t, 2, radio.CountStrobe(cc2500.SRES))
	for _, reg := range cc2500.AnslutaConfig {
		assert.Equal(t, reg.Value, radio.Register(reg.Addr), "register 0x%02X", reg.Addr)
	}
}

func TestNotResponding(t *testing.T) {
	dev, radio, _ := newDevice(t)
	radio.Unresponsive = true

	err := dev.WriteRegister(cc2500.CHANNR, 0x10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cc2500.ErrNotResponding))
	assert.False(t, radio.Selected(), "chip select must be released on timeout")
	assert.Zero(t, radio.Register(cc2500.CHANNR), "nothing may reach the chip")

	_, err = dev.ReadRegister(cc2500.FIFO)
	assert.ErrorIs(t, err, cc2500.ErrNotResponding)

	assert.ErrorIs(t, dev.Strobe(cc2500.SRX, 0), cc2500.ErrNotResponding)
}

func TestRecoversAfterReadyReturns(t *testing.T) {
	dev, radio, _ := newDevice(t)
	radio.Unresponsive = true
	require.Error(t, dev.Strobe(cc2500.SNOP, 0))

	radio.Unresponsive = false
	require.NoError(t, dev.Strobe(cc2500.SNOP, 0))
}
