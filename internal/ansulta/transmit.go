package ansulta

import (
	"fmt"

	"github.com/dokzlo13/ansultad/internal/cc2500"
)

// transmit sends the command frame for addr repetitions times. Nothing is
// sent to the sentinel address.
func (d *Driver) transmit(addr Address, cmd Command, repetitions int) error {
	if addr.IsZero() {
		return ErrNoAddress
	}

	payload := EncodeFrame(addr, cmd)
	for i := 0; i < repetitions; i++ {
		if err := d.dev.Strobe(cc2500.SIDLE, d.opts.TxStrobeSettle); err != nil {
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		if err := d.dev.Strobe(cc2500.SFTX, d.opts.TxStrobeSettle); err != nil {
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		if err := d.dev.WriteBurst(BurstMarker, payload, d.opts.ByteGap); err != nil {
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		if err := d.dev.Strobe(cc2500.STX, d.opts.TxStrobeSettle); err != nil {
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		d.dev.Sleep(d.opts.TxSettle)
	}
	return nil
}
