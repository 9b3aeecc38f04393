package cc2500

import "errors"

// ErrNotResponding is returned when the chip-ready line does not come up
// within the configured timeout. The transaction is aborted and chip select
// released; nothing has been shifted to the chip.
var ErrNotResponding = errors.New("cc2500: transceiver not responding")

// ErrClosed is returned when the bus has been closed.
var ErrClosed = errors.New("cc2500: bus closed")
