package motion

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PinSensor reads a PIR output wired to a GPIO line; high means motion.
type PinSensor struct {
	pin gpio.PinIn
}

// OpenPin configures the named GPIO as a pulled-down input.
func OpenPin(name string) (*PinSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("motion pin %q not found", name)
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure motion pin %q: %w", name, err)
	}
	return &PinSensor{pin: pin}, nil
}

// Motion implements Sensor.
func (s *PinSensor) Motion() (bool, error) {
	return s.pin.Read() == gpio.High, nil
}
