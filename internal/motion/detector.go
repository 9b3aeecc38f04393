// Package motion switches the fixture from a PIR sensor. The light comes on
// after two consecutive detections and goes off after a quiet timeout.
// Switching the fixture off by hand from the remote several times in a row
// suspends detection for progressively longer periods.
package motion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

// SourceMotion tags commands issued by the detector.
const SourceMotion = "motion"

// Sensor reports whether motion is currently detected.
type Sensor interface {
	Motion() (bool, error)
}

// Light is the fixture the detector switches.
type Light interface {
	SetState(ctx context.Context, state ansulta.LightState, source string) error
}

// Options configures the detector. Zero values take DefaultOptions.
type Options struct {
	OnState       ansulta.LightState
	Timeout       time.Duration // quiet time before switching off
	ManualTimeout time.Duration // quiet time after the remote switched the light on
	ManualGrace   time.Duration // sensor ignored after any remote change
	OffWindow     time.Duration // repeated remote OFF within this window suspends detection
	PollInterval  time.Duration
}

// DefaultOptions returns the detector defaults.
func DefaultOptions() Options {
	return Options{
		OnState:       ansulta.StateDim100,
		Timeout:       35 * time.Second,
		ManualTimeout: time.Hour,
		ManualGrace:   5 * time.Second,
		OffWindow:     5 * time.Second,
		PollInterval:  200 * time.Millisecond,
	}
}

// suspensions are applied for the 1st, 2nd and 3rd repeated remote OFF.
var suspensions = []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour}

// Detector follows a motion sensor and the light state.
type Detector struct {
	opts   Options
	sensor Sensor
	light  Light
	now    func() time.Time

	mu          sync.Mutex
	state       ansulta.LightState
	timeout     time.Duration
	detections  int
	lastMotion  time.Time
	manualAt    time.Time
	manualOffAt time.Time
	suspendedAt time.Time
	suspendFor  time.Duration
	offPresses  int
}

// New creates a detector. The light is assumed to be in initial.
func New(sensor Sensor, light Light, initial ansulta.LightState, opts Options) *Detector {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.ManualTimeout <= 0 {
		opts.ManualTimeout = def.ManualTimeout
	}
	if opts.ManualGrace <= 0 {
		opts.ManualGrace = def.ManualGrace
	}
	if opts.OffWindow <= 0 {
		opts.OffWindow = def.OffWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if !opts.OnState.IsOn() {
		opts.OnState = def.OnState
	}
	return &Detector{
		opts:    opts,
		sensor:  sensor,
		light:   light,
		now:     time.Now,
		state:   initial,
		timeout: opts.Timeout,
	}
}

// Suspended reports whether detection is currently suspended, and until when.
func (d *Detector) Suspended() (bool, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until := d.suspendedAt.Add(d.suspendFor)
	return d.suspendFor > 0 && d.now().Before(until), until
}

// Run samples the sensor until the context is cancelled.
func (d *Detector) Run(ctx context.Context) {
	log.Info().Dur("timeout", d.opts.Timeout).Str("on_state", d.opts.OnState.String()).Msg("Motion detection started")

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.Tick(ctx)
			switch {
			case err != nil && err.Error() != lastErr:
				log.Error().Err(err).Msg("Motion tick failed")
				lastErr = err.Error()
			case err == nil:
				lastErr = ""
			}
		}
	}
}

// Tick samples the sensor once and switches the light when due.
func (d *Detector) Tick(ctx context.Context) error {
	d.mu.Lock()
	now := d.now()
	if d.suspendFor > 0 && now.Sub(d.suspendedAt) < d.suspendFor {
		d.mu.Unlock()
		return nil
	}
	if now.Sub(d.manualAt) < d.opts.ManualGrace {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	motion, err := d.sensor.Motion()
	if err != nil {
		return err
	}

	d.mu.Lock()
	target, send := d.decide(now, motion)
	d.mu.Unlock()
	if !send {
		return nil
	}

	if err := d.light.SetState(ctx, target, SourceMotion); err != nil {
		return err
	}

	d.mu.Lock()
	d.state = target
	if target == ansulta.StateOff {
		d.timeout = d.opts.Timeout
	}
	d.mu.Unlock()

	log.Info().Str("state", target.String()).Bool("motion", motion).Msg("Motion switched light")
	return nil
}

// decide must be called with mu held.
func (d *Detector) decide(now time.Time, motion bool) (ansulta.LightState, bool) {
	on := d.state.IsOn()

	if motion {
		d.detections++
		d.lastMotion = now
		// a single reading is often noise
		if !on && d.detections > 1 {
			return d.opts.OnState, true
		}
		return 0, false
	}

	d.detections = 0
	if on && !d.lastMotion.IsZero() && now.Sub(d.lastMotion) > d.timeout {
		return ansulta.StateOff, true
	}
	return 0, false
}

// LightChanged records a light state change. manual is true when the change
// came from the paired remote.
func (d *Detector) LightChanged(state ansulta.LightState, manual bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state == d.state {
		return
	}
	d.state = state
	if !manual {
		return
	}

	now := d.now()
	d.manualAt = now

	if state.IsOn() {
		d.timeout = d.opts.ManualTimeout
		log.Debug().Dur("timeout", d.timeout).Msg("Light switched on by remote, extending motion timeout")
		return
	}

	if !d.manualOffAt.IsZero() && now.Sub(d.manualOffAt) < d.opts.OffWindow {
		if d.offPresses < len(suspensions) {
			d.offPresses++
		}
		d.suspendFor = suspensions[d.offPresses-1]
		d.suspendedAt = now
		log.Info().Dur("for", d.suspendFor).Msg("Motion detection suspended by remote")
	} else if d.suspendFor > 0 {
		d.offPresses = 0
		d.suspendFor = 0
		d.suspendedAt = time.Time{}
		log.Info().Msg("Motion detection resumed by remote")
	}
	d.timeout = d.opts.Timeout
	d.manualOffAt = now
}
