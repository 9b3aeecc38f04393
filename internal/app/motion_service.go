package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/ansulta"
	"github.com/dokzlo13/ansultad/internal/bridge"
	"github.com/dokzlo13/ansultad/internal/config"
	"github.com/dokzlo13/ansultad/internal/eventbus"
	"github.com/dokzlo13/ansultad/internal/motion"
)

// MotionService runs the PIR motion detector against the radio.
type MotionService struct {
	cfg      *config.Config
	radio    *RadioService
	Detector *motion.Detector
}

// NewMotionService creates the service. Returns nil when motion detection
// is disabled.
func NewMotionService(cfg *config.Config, sensor motion.Sensor, radio *RadioService) (*MotionService, error) {
	if !cfg.Motion.Enabled {
		return nil, nil
	}
	if sensor == nil {
		return nil, fmt.Errorf("motion: no sensor")
	}
	onState, ok := ansulta.ParseLightState(cfg.Motion.OnState)
	if !ok || !onState.IsOn() {
		return nil, fmt.Errorf("motion: invalid on_state %q", cfg.Motion.OnState)
	}
	detector := motion.New(sensor, radio, ansulta.StateOff, motion.Options{
		OnState:       onState,
		Timeout:       cfg.Motion.Timeout.Duration(),
		ManualTimeout: cfg.Motion.ManualTimeout.Duration(),
		ManualGrace:   cfg.Motion.ManualGrace.Duration(),
		OffWindow:     cfg.Motion.OffWindow.Duration(),
		PollInterval:  cfg.Motion.PollInterval.Duration(),
	})
	return &MotionService{
		cfg:      cfg,
		radio:    radio,
		Detector: detector,
	}, nil
}

// Subscribe follows light state changes. Must be called before the radio
// starts.
func (s *MotionService) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeLightState, func(event eventbus.Event) {
		st, ok := ansulta.ParseLightState(event.String("state"))
		if !ok {
			return
		}
		s.Detector.LightChanged(st, isManual(event.String("source")))
	})
}

// isManual reports whether a change came from a person: the paired remote
// or a Hue/voice command through the bridge.
func isManual(source string) bool {
	return source == SourceRemote || source == bridge.SourceBridge
}

// Start syncs the detector with the restored light state and begins
// sampling.
func (s *MotionService) Start(ctx context.Context) {
	s.Detector.LightChanged(s.radio.Status().State, false)
	log.Debug().Str("pin", s.cfg.Motion.Pin).Msg("Motion sensor ready")
	go s.Detector.Run(ctx)
}
