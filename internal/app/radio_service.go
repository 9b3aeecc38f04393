package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/ansulta"
	"github.com/dokzlo13/ansultad/internal/cc2500"
	"github.com/dokzlo13/ansultad/internal/config"
	"github.com/dokzlo13/ansultad/internal/eventbus"
	"github.com/dokzlo13/ansultad/internal/state"
)

// Sources recorded with radio events.
const (
	SourcePoll   = "poll"
	SourceRemote = "remote"
	SourceLearn  = "learned"
)

// ErrRadioClosed is returned for work submitted after the radio loop stopped.
var ErrRadioClosed = errors.New("radio loop stopped")

// radioJob is one unit of driver work. Only the radio goroutine runs jobs.
type radioJob struct {
	source string
	run    func(d *ansulta.Driver) error
	result chan error
}

// sourcePublisher stamps events with the source of the job that produced
// them. It is only called from the radio goroutine.
type sourcePublisher struct {
	bus    ansulta.Publisher
	source string
}

func (p *sourcePublisher) Publish(event eventbus.Event) {
	if _, ok := event.Data["source"]; !ok {
		source := p.source
		if event.Type == eventbus.EventTypeLightState && !event.Bool("self_initiated") {
			source = SourceRemote
		}
		event.Data["source"] = source
	}
	p.bus.Publish(event)
}

// RadioService owns the transceiver and the Ansluta driver. Commands from
// other goroutines are queued to the radio loop, which also polls the driver
// between them.
type RadioService struct {
	cfg     *config.Config
	dev     *cc2500.Device
	driver  *ansulta.Driver
	fixture *state.FixtureStore
	pub     *sourcePublisher

	jobs      chan radioJob
	closing   chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	done      chan struct{}

	mu     sync.RWMutex
	status ansulta.Status

	// radio goroutine only
	lastErr string
}

// NewRadioService creates the driver on conn. The radio loop is started by Start.
func NewRadioService(cfg *config.Config, conn cc2500.Conn, clock cc2500.Clock, fixture *state.FixtureStore, bus ansulta.Publisher) *RadioService {
	dev := cc2500.NewWithClock(conn, DeviceTiming(cfg.Radio.Timing), clock)
	pub := &sourcePublisher{bus: bus}

	s := &RadioService{
		cfg:     cfg,
		dev:     dev,
		driver:  ansulta.New(dev, DriverOptions(cfg.Radio), pub),
		fixture: fixture,
		pub:     pub,
		jobs:    make(chan radioJob, cfg.Radio.GetQueueSize()),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.snapshot()
	return s
}

// DriverOptions maps the radio config onto driver options.
func DriverOptions(rc config.RadioConfig) ansulta.Options {
	return ansulta.Options{
		MaxLearnAttempts:   rc.LearnAttempts,
		CommandRepetitions: rc.CommandRepetitions,
		PairRepetitions:    rc.PairRepetitions,
		RepeatBudget:       rc.GetRepeatBudget(),
		ListenWindow:       rc.Timing.ListenWindow.Duration(),
		TxStrobeSettle:     orDefault(rc.Timing.TxStrobeSettle, ansulta.DefaultOptions().TxStrobeSettle),
		ByteGap:            orDefault(rc.Timing.ByteGap, ansulta.DefaultOptions().ByteGap),
		TxSettle:           orDefault(rc.Timing.TxSettle, ansulta.DefaultOptions().TxSettle),
		MonitorRemote:      rc.MonitorRemote,
	}
}

// DeviceTiming maps the timing config onto bus timing. Zero values keep
// the defaults.
func DeviceTiming(t config.RadioTiming) cc2500.Timing {
	def := cc2500.DefaultTiming()
	return cc2500.Timing{
		ReadyTimeout: orDefault(t.ReadyTimeout, def.ReadyTimeout),
		ReadyPoll:    orDefault(t.ReadyPoll, def.ReadyPoll),
		ReadGap:      orDefault(t.ReadGap, def.ReadGap),
		WriteGap:     orDefault(t.WriteGap, def.WriteGap),
		WriteSettle:  def.WriteSettle,
		StrobeSettle: orDefault(t.StrobeSettle, def.StrobeSettle),
	}
}

func orDefault(d config.Duration, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d.Duration()
}

// Start initializes the transceiver, restores the fixture address and light
// state, and starts the radio loop.
func (s *RadioService) Start(ctx context.Context) error {
	if err := s.driver.Initialize(); err != nil {
		return fmt.Errorf("radio: %w", err)
	}

	if err := s.restore(); err != nil {
		return err
	}
	s.snapshot()

	s.running.Store(true)
	go s.run(ctx)
	return nil
}

func (s *RadioService) restore() error {
	if raw := s.cfg.Fixture.Address; raw != "" {
		addr, err := ansulta.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("fixture address: %w", err)
		}
		if !s.driver.SetAddress(addr.A, addr.B) {
			return fmt.Errorf("fixture address: %s is reserved", addr)
		}
		log.Info().Str("address", addr.String()).Msg("Using configured fixture address")
	} else if addr, ok, err := s.fixture.LoadAddress(); err != nil {
		log.Warn().Err(err).Msg("Failed to load stored fixture address")
	} else if ok {
		s.driver.SetAddress(addr.A, addr.B)
		log.Info().Str("address", addr.String()).Msg("Restored fixture address")
	} else {
		log.Info().Msg("No fixture address known, press a button on the paired remote")
	}

	st, ok, err := s.fixture.LoadLightState()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load stored light state")
	} else if ok {
		s.driver.RestoreState(st)
		log.Debug().Str("state", st.String()).Msg("Restored light state")
	}
	return nil
}

// run is the only goroutine that touches the driver after Start.
func (s *RadioService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Radio.PollInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case job := <-s.jobs:
			s.execute(job)
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *RadioService) execute(job radioJob) {
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("source", job.source).Msg("Radio job panicked")
				err = fmt.Errorf("radio job panicked: %v", rec)
			}
		}()
		s.pub.source = job.source
		err = job.run(s.driver)
	}()
	s.pub.source = ""
	s.snapshot()
	job.result <- err
}

func (s *RadioService) poll() {
	s.pub.source = SourcePoll
	err := s.driver.Poll()
	s.pub.source = ""
	s.snapshot()

	// a dead transceiver fails every tick, log transitions only
	if err != nil {
		if msg := err.Error(); msg != s.lastErr {
			log.Error().Err(err).Msg("Radio poll failed")
			s.lastErr = msg
		}
		return
	}
	if s.lastErr != "" {
		log.Info().Msg("Radio poll recovered")
		s.lastErr = ""
	}
}

func (s *RadioService) snapshot() {
	st := s.driver.Status()
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Do queues fn on the radio loop and waits for its result.
func (s *RadioService) Do(ctx context.Context, source string, fn func(d *ansulta.Driver) error) error {
	job := radioJob{source: source, run: fn, result: make(chan error, 1)}

	if s.isClosing() {
		return ErrRadioClosed
	}

	select {
	case <-s.closing:
		return ErrRadioClosed
	case <-s.done:
		return ErrRadioClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.jobs <- job:
	}

	select {
	case <-s.done:
		// the job may have run just before the loop exited
		select {
		case err := <-job.result:
			return err
		default:
			return ErrRadioClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	case err := <-job.result:
		return err
	}
}

func (s *RadioService) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// SetState sends the command for state.
func (s *RadioService) SetState(ctx context.Context, st ansulta.LightState, source string) error {
	return s.Do(ctx, source, func(d *ansulta.Driver) error {
		return d.SetState(st, 0)
	})
}

// Pair sends the pairing command.
func (s *RadioService) Pair(ctx context.Context, source string) error {
	return s.Do(ctx, source, func(d *ansulta.Driver) error {
		return d.Pair(0)
	})
}

// Status returns the driver state as of the last finished job or poll.
func (s *RadioService) Status() ansulta.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Close stops the radio loop and releases the bus.
func (s *RadioService) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.running.Load() {
			<-s.done
		}
		if err := s.dev.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close transceiver")
		}
	})
}
