package app

import (
	"context"
	"fmt"

	"github.com/dokzlo13/ansultad/internal/cc2500"
	"github.com/dokzlo13/ansultad/internal/config"
	"github.com/dokzlo13/ansultad/internal/db"
	"github.com/dokzlo13/ansultad/internal/eventbus"
	"github.com/dokzlo13/ansultad/internal/ledger"
	"github.com/dokzlo13/ansultad/internal/motion"
	"github.com/dokzlo13/ansultad/internal/state"
	"github.com/dokzlo13/ansultad/internal/storage"
)

// Radio provides the transceiver connection and clock, plus the motion
// sensor when motion detection is enabled.
type Radio struct {
	Conn   cc2500.Conn
	Clock  cc2500.Clock
	Motion motion.Sensor
}

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Bus    *eventbus.Bus
	Ledger *ledger.Ledger

	// State store (generic JSON store)
	Store   *storage.Store
	Fixture *state.FixtureStore

	// High-level services
	Radio  *RadioService
	Lua    *LuaService
	Events *EventService
	Bridge *BridgeService
	Motion *MotionService // nil when disabled
	Health *HealthService
}

// NewServices creates all services on the SPI transceiver named in the config.
func NewServices(cfg *config.Config) (*Services, error) {
	conn, err := cc2500.OpenPeriph(cc2500.PeriphConfig{
		Port:     cfg.Radio.SPIPort,
		ClockHz:  cfg.Radio.ClockHz,
		CSPin:    cfg.Radio.CSPin,
		ReadyPin: cfg.Radio.ReadyPin,
	})
	if err != nil {
		return nil, fmt.Errorf("open transceiver: %w", err)
	}

	radio := Radio{Conn: conn, Clock: cc2500.SystemClock}
	if cfg.Motion.Enabled {
		sensor, err := motion.OpenPin(cfg.Motion.Pin)
		if err != nil {
			conn.Close()
			return nil, err
		}
		radio.Motion = sensor
	}

	s, err := NewServicesWithRadio(cfg, radio)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewServicesWithRadio creates all services with proper dependency injection
// on an already opened transceiver.
func NewServicesWithRadio(cfg *config.Config, radio Radio) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.Ledger = ledger.New(database.DB)
	s.Store = storage.NewStore(database.DB)
	s.Fixture = state.NewFixtureStore(s.Store)

	s.Radio = NewRadioService(cfg, radio.Conn, radio.Clock, s.Fixture, s.Bus)

	s.Lua = NewLuaService(cfg, s.Radio)

	s.Events = NewEventService(cfg, s.Bus, s.Ledger, s.Fixture, s.Radio, s.Lua)

	s.Bridge, err = NewBridgeService(cfg, s.Radio)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Motion, err = NewMotionService(cfg, radio.Motion, s.Radio)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Health = NewHealthService(cfg, s.Radio)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Handlers go in before the radio can publish anything
	s.Events.Subscribe(ctx)
	if s.Motion != nil {
		s.Motion.Subscribe(s.Bus)
	}

	if err := s.Radio.Start(ctx); err != nil {
		return err
	}

	// The script may command the light while loading, so the radio loop
	// must already run. Notifications queue until the worker starts.
	if s.Lua != nil {
		if err := s.Lua.LoadScript(); err != nil {
			return err
		}
		s.Lua.Start(ctx)
	}
	s.Events.Start(ctx)
	s.Bridge.Start(ctx)
	if s.Motion != nil {
		s.Motion.Start(ctx)
	}
	s.Health.Start(ctx)

	return nil
}

// ResetAddress forgets the stored fixture address.
func (s *Services) ResetAddress() error {
	return s.Fixture.ClearAddress()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	// radio first so no new events are published
	if s.Radio != nil {
		s.Radio.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
