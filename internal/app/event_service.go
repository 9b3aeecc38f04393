package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/ansulta"
	"github.com/dokzlo13/ansultad/internal/config"
	"github.com/dokzlo13/ansultad/internal/eventbus"
	"github.com/dokzlo13/ansultad/internal/ledger"
	"github.com/dokzlo13/ansultad/internal/state"
)

// EventService handles event bus subscriptions: it records radio activity
// in the ledger, persists what was learned about the fixture and forwards
// state changes to the Lua script.
type EventService struct {
	cfg     *config.Config
	bus     *eventbus.Bus
	ledger  *ledger.Ledger
	fixture *state.FixtureStore
	radio   *RadioService
	luaSvc  *LuaService // nil when no script is configured
}

// NewEventService creates a new EventService.
func NewEventService(
	cfg *config.Config,
	bus *eventbus.Bus,
	l *ledger.Ledger,
	fixture *state.FixtureStore,
	radio *RadioService,
	luaSvc *LuaService,
) *EventService {
	return &EventService{
		cfg:     cfg,
		bus:     bus,
		ledger:  l,
		fixture: fixture,
		radio:   radio,
		luaSvc:  luaSvc,
	}
}

// Subscribe registers the handlers. Must be called before the radio starts
// so no event is missed.
func (s *EventService) Subscribe(ctx context.Context) {
	s.bus.Subscribe(eventbus.EventTypeCommandSent, s.onCommandSent)
	s.bus.Subscribe(eventbus.EventTypeCommandFailed, s.onCommandFailed)
	s.bus.Subscribe(eventbus.EventTypeAddressLearned, s.onAddressLearned)
	s.bus.Subscribe(eventbus.EventTypeLearnExhausted, func(event eventbus.Event) {
		log.Debug().Int("attempts", event.Int("attempts")).Msg("Learning round ended without a frame")
	})
	s.bus.Subscribe(eventbus.EventTypeLightState, func(event eventbus.Event) {
		s.onLightState(ctx, event)
	})
}

// Start begins periodic ledger cleanup.
func (s *EventService) Start(ctx context.Context) {
	go s.runLedgerCleanup(ctx)
}

func (s *EventService) onCommandSent(event eventbus.Event) {
	s.record(ledger.EventCommandSent, event, map[string]any{
		"command":     event.String("command"),
		"address":     event.String("address"),
		"repetitions": event.Int("repetitions"),
	})
}

func (s *EventService) onCommandFailed(event eventbus.Event) {
	s.record(ledger.EventCommandFailed, event, map[string]any{
		"command": event.String("command"),
		"error":   event.String("error"),
	})
}

func (s *EventService) onAddressLearned(event eventbus.Event) {
	addr := ansulta.Address{A: byte(event.Int("address_a")), B: byte(event.Int("address_b"))}

	if err := s.fixture.SaveAddress(addr, SourceLearn); err != nil {
		log.Error().Err(err).Str("address", addr.String()).Msg("Failed to persist fixture address")
	}
	s.record(ledger.EventAddressLearned, event, map[string]any{
		"address": addr.String(),
	})
}

func (s *EventService) onLightState(ctx context.Context, event eventbus.Event) {
	selfInitiated := event.Bool("self_initiated")

	// Workers may deliver events out of order; persist the radio's current
	// belief rather than the state carried by this event.
	current := s.radio.Status().State
	if err := s.fixture.SaveLightState(current, selfInitiated); err != nil {
		log.Error().Err(err).Msg("Failed to persist light state")
	}

	if !selfInitiated {
		s.record(ledger.EventRemoteCommand, event, map[string]any{
			"state": event.String("state"),
		})
	}

	if s.luaSvc != nil {
		s.luaSvc.NotifyLightState(ctx, event.String("state"), selfInitiated)
	}
}

func (s *EventService) record(eventType ledger.EventType, event eventbus.Event, payload map[string]any) {
	commandID := event.String("command_id")
	if err := s.ledger.AppendWithSource(eventType, commandID, event.String("source"), payload); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
	}
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *EventService) runLedgerCleanup(ctx context.Context) {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
