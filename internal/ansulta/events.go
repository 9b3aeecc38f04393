package ansulta

import (
	"github.com/dokzlo13/ansultad/internal/eventbus"
)

// Publisher receives driver events. *eventbus.Bus satisfies it.
type Publisher interface {
	Publish(event eventbus.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(eventbus.Event) {}

// EventLightState builds a light_state event. selfInitiated is false when
// the change was observed from the paired remote.
func EventLightState(state LightState, selfInitiated bool, commandID string) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypeLightState,
		Data: map[string]interface{}{
			"state":          state.String(),
			"on":             state.IsOn(),
			"self_initiated": selfInitiated,
			"command_id":     commandID,
		},
	}
}

// EventCommandSent builds a command_sent event.
func EventCommandSent(addr Address, cmd Command, repetitions int, commandID string) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypeCommandSent,
		Data: map[string]interface{}{
			"command":     cmd.String(),
			"address":     addr.String(),
			"repetitions": repetitions,
			"command_id":  commandID,
		},
	}
}

// EventCommandFailed builds a command_failed event.
func EventCommandFailed(cmd Command, err error, commandID string) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypeCommandFailed,
		Data: map[string]interface{}{
			"command":    cmd.String(),
			"error":      err.Error(),
			"command_id": commandID,
		},
	}
}

// EventAddressLearned builds an address_learned event.
func EventAddressLearned(addr Address) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypeAddressLearned,
		Data: map[string]interface{}{
			"address":   addr.String(),
			"address_a": int(addr.A),
			"address_b": int(addr.B),
		},
	}
}

// EventLearnExhausted builds a learn_exhausted event.
func EventLearnExhausted(attempts int) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypeLearnExhausted,
		Data: map[string]interface{}{
			"attempts": attempts,
		},
	}
}
