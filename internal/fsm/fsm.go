// Package fsm models the connect sequence run against an Archicad endpoint.
package fsm

import "fmt"

type State string

type Event string

const (
	StateUnverified      State = "unverified"
	StateAlive           State = "alive"
	StateDead            State = "dead"
	StateVerified        State = "verified"
	StateInfoUnavailable State = "info_unavailable"
)

const (
	EventAlive  Event = "alive"
	EventDead   Event = "dead"
	EventInfo   Event = "info"
	EventNoInfo Event = "noinfo"
)

// Terminal reports whether no further event is accepted from s.
func (s State) Terminal() bool {
	switch s {
	case StateDead, StateVerified, StateInfoUnavailable:
		return true
	default:
		return false
	}
}

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateUnverified:
		switch event {
		case EventAlive:
			return StateAlive, nil
		case EventDead:
			return StateDead, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAlive:
		switch event {
		case EventInfo:
			return StateVerified, nil
		case EventNoInfo:
			return StateInfoUnavailable, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDead, StateVerified, StateInfoUnavailable:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
