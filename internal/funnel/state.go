// internal/funnel/state.go
package funnel

import "fmt"

// State is a position in the funnel session machine, shared by all funnels:
//
//	Idle -> ChoiceSelected -> ConfirmationReady -> {Confirmed | Aborted}
//
// Going back from ConfirmationReady discards the built plan and is
// re-entrant. Confirmed is terminal and hands off to the billing-mutation
// collaborator.
type State string

const (
	StateIdle              State = "idle"
	StateChoiceSelected    State = "choice_selected"
	StateConfirmationReady State = "confirmation_ready"
	StateConfirmed         State = "confirmed"
	StateAborted           State = "aborted"
)

// Event drives a session transition
type Event string

const (
	EventSelect  Event = "select"
	EventProceed Event = "proceed"
	EventBack    Event = "back"
	EventConfirm Event = "confirm"
	EventAbort   Event = "abort"
)

// TransitionError reports an event that is not legal from the current state
type TransitionError struct {
	State  State
	Event  Event
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s from state %s: %s", e.Event, e.State, e.Reason)
	}
	return fmt.Sprintf("cannot %s from state %s", e.Event, e.State)
}

// Guards carries the conditions some transitions are gated on
type Guards struct {
	// HasSelection gates proceed: the proceed action is disabled until a
	// non-empty selection exists.
	HasSelection bool
	// Acknowledged gates confirm: the terms checkbox must be ticked.
	Acknowledged bool
}

// Next computes the state after an event, or a TransitionError if the event
// is not legal. Terminal states accept no events.
func Next(current State, ev Event, g Guards) (State, error) {
	switch current {
	case StateIdle:
		if ev == EventSelect {
			return StateChoiceSelected, nil
		}
		if ev == EventAbort {
			return StateAborted, nil
		}

	case StateChoiceSelected:
		switch ev {
		case EventSelect:
			// Changing the selection is allowed until proceed.
			return StateChoiceSelected, nil
		case EventProceed:
			if !g.HasSelection {
				return current, &TransitionError{State: current, Event: ev, Reason: "selection is empty"}
			}
			return StateConfirmationReady, nil
		case EventAbort:
			return StateAborted, nil
		}

	case StateConfirmationReady:
		switch ev {
		case EventBack:
			// Re-entrant: the built plan is discarded and the funnel
			// starts over.
			return StateIdle, nil
		case EventConfirm:
			if !g.Acknowledged {
				return current, &TransitionError{State: current, Event: ev, Reason: "terms not acknowledged"}
			}
			return StateConfirmed, nil
		case EventAbort:
			return StateAborted, nil
		}

	case StateConfirmed, StateAborted:
		return current, &TransitionError{State: current, Event: ev, Reason: "session is finished"}
	}

	return current, &TransitionError{State: current, Event: ev}
}
