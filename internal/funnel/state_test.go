package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateHappyPath(t *testing.T) {
	g := Guards{HasSelection: true, Acknowledged: true}

	s, err := Next(StateIdle, EventSelect, g)
	require.NoError(t, err)
	assert.Equal(t, StateChoiceSelected, s)

	s, err = Next(s, EventProceed, g)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmationReady, s)

	s, err = Next(s, EventConfirm, g)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s)
}

func TestStateReselect(t *testing.T) {
	s, err := Next(StateChoiceSelected, EventSelect, Guards{})
	require.NoError(t, err)
	assert.Equal(t, StateChoiceSelected, s)
}

func TestStateBackRestartsFunnel(t *testing.T) {
	s, err := Next(StateConfirmationReady, EventBack, Guards{})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s)
}

func TestStateProceedRequiresSelection(t *testing.T) {
	s, err := Next(StateChoiceSelected, EventProceed, Guards{HasSelection: false})
	require.Error(t, err)
	assert.Equal(t, StateChoiceSelected, s)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, EventProceed, transitionErr.Event)
}

func TestStateConfirmRequiresAcknowledgement(t *testing.T) {
	s, err := Next(StateConfirmationReady, EventConfirm, Guards{Acknowledged: false})
	require.Error(t, err)
	assert.Equal(t, StateConfirmationReady, s)
}

func TestStateAbortFromAnyLiveState(t *testing.T) {
	for _, from := range []State{StateIdle, StateChoiceSelected, StateConfirmationReady} {
		s, err := Next(from, EventAbort, Guards{})
		require.NoError(t, err, "abort from %s", from)
		assert.Equal(t, StateAborted, s)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	events := []Event{EventSelect, EventProceed, EventBack, EventConfirm, EventAbort}

	for _, terminal := range []State{StateConfirmed, StateAborted} {
		for _, ev := range events {
			s, err := Next(terminal, ev, Guards{HasSelection: true, Acknowledged: true})
			assert.Error(t, err, "%s should reject %s", terminal, ev)
			assert.Equal(t, terminal, s)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		state State
		event Event
	}{
		{StateIdle, EventProceed},
		{StateIdle, EventBack},
		{StateIdle, EventConfirm},
		{StateChoiceSelected, EventBack},
		{StateChoiceSelected, EventConfirm},
		{StateConfirmationReady, EventSelect},
		{StateConfirmationReady, EventProceed},
	}

	for _, tt := range tests {
		s, err := Next(tt.state, tt.event, Guards{HasSelection: true, Acknowledged: true})
		assert.Error(t, err, "%s should reject %s", tt.state, tt.event)
		assert.Equal(t, tt.state, s)
	}
}
