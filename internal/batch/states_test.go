package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateClassification(t *testing.T) {
	tests := []struct {
		state     State
		good      bool
		active    bool
		bad       bool
		uncertain bool
	}{
		{StateCompleted, true, false, false, false},
		{StateComplete, true, false, false, false},
		{StateSpecialExit, true, false, false, false},
		{StateRunning, false, true, false, false},
		{StatePending, false, true, false, false},
		{StateHeld, false, true, false, false},
		{StateSubmitted, false, true, false, false},
		{StateFailed, false, false, true, false},
		{StateCancelled, false, false, true, false},
		{StateTimeout, false, false, true, false},
		{StateDisappeared, false, false, true, false},
		{StateSuspended, false, false, false, true},
		{StatePreempted, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.True(t, tt.state.Known())
			assert.Equal(t, tt.good, tt.state.Good())
			assert.Equal(t, tt.active, tt.state.Active())
			assert.Equal(t, tt.bad, tt.state.Bad())
			assert.Equal(t, tt.uncertain, tt.state.Uncertain())
			assert.Equal(t, tt.good || tt.bad, tt.state.Done())
		})
	}
}

func TestStateUnknown(t *testing.T) {
	s := State("flying")
	assert.False(t, s.Known())
	assert.False(t, s.Good())
	assert.False(t, s.Active())
	assert.False(t, s.Bad())
	assert.False(t, s.Uncertain())
	assert.False(t, s.Done())
}

func TestAllStatesCoversVocabulary(t *testing.T) {
	all := AllStates()
	assert.Len(t, all, len(stateClasses))
	for _, s := range all {
		assert.True(t, s.Known())
	}
}
