package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateGroups(t *testing.T) {
	assert.Equal(t, []ReportState{StatePendingValidation, StateActive, StateReopened}, OpenStates())
	assert.Equal(t, []ReportState{StateRejected, StateRepaired, StateClosed}, CycleTerminalStates())

	for _, s := range allStates {
		assert.NotEqual(t, s.IsOpen(), s.IsCycleTerminal(), s)
	}
}
