package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"assigned to in_progress", StatusAssigned, StatusInProgress, true},
		{"assigned to completed skips in_progress", StatusAssigned, StatusCompleted, false},
		{"assigned to blocked", StatusAssigned, StatusBlocked, false},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress to blocked", StatusInProgress, StatusBlocked, true},
		{"in_progress back to assigned", StatusInProgress, StatusAssigned, false},
		{"blocked resumes to in_progress", StatusBlocked, StatusInProgress, true},
		{"blocked to completed", StatusBlocked, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusInProgress, false},
		{"completed cannot block", StatusCompleted, StatusBlocked, false},
		{"self transition rejected", StatusInProgress, StatusInProgress, false},
		{"unknown source", Status("archived"), StatusInProgress, false},
		{"unknown target", StatusInProgress, Status("archived"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusAssigned, StatusInProgress, StatusCompleted, StatusBlocked} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusBlocked.Terminal())
	assert.False(t, StatusAssigned.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}
