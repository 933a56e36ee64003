package visit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineTransitions(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		name        string
		family      Family
		from        Status
		to          Status
		shouldAllow bool
	}{
		{"waiting to called", FamilyReception, StatusWaiting, StatusCalled, true},
		{"called to in progress", FamilyReception, StatusCalled, StatusInProgress, true},
		{"in progress to completed", FamilyReception, StatusInProgress, StatusCompleted, true},
		{"completed to payment wait", FamilyReception, StatusCompleted, StatusPaymentWait, true},
		{"payment wait to completed", FamilyReception, StatusPaymentWait, StatusCompleted, true},
		{"on hold back to waiting", FamilyReception, StatusOnHold, StatusWaiting, true},
		{"reserved to completed", FamilyReservation, StatusReserved, StatusCompleted, true},
		{"reserved to canceled", FamilyReservation, StatusReserved, StatusCanceled, true},
		// Invalid transitions
		{"waiting to payment wait", FamilyReception, StatusWaiting, StatusPaymentWait, false},
		{"canceled to waiting", FamilyReception, StatusCanceled, StatusWaiting, false},
		{"inactive to waiting", FamilyReception, StatusInactive, StatusWaiting, false},
		{"status change never deactivates", FamilyReception, StatusWaiting, StatusInactive, false},
		{"completed reservation to canceled", FamilyReservation, StatusCompleted, StatusCanceled, false},
		{"canceled reservation to reserved", FamilyReservation, StatusCanceled, StatusReserved, false},
		{"reservation status outside its family", FamilyReservation, StatusReserved, StatusWaiting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldAllow, m.CanTransition(tt.family, tt.from, tt.to),
				"transition %s -> %s", tt.from, tt.to)
		})
	}
}

func TestEveryNonTerminalReceptionStatusCanBeCanceled(t *testing.T) {
	m := NewMachine()
	for _, s := range Vocabulary(FamilyReception) {
		if m.IsTerminal(FamilyReception, s) {
			continue
		}
		assert.True(t, m.CanTransition(FamilyReception, s, StatusCanceled), "%s should be cancelable", s)
	}
}

func TestTerminalStates(t *testing.T) {
	m := NewMachine()

	assert.True(t, m.IsTerminal(FamilyReception, StatusCanceled))
	assert.True(t, m.IsTerminal(FamilyReception, StatusInactive))
	assert.False(t, m.IsTerminal(FamilyReception, StatusCompleted))

	assert.True(t, m.IsTerminal(FamilyReservation, StatusCompleted))
	assert.True(t, m.IsTerminal(FamilyReservation, StatusCanceled))
	assert.False(t, m.IsTerminal(FamilyReservation, StatusReserved))

	assert.True(t, m.IsTerminal(FamilyReservation, Status("BOGUS")))
	assert.Empty(t, m.Actions(FamilyReservation, StatusCanceled))
}

func TestNextAndActions(t *testing.T) {
	m := NewMachine()

	to, ok := m.Next(FamilyReception, StatusWaiting, ActionCall)
	assert.True(t, ok)
	assert.Equal(t, StatusCalled, to)

	_, ok = m.Next(FamilyReception, StatusWaiting, ActionComplete)
	assert.False(t, ok)

	_, ok = m.Next(FamilyReservation, StatusReserved, ActionCall)
	assert.False(t, ok)

	assert.Equal(t, []Action{ActionComplete, ActionCancel}, m.Actions(FamilyReservation, StatusReserved))
	assert.Equal(t, []Action{ActionCall, ActionStart, ActionHold, ActionCancel}, m.Actions(FamilyReception, StatusWaiting))
}

func TestVocabulary(t *testing.T) {
	assert.Len(t, Vocabulary(FamilyReception), 8)
	assert.Len(t, Vocabulary(FamilyReservation), 4)
	assert.True(t, Valid(FamilyReservation, StatusReserved))
	assert.False(t, Valid(FamilyReservation, StatusWaiting))
	for _, s := range Vocabulary(FamilyReception) {
		assert.NotEmpty(t, Labels[s], s)
	}
}
