package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidOrderTransition(t *testing.T) {
	valid := [][2]string{
		{OrderStatusPending, OrderStatusAccepted},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusAccepted, OrderStatusInProgress},
		{OrderStatusAccepted, OrderStatusCancelled},
		{OrderStatusInProgress, OrderStatusCompleted},
	}
	for _, tr := range valid {
		assert.True(t, IsValidOrderTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	invalid := [][2]string{
		{OrderStatusPending, OrderStatusInProgress},
		{OrderStatusPending, OrderStatusCompleted},
		{OrderStatusAccepted, OrderStatusCompleted},
		{OrderStatusInProgress, OrderStatusCancelled},
		{OrderStatusCompleted, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusCompleted, OrderStatusPending},
	}
	for _, tr := range invalid {
		assert.False(t, IsValidOrderTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

// Терминальные статусы не имеют исходящих переходов.
func TestOrderStatusTransitions_TerminalStates(t *testing.T) {
	assert.Empty(t, OrderStatusTransitions[OrderStatusCompleted])
	assert.Empty(t, OrderStatusTransitions[OrderStatusCancelled])
}
