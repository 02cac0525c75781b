package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusClientSelecting))
	assert.True(t, CanTransition(StatusDraft, StatusAwaitingFinalPhotos))
	assert.True(t, CanTransition(StatusClientSelecting, StatusClientApproved))
	assert.True(t, CanTransition(StatusClientSelecting, StatusChangesRequested))
	assert.True(t, CanTransition(StatusChangesRequested, StatusClientSelecting))
	assert.True(t, CanTransition(StatusChangesRequested, StatusClientApproved))
	assert.True(t, CanTransition(StatusClientApproved, StatusPreparingDelivery))
	assert.True(t, CanTransition(StatusAwaitingFinalPhotos, StatusPreparingDelivery))
	assert.True(t, CanTransition(StatusPreparingDelivery, StatusDelivered))

	assert.False(t, CanTransition(StatusDraft, StatusDelivered))
	assert.False(t, CanTransition(StatusClientSelecting, StatusPreparingDelivery))
	assert.False(t, CanTransition(StatusPreparingDelivery, StatusClientSelecting))
	assert.False(t, CanTransition(StatusDelivered, StatusPreparingDelivery))
	assert.False(t, CanTransition(StatusCancelled, StatusClientSelecting))
}

func TestCancelReachableFromNonTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusClientSelecting, StatusChangesRequested, StatusClientApproved, StatusAwaitingFinalPhotos, StatusPreparingDelivery} {
		assert.True(t, CanTransition(s, StatusCancelled), string(s))
	}
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusCancelled))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusDraft))
	assert.False(t, IsTerminal(StatusPreparingDelivery))
}
