package transfers

import (
	"testing"

	"github.com/cpusmsng/vercajch/pkg/metadata"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	terminal := []metadata.RequestStatus{
		metadata.RequestRejected,
		metadata.RequestCancelled,
		metadata.RequestExpired,
		metadata.RequestCompleted,
	}

	all := []metadata.RequestStatus{
		metadata.RequestPending,
		metadata.RequestRequiresApproval,
		metadata.RequestAccepted,
		metadata.RequestRejected,
		metadata.RequestCancelled,
		metadata.RequestExpired,
		metadata.RequestCompleted,
	}

	for _, from := range terminal {
		assert.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s must not transition to %s", from, to)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    metadata.RequestStatus
		to      metadata.RequestStatus
		allowed bool
	}{
		{metadata.RequestPending, metadata.RequestAccepted, true},
		{metadata.RequestPending, metadata.RequestRejected, true},
		{metadata.RequestPending, metadata.RequestCancelled, true},
		{metadata.RequestPending, metadata.RequestExpired, true},
		{metadata.RequestPending, metadata.RequestCompleted, false},
		{metadata.RequestRequiresApproval, metadata.RequestPending, true},
		{metadata.RequestRequiresApproval, metadata.RequestRejected, true},
		{metadata.RequestRequiresApproval, metadata.RequestCancelled, true},
		{metadata.RequestRequiresApproval, metadata.RequestAccepted, false},
		{metadata.RequestRequiresApproval, metadata.RequestExpired, false},
		{metadata.RequestAccepted, metadata.RequestCompleted, true},
		{metadata.RequestAccepted, metadata.RequestCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransitionSourcesFilterIllegalEdges(t *testing.T) {
	sources := transitionSources(
		[]metadata.RequestStatus{
			metadata.RequestRequiresApproval,
			metadata.RequestPending,
			metadata.RequestCompleted,
		},
		metadata.RequestCancelled,
	)

	assert.Equal(t, []string{
		string(metadata.RequestRequiresApproval),
		string(metadata.RequestPending),
	}, sources)

	assert.Empty(t, transitionSources(
		[]metadata.RequestStatus{metadata.RequestExpired},
		metadata.RequestAccepted,
	))
}
