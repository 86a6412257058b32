package transfers

import "github.com/cpusmsng/vercajch/pkg/metadata"

// requestTransitions enumerates every legal request status change. Terminal
// states have no outgoing edges, so nothing ever leaves them.
var requestTransitions = map[metadata.RequestStatus][]metadata.RequestStatus{
	metadata.RequestRequiresApproval: {
		metadata.RequestPending,
		metadata.RequestRejected,
		metadata.RequestCancelled,
	},
	metadata.RequestPending: {
		metadata.RequestAccepted,
		metadata.RequestRejected,
		metadata.RequestCancelled,
		metadata.RequestExpired,
	},
	metadata.RequestAccepted: {
		metadata.RequestCompleted,
	},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to metadata.RequestStatus) bool {
	for _, allowed := range requestTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionSources filters a candidate source set down to the statuses
// with a legal edge to the target. Every conditional status update goes
// through this, so an illegal edge can never reach the database.
func transitionSources(from []metadata.RequestStatus, to metadata.RequestStatus) []string {
	sources := make([]string, 0, len(from))
	for _, status := range from {
		if CanTransition(status, to) {
			sources = append(sources, string(status))
		}
	}
	return sources
}
