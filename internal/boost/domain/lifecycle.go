package domain

// transitions is the closed table of legal status moves. Terminal states have no entry.
var transitions = map[BoostStatus]map[BoostStatus]struct{}{
	BoostStatusPending: {
		BoostStatusActive:    {},
		BoostStatusCancelled: {},
		BoostStatusExpired:   {},
	},
	BoostStatusScheduled: {
		BoostStatusActive:    {},
		BoostStatusCancelled: {},
	},
	BoostStatusActive: {
		BoostStatusExpired:   {},
		BoostStatusCancelled: {},
	},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to BoostStatus) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsTerminal reports whether no further transition is possible from status.
func IsTerminal(status BoostStatus) bool {
	_, ok := transitions[status]
	return !ok
}

// IsLive reports whether a record still occupies its listing: pending, scheduled or active.
func IsLive(status BoostStatus) bool {
	switch status {
	case BoostStatusPending, BoostStatusScheduled, BoostStatusActive:
		return true
	default:
		return false
	}
}

// CancellableStatuses lists the statuses a cancel request may start from.
func CancellableStatuses() []BoostStatus {
	return []BoostStatus{BoostStatusPending, BoostStatusScheduled, BoostStatusActive}
}
