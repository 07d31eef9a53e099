package models

// ReservationStatus is the closed set of lifecycle states for a reservation.
// Rows never leave a terminal status; the adjacency table below is the single
// source of truth for legal transitions.
type ReservationStatus string

const (
	StatusRequested                ReservationStatus = "requested"
	StatusPendingProValidation     ReservationStatus = "pending_pro_validation"
	StatusConfirmed                ReservationStatus = "confirmed"
	StatusOnHold                   ReservationStatus = "on_hold"
	StatusDepositRequested         ReservationStatus = "deposit_requested"
	StatusDepositPaid              ReservationStatus = "deposit_paid"
	StatusWaitlist                 ReservationStatus = "waitlist"
	StatusNoShow                   ReservationStatus = "noshow"
	StatusNoShowDisputed           ReservationStatus = "no_show_disputed"
	StatusNoShowConfirmed          ReservationStatus = "no_show_confirmed"
	StatusConsumed                 ReservationStatus = "consumed"
	StatusConsumedDefault          ReservationStatus = "consumed_default"
	StatusRefused                  ReservationStatus = "refused"
	StatusCancelled                ReservationStatus = "cancelled"
	StatusCancelledUser            ReservationStatus = "cancelled_user"
	StatusCancelledPro             ReservationStatus = "cancelled_pro"
	StatusCancelledWaitlistExpired ReservationStatus = "cancelled_waitlist_expired"
	StatusExpired                  ReservationStatus = "expired"
)

// AllStatuses lists every status, used by tests and input validation.
var AllStatuses = []ReservationStatus{
	StatusRequested, StatusPendingProValidation, StatusConfirmed, StatusOnHold,
	StatusDepositRequested, StatusDepositPaid, StatusWaitlist, StatusNoShow,
	StatusNoShowDisputed, StatusNoShowConfirmed, StatusConsumed,
	StatusConsumedDefault, StatusRefused, StatusCancelled, StatusCancelledUser,
	StatusCancelledPro, StatusCancelledWaitlistExpired, StatusExpired,
}

// terminalStatuses have no outbound transitions.
var terminalStatuses = map[ReservationStatus]bool{
	StatusConsumed:                 true,
	StatusConsumedDefault:          true,
	StatusNoShowConfirmed:          true,
	StatusRefused:                  true,
	StatusCancelled:                true,
	StatusCancelledUser:            true,
	StatusCancelledPro:             true,
	StatusCancelledWaitlistExpired: true,
	StatusExpired:                  true,
}

// occupyingStatuses count against slot capacity. Remaining capacity is always
// recomputed from the sum of party sizes over these statuses, never cached.
var occupyingStatuses = []ReservationStatus{
	StatusRequested,
	StatusPendingProValidation,
	StatusConfirmed,
	StatusDepositPaid,
}

// transitions is the static adjacency table. Client and pro UIs branch on the
// invalid_status_transition error for edges missing here, so changes to this
// table are contract changes.
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusRequested: {
		StatusPendingProValidation, StatusConfirmed, StatusOnHold,
		StatusRefused, StatusCancelledUser, StatusCancelled, StatusExpired,
	},
	StatusPendingProValidation: {
		StatusConfirmed, StatusOnHold, StatusDepositRequested, StatusRefused,
		StatusCancelledUser, StatusCancelledPro, StatusCancelled, StatusExpired,
	},
	StatusConfirmed: {
		StatusConsumed, StatusConsumedDefault, StatusNoShow,
		StatusDepositRequested, StatusCancelledPro, StatusCancelledUser,
		StatusCancelled,
	},
	StatusOnHold: {
		StatusPendingProValidation, StatusConfirmed, StatusRefused,
		StatusCancelledUser, StatusCancelledPro, StatusCancelled, StatusExpired,
	},
	StatusDepositRequested: {
		StatusDepositPaid, StatusCancelledUser, StatusCancelledPro,
		StatusCancelled, StatusExpired,
	},
	StatusDepositPaid: {
		StatusConfirmed, StatusConsumed, StatusConsumedDefault, StatusNoShow,
		StatusCancelledUser, StatusCancelledPro, StatusCancelled,
	},
	StatusWaitlist: {
		StatusRequested, StatusConfirmed, StatusCancelledUser,
		StatusCancelledWaitlistExpired, StatusCancelled, StatusExpired,
	},
	StatusNoShow: {
		StatusNoShowDisputed, StatusNoShowConfirmed, StatusConsumed,
	},
	StatusNoShowDisputed: {
		StatusNoShowConfirmed, StatusConsumed,
	},
}

// IsTerminal reports whether s admits no further transitions.
func IsTerminal(s ReservationStatus) bool {
	return terminalStatuses[s]
}

// IsOccupying reports whether a reservation in s consumes slot capacity.
func IsOccupying(s ReservationStatus) bool {
	for _, o := range occupyingStatuses {
		if o == s {
			return true
		}
	}
	return false
}

// OccupyingStatuses returns the capacity-consuming status set.
func OccupyingStatuses() []ReservationStatus {
	out := make([]ReservationStatus, len(occupyingStatuses))
	copy(out, occupyingStatuses)
	return out
}

// CanTransition reports whether from -> to is a legal edge. Self-transitions
// are always legal (idempotent no-op); leaving a terminal status never is.
func CanTransition(from, to ReservationStatus) bool {
	if from == to {
		return true
	}
	if terminalStatuses[from] {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s names a known status.
func IsValidStatus(s ReservationStatus) bool {
	for _, known := range AllStatuses {
		if known == s {
			return true
		}
	}
	return false
}

// NegativeForClient lists the statuses a pro may push a reservation into that
// hurt the client side; the protection-window guard applies to these.
var negativeProTargets = map[ReservationStatus]bool{
	StatusCancelledPro: true,
	StatusRefused:      true,
	StatusCancelled:    true,
}

// IsNegativeProTarget reports whether to is a pro-initiated negative outcome.
func IsNegativeProTarget(to ReservationStatus) bool {
	return negativeProTargets[to]
}
