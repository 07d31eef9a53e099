package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatusesAdmitNoTransitions(t *testing.T) {
	terminals := []ReservationStatus{
		StatusConsumed, StatusConsumedDefault, StatusNoShowConfirmed,
		StatusRefused, StatusCancelled, StatusCancelledUser, StatusCancelledPro,
		StatusCancelledWaitlistExpired, StatusExpired,
	}

	for _, from := range terminals {
		assert.True(t, IsTerminal(from))
		for _, to := range AllStatuses {
			if from == to {
				assert.True(t, CanTransition(from, to), "%s self-transition", from)
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s must be illegal", from, to)
		}
	}
}

func TestSelfTransitionAlwaysLegal(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, CanTransition(s, s), "%s", s)
	}
}

func TestConfirmedAdjacency(t *testing.T) {
	allowed := map[ReservationStatus]bool{
		StatusConsumed:         true,
		StatusConsumedDefault:  true,
		StatusNoShow:           true,
		StatusDepositRequested: true,
		StatusCancelledPro:     true,
		StatusCancelledUser:    true,
		StatusCancelled:        true,
	}

	for _, to := range AllStatuses {
		if to == StatusConfirmed {
			continue
		}
		assert.Equal(t, allowed[to], CanTransition(StatusConfirmed, to), "confirmed -> %s", to)
	}
}

func TestNoShowFlow(t *testing.T) {
	assert.True(t, CanTransition(StatusNoShow, StatusNoShowDisputed))
	assert.True(t, CanTransition(StatusNoShow, StatusNoShowConfirmed))
	assert.True(t, CanTransition(StatusNoShow, StatusConsumed))
	assert.False(t, CanTransition(StatusNoShow, StatusConfirmed))

	assert.True(t, CanTransition(StatusNoShowDisputed, StatusNoShowConfirmed))
	assert.True(t, CanTransition(StatusNoShowDisputed, StatusConsumed))
	assert.False(t, CanTransition(StatusNoShowDisputed, StatusNoShow))
}

func TestOccupyingStatuses(t *testing.T) {
	occupying := []ReservationStatus{
		StatusRequested, StatusPendingProValidation, StatusConfirmed, StatusDepositPaid,
	}
	for _, s := range AllStatuses {
		want := false
		for _, o := range occupying {
			if o == s {
				want = true
			}
		}
		assert.Equal(t, want, IsOccupying(s), "%s", s)
	}
}

func TestWaitlistExits(t *testing.T) {
	assert.True(t, CanTransition(StatusWaitlist, StatusRequested))
	assert.True(t, CanTransition(StatusWaitlist, StatusConfirmed))
	assert.True(t, CanTransition(StatusWaitlist, StatusCancelledWaitlistExpired))
	assert.False(t, CanTransition(StatusWaitlist, StatusNoShow))
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, IsValidStatus(s))
	}
	assert.False(t, IsValidStatus(ReservationStatus("tentative")))
}
