package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserva/internal/models"
	"reserva/internal/reserr"
)

func waitlistedReservation(t *testing.T, env *testEnv, consumerID, slotID string) *models.Reservation {
	t.Helper()
	res := models.Reservation{
		ConsumerID:      consumerID,
		EstablishmentID: "e1",
		SlotID:          &slotID,
		Status:          models.StatusWaitlist,
		PartySize:       2,
		StartsAt:        time.Now().UTC().Add(72 * time.Hour),
	}
	require.NoError(t, env.resStore.CreateWithCapacity(context.Background(), &res))
	return &res
}

func TestAllocate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	require.NoError(t, env.waitlist.Allocate(ctx, "s1", 6))

	slotID := "s1"
	res := models.Reservation{
		ConsumerID:      "c1",
		EstablishmentID: "e1",
		SlotID:          &slotID,
		Status:          models.StatusConfirmed,
		PartySize:       5,
		StartsAt:        time.Now().UTC().Add(72 * time.Hour),
	}
	require.NoError(t, env.resStore.CreateWithCapacity(ctx, &res))

	require.NoError(t, env.waitlist.Allocate(ctx, "s1", 1))
	err := env.waitlist.Allocate(ctx, "s1", 2)
	require.Equal(t, reserr.CodeSlotFull, reserr.CodeOf(err))

	err = env.waitlist.Allocate(ctx, "missing", 1)
	assert.Equal(t, reserr.CodeSlotNotFound, reserr.CodeOf(err))
}

func TestPromoteNextSendsOffer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res := waitlistedReservation(t, env, "c1", "s1")
	entry, err := env.waitlist.Join(ctx, res)
	require.NoError(t, err)

	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	sent, err := env.waitlistStore.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferSent, sent.Status)
	require.NotNil(t, sent.OfferExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(120*time.Minute), *sent.OfferExpiresAt, time.Minute)
	assert.True(t, env.events.published(models.EventWaitlistOfferSent))

	// An outstanding live offer blocks further promotion.
	res2 := waitlistedReservation(t, env, "c2", "s1")
	entry2, err := env.waitlist.Join(ctx, res2)
	require.NoError(t, err)
	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	still, err := env.waitlistStore.GetByID(ctx, entry2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, still.Status)
}

func TestPromoteNextReapsExpiredOffers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res1 := waitlistedReservation(t, env, "c1", "s1")
	entry1, err := env.waitlist.Join(ctx, res1)
	require.NoError(t, err)
	res2 := waitlistedReservation(t, env, "c2", "s1")
	entry2, err := env.waitlist.Join(ctx, res2)
	require.NoError(t, err)

	// First entry holds an offer that already expired.
	past := time.Now().UTC().Add(-time.Hour)
	_, err = env.waitlistStore.MarkOfferSent(ctx, entry1.ID, past.Add(-2*time.Hour), past)
	require.NoError(t, err)

	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	reaped, err := env.waitlistStore.GetByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferExpired, reaped.Status)

	closed, err := env.resStore.GetByID(ctx, res1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelledWaitlistExpired, closed.Status)

	promoted, err := env.waitlistStore.GetByID(ctx, entry2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferSent, promoted.Status)
	assert.True(t, env.events.published(models.EventWaitlistOfferExpired))
}

func TestPromoteNextStopsWhenReapWriteFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res1 := waitlistedReservation(t, env, "c1", "s1")
	entry1, err := env.waitlist.Join(ctx, res1)
	require.NoError(t, err)
	res2 := waitlistedReservation(t, env, "c2", "s1")
	entry2, err := env.waitlist.Join(ctx, res2)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = env.waitlistStore.MarkOfferSent(ctx, entry1.ID, past.Add(-2*time.Hour), past)
	require.NoError(t, err)

	// The expired head cannot be moved; the pass must stop rather than
	// loop back onto the same entry.
	env.waitlistStore.failMarkStatus = errors.New("write failed")
	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	env.waitlistStore.failMarkStatus = nil
	head, err := env.waitlistStore.GetByID(ctx, entry1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferSent, head.Status)
	next, err := env.waitlistStore.GetByID(ctx, entry2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, next.Status)
	assert.False(t, env.events.published(models.EventWaitlistOfferSent))
}

func TestPromoteNextStopsWhenStaleRemovalFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res := waitlistedReservation(t, env, "c1", "s1")
	entry, err := env.waitlist.Join(ctx, res)
	require.NoError(t, err)
	_, err = env.resStore.Transition(ctx, res.ID, models.StatusWaitlist, models.StatusCancelled, nil)
	require.NoError(t, err)

	env.waitlistStore.failMarkStatus = errors.New("write failed")
	err = env.waitlist.PromoteNext(ctx, "s1")
	require.Equal(t, reserr.CodeStoreError, reserr.CodeOf(err))

	env.waitlistStore.failMarkStatus = nil
	still, err := env.waitlistStore.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, still.Status)
}

func TestPromoteNextStopsWhenEntryDoesNotFit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 4, time.Now().UTC().Add(72*time.Hour))

	slotID := "s1"
	occupant := models.Reservation{
		ConsumerID:      "c0",
		EstablishmentID: "e1",
		SlotID:          &slotID,
		Status:          models.StatusConfirmed,
		PartySize:       3,
		StartsAt:        time.Now().UTC().Add(72 * time.Hour),
	}
	require.NoError(t, env.resStore.CreateWithCapacity(ctx, &occupant))

	res := waitlistedReservation(t, env, "c1", "s1")
	entry, err := env.waitlist.Join(ctx, res)
	require.NoError(t, err)

	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	still, err := env.waitlistStore.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, still.Status, "party of 2 does not fit in 1 remaining")
}

func TestClaimOffer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res := waitlistedReservation(t, env, "c1", "s1")
	entry, err := env.waitlist.Join(ctx, res)
	require.NoError(t, err)
	require.NoError(t, env.waitlist.PromoteNext(ctx, "s1"))

	_, err = env.reservations.ClaimWaitlistOffer(ctx, "someone-else", entry.ID)
	assert.Equal(t, reserr.CodeForbidden, reserr.CodeOf(err))

	claimed, err := env.reservations.ClaimWaitlistOffer(ctx, "c1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, claimed.Status)

	done, err := env.waitlistStore.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistRemoved, done.Status)

	_, err = env.reservations.ClaimWaitlistOffer(ctx, "c1", entry.ID)
	assert.Equal(t, reserr.CodeOfferNotFound, reserr.CodeOf(err), "claim is not repeatable")
}

func TestClaimExpiredOffer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res := waitlistedReservation(t, env, "c1", "s1")
	entry, err := env.waitlist.Join(ctx, res)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = env.waitlistStore.MarkOfferSent(ctx, entry.ID, past.Add(-2*time.Hour), past)
	require.NoError(t, err)

	_, err = env.reservations.ClaimWaitlistOffer(ctx, "c1", entry.ID)
	require.Equal(t, reserr.CodeOfferExpired, reserr.CodeOf(err))

	reaped, err := env.waitlistStore.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferExpired, reaped.Status)
}

func TestSweepExpiredOffers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addSlot("s1", "e1", 6, time.Now().UTC().Add(72*time.Hour))

	res1 := waitlistedReservation(t, env, "c1", "s1")
	entry1, err := env.waitlist.Join(ctx, res1)
	require.NoError(t, err)
	res2 := waitlistedReservation(t, env, "c2", "s1")
	entry2, err := env.waitlist.Join(ctx, res2)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = env.waitlistStore.MarkOfferSent(ctx, entry1.ID, past.Add(-2*time.Hour), past)
	require.NoError(t, err)

	reaped, err := env.waitlist.SweepExpiredOffers(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	// The sweep retried promotion for the slot.
	next, err := env.waitlistStore.GetByID(ctx, entry2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistOfferSent, next.Status)

	// Idempotent re-run.
	reaped, err = env.waitlist.SweepExpiredOffers(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
}
