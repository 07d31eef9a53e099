package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserva/internal/models"
	"reserva/internal/reserr"
)

func confirmedReservation(t *testing.T, env *testEnv) *models.Reservation {
	t.Helper()
	res := models.Reservation{
		ConsumerID:      "c1",
		EstablishmentID: "e1",
		Status:          models.StatusConfirmed,
		PaymentType:     models.PaymentFree,
		PartySize:       2,
		StartsAt:        time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, env.resStore.CreateWithCapacity(context.Background(), &res))
	return &res
}

func TestDeclareNoShow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	resp, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DisputeID)
	assert.Equal(t, models.DisputePendingClientResponse, resp.Status)

	updated, err := env.reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, updated.Status)

	dispute, err := env.disputes.GetByID(ctx, resp.DisputeID)
	require.NoError(t, err)
	expected := time.Now().UTC().Add(48 * time.Hour)
	assert.WithinDuration(t, expected, dispute.ClientResponseDeadline, time.Minute)
	assert.True(t, env.events.published(models.EventDisputeDeclared))
}

func TestDeclareNoShowIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	first, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)
	second, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)

	assert.Equal(t, first.DisputeID, second.DisputeID)
	assert.Len(t, env.disputeStore.rows, 1)
}

func TestDeclareNoShowRejectsWrongStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	res := models.Reservation{
		ConsumerID:      "c1",
		EstablishmentID: "e1",
		Status:          models.StatusRequested,
		PartySize:       2,
		StartsAt:        time.Now().UTC(),
	}
	require.NoError(t, env.resStore.CreateWithCapacity(ctx, &res))

	_, err := env.disputes.Declare(ctx, res.ID, "pro")
	assert.Equal(t, reserr.CodeInvalidTransition, reserr.CodeOf(err))
}

func TestClientRespondConfirmsAbsence(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)

	response := models.ResponseConfirmsAbsence
	dispute, err := env.disputes.ClientRespond(ctx, declared.DisputeID, "c1", &models.DisputeRespondRequest{Response: response})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeNoShowConfirmed, dispute.Status)
	require.NotNil(t, dispute.ResolvedAt)

	updated, err := env.reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShowConfirmed, updated.Status)
	assert.Equal(t, 1, env.statsStore.rows["c1"].NoShowsCount, "confirming absence is scored")
}

func TestClientRespondDisputes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)

	response := models.ResponseDisputes
	dispute, err := env.disputes.ClientRespond(ctx, declared.DisputeID, "c1", &models.DisputeRespondRequest{
		Response: response,
		Evidence: []string{"https://cdn.example.com/receipt.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputePendingArbitration, dispute.Status)
	assert.Equal(t, []string{"https://cdn.example.com/receipt.jpg"}, dispute.Evidence)

	updated, err := env.reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShowDisputed, updated.Status)
	assert.Nil(t, env.statsStore.rows["c1"], "disputing defers scoring to arbitration")
	assert.True(t, env.events.published(models.EventDisputeResponded))
}

func TestClientRespondGuards(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)

	_, err = env.disputes.ClientRespond(ctx, declared.DisputeID, "intruder", &models.DisputeRespondRequest{Response: models.ResponseDisputes})
	assert.Equal(t, reserr.CodeForbidden, reserr.CodeOf(err))

	// Push the deadline into the past.
	env.disputeStore.rows[declared.DisputeID].ClientResponseDeadline = time.Now().UTC().Add(-time.Hour)
	_, err = env.disputes.ClientRespond(ctx, declared.DisputeID, "c1", &models.DisputeRespondRequest{Response: models.ResponseDisputes})
	assert.Equal(t, reserr.CodeDisputeWindowClosed, reserr.CodeOf(err))
}

func arbitrationReady(t *testing.T, env *testEnv) (reservationID, disputeID string) {
	t.Helper()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)
	_, err = env.disputes.ClientRespond(ctx, declared.DisputeID, "c1", &models.DisputeRespondRequest{Response: models.ResponseDisputes})
	require.NoError(t, err)
	return res.ID, declared.DisputeID
}

func TestArbitrateFavorClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	reservationID, disputeID := arbitrationReady(t, env)

	dispute, err := env.disputes.Arbitrate(ctx, disputeID, "admin-1", models.DecisionFavorClient)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedFavorClient, dispute.Status)

	res, err := env.reservations.GetByID(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConsumed, res.Status, "client was actually present")

	assert.Nil(t, env.statsStore.rows["c1"], "no client penalty")
	require.Len(t, env.trustStore.sanctions, 1)
	assert.Equal(t, models.SanctionWarning, env.trustStore.sanctions[0].SanctionType)
	assert.True(t, env.events.published(models.EventSanctionApplied))
}

func TestArbitrateFavorPro(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	reservationID, disputeID := arbitrationReady(t, env)

	dispute, err := env.disputes.Arbitrate(ctx, disputeID, "admin-1", models.DecisionFavorPro)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedFavorPro, dispute.Status)

	res, err := env.reservations.GetByID(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShowConfirmed, res.Status)

	assert.Equal(t, 1, env.statsStore.rows["c1"].NoShowsCount, "client no-show is scored")
	assert.Empty(t, env.trustStore.sanctions, "no pro sanction")
}

func TestArbitrateIndeterminate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	reservationID, disputeID := arbitrationReady(t, env)

	dispute, err := env.disputes.Arbitrate(ctx, disputeID, "admin-1", models.DecisionIndeterminate)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedIndeterminate, dispute.Status)

	res, err := env.reservations.GetByID(ctx, reservationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShowConfirmed, res.Status)

	assert.Nil(t, env.statsStore.rows["c1"], "no scoring impact either way")
	assert.Empty(t, env.trustStore.sanctions)
}

func TestArbitrateRequiresPendingArbitration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)

	_, err = env.disputes.Arbitrate(ctx, declared.DisputeID, "admin-1", models.DecisionFavorPro)
	assert.Equal(t, reserr.CodeDisputeNotArbitrable, reserr.CodeOf(err))
}

func TestExpireUnresponded(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	res := confirmedReservation(t, env)

	declared, err := env.disputes.Declare(ctx, res.ID, "pro")
	require.NoError(t, err)
	env.disputeStore.rows[declared.DisputeID].ClientResponseDeadline = time.Now().UTC().Add(-time.Hour)

	expired, err := env.disputes.ExpireUnresponded(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	dispute, err := env.disputes.GetByID(ctx, declared.DisputeID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeNoShowConfirmed, dispute.Status)

	updated, err := env.reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShowConfirmed, updated.Status)
	assert.Equal(t, 1, env.statsStore.rows["c1"].NoShowsCount, "expiry scores like confirmed absence")
	assert.True(t, env.events.published(models.EventDisputeExpired))

	// Re-running the sweep finds nothing.
	expired, err = env.disputes.ExpireUnresponded(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}
