package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserva/internal/models"
)

func TestProgressiveSanctionSchedule(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.sanctions.ApplyForFalseNoShow(ctx, "e1", "dsp-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SanctionWarning, first.SanctionType)
	assert.Nil(t, first.EndsAt, "a warning has no end date")

	second, err := env.sanctions.ApplyForFalseNoShow(ctx, "e1", "dsp-2", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SanctionDeactivated7d, second.SanctionType)
	require.NotNil(t, second.EndsAt)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), *second.EndsAt, time.Minute)

	third, err := env.sanctions.ApplyForFalseNoShow(ctx, "e1", "dsp-3", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SanctionDeactivated30d, third.SanctionType)
	require.NotNil(t, third.EndsAt)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *third.EndsAt, time.Minute)

	// Severity never steps back.
	fourth, err := env.sanctions.ApplyForFalseNoShow(ctx, "e1", "dsp-4", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SanctionDeactivated30d, fourth.SanctionType)

	trust, err := env.sanctions.ActiveSanction(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, trust.FalseNoShowCount)
	assert.Equal(t, 4, trust.SanctionsCount)
	assert.Equal(t, models.SanctionDeactivated30d, trust.CurrentSanction)

	history, err := env.sanctions.History(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestActiveSanctionWithoutHistory(t *testing.T) {
	env := newTestEnv()

	trust, err := env.sanctions.ActiveSanction(context.Background(), "spotless")
	require.NoError(t, err)
	assert.Equal(t, models.SanctionNone, trust.CurrentSanction)
	assert.Equal(t, 0, trust.FalseNoShowCount)
}
