package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserva/internal/models"
)

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name      string
		stats     models.ClientStats
		wantScore int
		wantStars float64
		wantLevel string
	}{
		{
			name:      "fresh client sits at base",
			stats:     models.ClientStats{},
			wantScore: 60,
			wantStars: 3.0,
			wantLevel: "good",
		},
		{
			name:      "four honored reservations",
			stats:     models.ClientStats{HonoredReservations: 4, TotalReservations: 4},
			wantScore: 80,
			wantStars: 4.0,
			wantLevel: "excellent",
		},
		{
			name: "mixed history with seniority bonus",
			stats: models.ClientStats{
				HonoredReservations: 6,
				NoShowsCount:        1,
				ReviewsPosted:       2,
				TotalReservations:   7,
			},
			wantScore: 82,
			wantStars: 4.1,
			wantLevel: "excellent",
		},
		{
			name:      "serial no-shows clamp to zero",
			stats:     models.ClientStats{NoShowsCount: 10, TotalReservations: 10},
			wantScore: 0,
			wantStars: 0,
			wantLevel: "fragile",
		},
		{
			name: "long history gets both seniority bonuses",
			stats: models.ClientStats{
				HonoredReservations: 2,
				NoShowsCount:        2,
				TotalReservations:   20,
			},
			wantScore: 60 + 10 - 30 + 5 + 10,
			wantLevel: "good",
		},
		{
			name:      "score clamps at the ceiling",
			stats:     models.ClientStats{HonoredReservations: 30, TotalReservations: 30},
			wantScore: 100,
			wantStars: 5.0,
			wantLevel: "excellent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ComputeScore(&tt.stats)
			assert.Equal(t, tt.wantScore, score)
			if tt.wantStars > 0 || tt.wantScore == 0 {
				assert.InDelta(t, tt.wantStars, Stars(score), 0.001)
			}
			assert.Equal(t, tt.wantLevel, Level(score))
		})
	}
}

func TestComputeScoreIdempotent(t *testing.T) {
	stats := &models.ClientStats{HonoredReservations: 3, LateCancellations: 1, TotalReservations: 5}
	first := ComputeScore(stats)
	second := ComputeScore(stats)
	assert.Equal(t, first, second)
}

func TestClassifyCancellation(t *testing.T) {
	start := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, CancellationFree, ClassifyCancellation(start, start.Add(-25*time.Hour)))
	assert.Equal(t, CancellationLate, ClassifyCancellation(start, start.Add(-24*time.Hour)))
	assert.Equal(t, CancellationLate, ClassifyCancellation(start, start.Add(-12*time.Hour)))
	assert.Equal(t, CancellationVeryLate, ClassifyCancellation(start, start.Add(-11*time.Hour)))
	assert.Equal(t, CancellationVeryLate, ClassifyCancellation(start, start))
}

func TestRecordNoShowSuspensionThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, newly := env.scoring.RecordNoShow(ctx, "c1")
	assert.False(t, newly)
	_, newly = env.scoring.RecordNoShow(ctx, "c1")
	assert.False(t, newly)

	stats, newly := env.scoring.RecordNoShow(ctx, "c1")
	assert.True(t, newly, "third consecutive no-show suspends")
	assert.True(t, stats.IsSuspended)
	require.NotNil(t, stats.SuspendedUntil)

	// First offense: 7 days.
	expected := time.Now().UTC().Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, expected, *stats.SuspendedUntil, time.Minute)
	assert.True(t, env.events.published(models.EventClientSuspended))

	stats, newly = env.scoring.RecordNoShow(ctx, "c1")
	assert.False(t, newly, "already suspended, never re-suspended")
	assert.True(t, stats.IsSuspended)
}

func TestRecordNoShowRecurrenceSuspension(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Five cumulative no-shows before the streak that triggers suspension.
	env.statsStore.rows["c1"] = &models.ClientStats{
		ConsumerID:         "c1",
		NoShowsCount:       4,
		ConsecutiveNoShows: 2,
	}

	stats, newly := env.scoring.RecordNoShow(ctx, "c1")
	assert.True(t, newly)
	require.NotNil(t, stats.SuspendedUntil)
	expected := time.Now().UTC().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, expected, *stats.SuspendedUntil, time.Minute)
}

func TestRehabilitationResetsNoShowStreak(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.statsStore.rows["c1"] = &models.ClientStats{
		ConsumerID:         "c1",
		ConsecutiveNoShows: 2,
	}

	var stats *models.ClientStats
	for i := 0; i < 5; i++ {
		stats = env.scoring.RecordHonoredReservation(ctx, "c1")
	}
	assert.Equal(t, 0, stats.ConsecutiveNoShows)
	assert.Equal(t, 5, stats.ConsecutiveHonored)

	// Short of the threshold the streak survives.
	env.statsStore.rows["c2"] = &models.ClientStats{
		ConsumerID:         "c2",
		ConsecutiveNoShows: 2,
	}
	stats = env.scoring.RecordHonoredReservation(ctx, "c2")
	assert.Equal(t, 2, stats.ConsecutiveNoShows)
}

func TestScoringFailsOpen(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	stats := env.scoring.RecordHonoredReservation(ctx, "")
	assert.Equal(t, 60, stats.ReliabilityScore)

	env.statsStore.fail = true
	stats, newly := env.scoring.RecordNoShow(ctx, "c1")
	assert.False(t, newly)
	assert.Equal(t, 60, stats.ReliabilityScore)

	suspended, _ := env.scoring.IsClientSuspended(ctx, "c1")
	assert.False(t, suspended, "suspension check fails open")
}

func TestRecordCancellationCounters(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	start := time.Now().UTC().Add(48 * time.Hour)

	_, kind := env.scoring.RecordCancellation(ctx, "c1", start, time.Now().UTC())
	assert.Equal(t, CancellationFree, kind)
	assert.Equal(t, 0, env.statsStore.calls, "free cancellation writes nothing")

	start = time.Now().UTC().Add(18 * time.Hour)
	stats, kind := env.scoring.RecordCancellation(ctx, "c1", start, time.Now().UTC())
	assert.Equal(t, CancellationLate, kind)
	assert.Equal(t, 1, stats.LateCancellations)
	assert.Equal(t, 55, stats.ReliabilityScore)

	start = time.Now().UTC().Add(2 * time.Hour)
	stats, kind = env.scoring.RecordCancellation(ctx, "c1", start, time.Now().UTC())
	assert.Equal(t, CancellationVeryLate, kind)
	assert.Equal(t, 1, stats.VeryLateCancellations)
	assert.Equal(t, 45, stats.ReliabilityScore)
}

func TestIsClientSuspendedAutoLift(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	reason := "expired"
	env.statsStore.rows["c1"] = &models.ClientStats{
		ConsumerID:       "c1",
		IsSuspended:      true,
		SuspendedUntil:   &past,
		SuspensionReason: &reason,
	}

	suspended, _ := env.scoring.IsClientSuspended(ctx, "c1")
	assert.False(t, suspended, "expired suspension lifted on read")
	assert.False(t, env.statsStore.rows["c1"].IsSuspended)
}

func TestAutoLiftExpiredSuspensions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	env.statsStore.rows["expired"] = &models.ClientStats{ConsumerID: "expired", IsSuspended: true, SuspendedUntil: &past}
	env.statsStore.rows["active"] = &models.ClientStats{ConsumerID: "active", IsSuspended: true, SuspendedUntil: &future}

	lifted, err := env.scoring.AutoLiftExpiredSuspensions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lifted)
	assert.False(t, env.statsStore.rows["expired"].IsSuspended)
	assert.True(t, env.statsStore.rows["active"].IsSuspended)
}

func TestSnapshotWithoutStatsRow(t *testing.T) {
	env := newTestEnv()

	snap, err := env.scoring.Snapshot(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.Equal(t, 60, snap.Score)
	assert.InDelta(t, 3.0, snap.Stars, 0.001)
	assert.Equal(t, "good", snap.Level)
	assert.False(t, snap.IsSuspended)
}
