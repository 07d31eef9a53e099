package service

import (
	"context"
	"fmt"
	"time"

	"reserva/internal/config"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
)

const (
	scoreBase = 60
	scoreMin  = 0
	scoreMax  = 100
)

// CancellationKind classifies a client cancellation by how far ahead of the
// reservation start it happened.
type CancellationKind string

const (
	CancellationFree     CancellationKind = "free"
	CancellationLate     CancellationKind = "late"
	CancellationVeryLate CancellationKind = "very_late"
)

// ScoringService maintains per-client reliability counters, the derived
// score, and suspension state. Every handler is a read-modify-write on a
// single client_stats row; see ClientStatsStore.Mutate for the locking.
//
// Handlers fail open: an empty consumer id or a store failure yields the
// base result instead of an error, so scoring never blocks a booking flow.
type ScoringService struct {
	stats   ClientStatsStore
	cache   ScoreCache
	events  EventPublisher
	metrics *metrics.Metrics
	cfg     config.TrustConfig
}

func NewScoringService(stats ClientStatsStore, cache ScoreCache, events EventPublisher, m *metrics.Metrics, cfg config.TrustConfig) *ScoringService {
	return &ScoringService{stats: stats, cache: cache, events: events, metrics: m, cfg: cfg}
}

// ComputeScore derives the reliability score from the counters. Pure and
// idempotent: recomputing without new events yields the same value.
//
// Seniority bonuses are cumulative: +5 at >=5 total reservations and a
// further +10 at >=20.
func ComputeScore(s *models.ClientStats) int {
	score := scoreBase +
		5*s.HonoredReservations -
		15*s.NoShowsCount -
		5*s.LateCancellations -
		10*s.VeryLateCancellations +
		s.ReviewsPosted +
		2*s.FreeToPaidConversions

	if s.TotalReservations >= 5 {
		score += 5
	}
	if s.TotalReservations >= 20 {
		score += 10
	}

	if score < scoreMin {
		return scoreMin
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

// Stars maps the 0-100 score linearly onto a 0-5.0 star scale.
func Stars(score int) float64 {
	return float64(score) / 20.0
}

// Level buckets the score into the coarse classification shown to pros.
func Level(score int) string {
	switch {
	case score >= 75:
		return "excellent"
	case score >= 50:
		return "good"
	default:
		return "fragile"
	}
}

func baseStats(consumerID string) *models.ClientStats {
	return &models.ClientStats{
		ConsumerID:       consumerID,
		ReliabilityScore: scoreBase,
	}
}

// mutate wraps the store Mutate with the fail-open policy and recomputes the
// score as the last step of every callback.
func (s *ScoringService) mutate(ctx context.Context, consumerID string, fn func(*models.ClientStats)) *models.ClientStats {
	if consumerID == "" {
		return baseStats(consumerID)
	}

	stats, err := s.stats.Mutate(ctx, consumerID, func(st *models.ClientStats) {
		fn(st)
		st.ReliabilityScore = ComputeScore(st)
	})
	if err != nil {
		logger.WithContext(ctx).Error("scoring mutation failed", "consumer_id", consumerID, "error", err)
		return baseStats(consumerID)
	}

	s.metrics.IncScoreRecompute()
	if s.cache != nil {
		if err := s.cache.InvalidateScore(ctx, consumerID); err != nil {
			logger.WithContext(ctx).Warn("score cache invalidation failed", "consumer_id", consumerID, "error", err)
		}
	}
	return stats
}

// RecordHonoredReservation credits a verified-present reservation. Reaching
// the rehabilitation streak resets the consecutive no-show counter.
func (s *ScoringService) RecordHonoredReservation(ctx context.Context, consumerID string) *models.ClientStats {
	return s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		st.HonoredReservations++
		st.TotalReservations++
		st.ConsecutiveHonored++
		if st.ConsecutiveHonored >= s.cfg.RehabilitationConsecutive {
			st.ConsecutiveNoShows = 0
		}
	})
}

// RecordNoShow debits a confirmed no-show and applies the suspension policy.
// The returned flag is true only when this call created the suspension; an
// already-suspended client is never re-suspended.
func (s *ScoringService) RecordNoShow(ctx context.Context, consumerID string) (*models.ClientStats, bool) {
	var newlySuspended bool
	var suspendedUntil *time.Time

	stats := s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		st.NoShowsCount++
		st.TotalReservations++
		st.ConsecutiveNoShows++
		st.ConsecutiveHonored = 0

		if st.ConsecutiveNoShows >= s.cfg.ConsecutiveNoShowThreshold && !st.IsSuspended {
			days := s.cfg.FirstSuspensionDays
			if st.NoShowsCount >= s.cfg.RecurrenceNoShowCount {
				days = s.cfg.RecurrenceSuspensionDays
			}
			until := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
			reason := fmt.Sprintf("%d consecutive no-shows", st.ConsecutiveNoShows)

			st.IsSuspended = true
			st.SuspendedUntil = &until
			st.SuspensionReason = &reason
			newlySuspended = true
			suspendedUntil = &until
		}
	})

	if newlySuspended {
		s.publish(ctx, models.EventClientSuspended, models.ClientSuspendedEvent{
			ConsumerID:     consumerID,
			Reason:         "consecutive no-shows",
			SuspendedUntil: suspendedUntil,
			Timestamp:      time.Now().UTC(),
		})
	}
	return stats, newlySuspended
}

// ClassifyCancellation buckets a cancellation by lead time before start.
func ClassifyCancellation(startsAt, cancelledAt time.Time) CancellationKind {
	lead := startsAt.Sub(cancelledAt)
	switch {
	case lead > 24*time.Hour:
		return CancellationFree
	case lead >= 12*time.Hour:
		return CancellationLate
	default:
		return CancellationVeryLate
	}
}

// RecordCancellation penalizes late and very-late cancellations; a free
// cancellation touches no counters.
func (s *ScoringService) RecordCancellation(ctx context.Context, consumerID string, startsAt, cancelledAt time.Time) (*models.ClientStats, CancellationKind) {
	kind := ClassifyCancellation(startsAt, cancelledAt)
	if kind == CancellationFree {
		return baseStats(consumerID), kind
	}

	stats := s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		switch kind {
		case CancellationLate:
			st.LateCancellations++
		case CancellationVeryLate:
			st.VeryLateCancellations++
		}
	})
	return stats, kind
}

// RecordReviewPosted credits a posted review.
func (s *ScoringService) RecordReviewPosted(ctx context.Context, consumerID string) *models.ClientStats {
	return s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		st.ReviewsPosted++
	})
}

// RecordFreeToPaidUpgrade credits converting a free booking to a deposit.
func (s *ScoringService) RecordFreeToPaidUpgrade(ctx context.Context, consumerID string) *models.ClientStats {
	return s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		st.FreeToPaidConversions++
	})
}

// LiftSuspension clears the suspension state. Admin action.
func (s *ScoringService) LiftSuspension(ctx context.Context, consumerID string) *models.ClientStats {
	return s.mutate(ctx, consumerID, func(st *models.ClientStats) {
		st.IsSuspended = false
		st.SuspendedUntil = nil
		st.SuspensionReason = nil
	})
}

// AutoLiftExpiredSuspensions bulk-lifts every suspension past its date and
// returns the count. Cron entry point; safe to re-run.
func (s *ScoringService) AutoLiftExpiredSuspensions(ctx context.Context, now time.Time) (int64, error) {
	return s.stats.AutoLiftExpired(ctx, now)
}

// IsClientSuspended answers the creation guard. An expired suspension is
// opportunistically lifted before answering. Fails open to not-suspended.
func (s *ScoringService) IsClientSuspended(ctx context.Context, consumerID string) (bool, *time.Time) {
	if consumerID == "" {
		return false, nil
	}

	stats, err := s.stats.Get(ctx, consumerID)
	if err != nil {
		logger.WithContext(ctx).Error("suspension check failed, failing open", "consumer_id", consumerID, "error", err)
		return false, nil
	}
	if stats == nil || !stats.IsSuspended {
		return false, nil
	}

	if stats.SuspendedUntil != nil && stats.SuspendedUntil.Before(time.Now().UTC()) {
		s.LiftSuspension(ctx, consumerID)
		return false, nil
	}
	return true, stats.SuspendedUntil
}

// Snapshot returns the consumer-facing score read model, cache-first.
func (s *ScoringService) Snapshot(ctx context.Context, consumerID string) (*models.ScoreSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.GetScoreSnapshot(ctx, consumerID); err == nil && snap != nil {
			return snap, nil
		}
	}

	stats, err := s.stats.Get(ctx, consumerID)
	if err != nil {
		logger.WithContext(ctx).Error("score snapshot read failed, failing open", "consumer_id", consumerID, "error", err)
		stats = nil
	}
	if stats == nil {
		stats = baseStats(consumerID)
	}

	score := ComputeScore(stats)
	snap := &models.ScoreSnapshot{
		ConsumerID:     consumerID,
		Score:          score,
		Stars:          Stars(score),
		Level:          Level(score),
		Honored:        stats.HonoredReservations,
		NoShows:        stats.NoShowsCount,
		Total:          stats.TotalReservations,
		IsSuspended:    stats.IsSuspended,
		SuspendedUntil: stats.SuspendedUntil,
	}

	if s.cache != nil {
		if err := s.cache.SetScoreSnapshot(ctx, snap); err != nil {
			logger.WithContext(ctx).Warn("score snapshot cache write failed", "consumer_id", consumerID, "error", err)
		}
	}
	return snap, nil
}

func (s *ScoringService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("event publish failed", "subject", subject, "error", err)
	}
}
