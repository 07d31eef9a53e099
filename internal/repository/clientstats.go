package repository

import (
	"context"
	"database/sql"
	"time"

	"reserva/internal/database"
	"reserva/internal/models"
)

type ClientStatsRepository struct {
	db *database.DB
}

func NewClientStatsRepository(db *database.DB) *ClientStatsRepository {
	return &ClientStatsRepository{db: db}
}

const clientStatsColumns = `
	consumer_id, honored_reservations, no_shows_count, late_cancellations,
	very_late_cancellations, reviews_posted, free_to_paid_conversions,
	consecutive_honored, consecutive_no_shows, total_reservations,
	reliability_score, is_suspended, suspended_until, suspension_reason,
	updated_at`

func scanClientStats(row rowScanner) (*models.ClientStats, error) {
	stats := &models.ClientStats{}
	err := row.Scan(
		&stats.ConsumerID,
		&stats.HonoredReservations,
		&stats.NoShowsCount,
		&stats.LateCancellations,
		&stats.VeryLateCancellations,
		&stats.ReviewsPosted,
		&stats.FreeToPaidConversions,
		&stats.ConsecutiveHonored,
		&stats.ConsecutiveNoShows,
		&stats.TotalReservations,
		&stats.ReliabilityScore,
		&stats.IsSuspended,
		&stats.SuspendedUntil,
		&stats.SuspensionReason,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *ClientStatsRepository) Get(ctx context.Context, consumerID string) (*models.ClientStats, error) {
	query := `SELECT ` + clientStatsColumns + ` FROM client_stats WHERE consumer_id = $1`

	stats, err := scanClientStats(r.db.QueryRowContext(ctx, query, consumerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Mutate runs a read-modify-write on the stats row inside one transaction.
// The row is created lazily on first use, then locked FOR UPDATE so that a
// suspension check and the suspension write it guards cannot interleave with
// a concurrent scoring event for the same client.
func (r *ClientStatsRepository) Mutate(ctx context.Context, consumerID string, fn func(*models.ClientStats)) (*models.ClientStats, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO client_stats (consumer_id)
		VALUES ($1)
		ON CONFLICT (consumer_id) DO NOTHING`,
		consumerID,
	)
	if err != nil {
		return nil, err
	}

	stats, err := scanClientStats(tx.QueryRowContext(ctx,
		`SELECT `+clientStatsColumns+` FROM client_stats WHERE consumer_id = $1 FOR UPDATE`,
		consumerID,
	))
	if err != nil {
		return nil, err
	}

	fn(stats)

	_, err = tx.ExecContext(ctx, `
		UPDATE client_stats
		SET honored_reservations = $1,
		    no_shows_count = $2,
		    late_cancellations = $3,
		    very_late_cancellations = $4,
		    reviews_posted = $5,
		    free_to_paid_conversions = $6,
		    consecutive_honored = $7,
		    consecutive_no_shows = $8,
		    total_reservations = $9,
		    reliability_score = $10,
		    is_suspended = $11,
		    suspended_until = $12,
		    suspension_reason = $13,
		    updated_at = NOW()
		WHERE consumer_id = $14`,
		stats.HonoredReservations,
		stats.NoShowsCount,
		stats.LateCancellations,
		stats.VeryLateCancellations,
		stats.ReviewsPosted,
		stats.FreeToPaidConversions,
		stats.ConsecutiveHonored,
		stats.ConsecutiveNoShows,
		stats.TotalReservations,
		stats.ReliabilityScore,
		stats.IsSuspended,
		stats.SuspendedUntil,
		stats.SuspensionReason,
		consumerID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return stats, nil
}

// AutoLiftExpired clears suspension flags on every row whose suspension date
// has passed, returning the number of clients lifted. Safe to re-run: the
// predicate only matches rows still flagged.
func (r *ClientStatsRepository) AutoLiftExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE client_stats
		SET is_suspended = FALSE,
		    suspended_until = NULL,
		    suspension_reason = NULL,
		    updated_at = NOW()
		WHERE is_suspended = TRUE
		  AND suspended_until IS NOT NULL
		  AND suspended_until < $1`,
		now,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
