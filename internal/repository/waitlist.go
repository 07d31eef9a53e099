package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"reserva/internal/database"
	"reserva/internal/models"
	"reserva/internal/reserr"
)

type WaitlistRepository struct {
	db *database.DB
}

func NewWaitlistRepository(db *database.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

const waitlistColumns = `
	id, slot_id, reservation_id, consumer_id, status, position,
	offer_sent_at, offer_expires_at, created_at`

func scanWaitlistEntry(row rowScanner) (*models.WaitlistEntry, error) {
	e := &models.WaitlistEntry{}
	err := row.Scan(
		&e.ID,
		&e.SlotID,
		&e.ReservationID,
		&e.ConsumerID,
		&e.Status,
		&e.Position,
		&e.OfferSentAt,
		&e.OfferExpiresAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create appends the entry at the back of the slot's queue. Position
// assignment serializes on the slot row: aggregates cannot carry a locking
// clause, so the parent lock is what keeps concurrent joins from reading the
// same tail.
func (r *WaitlistRepository) Create(ctx context.Context, e *models.WaitlistEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var slotID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM slots WHERE id = $1 FOR UPDATE`, e.SlotID).Scan(&slotID)
	if err == sql.ErrNoRows {
		return reserr.New(reserr.CodeSlotNotFound, "slot not found")
	}
	if err != nil {
		return err
	}

	var maxPosition int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0)
		FROM waitlist_entries
		WHERE slot_id = $1`,
		e.SlotID,
	).Scan(&maxPosition)
	if err != nil {
		return err
	}

	e.Position = maxPosition + 1
	e.Status = models.WaitlistWaiting

	err = tx.QueryRowContext(ctx, `
		INSERT INTO waitlist_entries (slot_id, reservation_id, consumer_id, status, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.SlotID,
		e.ReservationID,
		e.ConsumerID,
		e.Status,
		e.Position,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if reserr.IsDuplicateKey(err) {
			return reserr.New(reserr.CodeConflict, "reservation already waitlisted")
		}
		return err
	}

	return tx.Commit()
}

func (r *WaitlistRepository) GetByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = $1`

	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NextActive returns the highest-priority live entry for a slot: FIFO by
// position, tie-broken by creation time. Includes offer_sent entries so the
// promotion loop can reap stale offers before moving on.
func (r *WaitlistRepository) NextActive(ctx context.Context, slotID string) (*models.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE slot_id = $1 AND status = ANY($2)
		ORDER BY position ASC, created_at ASC
		LIMIT 1`

	statuses := pq.Array([]string{
		string(models.WaitlistWaiting),
		string(models.WaitlistQueued),
		string(models.WaitlistOfferSent),
	})

	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query, slotID, statuses))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MarkOfferSent promotes a waiting/queued entry to offer_sent. Compare-and-set
// on the current status so two promotion loops cannot double-offer.
func (r *WaitlistRepository) MarkOfferSent(ctx context.Context, id string, sentAt, expiresAt time.Time) (*models.WaitlistEntry, error) {
	query := `
		UPDATE waitlist_entries
		SET status = $1, offer_sent_at = $2, offer_expires_at = $3
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + waitlistColumns

	statuses := pq.Array([]string{
		string(models.WaitlistWaiting),
		string(models.WaitlistQueued),
	})

	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query,
		string(models.WaitlistOfferSent), sentAt, expiresAt, id, statuses))
	if err == sql.ErrNoRows {
		return nil, reserr.New(reserr.CodeConflict, "waitlist entry changed concurrently")
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MarkStatus moves an entry from one status to another, clearing the offer
// window when the entry leaves offer_sent.
func (r *WaitlistRepository) MarkStatus(ctx context.Context, id string, from, to models.WaitlistStatus) (*models.WaitlistEntry, error) {
	query := `
		UPDATE waitlist_entries
		SET status = $1,
		    offer_expires_at = CASE WHEN $1 = 'offer_sent' THEN offer_expires_at ELSE NULL END
		WHERE id = $2 AND status = $3
		RETURNING ` + waitlistColumns

	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query, string(to), id, string(from)))
	if err == sql.ErrNoRows {
		return nil, reserr.New(reserr.CodeConflict, "waitlist entry changed concurrently")
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpiredOffers returns offer_sent entries past their expiry. Used by the
// sweep cron; lazy reads reap the same entries on contact, so both paths must
// tolerate losing the race.
func (r *WaitlistRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE status = $1 AND offer_expires_at IS NOT NULL AND offer_expires_at < $2
		ORDER BY offer_expires_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, string(models.WaitlistOfferSent), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}
