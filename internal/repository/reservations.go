package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reserva/internal/database"
	"reserva/internal/models"
	"reserva/internal/reserr"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	id, booking_ref, consumer_id, establishment_id, slot_id, status,
	payment_type, payment_status, deposit_cents, party_size, starts_at,
	protection_window_start, checked_in_at, meta, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	res := &models.Reservation{}
	var metaRaw []byte

	err := row.Scan(
		&res.ID,
		&res.BookingRef,
		&res.ConsumerID,
		&res.EstablishmentID,
		&res.SlotID,
		&res.Status,
		&res.PaymentType,
		&res.PaymentStatus,
		&res.DepositCents,
		&res.PartySize,
		&res.StartsAt,
		&res.ProtectionWindowStart,
		&res.CheckedInAt,
		&metaRaw,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &res.Meta); err != nil {
			return nil, fmt.Errorf("invalid meta payload for reservation %s: %w", res.ID, err)
		}
	}

	return res, nil
}

func terminalStatusStrings() []string {
	var out []string
	for _, s := range models.AllStatuses {
		if models.IsTerminal(s) {
			out = append(out, string(s))
		}
	}
	return out
}

func statusStrings(statuses []models.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *ReservationRepository) GetByBookingRef(ctx context.Context, ref string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE booking_ref = $1`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, ref))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *ReservationRepository) ListByConsumer(ctx context.Context, consumerID string) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE consumer_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, consumerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}

	return reservations, rows.Err()
}

// HasActiveDuplicate reports whether the consumer already holds a non-terminal
// reservation for the same slot, or for the same establishment at the same
// start time.
func (r *ReservationRepository) HasActiveDuplicate(ctx context.Context, consumerID, establishmentID string, slotID *string, startsAt time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE consumer_id = $1
			  AND status <> ALL($2)
			  AND (
			      (slot_id IS NOT NULL AND slot_id = $3)
			      OR (establishment_id = $4 AND starts_at = $5)
			  )
		)`

	err := r.db.QueryRowContext(ctx, query,
		consumerID,
		pq.Array(terminalStatusStrings()),
		slotID,
		establishmentID,
		startsAt,
	).Scan(&exists)

	return exists, err
}

// CreateWithCapacity inserts the reservation, re-checking remaining slot
// capacity inside the same transaction with the slot row locked. Two
// concurrent creations for the last unit of capacity serialize on the lock;
// the loser gets slot_full. Capacity is recomputed from the authoritative sum
// of party sizes over occupying statuses, never from a cached counter.
func (r *ReservationRepository) CreateWithCapacity(ctx context.Context, res *models.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if res.SlotID != nil && models.IsOccupying(res.Status) {
		var capacity int
		err := tx.QueryRowContext(ctx,
			`SELECT capacity FROM slots WHERE id = $1 FOR UPDATE`,
			*res.SlotID,
		).Scan(&capacity)
		if err == sql.ErrNoRows {
			return reserr.New(reserr.CodeSlotNotFound, "slot does not exist")
		}
		if err != nil {
			return err
		}

		var occupied int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(party_size), 0)
			FROM reservations
			WHERE slot_id = $1 AND status = ANY($2)`,
			*res.SlotID,
			pq.Array(statusStrings(models.OccupyingStatuses())),
		).Scan(&occupied)
		if err != nil {
			return err
		}

		if occupied+res.PartySize > capacity {
			return reserr.New(reserr.CodeSlotFull, "slot has insufficient capacity").WithMeta(map[string]any{
				"remaining":  capacity - occupied,
				"party_size": res.PartySize,
			})
		}
	}

	meta := res.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO reservations (
			booking_ref, consumer_id, establishment_id, slot_id, status,
			payment_type, payment_status, deposit_cents, party_size, starts_at,
			protection_window_start, meta
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		res.BookingRef,
		res.ConsumerID,
		res.EstablishmentID,
		res.SlotID,
		res.Status,
		res.PaymentType,
		res.PaymentStatus,
		res.DepositCents,
		res.PartySize,
		res.StartsAt,
		res.ProtectionWindowStart,
		metaRaw,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ReservationPatch carries optional column updates applied with a transition.
type ReservationPatch struct {
	PaymentStatus *models.PaymentStatus
	PaymentType   *models.PaymentType
	DepositCents  *int64
	CheckedInAt   *time.Time
	Meta          map[string]string
}

// Transition applies a compare-and-set status update: the write only lands if
// the row is still in the expected from status. A zero-row update means a
// concurrent request moved the reservation first.
func (r *ReservationRepository) Transition(ctx context.Context, id string, from, to models.ReservationStatus, patch *ReservationPatch) (*models.Reservation, error) {
	query := `UPDATE reservations SET status = $1, updated_at = NOW()`
	args := []interface{}{string(to)}
	argIndex := 2

	if patch != nil {
		if patch.PaymentStatus != nil {
			query += fmt.Sprintf(", payment_status = $%d", argIndex)
			args = append(args, string(*patch.PaymentStatus))
			argIndex++
		}
		if patch.PaymentType != nil {
			query += fmt.Sprintf(", payment_type = $%d", argIndex)
			args = append(args, string(*patch.PaymentType))
			argIndex++
		}
		if patch.DepositCents != nil {
			query += fmt.Sprintf(", deposit_cents = $%d", argIndex)
			args = append(args, *patch.DepositCents)
			argIndex++
		}
		if patch.CheckedInAt != nil {
			query += fmt.Sprintf(", checked_in_at = $%d", argIndex)
			args = append(args, *patch.CheckedInAt)
			argIndex++
		}
		if patch.Meta != nil {
			metaRaw, err := json.Marshal(patch.Meta)
			if err != nil {
				return nil, err
			}
			query += fmt.Sprintf(", meta = $%d", argIndex)
			args = append(args, metaRaw)
			argIndex++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d RETURNING "+reservationColumns, argIndex, argIndex+1)
	args = append(args, id, string(from))

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, reserr.New(reserr.CodeConflict, "reservation changed concurrently")
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// OccupyingPartySum returns the authoritative occupancy for a slot.
func (r *ReservationRepository) OccupyingPartySum(ctx context.Context, slotID string) (int, error) {
	var occupied int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(party_size), 0)
		FROM reservations
		WHERE slot_id = $1 AND status = ANY($2)`,
		slotID,
		pq.Array(statusStrings(models.OccupyingStatuses())),
	).Scan(&occupied)

	return occupied, err
}
