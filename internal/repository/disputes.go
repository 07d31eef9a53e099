package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"reserva/internal/database"
	"reserva/internal/models"
	"reserva/internal/reserr"
)

type DisputeRepository struct {
	db *database.DB
}

func NewDisputeRepository(db *database.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

const disputeColumns = `
	id, reservation_id, status, declared_by, declared_at,
	client_response_deadline, client_response, evidence, arbitrated_by,
	decision, resolved_at, created_at`

func scanDispute(row rowScanner) (*models.NoShowDispute, error) {
	d := &models.NoShowDispute{}
	var evidenceRaw []byte
	var clientResponse, decision, arbitratedBy sql.NullString

	err := row.Scan(
		&d.ID,
		&d.ReservationID,
		&d.Status,
		&d.DeclaredBy,
		&d.DeclaredAt,
		&d.ClientResponseDeadline,
		&clientResponse,
		&evidenceRaw,
		&arbitratedBy,
		&decision,
		&d.ResolvedAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if clientResponse.Valid {
		resp := models.ClientResponse(clientResponse.String)
		d.ClientResponse = &resp
	}
	if decision.Valid {
		dec := models.ArbitrationDecision(decision.String)
		d.Decision = &dec
	}
	if arbitratedBy.Valid {
		d.ArbitratedBy = &arbitratedBy.String
	}
	if len(evidenceRaw) > 0 {
		if err := json.Unmarshal(evidenceRaw, &d.Evidence); err != nil {
			return nil, fmt.Errorf("invalid evidence payload for dispute %s: %w", d.ID, err)
		}
	}

	return d, nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id string) (*models.NoShowDispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM no_show_disputes WHERE id = $1`

	d, err := scanDispute(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DisputeRepository) GetByReservationID(ctx context.Context, reservationID string) (*models.NoShowDispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM no_show_disputes WHERE reservation_id = $1`

	d, err := scanDispute(r.db.QueryRowContext(ctx, query, reservationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateIfAbsent inserts a dispute for the reservation, or returns the
// existing one when a dispute already exists. The unique constraint on
// reservation_id makes concurrent declarations converge on a single row:
// the losing insert falls through to a read of the winner.
func (r *DisputeRepository) CreateIfAbsent(ctx context.Context, d *models.NoShowDispute) (*models.NoShowDispute, bool, error) {
	evidenceRaw, err := json.Marshal(d.Evidence)
	if err != nil {
		return nil, false, err
	}
	if d.Evidence == nil {
		evidenceRaw = []byte("[]")
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO no_show_disputes (
			reservation_id, status, declared_by, declared_at,
			client_response_deadline, evidence
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reservation_id) DO NOTHING
		RETURNING `+disputeColumns,
		d.ReservationID,
		d.Status,
		d.DeclaredBy,
		d.DeclaredAt,
		d.ClientResponseDeadline,
		evidenceRaw,
	)

	created, err := scanDispute(row)
	if err == nil {
		return created, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	existing, err := r.GetByReservationID(ctx, d.ReservationID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, reserr.New(reserr.CodeStoreError, "dispute insert raced but no row found")
	}

	return existing, false, nil
}

// UpdateStatus is a compare-and-set on the dispute status, optionally
// recording the client response, decision and arbiter in the same write.
func (r *DisputeRepository) UpdateStatus(ctx context.Context, id string, from, to models.DisputeStatus, patch *DisputePatch) (*models.NoShowDispute, error) {
	query := `UPDATE no_show_disputes SET status = $1`
	args := []interface{}{string(to)}
	argIndex := 2

	if patch != nil {
		if patch.ClientResponse != nil {
			query += fmt.Sprintf(", client_response = $%d", argIndex)
			args = append(args, string(*patch.ClientResponse))
			argIndex++
		}
		if patch.Evidence != nil {
			evidenceRaw, err := json.Marshal(patch.Evidence)
			if err != nil {
				return nil, err
			}
			query += fmt.Sprintf(", evidence = $%d", argIndex)
			args = append(args, evidenceRaw)
			argIndex++
		}
		if patch.Decision != nil {
			query += fmt.Sprintf(", decision = $%d", argIndex)
			args = append(args, string(*patch.Decision))
			argIndex++
		}
		if patch.ArbitratedBy != nil {
			query += fmt.Sprintf(", arbitrated_by = $%d", argIndex)
			args = append(args, *patch.ArbitratedBy)
			argIndex++
		}
		if patch.ResolvedAt != nil {
			query += fmt.Sprintf(", resolved_at = $%d", argIndex)
			args = append(args, *patch.ResolvedAt)
			argIndex++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d RETURNING "+disputeColumns, argIndex, argIndex+1)
	args = append(args, id, string(from))

	d, err := scanDispute(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, reserr.New(reserr.CodeConflict, "dispute changed concurrently")
	}
	if err != nil {
		return nil, err
	}

	return d, nil
}

// DisputePatch carries optional column updates applied with a status change.
type DisputePatch struct {
	ClientResponse *models.ClientResponse
	Evidence       []string
	Decision       *models.ArbitrationDecision
	ArbitratedBy   *string
	ResolvedAt     *time.Time
}

// ListExpiredPending returns disputes still awaiting a client response whose
// deadline has passed. Used by the expiry cron; the stale-deadline predicate
// makes repeated runs idempotent.
func (r *DisputeRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.NoShowDispute, error) {
	query := `
		SELECT ` + disputeColumns + `
		FROM no_show_disputes
		WHERE status = $1 AND client_response_deadline < $2
		ORDER BY client_response_deadline ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, string(models.DisputePendingClientResponse), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.NoShowDispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, *d)
	}

	return disputes, rows.Err()
}
