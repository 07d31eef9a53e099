package repository

import (
	"context"
	"database/sql"

	"reserva/internal/database"
	"reserva/internal/models"
)

type TrustRepository struct {
	db *database.DB
}

func NewTrustRepository(db *database.DB) *TrustRepository {
	return &TrustRepository{db: db}
}

func (r *TrustRepository) Get(ctx context.Context, establishmentID string) (*models.ProTrustScore, error) {
	trust := &models.ProTrustScore{}
	query := `
		SELECT establishment_id, false_no_show_count, sanctions_count,
		       current_sanction, deactivated_until, updated_at
		FROM pro_trust_scores
		WHERE establishment_id = $1`

	err := r.db.QueryRowContext(ctx, query, establishmentID).Scan(
		&trust.EstablishmentID,
		&trust.FalseNoShowCount,
		&trust.SanctionsCount,
		&trust.CurrentSanction,
		&trust.DeactivatedUntil,
		&trust.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return trust, err
}

// ApplySanction runs the sanction decision inside one transaction: the trust
// row is created lazily, locked FOR UPDATE so priors cannot be read twice by
// concurrent arbitrations, then the decide callback inspects priors and
// returns the sanction row to append. The trust counters, the immutable
// sanction entry, and the establishment deactivation all commit together.
func (r *TrustRepository) ApplySanction(ctx context.Context, establishmentID string, decide func(trust *models.ProTrustScore) *models.ProSanction) (*models.ProSanction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pro_trust_scores (establishment_id)
		VALUES ($1)
		ON CONFLICT (establishment_id) DO NOTHING`,
		establishmentID,
	)
	if err != nil {
		return nil, err
	}

	trust := &models.ProTrustScore{}
	err = tx.QueryRowContext(ctx, `
		SELECT establishment_id, false_no_show_count, sanctions_count,
		       current_sanction, deactivated_until, updated_at
		FROM pro_trust_scores
		WHERE establishment_id = $1
		FOR UPDATE`,
		establishmentID,
	).Scan(
		&trust.EstablishmentID,
		&trust.FalseNoShowCount,
		&trust.SanctionsCount,
		&trust.CurrentSanction,
		&trust.DeactivatedUntil,
		&trust.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sanction := decide(trust)

	err = tx.QueryRowContext(ctx, `
		INSERT INTO pro_sanctions (
			establishment_id, dispute_id, sanction_type, reason, imposed_by,
			starts_at, ends_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		sanction.EstablishmentID,
		sanction.DisputeID,
		sanction.SanctionType,
		sanction.Reason,
		sanction.ImposedBy,
		sanction.StartsAt,
		sanction.EndsAt,
	).Scan(&sanction.ID, &sanction.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pro_trust_scores
		SET false_no_show_count = $1,
		    sanctions_count = $2,
		    current_sanction = $3,
		    deactivated_until = $4,
		    updated_at = NOW()
		WHERE establishment_id = $5`,
		trust.FalseNoShowCount,
		trust.SanctionsCount,
		trust.CurrentSanction,
		trust.DeactivatedUntil,
		establishmentID,
	)
	if err != nil {
		return nil, err
	}

	if sanction.EndsAt != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE establishments
			SET deactivated_until = $1
			WHERE id = $2`,
			*sanction.EndsAt,
			establishmentID,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return sanction, nil
}

// ListSanctions returns the immutable sanction history for an establishment.
func (r *TrustRepository) ListSanctions(ctx context.Context, establishmentID string) ([]models.ProSanction, error) {
	query := `
		SELECT id, establishment_id, dispute_id, sanction_type, reason,
		       imposed_by, starts_at, ends_at, created_at
		FROM pro_sanctions
		WHERE establishment_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sanctions []models.ProSanction
	for rows.Next() {
		var s models.ProSanction
		err := rows.Scan(
			&s.ID,
			&s.EstablishmentID,
			&s.DisputeID,
			&s.SanctionType,
			&s.Reason,
			&s.ImposedBy,
			&s.StartsAt,
			&s.EndsAt,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sanctions = append(sanctions, s)
	}

	return sanctions, rows.Err()
}
