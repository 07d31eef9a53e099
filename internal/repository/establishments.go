package repository

import (
	"context"
	"database/sql"

	"reserva/internal/database"
	"reserva/internal/models"
)

type EstablishmentRepository struct {
	db *database.DB
}

func NewEstablishmentRepository(db *database.DB) *EstablishmentRepository {
	return &EstablishmentRepository{db: db}
}

func (r *EstablishmentRepository) GetByID(ctx context.Context, id string) (*models.Establishment, error) {
	e := &models.Establishment{}
	query := `
		SELECT id, name, protection_window_hours, is_active, deactivated_until, created_at
		FROM establishments
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.Name,
		&e.ProtectionWindowHours,
		&e.IsActive,
		&e.DeactivatedUntil,
		&e.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return e, err
}

// ProtectionWindowHours returns the establishment's configured protection
// window, or fallback when none is set. This replaces the original policy
// lookup RPC with a column read.
func (r *EstablishmentRepository) ProtectionWindowHours(ctx context.Context, id string, fallback int) (int, error) {
	var hours *int
	query := `SELECT protection_window_hours FROM establishments WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&hours)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	if hours == nil {
		return fallback, nil
	}
	return *hours, nil
}
