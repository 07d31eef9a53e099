package repository

import (
	"context"
	"database/sql"

	"reserva/internal/database"
	"reserva/internal/models"
)

type SlotRepository struct {
	db *database.DB
}

func NewSlotRepository(db *database.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) GetByID(ctx context.Context, id string) (*models.Slot, error) {
	slot := &models.Slot{}
	query := `
		SELECT id, establishment_id, starts_at, capacity, created_at
		FROM slots
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID,
		&slot.EstablishmentID,
		&slot.StartsAt,
		&slot.Capacity,
		&slot.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return slot, err
}
