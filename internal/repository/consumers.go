package repository

import (
	"context"
	"database/sql"

	"reserva/internal/database"
	"reserva/internal/models"
)

type ConsumerRepository struct {
	db *database.DB
}

func NewConsumerRepository(db *database.DB) *ConsumerRepository {
	return &ConsumerRepository{db: db}
}

func (r *ConsumerRepository) GetByID(ctx context.Context, id string) (*models.Consumer, error) {
	consumer := &models.Consumer{}
	query := `
		SELECT id, email, password_hash, email_verified, is_active, registered_at
		FROM consumers
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&consumer.ID,
		&consumer.Email,
		&consumer.PasswordHash,
		&consumer.EmailVerified,
		&consumer.IsActive,
		&consumer.RegisteredAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return consumer, err
}

func (r *ConsumerRepository) GetByEmail(ctx context.Context, email string) (*models.Consumer, error) {
	consumer := &models.Consumer{}
	query := `
		SELECT id, email, password_hash, email_verified, is_active, registered_at
		FROM consumers
		WHERE email = $1`

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&consumer.ID,
		&consumer.Email,
		&consumer.PasswordHash,
		&consumer.EmailVerified,
		&consumer.IsActive,
		&consumer.RegisteredAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return consumer, err
}

// IsEstablishmentMember reports whether the consumer belongs to the
// establishment's staff. Members cannot book their own establishment.
func (r *ConsumerRepository) IsEstablishmentMember(ctx context.Context, consumerID, establishmentID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM establishment_members
			WHERE consumer_id = $1 AND establishment_id = $2
		)`

	err := r.db.QueryRowContext(ctx, query, consumerID, establishmentID).Scan(&exists)
	return exists, err
}
