package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createConsumersTable,
		createEstablishmentsTable,
		createEstablishmentMembersTable,
		createSlotsTable,
		createReservationsTable,
		createClientStatsTable,
		createNoShowDisputesTable,
		createProTrustScoresTable,
		createProSanctionsTable,
		createWaitlistEntriesTable,
		createReservationIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createConsumersTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS consumers (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEstablishmentsTable = `
CREATE TABLE IF NOT EXISTS establishments (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name VARCHAR(255) NOT NULL,
    protection_window_hours INTEGER,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    deactivated_until TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEstablishmentMembersTable = `
CREATE TABLE IF NOT EXISTS establishment_members (
    establishment_id UUID NOT NULL REFERENCES establishments(id) ON DELETE CASCADE,
    consumer_id UUID NOT NULL REFERENCES consumers(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (establishment_id, consumer_id)
);`

const createSlotsTable = `
CREATE TABLE IF NOT EXISTS slots (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    establishment_id UUID NOT NULL REFERENCES establishments(id) ON DELETE CASCADE,
    starts_at TIMESTAMPTZ NOT NULL,
    capacity INTEGER NOT NULL CHECK (capacity > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createReservationsTable = `
CREATE TABLE IF NOT EXISTS reservations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    booking_ref VARCHAR(20) UNIQUE NOT NULL,
    consumer_id UUID NOT NULL REFERENCES consumers(id),
    establishment_id UUID NOT NULL REFERENCES establishments(id),
    slot_id UUID REFERENCES slots(id),
    status VARCHAR(32) NOT NULL DEFAULT 'requested',
    payment_type VARCHAR(10) NOT NULL DEFAULT 'free',
    payment_status VARCHAR(10) NOT NULL DEFAULT 'none',
    deposit_cents BIGINT NOT NULL DEFAULT 0,
    party_size INTEGER NOT NULL CHECK (party_size > 0),
    starts_at TIMESTAMPTZ NOT NULL,
    protection_window_start TIMESTAMPTZ,
    checked_in_at TIMESTAMPTZ,
    meta JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (payment_type IN ('free', 'paid')),
    CHECK (payment_status IN ('none', 'pending', 'paid', 'refunded'))
);`

const createClientStatsTable = `
CREATE TABLE IF NOT EXISTS client_stats (
    consumer_id UUID PRIMARY KEY REFERENCES consumers(id),
    honored_reservations INTEGER NOT NULL DEFAULT 0 CHECK (honored_reservations >= 0),
    no_shows_count INTEGER NOT NULL DEFAULT 0 CHECK (no_shows_count >= 0),
    late_cancellations INTEGER NOT NULL DEFAULT 0 CHECK (late_cancellations >= 0),
    very_late_cancellations INTEGER NOT NULL DEFAULT 0 CHECK (very_late_cancellations >= 0),
    reviews_posted INTEGER NOT NULL DEFAULT 0 CHECK (reviews_posted >= 0),
    free_to_paid_conversions INTEGER NOT NULL DEFAULT 0 CHECK (free_to_paid_conversions >= 0),
    consecutive_honored INTEGER NOT NULL DEFAULT 0 CHECK (consecutive_honored >= 0),
    consecutive_no_shows INTEGER NOT NULL DEFAULT 0 CHECK (consecutive_no_shows >= 0),
    total_reservations INTEGER NOT NULL DEFAULT 0 CHECK (total_reservations >= 0),
    reliability_score INTEGER NOT NULL DEFAULT 60,
    is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
    suspended_until TIMESTAMPTZ,
    suspension_reason VARCHAR(64),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createNoShowDisputesTable = `
CREATE TABLE IF NOT EXISTS no_show_disputes (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    reservation_id UUID NOT NULL REFERENCES reservations(id),
    status VARCHAR(32) NOT NULL DEFAULT 'pending_client_response',
    declared_by VARCHAR(10) NOT NULL,
    declared_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    client_response_deadline TIMESTAMPTZ NOT NULL,
    client_response VARCHAR(20),
    evidence JSONB NOT NULL DEFAULT '[]'::jsonb,
    arbitrated_by UUID,
    decision VARCHAR(20),
    resolved_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (declared_by IN ('pro', 'system')),

    UNIQUE (reservation_id)
);`

const createProTrustScoresTable = `
CREATE TABLE IF NOT EXISTS pro_trust_scores (
    establishment_id UUID PRIMARY KEY REFERENCES establishments(id),
    false_no_show_count INTEGER NOT NULL DEFAULT 0 CHECK (false_no_show_count >= 0),
    sanctions_count INTEGER NOT NULL DEFAULT 0 CHECK (sanctions_count >= 0),
    current_sanction VARCHAR(20) NOT NULL DEFAULT 'none',
    deactivated_until TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createProSanctionsTable = `
CREATE TABLE IF NOT EXISTS pro_sanctions (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    establishment_id UUID NOT NULL REFERENCES establishments(id),
    dispute_id UUID NOT NULL REFERENCES no_show_disputes(id),
    sanction_type VARCHAR(20) NOT NULL,
    reason TEXT NOT NULL,
    imposed_by VARCHAR(64) NOT NULL,
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createWaitlistEntriesTable = `
CREATE TABLE IF NOT EXISTS waitlist_entries (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    slot_id UUID NOT NULL REFERENCES slots(id),
    reservation_id UUID NOT NULL REFERENCES reservations(id),
    consumer_id UUID NOT NULL REFERENCES consumers(id),
    status VARCHAR(20) NOT NULL DEFAULT 'waiting',
    position INTEGER NOT NULL,
    offer_sent_at TIMESTAMPTZ,
    offer_expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('waiting', 'queued', 'offer_sent', 'offer_expired', 'removed')),

    UNIQUE (reservation_id)
);`

const createReservationIndexes = `
CREATE INDEX IF NOT EXISTS reservations_slot_status_idx
    ON reservations (slot_id, status);
CREATE INDEX IF NOT EXISTS reservations_consumer_idx
    ON reservations (consumer_id, starts_at);
CREATE INDEX IF NOT EXISTS disputes_pending_deadline_idx
    ON no_show_disputes (client_response_deadline)
    WHERE status = 'pending_client_response';
CREATE INDEX IF NOT EXISTS client_stats_suspended_idx
    ON client_stats (suspended_until)
    WHERE is_suspended = TRUE;
CREATE INDEX IF NOT EXISTS waitlist_slot_position_idx
    ON waitlist_entries (slot_id, position)
    WHERE status IN ('waiting', 'queued', 'offer_sent');`
