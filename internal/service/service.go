package service

import (
	"context"
	"time"

	"reserva/internal/cache"
	"reserva/internal/config"
	"reserva/internal/external"
	"reserva/internal/messaging"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// Store interfaces are declared on the consumer side so unit tests can
// substitute fakes without a database. The repository package satisfies all
// of them.

type ReservationStore interface {
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	GetByBookingRef(ctx context.Context, ref string) (*models.Reservation, error)
	ListByConsumer(ctx context.Context, consumerID string) ([]models.Reservation, error)
	HasActiveDuplicate(ctx context.Context, consumerID, establishmentID string, slotID *string, startsAt time.Time) (bool, error)
	CreateWithCapacity(ctx context.Context, res *models.Reservation) error
	Transition(ctx context.Context, id string, from, to models.ReservationStatus, patch *repository.ReservationPatch) (*models.Reservation, error)
	OccupyingPartySum(ctx context.Context, slotID string) (int, error)
}

type ClientStatsStore interface {
	Get(ctx context.Context, consumerID string) (*models.ClientStats, error)
	Mutate(ctx context.Context, consumerID string, fn func(*models.ClientStats)) (*models.ClientStats, error)
	AutoLiftExpired(ctx context.Context, now time.Time) (int64, error)
}

type DisputeStore interface {
	GetByID(ctx context.Context, id string) (*models.NoShowDispute, error)
	GetByReservationID(ctx context.Context, reservationID string) (*models.NoShowDispute, error)
	CreateIfAbsent(ctx context.Context, d *models.NoShowDispute) (*models.NoShowDispute, bool, error)
	UpdateStatus(ctx context.Context, id string, from, to models.DisputeStatus, patch *repository.DisputePatch) (*models.NoShowDispute, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.NoShowDispute, error)
}

type TrustStore interface {
	Get(ctx context.Context, establishmentID string) (*models.ProTrustScore, error)
	ApplySanction(ctx context.Context, establishmentID string, decide func(trust *models.ProTrustScore) *models.ProSanction) (*models.ProSanction, error)
	ListSanctions(ctx context.Context, establishmentID string) ([]models.ProSanction, error)
}

type WaitlistStore interface {
	Create(ctx context.Context, e *models.WaitlistEntry) error
	GetByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	NextActive(ctx context.Context, slotID string) (*models.WaitlistEntry, error)
	MarkOfferSent(ctx context.Context, id string, sentAt, expiresAt time.Time) (*models.WaitlistEntry, error)
	MarkStatus(ctx context.Context, id string, from, to models.WaitlistStatus) (*models.WaitlistEntry, error)
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error)
}

type ConsumerStore interface {
	GetByID(ctx context.Context, id string) (*models.Consumer, error)
	IsEstablishmentMember(ctx context.Context, consumerID, establishmentID string) (bool, error)
}

type EstablishmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Establishment, error)
	ProtectionWindowHours(ctx context.Context, id string, fallback int) (int, error)
}

type SlotStore interface {
	GetByID(ctx context.Context, id string) (*models.Slot, error)
}

// EventPublisher is the fire-and-forget event bus. Publish failures are
// logged by callers, never propagated.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// ScoreCache is the read-through cache for score snapshots.
type ScoreCache interface {
	GetScoreSnapshot(ctx context.Context, consumerID string) (*models.ScoreSnapshot, error)
	SetScoreSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error
	InvalidateScore(ctx context.Context, consumerID string) error
}

// EscrowGateway settles held deposits. Best-effort: failures are logged only.
type EscrowGateway interface {
	EnsureEscrowHold(reservationID, actor string) error
	Settle(reservationID, actor, reason string, refundPercent int) error
}

// Services bundles the domain services for handler and consumer wiring.
type Services struct {
	Reservations *ReservationService
	Scoring      *ScoringService
	Disputes     *DisputeService
	Sanctions    *SanctionService
	Waitlist     *WaitlistService
}

// NewServices wires the services against concrete infrastructure. valkey,
// nats and escrow may be nil; the services degrade to cache-less,
// publish-less operation.
func NewServices(
	repos *repository.Repositories,
	valkey *cache.ValkeyClient,
	nats *messaging.NATSClient,
	escrow *external.EscrowClient,
	m *metrics.Metrics,
	cfg config.TrustConfig,
) *Services {
	var events EventPublisher
	if nats != nil {
		events = nats
	}
	var scoreCache ScoreCache
	if valkey != nil {
		scoreCache = valkey
	}
	var escrowGw EscrowGateway
	if escrow != nil {
		escrowGw = escrow
	}

	scoring := NewScoringService(repos.ClientStats, scoreCache, events, m, cfg)
	sanctions := NewSanctionService(repos.Trust, events, m)
	waitlist := NewWaitlistService(repos.Waitlist, repos.Reservations, repos.Slots, events, m, cfg)
	reservations := NewReservationService(
		repos.Reservations, repos.Consumers, repos.Establishments, repos.Slots,
		scoring, waitlist, escrowGw, events, m, cfg,
	)
	disputes := NewDisputeService(repos.Disputes, reservations, scoring, sanctions, events, m, cfg)

	return &Services{
		Reservations: reservations,
		Scoring:      scoring,
		Disputes:     disputes,
		Sanctions:    sanctions,
		Waitlist:     waitlist,
	}
}
