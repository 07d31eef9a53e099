package consumers

import (
	"context"
	"log/slog"

	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/messaging"
	"reserva/internal/models"
	"reserva/internal/repository"
)

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(db)

	notifyClient := external.NewNotifyClient(cfg.Notify)
	emailClient := external.NewEmailClient(cfg.Email)
	escrowClient := external.NewEscrowClient(cfg.Escrow)

	handlers := NewHandlers(repos, notifyClient, emailClient, escrowClient)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		handlers: handlers,
	}, nil
}

// Repositories exposes the shared repositories for the cron jobs that run in
// the same process.
func (cs *ConsumerService) Repositories() *repository.Repositories {
	return cs.repos
}

// NATS exposes the messaging client for the cron jobs.
func (cs *ConsumerService) NATS() *messaging.NATSClient {
	return cs.nats
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	if _, err := cs.nats.SubscribeQueue(models.EventReservationCreated, "consumers", cs.handlers.HandleReservationCreated); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventReservationTransition, "consumers", cs.handlers.HandleReservationTransition); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventReservationCheckedIn, "consumers", cs.handlers.HandleReservationCheckedIn); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventDisputeDeclared, "consumers", cs.handlers.HandleDisputeDeclared); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventDisputeResponded, "consumers", cs.handlers.HandleDisputeResponded); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventDisputeArbitrated, "consumers", cs.handlers.HandleDisputeArbitrated); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventDisputeExpired, "consumers", cs.handlers.HandleDisputeExpired); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventSanctionApplied, "consumers", cs.handlers.HandleSanctionApplied); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventClientSuspended, "consumers", cs.handlers.HandleClientSuspended); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventWaitlistOfferSent, "consumers", cs.handlers.HandleWaitlistOfferSent); err != nil {
		return err
	}

	if _, err := cs.nats.SubscribeQueue(models.EventWaitlistOfferExpired, "consumers", cs.handlers.HandleWaitlistOfferExpired); err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
