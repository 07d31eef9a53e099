package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reserva/cmd/consumers/jobs"
	"reserva/internal/config"
	"reserva/internal/consumers"
	"reserva/internal/external"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/service"
)

func main() {
	log.Println("Starting consumers service...")

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "reserva-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		log.Fatalf("Failed to create consumer service: %v", err)
	}

	if err := consumerService.Start(); err != nil {
		log.Fatalf("Failed to start consumers: %v", err)
	}

	// The cron jobs share the consumers' connections and run the same
	// service code the API uses, so business rules live in one place.
	escrowClient := external.NewEscrowClient(cfg.Escrow)
	services := service.NewServices(consumerService.Repositories(), nil, consumerService.NATS(), escrowClient, metrics.New(), cfg.Trust)

	ctx := context.Background()

	disputeJob := jobs.NewDisputeExpirationJob(services.Disputes)
	disputeJob.Start(ctx)

	suspensionJob := jobs.NewSuspensionLiftJob(services.Scoring)
	suspensionJob.Start(ctx)

	waitlistJob := jobs.NewWaitlistSweepJob(services.Waitlist)
	waitlistJob.Start(ctx)

	log.Println("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down consumers service...")

	disputeJob.Stop()
	suspensionJob.Stop()
	waitlistJob.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Consumers service stopped")
}
