package jobs

import (
	"context"
	"log/slog"
	"time"

	"reserva/internal/service"
)

// DisputeExpirationJob closes disputes whose client-response deadline passed
// without an answer. Silence is treated as confirmation of the no-show.
type DisputeExpirationJob struct {
	disputes *service.DisputeService
	ticker   *time.Ticker
	done     chan bool
}

func NewDisputeExpirationJob(disputes *service.DisputeService) *DisputeExpirationJob {
	return &DisputeExpirationJob{
		disputes: disputes,
		done:     make(chan bool),
	}
}

// Start begins the background job that sweeps expired disputes every minute
func (j *DisputeExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting dispute expiration job", "check_interval", "1m")

	j.ticker = time.NewTicker(time.Minute)

	// Run initial check immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Dispute expiration job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *DisputeExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *DisputeExpirationJob) sweep(ctx context.Context) {
	expired, err := j.disputes.ExpireUnresponded(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to expire unresponded disputes", "error", err)
		return
	}

	if expired > 0 {
		slog.Info("Expired unresponded disputes", "count", expired)
	}
}
