package jobs

import (
	"context"
	"log/slog"
	"time"

	"reserva/internal/service"
)

// SuspensionLiftJob clears client suspensions whose term has elapsed. Reads
// also lift lazily; the job keeps dormant accounts from staying flagged.
type SuspensionLiftJob struct {
	scoring *service.ScoringService
	ticker  *time.Ticker
	done    chan bool
}

func NewSuspensionLiftJob(scoring *service.ScoringService) *SuspensionLiftJob {
	return &SuspensionLiftJob{
		scoring: scoring,
		done:    make(chan bool),
	}
}

// Start begins the background job that lifts expired suspensions every 5 minutes
func (j *SuspensionLiftJob) Start(ctx context.Context) {
	slog.Info("Starting suspension lift job", "check_interval", "5m")

	j.ticker = time.NewTicker(5 * time.Minute)

	// Run initial check immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Suspension lift job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *SuspensionLiftJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *SuspensionLiftJob) sweep(ctx context.Context) {
	lifted, err := j.scoring.AutoLiftExpiredSuspensions(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to lift expired suspensions", "error", err)
		return
	}

	if lifted > 0 {
		slog.Info("Lifted expired suspensions", "count", lifted)
	}
}
