package jobs

import (
	"context"
	"log/slog"
	"time"

	"reserva/internal/service"
)

// WaitlistSweepJob reaps waitlist offers that were never claimed and promotes
// the next entry in line for each affected slot.
type WaitlistSweepJob struct {
	waitlist *service.WaitlistService
	ticker   *time.Ticker
	done     chan bool
}

func NewWaitlistSweepJob(waitlist *service.WaitlistService) *WaitlistSweepJob {
	return &WaitlistSweepJob{
		waitlist: waitlist,
		done:     make(chan bool),
	}
}

// Start begins the background job that sweeps expired offers every minute
func (j *WaitlistSweepJob) Start(ctx context.Context) {
	slog.Info("Starting waitlist sweep job", "check_interval", "1m")

	j.ticker = time.NewTicker(time.Minute)

	// Run initial check immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Waitlist sweep job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *WaitlistSweepJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *WaitlistSweepJob) sweep(ctx context.Context) {
	reaped, err := j.waitlist.SweepExpiredOffers(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to sweep expired waitlist offers", "error", err)
		return
	}

	if reaped > 0 {
		slog.Info("Reaped expired waitlist offers", "count", reaped)
	}
}
