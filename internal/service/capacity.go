package service

import (
	"context"
	"time"

	"reserva/internal/config"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/reserr"
)

const sweepBatchSize = 100

// WaitlistService queues reservations for full slots and promotes them when
// capacity frees up. Remaining capacity is always recomputed from the
// authoritative sum of occupying party sizes, never from a cached counter.
type WaitlistService struct {
	waitlist     WaitlistStore
	reservations ReservationStore
	slots        SlotStore
	events       EventPublisher
	metrics      *metrics.Metrics
	cfg          config.TrustConfig
}

func NewWaitlistService(waitlist WaitlistStore, reservations ReservationStore, slots SlotStore, events EventPublisher, m *metrics.Metrics, cfg config.TrustConfig) *WaitlistService {
	return &WaitlistService{
		waitlist:     waitlist,
		reservations: reservations,
		slots:        slots,
		events:       events,
		metrics:      m,
		cfg:          cfg,
	}
}

// Allocate answers whether partySize fits the slot right now. Advisory for
// waitlist claims; creation runs the same check inside the insert
// transaction with the slot row locked.
func (s *WaitlistService) Allocate(ctx context.Context, slotID string, partySize int) error {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return reserr.Store(err)
	}
	if slot == nil {
		return reserr.New(reserr.CodeSlotNotFound, "slot not found")
	}

	occupied, err := s.reservations.OccupyingPartySum(ctx, slotID)
	if err != nil {
		return reserr.Store(err)
	}
	remaining := slot.Capacity - occupied
	if partySize > remaining {
		return reserr.New(reserr.CodeSlotFull, "slot has insufficient capacity").
			WithMeta(map[string]any{"remaining": remaining, "party_size": partySize})
	}
	return nil
}

// Join queues a waitlisted reservation at the back of its slot's queue.
func (s *WaitlistService) Join(ctx context.Context, res *models.Reservation) (*models.WaitlistEntry, error) {
	if res.SlotID == nil {
		return nil, reserr.New(reserr.CodeInvalidArgument, "reservation has no slot")
	}
	entry := &models.WaitlistEntry{
		SlotID:        *res.SlotID,
		ReservationID: res.ID,
		ConsumerID:    res.ConsumerID,
	}
	if err := s.waitlist.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// PromoteNext offers freed capacity to the front of the queue. Promotion is
// a loop: an entry whose offer already expired is reaped and the next entry
// is tried. The loop stops at the first live offer, the first entry that
// does not fit, or an empty queue.
func (s *WaitlistService) PromoteNext(ctx context.Context, slotID string) error {
	now := time.Now().UTC()

	for {
		entry, err := s.waitlist.NextActive(ctx, slotID)
		if err != nil {
			return reserr.Store(err)
		}
		if entry == nil {
			return nil
		}

		if entry.Status == models.WaitlistOfferSent {
			if entry.OfferExpiresAt != nil && entry.OfferExpiresAt.Before(now) {
				if !s.reapOffer(ctx, entry) {
					// The entry did not move; NextActive would return it
					// again. Stop the pass and let the sweep retry.
					return nil
				}
				continue
			}
			// A live offer is already outstanding.
			return nil
		}

		res, err := s.reservations.GetByID(ctx, entry.ReservationID)
		if err != nil {
			return reserr.Store(err)
		}
		if res == nil || models.IsTerminal(res.Status) {
			if _, err := s.waitlist.MarkStatus(ctx, entry.ID, entry.Status, models.WaitlistRemoved); err != nil {
				// A lost CAS means someone else moved the entry and the next
				// read will reflect it; a store error would return the same
				// entry forever, so it ends the pass.
				if !reserr.IsCode(err, reserr.CodeConflict) {
					return reserr.Store(err)
				}
			}
			continue
		}

		if err := s.Allocate(ctx, slotID, res.PartySize); err != nil {
			if reserr.IsCode(err, reserr.CodeSlotFull) {
				return nil
			}
			return err
		}

		expiresAt := now.Add(time.Duration(s.cfg.WaitlistOfferMinutes) * time.Minute)
		sent, err := s.waitlist.MarkOfferSent(ctx, entry.ID, now, expiresAt)
		if err != nil {
			if reserr.IsCode(err, reserr.CodeConflict) {
				// Lost the race to a concurrent promoter.
				return nil
			}
			return err
		}

		s.metrics.IncWaitlistOffer()
		s.publish(ctx, models.EventWaitlistOfferSent, models.WaitlistOfferSentEvent{
			EntryID:        sent.ID,
			SlotID:         sent.SlotID,
			ReservationID:  sent.ReservationID,
			ConsumerID:     sent.ConsumerID,
			OfferExpiresAt: expiresAt,
			Timestamp:      now,
		})
		return nil
	}
}

// ClaimOffer lets the consumer accept a sent offer before it expires. The
// capacity check re-runs at claim time; the reservation then re-enters the
// lifecycle as requested, pending establishment validation.
func (s *WaitlistService) ClaimOffer(ctx context.Context, consumerID, entryID string, transition func(ctx context.Context, res *models.Reservation, to models.ReservationStatus, actor, reason string) (*models.Reservation, error)) (*models.Reservation, error) {
	entry, err := s.waitlist.GetByID(ctx, entryID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if entry == nil {
		return nil, reserr.New(reserr.CodeOfferNotFound, "waitlist offer not found")
	}
	if entry.ConsumerID != consumerID {
		return nil, reserr.New(reserr.CodeForbidden, "offer belongs to another consumer")
	}
	if entry.Status != models.WaitlistOfferSent {
		return nil, reserr.New(reserr.CodeOfferNotFound, "no offer is outstanding for this entry")
	}

	now := time.Now().UTC()
	if entry.OfferExpiresAt != nil && entry.OfferExpiresAt.Before(now) {
		s.reapOffer(ctx, entry)
		if err := s.PromoteNext(ctx, entry.SlotID); err != nil {
			logger.WithContext(ctx).Error("waitlist promotion failed", "slot_id", entry.SlotID, "error", err)
		}
		return nil, reserr.New(reserr.CodeOfferExpired, "the offer has expired")
	}

	res, err := s.reservations.GetByID(ctx, entry.ReservationID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if res == nil {
		return nil, reserr.New(reserr.CodeReservationNotFound, "reservation not found")
	}

	if err := s.Allocate(ctx, entry.SlotID, res.PartySize); err != nil {
		return nil, err
	}

	updated, err := transition(ctx, res, models.StatusRequested, ActorClient, "waitlist_claim")
	if err != nil {
		return nil, err
	}
	if _, err := s.waitlist.MarkStatus(ctx, entry.ID, models.WaitlistOfferSent, models.WaitlistRemoved); err != nil {
		logger.WithContext(ctx).Warn("claimed waitlist entry removal failed", "entry_id", entry.ID, "error", err)
	}
	return updated, nil
}

// SweepExpiredOffers reaps offers past their expiry and retries promotion on
// the affected slots. Cron entry point; idempotent and safe alongside the
// lazy reaping in PromoteNext and ClaimOffer.
func (s *WaitlistService) SweepExpiredOffers(ctx context.Context, now time.Time) (int, error) {
	entries, err := s.waitlist.ListExpiredOffers(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, reserr.Store(err)
	}

	reaped := 0
	slots := make(map[string]bool)
	for i := range entries {
		entry := &entries[i]
		if s.reapOffer(ctx, entry) {
			reaped++
			slots[entry.SlotID] = true
		}
	}

	for slotID := range slots {
		if err := s.PromoteNext(ctx, slotID); err != nil {
			logger.WithContext(ctx).Error("waitlist promotion failed", "slot_id", slotID, "error", err)
		}
	}
	return reaped, nil
}

// reapOffer expires an offer and closes its waitlisted reservation. Returns
// false when a concurrent reader already reaped it.
func (s *WaitlistService) reapOffer(ctx context.Context, entry *models.WaitlistEntry) bool {
	if _, err := s.waitlist.MarkStatus(ctx, entry.ID, models.WaitlistOfferSent, models.WaitlistOfferExpired); err != nil {
		if !reserr.IsCode(err, reserr.CodeConflict) {
			logger.WithContext(ctx).Error("waitlist offer reap failed", "entry_id", entry.ID, "error", err)
		}
		return false
	}

	if res, err := s.reservations.GetByID(ctx, entry.ReservationID); err == nil && res != nil && res.Status == models.StatusWaitlist {
		if _, err := s.reservations.Transition(ctx, res.ID, models.StatusWaitlist, models.StatusCancelledWaitlistExpired, nil); err != nil {
			logger.WithContext(ctx).Warn("waitlisted reservation close failed", "reservation_id", res.ID, "error", err)
		}
	}

	s.metrics.IncWaitlistReaped()
	s.publish(ctx, models.EventWaitlistOfferExpired, models.WaitlistOfferExpiredEvent{
		EntryID:       entry.ID,
		SlotID:        entry.SlotID,
		ReservationID: entry.ReservationID,
		ConsumerID:    entry.ConsumerID,
		Timestamp:     time.Now().UTC(),
	})
	return true
}

func (s *WaitlistService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("event publish failed", "subject", subject, "error", err)
	}
}
