package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"reserva/internal/config"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/repository"
	"reserva/internal/reserr"
)

// Actor labels for transition events.
const (
	ActorClient = "client"
	ActorPro    = "pro"
	ActorAdmin  = "admin"
	ActorSystem = "system"
)

// ReservationService owns the reservation lifecycle: the guarded creation
// chain and every status transition. Side effects (scoring, events, escrow,
// waitlist promotion) run after the primary write commits and never undo it.
type ReservationService struct {
	reservations   ReservationStore
	consumers      ConsumerStore
	establishments EstablishmentStore
	slots          SlotStore
	scoring        *ScoringService
	waitlist       *WaitlistService
	escrow         EscrowGateway
	events         EventPublisher
	metrics        *metrics.Metrics
	cfg            config.TrustConfig
}

func NewReservationService(
	reservations ReservationStore,
	consumers ConsumerStore,
	establishments EstablishmentStore,
	slots SlotStore,
	scoring *ScoringService,
	waitlist *WaitlistService,
	escrow EscrowGateway,
	events EventPublisher,
	m *metrics.Metrics,
	cfg config.TrustConfig,
) *ReservationService {
	return &ReservationService{
		reservations:   reservations,
		consumers:      consumers,
		establishments: establishments,
		slots:          slots,
		scoring:        scoring,
		waitlist:       waitlist,
		escrow:         escrow,
		events:         events,
		metrics:        m,
		cfg:            cfg,
	}
}

// NewBookingRef builds a human-readable booking reference from uuid material.
func NewBookingRef() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "RSV-" + strings.ToUpper(raw[:8])
}

func validateMeta(meta map[string]string) *reserr.Error {
	for k := range meta {
		if !models.MetaAllowedKeys[k] {
			return reserr.Newf(reserr.CodeInvalidArgument, "meta key %q is not allowed", k)
		}
	}
	return nil
}

// Create runs the ordered guard chain and inserts the reservation. Guards
// short-circuit: a failing step returns its typed error with no side effects
// from later steps. The capacity check happens inside the insert transaction
// with the slot row locked, so concurrent requests cannot both take the last
// unit of capacity.
func (s *ReservationService) Create(ctx context.Context, consumerID string, req *models.CreateReservationRequest) (*models.CreateReservationResponse, error) {
	consumer, err := s.consumers.GetByID(ctx, consumerID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if consumer == nil {
		return nil, s.reject(reserr.New(reserr.CodeClientNotFound, "consumer not found"))
	}
	if !consumer.EmailVerified {
		return nil, s.reject(reserr.New(reserr.CodeEmailNotVerified, "email address is not verified"))
	}

	if req.PartySize <= 0 {
		return nil, s.reject(reserr.New(reserr.CodeInvalidPartySize, "party size must be positive"))
	}
	if err := validateMeta(req.Meta); err != nil {
		return nil, s.reject(err)
	}

	if suspended, until := s.scoring.IsClientSuspended(ctx, consumerID); suspended {
		expiry := "indefinite"
		if until != nil {
			expiry = until.Format(time.RFC3339)
		}
		return nil, s.reject(reserr.Newf(reserr.CodeUserSuspended, "account suspended until %s", expiry))
	}

	member, err := s.consumers.IsEstablishmentMember(ctx, consumerID, req.EstablishmentID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if member {
		return nil, s.reject(reserr.New(reserr.CodeSelfBookingForbidden, "members cannot book their own establishment"))
	}

	duplicate, err := s.reservations.HasActiveDuplicate(ctx, consumerID, req.EstablishmentID, req.SlotID, req.StartsAt)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if duplicate {
		return nil, s.reject(reserr.New(reserr.CodeDoubleBooking, "an active reservation already exists for this time"))
	}

	if req.PartySize > s.cfg.MaxPartySize {
		return nil, s.reject(reserr.Newf(reserr.CodeRedirectToQuote, "groups over %d require a quote", s.cfg.MaxPartySize))
	}

	res, entry, err := s.allocate(ctx, consumerID, req)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.EventReservationCreated, models.ReservationCreatedEvent{
		ReservationID:   res.ID,
		BookingRef:      res.BookingRef,
		ConsumerID:      res.ConsumerID,
		EstablishmentID: res.EstablishmentID,
		Status:          res.Status,
		PartySize:       res.PartySize,
		Timestamp:       time.Now().UTC(),
	})

	resp := &models.CreateReservationResponse{
		ID:         res.ID,
		BookingRef: res.BookingRef,
		Status:     res.Status,
	}
	if entry != nil {
		// The entry id is what the consumer later presents to claim an
		// offer; the position tells them where in line they landed.
		resp.Waitlisted = true
		resp.WaitlistEntryID = entry.ID
		resp.WaitlistPosition = entry.Position
	}
	return resp, nil
}

// allocate inserts the row, retrying once as a waitlist entry when the slot
// is full and the caller opted in. A non-nil entry means the reservation
// went to the waitlist instead of occupying capacity.
func (s *ReservationService) allocate(ctx context.Context, consumerID string, req *models.CreateReservationRequest) (*models.Reservation, *models.WaitlistEntry, error) {
	if req.SlotID != nil {
		slot, err := s.slots.GetByID(ctx, *req.SlotID)
		if err != nil {
			return nil, nil, reserr.Store(err)
		}
		if slot == nil {
			return nil, nil, s.reject(reserr.New(reserr.CodeSlotNotFound, "slot not found"))
		}
		if slot.EstablishmentID != req.EstablishmentID {
			return nil, nil, s.reject(reserr.New(reserr.CodeInvalidArgument, "slot belongs to another establishment"))
		}
	}

	now := time.Now().UTC()
	res := &models.Reservation{
		BookingRef:            NewBookingRef(),
		ConsumerID:            consumerID,
		EstablishmentID:       req.EstablishmentID,
		SlotID:                req.SlotID,
		Status:                models.StatusRequested,
		PaymentType:           models.PaymentFree,
		PaymentStatus:         models.PaymentStatusNone,
		PartySize:             req.PartySize,
		StartsAt:              req.StartsAt,
		ProtectionWindowStart: &now,
		Meta:                  req.Meta,
	}
	if req.PaymentType == models.PaymentPaid || req.DepositCents > 0 {
		res.PaymentType = models.PaymentPaid
		res.PaymentStatus = models.PaymentStatusPending
		res.DepositCents = req.DepositCents
	}

	err := s.reservations.CreateWithCapacity(ctx, res)
	if err == nil {
		return res, nil, nil
	}
	if !reserr.IsCode(err, reserr.CodeSlotFull) || !req.JoinWaitlist || req.SlotID == nil {
		if reserr.IsCode(err, reserr.CodeSlotFull) {
			s.metrics.IncRejection(string(reserr.CodeSlotFull))
		}
		return nil, nil, err
	}

	// Full slot, client opted into the waitlist: the reservation is parked
	// in a non-occupying status and queued.
	res.Status = models.StatusWaitlist
	if err := s.reservations.CreateWithCapacity(ctx, res); err != nil {
		return nil, nil, err
	}
	entry, err := s.waitlist.Join(ctx, res)
	if err != nil {
		// The reservation row exists but never entered the queue; close it
		// rather than strand it where no promotion will ever find it.
		if _, cerr := s.reservations.Transition(ctx, res.ID, models.StatusWaitlist, models.StatusCancelled, nil); cerr != nil {
			logger.WithContext(ctx).Error("waitlisted reservation close failed", "reservation_id", res.ID, "error", cerr)
		}
		return nil, nil, err
	}
	return res, entry, nil
}

// Transition applies a guarded status change and fires the side-effect
// pipeline. Exported because the dispute workflow drives reservation status
// through the same path.
func (s *ReservationService) Transition(ctx context.Context, res *models.Reservation, to models.ReservationStatus, actor, reason string, patch *repository.ReservationPatch) (*models.Reservation, error) {
	if res.Status == to {
		// Idempotent no-op unless the call carries a patch.
		if patch == nil {
			return res, nil
		}
		return s.reservations.Transition(ctx, res.ID, res.Status, to, patch)
	}
	if !models.CanTransition(res.Status, to) {
		err := reserr.New(reserr.CodeInvalidTransition, "illegal status transition").
			WithMeta(map[string]any{"from": string(res.Status), "to": string(to)})
		return nil, s.reject(err)
	}
	if to == models.StatusConfirmed && res.DepositCents > 0 && res.PaymentStatus != models.PaymentStatusPaid {
		return nil, s.reject(reserr.New(reserr.CodeReservationUnpaid, "deposit has not been paid"))
	}

	from := res.Status
	updated, err := s.reservations.Transition(ctx, res.ID, from, to, patch)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(to))
	s.publish(ctx, models.EventReservationTransition, models.ReservationTransitionEvent{
		ReservationID:   updated.ID,
		ConsumerID:      updated.ConsumerID,
		EstablishmentID: updated.EstablishmentID,
		From:            from,
		To:              to,
		Actor:           actor,
		Reason:          reason,
		Timestamp:       time.Now().UTC(),
	})

	// Leaving the occupying set frees capacity; try to promote the waitlist.
	if updated.SlotID != nil && models.IsOccupying(from) && !models.IsOccupying(to) {
		if err := s.waitlist.PromoteNext(ctx, *updated.SlotID); err != nil {
			logger.WithContext(ctx).Error("waitlist promotion failed", "slot_id", *updated.SlotID, "error", err)
		}
	}

	return updated, nil
}

// checkProtectionWindow rejects pro-initiated negative outcomes on free
// reservations inside the protection window. Paid reservations are exempt.
func (s *ReservationService) checkProtectionWindow(ctx context.Context, res *models.Reservation, to models.ReservationStatus) error {
	if !models.IsNegativeProTarget(to) {
		return nil
	}
	if res.PaymentType != models.PaymentFree {
		return nil
	}
	if res.Status != models.StatusConfirmed && res.Status != models.StatusPendingProValidation {
		return nil
	}
	if res.ProtectionWindowStart == nil {
		return nil
	}

	hours, err := s.establishments.ProtectionWindowHours(ctx, res.EstablishmentID, s.cfg.ProtectionWindowHours)
	if err != nil {
		logger.WithContext(ctx).Warn("protection window lookup failed, using default", "establishment_id", res.EstablishmentID, "error", err)
		hours = s.cfg.ProtectionWindowHours
	}

	now := time.Now().UTC()
	windowEnd := res.ProtectionWindowStart.Add(time.Duration(hours) * time.Hour)
	if now.Before(windowEnd) {
		hoursUntilStart := int(math.Ceil(res.StartsAt.Sub(now).Hours()))
		err := reserr.New(reserr.CodeReservationProtected, "reservation is inside its protection window").
			WithMeta(map[string]any{"hours_until_start": hoursUntilStart, "window_hours": hours})
		return s.reject(err)
	}
	return nil
}

func (s *ReservationService) getForUpdate(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if res == nil {
		return nil, reserr.New(reserr.CodeReservationNotFound, "reservation not found")
	}
	return res, nil
}

// ProAccept confirms a requested or pending reservation. The payment guard
// inside Transition rejects unpaid deposits.
func (s *ReservationService) ProAccept(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, res, models.StatusConfirmed, ActorPro, "", nil)
}

// ProRefuse declines a reservation, subject to the protection window.
func (s *ReservationService) ProRefuse(ctx context.Context, id, reason string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkProtectionWindow(ctx, res, models.StatusRefused); err != nil {
		return nil, err
	}
	return s.Transition(ctx, res, models.StatusRefused, ActorPro, reason, nil)
}

// ProHold parks a request while the establishment decides.
func (s *ReservationService) ProHold(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, res, models.StatusOnHold, ActorPro, "", nil)
}

// ProRequestDeposit asks the client to secure the booking with a deposit.
func (s *ReservationService) ProRequestDeposit(ctx context.Context, id string, depositCents int64) (*models.Reservation, error) {
	if depositCents <= 0 {
		return nil, s.reject(reserr.New(reserr.CodeInvalidArgument, "deposit must be positive"))
	}
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	paid := models.PaymentPaid
	pending := models.PaymentStatusPending
	return s.Transition(ctx, res, models.StatusDepositRequested, ActorPro, "", &repository.ReservationPatch{
		PaymentType:   &paid,
		PaymentStatus: &pending,
		DepositCents:  &depositCents,
	})
}

// ProCancel cancels from the establishment side, subject to the protection
// window. A held deposit is refunded in full.
func (s *ReservationService) ProCancel(ctx context.Context, id, reason string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkProtectionWindow(ctx, res, models.StatusCancelledPro); err != nil {
		return nil, err
	}

	updated, err := s.Transition(ctx, res, models.StatusCancelledPro, ActorPro, reason, nil)
	if err != nil {
		return nil, err
	}
	if updated.PaymentStatus == models.PaymentStatusPaid {
		s.settle(ctx, updated.ID, ActorPro, "pro_cancellation", 100)
	}
	return updated, nil
}

// ClientCancel cancels from the consumer side. The cancellation is scored by
// lead time and the deposit refund follows the same schedule: full refund
// outside 24h, half between 12 and 24h, none under 12h.
func (s *ReservationService) ClientCancel(ctx context.Context, id, consumerID, reason string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.ConsumerID != consumerID {
		return nil, s.reject(reserr.New(reserr.CodeForbidden, "reservation belongs to another consumer"))
	}

	updated, err := s.Transition(ctx, res, models.StatusCancelledUser, ActorClient, reason, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, kind := s.scoring.RecordCancellation(ctx, consumerID, updated.StartsAt, now)

	if updated.PaymentStatus == models.PaymentStatusPaid {
		refund := 100
		switch kind {
		case CancellationLate:
			refund = 50
		case CancellationVeryLate:
			refund = 0
		}
		s.settle(ctx, updated.ID, ActorClient, fmt.Sprintf("client_cancellation_%s", kind), refund)
	}
	return updated, nil
}

// ConfirmVenue marks the consumer present on the pro's word.
func (s *ReservationService) ConfirmVenue(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.Transition(ctx, res, models.StatusConsumed, ActorPro, "venue_confirmed", nil)
	if err != nil {
		return nil, err
	}
	s.scoring.RecordHonoredReservation(ctx, updated.ConsumerID)
	return updated, nil
}

// CheckInQR marks the consumer present via QR scan and releases any held
// deposit to the establishment.
func (s *ReservationService) CheckInQR(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated, err := s.Transition(ctx, res, models.StatusConsumed, ActorClient, "qr_check_in", &repository.ReservationPatch{
		CheckedInAt: &now,
	})
	if err != nil {
		return nil, err
	}

	s.scoring.RecordHonoredReservation(ctx, updated.ConsumerID)
	if updated.PaymentStatus == models.PaymentStatusPaid {
		s.settle(ctx, updated.ID, ActorClient, "check_in", 0)
	}
	s.publish(ctx, models.EventReservationCheckedIn, models.ReservationTransitionEvent{
		ReservationID:   updated.ID,
		ConsumerID:      updated.ConsumerID,
		EstablishmentID: updated.EstablishmentID,
		From:            res.Status,
		To:              updated.Status,
		Actor:           ActorClient,
		Reason:          "qr_check_in",
		Timestamp:       now,
	})
	return updated, nil
}

// UpgradeFreeToPaid converts a free booking into a deposit-backed one. The
// status is unchanged; the upgrade is credited to the client's score.
func (s *ReservationService) UpgradeFreeToPaid(ctx context.Context, id, consumerID string, depositCents int64) (*models.Reservation, error) {
	if depositCents <= 0 {
		return nil, s.reject(reserr.New(reserr.CodeInvalidArgument, "deposit must be positive"))
	}
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.ConsumerID != consumerID {
		return nil, s.reject(reserr.New(reserr.CodeForbidden, "reservation belongs to another consumer"))
	}
	if res.PaymentType != models.PaymentFree {
		return nil, s.reject(reserr.New(reserr.CodeInvalidArgument, "reservation is already paid"))
	}
	if models.IsTerminal(res.Status) {
		return nil, s.reject(reserr.New(reserr.CodeInvalidTransition, "reservation is closed"))
	}

	paid := models.PaymentPaid
	pending := models.PaymentStatusPending
	updated, err := s.Transition(ctx, res, res.Status, ActorClient, "free_to_paid", &repository.ReservationPatch{
		PaymentType:   &paid,
		PaymentStatus: &pending,
		DepositCents:  &depositCents,
	})
	if err != nil {
		return nil, err
	}

	s.scoring.RecordFreeToPaidUpgrade(ctx, consumerID)
	if s.escrow != nil {
		if err := s.escrow.EnsureEscrowHold(updated.ID, ActorClient); err != nil {
			logger.WithContext(ctx).Error("escrow hold failed", "reservation_id", updated.ID, "error", err)
		}
	}
	return updated, nil
}

// ConfirmDepositPaid records payment of a requested deposit and confirms
// the reservation.
func (s *ReservationService) ConfirmDepositPaid(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != models.StatusDepositRequested {
		return nil, s.reject(reserr.New(reserr.CodeInvalidTransition, "no deposit is pending").
			WithMeta(map[string]any{"from": string(res.Status), "to": string(models.StatusDepositPaid)}))
	}

	paidStatus := models.PaymentStatusPaid
	updated, err := s.Transition(ctx, res, models.StatusDepositPaid, ActorSystem, "deposit_paid", &repository.ReservationPatch{
		PaymentStatus: &paidStatus,
	})
	if err != nil {
		return nil, err
	}

	if s.escrow != nil {
		if err := s.escrow.EnsureEscrowHold(updated.ID, ActorSystem); err != nil {
			logger.WithContext(ctx).Error("escrow hold failed", "reservation_id", updated.ID, "error", err)
		}
	}
	return updated, nil
}

// ClaimWaitlistOffer accepts an outstanding waitlist offer on behalf of the
// consumer, moving the reservation back into the live lifecycle.
func (s *ReservationService) ClaimWaitlistOffer(ctx context.Context, consumerID, entryID string) (*models.Reservation, error) {
	return s.waitlist.ClaimOffer(ctx, consumerID, entryID,
		func(ctx context.Context, res *models.Reservation, to models.ReservationStatus, actor, reason string) (*models.Reservation, error) {
			return s.Transition(ctx, res, to, actor, reason, nil)
		})
}

// GetByID fetches a reservation for read endpoints.
func (s *ReservationService) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	return s.getForUpdate(ctx, id)
}

// GetByBookingRef fetches a reservation by its human-readable reference.
func (s *ReservationService) GetByBookingRef(ctx context.Context, ref string) (*models.Reservation, error) {
	res, err := s.reservations.GetByBookingRef(ctx, ref)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if res == nil {
		return nil, reserr.New(reserr.CodeReservationNotFound, "reservation not found")
	}
	return res, nil
}

// ListByConsumer lists a consumer's reservations, newest first.
func (s *ReservationService) ListByConsumer(ctx context.Context, consumerID string) ([]models.Reservation, error) {
	list, err := s.reservations.ListByConsumer(ctx, consumerID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	return list, nil
}

func (s *ReservationService) reject(err *reserr.Error) *reserr.Error {
	s.metrics.IncRejection(string(err.Code))
	return err
}

func (s *ReservationService) settle(ctx context.Context, reservationID, actor, reason string, refundPercent int) {
	if s.escrow == nil {
		return
	}
	if err := s.escrow.Settle(reservationID, actor, reason, refundPercent); err != nil {
		logger.WithContext(ctx).Error("escrow settlement failed", "reservation_id", reservationID, "reason", reason, "error", err)
	}
}

func (s *ReservationService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("event publish failed", "subject", subject, "error", err)
	}
}
