package service

import (
	"context"
	"time"

	"reserva/internal/config"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/repository"
	"reserva/internal/reserr"
)

const expireBatchSize = 100

// DisputeService runs the no-show workflow: declaration, client response,
// admin arbitration, and the expiry backstop. Dispute creation is idempotent
// under race through the unique constraint on reservation_id.
type DisputeService struct {
	disputes     DisputeStore
	reservations *ReservationService
	scoring      *ScoringService
	sanctions    *SanctionService
	events       EventPublisher
	metrics      *metrics.Metrics
	cfg          config.TrustConfig
}

func NewDisputeService(disputes DisputeStore, reservations *ReservationService, scoring *ScoringService, sanctions *SanctionService, events EventPublisher, m *metrics.Metrics, cfg config.TrustConfig) *DisputeService {
	return &DisputeService{
		disputes:     disputes,
		reservations: reservations,
		scoring:      scoring,
		sanctions:    sanctions,
		events:       events,
		metrics:      m,
		cfg:          cfg,
	}
}

// Declare opens a no-show episode for a reservation. Repeated declarations
// return the existing dispute id, never a duplicate row.
func (s *DisputeService) Declare(ctx context.Context, reservationID, declaredBy string) (*models.DeclareNoShowResponse, error) {
	if declaredBy != "system" {
		declaredBy = "pro"
	}

	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.disputes.GetByReservationID(ctx, reservationID); err != nil {
		return nil, reserr.Store(err)
	} else if existing != nil {
		return &models.DeclareNoShowResponse{DisputeID: existing.ID, Status: existing.Status}, nil
	}

	switch res.Status {
	case models.StatusNoShow:
		// Already flagged, only the dispute row is missing.
	case models.StatusConfirmed, models.StatusDepositPaid:
		if res, err = s.reservations.Transition(ctx, res, models.StatusNoShow, declaredBy, "no_show_declared", nil); err != nil {
			return nil, err
		}
	default:
		return nil, reserr.New(reserr.CodeInvalidTransition, "only confirmed reservations can be declared no-show").
			WithMeta(map[string]any{"from": string(res.Status), "to": string(models.StatusNoShow)})
	}

	now := time.Now().UTC()
	deadline := now.Add(time.Duration(s.cfg.DisputeResponseHours) * time.Hour)
	dispute, created, err := s.disputes.CreateIfAbsent(ctx, &models.NoShowDispute{
		ReservationID:          reservationID,
		Status:                 models.DisputePendingClientResponse,
		DeclaredBy:             declaredBy,
		DeclaredAt:             now,
		ClientResponseDeadline: deadline,
	})
	if err != nil {
		return nil, reserr.Store(err)
	}

	if created {
		s.publish(ctx, models.EventDisputeDeclared, models.DisputeDeclaredEvent{
			DisputeID:        dispute.ID,
			ReservationID:    reservationID,
			ConsumerID:       res.ConsumerID,
			EstablishmentID:  res.EstablishmentID,
			DeclaredBy:       declaredBy,
			ResponseDeadline: deadline,
			Timestamp:        now,
		})
	}

	return &models.DeclareNoShowResponse{DisputeID: dispute.ID, Status: dispute.Status}, nil
}

// ClientRespond records the consumer's answer. Confirming absence resolves
// the episode immediately with scoring impact; disputing moves it to
// arbitration.
func (s *DisputeService) ClientRespond(ctx context.Context, disputeID, consumerID string, req *models.DisputeRespondRequest) (*models.NoShowDispute, error) {
	dispute, res, err := s.load(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if res.ConsumerID != consumerID {
		return nil, reserr.New(reserr.CodeForbidden, "dispute belongs to another consumer")
	}
	if dispute.Status != models.DisputePendingClientResponse {
		return nil, reserr.New(reserr.CodeDisputeNotPending, "dispute is no longer awaiting a response")
	}
	if time.Now().UTC().After(dispute.ClientResponseDeadline) {
		return nil, reserr.New(reserr.CodeDisputeWindowClosed, "the response window has closed")
	}

	now := time.Now().UTC()
	switch req.Response {
	case models.ResponseConfirmsAbsence:
		updated, err := s.disputes.UpdateStatus(ctx, dispute.ID, dispute.Status, models.DisputeNoShowConfirmed, &repository.DisputePatch{
			ClientResponse: &req.Response,
			ResolvedAt:     &now,
		})
		if err != nil {
			return nil, err
		}
		s.confirmNoShow(ctx, res, ActorClient)
		s.metrics.IncDispute(string(models.DisputeNoShowConfirmed))
		s.publishResponded(ctx, updated, res, req.Response)
		return updated, nil

	case models.ResponseDisputes:
		updated, err := s.disputes.UpdateStatus(ctx, dispute.ID, dispute.Status, models.DisputePendingArbitration, &repository.DisputePatch{
			ClientResponse: &req.Response,
			Evidence:       req.Evidence,
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.reservations.Transition(ctx, res, models.StatusNoShowDisputed, ActorClient, "client_disputes", nil); err != nil {
			logger.WithContext(ctx).Warn("dispute status sync failed", "reservation_id", res.ID, "error", err)
		}
		s.publishResponded(ctx, updated, res, req.Response)
		return updated, nil

	default:
		return nil, reserr.New(reserr.CodeInvalidArgument, "unknown response")
	}
}

// Arbitrate applies the admin verdict. Scoring is asymmetric: favor_pro
// penalizes the client, favor_client sanctions the establishment,
// indeterminate penalizes neither.
func (s *DisputeService) Arbitrate(ctx context.Context, disputeID, adminID string, decision models.ArbitrationDecision) (*models.NoShowDispute, error) {
	dispute, res, err := s.load(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputePendingArbitration {
		return nil, reserr.New(reserr.CodeDisputeNotArbitrable, "dispute is not awaiting arbitration")
	}

	var to models.DisputeStatus
	switch decision {
	case models.DecisionFavorClient:
		to = models.DisputeResolvedFavorClient
	case models.DecisionFavorPro:
		to = models.DisputeResolvedFavorPro
	case models.DecisionIndeterminate:
		to = models.DisputeResolvedIndeterminate
	default:
		return nil, reserr.New(reserr.CodeInvalidArgument, "unknown decision")
	}

	now := time.Now().UTC()
	updated, err := s.disputes.UpdateStatus(ctx, dispute.ID, dispute.Status, to, &repository.DisputePatch{
		Decision:     &decision,
		ArbitratedBy: &adminID,
		ResolvedAt:   &now,
	})
	if err != nil {
		return nil, err
	}

	switch decision {
	case models.DecisionFavorClient:
		if _, err := s.reservations.Transition(ctx, res, models.StatusConsumed, ActorAdmin, "arbitration_favor_client", nil); err != nil {
			logger.WithContext(ctx).Warn("arbitration status sync failed", "reservation_id", res.ID, "error", err)
		}
		if _, err := s.sanctions.ApplyForFalseNoShow(ctx, res.EstablishmentID, updated.ID, adminID); err != nil {
			logger.WithContext(ctx).Error("sanction application failed", "establishment_id", res.EstablishmentID, "dispute_id", updated.ID, "error", err)
		}
	case models.DecisionFavorPro:
		s.confirmNoShow(ctx, res, ActorAdmin)
	case models.DecisionIndeterminate:
		// Status defaults to confirmed no-show, without scoring impact.
		if _, err := s.reservations.Transition(ctx, res, models.StatusNoShowConfirmed, ActorAdmin, "arbitration_indeterminate", nil); err != nil {
			logger.WithContext(ctx).Warn("arbitration status sync failed", "reservation_id", res.ID, "error", err)
		}
	}

	s.metrics.IncDispute(string(decision))
	s.publish(ctx, models.EventDisputeArbitrated, models.DisputeArbitratedEvent{
		DisputeID:       updated.ID,
		ReservationID:   res.ID,
		ConsumerID:      res.ConsumerID,
		EstablishmentID: res.EstablishmentID,
		Decision:        decision,
		ArbitratedBy:    adminID,
		Timestamp:       now,
	})
	return updated, nil
}

// ExpireUnresponded force-resolves disputes whose response deadline passed,
// exactly as if the client had confirmed absence. Cron entry point; the CAS
// on dispute status makes concurrent runs converge.
func (s *DisputeService) ExpireUnresponded(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.disputes.ListExpiredPending(ctx, now, expireBatchSize)
	if err != nil {
		return 0, reserr.Store(err)
	}

	expired := 0
	for i := range pending {
		d := &pending[i]
		resolvedAt := time.Now().UTC()
		if _, err := s.disputes.UpdateStatus(ctx, d.ID, models.DisputePendingClientResponse, models.DisputeNoShowConfirmed, &repository.DisputePatch{
			ResolvedAt: &resolvedAt,
		}); err != nil {
			if !reserr.IsCode(err, reserr.CodeConflict) {
				logger.WithContext(ctx).Error("dispute expiry failed", "dispute_id", d.ID, "error", err)
			}
			continue
		}

		res, err := s.reservations.GetByID(ctx, d.ReservationID)
		if err != nil {
			logger.WithContext(ctx).Error("dispute expiry reservation read failed", "dispute_id", d.ID, "error", err)
			continue
		}
		s.confirmNoShow(ctx, res, ActorSystem)
		s.metrics.IncDispute(string(models.DisputeNoShowConfirmed))
		s.publish(ctx, models.EventDisputeExpired, models.DisputeExpiredEvent{
			DisputeID:     d.ID,
			ReservationID: d.ReservationID,
			ConsumerID:    res.ConsumerID,
			Timestamp:     resolvedAt,
		})
		expired++
	}
	return expired, nil
}

// GetByID fetches a dispute for read endpoints.
func (s *DisputeService) GetByID(ctx context.Context, id string) (*models.NoShowDispute, error) {
	dispute, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if dispute == nil {
		return nil, reserr.New(reserr.CodeDisputeNotFound, "dispute not found")
	}
	return dispute, nil
}

func (s *DisputeService) load(ctx context.Context, disputeID string) (*models.NoShowDispute, *models.Reservation, error) {
	dispute, err := s.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.reservations.GetByID(ctx, dispute.ReservationID)
	if err != nil {
		return nil, nil, err
	}
	return dispute, res, nil
}

// confirmNoShow syncs the reservation to its terminal no-show status and
// debits the client's score.
func (s *DisputeService) confirmNoShow(ctx context.Context, res *models.Reservation, actor string) {
	if _, err := s.reservations.Transition(ctx, res, models.StatusNoShowConfirmed, actor, "no_show_confirmed", nil); err != nil {
		logger.WithContext(ctx).Warn("no-show status sync failed", "reservation_id", res.ID, "error", err)
	}
	s.scoring.RecordNoShow(ctx, res.ConsumerID)
}

func (s *DisputeService) publishResponded(ctx context.Context, d *models.NoShowDispute, res *models.Reservation, response models.ClientResponse) {
	s.publish(ctx, models.EventDisputeResponded, models.DisputeRespondedEvent{
		DisputeID:       d.ID,
		ReservationID:   d.ReservationID,
		ConsumerID:      res.ConsumerID,
		EstablishmentID: res.EstablishmentID,
		Response:        response,
		Timestamp:       time.Now().UTC(),
	})
}

func (s *DisputeService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("event publish failed", "subject", subject, "error", err)
	}
}
