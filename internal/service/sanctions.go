package service

import (
	"context"
	"fmt"
	"time"

	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/reserr"
)

// SanctionService escalates penalties against establishments for false
// no-show declarations. Severity is monotonic: the schedule only escalates,
// never steps back on its own.
type SanctionService struct {
	trust   TrustStore
	events  EventPublisher
	metrics *metrics.Metrics
}

func NewSanctionService(trust TrustStore, events EventPublisher, m *metrics.Metrics) *SanctionService {
	return &SanctionService{trust: trust, events: events, metrics: m}
}

// sanctionForPriors maps the count of prior false declarations to the next
// sanction on the schedule.
func sanctionForPriors(priors int) (models.SanctionType, int) {
	switch {
	case priors == 0:
		return models.SanctionWarning, 0
	case priors == 1:
		return models.SanctionDeactivated7d, 7
	default:
		return models.SanctionDeactivated30d, 30
	}
}

// ApplyForFalseNoShow records a sanction after an arbitration in the
// client's favor. The prior count is read with the trust row locked, so
// concurrent applications escalate correctly.
func (s *SanctionService) ApplyForFalseNoShow(ctx context.Context, establishmentID, disputeID, imposedBy string) (*models.ProSanction, error) {
	now := time.Now().UTC()

	sanction, err := s.trust.ApplySanction(ctx, establishmentID, func(trust *models.ProTrustScore) *models.ProSanction {
		sanctionType, days := sanctionForPriors(trust.FalseNoShowCount)

		var endsAt *time.Time
		if days > 0 {
			t := now.Add(time.Duration(days) * 24 * time.Hour)
			endsAt = &t
		}

		trust.FalseNoShowCount++
		trust.SanctionsCount++
		trust.CurrentSanction = sanctionType
		trust.DeactivatedUntil = endsAt

		return &models.ProSanction{
			EstablishmentID: establishmentID,
			DisputeID:       disputeID,
			SanctionType:    sanctionType,
			Reason:          fmt.Sprintf("false no-show declaration (dispute %s)", disputeID),
			ImposedBy:       imposedBy,
			StartsAt:        now,
			EndsAt:          endsAt,
		}
	})
	if err != nil {
		return nil, reserr.Store(err)
	}

	s.metrics.IncSanction(string(sanction.SanctionType))
	s.publish(ctx, models.EventSanctionApplied, models.SanctionAppliedEvent{
		SanctionID:      sanction.ID,
		EstablishmentID: establishmentID,
		DisputeID:       disputeID,
		SanctionType:    sanction.SanctionType,
		EndsAt:          sanction.EndsAt,
		Timestamp:       now,
	})
	return sanction, nil
}

// ActiveSanction returns the establishment's rolling trust state, or a clean
// record when none exists yet.
func (s *SanctionService) ActiveSanction(ctx context.Context, establishmentID string) (*models.ProTrustScore, error) {
	trust, err := s.trust.Get(ctx, establishmentID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	if trust == nil {
		return &models.ProTrustScore{
			EstablishmentID: establishmentID,
			CurrentSanction: models.SanctionNone,
		}, nil
	}
	return trust, nil
}

// History lists the establishment's sanction entries, newest first.
func (s *SanctionService) History(ctx context.Context, establishmentID string) ([]models.ProSanction, error) {
	sanctions, err := s.trust.ListSanctions(ctx, establishmentID)
	if err != nil {
		return nil, reserr.Store(err)
	}
	return sanctions, nil
}

func (s *SanctionService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("event publish failed", "subject", subject, "error", err)
	}
}
