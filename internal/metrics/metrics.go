package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reservation core.
type Metrics struct {
	// Committed status transitions by edge
	Transitions *prometheus.CounterVec

	// Creation/transition guard rejections by error code
	GuardRejections *prometheus.CounterVec

	// Dispute resolutions by decision
	DisputeOutcomes *prometheus.CounterVec

	// Sanctions applied by type
	Sanctions *prometheus.CounterVec

	// Waitlist promotions (offers sent) and reaped offers
	WaitlistOffers  prometheus.Counter
	WaitlistReaped  prometheus.Counter
	ScoreRecomputes prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reserva_reservation_transitions_total",
			Help: "Committed reservation status transitions by edge",
		}, []string{"from", "to"}),

		GuardRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reserva_guard_rejections_total",
			Help: "Business-rule rejections by error code",
		}, []string{"code"}),

		DisputeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reserva_dispute_outcomes_total",
			Help: "Dispute resolutions by decision",
		}, []string{"decision"}),

		Sanctions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reserva_sanctions_total",
			Help: "Progressive sanctions applied by type",
		}, []string{"type"}),

		WaitlistOffers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reserva_waitlist_offers_total",
			Help: "Waitlist offers sent after capacity freed up",
		}),

		WaitlistReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reserva_waitlist_offers_reaped_total",
			Help: "Expired waitlist offers reaped",
		}),

		ScoreRecomputes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reserva_score_recomputes_total",
			Help: "Client reliability score recomputations",
		}),
	}
}

// IncTransition records a committed status transition.
func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// IncRejection records a guard rejection.
func (m *Metrics) IncRejection(code string) {
	if m != nil {
		m.GuardRejections.WithLabelValues(code).Inc()
	}
}

// IncDispute records a dispute resolution.
func (m *Metrics) IncDispute(decision string) {
	if m != nil {
		m.DisputeOutcomes.WithLabelValues(decision).Inc()
	}
}

// IncSanction records an applied sanction.
func (m *Metrics) IncSanction(sanctionType string) {
	if m != nil {
		m.Sanctions.WithLabelValues(sanctionType).Inc()
	}
}

// IncWaitlistOffer records a promotion offer sent.
func (m *Metrics) IncWaitlistOffer() {
	if m != nil {
		m.WaitlistOffers.Inc()
	}
}

// IncWaitlistReaped records an expired offer being reaped.
func (m *Metrics) IncWaitlistReaped() {
	if m != nil {
		m.WaitlistReaped.Inc()
	}
}

// IncScoreRecompute records a reliability score recomputation.
func (m *Metrics) IncScoreRecompute() {
	if m != nil {
		m.ScoreRecomputes.Inc()
	}
}
