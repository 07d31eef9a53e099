package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"reserva/internal/external"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// Handlers process reservation-core events. Delivery side effects live here
// so the API path never blocks on notification providers.
type Handlers struct {
	repos        *repository.Repositories
	notifyClient *external.NotifyClient
	emailClient  *external.EmailClient
	escrowClient *external.EscrowClient
}

func NewHandlers(repos *repository.Repositories, notifyClient *external.NotifyClient, emailClient *external.EmailClient, escrowClient *external.EscrowClient) *Handlers {
	return &Handlers{
		repos:        repos,
		notifyClient: notifyClient,
		emailClient:  emailClient,
		escrowClient: escrowClient,
	}
}

func (h *Handlers) HandleReservationCreated(m *stan.Msg) {
	var event models.ReservationCreatedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal reservation created event", "error", err)
		return
	}

	slog.Info("Processing reservation created event", "reservation_id", event.ReservationID, "status", event.Status)

	if err := h.notifyClient.NotifyEstablishmentMembers(
		event.EstablishmentID,
		"reservations",
		"New reservation request",
		fmt.Sprintf("Booking %s for a party of %d awaits your validation", event.BookingRef, event.PartySize),
		map[string]any{"reservation_id": event.ReservationID},
	); err != nil {
		slog.Error("Failed to notify establishment", "reservation_id", event.ReservationID, "error", err)
	}

	h.emailConsumer(event.ConsumerID, "reservation_requested", map[string]string{
		"booking_ref": event.BookingRef,
	})

	m.Ack()
}

func (h *Handlers) HandleReservationTransition(m *stan.Msg) {
	var event models.ReservationTransitionEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal reservation transition event", "error", err)
		return
	}

	slog.Info("Processing reservation transition event",
		"reservation_id", event.ReservationID, "from", event.From, "to", event.To, "actor", event.Actor)

	if err := h.notifyClient.NotifyConsumer(event.ConsumerID, "reservation."+string(event.To), map[string]any{
		"reservation_id": event.ReservationID,
		"from":           string(event.From),
		"reason":         event.Reason,
	}); err != nil {
		slog.Error("Failed to notify consumer", "reservation_id", event.ReservationID, "error", err)
	}

	// Escrow settlement for confirmed no-shows happens here rather than on
	// the API path: the confirmation may come from the dispute expiry cron.
	if event.To == models.StatusNoShowConfirmed {
		h.settleNoShow(context.Background(), event.ReservationID)
	}

	m.Ack()
}

func (h *Handlers) HandleReservationCheckedIn(m *stan.Msg) {
	var event models.ReservationTransitionEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal check-in event", "error", err)
		return
	}

	slog.Info("Processing check-in event", "reservation_id", event.ReservationID)

	if err := h.notifyClient.NotifyEstablishmentMembers(
		event.EstablishmentID,
		"reservations",
		"Guest checked in",
		fmt.Sprintf("Reservation %s checked in", event.ReservationID),
		map[string]any{"reservation_id": event.ReservationID},
	); err != nil {
		slog.Error("Failed to notify establishment", "reservation_id", event.ReservationID, "error", err)
	}

	m.Ack()
}

func (h *Handlers) HandleDisputeDeclared(m *stan.Msg) {
	var event models.DisputeDeclaredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal dispute declared event", "error", err)
		return
	}

	slog.Info("Processing dispute declared event", "dispute_id", event.DisputeID)

	if err := h.notifyClient.NotifyConsumer(event.ConsumerID, "dispute.declared", map[string]any{
		"dispute_id":        event.DisputeID,
		"reservation_id":    event.ReservationID,
		"response_deadline": event.ResponseDeadline,
	}); err != nil {
		slog.Error("Failed to notify consumer", "dispute_id", event.DisputeID, "error", err)
	}

	h.emailConsumer(event.ConsumerID, "no_show_declared", map[string]string{
		"dispute_id":        event.DisputeID,
		"response_deadline": event.ResponseDeadline.Format("2006-01-02 15:04 MST"),
	})

	m.Ack()
}

func (h *Handlers) HandleDisputeResponded(m *stan.Msg) {
	var event models.DisputeRespondedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal dispute responded event", "error", err)
		return
	}

	slog.Info("Processing dispute responded event", "dispute_id", event.DisputeID, "response", event.Response)

	if event.Response == models.ResponseDisputes {
		if err := h.notifyClient.NotifyAdmin(
			"dispute_arbitration",
			"Dispute awaits arbitration",
			fmt.Sprintf("Client contested no-show declaration on reservation %s", event.ReservationID),
			map[string]any{"dispute_id": event.DisputeID},
		); err != nil {
			slog.Error("Failed to notify admin", "dispute_id", event.DisputeID, "error", err)
		}
	}

	m.Ack()
}

func (h *Handlers) HandleDisputeArbitrated(m *stan.Msg) {
	var event models.DisputeArbitratedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal dispute arbitrated event", "error", err)
		return
	}

	slog.Info("Processing dispute arbitrated event", "dispute_id", event.DisputeID, "decision", event.Decision)

	if err := h.notifyClient.NotifyConsumer(event.ConsumerID, "dispute.arbitrated", map[string]any{
		"dispute_id": event.DisputeID,
		"decision":   string(event.Decision),
	}); err != nil {
		slog.Error("Failed to notify consumer", "dispute_id", event.DisputeID, "error", err)
	}

	if err := h.notifyClient.NotifyEstablishmentMembers(
		event.EstablishmentID,
		"disputes",
		"Dispute resolved",
		fmt.Sprintf("Arbitration on reservation %s closed: %s", event.ReservationID, event.Decision),
		map[string]any{"dispute_id": event.DisputeID},
	); err != nil {
		slog.Error("Failed to notify establishment", "dispute_id", event.DisputeID, "error", err)
	}

	m.Ack()
}

func (h *Handlers) HandleDisputeExpired(m *stan.Msg) {
	var event models.DisputeExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal dispute expired event", "error", err)
		return
	}

	slog.Info("Processing dispute expired event", "dispute_id", event.DisputeID)

	h.emailConsumer(event.ConsumerID, "no_show_confirmed_by_silence", map[string]string{
		"dispute_id": event.DisputeID,
	})

	m.Ack()
}

func (h *Handlers) HandleSanctionApplied(m *stan.Msg) {
	var event models.SanctionAppliedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal sanction applied event", "error", err)
		return
	}

	slog.Info("Processing sanction applied event",
		"sanction_id", event.SanctionID, "establishment_id", event.EstablishmentID, "type", event.SanctionType)

	body := "A sanction was applied to your establishment for a false no-show declaration"
	if event.EndsAt != nil {
		body = fmt.Sprintf("%s, active until %s", body, event.EndsAt.Format("2006-01-02"))
	}

	if err := h.notifyClient.NotifyEstablishmentMembers(
		event.EstablishmentID,
		"sanctions",
		"Sanction applied",
		body,
		map[string]any{"sanction_id": event.SanctionID, "type": string(event.SanctionType)},
	); err != nil {
		slog.Error("Failed to notify establishment", "sanction_id", event.SanctionID, "error", err)
	}

	m.Ack()
}

func (h *Handlers) HandleClientSuspended(m *stan.Msg) {
	var event models.ClientSuspendedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal client suspended event", "error", err)
		return
	}

	slog.Info("Processing client suspended event", "consumer_id", event.ConsumerID)

	vars := map[string]string{"reason": event.Reason}
	if event.SuspendedUntil != nil {
		vars["suspended_until"] = event.SuspendedUntil.Format("2006-01-02")
	}
	h.emailConsumer(event.ConsumerID, "account_suspended", vars)

	m.Ack()
}

func (h *Handlers) HandleWaitlistOfferSent(m *stan.Msg) {
	var event models.WaitlistOfferSentEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal waitlist offer event", "error", err)
		return
	}

	slog.Info("Processing waitlist offer event", "entry_id", event.EntryID, "consumer_id", event.ConsumerID)

	if err := h.notifyClient.NotifyConsumer(event.ConsumerID, "waitlist.offer_sent", map[string]any{
		"entry_id":         event.EntryID,
		"slot_id":          event.SlotID,
		"offer_expires_at": event.OfferExpiresAt,
	}); err != nil {
		slog.Error("Failed to notify consumer", "entry_id", event.EntryID, "error", err)
	}

	h.emailConsumer(event.ConsumerID, "waitlist_offer", map[string]string{
		"entry_id":         event.EntryID,
		"offer_expires_at": event.OfferExpiresAt.Format("2006-01-02 15:04 MST"),
	})

	m.Ack()
}

func (h *Handlers) HandleWaitlistOfferExpired(m *stan.Msg) {
	var event models.WaitlistOfferExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal waitlist offer expired event", "error", err)
		return
	}

	slog.Info("Processing waitlist offer expired event", "entry_id", event.EntryID)

	if err := h.notifyClient.NotifyConsumer(event.ConsumerID, "waitlist.offer_expired", map[string]any{
		"entry_id": event.EntryID,
		"slot_id":  event.SlotID,
	}); err != nil {
		slog.Error("Failed to notify consumer", "entry_id", event.EntryID, "error", err)
	}

	m.Ack()
}

// settleNoShow releases escrowed funds to the pro with no refund once a
// no-show is confirmed. Free reservations have nothing to settle.
func (h *Handlers) settleNoShow(ctx context.Context, reservationID string) {
	res, err := h.repos.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		slog.Error("Failed to load reservation for no-show settlement", "reservation_id", reservationID, "error", err)
		return
	}
	if res == nil || res.PaymentType != models.PaymentPaid || res.PaymentStatus != models.PaymentStatusPaid {
		return
	}

	if err := h.escrowClient.Settle(reservationID, "system", "no_show", 0); err != nil {
		slog.Error("Failed to settle escrow for no-show", "reservation_id", reservationID, "error", err)
	}
}

func (h *Handlers) emailConsumer(consumerID, templateKey string, variables map[string]string) {
	consumer, err := h.repos.Consumers.GetByID(context.Background(), consumerID)
	if err != nil || consumer == nil {
		slog.Error("Failed to load consumer for email", "consumer_id", consumerID, "error", err)
		return
	}

	if err := h.emailClient.SendTemplateEmail(templateKey, "en", consumer.Email, variables, nil); err != nil {
		slog.Error("Failed to send email", "consumer_id", consumerID, "template", templateKey, "error", err)
	}
}
