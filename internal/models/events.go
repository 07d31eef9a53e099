package models

import "time"

// NATS Event Subjects
const (
	EventReservationCreated    = "reservation.created"
	EventReservationTransition = "reservation.status_changed"
	EventReservationCheckedIn  = "reservation.checked_in"
	EventDisputeDeclared       = "dispute.declared"
	EventDisputeResponded      = "dispute.client_responded"
	EventDisputeArbitrated     = "dispute.arbitrated"
	EventDisputeExpired        = "dispute.expired"
	EventSanctionApplied       = "sanction.applied"
	EventClientSuspended       = "client.suspended"
	EventWaitlistOfferSent     = "waitlist.offer_sent"
	EventWaitlistOfferExpired  = "waitlist.offer_expired"
)

// ReservationCreatedEvent is published after a reservation row commits.
type ReservationCreatedEvent struct {
	ReservationID   string            `json:"reservation_id"`
	BookingRef      string            `json:"booking_ref"`
	ConsumerID      string            `json:"consumer_id"`
	EstablishmentID string            `json:"establishment_id"`
	Status          ReservationStatus `json:"status"`
	PartySize       int               `json:"party_size"`
	Timestamp       time.Time         `json:"timestamp"`
}

// ReservationTransitionEvent is published after every committed status change.
type ReservationTransitionEvent struct {
	ReservationID   string            `json:"reservation_id"`
	ConsumerID      string            `json:"consumer_id"`
	EstablishmentID string            `json:"establishment_id"`
	From            ReservationStatus `json:"from"`
	To              ReservationStatus `json:"to"`
	Actor           string            `json:"actor"` // client, pro, admin, system
	Reason          string            `json:"reason,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// DisputeDeclaredEvent notifies the consumer and admin of a new dispute.
type DisputeDeclaredEvent struct {
	DisputeID        string    `json:"dispute_id"`
	ReservationID    string    `json:"reservation_id"`
	ConsumerID       string    `json:"consumer_id"`
	EstablishmentID  string    `json:"establishment_id"`
	DeclaredBy       string    `json:"declared_by"`
	ResponseDeadline time.Time `json:"response_deadline"`
	Timestamp        time.Time `json:"timestamp"`
}

// DisputeRespondedEvent notifies the admin and pro of a client response.
type DisputeRespondedEvent struct {
	DisputeID       string         `json:"dispute_id"`
	ReservationID   string         `json:"reservation_id"`
	ConsumerID      string         `json:"consumer_id"`
	EstablishmentID string         `json:"establishment_id"`
	Response        ClientResponse `json:"response"`
	Timestamp       time.Time      `json:"timestamp"`
}

// DisputeArbitratedEvent notifies both parties of the verdict.
type DisputeArbitratedEvent struct {
	DisputeID       string              `json:"dispute_id"`
	ReservationID   string              `json:"reservation_id"`
	ConsumerID      string              `json:"consumer_id"`
	EstablishmentID string              `json:"establishment_id"`
	Decision        ArbitrationDecision `json:"decision"`
	ArbitratedBy    string              `json:"arbitrated_by"`
	Timestamp       time.Time           `json:"timestamp"`
}

// DisputeExpiredEvent is published by the expiry cron when a client never
// responded before the deadline.
type DisputeExpiredEvent struct {
	DisputeID     string    `json:"dispute_id"`
	ReservationID string    `json:"reservation_id"`
	ConsumerID    string    `json:"consumer_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// SanctionAppliedEvent notifies the pro and admin of a new sanction.
type SanctionAppliedEvent struct {
	SanctionID      string       `json:"sanction_id"`
	EstablishmentID string       `json:"establishment_id"`
	DisputeID       string       `json:"dispute_id"`
	SanctionType    SanctionType `json:"sanction_type"`
	EndsAt          *time.Time   `json:"ends_at,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// ClientSuspendedEvent is published when the scoring engine suspends a client.
type ClientSuspendedEvent struct {
	ConsumerID     string     `json:"consumer_id"`
	Reason         string     `json:"reason"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// WaitlistOfferSentEvent notifies a queued consumer that capacity freed up.
type WaitlistOfferSentEvent struct {
	EntryID        string    `json:"entry_id"`
	SlotID         string    `json:"slot_id"`
	ReservationID  string    `json:"reservation_id"`
	ConsumerID     string    `json:"consumer_id"`
	OfferExpiresAt time.Time `json:"offer_expires_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// WaitlistOfferExpiredEvent is published when an unclaimed offer is reaped.
type WaitlistOfferExpiredEvent struct {
	EntryID       string    `json:"entry_id"`
	SlotID        string    `json:"slot_id"`
	ReservationID string    `json:"reservation_id"`
	ConsumerID    string    `json:"consumer_id"`
	Timestamp     time.Time `json:"timestamp"`
}
