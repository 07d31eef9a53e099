package models

import "time"

// CreateReservationRequest - payload for creating a reservation
type CreateReservationRequest struct {
	EstablishmentID string            `json:"establishment_id" binding:"required"`
	SlotID          *string           `json:"slot_id,omitempty"`
	PartySize       int               `json:"party_size" binding:"required"`
	StartsAt        time.Time         `json:"starts_at" binding:"required"`
	PaymentType     PaymentType       `json:"payment_type,omitempty"`
	DepositCents    int64             `json:"deposit_cents,omitempty"`
	JoinWaitlist    bool              `json:"join_waitlist,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
}

// CreateReservationResponse - result of a successful creation
type CreateReservationResponse struct {
	ID               string            `json:"id"`
	BookingRef       string            `json:"booking_ref"`
	Status           ReservationStatus `json:"status"`
	Waitlisted       bool              `json:"waitlisted,omitempty"`
	WaitlistEntryID  string            `json:"waitlist_entry_id,omitempty"`
	WaitlistPosition int               `json:"waitlist_position,omitempty"`
}

// TransitionRequest - payload for pro/admin lifecycle actions
type TransitionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelReservationRequest - payload for client/pro cancellation
type CancelReservationRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DeclareNoShowRequest - payload for a no-show declaration
type DeclareNoShowRequest struct {
	DeclaredBy string `json:"declared_by,omitempty"` // defaults to "pro"
}

// DeclareNoShowResponse carries the dispute id, which is stable across
// repeated declarations for the same reservation.
type DeclareNoShowResponse struct {
	DisputeID string        `json:"dispute_id"`
	Status    DisputeStatus `json:"status"`
}

// DisputeRespondRequest - consumer's answer to a no-show declaration
type DisputeRespondRequest struct {
	Response ClientResponse `json:"response" binding:"required"`
	Evidence []string       `json:"evidence,omitempty"`
}

// ArbitrateRequest - admin verdict on a disputed no-show
type ArbitrateRequest struct {
	Decision ArbitrationDecision `json:"decision" binding:"required"`
}

// ClaimOfferRequest - consumer claims a waitlist offer before it expires
type ClaimOfferRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

// ScoreSnapshot is the consumer-facing reliability read model.
type ScoreSnapshot struct {
	ConsumerID     string     `json:"consumer_id"`
	Score          int        `json:"score"`
	Stars          float64    `json:"stars"`
	Level          string     `json:"level"`
	Honored        int        `json:"honored_reservations"`
	NoShows        int        `json:"no_shows_count"`
	Total          int        `json:"total_reservations"`
	IsSuspended    bool       `json:"is_suspended"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// ReservationResponse - reservation read model returned by list/get endpoints
type ReservationResponse struct {
	ID              string            `json:"id"`
	BookingRef      string            `json:"booking_ref"`
	EstablishmentID string            `json:"establishment_id"`
	SlotID          *string           `json:"slot_id,omitempty"`
	Status          ReservationStatus `json:"status"`
	PaymentType     PaymentType       `json:"payment_type"`
	PartySize       int               `json:"party_size"`
	StartsAt        time.Time         `json:"starts_at"`
	CheckedInAt     *time.Time        `json:"checked_in_at,omitempty"`
}

// ReservationFromEntity maps a row to the read model.
func ReservationFromEntity(r *Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		BookingRef:      r.BookingRef,
		EstablishmentID: r.EstablishmentID,
		SlotID:          r.SlotID,
		Status:          r.Status,
		PaymentType:     r.PaymentType,
		PartySize:       r.PartySize,
		StartsAt:        r.StartsAt,
		CheckedInAt:     r.CheckedInAt,
	}
}
