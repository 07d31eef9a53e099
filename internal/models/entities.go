package models

import (
	"time"
)

// Consumer represents a consumer account
type Consumer struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	RegisteredAt  time.Time `json:"registered_at" db:"registered_at"`
}

// Establishment represents the pro side of the marketplace
type Establishment struct {
	ID                    string     `json:"id" db:"id"`
	Name                  string     `json:"name" db:"name"`
	ProtectionWindowHours *int       `json:"protection_window_hours" db:"protection_window_hours"`
	IsActive              bool       `json:"is_active" db:"is_active"`
	DeactivatedUntil      *time.Time `json:"deactivated_until" db:"deactivated_until"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
}

// Slot is a bookable capacity unit owned by an establishment
type Slot struct {
	ID              string    `json:"id" db:"id"`
	EstablishmentID string    `json:"establishment_id" db:"establishment_id"`
	StartsAt        time.Time `json:"starts_at" db:"starts_at"`
	Capacity        int       `json:"capacity" db:"capacity"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// PaymentType distinguishes free bookings from deposit-backed ones.
type PaymentType string

const (
	PaymentFree PaymentType = "free"
	PaymentPaid PaymentType = "paid"
)

// PaymentStatus tracks the deposit state for paid reservations.
type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Reservation represents a reservation row. Rows are never hard-deleted; a
// reservation ends its life in a terminal status.
type Reservation struct {
	ID                    string            `json:"id" db:"id"`
	BookingRef            string            `json:"booking_ref" db:"booking_ref"`
	ConsumerID            string            `json:"consumer_id" db:"consumer_id"`
	EstablishmentID       string            `json:"establishment_id" db:"establishment_id"`
	SlotID                *string           `json:"slot_id" db:"slot_id"`
	Status                ReservationStatus `json:"status" db:"status"`
	PaymentType           PaymentType       `json:"payment_type" db:"payment_type"`
	PaymentStatus         PaymentStatus     `json:"payment_status" db:"payment_status"`
	DepositCents          int64             `json:"deposit_cents" db:"deposit_cents"`
	PartySize             int               `json:"party_size" db:"party_size"`
	StartsAt              time.Time         `json:"starts_at" db:"starts_at"`
	ProtectionWindowStart *time.Time        `json:"protection_window_start" db:"protection_window_start"`
	CheckedInAt           *time.Time        `json:"checked_in_at" db:"checked_in_at"`
	Meta                  map[string]string `json:"meta,omitempty" db:"meta"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// MetaAllowedKeys is the allow-list for the reservation meta bag. Unknown keys
// are rejected at the DTO boundary.
var MetaAllowedKeys = map[string]bool{
	"source":           true,
	"table_preference": true,
	"occasion":         true,
	"notes":            true,
	"locale":           true,
}

// ClientStats holds the per-consumer reliability counters. The score column
// is a cache; it is always recomputed from the counters on write.
type ClientStats struct {
	ConsumerID            string     `json:"consumer_id" db:"consumer_id"`
	HonoredReservations   int        `json:"honored_reservations" db:"honored_reservations"`
	NoShowsCount          int        `json:"no_shows_count" db:"no_shows_count"`
	LateCancellations     int        `json:"late_cancellations" db:"late_cancellations"`
	VeryLateCancellations int        `json:"very_late_cancellations" db:"very_late_cancellations"`
	ReviewsPosted         int        `json:"reviews_posted" db:"reviews_posted"`
	FreeToPaidConversions int        `json:"free_to_paid_conversions" db:"free_to_paid_conversions"`
	ConsecutiveHonored    int        `json:"consecutive_honored" db:"consecutive_honored"`
	ConsecutiveNoShows    int        `json:"consecutive_no_shows" db:"consecutive_no_shows"`
	TotalReservations     int        `json:"total_reservations" db:"total_reservations"`
	ReliabilityScore      int        `json:"reliability_score" db:"reliability_score"`
	IsSuspended           bool       `json:"is_suspended" db:"is_suspended"`
	SuspendedUntil        *time.Time `json:"suspended_until" db:"suspended_until"`
	SuspensionReason      *string    `json:"suspension_reason" db:"suspension_reason"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// DisputeStatus is the lifecycle of a no-show dispute.
type DisputeStatus string

const (
	DisputePendingClientResponse DisputeStatus = "pending_client_response"
	DisputePendingArbitration    DisputeStatus = "disputed_pending_arbitration"
	DisputeResolvedFavorClient   DisputeStatus = "resolved_favor_client"
	DisputeResolvedFavorPro      DisputeStatus = "resolved_favor_pro"
	DisputeResolvedIndeterminate DisputeStatus = "resolved_indeterminate"
	DisputeNoShowConfirmed       DisputeStatus = "no_show_confirmed"
)

// ArbitrationDecision is the admin verdict on a disputed no-show.
type ArbitrationDecision string

const (
	DecisionFavorClient   ArbitrationDecision = "favor_client"
	DecisionFavorPro      ArbitrationDecision = "favor_pro"
	DecisionIndeterminate ArbitrationDecision = "indeterminate"
)

// ClientResponse is the consumer's answer to a no-show declaration.
type ClientResponse string

const (
	ResponseConfirmsAbsence ClientResponse = "confirms_absence"
	ResponseDisputes        ClientResponse = "disputes"
)

// NoShowDispute represents one reservation-noshow episode. At most one per
// reservation, enforced by a unique constraint on reservation_id.
type NoShowDispute struct {
	ID                     string               `json:"id" db:"id"`
	ReservationID          string               `json:"reservation_id" db:"reservation_id"`
	Status                 DisputeStatus        `json:"status" db:"status"`
	DeclaredBy             string               `json:"declared_by" db:"declared_by"` // "pro" or "system"
	DeclaredAt             time.Time            `json:"declared_at" db:"declared_at"`
	ClientResponseDeadline time.Time            `json:"client_response_deadline" db:"client_response_deadline"`
	ClientResponse         *ClientResponse      `json:"client_response" db:"client_response"`
	Evidence               []string             `json:"evidence,omitempty" db:"evidence"`
	ArbitratedBy           *string              `json:"arbitrated_by" db:"arbitrated_by"`
	Decision               *ArbitrationDecision `json:"decision" db:"decision"`
	ResolvedAt             *time.Time           `json:"resolved_at" db:"resolved_at"`
	CreatedAt              time.Time            `json:"created_at" db:"created_at"`
}

// SanctionType is the progressive penalty schedule for establishments.
type SanctionType string

const (
	SanctionNone           SanctionType = "none"
	SanctionWarning        SanctionType = "warning"
	SanctionDeactivated7d  SanctionType = "deactivated_7d"
	SanctionDeactivated30d SanctionType = "deactivated_30d"
)

// ProTrustScore is the rolling trust state for an establishment.
type ProTrustScore struct {
	EstablishmentID  string       `json:"establishment_id" db:"establishment_id"`
	FalseNoShowCount int          `json:"false_no_show_count" db:"false_no_show_count"`
	SanctionsCount   int          `json:"sanctions_count" db:"sanctions_count"`
	CurrentSanction  SanctionType `json:"current_sanction" db:"current_sanction"`
	DeactivatedUntil *time.Time   `json:"deactivated_until" db:"deactivated_until"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// ProSanction is an immutable sanction entry; rows are append-only.
type ProSanction struct {
	ID              string       `json:"id" db:"id"`
	EstablishmentID string       `json:"establishment_id" db:"establishment_id"`
	DisputeID       string       `json:"dispute_id" db:"dispute_id"`
	SanctionType    SanctionType `json:"sanction_type" db:"sanction_type"`
	Reason          string       `json:"reason" db:"reason"`
	ImposedBy       string       `json:"imposed_by" db:"imposed_by"`
	StartsAt        time.Time    `json:"starts_at" db:"starts_at"`
	EndsAt          *time.Time   `json:"ends_at" db:"ends_at"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// WaitlistStatus is the lifecycle of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistWaiting      WaitlistStatus = "waiting"
	WaitlistQueued       WaitlistStatus = "queued"
	WaitlistOfferSent    WaitlistStatus = "offer_sent"
	WaitlistOfferExpired WaitlistStatus = "offer_expired"
	WaitlistRemoved      WaitlistStatus = "removed"
)

// WaitlistEntry queues a reservation for freed capacity on a slot.
// offer_expires_at is only set while status is offer_sent.
type WaitlistEntry struct {
	ID             string         `json:"id" db:"id"`
	SlotID         string         `json:"slot_id" db:"slot_id"`
	ReservationID  string         `json:"reservation_id" db:"reservation_id"`
	ConsumerID     string         `json:"consumer_id" db:"consumer_id"`
	Status         WaitlistStatus `json:"status" db:"status"`
	Position       int            `json:"position" db:"position"`
	OfferSentAt    *time.Time     `json:"offer_sent_at" db:"offer_sent_at"`
	OfferExpiresAt *time.Time     `json:"offer_expires_at" db:"offer_expires_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
