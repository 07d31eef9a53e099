package integration

import (
	"fmt"
	"net/http"
	"testing"

	"reserva/internal/models"
)

// TestAPI_HealthCheck tests the API health endpoint
func TestAPI_HealthCheck(t *testing.T) {
	client := NewClientFromEnv(t)

	LogTestStep(t, "Testing API health check")
	client.HealthCheck(t)
	LogTestResult(t, "API is healthy and responding")
}

// TestAPI_ScoreSnapshot tests the reliability score endpoint
func TestAPI_ScoreSnapshot(t *testing.T) {
	client := NewClientFromEnv(t)

	LogTestStep(t, "Fetching own reliability snapshot")
	snapshot := client.GetMyScore(t)

	if snapshot.Score < 0 || snapshot.Score > 100 {
		t.Fatalf("Score %d outside [0,100]", snapshot.Score)
	}
	if snapshot.Level == "" {
		t.Fatal("Expected a non-empty level")
	}

	LogTestResult(t, "Score %d (%s, %.1f stars)", snapshot.Score, snapshot.Level, snapshot.Stars)
}

// TestAPI_ReservationLifecycle creates, reads and cancels a reservation
func TestAPI_ReservationLifecycle(t *testing.T) {
	client := NewClientFromEnv(t)
	establishmentID := TestEstablishmentID(t)

	LogTestStep(t, "Phase 1: Create reservation")
	created := client.CreateReservation(t, models.CreateReservationRequest{
		EstablishmentID: establishmentID,
		SlotID:          TestSlotID(),
		PartySize:       2,
		StartsAt:        FutureStart(),
	})
	if created.BookingRef == "" {
		t.Fatal("Expected a booking ref")
	}
	LogTestResult(t, "Created reservation %s (%s)", created.ID, created.BookingRef)

	LogTestStep(t, "Phase 2: Verify reservation appears in list")
	reservations := client.ListReservations(t)
	AssertReservationExists(t, reservations, created.ID)

	LogTestStep(t, "Phase 3: Fetch by id")
	reservation := client.GetReservation(t, created.ID)
	if reservation.Status != models.StatusRequested && reservation.Status != models.StatusWaitlist {
		t.Fatalf("Unexpected initial status %s", reservation.Status)
	}

	LogTestStep(t, "Phase 4: Cancel")
	cancelled := client.CancelReservation(t, created.ID, "integration test cleanup")
	if cancelled.Status != models.StatusCancelledUser {
		t.Fatalf("Unexpected status after cancel: %s", cancelled.Status)
	}

	LogTestResult(t, "Reservation lifecycle complete, final status %s", cancelled.Status)
}

// TestAPI_DoubleBookingRejected verifies the double-booking guard end to end
func TestAPI_DoubleBookingRejected(t *testing.T) {
	client := NewClientFromEnv(t)
	establishmentID := TestEstablishmentID(t)

	startsAt := FutureStart()

	LogTestStep(t, "Creating first reservation")
	first := client.CreateReservation(t, models.CreateReservationRequest{
		EstablishmentID: establishmentID,
		SlotID:          TestSlotID(),
		PartySize:       2,
		StartsAt:        startsAt,
	})

	LogTestStep(t, "Attempting overlapping reservation")
	client.ExpectError(t, "POST", "/api/reservations", models.CreateReservationRequest{
		EstablishmentID: establishmentID,
		SlotID:          TestSlotID(),
		PartySize:       2,
		StartsAt:        startsAt,
	}, http.StatusConflict, "double_booking")

	LogTestStep(t, "Cleanup")
	client.CancelReservation(t, first.ID, "integration test cleanup")

	LogTestResult(t, "Double booking rejected as expected")
}

// TestAPI_ValidationErrors tests request validation on the wire
func TestAPI_ValidationErrors(t *testing.T) {
	client := NewClientFromEnv(t)
	establishmentID := TestEstablishmentID(t)

	LogTestStep(t, "Zero party size")
	client.ExpectError(t, "POST", "/api/reservations", map[string]interface{}{
		"establishment_id": establishmentID,
		"party_size":       0,
		"starts_at":        FutureStart(),
	}, http.StatusBadRequest, "invalid_argument")

	LogTestStep(t, "Oversized party redirected to quote flow")
	client.ExpectError(t, "POST", "/api/reservations", models.CreateReservationRequest{
		EstablishmentID: establishmentID,
		SlotID:          TestSlotID(),
		PartySize:       40,
		StartsAt:        FutureStart(),
	}, http.StatusConflict, "redirect_to_quote")

	LogTestStep(t, "Unknown reservation id")
	client.ExpectError(t, "GET", fmt.Sprintf("/api/reservations/%s", "00000000-0000-0000-0000-000000000000"),
		nil, http.StatusNotFound, "reservation_not_found")

	LogTestResult(t, "Validation errors mapped correctly")
}

// TestAPI_EstablishmentTrust reads the pro trust record
func TestAPI_EstablishmentTrust(t *testing.T) {
	client := NewClientFromEnv(t)
	establishmentID := TestEstablishmentID(t)

	LogTestStep(t, "Fetching establishment trust record")
	trust := client.GetEstablishmentTrust(t, establishmentID)

	if trust.EstablishmentID != establishmentID {
		t.Fatalf("Trust record for %s, expected %s", trust.EstablishmentID, establishmentID)
	}

	LogTestResult(t, "Trust record: %d false declarations, %d sanctions", trust.FalseNoShowCount, trust.SanctionsCount)
}
