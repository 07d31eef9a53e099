package integration

import (
	"os"
	"testing"
	"time"

	"reserva/internal/models"
)

// Env knobs for running against a live stack. Tests skip when unset so the
// suite stays green in plain unit-test runs.
const (
	envBaseURL         = "RESERVA_TEST_URL"
	envEmail           = "RESERVA_TEST_EMAIL"
	envPassword        = "RESERVA_TEST_PASSWORD"
	envEmail2          = "RESERVA_TEST_EMAIL_2"
	envPassword2       = "RESERVA_TEST_PASSWORD_2"
	envEmail3          = "RESERVA_TEST_EMAIL_3"
	envPassword3       = "RESERVA_TEST_PASSWORD_3"
	envEstablishmentID = "RESERVA_TEST_ESTABLISHMENT_ID"
	envSlotID          = "RESERVA_TEST_SLOT_ID"
)

// NewClientFromEnv builds a client from the environment or skips the test
func NewClientFromEnv(t *testing.T) *TestClient {
	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		t.Skipf("%s not set, skipping integration test", envBaseURL)
	}
	return NewTestClient(baseURL, os.Getenv(envEmail), os.Getenv(envPassword))
}

// SecondClientFromEnv authenticates as the second seeded consumer or skips.
// Multi-consumer scenarios (waitlist ordering, cross-account access) need it.
func SecondClientFromEnv(t *testing.T) *TestClient {
	return extraClientFromEnv(t, envEmail2, envPassword2)
}

// ThirdClientFromEnv authenticates as the third seeded consumer or skips
func ThirdClientFromEnv(t *testing.T) *TestClient {
	return extraClientFromEnv(t, envEmail3, envPassword3)
}

func extraClientFromEnv(t *testing.T, emailKey, passwordKey string) *TestClient {
	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		t.Skipf("%s not set, skipping integration test", envBaseURL)
	}
	email := os.Getenv(emailKey)
	if email == "" {
		t.Skipf("%s not set, skipping", emailKey)
	}
	return NewTestClient(baseURL, email, os.Getenv(passwordKey))
}

// TestEstablishmentID returns the seeded establishment id or skips
func TestEstablishmentID(t *testing.T) string {
	id := os.Getenv(envEstablishmentID)
	if id == "" {
		t.Skipf("%s not set, skipping", envEstablishmentID)
	}
	return id
}

// TestSlotID returns the seeded slot id, which may be empty
func TestSlotID() *string {
	id := os.Getenv(envSlotID)
	if id == "" {
		return nil
	}
	return &id
}

// FutureStart returns a start time safely outside the protection window
func FutureStart() time.Time {
	return time.Now().Add(96 * time.Hour).Truncate(time.Minute)
}

// AssertReservationExists checks if a reservation appears in the list
func AssertReservationExists(t *testing.T, reservations []models.ReservationResponse, id string) {
	for _, r := range reservations {
		if r.ID == id {
			return
		}
	}
	t.Fatalf("Reservation %s not found in list of %d reservations", id, len(reservations))
}

// LogTestStep logs a test step for better debugging
func LogTestStep(t *testing.T, step string, args ...interface{}) {
	t.Logf("-> "+step, args...)
}

// LogTestResult logs a test result
func LogTestResult(t *testing.T, result string, args ...interface{}) {
	t.Logf("ok: "+result, args...)
}
