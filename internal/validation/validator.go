package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"reserva/internal/models"
)

// SmokeValidator exercises a running instance end to end. It needs seeded
// credentials and at least one establishment with an open slot.
type SmokeValidator struct {
	baseURL         string
	email           string
	password        string
	establishmentID string
	slotID          string
}

type envelope struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewSmokeValidator reads target and credentials from the environment.
func NewSmokeValidator(baseURL string) *SmokeValidator {
	return &SmokeValidator{
		baseURL:         baseURL,
		email:           os.Getenv("VALIDATE_EMAIL"),
		password:        os.Getenv("VALIDATE_PASSWORD"),
		establishmentID: os.Getenv("VALIDATE_ESTABLISHMENT_ID"),
		slotID:          os.Getenv("VALIDATE_SLOT_ID"),
	}
}

// ValidateAll walks the main read and write paths.
func (v *SmokeValidator) ValidateAll() error {
	log.Println("Starting smoke validation...")

	if err := v.validateHealth(); err != nil {
		return fmt.Errorf("health validation failed: %w", err)
	}

	if err := v.validateScore(); err != nil {
		return fmt.Errorf("score validation failed: %w", err)
	}

	if err := v.validateReservations(); err != nil {
		return fmt.Errorf("reservations validation failed: %w", err)
	}

	if err := v.validateTrust(); err != nil {
		return fmt.Errorf("trust validation failed: %w", err)
	}

	log.Println("All endpoints validated successfully")
	return nil
}

func (v *SmokeValidator) validateHealth() error {
	log.Println("Checking /health...")

	resp, err := http.Get(v.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /health: expected 200, got %d", resp.StatusCode)
	}
	return nil
}

func (v *SmokeValidator) validateScore() error {
	log.Println("Checking score endpoints...")

	env, status, err := v.makeRequest("GET", "/api/me/score", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("GET /api/me/score: expected 200 ok, got %d %s", status, env.ErrorCode)
	}

	var snapshot models.ScoreSnapshot
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		return fmt.Errorf("GET /api/me/score: failed to decode data: %w", err)
	}
	if snapshot.Score < 0 || snapshot.Score > 100 {
		return fmt.Errorf("GET /api/me/score: score %d outside [0,100]", snapshot.Score)
	}
	return nil
}

func (v *SmokeValidator) validateReservations() error {
	log.Println("Checking reservation endpoints...")

	if v.establishmentID == "" {
		log.Println("VALIDATE_ESTABLISHMENT_ID not set, skipping creation check")
		return v.validateReservationList()
	}

	req := models.CreateReservationRequest{
		EstablishmentID: v.establishmentID,
		PartySize:       2,
		StartsAt:        time.Now().Add(72 * time.Hour),
	}
	if v.slotID != "" {
		req.SlotID = &v.slotID
	}

	env, status, err := v.makeRequest("POST", "/api/reservations", req)
	if err != nil {
		return err
	}
	if status != http.StatusCreated || !env.OK {
		return fmt.Errorf("POST /api/reservations: expected 201 ok, got %d %s", status, env.ErrorCode)
	}

	var created models.CreateReservationResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return fmt.Errorf("POST /api/reservations: failed to decode data: %w", err)
	}
	if created.BookingRef == "" {
		return fmt.Errorf("POST /api/reservations: expected a booking ref")
	}

	env, status, err = v.makeRequest("GET", "/api/reservations/"+created.ID, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("GET /api/reservations/:id: expected 200 ok, got %d %s", status, env.ErrorCode)
	}

	// Leave the system as found
	cancelBody := models.CancelReservationRequest{Reason: "smoke validation"}
	env, status, err = v.makeRequest("PATCH", "/api/reservations/"+created.ID+"/cancel", cancelBody)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("PATCH /api/reservations/:id/cancel: expected 200 ok, got %d %s", status, env.ErrorCode)
	}

	return v.validateReservationList()
}

func (v *SmokeValidator) validateReservationList() error {
	env, status, err := v.makeRequest("GET", "/api/reservations", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("GET /api/reservations: expected 200 ok, got %d %s", status, env.ErrorCode)
	}
	return nil
}

func (v *SmokeValidator) validateTrust() error {
	if v.establishmentID == "" {
		log.Println("VALIDATE_ESTABLISHMENT_ID not set, skipping trust check")
		return nil
	}

	log.Println("Checking trust endpoints...")

	env, status, err := v.makeRequest("GET", "/api/establishments/"+v.establishmentID+"/trust", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("GET /api/establishments/:id/trust: expected 200 ok, got %d %s", status, env.ErrorCode)
	}
	return nil
}

func (v *SmokeValidator) makeRequest(method, path string, body interface{}) (*envelope, int, error) {
	var reader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(v.email, v.password)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}

	return &env, resp.StatusCode, nil
}

// RunValidation runs the smoke validation against a local instance.
func RunValidation() {
	baseURL := os.Getenv("VALIDATE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}

	validator := NewSmokeValidator(baseURL)
	if err := validator.ValidateAll(); err != nil {
		log.Fatalf("Validation failed: %v", err)
	}
}
