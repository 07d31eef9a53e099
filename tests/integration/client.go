package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"reserva/internal/models"
)

// TestClient provides methods for exercising a running API instance
type TestClient struct {
	BaseURL    string
	Email      string
	Password   string
	HTTPClient *http.Client
}

// NewTestClient creates a new test client authenticating as the given consumer
func NewTestClient(baseURL, email, password string) *TestClient {
	return &TestClient{
		BaseURL:  baseURL,
		Email:    email,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiEnvelope struct {
	OK        bool                   `json:"ok"`
	Data      json.RawMessage        `json:"data,omitempty"`
	ErrorCode string                 `json:"errorCode,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// MetaInt reads a numeric meta field, defaulting to 0 when absent
func (e *apiEnvelope) MetaInt(key string) int {
	if v, ok := e.Meta[key].(float64); ok {
		return int(v)
	}
	return 0
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.Email, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// decode reads the envelope and unmarshals data into out when given
func (c *TestClient) decode(t *testing.T, resp *http.Response, wantStatus int, out interface{}) *apiEnvelope {
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d. Body: %s", wantStatus, resp.StatusCode, string(raw))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Failed to decode response envelope: %v. Body: %s", err, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("Failed to decode response data: %v. Body: %s", err, string(raw))
		}
	}

	return &env
}

// CreateReservation creates a reservation
func (c *TestClient) CreateReservation(t *testing.T, req models.CreateReservationRequest) *models.CreateReservationResponse {
	resp := c.makeRequest(t, "POST", "/api/reservations", req)

	var created models.CreateReservationResponse
	c.decode(t, resp, http.StatusCreated, &created)
	return &created
}

// TryCreateReservation attempts a creation and returns the envelope verbatim,
// leaving success and error outcomes to the caller
func (c *TestClient) TryCreateReservation(t *testing.T, req models.CreateReservationRequest) (*models.CreateReservationResponse, *apiEnvelope) {
	resp := c.makeRequest(t, "POST", "/api/reservations", req)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Failed to decode response envelope: %v. Body: %s", err, string(raw))
	}
	if !env.OK {
		return nil, &env
	}

	var created models.CreateReservationResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("Failed to decode response data: %v. Body: %s", err, string(raw))
	}
	return &created, &env
}

// GetReservation fetches one reservation
func (c *TestClient) GetReservation(t *testing.T, id string) *models.ReservationResponse {
	resp := c.makeRequest(t, "GET", "/api/reservations/"+id, nil)

	var reservation models.ReservationResponse
	c.decode(t, resp, http.StatusOK, &reservation)
	return &reservation
}

// ListReservations lists the authed consumer's reservations
func (c *TestClient) ListReservations(t *testing.T) []models.ReservationResponse {
	resp := c.makeRequest(t, "GET", "/api/reservations", nil)

	var reservations []models.ReservationResponse
	c.decode(t, resp, http.StatusOK, &reservations)
	return reservations
}

// CancelReservation cancels a reservation as the client
func (c *TestClient) CancelReservation(t *testing.T, id, reason string) *models.ReservationResponse {
	req := models.CancelReservationRequest{Reason: reason}
	resp := c.makeRequest(t, "PATCH", fmt.Sprintf("/api/reservations/%s/cancel", id), req)

	var reservation models.ReservationResponse
	c.decode(t, resp, http.StatusOK, &reservation)
	return &reservation
}

// AcceptReservation accepts a reservation as the pro
func (c *TestClient) AcceptReservation(t *testing.T, id string) *models.ReservationResponse {
	resp := c.makeRequest(t, "PATCH", fmt.Sprintf("/api/reservations/%s/accept", id), nil)

	var reservation models.ReservationResponse
	c.decode(t, resp, http.StatusOK, &reservation)
	return &reservation
}

// GetMyScore fetches the authed consumer's reliability snapshot
func (c *TestClient) GetMyScore(t *testing.T) *models.ScoreSnapshot {
	resp := c.makeRequest(t, "GET", "/api/me/score", nil)

	var snapshot models.ScoreSnapshot
	c.decode(t, resp, http.StatusOK, &snapshot)
	return &snapshot
}

// GetEstablishmentTrust fetches a pro trust record
func (c *TestClient) GetEstablishmentTrust(t *testing.T, establishmentID string) *models.ProTrustScore {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/establishments/%s/trust", establishmentID), nil)

	var trust models.ProTrustScore
	c.decode(t, resp, http.StatusOK, &trust)
	return &trust
}

// ExpectError makes a request and asserts the envelope error code
func (c *TestClient) ExpectError(t *testing.T, method, path string, body interface{}, wantStatus int, wantCode string) {
	resp := c.makeRequest(t, method, path, body)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d. Body: %s", wantStatus, resp.StatusCode, string(raw))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Failed to decode error envelope: %v. Body: %s", err, string(raw))
	}
	if env.OK {
		t.Fatalf("Expected error envelope, got ok. Body: %s", string(raw))
	}
	if env.ErrorCode != wantCode {
		t.Fatalf("Expected error code %q, got %q. Body: %s", wantCode, env.ErrorCode, string(raw))
	}
}

// HealthCheck checks if the API is healthy
func (c *TestClient) HealthCheck(t *testing.T) {
	resp := c.makeRequest(t, "GET", "/health", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health check failed with status %d", resp.StatusCode)
	}
}
