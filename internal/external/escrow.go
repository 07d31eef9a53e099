package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EscrowClient talks to the third-party escrow/settlement service. Holds are
// created when a deposit is paid and settled on check-in, cancellation or
// confirmed no-show according to a refund-percentage policy. Failures are
// logged by callers and corrected later by settlement reconciliation on the
// provider side; they never roll back a reservation write.
type EscrowClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type EscrowConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewEscrowClient(cfg EscrowConfig) *EscrowClient {
	return &EscrowClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type escrowHoldRequest struct {
	ReservationID string `json:"reservation_id"`
	Actor         string `json:"actor"`
}

type escrowSettleRequest struct {
	ReservationID string `json:"reservation_id"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
	RefundPercent int    `json:"refund_percent"`
}

type escrowResponse struct {
	Success bool   `json:"success"`
	HoldID  string `json:"hold_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// EnsureEscrowHold creates (or confirms) a hold for a paid reservation.
func (c *EscrowClient) EnsureEscrowHold(reservationID, actor string) error {
	return c.post("/escrow/hold", escrowHoldRequest{
		ReservationID: reservationID,
		Actor:         actor,
	})
}

// Settle releases held funds with the given refund percentage.
func (c *EscrowClient) Settle(reservationID, actor, reason string, refundPercent int) error {
	return c.post("/escrow/settle", escrowSettleRequest{
		ReservationID: reservationID,
		Actor:         actor,
		Reason:        reason,
		RefundPercent: refundPercent,
	})
}

func (c *EscrowClient) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal escrow request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build escrow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("escrow request failed: %w", err)
	}
	defer resp.Body.Close()

	var result escrowResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode escrow response: %w", err)
	}

	if resp.StatusCode >= 400 || !result.Success {
		return fmt.Errorf("escrow service returned %d: %s", resp.StatusCode, result.Message)
	}

	return nil
}
