package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifyClient talks to the notification dispatcher. All calls are
// fire-and-forget from the core's point of view: callers log failures and
// continue.
type NotifyClient struct {
	baseURL    string
	httpClient *http.Client
}

type NotifyConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewNotifyClient(cfg NotifyConfig) *NotifyClient {
	return &NotifyClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type consumerNotification struct {
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type establishmentNotification struct {
	EstablishmentID string         `json:"establishment_id"`
	Category        string         `json:"category"`
	Title           string         `json:"title"`
	Body            string         `json:"body"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type adminNotification struct {
	Type  string         `json:"type"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// NotifyConsumer sends an in-app/push notification to a consumer.
func (c *NotifyClient) NotifyConsumer(userID, eventType string, metadata map[string]any) error {
	return c.post("/notify/consumer", consumerNotification{
		UserID:    userID,
		EventType: eventType,
		Metadata:  metadata,
	})
}

// NotifyEstablishmentMembers fans a notification out to all members of an
// establishment.
func (c *NotifyClient) NotifyEstablishmentMembers(establishmentID, category, title, body string, metadata map[string]any) error {
	return c.post("/notify/establishment", establishmentNotification{
		EstablishmentID: establishmentID,
		Category:        category,
		Title:           title,
		Body:            body,
		Metadata:        metadata,
	})
}

// NotifyAdmin creates an in-app notification for the admin back office.
func (c *NotifyClient) NotifyAdmin(notifType, title, body string, data map[string]any) error {
	return c.post("/notify/admin", adminNotification{
		Type:  notifType,
		Title: title,
		Body:  body,
		Data:  data,
	})
}

func (c *NotifyClient) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}

	return nil
}
