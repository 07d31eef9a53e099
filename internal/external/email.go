package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EmailClient talks to the template email service. Best-effort: failures are
// logged by callers, never propagated into the primary flow.
type EmailClient struct {
	baseURL    string
	httpClient *http.Client
}

type EmailConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewEmailClient(cfg EmailConfig) *EmailClient {
	return &EmailClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type templateEmailRequest struct {
	TemplateKey string            `json:"template_key"`
	Lang        string            `json:"lang"`
	To          string            `json:"to"`
	Variables   map[string]string `json:"variables,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// SendTemplateEmail renders and sends a template email to a single recipient.
func (c *EmailClient) SendTemplateEmail(templateKey, lang, to string, variables, meta map[string]string) error {
	body, err := json.Marshal(templateEmailRequest{
		TemplateKey: templateKey,
		Lang:        lang,
		To:          to,
		Variables:   variables,
		Meta:        meta,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+"/emails/template", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email service returned %d", resp.StatusCode)
	}

	return nil
}
