package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/civic-reports/pkg/httpclient"
)

const resendBaseURL = "https://api.resend.com"

// EmailClient sends email through the Resend HTTP API.
type EmailClient struct {
	client *httpclient.Client
	apiKey string
	from   string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// NewEmailClient creates a Resend client. baseURL may be empty.
func NewEmailClient(baseURL, apiKey, from string) *EmailClient {
	if baseURL == "" {
		baseURL = resendBaseURL
	}
	return &EmailClient{
		client: httpclient.NewClient(baseURL, 10*time.Second).Apply(httpclient.WithDefaultRetry()),
		apiKey: apiKey,
		from:   from,
	}
}

// SendEmail implements EmailSender
func (c *EmailClient) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	body, err := c.client.Post(ctx, "/emails", resendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}, map[string]string{"Authorization": "Bearer " + c.apiKey})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	var resp resendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode email response: %w", err)
	}
	return resp.ID, nil
}
