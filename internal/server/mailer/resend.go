// Package mailer delivers password-reset links through the Resend HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Timeout time.Duration
}

type ResendMailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

func NewResendMailer(cfg ResendConfig) (*ResendMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("resend api key not set")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ResendMailer{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendPasswordReset emails link to the given address.
func (m *ResendMailer) SendPasswordReset(ctx context.Context, to string, link string) error {
	body := sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Reset your password",
		HTML: `
			<p>We received a request to reset your password.</p>
			<p><a href="` + html.EscapeString(link) + `">Choose a new password</a></p>
			<p>The link expires in 15 minutes. If you did not ask for it, ignore this email.</p>
		`,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return nil
}
