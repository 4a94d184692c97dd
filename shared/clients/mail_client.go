package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MailClient asks the participation service to send portal mail
type MailClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMailClient talks to the participation service at baseURL
func NewMailClient(baseURL string, timeout time.Duration) *MailClient {
	return &MailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PasswordResetEmailRequest carries a temporary password to its owner
type PasswordResetEmailRequest struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	TemporaryPassword string `json:"temporary_password"`
}

// SendPasswordResetEmail queues the temporary password mail. authorization
// is the caller's Authorization header, the endpoint needs the same
// permission as the reset itself.
func (mc *MailClient) SendPasswordResetEmail(ctx context.Context, authorization string, req PasswordResetEmailRequest) error {
	return mc.post(ctx, "/api/internal/mail/password-reset", authorization, req)
}

func (mc *MailClient) post(ctx context.Context, endpoint, authorization string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mc.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := mc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("participation service returned status: %d", resp.StatusCode)
	}
	return nil
}
