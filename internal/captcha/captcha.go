// Package captcha verifies anti-automation tokens submitted with step-2
// finalization.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prato/internal/platform/config"
	"prato/pkg/platform/sentinel"
)

// Verifier is the anti-bot collaborator. A false result with nil error means
// the token failed verification; a non-nil error means the verification
// service itself was unreachable (retryable, not a validation failure).
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// GoogleVerifier checks tokens against the reCAPTCHA siteverify endpoint.
type GoogleVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewGoogleVerifier(cfg config.CaptchaConfig) *GoogleVerifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &GoogleVerifier{
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	form := url.Values{"secret": {v.secret}, "response": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: captcha verification: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: captcha verification: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: captcha verification: %w", sentinel.ErrUnavailable, err)
	}
	return body.Success, nil
}

// ThresholdVerifier accepts any token longer than ten characters. It exists
// for development and tests, where real siteverify calls are unwanted.
type ThresholdVerifier struct{}

func (ThresholdVerifier) Verify(_ context.Context, token string) (bool, error) {
	return len(token) > 10, nil
}
