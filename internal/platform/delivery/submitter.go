// Package delivery submits assembled bundles to external recipients.
package delivery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/platform/fhir"
)

// Modes.
const (
	ModeMock = "mock"
	ModeHTTP = "http"
)

// Result is the recipient's answer to one submission.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Submitter hands a bundle to a recipient. An error means the outcome is
// unknown (transport failure); a definite rejection is Result{Success: false}.
type Submitter interface {
	Submit(ctx context.Context, recipientID string, bundle *fhir.Bundle) (Result, error)
}

// New builds the submitter for mode.
func New(mode, endpoint, secret string, logger zerolog.Logger, opts ...Option) (Submitter, error) {
	switch mode {
	case ModeMock, "":
		return NewMockSubmitter(), nil
	case ModeHTTP:
		if err := validateEndpointURL(endpoint); err != nil {
			return nil, err
		}
		return NewHTTPSubmitter(endpoint, secret, logger, opts...), nil
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", mode)
	}
}

// MockSubmitter accepts every bundle and answers with a time-based id.
type MockSubmitter struct {
	now func() time.Time
}

func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{now: time.Now}
}

func (m *MockSubmitter) Submit(ctx context.Context, _ string, _ *fhir.Bundle) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Success: true, ID: fmt.Sprintf("share_%d", m.now().UnixMilli())}, nil
}

// validateEndpointURL checks that the URL is non-empty and uses http or https.
func validateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("delivery endpoint is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid delivery endpoint: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("delivery endpoint scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
