package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/pkg/fhirmodels"
)

// Request headers set on every submission.
const (
	HeaderSignature = "X-Signature"
	HeaderRecipient = "X-Recipient-ID"
	HeaderDelivery  = "X-Delivery-ID"
	HeaderTimestamp = "X-Delivery-Timestamp"
)

// SignPayload computes an HMAC-SHA256 signature of the payload using the given secret,
// returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the HMAC-SHA256
// of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Option configures an HTTPSubmitter.
type Option func(*HTTPSubmitter)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSubmitter) { s.httpClient = c }
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(s *HTTPSubmitter) { s.maxRetries = n }
}

// WithRetryDelays sets the wait before each retry. The last delay repeats.
func WithRetryDelays(d ...time.Duration) Option {
	return func(s *HTTPSubmitter) { s.retryDelays = d }
}

// HTTPSubmitter POSTs the bundle as application/fhir+json to a single
// endpoint, signed with HMAC-SHA256 over the body.
type HTTPSubmitter struct {
	endpoint    string
	secret      string
	httpClient  *http.Client
	maxRetries  int
	retryDelays []time.Duration
	logger      zerolog.Logger
}

func NewHTTPSubmitter(endpoint, secret string, logger zerolog.Logger, opts ...Option) *HTTPSubmitter {
	s := &HTTPSubmitter{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries:  3,
		retryDelays: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		logger:      logger.With().Str("component", "delivery").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// attempt is the outcome of one POST.
type attempt struct {
	statusCode int
	body       []byte
	err        error
}

func (a attempt) retryable() bool {
	return a.err != nil || a.statusCode >= 500 || a.statusCode == http.StatusTooManyRequests
}

// Submit delivers the bundle, retrying transport failures and 5xx/429
// answers. A 2xx answer is success; the recipient's id is taken from an
// {"id": ...} body when present, else the delivery id is used.
func (s *HTTPSubmitter) Submit(ctx context.Context, recipientID string, bundle *fhir.Bundle) (Result, error) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return Result{}, fmt.Errorf("encode bundle: %w", err)
	}
	deliveryID := uuid.New().String()
	sig := SignPayload(payload, s.secret)

	var last attempt
	for n := 0; n <= s.maxRetries; n++ {
		if n > 0 {
			if err := s.wait(ctx, n); err != nil {
				return Result{}, err
			}
		}
		start := time.Now()
		last = s.post(ctx, recipientID, deliveryID, sig, payload)
		s.logger.Debug().
			Str("delivery_id", deliveryID).
			Int("attempt", n+1).
			Int("status", last.statusCode).
			Dur("duration", time.Since(start)).
			Err(last.err).
			Msg("delivery attempt")
		if !last.retryable() {
			break
		}
	}

	if last.err != nil {
		return Result{}, fmt.Errorf("deliver to %s: %w", recipientID, last.err)
	}
	if last.statusCode < 200 || last.statusCode >= 300 {
		s.logger.Warn().Str("delivery_id", deliveryID).Int("status", last.statusCode).Msg("delivery rejected")
		return Result{Success: false, ID: deliveryID}, nil
	}

	id := deliveryID
	var ack struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(last.body, &ack) == nil && ack.ID != "" {
		id = ack.ID
	}
	return Result{Success: true, ID: id}, nil
}

func (s *HTTPSubmitter) post(ctx context.Context, recipientID, deliveryID, sig string, payload []byte) attempt {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return attempt{err: err}
	}
	req.Header.Set("Content-Type", fhirmodels.MediaTypeFHIRJSON)
	req.Header.Set(HeaderSignature, "sha256="+sig)
	req.Header.Set(HeaderRecipient, recipientID)
	req.Header.Set(HeaderDelivery, deliveryID)
	req.Header.Set(HeaderTimestamp, time.Now().UTC().Format(time.RFC3339))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return attempt{err: err}
	}
	defer resp.Body.Close()

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return attempt{statusCode: resp.StatusCode, body: body}
}

func (s *HTTPSubmitter) wait(ctx context.Context, retry int) error {
	if len(s.retryDelays) == 0 {
		return ctx.Err()
	}
	i := retry - 1
	if i >= len(s.retryDelays) {
		i = len(s.retryDelays) - 1
	}
	t := time.NewTimer(s.retryDelays[i])
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
