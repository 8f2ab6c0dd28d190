package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// BrevoConfig configures the Brevo transactional mail API client.
type BrevoConfig struct {
	APIKey          string
	FromEmail       string
	FromName        string
	Endpoint        string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	// BreakerFailures consecutive failed sends open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// BrevoTransport posts messages to the Brevo HTTP API. Transient failures are
// retried with exponential backoff behind a circuit breaker.
type BrevoTransport struct {
	cfg  BrevoConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	Tags        []string       `json:"tags,omitempty"`
}

func NewBrevoTransport(cfg BrevoConfig, logger *slog.Logger) (*BrevoTransport, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("brevo transport requires an api key and a from address")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = brevoAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "brevo",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Rejected requests are the caller's fault, not an outage.
			var perm *backoff.PermanentError
			return err == nil || errors.As(err, &perm)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"module", "mail.brevo_transport",
				"layer", "adapter",
				"operation", "breaker_transition",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BrevoTransport{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		cb: cb,
	}, nil
}

func (t *BrevoTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(brevoSendRequest{
		Sender:      brevoContact{Email: t.cfg.FromEmail, Name: t.cfg.FromName},
		To:          []brevoContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		Tags:        []string{string(msg.Kind)},
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	operation := func() error {
		_, err := t.cb.Execute(func() (interface{}, error) {
			return nil, t.post(ctx, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = t.cfg.RetryMaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// post performs one API call. 4xx answers are wrapped as permanent so they are not retried.
func (t *BrevoTransport) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build brevo request: %w", err))
	}
	req.Header.Set("api-key", t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("brevo api error: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	default:
		return backoff.Permanent(fmt.Errorf("brevo api rejected message: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail)))
	}
}
