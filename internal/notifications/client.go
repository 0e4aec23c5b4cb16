// Package notifications publishes messages to an ntfy topic.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/retry"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string
	policy     *retry.Policy
	// Circuit breaker state
	failures    int
	lastFailure time.Time
	circuitOpen bool
	mutex       sync.Mutex
	// Metrics
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

// Message is one ntfy publication. Title and Tags map to the ntfy headers of the
// same name.
type Message struct {
	Title string
	Body  string
	Tags  []string
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) Unwrap() error { return e.Underlying }

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, config retry.Config) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		topic:    topic,
		enabled:  enabled,
		priority: priority,
	}
	c.policy = retry.NewPolicy(config, isRetryable)
	c.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.mutex.Lock()
		c.totalRetries++
		c.mutex.Unlock()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Notification attempt failed")
	}
	return c
}

// WithSleeper replaces the backoff sleep, for tests.
func (c *Client) WithSleeper(s retry.Sleeper) *Client {
	c.policy.Sleep = s
	return c
}

func (c *Client) Enabled() bool { return c.enabled }

// Send publishes msg, retrying transient failures. Repeated failures open a circuit
// breaker that rejects sends until the cooldown passes.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{Type: "circuit_open", Underlying: ErrCircuitOpen}
	}

	_, err := retry.Run(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.sendOnce(ctx, msg)
	})
	if err != nil {
		c.recordFailure()
		return err
	}
	c.recordSuccess()
	return nil
}

func (c *Client) sendOnce(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("title", msg.Title).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.Body))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}

	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Msg("Notification sent successfully")
	return nil
}

func isRetryable(err error) bool {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.IsRetryable()
	}
	return false
}

// Circuit breaker helpers

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.circuitOpen {
		return false
	}
	if time.Since(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}
	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()

	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}
