// Package discord fetches guild members from the Discord REST API.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/config"
	"guild_ledger/internal/retry"
)

const DefaultBaseURL = "https://discord.com/api/v10"

// memberTTL bounds how long a nickname is trusted. Nicknames change rarely and a
// single event log mentions the same people several times.
const memberTTL = 10 * time.Minute

// ErrUnknownMember is returned when the user is not a member of the guild.
var ErrUnknownMember = errors.New("unknown guild member")

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

type Member struct {
	User User   `json:"user"`
	Nick string `json:"nick"`
}

// DisplayName is the in-guild nickname when set, otherwise the account name.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord API request failed with status %d: %s", e.StatusCode, e.Body)
}

type cachedMember struct {
	member    *Member
	timestamp time.Time
}

type Client struct {
	token        string
	guildID      string
	baseURL      string
	client       *http.Client
	policy       *retry.Policy
	memberCache  sync.Map
	apiCallCount int64
	apiCallMutex sync.Mutex
}

func NewClient(token, guildID string) *Client {
	return &Client{
		token:   token,
		guildID: guildID,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		policy: retry.NewPolicy(config.DefaultResilienceConfig.APIRequest, isRetryable),
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithPolicy replaces the retry policy used for API calls.
func (c *Client) WithPolicy(p *retry.Policy) *Client {
	c.policy = p
	return c
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// ResetAPICallCount resets the API call counter to zero
func (c *Client) ResetAPICallCount() {
	c.apiCallMutex.Lock()
	c.apiCallCount = 0
	c.apiCallMutex.Unlock()
}

// GetMember fetches a guild member, serving recent lookups from cache.
func (c *Client) GetMember(ctx context.Context, userID string) (*Member, error) {
	if cached, ok := c.memberCache.Load(userID); ok {
		entry := cached.(cachedMember)
		if time.Since(entry.timestamp) < memberTTL {
			return entry.member, nil
		}
	}

	member, err := retry.Run(ctx, c.policy, func(ctx context.Context) (*Member, error) {
		return c.fetchMember(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	c.memberCache.Store(userID, cachedMember{
		member:    member,
		timestamp: time.Now(),
	})
	return member, nil
}

// DisplayName returns the name shown for userID in the guild.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	member, err := c.GetMember(ctx, userID)
	if err != nil {
		return "", err
	}
	return member.DisplayName(), nil
}

func (c *Client) fetchMember(ctx context.Context, userID string) (*Member, error) {
	url := fmt.Sprintf("%s/guilds/%s/members/%s", c.baseURL, c.guildID, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	c.IncrementAPICall()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMember, userID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var member Member
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().
		Str("user_id", userID).
		Str("name", member.DisplayName()).
		Msg("Fetched guild member")
	return &member, nil
}

// isRetryable retries rate limits and server errors.
func isRetryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
}
