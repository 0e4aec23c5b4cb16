package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild_ledger/internal/retry"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	policy := retry.NewPolicy(retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, isRetryable)
	policy.Sleep = noSleep
	return NewClient("token", "guild").WithBaseURL(server.URL).WithPolicy(policy)
}

func TestGetMember(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guilds/guild/members/42", r.URL.Path)
		assert.Equal(t, "Bot token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user":{"id":"42","username":"raw"},"nick":"[LT] | Alice | EST"}`))
	})

	member, err := client.GetMember(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "[LT] | Alice | EST", member.DisplayName())

	_, err = client.GetMember(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), client.GetAPICallCount(), "second lookup is cached")

	client.ResetAPICallCount()
	assert.Equal(t, int64(0), client.GetAPICallCount())
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"7","username":"bob"},"nick":null}`))
	})

	name, err := client.DisplayName(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
}

func TestGetMemberNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unknown Member"}`, http.StatusNotFound)
	})

	_, err := client.GetMember(context.Background(), "9")
	assert.ErrorIs(t, err, ErrUnknownMember)
	assert.Equal(t, int64(1), client.GetAPICallCount(), "not found is not retried")
}

func TestGetMemberRetriesRateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"user":{"id":"5","username":"carol"}}`))
	})

	name, err := client.DisplayName(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "carol", name)
	assert.Equal(t, 2, calls)
}
