// Package identity turns mentions and display names into ledger usernames.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/discord"
)

// ErrMemberNotFound is returned when a mention does not resolve to a guild member.
var ErrMemberNotFound = errors.New("member not found")

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// MemberDirectory looks up the display name of a guild member by user id.
type MemberDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Resolver struct {
	members MemberDirectory
}

// NewResolver builds a resolver. A nil directory makes every mention unresolvable.
func NewResolver(members MemberDirectory) *Resolver {
	return &Resolver{members: members}
}

// Resolve returns the ledger username for a mention or a plain display string. Only
// a mention of someone outside the guild is ErrMemberNotFound; other directory
// failures are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	userID, ok := MentionID(token)
	if !ok {
		return CanonicalName(token), nil
	}

	if r.members == nil {
		return "", fmt.Errorf("%w: %s (no member directory configured)", ErrMemberNotFound, token)
	}
	name, err := r.members.DisplayName(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to fetch member for mention")
		if errors.Is(err, discord.ErrUnknownMember) {
			return "", fmt.Errorf("%w: %s: %w", ErrMemberNotFound, token, err)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", token, err)
	}

	username := CanonicalName(name)
	log.Debug().
		Str("user_id", userID).
		Str("display_name", name).
		Str("username", username).
		Msg("Resolved mention")
	return username, nil
}

// MentionID extracts the user id from <@id> or <@!id>.
func MentionID(token string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CanonicalName applies the "[Tag] | Username | Timezone" convention: with two or
// more segments the trimmed second one is the username, otherwise the whole name.
func CanonicalName(display string) string {
	parts := strings.Split(display, "|")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(display)
}
