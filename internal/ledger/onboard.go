package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/retry"
)

// Member is a new recruit to add to the Main worksheet.
type Member struct {
	Username string
	Rank     string
}

// Onboard inserts a zeroed row for m at the configured insertion row and paints the
// username cell with the marker color. Inserting shifts every row below, so the Main
// row cache is dropped.
func (l *Ledger) Onboard(ctx context.Context, m Member) (int, error) {
	username := strings.TrimSpace(m.Username)
	if username == "" {
		return 0, fmt.Errorf("onboard: username is required")
	}

	section, found, err := l.rows.FindSection(ctx, username)
	if err != nil {
		return 0, err
	}
	if found {
		return 0, fmt.Errorf("%w: %s in %s", ErrAlreadyExists, username, section)
	}

	ws, err := l.book.Worksheet(ctx, SectionMain)
	if err != nil {
		return 0, err
	}

	ob := l.cfg.Onboarding
	values := onboardingRow(ob.RankColumn, ob.UsernameColumn, ob.StatColumns, m.Rank, username)
	row := ob.InsertRow

	if err := l.mutate(ctx, func(ctx context.Context) error { return ws.InsertRow(ctx, values, row) }); err != nil {
		return 0, fmt.Errorf("onboard %s: %w", username, err)
	}
	l.rows.InvalidateSection(SectionMain)

	if ob.MarkerColor != "" {
		err := l.mutate(ctx, func(ctx context.Context) error {
			return ws.SetBackgroundColor(ctx, row, ob.UsernameColumn, ob.MarkerColor)
		})
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Failed to set onboarding marker color")
		}
	}

	log.Info().
		Str("username", username).
		Str("rank", m.Rank).
		Int("row", row).
		Msg("Onboarded member")
	return row, nil
}

func (l *Ledger) mutate(ctx context.Context, op func(context.Context) error) error {
	call := func(ctx context.Context) (struct{}, error) { return struct{}{}, op(ctx) }
	if l.writePolicy == nil {
		_, err := call(ctx)
		return err
	}
	_, err := retry.Run(ctx, l.writePolicy, call)
	return err
}

// onboardingRow lays out rank and username at their columns, followed by zeroed
// stat columns.
func onboardingRow(rankCol, usernameCol, statCols int, rank, username string) []interface{} {
	width := max(rankCol, usernameCol) + statCols
	values := make([]interface{}, width)
	for i := range values {
		values[i] = ""
	}
	if rankCol > 0 {
		values[rankCol-1] = rank
	}
	values[usernameCol-1] = username
	for i := max(rankCol, usernameCol); i < width; i++ {
		values[i] = 0
	}
	return values
}
