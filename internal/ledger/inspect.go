package ledger

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/sheets"
)

// QuotaStatus is read from the background color of a user's name cell.
type QuotaStatus string

const (
	QuotaPassed  QuotaStatus = "passed"
	QuotaFailed  QuotaStatus = "failed"
	QuotaExcused QuotaStatus = "excused"
	QuotaUnknown QuotaStatus = "unknown"
)

// Stat is one header/value pair of a user's row.
type Stat struct {
	Header string
	Value  string
}

// Profile is a user's ledger row as shown by inspect.
type Profile struct {
	Username string
	Section  Section
	Row      int
	Stats    []Stat
	Color    string
	Status   QuotaStatus
}

// Stat returns the value under header, or "" if the block has no such column.
func (p Profile) Stat(header string) string {
	for _, s := range p.Stats {
		if s.Header == header {
			return s.Value
		}
	}
	return ""
}

// Inspect reads a user's row and quota marker. The bool is false when the user has
// no row in Officer or Main.
func (l *Ledger) Inspect(ctx context.Context, username string) (Profile, bool, error) {
	for _, section := range sectionPriority {
		ws, rows, err := l.rows.read(ctx, section)
		if err != nil {
			return Profile{}, false, err
		}
		lookup := l.rows.locateIn(section, username, rows)
		if !lookup.Found {
			continue
		}

		profile := Profile{Username: username, Section: section, Row: lookup.Row, Status: QuotaUnknown}
		row := rows[lookup.Row-1]
		if headerRow, ok := l.columns.HeaderRow(lookup.Row); ok && headerRow <= len(rows) {
			for i, h := range rows[headerRow-1] {
				h = strings.TrimSpace(h)
				if h == "" {
					continue
				}
				value := ""
				if i < len(row) {
					value = row[i]
				}
				profile.Stats = append(profile.Stats, Stat{Header: h, Value: value})
			}
		}

		color, err := ws.BackgroundColor(ctx, lookup.Row, cellIndex(row, username)+1)
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Failed to read quota color")
			return profile, true, nil
		}
		profile.Color = color
		profile.Status = l.classify(color)
		return profile, true, nil
	}
	return Profile{}, false, nil
}

func (l *Ledger) classify(color string) QuotaStatus {
	c := sheets.NormalizeHex(color)
	q := l.cfg.QuotaColors
	switch c {
	case sheets.NormalizeHex(q.Passed):
		return QuotaPassed
	case sheets.NormalizeHex(q.Failed):
		return QuotaFailed
	case sheets.NormalizeHex(q.Excused):
		return QuotaExcused
	default:
		return QuotaUnknown
	}
}
