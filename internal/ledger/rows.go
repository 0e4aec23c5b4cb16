package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/retry"
)

// sectionPriority is the order in which sections are searched for a user.
var sectionPriority = []Section{SectionOfficer, SectionMain}

// RowLookup is the outcome of locating a user. A missing user is not an error.
type RowLookup struct {
	Row   int
	Found bool
}

// RowLocator finds the row holding a username in a section's worksheet.
type RowLocator struct {
	book       Book
	cache      *RowCache
	readPolicy *retry.Policy
}

// NewRowLocator builds a locator. Bulk reads retry under readPolicy when it is set.
func NewRowLocator(book Book, cache *RowCache, readPolicy *retry.Policy) *RowLocator {
	return &RowLocator{book: book, cache: cache, readPolicy: readPolicy}
}

// Snapshots holds the rows read per section during a lookup so a following commit
// can stage against them instead of reading again.
type Snapshots map[Section][][]string

// FindRow returns the 1-based row whose cells contain username exactly. Cached rows
// are returned without a remote read.
func (l *RowLocator) FindRow(ctx context.Context, section Section, username string) (RowLookup, error) {
	if row, ok := l.cached(section, username); ok {
		return RowLookup{Row: row, Found: true}, nil
	}

	_, rows, err := l.read(ctx, section)
	if err != nil {
		return RowLookup{}, err
	}
	return l.scan(section, username, rows), nil
}

// FindSection reports which section holds username, checking Officer before Main.
func (l *RowLocator) FindSection(ctx context.Context, username string) (Section, bool, error) {
	found, _, err := l.LocateSections(ctx, []string{username})
	if err != nil {
		return "", false, err
	}
	section, ok := found[username]
	return section, ok, nil
}

// FindSections resolves many usernames with at most one read per section. Users
// found in neither section are absent from the result.
func (l *RowLocator) FindSections(ctx context.Context, usernames []string) (map[string]Section, error) {
	found, _, err := l.LocateSections(ctx, usernames)
	return found, err
}

// LocateSections is FindSections that also returns the rows it read. Sections
// answered entirely from the cache are not read and have no snapshot.
func (l *RowLocator) LocateSections(ctx context.Context, usernames []string) (map[string]Section, Snapshots, error) {
	found := make(map[string]Section, len(usernames))
	snapshots := make(Snapshots)
	for _, section := range sectionPriority {
		var pending []string
		for _, u := range usernames {
			if _, ok := found[u]; ok {
				continue
			}
			if _, ok := l.cached(section, u); ok {
				found[u] = section
				continue
			}
			pending = append(pending, u)
		}
		if len(pending) == 0 {
			continue
		}

		_, rows, err := l.read(ctx, section)
		if err != nil {
			return nil, nil, err
		}
		snapshots[section] = rows
		for _, u := range pending {
			if l.scan(section, u, rows).Found {
				found[u] = section
			}
		}
	}
	return found, snapshots, nil
}

// SectionFor is FindSection with the Main fallback used when crediting points.
func (l *RowLocator) SectionFor(ctx context.Context, username string) (Section, error) {
	section, _, err := l.locateFor(ctx, username)
	return section, err
}

func (l *RowLocator) locateFor(ctx context.Context, username string) (Section, Snapshots, error) {
	found, snapshots, err := l.LocateSections(ctx, []string{username})
	if err != nil {
		return "", nil, err
	}
	section, ok := found[username]
	if !ok {
		log.Debug().Str("username", username).Msg("User not found in any section, defaulting to Main")
		return SectionMain, snapshots, nil
	}
	return section, snapshots, nil
}

// Invalidate drops the cached row of one user.
func (l *RowLocator) Invalidate(section Section, username string) {
	l.cache.remove(rowKey{section: section, username: username})
}

// InvalidateSection drops every cached row of a section, e.g. after a row insert.
func (l *RowLocator) InvalidateSection(section Section) {
	n := l.cache.removeIf(func(k rowKey) bool { return k.section == section })
	log.Debug().Str("section", string(section)).Int("entries", n).Msg("Invalidated cached rows")
}

// read loads every row of a section's worksheet, retrying rate limited calls.
func (l *RowLocator) read(ctx context.Context, section Section) (Worksheet, [][]string, error) {
	ws, err := l.book.Worksheet(ctx, section)
	if err != nil {
		return nil, nil, err
	}
	rows, err := readRows(ctx, ws, l.readPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s rows: %w", section, err)
	}
	return ws, rows, nil
}

func readRows(ctx context.Context, ws Worksheet, policy *retry.Policy) ([][]string, error) {
	if policy == nil {
		return ws.Rows(ctx)
	}
	return retry.Run(ctx, policy, func(ctx context.Context) ([][]string, error) { return ws.Rows(ctx) })
}

func (l *RowLocator) cached(section Section, username string) (int, bool) {
	return l.cache.get(rowKey{section: section, username: username})
}

// locateIn resolves a row against an already read snapshot. A cached row that no
// longer holds the user is discarded and the snapshot rescanned.
func (l *RowLocator) locateIn(section Section, username string, rows [][]string) RowLookup {
	if row, ok := l.cached(section, username); ok {
		if row <= len(rows) && rowContains(rows[row-1], username) {
			return RowLookup{Row: row, Found: true}
		}
		log.Debug().
			Str("section", string(section)).
			Str("username", username).
			Int("row", row).
			Msg("Cached row is stale, rescanning")
		l.Invalidate(section, username)
	}
	return l.scan(section, username, rows)
}

func (l *RowLocator) scan(section Section, username string, rows [][]string) RowLookup {
	for i, row := range rows {
		if rowContains(row, username) {
			l.cache.add(rowKey{section: section, username: username}, i+1)
			return RowLookup{Row: i + 1, Found: true}
		}
	}
	return RowLookup{}
}

func rowContains(row []string, username string) bool {
	return cellIndex(row, username) >= 0
}

// cellIndex returns the 0-based index of the first cell equal to value, or -1.
func cellIndex(row []string, value string) int {
	if value == "" {
		return -1
	}
	for i, cell := range row {
		if cell == value {
			return i
		}
	}
	return -1
}
