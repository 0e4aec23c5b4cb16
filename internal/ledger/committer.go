package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/metrics"
	"guild_ledger/internal/retry"
)

// Applied is an update that reached the store, with the cells it produced.
type Applied struct {
	Update PendingUpdate
	Writes []StagedWrite
}

// Skipped is an update left out of a commit.
type Skipped struct {
	Update PendingUpdate
	Reason error
}

// CommitResult reports what a commit did. Updates of a section whose write failed
// appear in Failed, not Applied.
type CommitResult struct {
	Applied []Applied
	Skipped []Skipped
	Failed  []PendingUpdate
	Writes  int
}

// Committer groups updates per section and writes each group in one call.
type Committer struct {
	book        Book
	engine      *Engine
	writePolicy *retry.Policy
	metrics     *metrics.Metrics
}

func NewCommitter(book Book, engine *Engine, writePolicy *retry.Policy, m *metrics.Metrics) *Committer {
	return &Committer{book: book, engine: engine, writePolicy: writePolicy, metrics: m}
}

// Commit stages and writes updates. Unresolvable rows and columns are skipped. A
// section whose write fails does not stop later sections, and nothing already
// written is rolled back; the returned error joins every section failure.
func (c *Committer) Commit(ctx context.Context, updates []PendingUpdate) (CommitResult, error) {
	return c.CommitSnapshots(ctx, updates, nil)
}

// CommitSnapshots is Commit staging each section against its snapshot, when one is
// given, instead of reading the section again.
func (c *Committer) CommitSnapshots(ctx context.Context, updates []PendingUpdate, snapshots Snapshots) (CommitResult, error) {
	var result CommitResult
	var errs []error

	for _, group := range groupBySection(updates) {
		if err := c.commitSection(ctx, group.section, group.updates, snapshots[group.section], &result); err != nil {
			errs = append(errs, err)
		}
	}

	log.Info().
		Int("updates", len(updates)).
		Int("applied", len(result.Applied)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Int("batch_writes", result.Writes).
		Msg("Ledger commit finished")

	return result, errors.Join(errs...)
}

func (c *Committer) commitSection(ctx context.Context, section Section, updates []PendingUpdate, snapshot [][]string, result *CommitResult) error {
	ws, err := c.book.Worksheet(ctx, section)
	if err != nil {
		result.Failed = append(result.Failed, updates...)
		return fmt.Errorf("commit %s: %w", section, err)
	}

	b := newBatch(section, ws)
	if snapshot != nil {
		b.preload(snapshot)
	}
	var applied []Applied
	for i, u := range updates {
		writes, err := c.engine.stage(ctx, b, u)
		if err == nil {
			applied = append(applied, Applied{Update: u, Writes: writes})
			continue
		}
		if !isSoft(err) {
			for _, a := range applied {
				result.Failed = append(result.Failed, a.Update)
			}
			result.Failed = append(result.Failed, updates[i:]...)
			c.metrics.BatchWrite(string(section), "read_error")
			return fmt.Errorf("commit %s: %w", section, err)
		}
		log.Warn().
			Err(err).
			Str("section", string(section)).
			Str("username", u.Username).
			Str("header", u.Header).
			Msg("Skipping ledger update")
		c.metrics.UpdateSkipped(string(section), skipReason(err))
		result.Skipped = append(result.Skipped, Skipped{Update: u, Reason: err})
	}

	cells := b.cells()
	if len(cells) == 0 {
		log.Debug().Str("section", string(section)).Msg("Nothing to write for section")
		return nil
	}

	write := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ws.BatchUpdate(ctx, cells)
	}
	if c.writePolicy != nil {
		_, err = retry.Run(ctx, c.writePolicy, write)
	} else {
		_, err = write(ctx)
	}
	if err != nil {
		c.metrics.BatchWrite(string(section), "error")
		for _, a := range applied {
			result.Failed = append(result.Failed, a.Update)
		}
		log.Error().
			Err(err).
			Str("section", string(section)).
			Int("cells", len(cells)).
			Msg("Failed to write ledger batch")
		return fmt.Errorf("commit %s: %w", section, err)
	}

	c.metrics.BatchWrite(string(section), "ok")
	for _, a := range applied {
		c.metrics.UpdateApplied(string(section), a.Update.Header)
	}
	result.Applied = append(result.Applied, applied...)
	result.Writes++

	log.Info().
		Str("section", string(section)).
		Int("updates", len(applied)).
		Int("cells", len(cells)).
		Msg("Wrote ledger batch")
	return nil
}

type sectionGroup struct {
	section Section
	updates []PendingUpdate
}

// groupBySection keeps sections in order of first appearance and updates in input
// order within each section.
func groupBySection(updates []PendingUpdate) []sectionGroup {
	var groups []sectionGroup
	index := make(map[Section]int)
	for _, u := range updates {
		i, ok := index[u.Section]
		if !ok {
			i = len(groups)
			index[u.Section] = i
			groups = append(groups, sectionGroup{section: u.Section})
		}
		groups[i].updates = append(groups[i].updates, u)
	}
	return groups
}

func isSoft(err error) bool {
	return errors.Is(err, ErrRowNotFound) || errors.Is(err, ErrColumnNotFound) || errors.Is(err, ErrInvalidAmount)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrRowNotFound):
		return "row_not_found"
	case errors.Is(err, ErrColumnNotFound):
		return "column_not_found"
	default:
		return "invalid"
	}
}
