package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/config"
	"guild_ledger/internal/metrics"
	"guild_ledger/internal/retry"
	"guild_ledger/internal/sheets"
)

// Ledger wires the locators, the update engine and the committer around one Book.
type Ledger struct {
	book      Book
	cfg       config.LedgerConfig
	rows      *RowLocator
	columns   *ColumnResolver
	engine    *Engine
	committer *Committer
	metrics   *metrics.Metrics

	writePolicy *retry.Policy
	readPolicy  *retry.Policy
}

type Option func(*Ledger)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithWritePolicy replaces the retry policy used for mutating calls.
func WithWritePolicy(p *retry.Policy) Option {
	return func(l *Ledger) { l.writePolicy = p }
}

// WithReadPolicy replaces the retry policy used for bulk reads.
func WithReadPolicy(p *retry.Policy) Option {
	return func(l *Ledger) { l.readPolicy = p }
}

// New builds a ledger. Without options, writes retry rate limited calls with the
// SheetWrite preset and reads with the SheetRead preset.
func New(book Book, cfg config.LedgerConfig, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		book:        book,
		cfg:         cfg,
		writePolicy: retry.NewPolicy(config.DefaultResilienceConfig.SheetWrite, sheets.IsRateLimited),
		readPolicy:  retry.NewPolicy(config.DefaultResilienceConfig.SheetRead, sheets.IsRateLimited),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.writePolicy = l.observe(l.writePolicy)
	l.readPolicy = l.observe(l.readPolicy)

	l.rows = NewRowLocator(book, NewRowCache(cfg.CacheCapacity, l.metrics), l.readPolicy)
	l.columns = NewColumnResolver(cfg.HeaderRows, NewColumnCache(cfg.CacheCapacity, l.metrics))
	l.engine = NewEngine(l.rows, l.columns, l.readPolicy)
	l.committer = NewCommitter(book, l.engine, l.writePolicy, l.metrics)
	return l, nil
}

// observe returns a copy of p that reports backoffs to this ledger. Policies passed
// in by callers are never modified.
func (l *Ledger) observe(p *retry.Policy) *retry.Policy {
	if p == nil {
		return nil
	}
	cp := *p
	if cp.OnRetry == nil {
		cp.OnRetry = l.onRetry
	}
	return &cp
}

func (l *Ledger) onRetry(attempt int, delay time.Duration, err error) {
	l.metrics.RetrySleep()
	log.Warn().
		Err(err).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Sheets rate limited, backing off")
}

func (l *Ledger) Rows() *RowLocator { return l.rows }

func (l *Ledger) Columns() *ColumnResolver { return l.columns }

func (l *Ledger) Config() config.LedgerConfig { return l.cfg }

// Commit writes a batch of updates. See Committer.Commit.
func (l *Ledger) Commit(ctx context.Context, updates []PendingUpdate) (CommitResult, error) {
	return l.committer.Commit(ctx, updates)
}

// CommitSnapshots writes a batch of updates, staging against rows already read by
// RowLocator.LocateSections.
func (l *Ledger) CommitSnapshots(ctx context.Context, updates []PendingUpdate, snapshots Snapshots) (CommitResult, error) {
	return l.committer.CommitSnapshots(ctx, updates, snapshots)
}

// ApplyUpdate commits a single update and reports whether it was written. A user or
// header that cannot be found returns false without an error.
func (l *Ledger) ApplyUpdate(ctx context.Context, u PendingUpdate) (bool, error) {
	result, err := l.committer.Commit(ctx, []PendingUpdate{u})
	if err != nil {
		return false, err
	}
	return len(result.Applied) == 1, nil
}

// AddPoints credits amount to header for username in whichever section holds them.
func (l *Ledger) AddPoints(ctx context.Context, username, header string, amount int) (bool, error) {
	return l.adjust(ctx, username, header, amount, true)
}

// RemovePoints debits amount, clamping the stored value at zero.
func (l *Ledger) RemovePoints(ctx context.Context, username, header string, amount int) (bool, error) {
	return l.adjust(ctx, username, header, amount, false)
}

func (l *Ledger) adjust(ctx context.Context, username, header string, amount int, isAdd bool) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	section, snapshots, err := l.rows.locateFor(ctx, username)
	if err != nil {
		return false, err
	}
	result, err := l.committer.CommitSnapshots(ctx, []PendingUpdate{{
		Section:  section,
		Username: username,
		Header:   header,
		Amount:   amount,
		IsAdd:    isAdd,
	}}, snapshots)
	if err != nil {
		return false, err
	}
	return len(result.Applied) == 1, nil
}

// FindColumn resolves header for a row of a section's worksheet.
func (l *Ledger) FindColumn(ctx context.Context, section Section, row int, header string) (ColumnLookup, error) {
	ws, err := l.book.Worksheet(ctx, section)
	if err != nil {
		return ColumnLookup{}, err
	}
	return l.columns.FindColumn(ctx, ws, row, header)
}

// Invalidate drops the cached row of one user.
func (l *Ledger) Invalidate(section Section, username string) {
	l.rows.Invalidate(section, username)
}

// InvalidateSection drops every cached row of a section.
func (l *Ledger) InvalidateSection(section Section) {
	l.rows.InvalidateSection(section)
}
