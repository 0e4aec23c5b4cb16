package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"guild_ledger/internal/retry"
	"guild_ledger/internal/sheets"
)

// StagedWrite is a resolved cell change.
type StagedWrite struct {
	Row    int
	Column int
	Header string
	Old    int
	New    int
}

// Engine resolves logical updates to cell writes. It reads but never writes.
type Engine struct {
	rows       *RowLocator
	columns    *ColumnResolver
	readPolicy *retry.Policy
}

func NewEngine(rows *RowLocator, columns *ColumnResolver, readPolicy *retry.Policy) *Engine {
	return &Engine{rows: rows, columns: columns, readPolicy: readPolicy}
}

type cellKey struct {
	row, col int
}

// batch accumulates staged values for one worksheet. Repeated updates to the same
// cell compound in memory so only the final value is written.
type batch struct {
	section  Section
	ws       Worksheet
	snapshot [][]string
	loaded   bool
	values   map[cellKey]int
	order    []cellKey
}

func newBatch(section Section, ws Worksheet) *batch {
	return &batch{section: section, ws: ws, values: make(map[cellKey]int)}
}

func (e *Engine) load(ctx context.Context, b *batch) error {
	if b.loaded {
		return nil
	}
	rows, err := readRows(ctx, b.ws, e.readPolicy)
	if err != nil {
		return fmt.Errorf("failed to read %s rows: %w", b.section, err)
	}
	b.snapshot = rows
	b.loaded = true
	return nil
}

// preload stages against rows already read by a lookup.
func (b *batch) preload(rows [][]string) {
	b.snapshot = rows
	b.loaded = true
}

func (b *batch) current(row, col int) int {
	if v, ok := b.values[cellKey{row, col}]; ok {
		return v
	}
	if row > len(b.snapshot) {
		return 0
	}
	cells := b.snapshot[row-1]
	if col > len(cells) {
		return 0
	}
	return ParseStat(cells[col-1]).Int()
}

func (b *batch) set(row, col, value int) {
	k := cellKey{row, col}
	if _, ok := b.values[k]; !ok {
		b.order = append(b.order, k)
	}
	b.values[k] = value
}

func (b *batch) cells() []sheets.Cell {
	cells := make([]sheets.Cell, 0, len(b.order))
	for _, k := range b.order {
		cells = append(cells, sheets.Cell{Row: k.row, Column: k.col, Value: b.values[k]})
	}
	return cells
}

// stage applies u to the batch. A row or column that cannot be found yields
// ErrRowNotFound or ErrColumnNotFound and leaves the batch untouched; any other
// error comes from reading the store.
func (e *Engine) stage(ctx context.Context, b *batch, u PendingUpdate) ([]StagedWrite, error) {
	if u.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, u.Amount)
	}
	if err := e.load(ctx, b); err != nil {
		return nil, err
	}

	lookup := e.rows.locateIn(b.section, u.Username, b.snapshot)
	if !lookup.Found {
		return nil, fmt.Errorf("%w: %q in %s", ErrRowNotFound, u.Username, b.section)
	}
	col := e.columns.findIn(b.ws.ID(), lookup.Row, u.Header, b.snapshot)
	if !col.Found {
		return nil, fmt.Errorf("%w: %q for row %d in %s", ErrColumnNotFound, u.Header, lookup.Row, b.section)
	}

	writes := []StagedWrite{e.apply(b, lookup.Row, col.Column, u.Header, u)}

	if total, ok := pairedTotals[u.Header]; ok {
		totalCol := e.columns.findIn(b.ws.ID(), lookup.Row, total, b.snapshot)
		if totalCol.Found {
			writes = append(writes, e.apply(b, lookup.Row, totalCol.Column, total, u))
		} else {
			log.Warn().
				Str("section", string(b.section)).
				Str("username", u.Username).
				Str("header", total).
				Int("row", lookup.Row).
				Msg("Paired total column not found, updating stat only")
		}
	}
	return writes, nil
}

func (e *Engine) apply(b *batch, row, col int, header string, u PendingUpdate) StagedWrite {
	old := b.current(row, col)
	updated := applyDelta(old, u.Amount, u.IsAdd)
	b.set(row, col, updated)
	return StagedWrite{Row: row, Column: col, Header: header, Old: old, New: updated}
}
