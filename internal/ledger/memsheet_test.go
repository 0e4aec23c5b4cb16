package ledger

import (
	"context"
	"fmt"

	"guild_ledger/internal/ledger/ledgertest"
)

type memBook map[Section]*ledgertest.Sheet

func (b memBook) Worksheet(ctx context.Context, section Section) (Worksheet, error) {
	ws, ok := b[section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return ws, nil
}

func (b memBook) totalWrites() int {
	n := 0
	for _, ws := range b {
		n += ws.Writes()
	}
	return n
}
