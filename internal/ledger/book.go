package ledger

import (
	"context"
	"fmt"

	"guild_ledger/internal/config"
	"guild_ledger/internal/sheets"
)

// SheetBook opens section worksheets through the Google Sheets client.
type SheetBook struct {
	client   *sheets.Client
	sections map[Section]config.SectionConfig
}

func NewSheetBook(client *sheets.Client, sections map[string]config.SectionConfig) *SheetBook {
	m := make(map[Section]config.SectionConfig, len(sections))
	for name, cfg := range sections {
		if s, ok := ParseSection(name); ok {
			m[s] = cfg
		}
	}
	return &SheetBook{client: client, sections: m}
}

func (b *SheetBook) Worksheet(ctx context.Context, section Section) (Worksheet, error) {
	cfg, ok := b.sections[section]
	if !ok || cfg.SpreadsheetID == "" || cfg.Worksheet == "" {
		return nil, fmt.Errorf("%w: %s is not configured", ErrUnknownSection, section)
	}
	ws, err := b.client.Worksheet(ctx, cfg.SpreadsheetID, cfg.Worksheet)
	if err != nil {
		return nil, err
	}
	return ws, nil
}
