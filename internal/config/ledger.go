package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// SectionConfig points a ledger section at its backing spreadsheet and worksheet.
type SectionConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Worksheet     string `yaml:"worksheet"`
}

// QuotaColors maps background colors used on the username cell to quota status.
type QuotaColors struct {
	Passed  string `yaml:"passed"`
	Failed  string `yaml:"failed"`
	Excused string `yaml:"excused"`
}

// OnboardingConfig controls where new members are inserted in the Main worksheet.
type OnboardingConfig struct {
	InsertRow      int    `yaml:"insert_row"`
	UsernameColumn int    `yaml:"username_column"`
	RankColumn     int    `yaml:"rank_column"`
	StatColumns    int    `yaml:"stat_columns"`
	MarkerColor    string `yaml:"marker_color"`
}

// LedgerConfig describes the ledger spreadsheets layout.
type LedgerConfig struct {
	Sections        map[string]SectionConfig `yaml:"sections"`
	HeaderRows      []int                    `yaml:"header_rows"`
	CacheCapacity   int                      `yaml:"cache_capacity"`
	MaxPointsPerLog int                      `yaml:"max_points_per_log"`
	Onboarding      OnboardingConfig         `yaml:"onboarding"`
	QuotaColors     QuotaColors              `yaml:"quota_colors"`
}

// DefaultLedgerConfig returns the layout used when no config file is present.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Sections: map[string]SectionConfig{
			"Main":        {Worksheet: "Main"},
			"Officer":     {Worksheet: "Officers"},
			"Leaderboard": {Worksheet: "Leaderboard"},
		},
		HeaderRows:      []int{15, 45, 90, 154},
		CacheCapacity:   512,
		MaxPointsPerLog: 5,
		Onboarding: OnboardingConfig{
			InsertRow:      16,
			RankColumn:     3,
			UsernameColumn: 4,
			StatColumns:    5,
			MarkerColor:    "#b7e1cd",
		},
		QuotaColors: QuotaColors{
			Passed:  "#00ff00",
			Failed:  "#ff0000",
			Excused: "#ffff00",
		},
	}
}

// LoadLedgerConfig reads a YAML layout from path, filling anything unset from the
// defaults. A missing file yields the defaults.
func LoadLedgerConfig(path string) (LedgerConfig, error) {
	cfg := DefaultLedgerConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read ledger config: %w", err)
	}

	var fileCfg LedgerConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to parse ledger config: %w", err)
	}
	cfg.merge(fileCfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *LedgerConfig) merge(o LedgerConfig) {
	for name, section := range o.Sections {
		current := c.Sections[name]
		if section.SpreadsheetID != "" {
			current.SpreadsheetID = section.SpreadsheetID
		}
		if section.Worksheet != "" {
			current.Worksheet = section.Worksheet
		}
		c.Sections[name] = current
	}
	if len(o.HeaderRows) > 0 {
		c.HeaderRows = o.HeaderRows
	}
	if o.CacheCapacity > 0 {
		c.CacheCapacity = o.CacheCapacity
	}
	if o.MaxPointsPerLog > 0 {
		c.MaxPointsPerLog = o.MaxPointsPerLog
	}
	if o.Onboarding.InsertRow > 0 {
		c.Onboarding.InsertRow = o.Onboarding.InsertRow
	}
	if o.Onboarding.UsernameColumn > 0 {
		c.Onboarding.UsernameColumn = o.Onboarding.UsernameColumn
	}
	if o.Onboarding.RankColumn > 0 {
		c.Onboarding.RankColumn = o.Onboarding.RankColumn
	}
	if o.Onboarding.StatColumns > 0 {
		c.Onboarding.StatColumns = o.Onboarding.StatColumns
	}
	if o.Onboarding.MarkerColor != "" {
		c.Onboarding.MarkerColor = o.Onboarding.MarkerColor
	}
	if o.QuotaColors.Passed != "" {
		c.QuotaColors.Passed = o.QuotaColors.Passed
	}
	if o.QuotaColors.Failed != "" {
		c.QuotaColors.Failed = o.QuotaColors.Failed
	}
	if o.QuotaColors.Excused != "" {
		c.QuotaColors.Excused = o.QuotaColors.Excused
	}
}

// SetSpreadsheetID overrides the spreadsheet of one section, ignoring empty ids.
func (c *LedgerConfig) SetSpreadsheetID(section, id string) {
	if id == "" {
		return
	}
	current := c.Sections[section]
	current.SpreadsheetID = id
	c.Sections[section] = current
}

// Validate checks the header boundaries are strictly ascending and positive.
func (c LedgerConfig) Validate() error {
	if len(c.HeaderRows) == 0 {
		return fmt.Errorf("ledger config: header_rows must not be empty")
	}
	if !sort.IntsAreSorted(c.HeaderRows) || c.HeaderRows[0] < 1 {
		return fmt.Errorf("ledger config: header_rows must be ascending and positive: %v", c.HeaderRows)
	}
	for i := 1; i < len(c.HeaderRows); i++ {
		if c.HeaderRows[i] == c.HeaderRows[i-1] {
			return fmt.Errorf("ledger config: duplicate header row %d", c.HeaderRows[i])
		}
	}
	if c.Onboarding.InsertRow < 1 || c.Onboarding.UsernameColumn < 1 {
		return fmt.Errorf("ledger config: onboarding insert_row and username_column must be positive")
	}
	return nil
}
