// Package ledger keeps guild point totals in a spreadsheet-backed ledger.
//
// A section (Main, Officer, Leaderboard) is one worksheet keyed by username. Each
// worksheet is split into stacked blocks that start at fixed header rows, and a
// statistic's column is looked up in the header row of the block holding the user.
// Updates are staged in memory and written with one batched call per worksheet.
package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"guild_ledger/internal/sheets"
)

type Section string

const (
	SectionMain        Section = "Main"
	SectionOfficer     Section = "Officer"
	SectionLeaderboard Section = "Leaderboard"
)

// Sections lists the known sections.
var Sections = []Section{SectionMain, SectionOfficer, SectionLeaderboard}

// ParseSection maps a case-insensitive name to a Section.
func ParseSection(name string) (Section, bool) {
	for _, s := range Sections {
		if strings.EqualFold(string(s), strings.TrimSpace(name)) {
			return s, true
		}
	}
	return "", false
}

// Common header names.
const (
	HeaderEP                  = "EP"
	HeaderCEP                 = "CEP"
	HeaderOP                  = "OP"
	HeaderTotalEP             = "Total EP"
	HeaderTotalCEP            = "Total CEP"
	HeaderEventsHosted        = "Events Hosted"
	HeaderCompanyEventsHosted = "Company Events Hosted"
)

// pairedTotals maps a stat to the running total column that mirrors it.
var pairedTotals = map[string]string{
	HeaderEP:  HeaderTotalEP,
	HeaderCEP: HeaderTotalCEP,
}

var (
	ErrRowNotFound     = errors.New("row not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrSectionNotFound = errors.New("user not found in any section")
	ErrUnknownSection  = errors.New("unknown section")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrAlreadyExists   = errors.New("user already has a ledger row")
)

// PendingUpdate is one logical stat change awaiting commit.
type PendingUpdate struct {
	Section  Section
	Username string
	Header   string
	Amount   int
	IsAdd    bool
}

// Delta returns the signed amount.
func (u PendingUpdate) Delta() int {
	if u.IsAdd {
		return u.Amount
	}
	return -u.Amount
}

// Worksheet is the subset of the tabular store the ledger reads and writes.
// Rows and columns are 1-based.
type Worksheet interface {
	ID() string
	Rows(ctx context.Context) ([][]string, error)
	Row(ctx context.Context, row int) ([]string, error)
	Cell(ctx context.Context, row, col int) (string, error)
	BatchUpdate(ctx context.Context, cells []sheets.Cell) error
	BackgroundColor(ctx context.Context, row, col int) (string, error)
	InsertRow(ctx context.Context, values []interface{}, index int) error
	SetBackgroundColor(ctx context.Context, row, col int, hex string) error
}

// Book resolves a section to its worksheet.
type Book interface {
	Worksheet(ctx context.Context, section Section) (Worksheet, error)
}

// StatValue is a parsed cell: either an integer or unparseable. Unparseable cells
// count as zero.
type StatValue struct {
	n  int
	ok bool
}

func Integer(n int) StatValue { return StatValue{n: n, ok: true} }

var Unparseable = StatValue{}

// ParseStat reads cell text as a non-negative integer. Thousands separators and a
// trailing ".0" are accepted since Sheets may render numbers that way.
func ParseStat(text string) StatValue {
	t := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if t == "" {
		return Unparseable
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n < 0 {
			return Unparseable
		}
		return Integer(n)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && f >= 0 && f == float64(int(f)) {
		return Integer(int(f))
	}
	return Unparseable
}

func (v StatValue) IsInteger() bool { return v.ok }

// Int returns the value, or zero when unparseable.
func (v StatValue) Int() int {
	if !v.ok {
		return 0
	}
	return v.n
}

// applyDelta adds or subtracts amount, never going below zero.
func applyDelta(current, amount int, isAdd bool) int {
	if isAdd {
		return current + amount
	}
	return max(0, current-amount)
}
