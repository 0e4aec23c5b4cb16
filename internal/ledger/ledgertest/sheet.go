// Package ledgertest provides an in-memory worksheet for tests of the ledger and
// the packages built on it.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"guild_ledger/internal/sheets"
)

type cell struct {
	row, col int
}

// Sheet is an in-memory worksheet that counts remote calls and can be told to fail
// upcoming reads or writes. Rows and columns are 1-based.
type Sheet struct {
	mu     sync.Mutex
	id     string
	grid   [][]string
	colors map[cell]string

	rowsCalls   int
	rowCalls    int
	writeCalls  int
	insertCalls int

	readErrs  []error
	writeErrs []error
}

func NewSheet(id string, grid [][]string) *Sheet {
	return &Sheet{id: id, grid: grid, colors: make(map[cell]string)}
}

// FailReads queues errors returned by the next bulk reads.
func (s *Sheet) FailReads(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrs = append(s.readErrs, errs...)
}

// FailWrites queues errors returned by the next batch writes or row inserts.
func (s *Sheet) FailWrites(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErrs = append(s.writeErrs, errs...)
}

func (s *Sheet) ID() string { return s.id }

func (s *Sheet) Rows(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowsCalls++
	if err := pop(&s.readErrs); err != nil {
		return nil, err
	}
	out := make([][]string, len(s.grid))
	for i, r := range s.grid {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *Sheet) Row(ctx context.Context, row int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCalls++
	if row < 1 || row > len(s.grid) {
		return nil, nil
	}
	return append([]string(nil), s.grid[row-1]...), nil
}

func (s *Sheet) Cell(ctx context.Context, row, col int) (string, error) {
	return s.At(row, col), nil
}

func (s *Sheet) BatchUpdate(ctx context.Context, cells []sheets.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if err := pop(&s.writeErrs); err != nil {
		return err
	}
	for _, c := range cells {
		for len(s.grid) < c.Row {
			s.grid = append(s.grid, nil)
		}
		for len(s.grid[c.Row-1]) < c.Column {
			s.grid[c.Row-1] = append(s.grid[c.Row-1], "")
		}
		s.grid[c.Row-1][c.Column-1] = fmt.Sprint(c.Value)
	}
	return nil
}

func (s *Sheet) BackgroundColor(ctx context.Context, row, col int) (string, error) {
	return s.Color(row, col), nil
}

func (s *Sheet) InsertRow(ctx context.Context, values []interface{}, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if err := pop(&s.writeErrs); err != nil {
		return err
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	for len(s.grid) < index-1 {
		s.grid = append(s.grid, nil)
	}
	s.grid = append(s.grid[:index-1], append([][]string{row}, s.grid[index-1:]...)...)

	shifted := make(map[cell]string, len(s.colors))
	for k, c := range s.colors {
		if k.row >= index {
			k.row++
		}
		shifted[k] = c
	}
	s.colors = shifted
	return nil
}

func (s *Sheet) SetBackgroundColor(ctx context.Context, row, col int, hex string) error {
	s.Paint(row, col, hex)
	return nil
}

// At returns the text of a cell, "" when outside the grid.
func (s *Sheet) At(row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 1 || row > len(s.grid) || col < 1 || col > len(s.grid[row-1]) {
		return ""
	}
	return s.grid[row-1][col-1]
}

// Color returns a cell's background, white when unset.
func (s *Sheet) Color(row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.colors[cell{row, col}]; ok {
		return c
	}
	return sheets.DefaultBackground
}

// Paint sets a cell's background without counting a call.
func (s *Sheet) Paint(row, col int, hex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[cell{row, col}] = hex
}

// Reads counts bulk reads.
func (s *Sheet) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsCalls
}

// HeaderReads counts single row reads.
func (s *Sheet) HeaderReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowCalls
}

// Writes counts batch writes, failed ones included.
func (s *Sheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

func (s *Sheet) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCalls
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}
