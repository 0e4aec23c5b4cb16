package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ColumnLookup is the outcome of locating a header. A missing header is not an error.
type ColumnLookup struct {
	Column    int
	HeaderRow int
	Found     bool
}

// ColumnResolver maps header names to columns using the header row of the block that
// contains the target row.
type ColumnResolver struct {
	boundaries []int
	cache      *ColumnCache
}

// NewColumnResolver takes the rows at which header blocks start.
func NewColumnResolver(boundaries []int, cache *ColumnCache) *ColumnResolver {
	b := append([]int(nil), boundaries...)
	sort.Ints(b)
	return &ColumnResolver{boundaries: b, cache: cache}
}

// HeaderRow returns the largest boundary at or above row.
func (r *ColumnResolver) HeaderRow(row int) (int, bool) {
	i := sort.SearchInts(r.boundaries, row+1)
	if i == 0 {
		return 0, false
	}
	return r.boundaries[i-1], true
}

// FindColumn returns the 1-based column of header in the block holding row.
func (r *ColumnResolver) FindColumn(ctx context.Context, ws Worksheet, row int, header string) (ColumnLookup, error) {
	headerRow, ok := r.HeaderRow(row)
	if !ok {
		return ColumnLookup{}, nil
	}
	if col, ok := r.cache.get(columnKey{worksheet: ws.ID(), headerRow: headerRow, header: header}); ok {
		return lookupOf(col, headerRow), nil
	}

	headers, err := ws.Row(ctx, headerRow)
	if err != nil {
		return ColumnLookup{}, fmt.Errorf("failed to read header row %d: %w", headerRow, err)
	}
	return r.index(ws.ID(), headerRow, header, headers), nil
}

// findIn resolves a header against an already read snapshot of the worksheet.
func (r *ColumnResolver) findIn(worksheetID string, row int, header string, rows [][]string) ColumnLookup {
	headerRow, ok := r.HeaderRow(row)
	if !ok {
		return ColumnLookup{}
	}
	if col, ok := r.cache.get(columnKey{worksheet: worksheetID, headerRow: headerRow, header: header}); ok {
		return lookupOf(col, headerRow)
	}
	var headers []string
	if headerRow <= len(rows) {
		headers = rows[headerRow-1]
	}
	return r.index(worksheetID, headerRow, header, headers)
}

// index caches every header of a block's header row, plus a negative entry for the
// requested header when it is absent.
func (r *ColumnResolver) index(worksheetID string, headerRow int, header string, headers []string) ColumnLookup {
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		r.cache.add(columnKey{worksheet: worksheetID, headerRow: headerRow, header: h}, i+1)
	}
	for i, h := range headers {
		if strings.TrimSpace(h) == header {
			return ColumnLookup{Column: i + 1, HeaderRow: headerRow, Found: true}
		}
	}
	r.cache.add(columnKey{worksheet: worksheetID, headerRow: headerRow, header: header}, 0)
	return ColumnLookup{HeaderRow: headerRow}
}

func lookupOf(col, headerRow int) ColumnLookup {
	if col == 0 {
		return ColumnLookup{HeaderRow: headerRow}
	}
	return ColumnLookup{Column: col, HeaderRow: headerRow, Found: true}
}
