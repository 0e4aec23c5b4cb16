package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a 1-based column index to A1 letters (1 -> A, 27 -> AA).
func ColumnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters)
}

// QuoteTitle quotes a worksheet title for use in A1 ranges.
func QuoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// CellAddress builds an A1 reference such as 'Main'!E17.
func CellAddress(title string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", QuoteTitle(title), ColumnLetter(col), row)
}

// RowRange builds an A1 range covering a whole row.
func RowRange(title string, row int) string {
	return fmt.Sprintf("%s!%d:%d", QuoteTitle(title), row, row)
}
