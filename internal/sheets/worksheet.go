package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/sheets/v4"
)

// Cell is a single 1-based cell write.
type Cell struct {
	Row    int
	Column int
	Value  interface{}
}

// Worksheet addresses one tab of a spreadsheet. Rows and columns are 1-based.
type Worksheet struct {
	client        *Client
	spreadsheetID string
	title         string
	sheetID       int64
}

// ID identifies the worksheet across spreadsheets.
func (w *Worksheet) ID() string {
	return w.spreadsheetID + "/" + w.title
}

func (w *Worksheet) Title() string {
	return w.title
}

// Rows reads every populated row in one call. Cells are rendered as display text.
func (w *Worksheet) Rows(ctx context.Context) ([][]string, error) {
	values, err := w.client.ReadSheet(ctx, w.spreadsheetID, QuoteTitle(w.title))
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = stringifyRow(row)
	}
	log.Debug().
		Str("worksheet", w.title).
		Int("rows", len(rows)).
		Msg("Read worksheet rows")
	return rows, nil
}

// Row reads one full row.
func (w *Worksheet) Row(ctx context.Context, row int) ([]string, error) {
	values, err := w.client.ReadSheet(ctx, w.spreadsheetID, RowRange(w.title, row))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return stringifyRow(values[0]), nil
}

// Cell reads the display text of one cell; empty cells read as "".
func (w *Worksheet) Cell(ctx context.Context, row, col int) (string, error) {
	values, err := w.client.ReadSheet(ctx, w.spreadsheetID, CellAddress(w.title, row, col))
	if err != nil {
		return "", err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return "", nil
	}
	return stringify(values[0][0]), nil
}

func (w *Worksheet) UpdateCell(ctx context.Context, row, col int, value interface{}) error {
	return w.client.UpdateRange(ctx, w.spreadsheetID, CellAddress(w.title, row, col), [][]interface{}{{value}})
}

// BatchUpdate writes all cells in a single request.
func (w *Worksheet) BatchUpdate(ctx context.Context, cells []Cell) error {
	if len(cells) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, c := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  CellAddress(w.title, c.Row, c.Column),
			Values: [][]interface{}{{c.Value}},
		})
	}
	if err := w.client.BatchUpdateValues(ctx, w.spreadsheetID, data); err != nil {
		return err
	}
	log.Debug().
		Str("worksheet", w.title).
		Int("cells", len(cells)).
		Msg("Batch updated cells")
	return nil
}

// BackgroundColor returns the effective background of a cell as "#rrggbb".
func (w *Worksheet) BackgroundColor(ctx context.Context, row, col int) (string, error) {
	resp, err := w.client.gridData(ctx, w.spreadsheetID, CellAddress(w.title, row, col))
	if err != nil {
		return "", err
	}
	for _, s := range resp.Sheets {
		for _, data := range s.Data {
			for _, rowData := range data.RowData {
				for _, cell := range rowData.Values {
					if cell.EffectiveFormat != nil {
						return HexFromColor(cell.EffectiveFormat.BackgroundColor), nil
					}
				}
			}
		}
	}
	return DefaultBackground, nil
}

// InsertRow inserts values as a new row so that it ends up at index.
func (w *Worksheet) InsertRow(ctx context.Context, values []interface{}, index int) error {
	if index < 1 {
		return fmt.Errorf("invalid row index %d", index)
	}
	err := w.client.batchUpdate(ctx, w.spreadsheetID, &sheets.Request{
		InsertDimension: &sheets.InsertDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    w.sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(index - 1),
				EndIndex:   int64(index),
			},
			InheritFromBefore: index > 1,
		},
	})
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	return w.client.UpdateRange(ctx, w.spreadsheetID, CellAddress(w.title, index, 1), [][]interface{}{values})
}

// SetBackgroundColor paints one cell with a "#rrggbb" color.
func (w *Worksheet) SetBackgroundColor(ctx context.Context, row, col int, hex string) error {
	color, err := ColorFromHex(hex)
	if err != nil {
		return err
	}
	return w.client.batchUpdate(ctx, w.spreadsheetID, &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          w.sheetID,
				StartRowIndex:    int64(row - 1),
				EndRowIndex:      int64(row),
				StartColumnIndex: int64(col - 1),
				EndColumnIndex:   int64(col),
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{BackgroundColor: color},
			},
			Fields: "userEnteredFormat.backgroundColor",
		},
	})
}

func stringifyRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = stringify(v)
	}
	return out
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
