package sheets

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service      *sheets.Service
	sheetIDs     sync.Map // spreadsheetID + "/" + title -> int64
	apiCallCount atomic.Int64
}

func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewClientWithService(service), nil
}

// NewClientWithService wraps an already configured service, e.g. one pointed at a
// test endpoint with option.WithEndpoint.
func NewClientWithService(service *sheets.Service) *Client {
	return &Client{
		service: service,
	}
}

// APICallCount returns how many remote calls this client has issued.
func (c *Client) APICallCount() int64 {
	return c.apiCallCount.Load()
}

// ResetAPICallCount resets the API call counter to zero
func (c *Client) ResetAPICallCount() {
	c.apiCallCount.Store(0)
}

func (c *Client) countCall() {
	c.apiCallCount.Add(1)
}

// Open fetches the worksheet titles and ids of a spreadsheet.
func (c *Client) Open(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	c.countCall()
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
	}

	titles := make(map[string]int64, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		titles[s.Properties.Title] = s.Properties.SheetId
		c.sheetIDs.Store(spreadsheetID+"/"+s.Properties.Title, s.Properties.SheetId)
	}

	log.Debug().
		Str("spreadsheet_id", spreadsheetID).
		Int("worksheets", len(titles)).
		Msg("Opened spreadsheet")
	return titles, nil
}

// Worksheet returns a handle on the named worksheet, opening the spreadsheet the first
// time the title is requested.
func (c *Client) Worksheet(ctx context.Context, spreadsheetID, title string) (*Worksheet, error) {
	key := spreadsheetID + "/" + title
	if id, ok := c.sheetIDs.Load(key); ok {
		return c.newWorksheet(spreadsheetID, title, id.(int64)), nil
	}

	titles, err := c.Open(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	id, ok := titles[title]
	if !ok {
		return nil, fmt.Errorf("worksheet %q not found in spreadsheet %s", title, spreadsheetID)
	}
	return c.newWorksheet(spreadsheetID, title, id), nil
}

func (c *Client) newWorksheet(spreadsheetID, title string, sheetID int64) *Worksheet {
	return &Worksheet{
		client:        c,
		spreadsheetID: spreadsheetID,
		title:         title,
		sheetID:       sheetID,
	}
}

func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	c.countCall()
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	c.countCall()
	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	return nil
}

// BatchUpdateValues writes every range in one request.
func (c *Client) BatchUpdateValues(ctx context.Context, spreadsheetID string, data []*sheets.ValueRange) error {
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}

	c.countCall()
	_, err := c.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to batch update values: %w", err)
	}

	return nil
}

func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, requests ...*sheets.Request) error {
	c.countCall()
	_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update spreadsheet: %w", err)
	}
	return nil
}

func (c *Client) gridData(ctx context.Context, spreadsheetID, range_ string) (*sheets.Spreadsheet, error) {
	c.countCall()
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Ranges(range_).
		IncludeGridData(true).
		Fields("sheets(data(rowData(values(effectiveFormat(backgroundColor)))))").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read cell format: %w", err)
	}
	return resp, nil
}
