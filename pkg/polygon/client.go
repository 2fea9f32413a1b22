// Package polygon loads daily aggregates from Polygon.io.
package polygon

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"trendcast-api/internal/frame"
)

// Bars are stamped in exchange time.
const exchangeTimezone = "America/New_York"

// AggsIterator is the subset of the polygon iterator used here.
type AggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// AggsAPI lists aggregates.
type AggsAPI interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) AggsIterator
}

type restAPI struct {
	client *polygon.Client
}

func (a restAPI) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) AggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

type Client struct {
	api AggsAPI
	loc *time.Location
}

func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return NewClientWithAPI(restAPI{client: polygon.New(apiKey)}), nil
}

// NewClientWithAPI wraps an existing aggregates API.
func NewClientWithAPI(api AggsAPI) *Client {
	loc, err := time.LoadLocation(exchangeTimezone)
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return &Client{api: api, loc: loc}
}

func (c *Client) Name() string { return "polygon" }

// History returns adjusted daily aggregates for [start, end], indexed by
// exchange-local midnight with flat columns.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) (*frame.RawPriceTable, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithAdjusted(true).WithLimit(50000)

	table := &frame.RawPriceTable{
		Index:     []time.Time{},
		IndexName: frame.DateColumn,
	}
	fields := []string{"Open", "High", "Low", "Close", "Volume", "VWAP"}
	for _, f := range fields {
		table.Columns = append(table.Columns, frame.Column{Label: frame.Label{f}, Values: []float64{}})
	}

	iter := c.api.ListAggs(ctx, params)
	for iter.Next() {
		agg := iter.Item()
		local := time.Time(agg.Timestamp).In(c.loc)
		table.Index = append(table.Index, time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc))
		for j, v := range []float64{agg.Open, agg.High, agg.Low, agg.Close, agg.Volume, agg.VWAP} {
			table.Columns[j].Values = append(table.Columns[j].Values, v)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polygon aggregates: %w", err)
	}

	return table, nil
}
