package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"trendcast-api/internal/frame"
)

const baseURL = "https://www.alphavantage.co/query"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit caps outgoing requests per second. The free tier allows
// five requests a minute.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "alphavantage" }

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type DailyResponse struct {
	TimeSeries   map[string]dailyBar `json:"Time Series (Daily)"`
	ErrorMessage string              `json:"Error Message"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
}

// History returns daily bars for [start, end] as a flat table with a naive
// Date column, sorted ascending. An unknown symbol yields an empty table.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) (*frame.RawPriceTable, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("outputsize", "full")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var daily DailyResponse
	if err := json.Unmarshal(body, &daily); err != nil {
		return nil, err
	}

	switch {
	case daily.ErrorMessage != "":
		// unknown symbols are reported as invalid calls
		return emptyTable(), nil
	case daily.Note != "":
		return nil, fmt.Errorf("alpha vantage: %s", daily.Note)
	case daily.Information != "":
		return nil, fmt.Errorf("alpha vantage: %s", daily.Information)
	}

	from := start.Format(time.DateOnly)
	to := end.Format(time.DateOnly)
	days := make([]string, 0, len(daily.TimeSeries))
	for day := range daily.TimeSeries {
		if day >= from && day <= to {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	table := emptyTable()
	for _, day := range days {
		d, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return nil, fmt.Errorf("alpha vantage date %q: %w", day, err)
		}
		bar := daily.TimeSeries[day]
		table.Columns[0].Times = append(table.Columns[0].Times, d)
		for j, v := range []string{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
			table.Columns[j+1].Values = append(table.Columns[j+1].Values, parse(v))
		}
	}

	return table, nil
}

func emptyTable() *frame.RawPriceTable {
	cols := []frame.Column{{Label: frame.Label{frame.DateColumn}, Times: []time.Time{}}}
	for _, f := range []string{"Open", "High", "Low", "Close", "Volume"} {
		cols = append(cols, frame.Column{Label: frame.Label{f}, Values: []float64{}})
	}
	return &frame.RawPriceTable{Columns: cols}
}

func parse(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
