package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"trendcast-api/internal/frame"
)

const baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Fields are emitted in this order, each labeled (field, ticker).
var Fields = []string{"Open", "High", "Low", "Close", "Adj Close", "Volume"}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithBaseURL points the client at another chart endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "yahoo" }

type YahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				GMTOffset            int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns daily bars for [start, end] indexed by exchange-local
// midnight, with two-level (field, ticker) columns. An unknown symbol yields
// an empty table.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) (*frame.RawPriceTable, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trendcast-api)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var yahooResp YahooResponse
	if err := json.Unmarshal(body, &yahooResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("yahoo finance returned status %d", resp.StatusCode)
		}
		return nil, err
	}

	if e := yahooResp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return emptyTable(symbol), nil
		}
		return nil, fmt.Errorf("yahoo finance error %s: %s", e.Code, e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo finance returned status %d", resp.StatusCode)
	}

	if len(yahooResp.Chart.Result) == 0 {
		return emptyTable(symbol), nil
	}
	result := yahooResp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return emptyTable(symbol), nil
	}

	loc, err := time.LoadLocation(result.Meta.ExchangeTimezoneName)
	if err != nil || result.Meta.ExchangeTimezoneName == "" {
		loc = time.FixedZone("exchange", result.Meta.GMTOffset)
	}

	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	table := emptyTable(symbol)
	for i, ts := range result.Timestamp {
		open, high, low, cl := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if open == nil && high == nil && low == nil && cl == nil {
			continue
		}
		local := time.Unix(ts, 0).In(loc)
		table.Index = append(table.Index, time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc))

		adjClose := at(adj, i)
		if adj == nil {
			adjClose = cl
		}
		for j, v := range []*float64{open, high, low, cl, adjClose, at(quote.Volume, i)} {
			table.Columns[j].Values = append(table.Columns[j].Values, value(v))
		}
	}

	return table, nil
}

func emptyTable(symbol string) *frame.RawPriceTable {
	t := &frame.RawPriceTable{
		Index:     []time.Time{},
		IndexName: frame.DateColumn,
		Columns:   make([]frame.Column, len(Fields)),
	}
	for i, f := range Fields {
		t.Columns[i] = frame.Column{Label: frame.Label{f, symbol}, Values: []float64{}}
	}
	return t
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
