package models

import (
	"time"

	"trendcast-api/internal/forecast"
	"trendcast-api/internal/frame"
	"trendcast-api/internal/recommend"
)

// ForecastRequest represents the incoming forecast request
type ForecastRequest struct {
	Ticker string `json:"ticker" validate:"required"`
	Years  int    `json:"years" validate:"required,min=1,max=4"`
}

// ForecastResponse represents the forecast result
type ForecastResponse struct {
	RunID          string            `json:"runId"`
	Ticker         string            `json:"ticker"`
	Years          int               `json:"years"`
	PeriodDays     int               `json:"periodDays"`
	Model          string            `json:"model"`
	HistoryRows    int               `json:"historyRows"`
	Prices         *frame.PriceTable `json:"prices"`   // tail of the normalized history
	Forecast       []forecast.Point  `json:"forecast"` // tail of the forecast frame
	Recommendation recommend.Result  `json:"recommendation"`
	Message        string            `json:"message"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	CacheHit       bool              `json:"cacheHit"`
}

// PricesResponse is the normalized history of one ticker.
type PricesResponse struct {
	Ticker string            `json:"ticker"`
	Start  string            `json:"start"`
	End    string            `json:"end"`
	Rows   int               `json:"rows"`
	Table  *frame.PriceTable `json:"table"`
}

// TickersResponse lists the enumerated ticker set.
type TickersResponse struct {
	Tickers []string `json:"tickers"`
}

// ForecastRun is a recorded render cycle.
type ForecastRun struct {
	RunID         string          `json:"runId"`
	Ticker        string          `json:"ticker"`
	Years         int             `json:"years"`
	Model         string          `json:"model"`
	HistoryRows   int             `json:"historyRows"`
	LastObserved  float64         `json:"lastObserved"`
	LastPredicted float64         `json:"lastPredicted"`
	Trend         recommend.Trend `json:"trend"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// HistoryResponse lists recorded runs, newest first.
type HistoryResponse struct {
	Ticker string        `json:"ticker"`
	Runs   []ForecastRun `json:"runs"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
