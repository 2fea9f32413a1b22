package services

import (
	"math"
	"time"

	"trendcast-api/internal/config"
	"trendcast-api/internal/frame"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Environment = "test"
	cfg.MarketData.Provider = "yahoo"
	cfg.MarketData.Tickers = []string{"AAPL", "MSFT", "TEST"}
	cfg.MarketData.StartDate = "2021-01-01"
	cfg.MarketData.RequestsPerSecond = 1
	cfg.MarketData.MaxConcurrent = 2
	cfg.MarketData.FetchTimeout = time.Second
	cfg.Forecast.Model = "additive"
	cfg.Forecast.Timeout = time.Second
	cfg.Forecast.MinRows = 2
	cfg.Forecast.TailRows = 5
	cfg.Cache.TTL = time.Hour
	cfg.Cache.ForecastTTL = time.Hour
	return cfg
}

func day(i int) time.Time {
	return time.Date(2021, 1, 1+i, 0, 0, 0, 0, time.UTC)
}

// rawHistory builds a two-level provider table for symbol with n rising
// closes in exchange time.
func rawHistory(symbol string, n int) *frame.RawPriceTable {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		ny = time.FixedZone("EST", -5*60*60)
	}
	index := make([]time.Time, n)
	open := make([]float64, n)
	closes := make([]float64, n)
	for i := range index {
		index[i] = time.Date(2021, 1, 1+i, 0, 0, 0, 0, ny)
		open[i] = 100 + float64(i)
		closes[i] = 100.5 + float64(i)
	}
	return &frame.RawPriceTable{
		Index:     index,
		IndexName: "Date",
		Columns: []frame.Column{
			{Label: frame.Label{"Open", symbol}, Values: open},
			{Label: frame.Label{"Close", symbol}, Values: closes},
		},
	}
}

func emptyRaw(symbol string) *frame.RawPriceTable {
	return &frame.RawPriceTable{
		Index: []time.Time{},
		Columns: []frame.Column{
			{Label: frame.Label{"Open", symbol}, Values: []float64{}},
			{Label: frame.Label{"Close", symbol}, Values: []float64{}},
		},
	}
}

func priceTable(closes ...float64) *frame.PriceTable {
	dates := make([]time.Time, len(closes))
	open := make([]float64, len(closes))
	for i := range dates {
		dates[i] = day(i)
		open[i] = math.NaN()
	}
	return &frame.PriceTable{
		Dates:  dates,
		Fields: []string{"Open", "Close"},
		Values: map[string][]float64{"Open": open, "Close": closes},
	}
}
