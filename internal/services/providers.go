package services

import (
	"fmt"

	"trendcast-api/internal/config"
	"trendcast-api/pkg/alphavantage"
	"trendcast-api/pkg/polygon"
	"trendcast-api/pkg/yahoo"
)

// NewProvider builds the market data provider selected by
// market_data.provider.
func NewProvider(cfg *config.Config) (PriceProvider, error) {
	md := cfg.MarketData
	switch md.Provider {
	case "", "yahoo":
		var opts []yahoo.Option
		if md.RequestsPerSecond > 0 {
			opts = append(opts, yahoo.WithRateLimit(md.RequestsPerSecond))
		}
		return yahoo.NewClient(opts...), nil
	case "alphavantage":
		var opts []alphavantage.Option
		if md.RequestsPerSecond > 0 {
			opts = append(opts, alphavantage.WithRateLimit(md.RequestsPerSecond))
		}
		return alphavantage.NewClient(md.AlphaVantageKey, opts...), nil
	case "polygon":
		return polygon.NewClient(md.PolygonAPIKey)
	default:
		return nil, fmt.Errorf("unsupported market data provider: %s", md.Provider)
	}
}
