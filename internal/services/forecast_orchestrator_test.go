package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trendcast-api/internal/forecast"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/models"
	"trendcast-api/internal/recommend"
	"trendcast-api/mocks"
	"trendcast-api/pkg/errors"
)

type ForecastOrchestratorTestSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	provider     *mocks.MockPriceProvider
	model        *mocks.MockModel
	fitted       *mocks.MockFitted
	recorder     *mocks.MockRecorder
	cache        *CacheService
	orchestrator *ForecastOrchestrator
	ctx          context.Context
}

func TestForecastOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(ForecastOrchestratorTestSuite))
}

func (suite *ForecastOrchestratorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.provider = mocks.NewMockPriceProvider(suite.ctrl)
	suite.provider.EXPECT().Name().Return("mock").AnyTimes()
	suite.model = mocks.NewMockModel(suite.ctrl)
	suite.model.EXPECT().Name().Return("mock-model").AnyTimes()
	suite.fitted = mocks.NewMockFitted(suite.ctrl)
	suite.recorder = mocks.NewMockRecorder(suite.ctrl)

	cfg := testConfig()
	suite.cache = NewCacheService(cfg, nil, logger.NewNop())
	marketData := NewMarketDataService(cfg, suite.cache, suite.provider, logger.NewNop())
	suite.orchestrator = NewForecastOrchestrator(cfg, marketData, suite.model, suite.recorder, logger.NewNop())
	suite.orchestrator.now = func() time.Time { return time.Date(2021, 1, 31, 15, 4, 5, 0, time.Local) }
	suite.ctx = context.Background()
}

func (suite *ForecastOrchestratorTestSuite) TearDownTest() {
	suite.orchestrator.Close()
	suite.NoError(suite.cache.Close())
}

// forecastFor echoes the fitted history and appends periods rows ending at last.
func forecastFor(in *forecast.Input, periods int, last float64) *forecast.Forecast {
	fc := &forecast.Forecast{HistoryLen: in.Len()}
	for i, d := range in.DS {
		fc.Points = append(fc.Points, forecast.Point{DS: d, YHat: in.Y[i], YHatLower: in.Y[i] - 1, YHatUpper: in.Y[i] + 1, Trend: in.Y[i]})
	}
	lastDS := in.DS[len(in.DS)-1]
	for i := 1; i <= periods; i++ {
		fc.Points = append(fc.Points, forecast.Point{DS: lastDS.AddDate(0, 0, i), YHat: last, YHatLower: last - 1, YHatUpper: last + 1, Trend: last})
	}
	return fc
}

func (suite *ForecastOrchestratorTestSuite) expectHistory(ticker string, rows int) {
	suite.provider.EXPECT().History(gomock.Any(), ticker, day(0), day(30)).Return(rawHistory(ticker, rows), nil)
}

func (suite *ForecastOrchestratorTestSuite) expectModel(last float64) {
	var fittedOn *forecast.Input
	suite.model.EXPECT().Fit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, in *forecast.Input) (forecast.Fitted, error) {
		fittedOn = in
		return suite.fitted, nil
	})
	suite.fitted.EXPECT().Predict(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, horizon int) (*forecast.Forecast, error) {
		return forecastFor(fittedOn, horizon, last), nil
	})
}

func (suite *ForecastOrchestratorTestSuite) TestGenerateForecastBullish() {
	suite.expectHistory("AAPL", 5)
	suite.expectModel(120)

	var recorded *models.ForecastRun
	suite.recorder.EXPECT().RecordForecast(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, run *models.ForecastRun) error {
		recorded = run
		return nil
	})

	resp, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "aapl", Years: 1})
	suite.Require().NoError(err)

	suite.Equal("AAPL", resp.Ticker)
	suite.Equal(365, resp.PeriodDays)
	suite.Equal("mock-model", resp.Model)
	suite.Equal(5, resp.HistoryRows)
	suite.Equal(recommend.Bullish, resp.Recommendation.Trend)
	suite.Equal(104.5, resp.Recommendation.LastObserved)
	suite.Equal(120.0, resp.Recommendation.LastPredicted)
	suite.Equal("Bullish trend. The model predicts a price of 120.00 versus 104.50 today.", resp.Message)
	suite.Len(resp.Forecast, 5)
	suite.Equal(5, resp.Prices.Len())
	suite.False(resp.CacheHit)
	suite.NotEmpty(resp.RunID)

	suite.Require().NotNil(recorded)
	suite.Equal(resp.RunID, recorded.RunID)
	suite.Equal(recommend.Bullish, recorded.Trend)
}

func (suite *ForecastOrchestratorTestSuite) TestGenerateForecastEqualIsBearish() {
	suite.expectHistory("AAPL", 5)
	suite.expectModel(104.5)
	suite.recorder.EXPECT().RecordForecast(gomock.Any(), gomock.Any()).Return(nil)

	resp, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 2})
	suite.Require().NoError(err)
	suite.Equal(recommend.Bearish, resp.Recommendation.Trend)
	suite.Equal(730, resp.PeriodDays)
}

func (suite *ForecastOrchestratorTestSuite) TestGenerateForecastIsCached() {
	suite.expectHistory("AAPL", 5)
	suite.expectModel(90)
	suite.recorder.EXPECT().RecordForecast(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
	suite.Require().NoError(err)

	second, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
	suite.Require().NoError(err)
	suite.True(second.CacheHit)
	suite.Equal(first.RunID, second.RunID)
	suite.Equal(recommend.Bearish, second.Recommendation.Trend)
}

func (suite *ForecastOrchestratorTestSuite) TestRecorderFailureDoesNotFailTheRun() {
	suite.expectHistory("AAPL", 5)
	suite.expectModel(120)
	suite.recorder.EXPECT().RecordForecast(gomock.Any(), gomock.Any()).Return(fmt.Errorf("disk full"))

	_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
	suite.NoError(err)
}

func (suite *ForecastOrchestratorTestSuite) TestInvalidRequests() {
	tests := []struct {
		name string
		req  models.ForecastRequest
	}{
		{"unknown ticker", models.ForecastRequest{Ticker: "NFLX", Years: 1}},
		{"empty ticker", models.ForecastRequest{Ticker: "", Years: 1}},
		{"zero years", models.ForecastRequest{Ticker: "AAPL", Years: 0}},
		{"too many years", models.ForecastRequest{Ticker: "AAPL", Years: 5}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.orchestrator.GenerateForecast(suite.ctx, tt.req)
			suite.Require().Error(err)
			suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
		})
	}
}

func (suite *ForecastOrchestratorTestSuite) TestEmptyHistory() {
	suite.provider.EXPECT().History(gomock.Any(), "TEST", day(0), day(30)).Return(emptyRaw("TEST"), nil)

	_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "TEST", Years: 1})
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeEmptyData, errors.GetCode(err))
}

func (suite *ForecastOrchestratorTestSuite) TestInsufficientHistory() {
	suite.expectHistory("TEST", 1)

	_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "TEST", Years: 1})
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInsufficientHistory, errors.GetCode(err))
}

func (suite *ForecastOrchestratorTestSuite) TestModelFailures() {
	suite.Run("uncoded fit error", func() {
		suite.expectHistory("AAPL", 5)
		suite.model.EXPECT().Fit(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("boom"))

		_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		suite.Equal(errors.ErrCodeForecastFailed, errors.GetCode(err))
	})

	suite.Run("coded fit error", func() {
		suite.model.EXPECT().Fit(gomock.Any(), gomock.Any()).
			Return(nil, errors.New(errors.ErrCodeInsufficientHistory, "one date"))

		_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		suite.Equal(errors.ErrCodeInsufficientHistory, errors.GetCode(err))
	})

	suite.Run("non-finite prediction", func() {
		suite.model.EXPECT().Fit(gomock.Any(), gomock.Any()).Return(suite.fitted, nil)
		suite.fitted.EXPECT().Predict(gomock.Any(), 365).
			Return(&forecast.Forecast{Points: []forecast.Point{{YHat: math.NaN()}}}, nil)

		_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		suite.Equal(errors.ErrCodeForecastFailed, errors.GetCode(err))
	})

	suite.Run("empty forecast", func() {
		suite.model.EXPECT().Fit(gomock.Any(), gomock.Any()).Return(suite.fitted, nil)
		suite.fitted.EXPECT().Predict(gomock.Any(), 365).Return(&forecast.Forecast{}, nil)

		_, err := suite.orchestrator.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		suite.Equal(errors.ErrCodeForecastFailed, errors.GetCode(err))
	})
}

func (suite *ForecastOrchestratorTestSuite) TestWithAdditiveModel() {
	cfg := testConfig()
	marketData := NewMarketDataService(cfg, suite.cache, suite.provider, logger.NewNop())
	o := NewForecastOrchestrator(cfg, marketData, forecast.NewAdditiveModel(), suite.recorder, logger.NewNop())
	defer o.Close()
	o.now = suite.orchestrator.now

	suite.expectHistory("MSFT", 30)
	suite.recorder.EXPECT().RecordForecast(gomock.Any(), gomock.Any()).Return(nil)

	resp, err := o.GenerateForecast(suite.ctx, models.ForecastRequest{Ticker: "MSFT", Years: 1})
	suite.Require().NoError(err)
	suite.Equal("additive", resp.Model)
	// a steadily rising series keeps rising
	suite.Equal(recommend.Bullish, resp.Recommendation.Trend)
	suite.Equal(day(29).AddDate(0, 0, 365), resp.Forecast[len(resp.Forecast)-1].DS)
}

func (suite *ForecastOrchestratorTestSuite) TestGetPrices() {
	suite.expectHistory("AAPL", 5)

	resp, err := suite.orchestrator.GetPrices(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Equal("2021-01-01", resp.Start)
	suite.Equal("2021-01-31", resp.End)
	suite.Equal(5, resp.Rows)

	_, err = suite.orchestrator.GetPrices(suite.ctx, "NFLX")
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (suite *ForecastOrchestratorTestSuite) TestCharts() {
	suite.expectHistory("AAPL", 5)
	suite.expectModel(120)

	for _, render := range []func() ([]byte, error){
		func() ([]byte, error) { return suite.orchestrator.PriceChart(suite.ctx, "AAPL") },
		func() ([]byte, error) {
			return suite.orchestrator.ForecastChart(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		},
		func() ([]byte, error) {
			return suite.orchestrator.ComponentsChart(suite.ctx, models.ForecastRequest{Ticker: "AAPL", Years: 1})
		},
	} {
		data, err := render()
		suite.Require().NoError(err)
		_, err = png.Decode(bytes.NewReader(data))
		suite.NoError(err)
	}
}

func (suite *ForecastOrchestratorTestSuite) TestHistory() {
	runs := []models.ForecastRun{{RunID: "r1", Ticker: "AAPL"}}
	suite.recorder.EXPECT().ListForecasts(gomock.Any(), "AAPL", 10).Return(runs, nil)

	resp, err := suite.orchestrator.History(suite.ctx, "aapl", 10)
	suite.Require().NoError(err)
	suite.Equal("AAPL", resp.Ticker)
	suite.Equal(runs, resp.Runs)
}

func (suite *ForecastOrchestratorTestSuite) TestRefreshCacheReloads() {
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", day(0), day(30)).Return(rawHistory("AAPL", 5), nil).Times(2)

	_, err := suite.orchestrator.GetPrices(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.orchestrator.RefreshCache(suite.ctx))
	_, err = suite.orchestrator.GetPrices(suite.ctx, "AAPL")
	suite.NoError(err)
}

func (suite *ForecastOrchestratorTestSuite) TestWarmCache() {
	suite.expectHistory("AAPL", 5)
	suite.provider.EXPECT().History(gomock.Any(), "MSFT", day(0), day(30)).Return(nil, fmt.Errorf("timeout"))
	suite.expectHistory("TEST", 3)

	n, err := suite.orchestrator.WarmCache(suite.ctx)
	suite.NoError(err)
	suite.Equal(2, n)
}

func (suite *ForecastOrchestratorTestSuite) TestWarmCacheReplacesCachedPrices() {
	first := suite.provider.EXPECT().History(gomock.Any(), "AAPL", day(0), day(30)).Return(rawHistory("AAPL", 3), nil)
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", day(0), day(30)).Return(rawHistory("AAPL", 5), nil).After(first)
	suite.provider.EXPECT().History(gomock.Any(), "MSFT", day(0), day(30)).Return(rawHistory("MSFT", 4), nil).Times(2)
	suite.provider.EXPECT().History(gomock.Any(), "TEST", day(0), day(30)).Return(rawHistory("TEST", 4), nil).Times(2)

	for range 2 {
		n, err := suite.orchestrator.WarmCache(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(3, n)
	}

	table, found := suite.cache.GetPrices(suite.ctx, PriceKey("AAPL", day(0), day(30)))
	suite.Require().True(found)
	suite.Equal(5, table.Len())
}

func (suite *ForecastOrchestratorTestSuite) TestWarmCacheAllFailing() {
	suite.provider.EXPECT().History(gomock.Any(), gomock.Any(), day(0), day(30)).Return(nil, fmt.Errorf("offline")).Times(3)

	n, err := suite.orchestrator.WarmCache(suite.ctx)
	suite.Error(err)
	suite.Zero(n)
}

func TestLastFinite(t *testing.T) {
	v, ok := lastFinite([]float64{1, 2, math.NaN(), math.Inf(1)})
	if !ok || v != 2 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := lastFinite([]float64{math.NaN()}); ok {
		t.Fatal("expected no finite value")
	}
}
