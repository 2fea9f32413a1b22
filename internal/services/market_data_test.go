package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/mocks"
	"trendcast-api/pkg/errors"
)

type MarketDataTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	provider *mocks.MockPriceProvider
	cache    *CacheService
	service  *MarketDataService
	ctx      context.Context
	start    time.Time
	end      time.Time
}

func TestMarketDataSuite(t *testing.T) {
	suite.Run(t, new(MarketDataTestSuite))
}

func (suite *MarketDataTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.provider = mocks.NewMockPriceProvider(suite.ctrl)
	suite.provider.EXPECT().Name().Return("mock").AnyTimes()

	cfg := testConfig()
	suite.cache = NewCacheService(cfg, nil, logger.NewNop())
	suite.service = NewMarketDataService(cfg, suite.cache, suite.provider, logger.NewNop())
	suite.ctx = context.Background()
	suite.start = day(0)
	suite.end = day(30)
}

func (suite *MarketDataTestSuite) TearDownTest() {
	suite.NoError(suite.cache.Close())
}

func (suite *MarketDataTestSuite) TestLoadNormalizesAndCaches() {
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(rawHistory("AAPL", 5), nil).Times(1)

	table, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Equal([]string{"Date", "Open", "Close"}, table.Columns())
	suite.Equal(5, table.Len())
	for _, d := range table.Dates {
		suite.False(frame.HasZone(d))
	}

	again, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Same(table, again)
}

func (suite *MarketDataTestSuite) TestEmptyResultIsNotCached() {
	suite.provider.EXPECT().History(gomock.Any(), "NOPE", suite.start, suite.end).Return(emptyRaw("NOPE"), nil).Times(2)

	for range 2 {
		table, err := suite.service.Load(suite.ctx, "NOPE", suite.start, suite.end)
		suite.Require().NoError(err)
		suite.True(table.Empty())
		suite.Contains(table.Columns(), "Close")
	}
}

func (suite *MarketDataTestSuite) TestProviderErrorIsTransport() {
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(nil, fmt.Errorf("connection refused")).Times(2)

	_, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeTransport, errors.GetCode(err))
	suite.Contains(err.Error(), "connection refused")

	// failures are not cached
	_, err = suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Error(err)
}

func (suite *MarketDataTestSuite) TestCodedProviderErrorIsKept() {
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).
		Return(nil, errors.New(errors.ErrCodeInvalidParameter, "bad symbol"))

	_, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (suite *MarketDataTestSuite) TestAmbiguousSchema() {
	raw := rawHistory("AAPL", 2)
	raw.Columns = append(raw.Columns, frame.Column{Label: frame.Label{"Close", "MSFT"}, Values: []float64{1, 2}})
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(raw, nil)

	_, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Equal(errors.ErrCodeSchemaAmbiguity, errors.GetCode(err))
}

func (suite *MarketDataTestSuite) TestInvalidArguments() {
	_, err := suite.service.Load(suite.ctx, " ", suite.start, suite.end)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))

	_, err = suite.service.Load(suite.ctx, "AAPL", suite.end, suite.start)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (suite *MarketDataTestSuite) TestConcurrentLoadsShareOneCall() {
	release := make(chan struct{})
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).
		DoAndReturn(func(context.Context, string, time.Time, time.Time) (*frame.RawPriceTable, error) {
			<-release
			return rawHistory("AAPL", 3), nil
		}).MinTimes(1).MaxTimes(2)

	var wg sync.WaitGroup
	results := make([]*frame.PriceTable, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
			suite.NoError(err)
			results[i] = table
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, table := range results {
		suite.Require().NotNil(table)
		suite.Equal(3, table.Len())
	}
}

func (suite *MarketDataTestSuite) TestCancelledCallerLeavesSharedLoadRunning() {
	entered := make(chan struct{})
	release := make(chan struct{})
	var fetchErr error
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).
		DoAndReturn(func(ctx context.Context, _ string, _, _ time.Time) (*frame.RawPriceTable, error) {
			close(entered)
			<-release
			fetchErr = ctx.Err()
			return rawHistory("AAPL", 3), nil
		}).Times(1)

	first, cancel := context.WithCancel(suite.ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := suite.service.Load(first, "AAPL", suite.start, suite.end)
		firstErr <- err
	}()
	<-entered

	type result struct {
		table *frame.PriceTable
		err   error
	}
	second := make(chan result, 1)
	go func() {
		table, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
		second <- result{table, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	suite.ErrorIs(<-firstErr, context.Canceled)

	close(release)
	res := <-second
	suite.Require().NoError(res.err)
	suite.Equal(3, res.table.Len())
	suite.NoError(fetchErr)
}

func (suite *MarketDataTestSuite) TestRefreshBypassesCache() {
	first := suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(rawHistory("AAPL", 3), nil)
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(rawHistory("AAPL", 5), nil).After(first)

	table, err := suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Equal(3, table.Len())

	table, err = suite.service.Refresh(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Equal(5, table.Len())

	table, err = suite.service.Load(suite.ctx, "AAPL", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Equal(5, table.Len())

	_, err = suite.service.Refresh(suite.ctx, "", suite.start, suite.end)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (suite *MarketDataTestSuite) TestLoadBatch() {
	suite.provider.EXPECT().History(gomock.Any(), "AAPL", suite.start, suite.end).Return(rawHistory("AAPL", 3), nil)
	suite.provider.EXPECT().History(gomock.Any(), "MSFT", suite.start, suite.end).Return(nil, fmt.Errorf("timeout"))
	suite.provider.EXPECT().History(gomock.Any(), "TEST", suite.start, suite.end).Return(rawHistory("TEST", 4), nil)

	results := suite.service.LoadBatch(suite.ctx, []string{"AAPL", "MSFT", "TEST"}, suite.start, suite.end)
	suite.Require().Len(results, 3)

	suite.Equal("AAPL", results[0].Ticker)
	suite.NoError(results[0].Err)
	suite.Equal(3, results[0].Table.Len())

	suite.Equal("MSFT", results[1].Ticker)
	suite.Equal(errors.ErrCodeTransport, errors.GetCode(results[1].Err))

	suite.Equal(4, results[2].Table.Len())
}

func (suite *MarketDataTestSuite) TestLoadBatchCancelled() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()
	suite.provider.EXPECT().History(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	for _, res := range suite.service.LoadBatch(ctx, []string{"AAPL", "MSFT"}, suite.start, suite.end) {
		suite.ErrorIs(res.Err, context.Canceled)
	}
}

func TestPriceKey(t *testing.T) {
	if got := PriceKey("AAPL", day(0), day(9)); got != "AAPL|2021-01-01|2021-01-10" {
		t.Fatalf("unexpected key %q", got)
	}
}
