package polygon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"trendcast-api/internal/frame"
)

// mockAggsAPI implements AggsAPI for testing.
type mockAggsAPI struct {
	iterator AggsIterator
	params   *models.ListAggsParams
}

func (m *mockAggsAPI) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) AggsIterator {
	m.params = params
	return m.iterator
}

// mockIterator implements AggsIterator for testing.
type mockIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++
		return true
	}
	return false
}

func (m *mockIterator) Item() models.Agg {
	return m.aggs[m.index-1]
}

func (m *mockIterator) Err() error {
	return m.err
}

type ClientTestSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) TestNewClientRequiresKey() {
	_, err := NewClient("")
	suite.Error(err)

	client, err := NewClient("test-api-key")
	suite.NoError(err)
	suite.Equal("polygon", client.Name())
}

func (suite *ClientTestSuite) TestHistory() {
	// 2021-01-04 and 2021-01-05 session opens, 09:30 New York
	first := time.Date(2021, 1, 4, 14, 30, 0, 0, time.UTC)
	api := &mockAggsAPI{iterator: &mockIterator{aggs: []models.Agg{
		{Timestamp: models.Millis(first), Open: 133.5, High: 133.6, Low: 126.7, Close: 129.4, Volume: 1e8, VWAP: 130},
		{Timestamp: models.Millis(first.AddDate(0, 0, 1)), Open: 128.9, High: 131.7, Low: 128.4, Close: 131.0, Volume: 9e7, VWAP: 130.5},
	}}}
	client := NewClientWithAPI(api)

	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)
	raw, err := client.History(context.Background(), "AAPL", start, end)
	suite.Require().NoError(err)

	suite.Equal("AAPL", api.params.Ticker)
	suite.Equal(models.Day, api.params.Timespan)
	suite.Equal(1, api.params.Multiplier)

	suite.Require().Len(raw.Index, 2)
	suite.True(frame.HasZone(raw.Index[0]))

	table, err := frame.Normalize(raw)
	suite.Require().NoError(err)
	suite.Equal([]time.Time{start, end}, table.Dates)
	suite.Equal([]float64{129.4, 131.0}, table.Values["Close"])
}

func (suite *ClientTestSuite) TestHistoryIteratorError() {
	client := NewClientWithAPI(&mockAggsAPI{iterator: &mockIterator{err: errors.New("403 forbidden")}})

	_, err := client.History(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	suite.ErrorContains(err, "403 forbidden")
}
