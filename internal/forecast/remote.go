package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/pkg/errors"
)

const remoteDateLayout = "2006-01-02T15:04:05"

// RemoteModel delegates fitting and prediction to a Prophet service exposing
// POST /predict. Fit only validates and captures the input; the service fits
// and predicts in a single request.
type RemoteModel struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRemoteModel creates a client for the forecasting service at baseURL.
func NewRemoteModel(baseURL string, timeout time.Duration, log *logger.Logger) *RemoteModel {
	return &RemoteModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Component("remote_model"),
	}
}

func (m *RemoteModel) Name() string { return "prophet" }

type remoteFit struct {
	model *RemoteModel
	input *Input
}

func (m *RemoteModel) Fit(ctx context.Context, in *Input) (Fitted, error) {
	if in == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "forecast input is nil")
	}
	if n := in.DistinctDates(); n < 2 {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "need at least 2 distinct dates to fit, got %d", n)
	}
	return &remoteFit{model: m, input: in}, nil
}

// predictRequest is the body sent to the forecasting service.
type predictRequest struct {
	DS      []string   `json:"ds"`
	Y       []*float64 `json:"y"`
	Periods int        `json:"periods"`
}

// predictRow is one row of the service's forecast frame.
type predictRow struct {
	DS        string  `json:"ds"`
	YHat      float64 `json:"yhat"`
	YHatLower float64 `json:"yhat_lower"`
	YHatUpper float64 `json:"yhat_upper"`
	Trend     float64 `json:"trend"`
	Weekly    float64 `json:"weekly"`
	Yearly    float64 `json:"yearly"`
}

type predictResponse struct {
	Forecast []predictRow `json:"forecast"`
}

func (f *remoteFit) Predict(ctx context.Context, horizonDays int) (*Forecast, error) {
	if horizonDays < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "horizon must not be negative, got %d", horizonDays)
	}

	body := predictRequest{
		DS:      make([]string, f.input.Len()),
		Y:       make([]*float64, f.input.Len()),
		Periods: horizonDays,
	}
	for i, d := range f.input.DS {
		body.DS[i] = d.Format(remoteDateLayout)
		if y := f.input.Y[i]; !math.IsNaN(y) && !math.IsInf(y, 0) {
			body.Y[i] = &y
		}
	}

	resp, err := f.model.callService(ctx, body)
	if err != nil {
		return nil, err
	}

	out := &Forecast{
		Points:     make([]Point, len(resp.Forecast)),
		HistoryLen: f.input.Len(),
	}
	for i, row := range resp.Forecast {
		ds, err := parseRemoteDate(row.DS)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeForecastFailed, err, "forecast row %d", i)
		}
		out.Points[i] = Point{
			DS:        ds,
			YHat:      row.YHat,
			YHatLower: row.YHatLower,
			YHatUpper: row.YHatUpper,
			Trend:     row.Trend,
			Weekly:    row.Weekly,
			Yearly:    row.Yearly,
		}
	}
	if want := f.input.Len() + horizonDays; len(out.Points) != want {
		return nil, errors.Newf(errors.ErrCodeForecastFailed, "forecast service returned %d rows, expected %d", len(out.Points), want)
	}

	return out, nil
}

// callService makes the HTTP request to the forecasting service
func (m *RemoteModel) callService(ctx context.Context, req predictRequest) (*predictResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "encode forecast request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "build forecast request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "forecast service unreachable", err)
	}
	defer resp.Body.Close()

	m.logger.Debug("forecast service responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("rows", len(req.DS)),
		zap.Int("periods", req.Periods),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf(errors.ErrCodeForecastFailed, "forecast service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "decode forecast response", err)
	}
	return &out, nil
}

func parseRemoteDate(s string) (time.Time, error) {
	for _, layout := range []string{remoteDateLayout, time.DateOnly, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// zoned timestamps keep their wall clock
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return frame.StripZone(t), nil
}
