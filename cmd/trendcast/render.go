package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"trendcast-api/internal/frame"
	"trendcast-api/internal/models"
	"trendcast-api/internal/recommend"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for secondary text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)

	bullishStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	bearishStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

func parseDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return recommend.FormatPrice(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
}

// renderPrices prints the table with Date first.
func renderPrices(t *frame.PriceTable) string {
	tbl := newTable(t.Columns()...)
	for i, d := range t.Dates {
		row := []string{d.Format(time.DateOnly)}
		for _, f := range t.Fields {
			row = append(row, formatValue(t.Values[f][i]))
		}
		tbl.Row(row...)
	}
	return tbl.String()
}

func renderForecast(resp *models.ForecastResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", TitleStyle.Render(fmt.Sprintf("%s, %d year forecast (%s model, %d rows of history)",
		resp.Ticker, resp.Years, resp.Model, resp.HistoryRows)))

	b.WriteString(TitleStyle.Render("Raw data") + "\n")
	b.WriteString(renderPrices(resp.Prices) + "\n")

	b.WriteString(TitleStyle.Render("Forecast data") + "\n")
	tbl := newTable("ds", "yhat", "yhat_lower", "yhat_upper")
	for _, p := range resp.Forecast {
		tbl.Row(p.DS.Format(time.DateOnly), formatValue(p.YHat), formatValue(p.YHatLower), formatValue(p.YHatUpper))
	}
	b.WriteString(tbl.String() + "\n")

	style := bearishStyle
	if resp.Recommendation.Trend == recommend.Bullish {
		style = bullishStyle
	}
	b.WriteString(style.Render(resp.Message))
	b.WriteString(" " + HelpStyle.Render(fmt.Sprintf("(%+.2f%% expected)", resp.Recommendation.ChangePercent)))
	if resp.CacheHit {
		b.WriteString(" " + HelpStyle.Render("(cached)"))
	}
	return b.String()
}

func renderHistory(resp *models.HistoryResponse) string {
	if len(resp.Runs) == 0 {
		return HelpStyle.Render("no recorded runs for " + resp.Ticker)
	}
	tbl := newTable("run", "created", "years", "model", "observed", "predicted", "trend")
	for _, r := range resp.Runs {
		tbl.Row(r.RunID, r.CreatedAt.Format(time.DateTime), strconv.Itoa(r.Years), r.Model,
			formatValue(r.LastObserved), formatValue(r.LastPredicted), string(r.Trend))
	}
	return tbl.String()
}
