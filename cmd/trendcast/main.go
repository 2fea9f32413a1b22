package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"trendcast-api/internal/app"
	"trendcast-api/internal/config"
	"trendcast-api/internal/export"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/models"
	"trendcast-api/internal/services"
)

// withApp loads config and builds the pipeline around fn.
func withApp(ctx context.Context, cmd *cli.Command, fn func(*app.App) error) error {
	if path := cmd.String("config"); path != "" {
		if err := os.Setenv("CONFIG_PATH", path); err != nil {
			return err
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if !cmd.Bool("verbose") {
		level = "warn"
	}
	appLogger, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// forecastAction runs one render cycle and prints the result.
func forecastAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		req := models.ForecastRequest{
			Ticker: cmd.String("ticker"),
			Years:  int(cmd.Int("years")),
		}

		resp, err := a.Orchestrator.GenerateForecast(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(renderForecast(resp))

		dir := cmd.String("charts")
		if dir == "" {
			return nil
		}
		return writeCharts(ctx, a.Orchestrator, req, dir)
	})
}

func writeCharts(ctx context.Context, o *services.ForecastOrchestrator, req models.ForecastRequest, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	ticker := strings.ToUpper(req.Ticker)

	charts := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{ticker + "_prices.png", func() ([]byte, error) { return o.PriceChart(ctx, ticker) }},
		{ticker + "_forecast.png", func() ([]byte, error) { return o.ForecastChart(ctx, req) }},
		{ticker + "_components.png", func() ([]byte, error) { return o.ComponentsChart(ctx, req) }},
	}
	for _, c := range charts {
		img, err := c.render()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, c.name)
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Println(HelpStyle.Render("wrote " + path))
	}
	return nil
}

// exportAction writes normalized histories to Parquet.
func exportAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		tickers := cmd.StringSlice("ticker")
		if len(tickers) == 0 {
			tickers = a.Orchestrator.Tickers()
		}
		dir := cmd.String("output")
		if dir == "" {
			dir = a.Config.Export.Dir
		}
		writer := export.NewParquetWriter(dir, a.Logger)

		bar := progressbar.NewOptions(len(tickers),
			progressbar.OptionSetDescription("Exporting"),
			progressbar.OptionShowCount())
		var written []string
		for _, ticker := range tickers {
			prices, err := a.Orchestrator.GetPrices(ctx, ticker)
			if err != nil {
				return fmt.Errorf("export %s: %w", ticker, err)
			}
			path, err := writer.Write(prices.Table, prices.Ticker, a.Config.StartTime(), parseDate(prices.End))
			if err != nil {
				return err
			}
			written = append(written, path)
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Println()
		for _, path := range written {
			fmt.Println(path)
		}
		return nil
	})
}

func tickersAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		for _, t := range a.Orchestrator.Tickers() {
			fmt.Println(t)
		}
		return nil
	})
}

func warmAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		n, err := a.Orchestrator.WarmCache(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("warmed %d of %d tickers\n", n, len(a.Orchestrator.Tickers()))
		return nil
	})
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		resp, err := a.Orchestrator.History(ctx, cmd.String("ticker"), int(cmd.Int("limit")))
		if err != nil {
			return err
		}
		fmt.Println(renderHistory(resp))
		return nil
	})
}

func tickerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "ticker",
		Aliases:  []string{"t"},
		Usage:    "Ticker symbol from the configured set",
		Required: true,
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "trendcast",
		Usage: "Load stock prices, forecast them and print a trend call",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config (defaults to CONFIG_PATH or " + config.DefaultPath + ")",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at the configured level instead of warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "forecast",
				Usage: "Forecast a ticker and print the recommendation",
				Flags: []cli.Flag{
					tickerFlag(),
					&cli.IntFlag{
						Name:    "years",
						Aliases: []string{"y"},
						Usage:   "Forecast horizon in years (1-4)",
						Value:   1,
					},
					&cli.StringFlag{
						Name:  "charts",
						Usage: "Directory to write the PNG charts to",
					},
				},
				Action: forecastAction,
			},
			{
				Name:  "export",
				Usage: "Write normalized histories to Parquet",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "ticker",
						Aliases: []string{"t"},
						Usage:   "Ticker to export, repeatable (defaults to all configured tickers)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (defaults to export.dir)",
					},
				},
				Action: exportAction,
			},
			{
				Name:   "tickers",
				Usage:  "List the configured tickers",
				Action: tickersAction,
			},
			{
				Name:   "warm",
				Usage:  "Load every configured ticker into the cache",
				Action: warmAction,
			},
			{
				Name:  "history",
				Usage: "List recorded forecast runs",
				Flags: []cli.Flag{
					tickerFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
				},
				Action: historyAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(ErrorStyle.Render(err.Error()))
	}
}
