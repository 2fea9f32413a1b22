package config

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trendcast-api/pkg/errors"
)

// DefaultPath is read when CONFIG_PATH is not set. A missing file is fine.
const DefaultPath = "configs/config.yaml"

// DefaultTickers is the enumerated set offered to users.
var DefaultTickers = []string{"AAPL", "GOOG", "MSFT", "GME", "TSLA", "BTC-USD", "ETH-USD"}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port        string        `yaml:"port" validate:"required,numeric"`
		Environment string        `yaml:"environment" validate:"required"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
		// Requests per minute per client IP.
		RateLimit int `yaml:"rate_limit" validate:"min=0"`
	} `yaml:"server"`
	MarketData struct {
		Provider          string        `yaml:"provider" validate:"required,oneof=yahoo alphavantage polygon"`
		AlphaVantageKey   string        `yaml:"alpha_vantage_key" validate:"required_if=Provider alphavantage"`
		PolygonAPIKey     string        `yaml:"polygon_api_key" validate:"required_if=Provider polygon"`
		Tickers           []string      `yaml:"tickers" validate:"required,min=1,dive,required"`
		StartDate         string        `yaml:"start_date" validate:"required,datetime=2006-01-02"`
		RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
		MaxConcurrent     int           `yaml:"max_concurrent" validate:"min=1"`
		FetchTimeout      time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	} `yaml:"market_data"`
	Forecast struct {
		Model      string        `yaml:"model" validate:"required,oneof=prophet additive"`
		ServiceURL string        `yaml:"service_url" validate:"omitempty,url"`
		Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
		MinRows    int           `yaml:"min_rows" validate:"min=2"`
		TailRows   int           `yaml:"tail_rows" validate:"min=1"`
	} `yaml:"forecast"`
	Cache struct {
		TTL                 time.Duration `yaml:"ttl" validate:"gt=0"`
		ForecastTTL         time.Duration `yaml:"forecast_ttl" validate:"gt=0"`
		Store               string        `yaml:"store" validate:"omitempty,oneof=redis firestore"`
		RedisAddr           string        `yaml:"redis_addr" validate:"required_if=Store redis"`
		RedisPassword       string        `yaml:"redis_password"`
		RedisDB             int           `yaml:"redis_db" validate:"min=0"`
		FirestoreProject    string        `yaml:"firestore_project" validate:"required_if=Store firestore"`
		FirestoreCollection string        `yaml:"firestore_collection"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		WarmCron string `yaml:"warm_cron"`
	} `yaml:"schedule"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"log"`
}

// LoadFromEnv loads .env (if present) and then the file named by CONFIG_PATH.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Load(getEnv("CONFIG_PATH", DefaultPath))
}

// Load reads config from a YAML file, applies environment variable overrides
// and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "read config", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "parse config", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	c.MarketData.Provider = getEnv("MARKET_DATA_PROVIDER", c.MarketData.Provider)
	c.MarketData.AlphaVantageKey = getEnv("ALPHA_VANTAGE_KEY", c.MarketData.AlphaVantageKey)
	c.MarketData.PolygonAPIKey = getEnv("POLYGON_API_KEY", c.MarketData.PolygonAPIKey)
	c.MarketData.StartDate = getEnv("START_DATE", c.MarketData.StartDate)
	if v := os.Getenv("TICKERS"); v != "" {
		c.MarketData.Tickers = splitList(v)
	}
	c.Forecast.Model = getEnv("FORECAST_MODEL", c.Forecast.Model)
	c.Forecast.ServiceURL = getEnv("PYTHON_SERVICE_URL", c.Forecast.ServiceURL)
	if v, err := strconv.Atoi(os.Getenv("FORECAST_MIN_ROWS")); err == nil {
		c.Forecast.MinRows = v
	}
	c.Cache.Store = getEnv("CACHE_STORE", c.Cache.Store)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.FirestoreProject = getEnv("FIRESTORE_PROJECT_ID", c.Cache.FirestoreProject)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Schedule.WarmCron = getEnv("WARM_CRON", c.Schedule.WarmCron)
	c.Export.Dir = getEnv("EXPORT_DIR", c.Export.Dir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "production"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "yahoo"
	}
	if len(c.MarketData.Tickers) == 0 {
		c.MarketData.Tickers = slices.Clone(DefaultTickers)
	}
	if c.MarketData.StartDate == "" {
		c.MarketData.StartDate = "2015-01-01"
	}
	if c.MarketData.RequestsPerSecond == 0 {
		c.MarketData.RequestsPerSecond = 2
	}
	if c.MarketData.MaxConcurrent == 0 {
		c.MarketData.MaxConcurrent = 10
	}
	if c.MarketData.FetchTimeout == 0 {
		c.MarketData.FetchTimeout = 30 * time.Second
	}
	if c.Forecast.Model == "" {
		c.Forecast.Model = "additive"
		if c.Forecast.ServiceURL != "" {
			c.Forecast.Model = "prophet"
		}
	}
	if c.Forecast.Timeout == 0 {
		c.Forecast.Timeout = 30 * time.Second
	}
	if c.Forecast.MinRows == 0 {
		c.Forecast.MinRows = 2
	}
	if c.Forecast.TailRows == 0 {
		c.Forecast.TailRows = 5
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.ForecastTTL == 0 {
		c.Cache.ForecastTTL = time.Hour
	}
	if c.Cache.FirestoreCollection == "" {
		c.Cache.FirestoreCollection = "price_cache"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}
	if c.Forecast.Model == "prophet" && c.Forecast.ServiceURL == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "forecast.service_url (PYTHON_SERVICE_URL) is required for the prophet model")
	}
	return nil
}

// StartTime returns market_data.start_date as a naive date.
func (c *Config) StartTime() time.Time {
	t, err := time.Parse(time.DateOnly, c.MarketData.StartDate)
	if err != nil {
		return time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// HasTicker reports whether symbol is in the configured ticker set.
func (c *Config) HasTicker(symbol string) bool {
	return slices.Contains(c.MarketData.Tickers, symbol)
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment != "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
