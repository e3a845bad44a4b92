package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine struct {
		LookbackDays        int           `yaml:"lookback_days"`
		RollingWindow       int           `yaml:"rolling_window"`
		ThresholdLadder     []float64     `yaml:"threshold_ladder"`
		EntryFloor          float64       `yaml:"entry_floor"`
		ExitThreshold       float64       `yaml:"exit_threshold"`
		MinCorrelation      float64       `yaml:"min_correlation"`
		MaxHalfLifeDays     float64       `yaml:"max_half_life_days"`
		MaxConcurrentTrades int           `yaml:"max_concurrent_trades"`
		TopPerSector        int           `yaml:"top_per_sector"`
		CrossSectorTopK     int           `yaml:"cross_sector_top_k"`
		FetchConcurrency    int           `yaml:"fetch_concurrency"`
		ScanInterval        time.Duration `yaml:"scan_interval"`
		MonitorInterval     time.Duration `yaml:"monitor_interval"`
	} `yaml:"engine"`
	Universe struct {
		MinQuoteVolume  float64             `yaml:"min_quote_volume"`
		MinOpenInterest float64             `yaml:"min_open_interest"`
		Blacklist       []string            `yaml:"blacklist"`
		Sectors         map[string][]string `yaml:"sectors"`
	} `yaml:"universe"`
	Risk struct {
		TakeProfitPct        float64 `yaml:"take_profit_pct"`
		StopLossPct          float64 `yaml:"stop_loss_pct"`
		TimeStopHalfLifeMult float64 `yaml:"time_stop_half_life_mult"`
		MaxHurst             float64 `yaml:"max_hurst"`
	} `yaml:"risk"`
	Exchange struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxAttempts    int           `yaml:"max_attempts"`
		BackoffMin     time.Duration `yaml:"backoff_min"`
		BackoffMax     time.Duration `yaml:"backoff_max"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		RateBurst      int           `yaml:"rate_burst"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"exchange"`
	Redis struct {
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		KeyPrefix string        `yaml:"key_prefix"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Telegram struct {
		Enabled bool          `yaml:"enabled"`
		Token   string        `yaml:"token"`
		ChatID  string        `yaml:"chat_id"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"telegram"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("BLACKLIST"); v != "" {
		c.Universe.Blacklist = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	e := &c.Engine
	if e.LookbackDays == 0 {
		e.LookbackDays = 90
	}
	if e.RollingWindow == 0 {
		e.RollingWindow = 30
	}
	if len(e.ThresholdLadder) == 0 {
		e.ThresholdLadder = []float64{1.0, 1.5, 2.0, 2.5, 3.0}
	}
	if e.EntryFloor == 0 {
		e.EntryFloor = 1.5
	}
	if e.ExitThreshold == 0 {
		e.ExitThreshold = 0.5
	}
	if e.MinCorrelation == 0 {
		e.MinCorrelation = 0.8
	}
	if e.MaxHalfLifeDays == 0 {
		e.MaxHalfLifeDays = 30
	}
	if e.MaxConcurrentTrades == 0 {
		e.MaxConcurrentTrades = 5
	}
	if e.TopPerSector == 0 {
		e.TopPerSector = 5
	}
	if e.FetchConcurrency == 0 {
		e.FetchConcurrency = 4
	}
	if e.ScanInterval == 0 {
		e.ScanInterval = 24 * time.Hour
	}
	if e.MonitorInterval == 0 {
		e.MonitorInterval = 15 * time.Minute
	}

	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 10 * time.Second
	}
	if c.Exchange.MaxAttempts == 0 {
		c.Exchange.MaxAttempts = 3
	}
	if c.Exchange.BackoffMin == 0 {
		c.Exchange.BackoffMin = 500 * time.Millisecond
	}
	if c.Exchange.BackoffMax == 0 {
		c.Exchange.BackoffMax = 10 * time.Second
	}
	if c.Exchange.RatePerSecond == 0 {
		c.Exchange.RatePerSecond = 5
	}
	if c.Exchange.RateBurst == 0 {
		c.Exchange.RateBurst = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "pairpull"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	e := c.Engine
	if e.ExitThreshold <= 0 || e.ExitThreshold >= e.EntryFloor {
		return fmt.Errorf("engine.exit_threshold must be in (0, entry_floor), got %v", e.ExitThreshold)
	}
	if e.MinCorrelation < 0 || e.MinCorrelation > 1 {
		return fmt.Errorf("engine.min_correlation must be in [0, 1], got %v", e.MinCorrelation)
	}
	for i := 1; i < len(e.ThresholdLadder); i++ {
		if e.ThresholdLadder[i] <= e.ThresholdLadder[i-1] {
			return fmt.Errorf("engine.threshold_ladder must be strictly increasing")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// Sector returns the configured sector of a symbol, or "" when unmapped.
func (c *Config) Sector(symbol string) string {
	for sector, symbols := range c.Universe.Sectors {
		for _, s := range symbols {
			if s == symbol {
				return sector
			}
		}
	}
	return ""
}
