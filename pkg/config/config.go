package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"production"`
	Logging     struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Schedule struct {
		// Interval between polling runs. Zero means run once and exit.
		Interval time.Duration `yaml:"interval"`
	} `yaml:"schedule"`
	Database struct {
		DSN            string        `yaml:"dsn" validate:"required"`
		MaxConns       int           `yaml:"max_conns" default:"4"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"5s"`
		AccountsTable  string        `yaml:"accounts_table" default:"accounts"`
	} `yaml:"database"`
	Provider struct {
		Name              string        `yaml:"name" default:"reporting" validate:"required"`
		BaseURL           string        `yaml:"base_url" validate:"required,url"`
		TokenPath         string        `yaml:"token_path" default:"/v1/oauth2/token"`
		ReportPath        string        `yaml:"report_path" default:"/v1/reporting/transactions"`
		Fields            string        `yaml:"fields" default:"all"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		PageSize          int           `yaml:"page_size" default:"100" validate:"min=1,max=500"`
		MaxWindowHours    int           `yaml:"max_window_hours" default:"72" validate:"min=1"`
		OverlapMinutes    int           `yaml:"overlap_minutes" default:"30" validate:"min=0"`
		InterPageDelay    time.Duration `yaml:"inter_page_delay" default:"500ms"`
		InterAccountDelay time.Duration `yaml:"inter_account_delay" default:"5s"`
		NetworkRetries    int           `yaml:"network_retries" default:"3" validate:"min=0"`
		RateLimitRetries  int           `yaml:"rate_limit_retries" default:"5" validate:"min=0"`
		BackoffBase       time.Duration `yaml:"backoff_base" default:"2s"`
		BackoffMax        time.Duration `yaml:"backoff_max" default:"2m"`
		JitterFrac        float64       `yaml:"jitter_frac" default:"0.2" validate:"gte=0,lt=1"`
		TokenTTLMargin    time.Duration `yaml:"token_ttl_margin" default:"2m"`
	} `yaml:"provider"`
	Events struct {
		RecognizedCodes []string `yaml:"recognized_codes" default:"[\"T0006\",\"T1107\"]" validate:"min=1"`
		CaptureCode     string   `yaml:"capture_code" default:"T0006" validate:"required"`
	} `yaml:"events"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"ingested-transactions"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Provider.BackoffMax < c.Provider.BackoffBase {
		return fmt.Errorf("provider.backoff_max must be >= provider.backoff_base")
	}
	for _, code := range c.Events.RecognizedCodes {
		if code == c.Events.CaptureCode {
			return nil
		}
	}
	return fmt.Errorf("events.capture_code %q must be in events.recognized_codes", c.Events.CaptureCode)
}
