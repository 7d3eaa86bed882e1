package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"500ms"`
		AllowOrigins    []string      `yaml:"allow_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sessions struct {
		IdleTTL       time.Duration `yaml:"idle_ttl" default:"30m"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
		MaxSessions   int           `yaml:"max_sessions" default:"10000"`
	} `yaml:"sessions"`
	RateLimit struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		Runs    int64         `yaml:"runs" default:"20"`
		Window  time.Duration `yaml:"window" default:"1m"`
	} `yaml:"ratelimit"`
	Cache struct {
		Backend string `yaml:"backend" default:"memory"` // memory | redis
		MaxSize int    `yaml:"max_size" default:"10000"`
	} `yaml:"cache"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"predictor"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"predictor.analysis.completed"`
		LogTopic     string   `yaml:"log_topic" default:"predictor.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Bridge struct {
		WriteWait  time.Duration `yaml:"write_wait" default:"5s"`
		PongWait   time.Duration `yaml:"pong_wait" default:"60s"`
		PingPeriod time.Duration `yaml:"ping_period" default:"50s"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
	} `yaml:"bridge"`
}

// AnalysisConfig carries the engine constants. Defaults reproduce the mini-app timings.
type AnalysisConfig struct {
	TickPeriod    time.Duration `yaml:"tick_period" default:"30ms"`
	Delay         time.Duration `yaml:"delay" default:"3500ms"`
	ConfidenceMin int           `yaml:"confidence_min" default:"75"`
	ConfidenceMax int           `yaml:"confidence_max" default:"98"`
	EntryMin      float64       `yaml:"entry_min" default:"1000"`
	EntryMax      float64       `yaml:"entry_max" default:"51000"`
	TargetMax     float64       `yaml:"target_max" default:"3"`
}

// DefaultAnalysis returns the engine constants with defaults applied.
func DefaultAnalysis() AnalysisConfig {
	var a AnalysisConfig
	_ = defaults.Set(&a)
	return a
}

// Validate checks the engine constants.
func (a AnalysisConfig) Validate() error {
	if a.TickPeriod <= 0 {
		return fmt.Errorf("analysis.tick_period must be positive")
	}
	if a.Delay <= 0 {
		return fmt.Errorf("analysis.delay must be positive")
	}
	if a.ConfidenceMin > a.ConfidenceMax {
		return fmt.Errorf("analysis.confidence_min must not exceed confidence_max")
	}
	if a.EntryMin >= a.EntryMax {
		return fmt.Errorf("analysis.entry_min must be below entry_max")
	}
	if a.TargetMax <= 0 {
		return fmt.Errorf("analysis.target_max must be positive")
	}
	return nil
}

// Default returns a configuration built only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(b)
}

// Parse applies defaults, decodes YAML bytes over them and validates.
func Parse(b []byte) (*Config, error) {
	// Defaults first so explicit zero values in YAML (enabled: false) survive.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("PREDICTOR_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PREDICTOR_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Cache.Backend = "redis"
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("sessions.idle_ttl must be positive")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Runs <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("ratelimit.runs and ratelimit.window must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
