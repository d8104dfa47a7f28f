package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analysis engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// DataConfig locates the flat-file tables.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// AnalysisConfig carries the default detection parameters; every API call may
// override them per request.
type AnalysisConfig struct {
	Column                   string        `yaml:"column"`
	Window                   int           `yaml:"window"`
	MinPeriods               int           `yaml:"minPeriods"`
	ZThreshold               float64       `yaml:"zThreshold"`
	WindowMode               string        `yaml:"windowMode"`
	CorrelationWindowMinutes int           `yaml:"correlationWindowMinutes"`
	MaxRootCauses            int           `yaml:"maxRootCauses"`
	SummaryTTL               time.Duration `yaml:"summaryTTL"`
}

// PatternsConfig controls pattern-pack loading for the classifier.
type PatternsConfig struct {
	Path string `yaml:"path"`
}

// NarrativeConfig configures the optional external narration service.
type NarrativeConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Redis-backed caching of computed summaries.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OPSIGHT_RCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Data: DataConfig{Dir: "data"},
		Analysis: AnalysisConfig{
			Column:                   "cpu_usage",
			Window:                   60,
			MinPeriods:               30,
			ZThreshold:               3.0,
			WindowMode:               "centered",
			CorrelationWindowMinutes: 5,
			MaxRootCauses:            10,
			SummaryTTL:               time.Minute,
		},
		Patterns:  PatternsConfig{Path: "configs/patterns/default.yaml"},
		Narrative: NarrativeConfig{Timeout: 5 * time.Second},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPSIGHT_RCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OPSIGHT_RCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("OPSIGHT_RCA_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("OPSIGHT_RCA_ANALYSIS_COLUMN"); v != "" {
		cfg.Analysis.Column = v
	}
	if v := os.Getenv("OPSIGHT_RCA_ANALYSIS_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Window = n
		}
	}
	if v := os.Getenv("OPSIGHT_RCA_ANALYSIS_Z_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.ZThreshold = f
		}
	}
	if v := os.Getenv("OPSIGHT_RCA_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}
	if v := os.Getenv("OPSIGHT_RCA_NARRATIVE_ENDPOINT"); v != "" {
		cfg.Narrative.Endpoint = v
	}
	if v := os.Getenv("OPSIGHT_RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPSIGHT_RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("OPSIGHT_RCA_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
}
