package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// DefaultConfigFile is read when INVOICE_CONFIG is unset. A missing file is not an error.
const DefaultConfigFile = "invoice-pipeline.yaml"

// Store drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Document storage backends.
const (
	DocumentsNone = "none"
	DocumentsFS   = "fs"
	DocumentsS3   = "s3"
)

// LLM providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds invoice store configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	DataDir          string        `yaml:"data_dir"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string        `yaml:"grpc_addr"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	WatchDir       string        `yaml:"watch_dir"`
	WatchDebounce  time.Duration `yaml:"watch_debounce"`
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	TessdataDir   string        `yaml:"tessdata_dir"`
	Language      string        `yaml:"language"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float32       `yaml:"min_confidence"`
	MaxTextChars  int           `yaml:"max_text_chars"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  float32       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheEntries int64         `yaml:"cache_entries"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// PipelineConfig holds orchestrator settings
type PipelineConfig struct {
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	StagingDir      string        `yaml:"staging_dir"`
	HistorySize     int           `yaml:"history_size"`
	DefaultCurrency string        `yaml:"default_currency"`
	Concurrency     int           `yaml:"concurrency"`
}

// StorageConfig holds retained-document storage settings
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

// MatchingConfig holds PO matching settings
type MatchingConfig struct {
	POTablePath string  `yaml:"po_table_path"`
	Threshold   float64 `yaml:"threshold"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:          DriverJSON,
			DataDir:         "./data/structured",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:       ":8080",
			Workers:        4,
			QueueSize:      256,
			ProcessTimeout: 3 * time.Minute,
			WatchDebounce:  500 * time.Millisecond,
		},
		OCR: OCRConfig{
			Language:      "eng",
			Timeout:       2 * time.Minute,
			MinConfidence: 0.5,
			MaxTextChars:  20000,
		},
		LLM: LLMConfig{
			Provider:     ProviderOpenAI,
			Model:        "gpt-4o-mini",
			BaseURL:      "https://api.openai.com/v1",
			Timeout:      45 * time.Second,
			CacheEntries: 1024,
			CacheTTL:     time.Hour,
		},
		Pipeline: PipelineConfig{
			RetryAttempts:   3,
			RetryBaseDelay:  time.Second,
			StagingDir:      "./data/temp",
			HistorySize:     1000,
			DefaultCurrency: string(constants.USD),
			Concurrency:     4,
		},
		Storage: StorageConfig{
			Backend:  DocumentsFS,
			Dir:      "./data/processed",
			S3Prefix: "invoices/",
		},
		Matching: MatchingConfig{
			POTablePath: "./data/PO_records.csv",
			Threshold:   constants.MatchThreshold,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration using the hierarchy defaults < YAML < env.
// The YAML path comes from INVOICE_CONFIG, falling back to DefaultConfigFile.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(getEnv("INVOICE_CONFIG", DefaultConfigFile))
}

// LoadConfigFrom is LoadConfig with an explicit YAML path.
func LoadConfigFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "reading config file", err)
	}
	loadEnv(&cfg)
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables; unset or unparsable values keep the current setting.
func loadEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.DataDir = getEnv("DATA_DIR", c.Database.DataDir)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.Workers = getEnvAsInt("WORKERS", c.Server.Workers)
	c.Server.QueueSize = getEnvAsInt("QUEUE_SIZE", c.Server.QueueSize)
	c.Server.ProcessTimeout = getEnvAsDuration("PROCESS_TIMEOUT", c.Server.ProcessTimeout)
	c.Server.WatchDir = getEnv("INBOX_DIR", c.Server.WatchDir)
	c.Server.WatchDebounce = getEnvAsDuration("INBOX_DEBOUNCE", c.Server.WatchDebounce)

	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Language = getEnv("OCR_LANGUAGE", c.OCR.Language)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)
	c.OCR.MinConfidence = getEnvAsFloat32("OCR_MIN_CONFIDENCE", c.OCR.MinConfidence)
	c.OCR.MaxTextChars = getEnvAsInt("OCR_MAX_TEXT_CHARS", c.OCR.MaxTextChars)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.CacheEntries = int64(getEnvAsInt("LLM_CACHE_ENTRIES", int(c.LLM.CacheEntries)))
	c.LLM.CacheTTL = getEnvAsDuration("LLM_CACHE_TTL", c.LLM.CacheTTL)

	c.Pipeline.RetryAttempts = getEnvAsInt("RETRY_ATTEMPTS", c.Pipeline.RetryAttempts)
	c.Pipeline.RetryBaseDelay = getEnvAsDuration("RETRY_BASE_DELAY", c.Pipeline.RetryBaseDelay)
	c.Pipeline.StagingDir = getEnv("STAGING_DIR", c.Pipeline.StagingDir)
	c.Pipeline.HistorySize = getEnvAsInt("VALIDATION_HISTORY_SIZE", c.Pipeline.HistorySize)
	c.Pipeline.DefaultCurrency = getEnv("DEFAULT_CURRENCY", c.Pipeline.DefaultCurrency)
	c.Pipeline.Concurrency = getEnvAsInt("BATCH_CONCURRENCY", c.Pipeline.Concurrency)

	c.Storage.Backend = getEnv("DOCUMENT_STORE", c.Storage.Backend)
	c.Storage.Dir = getEnv("DOCUMENT_DIR", c.Storage.Dir)
	c.Storage.S3Bucket = getEnv("S3_BUCKET", c.Storage.S3Bucket)
	c.Storage.S3Region = getEnv("AWS_REGION", c.Storage.S3Region)
	c.Storage.S3Prefix = getEnv("S3_PREFIX", c.Storage.S3Prefix)
	c.Storage.S3Endpoint = getEnv("S3_ENDPOINT", c.Storage.S3Endpoint)

	c.Matching.POTablePath = getEnv("PO_TABLE_PATH", c.Matching.POTablePath)
	c.Matching.Threshold = getEnvAsFloat64("MATCH_THRESHOLD", c.Matching.Threshold)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. Configuration failures are fatal at startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverJSON:
		if strings.TrimSpace(c.Database.DataDir) == "" {
			return NewAppError("CONFIG_ERROR", "DATA_DIR is required for the json store", ErrInvalidInput)
		}
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}

	switch c.LLM.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}

	switch c.Storage.Backend {
	case DocumentsNone:
	case DocumentsFS:
		if c.Storage.Dir == "" {
			return NewAppError("CONFIG_ERROR", "DOCUMENT_DIR is required", ErrInvalidInput)
		}
	case DocumentsS3:
		if c.Storage.S3Bucket == "" {
			return NewAppError("CONFIG_ERROR", "S3_BUCKET is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DOCUMENT_STORE %q", c.Storage.Backend), ErrInvalidInput)
	}

	if c.Matching.POTablePath == "" {
		return NewAppError("CONFIG_ERROR", "PO_TABLE_PATH is required", ErrInvalidInput)
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return NewAppError("CONFIG_ERROR", "MATCH_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	if c.Pipeline.RetryAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "RETRY_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
