package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config holds application configuration. Values come from defaults, then the
// optional YAML file, then environment variables.
type Config struct {
	ClinicName       string        `yaml:"clinic_name"`
	DataDir          string        `yaml:"data_dir"`
	Timezone         string        `yaml:"timezone"`
	LogLevel         string        `yaml:"log_level"`
	LLM              LLMConfig     `yaml:"llm"`
	HistoryMode      string        `yaml:"history_mode"`
	MaxToolRounds    int           `yaml:"max_tool_rounds"`
	MaxMessageLength int           `yaml:"max_message_length"`
	MaxHistory       int           `yaml:"max_history"`
	PromptFile       string        `yaml:"prompt_file"`
	ParamPrefix      string        `yaml:"param_prefix"`
	HTTPAddr         string        `yaml:"http_addr"`
	Session          SessionConfig `yaml:"session"`

	// APIKey is only read from the environment.
	APIKey string `yaml:"-"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	Table         string        `yaml:"table"`
	TTL           time.Duration `yaml:"ttl"`
}

func Default() Config {
	return Config{
		ClinicName: "Super Clinic",
		DataDir:    "data",
		Timezone:   "Asia/Kolkata",
		LogLevel:   "info",
		LLM: LLMConfig{
			BaseURL:     "https://api.together.xyz/v1",
			Model:       "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		HistoryMode:      "snapshot",
		MaxToolRounds:    10,
		MaxMessageLength: 2000,
		MaxHistory:       60,
		HTTPAddr:         ":8080",
		Session: SessionConfig{
			Backend: BackendMemory,
			TTL:     24 * time.Hour,
		},
	}
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing default file is fine;
// a missing explicit file is an error.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration. path may be empty, in which case CLINIC_CONFIG
// is consulted and, failing that, no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CLINIC_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ClinicName = getEnv("CLINIC_NAME", cfg.ClinicName)
	cfg.DataDir = getEnv("CLINIC_DATA_DIR", cfg.DataDir)
	cfg.Timezone = getEnv("CLINIC_TIMEZONE", cfg.Timezone)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.HistoryMode = getEnv("HISTORY_MODE", cfg.HistoryMode)
	cfg.MaxToolRounds = getEnvAsInt("MAX_TOOL_ROUNDS", cfg.MaxToolRounds)
	cfg.MaxMessageLength = getEnvAsInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.MaxHistory = getEnvAsInt("MAX_HISTORY", cfg.MaxHistory)
	cfg.PromptFile = getEnv("PROMPT_FILE", cfg.PromptFile)
	cfg.ParamPrefix = getEnv("PARAM_PREFIX", cfg.ParamPrefix)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)

	cfg.Session.Backend = getEnv("SESSION_BACKEND", cfg.Session.Backend)
	cfg.Session.RedisAddr = getEnv("REDIS_ADDR", cfg.Session.RedisAddr)
	cfg.Session.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Session.RedisPassword)
	cfg.Session.Table = getEnv("SESSION_TABLE", cfg.Session.Table)
	cfg.Session.TTL = getEnvAsDuration("SESSION_TTL", cfg.Session.TTL)

	cfg.APIKey = strings.TrimSpace(os.Getenv("TOGETHER_API_KEY"))
}

// Validate checks the fields every surface depends on. The API key is checked
// later, when the completion client is built, so the offline commands work
// without one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClinicName) == "" {
		return errors.New("config: clinic_name must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	switch strings.ToLower(c.HistoryMode) {
	case "snapshot", "full":
	default:
		return fmt.Errorf("config: history_mode must be snapshot or full, got %q", c.HistoryMode)
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("config: llm.timeout must be positive")
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return errors.New("config: session.redis_addr is required for the redis backend")
		}
	case BackendDynamoDB:
		if c.Session.Table == "" {
			return errors.New("config: session.table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	return nil
}

// SystemPrompt returns the contents of PromptFile, or "" when none is set.
func (c *Config) SystemPrompt() (string, error) {
	if c.PromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return "", fmt.Errorf("config: read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
