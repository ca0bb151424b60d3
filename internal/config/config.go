package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
	"github.com/Suriyanand/financial-document-analyzer/internal/llm"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Server Configuration:
// - SERVER_ADDR: HTTP listen address (default: :8000)
// - DATA_DIR: Base directory for the database and uploads (default: ./data)
// - LOG_LEVEL: debug, info, warn, error or fatal (default: info)
//
// Job Configuration:
// - WORKER_COUNT: Worker pool size (default: 1; local inference backends
//   rarely benefit from more)
// - QUEUE_CAPACITY: Bounded queue size (default: 64)
// - SUBMIT_TIMEOUT_SECONDS: How long Submit may block when the queue is
//   full before reporting Overloaded (default: 0, fail fast)
// - JOB_TIMEOUT_SECONDS: Bound on a single analysis run (default: 300)
// - RECOVERY_POLICY: "fail" or "requeue" for jobs interrupted by a restart
//   (default: fail)
//
// Cleanup Configuration:
// - CLEANUP_CRON_EXPR: Schedule for sweeping aged upload files (default: @hourly)
// - UPLOAD_TTL_HOURS: Age after which leftover uploads are removed (default: 24)
//
// Agent Configuration:
// - AGENT_MAX_ITERATIONS: Max tool calling iterations (default: 10)
//
// LLM Configuration: see the llm package (LLM_API_KEY et al.)
type Config struct {
	Server  ServerConfig  `json:"server"`
	Jobs    JobsConfig    `json:"jobs"`
	Cleanup CleanupConfig `json:"cleanup"`
	Agent   AgentConfig   `json:"agent"`
	LLM     llm.Config    `json:"llm"`
}

type ServerConfig struct {
	Addr     string `json:"addr"`
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

// DBPath is the sqlite database location under the data dir.
func (c ServerConfig) DBPath() string {
	return filepath.Join(c.DataDir, "analyzer.db")
}

// UploadsDir is where submitted documents are stored until analyzed.
func (c ServerConfig) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

type JobsConfig struct {
	WorkerCount    int                 `json:"worker_count"`
	QueueCapacity  int                 `json:"queue_capacity"`
	SubmitTimeout  time.Duration       `json:"submit_timeout"`
	JobTimeout     time.Duration       `json:"job_timeout"`
	RecoveryPolicy jobs.RecoveryPolicy `json:"recovery_policy"`
}

type CleanupConfig struct {
	CronExpr  string        `json:"cron_expr"`
	UploadTTL time.Duration `json:"upload_ttl"`
}

// AgentConfig holds the configuration for the agent
type AgentConfig struct {
	MaxIterations int `json:"max_iterations"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Addr:     getEnvString("SERVER_ADDR", ":8000"),
			DataDir:  getEnvString("DATA_DIR", "./data"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		Jobs: JobsConfig{
			WorkerCount:    getEnvInt("WORKER_COUNT", 1),
			QueueCapacity:  getEnvInt("QUEUE_CAPACITY", 64),
			SubmitTimeout:  time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 0)) * time.Second,
			JobTimeout:     time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)) * time.Second,
			RecoveryPolicy: jobs.RecoveryPolicy(getEnvString("RECOVERY_POLICY", string(jobs.RecoveryFail))),
		},
		Cleanup: CleanupConfig{
			CronExpr:  getEnvString("CLEANUP_CRON_EXPR", "@hourly"),
			UploadTTL: time.Duration(getEnvInt("UPLOAD_TTL_HOURS", 24)) * time.Hour,
		},
		Agent: AgentConfig{
			MaxIterations: getEnvInt("AGENT_MAX_ITERATIONS", 10),
		},
		LLM: llm.Config{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "meta-llama/llama-3-8b-instruct"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Jobs.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.Jobs.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}
	if c.Jobs.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT_SECONDS must be positive")
	}
	switch c.Jobs.RecoveryPolicy {
	case jobs.RecoveryFail, jobs.RecoveryRequeue:
	default:
		return fmt.Errorf("RECOVERY_POLICY must be %q or %q", jobs.RecoveryFail, jobs.RecoveryRequeue)
	}
	if _, err := cron.ParseStandard(c.Cleanup.CronExpr); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON_EXPR: %w", err)
	}
	if _, ok := log.ParseLevel(c.Server.LogLevel); !ok {
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Server.LogLevel)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
