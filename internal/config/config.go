package config

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultWorkflowPath = ".github/workflows/grading.yml"
	DefaultArtifactName = "grading-report"
	DefaultReportMember = "report.json"
	DefaultWorkers      = 10
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken  string
	GitHubAPIURL string // empty means api.github.com

	// Grading
	WorkflowPath string
	ArtifactName string
	ReportMember string
	Workers      int
	ReportsDir   string

	// Storage
	StorageType string // "none", "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		GitHubAPIURL: getEnv("GITHUB_API_URL", ""),
		WorkflowPath: getEnv("GRADING_WORKFLOW_PATH", DefaultWorkflowPath),
		ArtifactName: getEnv("GRADING_ARTIFACT_NAME", DefaultArtifactName),
		ReportMember: getEnv("GRADING_REPORT_MEMBER", DefaultReportMember),
		Workers:      getEnvInt("HARVEST_WORKERS", DefaultWorkers),
		ReportsDir:   getEnv("REPORTS_DIR", "reports"),
		StorageType:  getEnv("STORAGE_TYPE", "none"),
		SQLitePath:   getEnv("SQLITE_PATH", "./grades.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),
		APIPort:      getEnv("API_PORT", "8080"),
		APIHost:      getEnv("API_HOST", "localhost"),
		APIEndpoint:  getEnv("API_ENDPOINT", "http://localhost:8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// tokenCommand asks the gh CLI for its token. Replaced in tests.
var tokenCommand = func(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ResolveToken fills GitHubToken from the gh CLI when the environment did not
// provide one. It must be called once before any forge client is built.
func (c *Config) ResolveToken(ctx context.Context) error {
	if c.GitHubToken == "" {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if out, err := tokenCommand(ctx); err == nil {
			c.GitHubToken = strings.TrimSpace(out)
		}
	}
	if c.GitHubToken == "" {
		return &ConfigError{
			Field:   "GITHUB_TOKEN",
			Message: "not set and 'gh auth token' failed; log in with the gh CLI",
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageType {
	case "none", "sqlite", "postgres":
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'none', 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "HARVEST_WORKERS", Message: "must be at least 1"}
	}
	if c.WorkflowPath == "" {
		return &ConfigError{Field: "GRADING_WORKFLOW_PATH", Message: "must not be empty"}
	}
	if c.ArtifactName == "" {
		return &ConfigError{Field: "GRADING_ARTIFACT_NAME", Message: "must not be empty"}
	}
	if c.ReportMember == "" {
		return &ConfigError{Field: "GRADING_REPORT_MEMBER", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
