// Package config provides configuration for the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway configuration. It is constructed once at process
// start and passed down explicitly; nothing reads the environment after Load.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Remote agent service
	ProjectEndpoint string `yaml:"project_endpoint"`
	ModelDeployment string `yaml:"model_deployment"`
	ProjectAPIKey   string `yaml:"project_api_key"`

	// External MCP tool server the agent is allowed to call
	ToolServerURL   string `yaml:"tool_server_url"`
	ToolServerLabel string `yaml:"tool_server_label"`
	ToolAuthKey     string `yaml:"tool_auth_key"`

	// Search service for the retrieval endpoints
	SearchEndpoint string `yaml:"search_endpoint"`
	SearchAPIKey   string `yaml:"search_api_key"`
	SearchIndex    string `yaml:"search_index"`

	// Audit store
	DatabaseURL string `yaml:"database_url"`

	// Run driving
	PollInterval time.Duration `yaml:"-"`
	RunTimeout   time.Duration `yaml:"-"`

	// Approval policy override (rego file); empty means the built-in policy.
	PolicyPath string `yaml:"policy_path"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		ProjectEndpoint: getEnv("PROJECT_ENDPOINT", ""),
		ModelDeployment: getEnv("MODEL_DEPLOYMENT_NAME", ""),
		ProjectAPIKey:   getEnv("PROJECT_API_KEY", ""),
		ToolServerURL:   getEnv("TOOL_SERVER_URL", ""),
		ToolServerLabel: getEnv("TOOL_SERVER_LABEL", ""),
		ToolAuthKey:     getEnv("TOOL_AUTH_KEY", ""),
		SearchEndpoint:  getEnv("SEARCH_ENDPOINT", ""),
		SearchAPIKey:    getEnv("SEARCH_API_KEY", ""),
		SearchIndex:     getEnv("SEARCH_INDEX", ""),
		DatabaseURL:     getEnv("DATABASE_URL", "file:agentgate.db?cache=shared&mode=rwc"),
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		RunTimeout:      time.Duration(getEnvInt("RUN_TIMEOUT_MS", 300000)) * time.Millisecond,
		PolicyPath:      getEnv("POLICY_PATH", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// ApplyFile overlays settings from a YAML file. Only keys present in the
// file override the current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	var timeouts struct {
		PollIntervalMs int `yaml:"poll_interval_ms"`
		RunTimeoutMs   int `yaml:"run_timeout_ms"`
	}
	if err := yaml.Unmarshal(data, &timeouts); err == nil {
		if timeouts.PollIntervalMs > 0 {
			c.PollInterval = time.Duration(timeouts.PollIntervalMs) * time.Millisecond
		}
		if timeouts.RunTimeoutMs > 0 {
			c.RunTimeout = time.Duration(timeouts.RunTimeoutMs) * time.Millisecond
		}
	}
	return nil
}

// Missing returns the names of required agent settings that are unset.
func (c *Config) Missing() []string {
	var missing []string
	if c.ProjectEndpoint == "" {
		missing = append(missing, "PROJECT_ENDPOINT")
	}
	if c.ModelDeployment == "" {
		missing = append(missing, "MODEL_DEPLOYMENT_NAME")
	}
	if c.ToolServerURL == "" {
		missing = append(missing, "TOOL_SERVER_URL")
	}
	if c.ToolServerLabel == "" {
		missing = append(missing, "TOOL_SERVER_LABEL")
	}
	if c.ToolAuthKey == "" {
		missing = append(missing, "TOOL_AUTH_KEY")
	}
	return missing
}

// MissingSearch returns the names of required search settings that are
// unset, in addition to the agent settings.
func (c *Config) MissingSearch() []string {
	missing := c.Missing()
	if c.SearchEndpoint == "" {
		missing = append(missing, "SEARCH_ENDPOINT")
	}
	if c.SearchAPIKey == "" {
		missing = append(missing, "SEARCH_API_KEY")
	}
	if c.SearchIndex == "" {
		missing = append(missing, "SEARCH_INDEX")
	}
	return missing
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
