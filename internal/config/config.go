// Package config loads the Infera server configuration from an optional YAML
// file plus environment overrides. Environment variables referenced inside the
// YAML ("${OPENAI_TOKEN}") are expanded before parsing, so secrets never need
// to live in the file itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when neither file nor environment provide a setting.
const (
	DefaultHTTPAddr           = ":8000"
	DefaultBatchWindowSeconds = 30
	DefaultTableName          = "classification_results"
	DefaultModel              = "gpt-5-mini"
	DefaultGitHubMCPURL       = "https://api.githubcopilot.com/mcp/"
	DefaultMaxIterations      = 50
	DefaultDatabasePath       = "infera.db"
)

// Config is the root configuration for the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Batch    BatchConfig    `yaml:"batch"`
	Classify ClassifyConfig `yaml:"classify"`
	LLM      LLMConfig      `yaml:"llm"`
	MCP      MCPConfig      `yaml:"mcp"`
	Records  RecordsConfig  `yaml:"records"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string `yaml:"addr"`
}

// BatchConfig configures the per-channel message coalescer.
type BatchConfig struct {
	// WindowSeconds is the inactivity window W after which a batch flushes.
	WindowSeconds int `yaml:"window_seconds"`
}

// Window returns the inactivity window as a duration.
func (b BatchConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

// ClassifyConfig configures the external short-text classifier.
type ClassifyConfig struct {
	// ServiceURL is the classifier base URL. Empty disables the remote call
	// and every message falls back to the neutral default.
	ServiceURL string `yaml:"service_url"`
}

// LLMConfig configures the OpenAI Responses client.
type LLMConfig struct {
	// Token is the OpenAI API token used for every tenant's sessions.
	Token string `yaml:"token"`

	// Model is the Responses model identifier.
	Model string `yaml:"model"`

	// MaxIterations bounds the approval loop per session.
	MaxIterations int `yaml:"max_iterations"`

	// BaseURL overrides the API endpoint. Used by tests.
	BaseURL string `yaml:"base_url"`
}

// MCPConfig holds the MCP gateway endpoints the orchestrator registers.
type MCPConfig struct {
	// NotionURL is the Notion MCP gateway endpoint.
	NotionURL string `yaml:"notion_url"`

	// GitHubURL is the public GitHub MCP endpoint.
	GitHubURL string `yaml:"github_url"`

	// GitHubFileURL is the file-content MCP gateway endpoint.
	GitHubFileURL string `yaml:"github_file_url"`
}

// RecordsConfig configures the analysis log sink.
type RecordsConfig struct {
	// TableName is the DynamoDB table for classification and analysis records.
	TableName string `yaml:"table_name"`

	// Region overrides the AWS region resolved from the default chain.
	Region string `yaml:"region"`
}

// DatabaseConfig configures the tenant/association store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path (optional; empty path or a missing
// file yields defaults), expands environment references, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps the documented environment variables onto the config. Values
// from the environment win over the file, matching how the service has always
// been deployed.
func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Batch.WindowSeconds = n
		}
	}
	if v := os.Getenv("CLASSIFICATION_SERVICE"); v != "" {
		c.Classify.ServiceURL = v
	}
	if v := os.Getenv("OPENAI_TOKEN"); v != "" {
		c.LLM.Token = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("NOTION_MCP_URL"); v != "" {
		c.MCP.NotionURL = v
	}
	if v := os.Getenv("GITHUB_MCP_URL"); v != "" {
		c.MCP.GitHubURL = v
	}
	if v := os.Getenv("GITHUB_FILE_MCP_URL"); v != "" {
		c.MCP.GitHubFileURL = v
	}
	if v := os.Getenv("TABLE_NAME"); v != "" {
		c.Records.TableName = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Records.Region = v
	}
	if v := os.Getenv("INFERA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Batch.WindowSeconds <= 0 {
		c.Batch.WindowSeconds = DefaultBatchWindowSeconds
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.MaxIterations <= 0 {
		c.LLM.MaxIterations = DefaultMaxIterations
	}
	if c.MCP.GitHubURL == "" {
		c.MCP.GitHubURL = DefaultGitHubMCPURL
	}
	if c.Records.TableName == "" {
		c.Records.TableName = DefaultTableName
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
}

func (c *Config) validate() error {
	if c.Batch.WindowSeconds <= 0 {
		return fmt.Errorf("batch window must be positive, got %d", c.Batch.WindowSeconds)
	}
	return nil
}
