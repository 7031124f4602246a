package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails"`
	Shell      ShellConfig      `mapstructure:"shell"`
}

// ServerConfig configures the HTTP binding (§6A).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig configures the durable-tier audit store.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"` // empty = stdout; otherwise rotated via lumberjack
}

// LLMConfig lists the configured model providers and default model.
type LLMConfig struct {
	DefaultModel string               `mapstructure:"default_model"`
	Providers    []LLMProviderConfig  `mapstructure:"providers"`
}

// LLMProviderConfig configures one concrete LLM provider (§2B/§6).
type LLMProviderConfig struct {
	Name     string   `mapstructure:"name"` // anthropic, openai, gemini
	APIKey   string   `mapstructure:"api_key"`
	BaseURL  string   `mapstructure:"base_url"` // empty = provider SDK default
	Models   []string `mapstructure:"models"`
	Priority int      `mapstructure:"priority"`
}

// KubernetesConfig configures the Kubernetes Executor (§4.4, §6).
type KubernetesConfig struct {
	InCluster        bool   `mapstructure:"in_cluster"`
	Kubeconfig       string `mapstructure:"kubeconfig"`        // path, used when not in-cluster
	DefaultNamespace string `mapstructure:"default_namespace"`
}

// ApprovalConfig configures the Approval Controller (§4.6).
type ApprovalConfig struct {
	DefaultMode  string        `mapstructure:"default_mode"` // strict | normal | auto
	PendingTTL   time.Duration `mapstructure:"pending_ttl"`
	SweepCron    string        `mapstructure:"sweep_cron"`
}

// RuntimeConfig configures the Conversation Driver / Execution Engine
// timeouts and caps (§4.1, §4.2, §5).
type RuntimeConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations"`       // 16, §4.1
	ToolCallTimeout    time.Duration `mapstructure:"tool_call_timeout"`    // 60s default
	ProcessToolTimeout time.Duration `mapstructure:"process_tool_timeout"` // 120s for shell/process ops
	TurnTimeout        time.Duration `mapstructure:"turn_timeout"`         // 300s overall cap
	UnreachableRetries int           `mapstructure:"unreachable_retries"`  // 1, §7
	UnreachableBackoff time.Duration `mapstructure:"unreachable_backoff"`  // 500ms jittered
}

// GuardrailsConfig configures the cost/context guards retained from the
// teacher, now scoped to a single turn rather than a whole agent run.
type GuardrailsConfig struct {
	MaxTokenBudget   int64   `mapstructure:"max_token_budget"`
	ContextMaxTokens int     `mapstructure:"context_max_tokens"`
	ContextWarnRatio float64 `mapstructure:"context_warn_ratio"`
	ContextHardRatio float64 `mapstructure:"context_hard_ratio"`
	MetricHistorySize int    `mapstructure:"metric_history_size"` // ring buffer N, default 20
}

// ShellConfig configures the Shell Executor's sandbox (§4.4).
type ShellConfig struct {
	AllowedBinaries []string `mapstructure:"allowed_binaries"`
	WorkDir         string   `mapstructure:"work_dir"`
}

// Load reads configuration layered: defaults -> global ~/.kubeagent/ ->
// project-local .kubeagent/ -> environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".kubeagent")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./.kubeagent", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("KUBEAGENT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18789)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "kubeagent.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.default_model", "anthropic/claude-sonnet-4-5")

	v.SetDefault("kubernetes.in_cluster", false)
	v.SetDefault("kubernetes.default_namespace", "default")

	v.SetDefault("approval.default_mode", "normal")
	v.SetDefault("approval.pending_ttl", "1h")
	v.SetDefault("approval.sweep_cron", "@every 1m")

	v.SetDefault("runtime.max_iterations", 16)
	v.SetDefault("runtime.tool_call_timeout", "60s")
	v.SetDefault("runtime.process_tool_timeout", "120s")
	v.SetDefault("runtime.turn_timeout", "300s")
	v.SetDefault("runtime.unreachable_retries", 1)
	v.SetDefault("runtime.unreachable_backoff", "500ms")

	v.SetDefault("guardrails.max_token_budget", 100000)
	v.SetDefault("guardrails.context_max_tokens", 128000)
	v.SetDefault("guardrails.context_warn_ratio", 0.7)
	v.SetDefault("guardrails.context_hard_ratio", 0.85)
	v.SetDefault("guardrails.metric_history_size", 20)

	v.SetDefault("shell.allowed_binaries", []string{"sh", "bash", "cmd", "powershell"})
	v.SetDefault("shell.work_dir", "")
}
