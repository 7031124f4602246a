package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "kubeagent"

// WorkspaceDirName is the directory name used for project-local config
// overrides. Place .kubeagent/ in a project root to override the global
// config.
const WorkspaceDirName = "." + AppName

// HomeDir returns the user's configuration home: ~/.kubeagent
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures the ~/.kubeagent directory exists with default
// content. Safe to call multiple times — only creates missing items,
// never overwrites user edits.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	dirs := []string{
		root,
		filepath.Join(root, "prompts"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"):             defaultConfig,
		filepath.Join(root, "prompts", "rules.md"):      defaultOperatingRules,
		filepath.Join(root, "prompts", "catalog.md"):    defaultCatalogPreamble,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("Failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("bootstrap complete", zap.String("home", root), zap.Int("files_created", created))
	} else {
		logger.Debug("config home OK", zap.String("home", root))
	}

	return nil
}

// ──────────────────────────────────────────────────────────────
// Embedded default file contents
// ──────────────────────────────────────────────────────────────

const defaultConfig = `# kubeagent configuration — auto-generated on first launch, safe to edit.

server:
  host: 0.0.0.0
  port: 18789

database:
  type: sqlite       # sqlite | postgres
  dsn: kubeagent.db

log:
  level: info        # debug | info | warn | error
  format: json        # json | console

llm:
  default_model: ""  # e.g. "anthropic/claude-sonnet-4-5"
  providers: []
  # providers:
  #   - name: anthropic
  #     api_key: "sk-ant-..."
  #     models: ["anthropic/claude-sonnet-4-5"]
  #     priority: 1

kubernetes:
  in_cluster: false
  kubeconfig: ""          # defaults to ~/.kube/config when empty
  default_namespace: default

approval:
  default_mode: normal    # strict | normal | auto
  pending_ttl: 1h
  sweep_cron: "@every 1m"

runtime:
  max_iterations: 16
  tool_call_timeout: 60s
  process_tool_timeout: 120s
  turn_timeout: 300s
  unreachable_retries: 1
  unreachable_backoff: 500ms

guardrails:
  max_token_budget: 100000
  context_max_tokens: 128000
  context_warn_ratio: 0.7
  context_hard_ratio: 0.85
  metric_history_size: 20

shell:
  allowed_binaries: ["sh", "bash", "cmd", "powershell"]
  work_dir: ""
`

const defaultOperatingRules = `## Operating Rules

- Make incremental progress: prefer one well-chosen tool call over a speculative batch.
- Reason explicitly before acting: wrap planning in <plan> and intermediate reasoning in <think> markers.
- One tool at a time — wait for its result before deciding the next step.
- Leave the cluster in a clean, observable state after every operation: confirm the effect of a mutation with a follow-up read when in doubt.
- Never fabricate resource names, namespaces, or command output — only report what a tool actually returned.
- If a tool call is rejected or suspended for approval, explain why to the user rather than retrying blindly.
`

const defaultCatalogPreamble = `## Available Tools

The tool catalog below lists every operation you may call, its parameters, and whether it is safe (observation-only) or dangerous (mutates cluster or host state). Dangerous calls may be suspended for human approval depending on the active approval mode.
`
