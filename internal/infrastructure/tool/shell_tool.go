// Package tool assembles the §4.3 Catalog: the Kubernetes Executor's
// tools plus the single shell tool, registered into a domain Registry.
package tool

import (
	"context"
	"time"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
	"github.com/kubeagent/core/internal/infrastructure/sandbox"
)

// shellTool implements execute_shell_command (§4.3), the one dangerous
// tool that escapes the cluster entirely and runs a host process.
type shellTool struct {
	box     *sandbox.ProcessSandbox
	timeout time.Duration
}

// NewShellTool wraps a ProcessSandbox as the execute_shell_command Catalog tool.
func NewShellTool(box *sandbox.ProcessSandbox, timeout time.Duration) domaintool.Tool {
	return &shellTool{box: box, timeout: timeout}
}

func (t *shellTool) Name() string         { return "execute_shell_command" }
func (t *shellTool) Kind() domaintool.Kind { return domaintool.KindExecute }
func (t *shellTool) Description() string {
	return "Execute a shell command on the host running the agent, under a timeout and process-group isolation."
}

func (t *shellTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string", "description": "the command line to run"},
			"shell":   map[string]interface{}{"type": "string", "description": "interpreter: sh, bash, cmd, or powershell (defaults to sh)"},
		},
		"required": []string{"command"},
	}
}

func (t *shellTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return &domaintool.Result{Success: false, Error: "command is required"}, nil
	}
	shell, _ := args["shell"].(string)

	result, err := t.box.ExecuteShell(ctx, shell, command, t.timeout)
	if err != nil && result == nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	output := result.Stdout
	if result.Stderr != "" {
		output += "\n--- stderr ---\n" + result.Stderr
	}

	res := &domaintool.Result{
		Output:  output,
		Success: result.ExitCode == 0 && !result.Killed,
		Metadata: map[string]interface{}{
			"exit_code": result.ExitCode,
			"duration":  result.Duration.String(),
			"killed":    result.Killed,
		},
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}
