package tool

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/infrastructure/sandbox"
)

func newTestShellTool(t *testing.T) *shellTool {
	t.Helper()
	cfg := sandbox.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	box, err := sandbox.NewProcessSandbox(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build sandbox: %v", err)
	}
	return &shellTool{box: box, timeout: time.Second}
}

func TestShellTool_ExecuteSuccess(t *testing.T) {
	tool := newTestShellTool(t)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata["exit_code"] != 0 {
		t.Fatalf("expected exit_code 0, got %v", result.Metadata["exit_code"])
	}
}

func TestShellTool_RequiresCommand(t *testing.T) {
	tool := newTestShellTool(t)
	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when command is missing")
	}
}

func TestShellTool_TimeoutMarksKilled(t *testing.T) {
	tool := newTestShellTool(t)
	tool.timeout = 100 * time.Millisecond

	result, err := tool.Execute(context.Background(), map[string]interface{}{"command": "sleep 5"})
	if err != nil || result.Error == "" {
		t.Fatal("expected a timeout error to surface")
	}
	if result.Success {
		t.Fatal("expected success=false on a killed command")
	}
	if result.Metadata["killed"] != true {
		t.Fatalf("expected killed=true in metadata, got %v", result.Metadata["killed"])
	}
}

func TestShellTool_NameAndKind(t *testing.T) {
	tool := newTestShellTool(t)
	if tool.Name() != "execute_shell_command" {
		t.Fatalf("unexpected name %q", tool.Name())
	}
}
