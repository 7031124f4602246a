package sandbox

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSandbox(t *testing.T) *ProcessSandbox {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()
	box, err := NewProcessSandbox(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create sandbox: %v", err)
	}
	return box
}

func TestExecuteShell_Success(t *testing.T) {
	box := newTestSandbox(t)
	result, err := box.ExecuteShell(context.Background(), "sh", "echo hello", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Fatalf("expected stdout %q, got %q", "hello\n", result.Stdout)
	}
	if result.Killed {
		t.Fatal("expected Killed=false on a command that completes normally")
	}
}

func TestExecuteShell_NonZeroExit(t *testing.T) {
	box := newTestSandbox(t)
	result, err := box.ExecuteShell(context.Background(), "sh", "exit 3", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestExecuteShell_TimeoutKillsProcessGroup(t *testing.T) {
	box := newTestSandbox(t)
	start := time.Now()
	result, err := box.ExecuteShell(context.Background(), "sh", "sleep 5", 100*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !result.Killed {
		t.Fatal("expected Killed=true when the timeout fires")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("expected the command to be killed promptly, took %v", elapsed)
	}
}

func TestExecuteShell_RejectsDisallowedInterpreter(t *testing.T) {
	box := newTestSandbox(t)
	_, err := box.ExecuteShell(context.Background(), "python3", "print(1)", time.Second)
	if err == nil {
		t.Fatal("expected an error for a non-allowlisted interpreter")
	}
}

func TestAddAllowedBin_PermitsNewInterpreter(t *testing.T) {
	box := newTestSandbox(t)
	box.AddAllowedBin("sh-alias-for-test")
	if !box.isAllowed("sh-alias-for-test") {
		t.Fatal("expected AddAllowedBin to extend the allowlist")
	}
}
