package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config configures the Shell Executor's process sandbox (§4.4).
type Config struct {
	WorkDir     string        // working directory for spawned processes
	Timeout     time.Duration // default execution timeout
	AllowedBins []string      // allowlisted interpreter/binary names
}

// DefaultConfig returns a sandbox configuration scoped to the shell
// interpreters execute_shell_command is allowed to spawn (§4.3, §4.4).
// The sandbox provides process-group isolation and a timeout, not
// filesystem isolation — the host's real HOME is used deliberately so
// commands see the operator's own credentials and config.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	if homeDir == "" {
		homeDir = "/tmp/kubeagent-sandbox"
	}
	return &Config{
		WorkDir: homeDir,
		Timeout: 30 * time.Second,
		AllowedBins: []string{
			"sh", "bash", "cmd", "cmd.exe", "powershell", "powershell.exe", "pwsh",
		},
	}
}

// ProcessSandbox spawns a child process under the chosen shell
// interpreter, captures its output, and enforces a hard timeout by
// killing the whole process group — never the parent's own session.
type ProcessSandbox struct {
	config *Config
	logger *zap.Logger
}

// NewProcessSandbox creates a process sandbox, ensuring WorkDir exists.
func NewProcessSandbox(config *Config, logger *zap.Logger) (*ProcessSandbox, error) {
	if err := os.MkdirAll(config.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &ProcessSandbox{config: config, logger: logger}, nil
}

// Result is one command's execution outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Killed   bool // true if the timeout fired and the process group was killed
}

// ExecuteShell runs command through the given shell interpreter
// (sh/bash/cmd/powershell), enforcing timeout via an explicit
// process-group SIGKILL on context deadline (§4.4).
func (s *ProcessSandbox) ExecuteShell(ctx context.Context, shell, command string, timeout time.Duration) (*Result, error) {
	interpreter, flag, err := s.resolveShell(shell)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = s.config.Timeout
	}

	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(interpreter, flag, command)
	cmd.Dir = s.config.WorkDir
	cmd.Env = s.buildEnvironment()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Info("executing sandboxed command",
		zap.String("shell", interpreter),
		zap.String("work_dir", s.config.WorkDir),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	result := &Result{}
	select {
	case <-execCtx.Done():
		// Kill the whole process group, not just the direct child — a
		// shell interpreter may have spawned its own children.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-waitErr
		result.Killed = true
		result.ExitCode = -1
		result.Stdout, result.Stderr = stdout.String(), stderr.String()
		result.Duration = time.Since(start)
		s.logger.Warn("command killed on timeout", zap.Duration("timeout", timeout))
		return result, fmt.Errorf("command timed out after %v", timeout)

	case err := <-waitErr:
		result.Stdout, result.Stderr = stdout.String(), stderr.String()
		result.Duration = time.Since(start)
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
			} else {
				return result, fmt.Errorf("execution failed: %w", err)
			}
		}
		s.logger.Info("command completed", zap.Int("exit_code", result.ExitCode), zap.Duration("duration", result.Duration))
		return result, nil
	}
}

func (s *ProcessSandbox) resolveShell(shell string) (interpreter, flag string, err error) {
	if shell == "" {
		shell = "sh"
	}
	if !s.isAllowed(shell) {
		return "", "", fmt.Errorf("shell %q is not allowed", shell)
	}
	switch shell {
	case "cmd", "cmd.exe":
		return "cmd.exe", "/C", nil
	case "powershell", "powershell.exe", "pwsh":
		return shell, "-Command", nil
	default:
		path, err := exec.LookPath(shell)
		if err != nil {
			return "", "", fmt.Errorf("shell not found: %s", shell)
		}
		return path, "-c", nil
	}
}

func (s *ProcessSandbox) isAllowed(shell string) bool {
	base := filepath.Base(shell)
	for _, allowed := range s.config.AllowedBins {
		if allowed == base || allowed == shell {
			return true
		}
	}
	return false
}

func (s *ProcessSandbox) buildEnvironment() []string {
	sysPath := os.Getenv("PATH")
	if sysPath == "" {
		sysPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	}
	realHome, _ := os.UserHomeDir()
	if realHome == "" {
		realHome = s.config.WorkDir
	}
	return []string{
		"PATH=" + sysPath,
		"HOME=" + realHome,
		"LANG=en_US.UTF-8",
		"LC_ALL=en_US.UTF-8",
		"USER=" + os.Getenv("USER"),
	}
}

// SetWorkDir overrides the sandbox's working directory.
func (s *ProcessSandbox) SetWorkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("invalid work dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("work dir is not a directory: %s", dir)
	}
	s.config.WorkDir = dir
	return nil
}

// GetWorkDir returns the sandbox's current working directory.
func (s *ProcessSandbox) GetWorkDir() string {
	return s.config.WorkDir
}

// AddAllowedBin extends the shell-interpreter allowlist.
func (s *ProcessSandbox) AddAllowedBin(bin string) {
	s.config.AllowedBins = append(s.config.AllowedBins, bin)
}
