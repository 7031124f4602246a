package service

import (
	"fmt"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// resultMaxBytes bounds the payload handed back to the LLM; larger outputs
// are truncated with a notice rather than blowing the context budget.
const resultMaxBytes = 32000

// ValidateResult inspects a raw tool Result (§4.2 step 6) and returns
// human-readable validation notes plus the (possibly truncated) payload
// that should be persisted alongside the ToolResult.
func ValidateResult(result *domaintool.Result) (payload string, notes []string) {
	if result == nil {
		return "", []string{"tool returned a nil result"}
	}

	payload = result.Output
	if !result.Success {
		if result.Error != "" {
			notes = append(notes, "tool reported failure: "+result.Error)
		} else {
			notes = append(notes, "tool reported failure with no error message")
		}
		if result.Metadata != nil {
			if code, ok := result.Metadata["exit_code"].(int); ok {
				notes = append(notes, fmt.Sprintf("exit code %d: %s", code, exitCodeHint(code)))
			}
		}
	}

	if payload == "" && result.Success {
		notes = append(notes, "tool succeeded but returned an empty payload")
	}

	payload = truncateOutput(payload, resultMaxBytes)
	return payload, notes
}

// exitCodeHint maps common shell exit codes to a short explanation, used to
// help the model understand tool failures from the Shell executor (§4.4).
func exitCodeHint(code int) string {
	switch code {
	case 0:
		return "success"
	case 1:
		return "general error — check command arguments or file paths"
	case 2:
		return "usage error — incorrect command syntax"
	case 124:
		return "killed on timeout — the command did not finish within the deadline"
	case 126:
		return "permission denied — file is not executable"
	case 127:
		return "command not found — check the command name or PATH"
	case 128:
		return "terminated by signal"
	case 130:
		return "interrupted (Ctrl+C)"
	case 137:
		return "killed by SIGKILL — possibly out of memory"
	case 139:
		return "segmentation fault (SIGSEGV)"
	case 143:
		return "terminated by SIGTERM"
	case 255:
		return "SSH connection failed — check host reachability, port, and auth"
	default:
		if code > 128 {
			return fmt.Sprintf("terminated by signal %d", code-128)
		}
		return "unknown error"
	}
}
