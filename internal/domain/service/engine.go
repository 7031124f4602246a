package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	domaintool "github.com/kubeagent/core/internal/domain/tool"
	"github.com/kubeagent/core/internal/domain/valueobject"
	apperrors "github.com/kubeagent/core/pkg/errors"
)

// Per-call timeouts (§4.2 step 5, §5). Shell/process-spawning tools get the
// longer budget; everything else uses the default.
const (
	defaultToolTimeout = 60 * time.Second
	processToolTimeout = 120 * time.Second
)

// unreachableRetryWait is the jittered backoff before the single retry on
// an Unreachable outcome (§4.2 step 5, §7).
const unreachableRetryWait = 500 * time.Millisecond

// ExecutionEngine implements the §4.2 seven-step tool dispatch: lookup,
// parameter validation, classify, gate on approval mode, execute-or-suspend,
// validate the result, persist an audit record, and return a ToolResult to
// the Conversation Driver. It never talks to an LLM and has no notion of a
// "turn" — only of one tool call at a time.
type ExecutionEngine struct {
	tools    ToolExecutor
	pendings repository.PendingRepository
	audit    repository.AuditRepository
	cache    *ToolResultCache
	logger   *zap.Logger
}

// NewExecutionEngine wires the engine to its tool layer and repositories.
// The result cache is scoped here, not in the Conversation Driver, because
// only the Engine knows a call's classification: caching is only ever
// consulted for ClassSafe tools, after they have already been dispatched
// and audited once, so it can never substitute for the approval gate or
// the per-call AuditRecord a dangerous tool requires (§4.2, §8 invariant 6).
func NewExecutionEngine(tools ToolExecutor, pendings repository.PendingRepository, audit repository.AuditRepository, logger *zap.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		tools:    tools,
		pendings: pendings,
		audit:    audit,
		cache:    NewToolResultCache(30*time.Second, 100),
		logger:   logger,
	}
}

// Dispatch runs the seven-step pipeline for a single tool call.
func (e *ExecutionEngine) Dispatch(ctx context.Context, conversationID string, call entity.ToolCall, mode valueobject.ApprovalMode) entity.ToolResult {
	// 1. Lookup.
	if !e.tools.HasTool(call.Name) {
		return entity.ToolResult{
			CallID:          call.ID,
			Status:          entity.StatusError,
			Payload:         apperrors.NewUnknownToolError(call.Name).Error(),
			ValidationNotes: []string{"unknown_tool"},
		}
	}
	kind := e.tools.GetToolKind(call.Name)

	// 2. Parameter validation.
	if err := validateParams(e.schemaFor(call.Name), call.Params); err != nil {
		return entity.ToolResult{
			CallID:          call.ID,
			Status:          entity.StatusError,
			Payload:         apperrors.NewBadParamsError(err.Error()).Error(),
			ValidationNotes: []string{"bad_params"},
		}
	}

	// 3. Classification decision.
	dangerous := domaintool.ClassifyKind(kind) == domaintool.ClassDangerous

	// A safe call with identical params may already have a cached,
	// previously-audited result — dangerous calls never consult the
	// cache and always go through the gate below.
	if !dangerous {
		if cached, cachedSuccess, hit := e.cache.Get(call.Name, call.Params); hit {
			return entity.ToolResult{CallID: call.ID, Status: statusFromBool(cachedSuccess), Payload: cached}
		}
	}

	// 4. Gate on approval mode.
	if mode.RequiresApproval(dangerous) {
		pending, err := entity.NewPendingExecution(uuid.NewString(), conversationID, call.ID, call.Name, call.Params, dangerous)
		if err != nil {
			return entity.ToolResult{CallID: call.ID, Status: entity.StatusError, Payload: err.Error()}
		}
		if err := e.pendings.Save(ctx, pending); err != nil {
			e.logger.Error("failed to persist pending execution", zap.Error(err))
			return entity.ToolResult{CallID: call.ID, Status: entity.StatusError, Payload: "failed to suspend for approval"}
		}
		e.logger.Info("tool call suspended for approval",
			zap.String("tool", call.Name),
			zap.String("execution_id", pending.ID()),
		)
		return entity.ToolResult{
			CallID:      call.ID,
			Status:      entity.StatusApprovalRequired,
			ExecutionID: pending.ID(),
			Reason:      "tool call requires human approval under " + string(mode) + " mode",
		}
	}

	// 5-7: dispatch, validate, audit, return.
	approver := ""
	if mode == valueobject.ApprovalAuto {
		approver = "auto"
	}
	result := e.executeAndAudit(ctx, conversationID, call.ID, call.Name, call.Params, kind, approver, time.Now())
	if !dangerous {
		e.cache.Put(call.Name, call.Params, result.Payload, result.Status == entity.StatusOK)
	}
	return result
}

// Resume executes a previously-approved pending execution, bypassing the
// classification/approval-mode check entirely (§4.6: "dispatch the stored
// call through the Execution Engine bypassing the classification check").
func (e *ExecutionEngine) Resume(ctx context.Context, pending *entity.PendingExecution, approver string) entity.ToolResult {
	kind := e.tools.GetToolKind(pending.ToolName())
	result := e.executeAndAudit(ctx, pending.ConversationID(), pending.CallID(), pending.ToolName(), pending.Params(), kind, approver, pending.CreatedAt())
	result.ExecutionID = pending.ID()
	return result
}

func (e *ExecutionEngine) executeAndAudit(ctx context.Context, conversationID, callID, toolName string, params map[string]interface{}, kind domaintool.Kind, approver string, requestedAt time.Time) entity.ToolResult {
	timeout := defaultToolTimeout
	if kind == domaintool.KindExecute {
		timeout = processToolTimeout
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := e.executeWithRetry(toolCtx, toolName, params)

	var status entity.ToolCallStatus
	var auditStatus entity.AuditStatus
	var payload string
	var notes []string

	switch {
	case toolCtx.Err() == context.DeadlineExceeded || (err != nil && apperrors.IsTimeout(err)):
		// Either the executor reported a timeout directly, or the deadline
		// fired regardless of what the executor returned — don't trust a
		// result built on a cancelled context.
		status = entity.StatusError
		auditStatus = entity.AuditError
		payload = apperrors.NewTimeoutError(toolName + " exceeded its execution timeout").Error()
		notes = []string{"timeout"}
	case err != nil:
		status = entity.StatusError
		auditStatus = entity.AuditError
		payload = err.Error()
		notes = []string{"execution_error"}
	default:
		// 6. Validate the result.
		payload, notes = ValidateResult(raw)
		if raw.Success {
			status = entity.StatusOK
			auditStatus = entity.AuditSuccess
		} else {
			status = entity.StatusError
			auditStatus = entity.AuditError
		}
	}

	// 7. Persist the audit record.
	record := entity.NewAuditRecord(callID, conversationID, toolName, params, approver, auditStatus, requestedAt, time.Now(), payload)
	if err := e.audit.Append(ctx, record); err != nil {
		e.logger.Error("failed to append audit record", zap.Error(err))
	}

	return entity.ToolResult{
		CallID:          callID,
		Status:          status,
		Payload:         payload,
		ValidationNotes: notes,
	}
}

// executeWithRetry dispatches to the Executor, retrying exactly once with a
// jittered backoff when the failure is Unreachable (§4.2 step 5, §7). Any
// other error is permanent.
func (e *ExecutionEngine) executeWithRetry(ctx context.Context, toolName string, params map[string]interface{}) (*domaintool.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = unreachableRetryWait
	retry := backoff.WithMaxRetries(b, 1)
	retry = backoff.WithContext(retry, ctx)

	var result *domaintool.Result
	op := func() error {
		r, err := e.tools.Execute(ctx, toolName, params)
		if err != nil {
			if apperrors.IsUnreachable(err) {
				e.logger.Warn("tool endpoint unreachable, retrying", zap.String("tool", toolName), zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}
	err := backoff.Retry(op, retry)
	return result, err
}

func (e *ExecutionEngine) schemaFor(toolName string) map[string]interface{} {
	for _, def := range e.tools.GetDefinitions() {
		if def.Name == toolName {
			return def.Parameters
		}
	}
	return nil
}

// validateParams checks params against a tool's JSON-schema-shaped
// parameter definition (§4.2 step 2): required fields, declared types,
// enumerated values, numeric lower bounds.
func validateParams(schema map[string]interface{}, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	for _, name := range requiredFields(schema) {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	if properties == nil {
		return nil
	}
	for name, value := range params {
		propRaw, ok := properties[name]
		if !ok {
			continue
		}
		prop, ok := propRaw.(map[string]interface{})
		if !ok {
			continue
		}
		if err := validateField(name, value, prop); err != nil {
			return err
		}
	}
	return nil
}

func requiredFields(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func validateField(name string, value interface{}, prop map[string]interface{}) error {
	if t, ok := prop["type"].(string); ok {
		if !matchesJSONType(value, t) {
			return fmt.Errorf("parameter %q must be of type %s", name, t)
		}
	}
	if enum, ok := prop["enum"].([]interface{}); ok && len(enum) > 0 {
		found := false
		for _, e := range enum {
			if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", value) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("parameter %q must be one of %v", name, enum)
		}
	}
	if min, ok := numericValue(prop["minimum"]); ok {
		if v, ok := numericValue(value); ok && v < min {
			return fmt.Errorf("parameter %q must be >= %v", name, min)
		}
	}
	return nil
}

func matchesJSONType(value interface{}, jsonType string) bool {
	switch jsonType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "number":
		_, ok := numericValue(value)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToolExecutor is the interface the Execution Engine and Conversation Driver
// use to reach the tool Catalog (§4.3, §4.4), decoupling them from any one
// executor implementation (Kubernetes, Shell, derived analytics).
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error)
	GetDefinitions() []domaintool.Definition
	GetToolKind(name string) domaintool.Kind
	HasTool(name string) bool
}
