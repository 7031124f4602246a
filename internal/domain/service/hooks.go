package service

import (
	"context"

	"github.com/kubeagent/core/internal/domain/entity"
)

// DriverHook defines lifecycle hooks for extending Conversation Driver
// behavior (§4.1). All methods run synchronously — keep implementations fast
// so they don't block the turn. Embed NoOpHook to implement only what you need.
type DriverHook interface {
	// BeforeLLMCall runs before each LLM request.
	BeforeLLMCall(ctx context.Context, req *LLMRequest, iteration int)

	// AfterLLMCall runs after each successful LLM response.
	AfterLLMCall(ctx context.Context, resp *LLMResponse, iteration int)

	// BeforeToolCall runs before a tool call is dispatched to the Execution
	// Engine. Returning false vetoes the call (e.g. a security policy).
	BeforeToolCall(ctx context.Context, toolName string, args map[string]interface{}) bool

	// AfterToolCall runs after a tool call completes.
	AfterToolCall(ctx context.Context, toolName string, output string, success bool)

	// OnError runs when an unrecoverable error occurs in the turn.
	OnError(ctx context.Context, err error, iteration int)

	// OnComplete runs when the turn finishes successfully.
	OnComplete(ctx context.Context, result *DriverResult)

	// OnStateChange runs on each Driver state machine transition.
	OnStateChange(from, to DriverState, snap StateSnapshot)
}

// NoOpHook is a default no-op implementation of DriverHook. Embed it in a
// custom hook to only override the methods you care about.
type NoOpHook struct{}

func (NoOpHook) BeforeLLMCall(_ context.Context, _ *LLMRequest, _ int)                   {}
func (NoOpHook) AfterLLMCall(_ context.Context, _ *LLMResponse, _ int)                   {}
func (NoOpHook) BeforeToolCall(_ context.Context, _ string, _ map[string]interface{}) bool { return true }
func (NoOpHook) AfterToolCall(_ context.Context, _ string, _ string, _ bool)             {}
func (NoOpHook) OnError(_ context.Context, _ error, _ int)                               {}
func (NoOpHook) OnComplete(_ context.Context, _ *DriverResult)                           {}
func (NoOpHook) OnStateChange(_, _ DriverState, _ StateSnapshot)                         {}

// HookChain aggregates multiple hooks — all run in registration order.
type HookChain struct {
	hooks []DriverHook
}

// NewHookChain creates a hook chain from the given hooks.
func NewHookChain(hooks ...DriverHook) *HookChain {
	return &HookChain{hooks: hooks}
}

// Add appends a hook to the chain.
func (c *HookChain) Add(h DriverHook) {
	c.hooks = append(c.hooks, h)
}

func (c *HookChain) BeforeLLMCall(ctx context.Context, req *LLMRequest, iteration int) {
	for _, h := range c.hooks {
		h.BeforeLLMCall(ctx, req, iteration)
	}
}

func (c *HookChain) AfterLLMCall(ctx context.Context, resp *LLMResponse, iteration int) {
	for _, h := range c.hooks {
		h.AfterLLMCall(ctx, resp, iteration)
	}
}

func (c *HookChain) BeforeToolCall(ctx context.Context, toolName string, args map[string]interface{}) bool {
	for _, h := range c.hooks {
		if !h.BeforeToolCall(ctx, toolName, args) {
			return false // any hook can veto a tool call
		}
	}
	return true
}

func (c *HookChain) AfterToolCall(ctx context.Context, toolName string, output string, success bool) {
	for _, h := range c.hooks {
		h.AfterToolCall(ctx, toolName, output, success)
	}
}

func (c *HookChain) OnError(ctx context.Context, err error, iteration int) {
	for _, h := range c.hooks {
		h.OnError(ctx, err, iteration)
	}
}

func (c *HookChain) OnComplete(ctx context.Context, result *DriverResult) {
	for _, h := range c.hooks {
		h.OnComplete(ctx, result)
	}
}

func (c *HookChain) OnStateChange(from, to DriverState, snap StateSnapshot) {
	for _, h := range c.hooks {
		h.OnStateChange(from, to, snap)
	}
}

var _ DriverHook = (*HookChain)(nil)

// --- Built-in hooks ---

// LoggingHook holds an Events slice. It overrides none of the NoOpHook
// methods, so running it in a Driver leaves Events empty.
type LoggingHook struct {
	NoOpHook
	Events []entity.DriverEvent
}

// MetricsHook feeds counters into the process-local metric ring buffer (§4.4, §9).
type MetricsHook struct {
	NoOpHook
	LLMCallCount  int
	ToolCallCount int
	ErrorCount    int
	History       *MetricHistory
}

func (h *MetricsHook) AfterLLMCall(_ context.Context, resp *LLMResponse, _ int) {
	h.LLMCallCount++
	if h.History != nil {
		h.History.RecordTokens(resp.TokensUsed)
	}
}

func (h *MetricsHook) AfterToolCall(_ context.Context, toolName string, _ string, success bool) {
	h.ToolCallCount++
	if h.History != nil {
		h.History.RecordToolCall(toolName, success)
	}
}

func (h *MetricsHook) OnError(_ context.Context, _ error, _ int) { h.ErrorCount++ }
