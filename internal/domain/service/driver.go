package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/valueobject"
)

// DriverConfig holds configuration for the Conversation Driver's loop (§4.1).
type DriverConfig struct {
	MaxOutputChars int     // Maximum characters per tool output before truncation (default: 32000)
	Temperature    float64 // LLM temperature
	Model          string  // LLM model identifier (e.g. "anthropic/claude-sonnet-4-5")
	SystemPrompt   string  // fixed system prompt prefixed to every rendered message slice (§4.1)

	// Per-model policy overrides from config.yaml.
	// Keys are matched by substring against model ID (e.g. "qwen3", "gpt").
	ModelPolicies map[string]*ModelPolicyOverride

	// Auto-retry configuration for the LLM call itself (distinct from the
	// Execution Engine's single Unreachable retry, §7).
	MaxRetries    int           // Max retries per LLM call (default: 3)
	RetryBaseWait time.Duration // Base wait between retries (default: 2s, exponential)

	// Context compaction
	CompactKeepLast int // Number of recent turns to preserve during compaction (default: 10)

	// MaxIterations is the hard per-turn cap on LLM round-trips (§4.1: 16).
	MaxIterations int

	// TurnTimeout bounds the whole user turn (§5: 300s default).
	TurnTimeout time.Duration

	ContextMaxTokens    int     // Context window token limit (default 128000)
	ContextWarnRatio    float64 // Warn when context > this ratio (default 0.7)
	ContextHardRatio    float64 // Force compact when > this ratio (default 0.85)
	LoopWindowSize      int     // Sliding window size for exact-match loop detection (default 10)
	LoopDetectThreshold int     // Identical calls in window to trigger reflection (default 5)
	LoopNameThreshold   int     // Same tool name occurrences in the sliding window to trigger reflection (default 8)
}

// DefaultDriverConfig returns production-ready defaults, including the
// spec's hard 16-iteration cap (§4.1, §8 invariant on the iteration cap).
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		MaxOutputChars:      32000,
		Temperature:         0.7,
		MaxRetries:          3,
		RetryBaseWait:       2 * time.Second,
		CompactKeepLast:     10,
		MaxIterations:       16,
		TurnTimeout:         300 * time.Second,
		ContextMaxTokens:    128000,
		ContextWarnRatio:    0.7,
		ContextHardRatio:    0.85,
		LoopWindowSize:      10,
		LoopDetectThreshold: 5,
		LoopNameThreshold:   8,
	}
}

// ConversationDriver implements the §4.1 Conversation Driver: it turns a
// user message plus a persisted Conversation into LLM round-trips, handing
// every ToolCall to the Execution Engine one at a time (§4.2 requires
// strictly sequential dispatch within a turn), and unwinds to a persisted
// state the instant a call suspends for approval — no in-memory
// continuation survives an approval gate (§5, §9).
type ConversationDriver struct {
	llm        LLMClient
	tools      ToolExecutor
	engine     *ExecutionEngine
	config     DriverConfig
	hooks      DriverHook
	middleware *MiddlewarePipeline
	logger     *zap.Logger
}

// NewConversationDriver wires a Driver to its LLM client, tool catalog, and
// Execution Engine.
func NewConversationDriver(llm LLMClient, tools ToolExecutor, engine *ExecutionEngine, config DriverConfig, logger *zap.Logger) *ConversationDriver {
	if config.MaxOutputChars <= 0 {
		config.MaxOutputChars = 32000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseWait <= 0 {
		config.RetryBaseWait = 2 * time.Second
	}
	if config.CompactKeepLast <= 0 {
		config.CompactKeepLast = 10
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 16
	}
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = 300 * time.Second
	}
	if config.ContextMaxTokens <= 0 {
		config.ContextMaxTokens = 128000
	}
	if config.ContextWarnRatio <= 0 {
		config.ContextWarnRatio = 0.7
	}
	if config.ContextHardRatio <= 0 {
		config.ContextHardRatio = 0.85
	}
	if config.LoopWindowSize <= 0 {
		config.LoopWindowSize = 10
	}
	if config.LoopDetectThreshold <= 0 {
		config.LoopDetectThreshold = 5
	}

	return &ConversationDriver{
		llm:        llm,
		tools:      tools,
		engine:     engine,
		config:     config,
		hooks:      &NoOpHook{},
		middleware: NewMiddlewarePipeline(logger),
		logger:     logger,
	}
}

// SetHooks replaces the hook chain for this driver.
func (d *ConversationDriver) SetHooks(hooks DriverHook) {
	if hooks != nil {
		d.hooks = hooks
	}
}

// SetMiddleware replaces the middleware pipeline for this driver.
func (d *ConversationDriver) SetMiddleware(mw *MiddlewarePipeline) {
	if mw != nil {
		d.middleware = mw
	}
}

// DriverResult is the final outcome of one Run of the Conversation Driver.
type DriverResult struct {
	FinalContent   string
	TotalIteration int
	TotalTokens    int
	ModelUsed      string
	ToolsUsed      []string

	// PendingExecutionID is set when the turn suspended for approval
	// (§4.1 step 4) instead of reaching a terminal reply.
	PendingExecutionID string
}

// Run drives one user turn against the given conversation to completion, an
// approval gate, or the iteration cap — whichever comes first (§4.1).
// modelOverride, when non-empty, overrides the configured default model.
func (d *ConversationDriver) Run(ctx context.Context, conv *entity.Conversation, userText string, mode valueobject.ApprovalMode, modelOverride string) (*DriverResult, <-chan entity.DriverEvent) {
	eventCh := make(chan entity.DriverEvent, 64)
	result := &DriverResult{}

	ctx = WithTraceID(ctx, "")
	d.logger = d.logger.With(zap.String("trace_id", TraceIDFromContext(ctx)))

	cancel := context.CancelFunc(func() {})
	if d.config.TurnTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.config.TurnTimeout)
		// the goroutine below owns the cancellation lifetime
	}

	sm := NewStateMachine(d.config.MaxIterations, d.logger)
	sm.OnTransition(func(from, to DriverState, snap StateSnapshot) {
		d.hooks.OnStateChange(from, to, snap)
	})

	go func() {
		defer close(eventCh)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Conversation Driver panicked", zap.Any("panic", r), zap.Stack("stack"))
				d.emitEvent(eventCh, entity.DriverEvent{Type: entity.EventError, Error: fmt.Sprintf("internal error: %v", r)})
				result.FinalContent = fmt.Sprintf("internal error: %v", r)
			}
		}()
		d.runLoop(ctx, conv, userText, mode, result, eventCh, sm, modelOverride)
	}()

	return result, eventCh
}

// Resume continues a suspended turn after an approval decision has been
// applied to the conversation's pending ToolResult turn (§4.6). Unlike Run,
// it appends no new User turn — the loop re-enters at the next LLM
// round-trip. ToolCalls of the suspended batch that came after the
// suspended call are not dispatched; the dangling-tool-call middleware, when
// installed, gives them placeholder results before the LLM call.
func (d *ConversationDriver) Resume(ctx context.Context, conv *entity.Conversation, mode valueobject.ApprovalMode, modelOverride string) (*DriverResult, <-chan entity.DriverEvent) {
	return d.Run(ctx, conv, "", mode, modelOverride)
}

func (d *ConversationDriver) runLoop(
	ctx context.Context,
	conv *entity.Conversation,
	userText string,
	mode valueobject.ApprovalMode,
	result *DriverResult,
	eventCh chan<- entity.DriverEvent,
	sm *StateMachine,
	modelOverride string,
) {
	if userText != "" {
		conv.AppendTurn(entity.NewUserTurn(newTurnID(), userText))
	}

	toolDefs := d.tools.GetDefinitions()
	toolsUsedSet := make(map[string]bool)

	loopDetector := NewLoopDetector(d.config.LoopWindowSize, d.config.LoopDetectThreshold, d.config.LoopNameThreshold, d.logger)
	contextGuard := NewContextGuard(d.config.ContextMaxTokens, d.config.ContextWarnRatio, d.config.ContextHardRatio, d.logger)

	model := d.config.Model
	if modelOverride != "" {
		model = modelOverride
		d.logger.Info("model override active", zap.String("override", modelOverride))
	}
	policy := ResolveModelPolicy(model, d.config.ModelPolicies)
	d.logger.Info("model policy resolved",
		zap.String("model", model),
		zap.String("reasoning_format", policy.ReasoningFormat),
		zap.Int("progress_interval", policy.ProgressInterval),
	)

	var assistantTexts []string
	compactionThisTurn := false

	for iteration := 1; ; iteration++ {
		// 5. Hard iteration cap (§4.1, §8). The state machine still holds the
		// previous iteration here, so the cap fires only after MaxIterations
		// round-trips have run.
		if sm.ReachedIterationCap() {
			msg := fmt.Sprintf("Stopped after reaching the %d-iteration cap for this turn without a terminal reply.", d.config.MaxIterations)
			conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), msg, nil))
			_ = sm.Transition(StateError)
			result.FinalContent = msg
			d.hooks.OnComplete(ctx, result)
			d.emitEvent(eventCh, entity.DriverEvent{Type: entity.EventDone, Content: msg})
			return
		}
		sm.SetIteration(iteration)

		if err := ctx.Err(); err != nil {
			_ = sm.Transition(StateAborted)
			msg := "turn cancelled: " + err.Error()
			conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), msg, nil))
			result.FinalContent = msg
			d.emitEvent(eventCh, entity.DriverEvent{Type: entity.EventError, Error: msg})
			return
		}

		messages := d.renderMessages(conv)

		if policy.ProgressInterval > 0 && iteration > 1 && iteration%policy.ProgressInterval == 0 {
			if msg := policy.BuildProgressMessage(iteration); msg != "" {
				messages = append(messages, LLMMessage{Role: "user", Content: msg})
			}
		}

		if ctxCheck := contextGuard.Check(messages); ctxCheck.NeedCompaction {
			_ = sm.Transition(StateCompacting)
			messages = d.compactMessages(messages)
			compactionThisTurn = true
			d.logger.Info("context compacted", zap.Int("messages_after", len(messages)), zap.Float64("ratio", ctxCheck.Ratio))
		}
		messages = sanitizeMessages(messages)

		_ = sm.Transition(StateStreaming)
		mwMessages := d.middleware.RunBeforeModel(ctx, messages, iteration)
		llmReq := &LLMRequest{Messages: mwMessages, Tools: toolDefs, Model: model, Temperature: d.config.Temperature}
		d.hooks.BeforeLLMCall(ctx, llmReq, iteration)

		resp, err := d.callLLMWithRetry(ctx, llmReq, iteration, eventCh)
		if err != nil {
			if IsContextOverflowError(err) {
				_ = sm.Transition(StateCompacting)
				messages = d.compactMessages(messages)
				d.logger.Info("auto-compacted after overflow, retrying", zap.Int("messages_after", len(messages)))
				continue
			}
			sm.RecordError()
			_ = sm.Transition(StateError)
			d.hooks.OnError(ctx, err, iteration)
			msg := fmt.Sprintf("LLM error at iteration %d: %v", iteration, err)
			conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), msg, nil))
			result.FinalContent = msg
			d.emitEvent(eventCh, entity.DriverEvent{Type: entity.EventError, Error: msg})
			return
		}

		result.TotalTokens += resp.TokensUsed
		result.ModelUsed = resp.ModelUsed
		result.TotalIteration = iteration
		sm.AddTokens(resp.TokensUsed)
		sm.SetModel(resp.ModelUsed)

		resp = d.middleware.RunAfterModel(ctx, resp, iteration)
		d.hooks.AfterLLMCall(ctx, resp, iteration)

		snap := sm.Snapshot()
		d.emitEvent(eventCh, entity.DriverEvent{
			Type: entity.EventStepDone,
			StepInfo: &entity.StepInfo{
				Iteration:  iteration,
				TokensUsed: resp.TokensUsed,
				ModelUsed:  resp.ModelUsed,
				State:      string(snap.State),
			},
		})

		// 3. Zero ToolCalls — terminal reply.
		if len(resp.ToolCalls) == 0 {
			if compactionThisTurn {
				compactionThisTurn = false
				conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), resp.Content, nil))
				conv.AppendTurn(entity.NewUserTurn(newTurnID(), "continue"))
				continue
			}

			finalContent := d.finalizeContent(ctx, conv, resp, iteration, model, assistantTexts, eventCh)
			conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), finalContent, nil))
			result.FinalContent = finalContent
			_ = sm.Transition(StateComplete)
			d.hooks.OnComplete(ctx, result)
			d.emitEvent(eventCh, entity.DriverEvent{Type: entity.EventDone})
			return
		}

		if cleaned := strings.TrimSpace(StripReasoningTags(resp.Content)); cleaned != "" {
			assistantTexts = append(assistantTexts, cleaned)
		}

		// 4. One or more ToolCalls.
		assistantCalls := toEntityToolCalls(resp.ToolCalls)
		conv.AppendTurn(entity.NewAssistantTurn(newTurnID(), resp.Content, assistantCalls))

		_ = sm.Transition(StateToolExec)
		suspended, consecutiveAllFailed := d.dispatchToolCalls(ctx, conv, assistantCalls, mode, loopDetector, toolsUsedSet, sm, eventCh)
		if suspended != "" {
			_ = sm.Transition(StateAwaiting)
			result.PendingExecutionID = suspended
			d.emitEvent(eventCh, entity.DriverEvent{
				Type:     entity.EventApproval,
				ToolCall: &entity.ToolCallEvent{ExecutionID: suspended},
			})
			return
		}
		_ = consecutiveAllFailed

		if postCheck := contextGuard.Check(d.renderMessages(conv)); postCheck.NeedCompaction {
			d.logger.Warn("post-tool context overflow pending next iteration", zap.Float64("ratio", postCheck.Ratio))
			compactionThisTurn = true
		}
	}
}

// dispatchToolCalls executes each ToolCall strictly sequentially in the
// order emitted (§4.2: "Within a single conversation turn, tool calls are
// executed strictly sequentially"), appending a ToolResult turn for each.
// The first suspended call halts dispatch of the remainder in this batch
// (§4.1 step 4) and its execution_id is returned.
func (d *ConversationDriver) dispatchToolCalls(
	ctx context.Context,
	conv *entity.Conversation,
	calls []entity.ToolCall,
	mode valueobject.ApprovalMode,
	loopDetector *LoopDetector,
	toolsUsedSet map[string]bool,
	sm *StateMachine,
	eventCh chan<- entity.DriverEvent,
) (suspendedExecutionID string, allFailed bool) {
	allFailed = true
	anySeen := false

	for _, call := range calls {
		d.emitEvent(eventCh, entity.DriverEvent{
			Type:     entity.EventToolCall,
			ToolCall: &entity.ToolCallEvent{ID: call.ID, Name: call.Name, Arguments: call.Params},
		})

		if !d.hooks.BeforeToolCall(ctx, call.Name, call.Params) {
			d.logger.Info("tool call vetoed by hook", zap.String("tool", call.Name))
			result := entity.ToolResult{CallID: call.ID, Status: entity.StatusError, Payload: fmt.Sprintf("tool %q was blocked by policy", call.Name)}
			conv.AppendTurn(entity.NewToolResultTurn(newTurnID(), result))
			d.hooks.AfterToolCall(ctx, call.Name, result.Payload, false)
			anySeen = true
			continue
		}

		if prompt := loopDetector.RecordName(call.Name); prompt != "" {
			conv.AppendTurn(entity.NewUserTurn(newTurnID(), prompt))
		}
		if prompt := loopDetector.Record(call.Name, fingerprint(call.Params)); prompt != "" {
			conv.AppendTurn(entity.NewUserTurn(newTurnID(), prompt))
		}

		result := d.engine.Dispatch(ctx, conv.ID(), call, mode)

		conv.AppendTurn(entity.NewToolResultTurn(newTurnID(), result))
		d.hooks.AfterToolCall(ctx, call.Name, result.Payload, result.Status == entity.StatusOK)

		if result.Status == entity.StatusApprovalRequired {
			return result.ExecutionID, false
		}

		toolsUsedSet[call.Name] = true
		sm.RecordToolExec(call.Name)
		anySeen = true
		if result.Status == entity.StatusOK {
			allFailed = false
		}
	}

	if !anySeen {
		allFailed = false
	}
	return "", allFailed
}

// finalizeContent applies the fallback chain for an empty terminal reply:
// request an explicit summary, then fall back to the last narrated
// assistant text, matching the teacher's multi-step-completion behavior.
func (d *ConversationDriver) finalizeContent(ctx context.Context, conv *entity.Conversation, resp *LLMResponse, iteration int, model string, assistantTexts []string, eventCh chan<- entity.DriverEvent) string {
	finalContent := StripReasoningTags(resp.Content)
	if strings.TrimSpace(finalContent) != "" || iteration <= 1 {
		return finalContent
	}

	messages := d.renderMessages(conv)
	messages = append(messages, LLMMessage{Role: "user", Content: "Summarize, in plain language, the actions you just took and their outcome. Do not restate the plan — state only the result."})
	summaryReq := &LLMRequest{Messages: messages, Model: model, Temperature: d.config.Temperature}
	if summaryResp, err := d.callLLMWithRetry(ctx, summaryReq, iteration+1, eventCh); err == nil && strings.TrimSpace(summaryResp.Content) != "" {
		return StripReasoningTags(summaryResp.Content)
	}

	if len(assistantTexts) > 0 {
		return assistantTexts[len(assistantTexts)-1]
	}
	return finalContent
}

// renderMessages converts a Conversation's Turn log into the LLMMessage
// slice the LLM client understands, prefixing the fixed system prompt.
func (d *ConversationDriver) renderMessages(conv *entity.Conversation) []LLMMessage {
	messages := make([]LLMMessage, 0, conv.MessageCount()+1)
	if d.config.SystemPrompt != "" {
		messages = append(messages, LLMMessage{Role: "system", Content: d.config.SystemPrompt})
	}
	for _, t := range conv.Turns() {
		switch t.Kind {
		case entity.TurnUser:
			messages = append(messages, LLMMessage{Role: "user", Content: t.Text})
		case entity.TurnAssistant:
			messages = append(messages, LLMMessage{Role: "assistant", Content: t.Text, ToolCalls: toToolCallInfos(t.ToolCalls)})
		case entity.TurnToolResult:
			if t.ToolResult == nil {
				continue
			}
			messages = append(messages, LLMMessage{Role: "tool", Content: t.ToolResult.Payload, ToolCallID: t.ToolResult.CallID})
		}
	}
	return messages
}

func toToolCallInfos(calls []entity.ToolCall) []entity.ToolCallInfo {
	if len(calls) == 0 {
		return nil
	}
	infos := make([]entity.ToolCallInfo, len(calls))
	for i, c := range calls {
		infos[i] = entity.ToolCallInfo{ID: c.ID, Name: c.Name, Arguments: c.Params}
	}
	return infos
}

func toEntityToolCalls(infos []entity.ToolCallInfo) []entity.ToolCall {
	if len(infos) == 0 {
		return nil
	}
	calls := make([]entity.ToolCall, len(infos))
	for i, info := range infos {
		calls[i] = entity.ToolCall{ID: info.ID, Name: info.Name, Params: info.Arguments}
	}
	return calls
}

func statusFromBool(success bool) entity.ToolCallStatus {
	if success {
		return entity.StatusOK
	}
	return entity.StatusError
}

func fingerprint(params map[string]interface{}) string {
	if params == nil {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	return fmt.Sprintf("%v", keys) + fmt.Sprintf("%v", params)
}

// monotonicCounter hands out strictly increasing IDs across concurrently
// running turns without the collision risk of repeated time.Now() calls.
type monotonicCounter struct {
	n atomic.Int64
}

func newMonotonicCounter() *monotonicCounter { return &monotonicCounter{} }

func (c *monotonicCounter) next() int64 {
	return c.n.Add(1)
}

var turnCounter = newMonotonicCounter()

// newTurnID generates a turn identifier without relying on time.Now()'s
// monotonic read colliding across rapid-fire turns within the same loop.
func newTurnID() string {
	return fmt.Sprintf("turn_%d", turnCounter.next())
}

// emitEvent sends an event to the event channel with a timestamp, dropping
// it rather than blocking if the consumer has stopped reading.
func (d *ConversationDriver) emitEvent(ch chan<- entity.DriverEvent, event entity.DriverEvent) {
	event.Timestamp = time.Now()
	select {
	case ch <- event:
	default:
		d.logger.Warn("event channel full, dropping event", zap.String("type", string(event.Type)))
	}
}
