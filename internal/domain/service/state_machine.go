package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DriverState represents the discrete states of a single conversation turn
// as it moves through the Conversation Driver (§4.1).
type DriverState string

const (
	StateIdle        DriverState = "idle"         // waiting for input
	StateStreaming   DriverState = "streaming"     // awaiting LLM response
	StateToolExec    DriverState = "tool_exec"     // dispatching tool calls to the Execution Engine
	StateAwaiting    DriverState = "awaiting"      // suspended on a call awaiting approval
	StateCompacting  DriverState = "compacting"    // summarizing old turns to relieve context pressure
	StateRetrying    DriverState = "retrying"      // waiting between LLM retry attempts
	StateComplete    DriverState = "complete"      // turn finished successfully
	StateError       DriverState = "error"         // terminated with an unrecoverable error
	StateAborted     DriverState = "aborted"       // cancelled by caller or context
)

// validTransitions defines the allowed state transitions.
var validTransitions = map[DriverState]map[DriverState]bool{
	StateIdle: {
		StateStreaming: true,
	},
	StateStreaming: {
		StateToolExec:   true,
		StateCompacting: true,
		StateRetrying:   true,
		StateComplete:   true,
		StateError:      true,
		StateAborted:    true,
	},
	StateToolExec: {
		StateStreaming:  true, // next LLM call after tool result
		StateAwaiting:   true, // suspended on approval
		StateCompacting: true,
		StateError:      true,
		StateAborted:    true,
	},
	StateAwaiting: {
		StateToolExec: true, // resumed once the pending execution is decided
		StateError:    true,
		StateAborted:  true,
	},
	StateCompacting: {
		StateStreaming: true,
		StateError:     true,
		StateAborted:   true,
	},
	StateRetrying: {
		StateStreaming: true,
		StateError:     true,
		StateAborted:   true,
	},
	// Terminal states — no transitions out.
	StateComplete: {},
	StateError:    {},
	StateAborted:  {},
}

// StateSnapshot captures the driver's runtime state at a point in time.
type StateSnapshot struct {
	State         DriverState   `json:"state"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	TokensUsed    int           `json:"tokens_used"`
	ToolsExecuted int           `json:"tools_executed"`
	RetryCount    int           `json:"retry_count"`
	ErrorCount    int           `json:"error_count"`
	Elapsed       time.Duration `json:"elapsed"`
	ModelUsed     string        `json:"model_used,omitempty"`
	LastTool      string        `json:"last_tool,omitempty"`
}

// StateMachine manages state transitions for a single conversation turn.
// Thread-safe — multiple goroutines can read state concurrently.
type StateMachine struct {
	mu            sync.RWMutex
	state         DriverState
	iteration     int
	maxIterations int
	tokensUsed    int
	toolsExecuted int
	retryCount    int
	errorCount    int
	startTime     time.Time
	modelUsed     string
	lastTool      string
	logger        *zap.Logger

	listeners []func(from, to DriverState, snap StateSnapshot)
}

// NewStateMachine creates a state machine starting in Idle.
// maxIterations is the hard cap on LLM round-trips within one turn (§4.1: 16).
func NewStateMachine(maxIterations int, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		state:         StateIdle,
		maxIterations: maxIterations,
		startTime:     time.Now(),
		logger:        logger,
	}
}

// State returns the current state.
func (sm *StateMachine) State() DriverState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Snapshot returns a full copy of the current runtime state.
func (sm *StateMachine) Snapshot() StateSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *StateMachine) snapshotLocked() StateSnapshot {
	return StateSnapshot{
		State:         sm.state,
		Iteration:     sm.iteration,
		MaxIterations: sm.maxIterations,
		TokensUsed:    sm.tokensUsed,
		ToolsExecuted: sm.toolsExecuted,
		RetryCount:    sm.retryCount,
		ErrorCount:    sm.errorCount,
		Elapsed:       time.Since(sm.startTime),
		ModelUsed:     sm.modelUsed,
		LastTool:      sm.lastTool,
	}
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed by the state table.
func (sm *StateMachine) Transition(to DriverState) error {
	sm.mu.Lock()
	from := sm.state

	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		sm.mu.Unlock()
		err := fmt.Errorf("invalid state transition: %s -> %s", from, to)
		sm.logger.Error("state machine violation", zap.Error(err))
		return err
	}

	sm.state = to
	snap := sm.snapshotLocked()
	listeners := make([]func(from, to DriverState, snap StateSnapshot), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	sm.logger.Debug("state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("iteration", snap.Iteration),
	)

	for _, fn := range listeners {
		fn(from, to, snap)
	}

	return nil
}

// OnTransition registers a listener called on every state change.
func (sm *StateMachine) OnTransition(fn func(from, to DriverState, snap StateSnapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// --- Mutation helpers (all thread-safe) ---

func (sm *StateMachine) SetIteration(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.iteration = n
}

func (sm *StateMachine) AddTokens(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tokensUsed += n
}

func (sm *StateMachine) RecordToolExec(toolName string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.toolsExecuted++
	sm.lastTool = toolName
}

func (sm *StateMachine) RecordRetry() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.retryCount++
}

func (sm *StateMachine) RecordError() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.errorCount++
}

func (sm *StateMachine) SetModel(model string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.modelUsed = model
}

// IsTerminal returns true if the state machine is in a terminal state.
func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case StateComplete, StateError, StateAborted:
		return true
	}
	return false
}

// ReachedIterationCap reports whether the iteration counter has hit the
// configured maximum (§4.1, §8 invariant I-MAXITER).
func (sm *StateMachine) ReachedIterationCap() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.maxIterations > 0 && sm.iteration >= sm.maxIterations
}
