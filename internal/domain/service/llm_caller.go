package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kubeagent/core/internal/domain/entity"
	"go.uber.org/zap"
)

// callLLMWithRetry calls the LLM with automatic retry and exponential backoff.
// On transient errors (timeout, network), retries up to MaxRetries times.
// Emits retry events so the caller can surface progress to a user.
func (d *ConversationDriver) callLLMWithRetry(ctx context.Context, req *LLMRequest, iteration int, eventCh chan<- entity.DriverEvent) (*LLMResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := d.config.RetryBaseWait * (1 << (attempt - 1))

			d.logger.Info("retrying LLM call",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", d.config.MaxRetries),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)

			d.emitEvent(eventCh, entity.DriverEvent{
				Type:    entity.EventThinking,
				Content: fmt.Sprintf("LLM call failed, retrying (%d/%d) in %s...", attempt, d.config.MaxRetries, wait),
			})

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		deltaCh := make(chan StreamChunk, 128)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for chunk := range deltaCh {
				if chunk.DeltaText != "" {
					d.emitEvent(eventCh, entity.DriverEvent{
						Type:    entity.EventTextDelta,
						Content: chunk.DeltaText,
					})
				}
			}
		}()

		callCtx, callCancel := context.WithTimeout(ctx, 3*time.Minute)

		resp, err := d.llm.GenerateStream(callCtx, req, deltaCh)

		callCancel()
		close(deltaCh)
		<-done

		if err == nil {
			if attempt > 0 {
				d.logger.Info("LLM retry succeeded", zap.Int("attempt", attempt), zap.Int("iteration", iteration))
			}
			return resp, nil
		}

		lastErr = err
		d.logger.Warn("LLM streaming call failed", zap.Int("attempt", attempt), zap.Int("iteration", iteration), zap.Error(err))

		if !isRetryableError(err) {
			return nil, fmt.Errorf("non-retryable LLM error: %w", err)
		}
	}

	return nil, fmt.Errorf("LLM call failed after %d retries: %w", d.config.MaxRetries, lastErr)
}

// isRetryableError determines if an LLM error is worth retrying.
// Retryable: timeout, connection reset, 5xx server errors.
// Non-retryable: 401 auth, 400 bad request, context cancelled.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"context canceled",
		"unauthorized",
		"invalid api key",
		"bad request",
		"invalid argument",
		"model not found",
	}
	for _, pattern := range nonRetryable {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"eof",
		"server error",
		"502", "503", "504", "529",
		"rate limit",
		"too many requests",
		"overloaded",
		"temporarily unavailable",
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return true
}
