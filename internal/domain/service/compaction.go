package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// compactMessages summarizes older messages to reduce context length.
// Preserves:
//   - System prompt (first message, if present)
//   - Last N messages (recent context)
//
// Replaces the middle section with a summary message.
func (d *ConversationDriver) compactMessages(messages []LLMMessage) []LLMMessage {
	keepLast := d.config.CompactKeepLast
	if keepLast >= len(messages) {
		return messages
	}

	firstNonSystem := 0
	if len(messages) > 0 && messages[0].Role == "system" {
		firstNonSystem = 1
	}

	middleEnd := len(messages) - keepLast
	if middleEnd <= firstNonSystem {
		return messages
	}

	summary := d.tryLLMSummarize(messages[firstNonSystem:middleEnd])
	if summary == "" {
		summary = d.truncationSummary(messages[firstNonSystem:middleEnd])
	}

	compacted := make([]LLMMessage, 0, 2+keepLast)
	if firstNonSystem > 0 {
		compacted = append(compacted, messages[0])
	}
	compacted = append(compacted, LLMMessage{Role: "user", Content: summary})
	compacted = append(compacted, messages[len(messages)-keepLast:]...)

	d.logger.Info("context compaction completed",
		zap.Int("before", len(messages)),
		zap.Int("after", len(compacted)),
		zap.Int("compacted_messages", middleEnd-firstNonSystem),
	)

	return compacted
}

// tryLLMSummarize uses the LLM to generate a structured XML state_snapshot
// summary of older messages. Returns an empty string if summarization fails.
func (d *ConversationDriver) tryLLMSummarize(messages []LLMMessage) string {
	if d.llm == nil {
		return ""
	}

	var parts []string
	for _, msg := range messages {
		text := msg.TextContent()
		if text == "" {
			continue
		}
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		parts = append(parts, fmt.Sprintf("[%s]: %s", msg.Role, text))
	}
	if len(parts) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	const compressionPrompt = `You are a conversation state compressor. Analyze the following conversation and produce a structured XML snapshot.

Output format:
<state_snapshot>
  <task_description>Current task being executed</task_description>
  <progress>
    <completed>List of completed steps</completed>
    <in_progress>Current step</in_progress>
    <remaining>Remaining steps</remaining>
  </progress>
  <key_decisions>Key technical decisions and reasons</key_decisions>
  <modified_resources>
    <resource ref="kind/namespace/name" action="created|modified|deleted">Change summary</resource>
  </modified_resources>
  <current_context>
    <cluster_context>Current kube-context / namespace</cluster_context>
    <relevant_findings>Key findings and constraints</relevant_findings>
  </current_context>
</state_snapshot>

Rules:
- Preserve ALL unfinished task state
- Keep key decisions and reasons
- Drop verbose command output (only keep resource references + change summaries)
- Drop intermediate debugging`

	summaryReq := &LLMRequest{
		Model:       d.config.Model,
		Temperature: 0.2,
		MaxTokens:   800,
		Messages: []LLMMessage{
			{Role: "system", Content: compressionPrompt},
			{Role: "user", Content: fmt.Sprintf("Compress this conversation (%d messages):\n\n%s", len(parts), strings.Join(parts, "\n"))},
		},
	}

	resp, err := d.llm.Generate(ctx, summaryReq)
	if err != nil {
		d.logger.Debug("LLM summarization failed, using fallback", zap.Error(err))
		return ""
	}
	if resp.Content == "" {
		return ""
	}

	return fmt.Sprintf("[Context compacted — %d messages → state_snapshot]\n\n%s", len(messages), resp.Content)
}

// truncationSummary builds a simple truncation-based summary as a fallback
// when LLM-based summarization is unavailable or fails.
func (d *ConversationDriver) truncationSummary(messages []LLMMessage) string {
	var summaryParts []string
	toolCallCount := 0
	assistantMsgCount := 0
	userMsgCount := 0

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			assistantMsgCount++
			if msg.Content != "" {
				text := msg.Content
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				summaryParts = append(summaryParts, fmt.Sprintf("Assistant: %s", text))
			}
			toolCallCount += len(msg.ToolCalls)
		case "user":
			userMsgCount++
			text := msg.Content
			if len(text) > 100 {
				text = text[:100] + "..."
			}
			summaryParts = append(summaryParts, fmt.Sprintf("User: %s", text))
		case "tool":
			// Tool results are implicit from the tool calls that preceded them.
		}
	}

	return fmt.Sprintf(
		"[Context compacted: %d messages summarized (%d user, %d assistant, %d tool calls)]\n\n%s",
		len(messages), userMsgCount, assistantMsgCount, toolCallCount, strings.Join(summaryParts, "\n"),
	)
}
