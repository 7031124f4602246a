package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubeagent/core/internal/application"
	"github.com/kubeagent/core/internal/application/usecase"
	"github.com/kubeagent/core/internal/domain/valueobject"
	"github.com/kubeagent/core/internal/infrastructure/config"
	"github.com/kubeagent/core/internal/infrastructure/logger"
)

const ctlVersion = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kubeagentctl",
		Short: "kubeagentctl — one-shot operator CLI for kubeagent",
	}

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "send one chat message and print the agent's reply",
		Args:  cobra.ExactArgs(1),
		RunE:  runChat,
	}
	chatCmd.Flags().String("conversation", "", "existing conversation ID to continue")
	chatCmd.Flags().String("mode", "", "approval mode override: strict, normal, or auto")
	chatCmd.Flags().String("model", "", "model override")
	rootCmd.AddCommand(chatCmd)

	approveCmd := &cobra.Command{
		Use:   "approve [execution-id]",
		Short: "approve a pending dangerous tool call and resume its conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecide(true),
	}
	rootCmd.AddCommand(approveCmd)

	rejectCmd := &cobra.Command{
		Use:   "reject [execution-id]",
		Short: "reject a pending dangerous tool call and resume its conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecide(false),
	}
	rootCmd.AddCommand(rejectCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kubeagentctl v%s\n", ctlVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newCLIApp loads config and boots an App against in-memory storage only
// (NewAppCLI) — a one-shot invocation never needs the durable audit
// database or a listening HTTP server.
func newCLIApp() (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      "warn",
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return application.NewAppCLI(cfg, log)
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := newCLIApp()
	if err != nil {
		return err
	}
	defer app.Logger().Sync()

	conversationID, _ := cmd.Flags().GetString("conversation")
	modeFlag, _ := cmd.Flags().GetString("mode")
	model, _ := cmd.Flags().GetString("model")

	mode := app.DefaultApprovalMode()
	if modeFlag != "" {
		candidate := valueobject.ApprovalMode(modeFlag)
		if !candidate.IsValid() {
			return fmt.Errorf("invalid approval mode %q: want strict, normal, or auto", modeFlag)
		}
		mode = candidate
	}

	result, err := app.ChatUseCase().Execute(context.Background(), usecase.ChatCommand{
		ConversationID: conversationID,
		Message:        args[0],
		ApprovalMode:   mode,
		Model:          model,
	})
	if err != nil {
		return err
	}

	printChatResult(result)
	return nil
}

func runDecide(approved bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newCLIApp()
		if err != nil {
			return err
		}
		defer app.Logger().Sync()

		result, err := app.ApprovalUseCase().Execute(context.Background(), usecase.ApproveCommand{
			ExecutionID:  args[0],
			Approved:     approved,
			ApprovalMode: app.DefaultApprovalMode(),
		})
		if err != nil {
			return err
		}

		printChatResult(result)
		return nil
	}
}

func printChatResult(result *usecase.ChatResult) {
	fmt.Printf("conversation: %s\n", result.ConversationID)
	if result.ResponseText != "" {
		fmt.Printf("\n%s\n", result.ResponseText)
	}
	for _, use := range result.ToolUses {
		fmt.Printf("\n[tool_call] %s %v\n", use.Name, use.Arguments)
	}
	for _, outcome := range result.ToolResults {
		fmt.Printf("[tool_result] %s: %s\n", outcome.Status, outcome.Payload)
	}
	if result.PendingExecutionID != "" {
		fmt.Printf("\nawaiting approval: execution %s (kubeagentctl approve %s)\n", result.PendingExecutionID, result.PendingExecutionID)
	}
}
