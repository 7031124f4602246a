package application

import (
	"context"
	"fmt"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// toolBridge adapts domaintool.Registry to service.ToolExecutor, so the
// Conversation Driver and Execution Engine can discover and run Catalog
// tools through the shared registry without depending on how the Catalog
// itself is assembled (Kubernetes executor, shell sandbox, ...).
type toolBridge struct {
	registry domaintool.Registry
}

func newToolBridge(registry domaintool.Registry) *toolBridge {
	return &toolBridge{registry: registry}
}

// Execute implements service.ToolExecutor.
func (b *toolBridge) Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error) {
	t, ok := b.registry.Get(name)
	if !ok {
		return &domaintool.Result{
			Output:  fmt.Sprintf("tool '%s' not found", name),
			Success: false,
			Error:   fmt.Sprintf("tool '%s' not registered", name),
		}, nil
	}
	return t.Execute(ctx, args)
}

// GetDefinitions implements service.ToolExecutor.
func (b *toolBridge) GetDefinitions() []domaintool.Definition {
	return b.registry.List()
}

// GetToolKind implements service.ToolExecutor.
func (b *toolBridge) GetToolKind(name string) domaintool.Kind {
	t, ok := b.registry.Get(name)
	if !ok {
		return domaintool.KindExecute
	}
	return t.Kind()
}

// HasTool implements service.ToolExecutor.
func (b *toolBridge) HasTool(name string) bool {
	return b.registry.Has(name)
}
