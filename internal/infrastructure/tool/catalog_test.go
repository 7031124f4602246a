package tool

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/infrastructure/k8s"
	"github.com/kubeagent/core/internal/infrastructure/sandbox"
)

func TestBuildCatalog_RegistersAllEighteenTools(t *testing.T) {
	k8sClient := &k8s.Client{History: k8s.NewMetricHistory(20)}

	cfg := sandbox.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	box, err := sandbox.NewProcessSandbox(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build sandbox: %v", err)
	}

	registry, err := BuildCatalog(k8sClient, box, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tools := registry.List()
	if len(tools) != 18 {
		t.Fatalf("expected 18 catalog tools, got %d", len(tools))
	}

	if !registry.Has("execute_shell_command") {
		t.Fatal("expected execute_shell_command to be registered")
	}
	if !registry.Has("kubectl_get_pods") {
		t.Fatal("expected kubectl_get_pods to be registered")
	}
	if !registry.Has("kubectl_scale_deployment") {
		t.Fatal("expected kubectl_scale_deployment to be registered")
	}
}

func TestBuildCatalog_NoDuplicateNames(t *testing.T) {
	k8sClient := &k8s.Client{History: k8s.NewMetricHistory(20)}
	cfg := sandbox.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	box, err := sandbox.NewProcessSandbox(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build sandbox: %v", err)
	}

	registry, err := BuildCatalog(k8sClient, box, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, def := range registry.List() {
		if seen[def.Name] {
			t.Fatalf("duplicate tool name %q in catalog", def.Name)
		}
		seen[def.Name] = true
	}
}
