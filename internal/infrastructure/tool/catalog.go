package tool

import (
	"time"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
	"github.com/kubeagent/core/internal/infrastructure/k8s"
	"github.com/kubeagent/core/internal/infrastructure/sandbox"
)

// BuildCatalog registers every §4.3 tool — the Kubernetes Executor's 17
// kubectl_*/auto_*/analyze_*/predict_*/suggest_*/identify_*/scan_* tools
// plus the Shell Executor's execute_shell_command — into a fresh
// in-memory Registry.
func BuildCatalog(k8sClient *k8s.Client, box *sandbox.ProcessSandbox, shellTimeout time.Duration) (domaintool.Registry, error) {
	registry := domaintool.NewInMemoryRegistry()

	tools := []domaintool.Tool{
		k8s.NewGetPodsTool(k8sClient),
		k8s.NewGetPodLogsTool(k8sClient),
		k8s.NewDescribePodTool(k8sClient),
		k8s.NewGetDeploymentsTool(k8sClient),
		k8s.NewGetEventsTool(k8sClient),
		k8s.NewTopPodsTool(k8sClient),

		k8s.NewScaleDeploymentTool(k8sClient),
		k8s.NewDeletePodTool(k8sClient),
		k8s.NewAutoRestartPodTool(k8sClient),
		k8s.NewAutoScaleIfNeededTool(k8sClient),
		k8s.NewAutoFixSecurityIssueTool(k8sClient),

		k8s.NewAnalyzeResourceEfficiencyTool(k8sClient),
		k8s.NewPredictResourceExhaustionTool(k8sClient),
		k8s.NewSuggestPreemptiveActionsTool(k8sClient),
		k8s.NewIdentifyFailurePatternsTool(k8sClient),
		k8s.NewPredictScalingNeedsTool(k8sClient),
		k8s.NewScanPodSecurityTool(k8sClient),

		NewShellTool(box, shellTimeout),
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
