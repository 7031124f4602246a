package k8s

import (
	"context"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// The six derived analytics Catalog tools (§4.3). All are safe —
// they only read primitives (pods, deployments, metrics, events, the
// in-memory metric history) and compose them into a judgment; they
// never mutate cluster state. analyze_resource_efficiency,
// scan_pod_security, predict_resource_exhaustion,
// suggest_preemptive_actions, identify_failure_patterns,
// predict_scaling_needs.

const (
	underutilizedThreshold = 0.20 // below this fraction of limit, flag overprovisioned
	overutilizedThreshold  = 0.80 // above this fraction of limit, flag underprovisioned
	exhaustionTrendWarn    = 0.30 // +30% trend slope triggers an exhaustion warning
)

type analyzeResourceEfficiencyTool struct{ client *Client }

func NewAnalyzeResourceEfficiencyTool(c *Client) domaintool.Tool {
	return &analyzeResourceEfficiencyTool{client: c}
}

func (t *analyzeResourceEfficiencyTool) Name() string         { return "analyze_resource_efficiency" }
func (t *analyzeResourceEfficiencyTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *analyzeResourceEfficiencyTool) Description() string {
	return "Compare live pod CPU usage against CPU limits to flag over- and under-provisioned pods; memory usage is not compared."
}
func (t *analyzeResourceEfficiencyTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("namespace to analyze"),
	})
}

func (t *analyzeResourceEfficiencyTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))

	pods, err := t.client.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	usage, err := t.client.MetricsClientset.MetricsV1beta1().PodMetricses(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	usageByName := make(map[string]int64, len(usage.Items))
	memByName := make(map[string]int64, len(usage.Items))
	for _, pm := range usage.Items {
		var cpuMilli, memBytes int64
		for _, c := range pm.Containers {
			cpuMilli += c.Usage.Cpu().MilliValue()
			memBytes += c.Usage.Memory().Value()
		}
		usageByName[pm.Name] = cpuMilli
		memByName[pm.Name] = memBytes
	}

	var b strings.Builder
	overprovisioned, underprovisioned := 0, 0
	for _, p := range pods.Items {
		var limitMilli int64
		for _, c := range p.Spec.Containers {
			limitMilli += c.Resources.Limits.Cpu().MilliValue()
		}
		if limitMilli == 0 {
			continue
		}
		ratio := float64(usageByName[p.Name]) / float64(limitMilli)
		switch {
		case ratio < underutilizedThreshold:
			overprovisioned++
			fmt.Fprintf(&b, "  %s: overprovisioned (using %.0f%% of CPU limit)\n", p.Name, ratio*100)
		case ratio > overutilizedThreshold:
			underprovisioned++
			fmt.Fprintf(&b, "  %s: underprovisioned (using %.0f%% of CPU limit)\n", p.Name, ratio*100)
		}
	}
	fmt.Fprintf(&b, "%d overprovisioned, %d underprovisioned pod(s) in %s\n", overprovisioned, underprovisioned, ns)
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{
		"overprovisioned":  overprovisioned,
		"underprovisioned": underprovisioned,
	}}, nil
}

type predictResourceExhaustionTool struct{ client *Client }

func NewPredictResourceExhaustionTool(c *Client) domaintool.Tool {
	return &predictResourceExhaustionTool{client: c}
}

func (t *predictResourceExhaustionTool) Name() string         { return "predict_resource_exhaustion" }
func (t *predictResourceExhaustionTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *predictResourceExhaustionTool) Description() string {
	return "Project whether a pod is trending toward resource exhaustion from its recent usage history."
}
func (t *predictResourceExhaustionTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("pod namespace"),
		"pod":       stringProp("pod name"),
	}, "pod")
}

func (t *predictResourceExhaustionTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	pod := stringArg(args, "pod", "")
	if pod == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}

	key := ns + "/" + pod
	cpuSlope, cpuOK := t.client.History.CPUTrendSlope(key)
	memSlope, memOK := t.client.History.MemTrendSlope(key)

	if !cpuOK && !memOK {
		return &domaintool.Result{
			Output:  fmt.Sprintf("not enough history for %s yet; call kubectl_top_pods a few times first", key),
			Success: true,
		}, nil
	}

	var b strings.Builder
	warn := false
	if cpuOK {
		fmt.Fprintf(&b, "CPU trend: %+.0f%%\n", cpuSlope*100)
		if cpuSlope > exhaustionTrendWarn {
			warn = true
			b.WriteString("  warning: CPU usage trending toward exhaustion\n")
		}
	}
	if memOK {
		fmt.Fprintf(&b, "Memory trend: %+.0f%%\n", memSlope*100)
		if memSlope > exhaustionTrendWarn {
			warn = true
			b.WriteString("  warning: memory usage trending toward exhaustion\n")
		}
	}
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"warning": warn}}, nil
}

type suggestPreemptiveActionsTool struct{ client *Client }

func NewSuggestPreemptiveActionsTool(c *Client) domaintool.Tool {
	return &suggestPreemptiveActionsTool{client: c}
}

func (t *suggestPreemptiveActionsTool) Name() string         { return "suggest_preemptive_actions" }
func (t *suggestPreemptiveActionsTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *suggestPreemptiveActionsTool) Description() string {
	return "Suggest preemptive scale or restart actions for a pod based on its resource usage trend."
}
func (t *suggestPreemptiveActionsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("pod namespace"),
		"pod":       stringProp("pod name"),
	}, "pod")
}

func (t *suggestPreemptiveActionsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	pod := stringArg(args, "pod", "")
	if pod == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}

	key := ns + "/" + pod
	cpuSlope, cpuOK := t.client.History.CPUTrendSlope(key)

	var suggestion string
	switch {
	case !cpuOK:
		suggestion = "insufficient history; gather more kubectl_top_pods samples before acting"
	case cpuSlope > exhaustionTrendWarn:
		suggestion = "scale the owning deployment up, or restart the pod if a leak is suspected"
	case cpuSlope < -exhaustionTrendWarn:
		suggestion = "consider scaling the owning deployment down to reclaim idle capacity"
	default:
		suggestion = "no action needed; usage trend is stable"
	}
	return &domaintool.Result{Output: suggestion, Success: true}, nil
}

type identifyFailurePatternsTool struct{ client *Client }

func NewIdentifyFailurePatternsTool(c *Client) domaintool.Tool {
	return &identifyFailurePatternsTool{client: c}
}

func (t *identifyFailurePatternsTool) Name() string         { return "identify_failure_patterns" }
func (t *identifyFailurePatternsTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *identifyFailurePatternsTool) Description() string {
	return "Scan namespace events for recurring failure signatures (CrashLoopBackOff, OOMKilled, FailedScheduling)."
}
func (t *identifyFailurePatternsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("namespace to scan"),
	})
}

var failureSignatures = []string{"CrashLoopBackOff", "OOMKilled", "FailedScheduling", "BackOff", "Unhealthy"}

func (t *identifyFailurePatternsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	events, err := t.client.Clientset.CoreV1().Events(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	counts := make(map[string]int)
	for _, e := range events.Items {
		for _, sig := range failureSignatures {
			if strings.Contains(e.Reason, sig) || strings.Contains(e.Message, sig) {
				counts[sig]++
			}
		}
	}

	if len(counts) == 0 {
		return &domaintool.Result{Output: fmt.Sprintf("no known failure patterns found in %s", ns), Success: true}, nil
	}

	var b strings.Builder
	for sig, n := range counts {
		fmt.Fprintf(&b, "  %s: %d occurrence(s)\n", sig, n)
	}
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"patterns": counts}}, nil
}

type predictScalingNeedsTool struct{ client *Client }

func NewPredictScalingNeedsTool(c *Client) domaintool.Tool { return &predictScalingNeedsTool{client: c} }

func (t *predictScalingNeedsTool) Name() string         { return "predict_scaling_needs" }
func (t *predictScalingNeedsTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *predictScalingNeedsTool) Description() string {
	return "Recommend a replica delta for a deployment from its pods' aggregate resource usage trend."
}
func (t *predictScalingNeedsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":  stringProp("deployment namespace"),
		"deployment": stringProp("deployment name"),
	}, "deployment")
}

func (t *predictScalingNeedsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "deployment", "")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "deployment is required"}, nil
	}

	dep, err := t.client.Clientset.AppsV1().Deployments(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	selector := labels.Set(dep.Spec.Selector.MatchLabels).String()
	pods, err := t.client.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var trending int
	for _, p := range pods.Items {
		if slope, ok := t.client.History.CPUTrendSlope(ns + "/" + p.Name); ok && slope > exhaustionTrendWarn {
			trending++
		}
	}

	current := int32(0)
	if dep.Spec.Replicas != nil {
		current = *dep.Spec.Replicas
	}

	if trending == 0 {
		return &domaintool.Result{
			Output:  fmt.Sprintf("%s/%s at %d replicas: no scale-up signal", ns, name, current),
			Success: true,
		}, nil
	}
	return &domaintool.Result{
		Output:  fmt.Sprintf("%s/%s at %d replicas: %d/%d pods trending up, consider scaling to %d", ns, name, current, trending, len(pods.Items), current+int32(trending)),
		Success: true,
	}, nil
}

type scanPodSecurityTool struct{ client *Client }

func NewScanPodSecurityTool(c *Client) domaintool.Tool { return &scanPodSecurityTool{client: c} }

func (t *scanPodSecurityTool) Name() string         { return "scan_pod_security" }
func (t *scanPodSecurityTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *scanPodSecurityTool) Description() string {
	return "Scan pods in a namespace for root containers, missing resource limits, privileged mode, dangerous capabilities, and host networking."
}
func (t *scanPodSecurityTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("namespace to scan"),
	})
}

var dangerousCapabilities = map[string]bool{
	"SYS_ADMIN": true, "NET_ADMIN": true, "SYS_PTRACE": true, "SYS_MODULE": true,
}

func (t *scanPodSecurityTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	pods, err := t.client.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var b strings.Builder
	findings := 0
	for _, p := range pods.Items {
		var issues []string
		if p.Spec.HostNetwork {
			issues = append(issues, "host networking enabled")
		}
		for _, c := range p.Spec.Containers {
			if c.Resources.Limits.Cpu().IsZero() && c.Resources.Limits.Memory().IsZero() {
				issues = append(issues, fmt.Sprintf("container %s has no resource limits", c.Name))
			}
			if c.SecurityContext != nil {
				if c.SecurityContext.Privileged != nil && *c.SecurityContext.Privileged {
					issues = append(issues, fmt.Sprintf("container %s runs privileged", c.Name))
				}
				if c.SecurityContext.RunAsUser != nil && *c.SecurityContext.RunAsUser == 0 {
					issues = append(issues, fmt.Sprintf("container %s runs as root", c.Name))
				}
				if c.SecurityContext.Capabilities != nil {
					for _, cap := range c.SecurityContext.Capabilities.Add {
						if dangerousCapabilities[string(cap)] {
							issues = append(issues, fmt.Sprintf("container %s adds dangerous capability %s", c.Name, cap))
						}
					}
				}
			}
		}
		if len(issues) > 0 {
			findings++
			fmt.Fprintf(&b, "%s:\n", p.Name)
			for _, issue := range issues {
				fmt.Fprintf(&b, "  - %s\n", issue)
			}
		}
	}

	if findings == 0 {
		return &domaintool.Result{Output: fmt.Sprintf("no security issues found in %s", ns), Success: true}, nil
	}
	b.WriteString(fmt.Sprintf("%d pod(s) with findings\n", findings))
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"pods_with_findings": findings}}, nil
}
