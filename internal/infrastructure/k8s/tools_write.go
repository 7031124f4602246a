package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// The dangerous, mutating Catalog tools (§4.3): kubectl_scale_deployment,
// kubectl_delete_pod, auto_restart_pod, auto_scale_if_needed,
// auto_fix_security_issue. Every one of these routes through the
// Execution Engine's approval gate before Execute ever runs.

type scaleDeploymentTool struct{ client *Client }

func NewScaleDeploymentTool(c *Client) domaintool.Tool { return &scaleDeploymentTool{client: c} }

func (t *scaleDeploymentTool) Name() string         { return "kubectl_scale_deployment" }
func (t *scaleDeploymentTool) Kind() domaintool.Kind { return domaintool.KindScale }
func (t *scaleDeploymentTool) Description() string {
	return "Set a deployment's replica count."
}
func (t *scaleDeploymentTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":  stringProp("deployment namespace"),
		"deployment": stringProp("deployment name"),
		"replicas":   intProp("target replica count"),
	}, "deployment", "replicas")
}

func (t *scaleDeploymentTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "deployment", "")
	replicas := int32(intArg(args, "replicas", -1))
	if name == "" || replicas < 0 {
		return &domaintool.Result{Success: false, Error: "deployment and a non-negative replicas are required"}, nil
	}

	deployments := t.client.Clientset.AppsV1().Deployments(ns)
	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	previous := int32(0)
	if dep.Spec.Replicas != nil {
		previous = *dep.Spec.Replicas
	}
	dep.Spec.Replicas = &replicas

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	return &domaintool.Result{
		Output:  fmt.Sprintf("scaled %s/%s from %d to %d replicas", ns, name, previous, replicas),
		Success: true,
		Metadata: map[string]interface{}{
			"previous_replicas": previous,
			"new_replicas":      replicas,
		},
	}, nil
}

type deletePodTool struct{ client *Client }

func NewDeletePodTool(c *Client) domaintool.Tool { return &deletePodTool{client: c} }

func (t *deletePodTool) Name() string         { return "kubectl_delete_pod" }
func (t *deletePodTool) Kind() domaintool.Kind { return domaintool.KindDelete }
func (t *deletePodTool) Description() string {
	return "Delete a pod. A pod owned by a controller is recreated automatically."
}
func (t *deletePodTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("pod namespace"),
		"pod":       stringProp("pod name"),
	}, "pod")
}

func (t *deletePodTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "pod", "")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}

	if err := t.client.Clientset.CoreV1().Pods(ns).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: fmt.Sprintf("deleted pod %s/%s", ns, name), Success: true}, nil
}

type autoRestartPodTool struct{ client *Client }

func NewAutoRestartPodTool(c *Client) domaintool.Tool { return &autoRestartPodTool{client: c} }

func (t *autoRestartPodTool) Name() string         { return "auto_restart_pod" }
func (t *autoRestartPodTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *autoRestartPodTool) Description() string {
	return "Restart an unhealthy pod by deleting it, relying on its controller to recreate it."
}
func (t *autoRestartPodTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("pod namespace"),
		"pod":       stringProp("pod name"),
		"reason":    stringProp("why the restart was triggered"),
	}, "pod")
}

func (t *autoRestartPodTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "pod", "")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}

	if err := t.client.Clientset.CoreV1().Pods(ns).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	reason := stringArg(args, "reason", "unspecified")
	return &domaintool.Result{
		Output:  fmt.Sprintf("restarted pod %s/%s (reason: %s)", ns, name, reason),
		Success: true,
	}, nil
}

type autoScaleIfNeededTool struct{ client *Client }

func NewAutoScaleIfNeededTool(c *Client) domaintool.Tool { return &autoScaleIfNeededTool{client: c} }

func (t *autoScaleIfNeededTool) Name() string         { return "auto_scale_if_needed" }
func (t *autoScaleIfNeededTool) Kind() domaintool.Kind { return domaintool.KindScale }
func (t *autoScaleIfNeededTool) Description() string {
	return "Scale a deployment to a target replica count chosen from current resource pressure."
}
func (t *autoScaleIfNeededTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":       stringProp("deployment namespace"),
		"deployment":      stringProp("deployment name"),
		"target_replicas": intProp("replica count to scale to"),
	}, "deployment", "target_replicas")
}

func (t *autoScaleIfNeededTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "deployment", "")
	target := int32(intArg(args, "target_replicas", -1))
	if name == "" || target < 0 {
		return &domaintool.Result{Success: false, Error: "deployment and a non-negative target_replicas are required"}, nil
	}

	deployments := t.client.Clientset.AppsV1().Deployments(ns)
	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	previous := int32(0)
	if dep.Spec.Replicas != nil {
		previous = *dep.Spec.Replicas
	}
	dep.Spec.Replicas = &target
	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{
		Output:  fmt.Sprintf("auto-scaled %s/%s from %d to %d replicas", ns, name, previous, target),
		Success: true,
	}, nil
}

type autoFixSecurityIssueTool struct{ client *Client }

func NewAutoFixSecurityIssueTool(c *Client) domaintool.Tool { return &autoFixSecurityIssueTool{client: c} }

func (t *autoFixSecurityIssueTool) Name() string         { return "auto_fix_security_issue" }
func (t *autoFixSecurityIssueTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *autoFixSecurityIssueTool) Description() string {
	return "Patch a deployment's pod template to drop privileged mode and disallow privilege escalation."
}
func (t *autoFixSecurityIssueTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":  stringProp("deployment namespace"),
		"deployment": stringProp("deployment name"),
	}, "deployment")
}

func (t *autoFixSecurityIssueTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "deployment", "")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "deployment is required"}, nil
	}

	deployments := t.client.Clientset.AppsV1().Deployments(ns)
	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	fixed := 0
	falseVal := false
	for i := range dep.Spec.Template.Spec.Containers {
		c := &dep.Spec.Template.Spec.Containers[i]
		if c.SecurityContext == nil {
			c.SecurityContext = &corev1.SecurityContext{}
		}
		if c.SecurityContext.Privileged != nil && *c.SecurityContext.Privileged {
			c.SecurityContext.Privileged = &falseVal
			fixed++
		}
		if c.SecurityContext.AllowPrivilegeEscalation == nil || *c.SecurityContext.AllowPrivilegeEscalation {
			c.SecurityContext.AllowPrivilegeEscalation = &falseVal
			fixed++
		}
	}

	if fixed == 0 {
		return &domaintool.Result{Output: fmt.Sprintf("%s/%s already compliant", ns, name), Success: true}, nil
	}

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{
		Output:  fmt.Sprintf("patched %d security setting(s) on %s/%s", fixed, ns, name),
		Success: true,
	}, nil
}
