package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// The six safe, read-only Catalog tools (§4.3): kubectl_get_pods,
// kubectl_get_pod_logs, kubectl_describe_pod, kubectl_get_deployments,
// kubectl_get_events, kubectl_top_pods.

type getPodsTool struct{ client *Client }

func NewGetPodsTool(c *Client) domaintool.Tool { return &getPodsTool{client: c} }

func (t *getPodsTool) Name() string        { return "kubectl_get_pods" }
func (t *getPodsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *getPodsTool) Description() string {
	return "List pods in a namespace, with their phase and restart counts."
}
func (t *getPodsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":      stringProp("namespace to list pods from (defaults to the configured namespace)"),
		"label_selector": stringProp("label selector to filter pods, e.g. app=web"),
	})
}

func (t *getPodsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	listOpts := metav1.ListOptions{LabelSelector: stringArg(args, "label_selector", "")}
	list, err := t.client.Clientset.CoreV1().Pods(ns).List(ctx, listOpts)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d pod(s) in %s:\n", len(list.Items), ns)
	for _, p := range list.Items {
		restarts := int32(0)
		for _, cs := range p.Status.ContainerStatuses {
			restarts += cs.RestartCount
		}
		fmt.Fprintf(&b, "  %s  phase=%s  restarts=%d  node=%s\n", p.Name, p.Status.Phase, restarts, p.Spec.NodeName)
	}
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"count": len(list.Items)}}, nil
}

type getPodLogsTool struct{ client *Client }

func NewGetPodLogsTool(c *Client) domaintool.Tool { return &getPodLogsTool{client: c} }

func (t *getPodLogsTool) Name() string        { return "kubectl_get_pod_logs" }
func (t *getPodLogsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *getPodLogsTool) Description() string {
	return "Fetch recent log lines from a pod's container."
}
func (t *getPodLogsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":  stringProp("pod namespace"),
		"pod":        stringProp("pod name"),
		"container":  stringProp("container name (defaults to the pod's only or first container)"),
		"tail_lines": intProp("number of trailing lines to fetch (default 100)"),
	}, "pod")
}

func (t *getPodLogsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	pod := stringArg(args, "pod", "")
	if pod == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}
	tail := int64(intArg(args, "tail_lines", 100))

	opts := &corev1.PodLogOptions{TailLines: &tail}
	if container := stringArg(args, "container", ""); container != "" {
		opts.Container = container
	}

	raw, err := t.client.Clientset.CoreV1().Pods(ns).GetLogs(pod, opts).DoRaw(ctx)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: string(raw), Success: true}, nil
}

type describePodTool struct{ client *Client }

func NewDescribePodTool(c *Client) domaintool.Tool { return &describePodTool{client: c} }

func (t *describePodTool) Name() string        { return "kubectl_describe_pod" }
func (t *describePodTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *describePodTool) Description() string {
	return "Describe a pod: status, conditions, container states and resource requests/limits."
}
func (t *describePodTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("pod namespace"),
		"pod":       stringProp("pod name"),
	}, "pod")
}

func (t *describePodTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	name := stringArg(args, "pod", "")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "pod is required"}, nil
	}

	pod, err := t.client.Clientset.CoreV1().Pods(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pod %s/%s\n", pod.Namespace, pod.Name)
	fmt.Fprintf(&b, "Phase: %s   Node: %s   PodIP: %s\n", pod.Status.Phase, pod.Spec.NodeName, pod.Status.PodIP)
	for _, cond := range pod.Status.Conditions {
		fmt.Fprintf(&b, "Condition: %s=%s (%s)\n", cond.Type, cond.Status, cond.Reason)
	}
	for _, c := range pod.Spec.Containers {
		fmt.Fprintf(&b, "Container %s: image=%s requests=%v limits=%v\n",
			c.Name, c.Image, c.Resources.Requests, c.Resources.Limits)
	}
	for _, cs := range pod.Status.ContainerStatuses {
		state := "running"
		if cs.State.Waiting != nil {
			state = "waiting:" + cs.State.Waiting.Reason
		} else if cs.State.Terminated != nil {
			state = "terminated:" + cs.State.Terminated.Reason
		}
		fmt.Fprintf(&b, "Status %s: ready=%t restarts=%d state=%s\n", cs.Name, cs.Ready, cs.RestartCount, state)
	}
	return &domaintool.Result{Output: b.String(), Success: true}, nil
}

type getDeploymentsTool struct{ client *Client }

func NewGetDeploymentsTool(c *Client) domaintool.Tool { return &getDeploymentsTool{client: c} }

func (t *getDeploymentsTool) Name() string        { return "kubectl_get_deployments" }
func (t *getDeploymentsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *getDeploymentsTool) Description() string {
	return "List deployments in a namespace with desired/ready/available replica counts."
}
func (t *getDeploymentsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("namespace to list deployments from"),
	})
}

func (t *getDeploymentsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	list, err := t.client.Clientset.AppsV1().Deployments(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d deployment(s) in %s:\n", len(list.Items), ns)
	for _, d := range list.Items {
		desired := int32(0)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		fmt.Fprintf(&b, "  %s  desired=%d  ready=%d  available=%d\n", d.Name, desired, d.Status.ReadyReplicas, d.Status.AvailableReplicas)
	}
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"count": len(list.Items)}}, nil
}

type getEventsTool struct{ client *Client }

func NewGetEventsTool(c *Client) domaintool.Tool { return &getEventsTool{client: c} }

func (t *getEventsTool) Name() string        { return "kubectl_get_events" }
func (t *getEventsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *getEventsTool) Description() string {
	return "List recent warning and normal events in a namespace, optionally filtered to one object."
}
func (t *getEventsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace":   stringProp("namespace to list events from"),
		"limit":       intProp("maximum number of events to return (default 50)"),
		"object_name": stringProp("only return events involving this object (e.g. a pod name)"),
	})
}

func (t *getEventsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	list, err := t.client.Clientset.CoreV1().Events(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	limit := intArg(args, "limit", 50)
	filter := stringArg(args, "object_name", "")
	var b strings.Builder
	count := 0
	for _, e := range list.Items {
		if filter != "" && e.InvolvedObject.Name != filter {
			continue
		}
		if count >= limit {
			break
		}
		count++
		fmt.Fprintf(&b, "[%s] %s/%s: %s (%s)\n", e.Type, e.InvolvedObject.Kind, e.InvolvedObject.Name, e.Message, e.Reason)
	}
	fmt.Fprintf(&b, "%d event(s) in %s\n", count, ns)
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"count": count}}, nil
}

type topPodsTool struct{ client *Client }

func NewTopPodsTool(c *Client) domaintool.Tool { return &topPodsTool{client: c} }

func (t *topPodsTool) Name() string        { return "kubectl_top_pods" }
func (t *topPodsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *topPodsTool) Description() string {
	return "Report current CPU and memory usage for pods in a namespace; also feeds the prediction tools' history."
}
func (t *topPodsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"namespace": stringProp("namespace to report usage for"),
	})
}

func (t *topPodsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	ns := t.client.namespaceOrDefault(stringArg(args, "namespace", ""))
	list, err := t.client.MetricsClientset.MetricsV1beta1().PodMetricses(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}

	var b strings.Builder
	for _, pm := range list.Items {
		var cpuMilli, memBytes int64
		for _, c := range pm.Containers {
			cpuMilli += c.Usage.Cpu().MilliValue()
			memBytes += c.Usage.Memory().Value()
		}
		t.client.History.Record(ns+"/"+pm.Name, Sample{Timestamp: pm.Timestamp.Time, CPUMilli: cpuMilli, MemBytes: memBytes})
		fmt.Fprintf(&b, "  %s  cpu=%dm  mem=%dMi\n", pm.Name, cpuMilli, memBytes/(1024*1024))
	}
	return &domaintool.Result{Output: b.String(), Success: true, Metadata: map[string]interface{}{"count": len(list.Items)}}, nil
}
