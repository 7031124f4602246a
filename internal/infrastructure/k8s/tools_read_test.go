package k8s

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"go.uber.org/zap"
)

func newFakeClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		Clientset:        fake.NewSimpleClientset(),
		MetricsClientset: metricsfake.NewSimpleClientset(),
		DefaultNamespace: "default",
		History:          NewMetricHistory(20),
		logger:           zap.NewNop(),
	}
}

func TestGetPodsTool_Execute(t *testing.T) {
	client := newFakeClient(t)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{RestartCount: 2}},
		},
	}
	if _, err := client.Clientset.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod: %v", err)
	}

	tool := NewGetPodsTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata["count"] != 1 {
		t.Fatalf("expected count=1, got %v", result.Metadata["count"])
	}
}

func TestGetPodLogsTool_RequiresPod(t *testing.T) {
	client := newFakeClient(t)
	tool := NewGetPodLogsTool(client)

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when pod argument is missing")
	}
}

func TestGetDeploymentsTool_Execute(t *testing.T) {
	client := newFakeClient(t)
	replicas := int32(3)
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "default"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	}
	if _, err := client.Clientset.AppsV1().Deployments("default").Create(context.Background(), dep, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}

	tool := NewGetDeploymentsTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Metadata["count"] != 1 {
		t.Fatalf("expected one deployment listed, got %+v", result)
	}
}

func TestTopPodsTool_RecordsHistory(t *testing.T) {
	client := newFakeClient(t)
	pm := &metricsv1beta1.PodMetrics{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"},
		Containers: []metricsv1beta1.ContainerMetrics{
			{Name: "app", Usage: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("100m"),
				corev1.ResourceMemory: resource.MustParse("64Mi"),
			}},
		},
	}
	if _, err := client.MetricsClientset.MetricsV1beta1().PodMetricses("default").Create(context.Background(), pm, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod metrics: %v", err)
	}

	tool := NewTopPodsTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	samples := client.History.Samples("default/web-1")
	if len(samples) != 1 {
		t.Fatalf("expected one recorded sample, got %d", len(samples))
	}
	if samples[0].CPUMilli != 100 {
		t.Fatalf("expected 100m recorded, got %d", samples[0].CPUMilli)
	}
}
