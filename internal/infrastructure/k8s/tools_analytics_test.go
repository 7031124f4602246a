package k8s

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
)

func TestAnalyzeResourceEfficiencyTool_FlagsOverprovisioned(t *testing.T) {
	client := newFakeClient(t)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "idle", Namespace: "default"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name: "app",
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("1000m")},
				},
			}},
		},
	}
	if _, err := client.Clientset.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod: %v", err)
	}
	pm := &metricsv1beta1.PodMetrics{
		ObjectMeta: metav1.ObjectMeta{Name: "idle", Namespace: "default"},
		Containers: []metricsv1beta1.ContainerMetrics{
			{Name: "app", Usage: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("10m")}},
		},
	}
	if _, err := client.MetricsClientset.MetricsV1beta1().PodMetricses("default").Create(context.Background(), pm, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod metrics: %v", err)
	}

	tool := NewAnalyzeResourceEfficiencyTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata["overprovisioned"] != 1 {
		t.Fatalf("expected 1 overprovisioned pod, got %+v", result.Metadata)
	}
}

func TestScanPodSecurityTool_FlagsPrivilegedContainer(t *testing.T) {
	client := newFakeClient(t)
	privileged := true
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "risky", Namespace: "default"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:            "app",
				SecurityContext: &corev1.SecurityContext{Privileged: &privileged},
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("100m"),
						corev1.ResourceMemory: resource.MustParse("64Mi"),
					},
				},
			}},
		},
	}
	if _, err := client.Clientset.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod: %v", err)
	}

	tool := NewScanPodSecurityTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata["pods_with_findings"] != 1 {
		t.Fatalf("expected 1 pod with findings, got %+v", result.Metadata)
	}
}

func TestScanPodSecurityTool_NoFindingsOnCleanPod(t *testing.T) {
	client := newFakeClient(t)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "clean", Namespace: "default"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name: "app",
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("100m"),
						corev1.ResourceMemory: resource.MustParse("64Mi"),
					},
				},
			}},
		},
	}
	if _, err := client.Clientset.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod: %v", err)
	}

	tool := NewScanPodSecurityTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if _, hasFindings := result.Metadata["pods_with_findings"]; hasFindings {
		t.Fatalf("expected no findings metadata for a clean pod, got %+v", result.Metadata)
	}
}
