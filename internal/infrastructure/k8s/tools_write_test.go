package k8s

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestScaleDeploymentTool_Execute(t *testing.T) {
	client := newFakeClient(t)
	replicas := int32(2)
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "default"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	}
	if _, err := client.Clientset.AppsV1().Deployments("default").Create(context.Background(), dep, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}

	tool := NewScaleDeploymentTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"namespace": "default", "deployment": "api", "replicas": float64(5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata["previous_replicas"] != int32(2) || result.Metadata["new_replicas"] != int32(5) {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}

	updated, err := client.Clientset.AppsV1().Deployments("default").Get(context.Background(), "api", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get updated deployment: %v", err)
	}
	if *updated.Spec.Replicas != 5 {
		t.Fatalf("expected replicas updated to 5, got %d", *updated.Spec.Replicas)
	}
}

func TestScaleDeploymentTool_RequiresValidArgs(t *testing.T) {
	client := newFakeClient(t)
	tool := NewScaleDeploymentTool(client)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"deployment": "api"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when replicas is missing")
	}
}

func TestDeletePodTool_Execute(t *testing.T) {
	client := newFakeClient(t)
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"}}
	if _, err := client.Clientset.CoreV1().Pods("default").Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed pod: %v", err)
	}

	tool := NewDeletePodTool(client)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default", "pod": "web-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	_, err = client.Clientset.CoreV1().Pods("default").Get(context.Background(), "web-1", metav1.GetOptions{})
	if err == nil {
		t.Fatal("expected pod to be deleted")
	}
}

func TestDeletePodTool_RequiresPod(t *testing.T) {
	client := newFakeClient(t)
	tool := NewDeletePodTool(client)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"namespace": "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when pod is missing")
	}
}

func TestWriteTools_NamesAndKinds(t *testing.T) {
	client := newFakeClient(t)

	scale := NewScaleDeploymentTool(client)
	deletePod := NewDeletePodTool(client)
	restart := NewAutoRestartPodTool(client)

	if scale.Name() != "kubectl_scale_deployment" {
		t.Fatalf("unexpected name %q", scale.Name())
	}
	if deletePod.Name() != "kubectl_delete_pod" {
		t.Fatalf("unexpected name %q", deletePod.Name())
	}
	if restart.Name() != "auto_restart_pod" {
		t.Fatalf("unexpected name %q", restart.Name())
	}
}
