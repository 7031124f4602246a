// Package k8s implements the §4.4 Kubernetes Executor: the Catalog tools
// that observe and mutate cluster state, built on client-go's typed
// clientset plus the metrics API for the derived analytics tools.
package k8s

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client bundles the two clientsets the Catalog tools need plus the
// per-pod metric history used by the prediction tools (§4.3, §4.4).
type Client struct {
	Clientset        kubernetes.Interface
	MetricsClientset metricsclient.Interface
	DefaultNamespace string
	History          *MetricHistory
	logger           *zap.Logger
}

// Config configures credential resolution for the Kubernetes Executor.
type Config struct {
	InCluster        bool
	Kubeconfig       string
	DefaultNamespace string
}

// NewClient resolves cluster credentials: the in-cluster service account
// when one is available, otherwise the kubeconfig path (falling back to
// ~/.kube/config). With InCluster set, a missing in-cluster environment is
// an error instead of a fallback.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	restCfg, err := resolveConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes clientset: %w", err)
	}

	metricsCS, err := metricsclient.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics clientset: %w", err)
	}

	namespace := cfg.DefaultNamespace
	if namespace == "" {
		namespace = "default"
	}

	return &Client{
		Clientset:        clientset,
		MetricsClientset: metricsCS,
		DefaultNamespace: namespace,
		History:          NewMetricHistory(historySize),
		logger:           logger,
	}, nil
}

func resolveConfig(cfg Config) (*rest.Config, error) {
	restCfg, err := rest.InClusterConfig()
	if err == nil {
		return restCfg, nil
	}
	if cfg.InCluster {
		return nil, err
	}

	kubeconfig := cfg.Kubeconfig
	if kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

// namespaceOrDefault returns ns if non-empty, else the client's default.
func (c *Client) namespaceOrDefault(ns string) string {
	if ns != "" {
		return ns
	}
	return c.DefaultNamespace
}
