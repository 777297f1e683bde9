package config

import (
	"fmt"

	nadclient "github.com/k8snetworkplumbingwg/network-attachment-definition-client/pkg/client/clientset/versioned"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/flowcontrol"
	metricsc "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles every API client the test driver needs against one
// cluster. The rest config is kept for exec (SPDY) connections.
type Clients struct {
	Kubernetes *kubernetes.Clientset
	Metrics    *metricsc.Clientset
	NetAttach  *nadclient.Clientset
	RestConfig *rest.Config
}

func newRateLimiter() flowcontrol.RateLimiter {
	return flowcontrol.NewTokenBucketRateLimiter(200.0, 200)
}

// configForKubeconfig builds a REST client configuration from an explicit
// kubeconfig path, falling back to in-cluster configuration when the path
// is empty.
func configForKubeconfig(kubeconfig string) (*rest.Config, error) {
	var config *rest.Config
	var err error
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get Kubernetes config: %w", err)
	}
	config.RateLimiter = newRateLimiter()
	return config, nil
}

// NewClients creates the client set for one cluster.
func NewClients(kubeconfig string) (*Clients, error) {
	config, err := configForKubeconfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("could not get Kubernetes client: %w", err)
	}
	metrics, err := metricsc.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("could not get metrics client: %w", err)
	}
	netattach, err := nadclient.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("could not get network-attachment client: %w", err)
	}
	return &Clients{
		Kubernetes: client,
		Metrics:    metrics,
		NetAttach:  netattach,
		RestConfig: config,
	}, nil
}
