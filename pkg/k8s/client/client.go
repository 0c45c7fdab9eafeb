// Package client builds Kubernetes API clients from kubeconfig discovery.
package client

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// EnvKubeconfig is the environment variable holding the kubeconfig path.
const EnvKubeconfig = "KUBECONFIG"

// ResolveKubeconfig returns the kubeconfig path to use.
//
// Resolution order:
//  1. the explicit path, when non-empty
//  2. the first entry of the KUBECONFIG path list
//  3. ~/.kube/config, if it exists
//
// An empty result means in-cluster configuration (service account).
func ResolveKubeconfig(kubeconfig string) string {
	if kubeconfig != "" {
		return kubeconfig
	}
	for _, path := range filepath.SplitList(os.Getenv(EnvKubeconfig)) {
		if path != "" {
			return path
		}
	}
	def := filepath.Join(homedir.HomeDir(), ".kube", "config")
	if _, err := os.Stat(def); err != nil {
		return ""
	}
	return def
}

// BuildKubeClient creates a Kubernetes client from the given kubeconfig file.
// If kubeconfig is empty the path is discovered with ResolveKubeconfig.
//
// Example:
//
//	clientset, _, err := client.BuildKubeClient("")
//	if err != nil {
//	    return fmt.Errorf("failed to build client: %w", err)
//	}
func BuildKubeClient(kubeconfig string) (*kubernetes.Clientset, *rest.Config, error) {
	config, err := clientcmd.BuildConfigFromFlags("", ResolveKubeconfig(kubeconfig))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build kube config: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return client, config, nil
}
