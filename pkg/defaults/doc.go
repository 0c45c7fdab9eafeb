// Package defaults provides centralized timing constants for hfjob.
//
// # Timeout Categories
//
//   - Kubernetes timeouts: Job deletion and status polling through the API
//   - Server timeouts: status server request handling and shutdown
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/yngpu/hfjob/pkg/defaults"
//
//	err := wait.PollUntilContextTimeout(ctx, defaults.JobPollInterval, defaults.JobDeleteTimeout, true, cond)
//
// # Timeout Guidelines
//
//   - K8s operations: 2s polling, 60s for a replaced Job to disappear
//   - Server shutdown: 5s, training pods are short lived
package defaults
