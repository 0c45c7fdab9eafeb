/*
Package job applies rendered Job manifests to a cluster.

Two paths are available:

  - KubectlRunner shells out to `kubectl apply -f <file>` with the caller's
    stdio. A non-zero exit is returned as *ExitError carrying kubectl's
    status, which the CLI passes through as its own exit code.
  - Submitter talks to the API server through client-go. An existing Job of
    the same name is deleted (background propagation) and the new Job is
    created. Wait polls until the Job reports Complete or Failed.

# Usage Example

	clientset, _, err := client.BuildKubeClient("")
	if err != nil {
		return err
	}

	s := job.NewSubmitter(clientset)
	created, err := s.Submit(ctx, m.Job())
	if err != nil {
		return err
	}
	if err := s.Wait(ctx, created.Namespace, created.Name, 30*time.Minute); err != nil {
		return err
	}

# Testing

Submitter accepts kubernetes.Interface, so tests use the client-go fake:

	clientset := fake.NewClientset()
	s := job.NewSubmitter(clientset, job.WithPollInterval(time.Millisecond))
*/
package job
