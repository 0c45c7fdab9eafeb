package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/yngpu/hfjob/pkg/defaults"
	"github.com/yngpu/hfjob/pkg/errors"
)

// Submitter creates Jobs through the Kubernetes API.
type Submitter struct {
	clientset    kubernetes.Interface
	pollInterval time.Duration
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithPollInterval sets how often Job state is polled.
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.pollInterval = d
	}
}

// NewSubmitter returns a Submitter using clientset.
func NewSubmitter(clientset kubernetes.Interface, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		clientset:    clientset,
		pollInterval: defaults.JobPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit deletes any Job with the same name and creates job.
// The Job is recreated rather than updated because its pod template is immutable.
func (s *Submitter) Submit(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error) {
	if job == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "no job to submit")
	}

	start := time.Now()
	created, err := s.ensureJob(ctx, job)
	submitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		submitTotal.WithLabelValues(RunnerAPI, "error").Inc()
		return nil, err
	}
	submitTotal.WithLabelValues(RunnerAPI, "success").Inc()

	slog.Info("job submitted",
		"name", created.Name,
		"namespace", created.Namespace,
		"uid", string(created.UID),
	)
	return created, nil
}

func (s *Submitter) ensureJob(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error) {
	if err := s.deleteJob(ctx, job.Namespace, job.Name); err != nil {
		return nil, fmt.Errorf("failed to delete existing Job: %w", err)
	}

	created, err := s.clientset.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeUnavailable, "failed to create Job", err,
			map[string]any{"name": job.Name, "namespace": job.Namespace})
	}
	return created, nil
}

// deleteJob removes the Job and waits for it to disappear. A missing Job is not an error.
func (s *Submitter) deleteJob(ctx context.Context, namespace, name string) error {
	err := s.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationBackground),
	})
	if err = ignoreNotFound(err); err != nil {
		return err
	}

	return wait.PollUntilContextTimeout(ctx, s.pollInterval, defaults.JobDeleteTimeout, true,
		func(ctx context.Context) (bool, error) {
			_, err := s.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			return false, err
		})
}

// Wait blocks until the Job completes, fails, or timeout elapses.
// A failed Job is returned as an error carrying the failure reason.
func (s *Submitter) Wait(ctx context.Context, namespace, name string, timeout time.Duration) error {
	slog.Info("waiting for job", "name", name, "namespace", namespace, "timeout", timeout)

	var failure error
	err := wait.PollUntilContextTimeout(ctx, s.pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			job, err := s.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}

			if c := condition(job, batchv1.JobFailed); c != nil {
				failure = fmt.Errorf("job %s/%s failed: %s: %s", namespace, name, c.Reason, c.Message)
				return true, nil
			}
			if condition(job, batchv1.JobComplete) != nil {
				return true, nil
			}

			slog.Debug("job still running",
				"name", name,
				"active", job.Status.Active,
				"failed", job.Status.Failed,
			)
			return false, nil
		})

	if err != nil {
		if wait.Interrupted(err) {
			return errors.WrapWithContext(errors.ErrCodeTimeout, "timed out waiting for job", err,
				map[string]any{"name": name, "namespace": namespace})
		}
		return fmt.Errorf("failed to watch job %s/%s: %w", namespace, name, err)
	}
	if failure != nil {
		return failure
	}

	slog.Info("job completed", "name", name, "namespace", namespace)
	return nil
}

// condition returns the true condition of type t, or nil.
func condition(job *batchv1.Job, t batchv1.JobConditionType) *batchv1.JobCondition {
	for i := range job.Status.Conditions {
		c := &job.Status.Conditions[i]
		if c.Type == t && c.Status == corev1.ConditionTrue {
			return c
		}
	}
	return nil
}

// ignoreNotFound returns nil if the error is "not found", otherwise returns the error.
func ignoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
