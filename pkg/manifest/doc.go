/*
Package manifest renders the Kubernetes Job for a Hugging Face GPU workload.

The Job is built from a fixed template whose leaves carry ${name}
placeholders (see config.KnownKeys for the names). Rendering is plain text
substitution over the serialized template followed by a re-parse, so a value
like k8s_user_id: 1000 lands in the Job as an integer.

# Template

	apiVersion: batch/v1
	kind: Job
	metadata:
	  name: ${k8s_user_name}-${job_name}
	  namespace: ${namespace}
	  labels:
	    k8s-user: ${k8s_user_name}
	spec:
	  backoffLimit: 0
	  ttlSecondsAfterFinished: 60
	  template:
	    spec:
	      nodeSelector:
	        nvidia.com/gpu.present: "true"
	      securityContext:
	        runAsUser: ${k8s_user_id}
	        runAsGroup: ${k8s_user_group}
	        fsGroup: ${k8s_user_group}
	      containers:
	        - name: main
	          image: ${image}
	          ...

namespace defaults to yn-gpu-workload and job_name to a short random name.

# Optional fields

  - gpu_type sets nodeSelector nvidia.com/gpu.product
  - command sets the container command, split with shell quoting rules
  - k8s_user_home sets subPath on the /home mount

# Validation

Placeholders left in the output are an error. The result is also decoded
strictly into batch/v1 Job, which rejects malformed quantities and non-numeric
user ids, and the image must be a valid reference.

Usage:

	m, err := manifest.Render(values)
	if err != nil {
	    return err
	}
	data, err := m.YAML()
*/
package manifest
