package defaults

import "time"

// Kubernetes timeouts.
const (
	// JobPollInterval is how often Job state is polled.
	JobPollInterval = 2 * time.Second

	// JobDeleteTimeout bounds the wait for a replaced Job to be removed.
	JobDeleteTimeout = 60 * time.Second
)

// Server timeouts.
const (
	ServerReadHeaderTimeout = 2 * time.Second
	ServerReadTimeout       = 5 * time.Second
	ServerWriteTimeout      = 10 * time.Second
	ServerIdleTimeout       = 60 * time.Second
	ServerShutdownTimeout   = 5 * time.Second
)
