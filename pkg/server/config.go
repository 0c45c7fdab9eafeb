package server

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/yngpu/hfjob/pkg/defaults"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. ":8080". It takes precedence
	// over Port when set.
	Address string
	Port    int

	// Rate limiting configuration
	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	// Timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Port:              8080,
		RateLimit:         20, // 20 req/s
		RateLimitBurst:    40,
		ReadHeaderTimeout: defaults.ServerReadHeaderTimeout,
		ReadTimeout:       defaults.ServerReadTimeout,
		WriteTimeout:      defaults.ServerWriteTimeout,
		IdleTimeout:       defaults.ServerIdleTimeout,
		ShutdownTimeout:   defaults.ServerShutdownTimeout,
	}

	// Override with environment variables if set
	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	return cfg
}

// addr returns the address to listen on.
func (c *Config) addr() string {
	if c.Address != "" {
		return c.Address
	}
	return fmt.Sprintf(":%d", c.Port)
}
