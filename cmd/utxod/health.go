// health.go - Health checks for the ledger node
package main

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Version       string            `json:"version"`
}

// degradedError marks a check that failed without making the node unusable.
type degradedError struct{ msg string }

func (e *degradedError) Error() string { return e.msg }

func degraded(msg string) error { return &degradedError{msg: msg} }

// HealthChecker runs the registered component checks.
type HealthChecker struct {
	version  string
	checkers map[string]func() error
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version:  version,
		checkers: make(map[string]func() error),
	}
}

// RegisterComponent registers a health check for a component
func (hc *HealthChecker) RegisterComponent(name string, checker func() error) {
	hc.checkers[name] = checker
}

// CheckHealth performs health checks for all registered components
func (hc *HealthChecker) CheckHealth() *SystemHealth {
	names := make([]string, 0, len(hc.checkers))
	for name := range hc.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := Healthy
	components := make([]ComponentHealth, 0, len(names))
	for _, name := range names {
		start := time.Now()
		err := hc.checkers[name]()
		c := ComponentHealth{
			Name:      name,
			Status:    Healthy,
			Message:   "OK",
			LastCheck: time.Now(),
			Latency:   time.Since(start),
		}
		var d *degradedError
		switch {
		case errors.As(err, &d):
			c.Status, c.Message = Degraded, err.Error()
		case err != nil:
			c.Status, c.Message = Unhealthy, err.Error()
		}

		if c.Status == Unhealthy {
			overall = Unhealthy
		} else if c.Status == Degraded && overall == Healthy {
			overall = Degraded
		}
		components = append(components, c)
	}

	return &SystemHealth{
		OverallStatus: overall,
		Timestamp:     time.Now(),
		Components:    components,
		Version:       hc.version,
	}
}
