package health

import (
	"context"
	"time"
)

// Checkable is implemented by the store adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker reports the health of a Checkable.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a checker bounded by timeout (5s when zero).
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  duration,
		}
	}
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

func (c *AdapterChecker) Name() string {
	return c.name
}

// NewDatabaseChecker checks the document store with a 5s bound.
func NewDatabaseChecker(name string, db Checkable) *AdapterChecker {
	return NewAdapterChecker(name, db, 5*time.Second)
}

// NewCacheChecker checks the document cache with a 3s bound.
func NewCacheChecker(name string, cache Checkable) *AdapterChecker {
	return NewAdapterChecker(name, cache, 3*time.Second)
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
