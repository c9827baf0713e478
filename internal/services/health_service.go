package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Health status values.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusConnected = "connected"
)

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthReport lists the state of every registered dependency.
type HealthReport struct {
	Status   string            `json:"status"`
	DB       string            `json:"db"`
	Services map[string]string `json:"services"`
}

// HealthService pings every dependency concurrently.
type HealthService struct {
	checks  map[string]HealthChecker
	primary string
	timeout time.Duration
}

// NewHealthService creates a health service. primary names the dependency
// reported in the top-level db field.
func NewHealthService(primary string, timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{
		checks:  make(map[string]HealthChecker),
		primary: primary,
		timeout: timeout,
	}
}

// Register adds a dependency; a nil checker is skipped.
func (s *HealthService) Register(name string, checker HealthChecker) {
	if checker == nil {
		return
	}
	s.checks[name] = checker
}

// Names returns the registered dependency names in order.
func (s *HealthService) Names() []string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check pings all dependencies and reports degraded if any fails.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var mu sync.Mutex
	services := make(map[string]string, len(s.checks))
	var g errgroup.Group
	for name, checker := range s.checks {
		g.Go(func() error {
			state := StatusConnected
			if err := checker.HealthCheck(ctx); err != nil {
				state = "error: " + err.Error()
			}
			mu.Lock()
			services[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{Status: StatusOK, DB: services[s.primary], Services: services}
	for _, state := range services {
		if state != StatusConnected {
			report.Status = StatusDegraded
			break
		}
	}
	return report
}
