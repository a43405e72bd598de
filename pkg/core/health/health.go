// Package health aggregates readiness checks of the Iguana server
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// DefaultCheckTimeout bounds a single check
const DefaultCheckTimeout = 2 * time.Second

// CheckResult represents the result of a health check
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Checker is one health check
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

type namedCheck struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewChecker creates a named checker from a function
func NewChecker(name string, fn func(ctx context.Context) CheckResult) Checker {
	return &namedCheck{name: name, fn: fn}
}

func (c *namedCheck) Name() string { return c.name }

func (c *namedCheck) Check(ctx context.Context) CheckResult {
	return c.fn(ctx)
}

// PingCheck reports unhealthy when ping fails
func PingCheck(name string, ping func(ctx context.Context) error) Checker {
	return NewChecker(name, func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Name: name, Status: StatusHealthy}
	})
}

// Registry runs the registered checks and builds reports
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	info     map[string]string
	service  string
	version  string
	startAt  time.Time

	// CheckTimeout bounds every check. A check that does not answer in
	// time is reported unhealthy.
	CheckTimeout time.Duration
}

// NewRegistry creates a registry for service
func NewRegistry(service, version string) *Registry {
	return &Registry{
		checkers:     make(map[string]Checker),
		info:         make(map[string]string),
		service:      service,
		version:      version,
		startAt:      time.Now(),
		CheckTimeout: DefaultCheckTimeout,
	}
}

// Register adds a checker, replacing one with the same name
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// RegisterFunc adds a check function to the registry
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	r.Register(NewChecker(name, fn))
}

// SetInfo adds a static entry to every report, e.g. a language version
func (r *Registry) SetInfo(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info[key] = value
}

// Check runs all checks concurrently. Results are ordered by name.
func (r *Registry) Check(ctx context.Context) *Report {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	info := make(map[string]string, len(r.info))
	for k, v := range r.info {
		info[k] = v
	}
	r.mu.RUnlock()

	report := &Report{
		Service:   r.service,
		Version:   r.version,
		Uptime:    time.Since(r.startAt),
		Timestamp: time.Now(),
		Info:      info,
		Checks:    make([]CheckResult, len(checkers)),
	}

	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			report.Checks[i] = r.run(ctx, c)
		}(i, checker)
	}
	wg.Wait()

	sort.Slice(report.Checks, func(i, j int) bool { return report.Checks[i].Name < report.Checks[j].Name })

	report.Status = StatusHealthy
	for _, result := range report.Checks {
		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// run executes one check under the check timeout
func (r *Registry) run(ctx context.Context, c Checker) CheckResult {
	timeout := r.CheckTimeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() { done <- c.Check(ctx) }()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{Status: StatusUnhealthy, Message: "timed out after " + timeout.String()}
	}
	result.Duration = time.Since(start)
	if result.Name == "" {
		result.Name = c.Name()
	}
	return result
}

// Report represents the overall health report
type Report struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    Status            `json:"status"`
	Uptime    time.Duration     `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Info      map[string]string `json:"info,omitempty"`
	Checks    []CheckResult     `json:"checks"`
}

// Serving reports whether the service can take requests. A degraded
// service still serves.
func (r *Report) Serving() bool {
	return r.Status != StatusUnhealthy
}

// HTTPStatus maps the report to a response code for /healthz
func (r *Report) HTTPStatus() int {
	if r.Serving() {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// String names the service status and every check that is not healthy
func (r *Report) String() string {
	var failing []string
	for _, c := range r.Checks {
		if c.Status == StatusHealthy {
			continue
		}
		s := c.Name + " " + string(c.Status)
		if c.Message != "" {
			s += " (" + c.Message + ")"
		}
		failing = append(failing, s)
	}
	if len(failing) == 0 {
		return fmt.Sprintf("%s %s", r.Service, r.Status)
	}
	return fmt.Sprintf("%s %s: %s", r.Service, r.Status, strings.Join(failing, ", "))
}
