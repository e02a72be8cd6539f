package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// startTime anchors the uptime reported in health reports.
var startTime = time.Now()

// HealthChecker verifies one dependency.
//
// Built-in implementations cover TCP reachability (TCPCheck), HTTP
// endpoints (HTTPCheck) and arbitrary logic (FuncCheck); components with a
// natural liveness probe are wrapped with FuncCheck.
type HealthChecker interface {
	// Name identifies the check in the report, "postgres" or "qdrant" say.
	Name() string
	// Check returns nil when the dependency is healthy. The context
	// carries the check's deadline.
	Check(ctx context.Context) error
	// Timeout is the per-check deadline. Zero uses the runner's default.
	Timeout() time.Duration
}

// HealthStatus is the aggregate outcome of a health report.
type HealthStatus string

// Aggregate health statuses.
const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is one check's outcome within a report.
type HealthCheckResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthReport aggregates every check's outcome.
type HealthReport struct {
	Status    HealthStatus                 `json:"status"`
	Checks    map[string]HealthCheckResult `json:"checks"`
	Uptime    time.Duration                `json:"uptime"`
	Timestamp time.Time                    `json:"timestamp"`
}

// Health runs a set of dependency checks and aggregates the results. Serve
// the report over HTTP with Handler, or call Report directly.
type Health struct {
	checks  []HealthChecker
	timeout time.Duration
}

// NewHealth creates a runner over the given checks. defaultTimeout bounds
// checks that do not set their own; zero defaults to 5s.
func NewHealth(checks []HealthChecker, defaultTimeout time.Duration) *Health {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Health{checks: checks, timeout: defaultTimeout}
}

// Report runs every check concurrently and aggregates the outcomes. Any
// failing check marks the whole report unhealthy.
func (h *Health) Report(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]HealthCheckResult, len(h.checks)),
		Uptime:    time.Since(startTime),
		Timestamp: time.Now().UTC(),
	}
	if len(h.checks) == 0 {
		return report
	}

	results := make(chan HealthCheckResult, len(h.checks))
	var wg sync.WaitGroup
	for _, check := range h.checks {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			timeout := c.Timeout()
			if timeout <= 0 {
				timeout = h.timeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)

			result := HealthCheckResult{
				Name:    c.Name(),
				Status:  "ok",
				Latency: time.Since(start),
			}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}
			results <- result
		}(check)
	}
	wg.Wait()
	close(results)

	for result := range results {
		report.Checks[result.Name] = result
		if result.Status != "ok" {
			report.Status = HealthStatusUnhealthy
		}
	}
	return report
}

// Handler serves the report as JSON. Unhealthy reports respond 503, so the
// endpoint works directly as a load balancer or orchestrator probe.
func (h *Health) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := h.Report(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	})
}

// TCPCheck verifies a TCP endpoint accepts connections. Suits databases
// and caches where opening a connection is proof of life.
type TCPCheck struct {
	CheckName    string
	Addr         string
	CheckTimeout time.Duration
}

var _ HealthChecker = (*TCPCheck)(nil)

func (c *TCPCheck) Name() string { return c.CheckName }

func (c *TCPCheck) Timeout() time.Duration { return c.CheckTimeout }

// Check dials the address and closes the connection.
func (c *TCPCheck) Check(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("tcp connection failed: %w", err)
	}
	return conn.Close()
}

// HTTPCheck verifies an HTTP endpoint responds with the expected status.
type HTTPCheck struct {
	CheckName string
	URL       string
	// Method defaults to GET.
	Method string
	// ExpectedStatus defaults to 200.
	ExpectedStatus int
	Headers        map[string]string
	CheckTimeout   time.Duration
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

var _ HealthChecker = (*HTTPCheck)(nil)

func (c *HTTPCheck) Name() string { return c.CheckName }

func (c *HTTPCheck) Timeout() time.Duration { return c.CheckTimeout }

// Check issues the request and compares the response status.
func (c *HTTPCheck) Check(ctx context.Context) error {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	expected := c.ExpectedStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != expected {
		return fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, expected)
	}
	return nil
}

// FuncCheck wraps a function as a health check, for component probes the
// built-in checks cannot express.
type FuncCheck struct {
	CheckName    string
	CheckFunc    func(ctx context.Context) error
	CheckTimeout time.Duration
}

var _ HealthChecker = (*FuncCheck)(nil)

func (c *FuncCheck) Name() string { return c.CheckName }

func (c *FuncCheck) Timeout() time.Duration { return c.CheckTimeout }

// Check runs the wrapped function.
func (c *FuncCheck) Check(ctx context.Context) error {
	if c.CheckFunc == nil {
		return fmt.Errorf("no check function configured")
	}
	return c.CheckFunc(ctx)
}
