package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHealthReport(t *testing.T) {
	ctx := context.Background()

	t.Run("all checks passing", func(t *testing.T) {
		h := NewHealth([]HealthChecker{
			&FuncCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }},
			&FuncCheck{CheckName: "embedder", CheckFunc: func(context.Context) error { return nil }},
		}, 0)

		report := h.Report(ctx)
		if report.Status != HealthStatusHealthy {
			t.Errorf("status = %q, want healthy", report.Status)
		}
		if len(report.Checks) != 2 {
			t.Fatalf("report has %d checks, want 2", len(report.Checks))
		}
		if report.Checks["store"].Status != "ok" {
			t.Errorf("store check = %+v, want ok", report.Checks["store"])
		}
		if report.Timestamp.IsZero() {
			t.Error("report timestamp not set")
		}
	})

	t.Run("one failure marks the report unhealthy", func(t *testing.T) {
		h := NewHealth([]HealthChecker{
			&FuncCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }},
			&FuncCheck{CheckName: "graph", CheckFunc: func(context.Context) error {
				return errors.New("connection refused")
			}},
		}, 0)

		report := h.Report(ctx)
		if report.Status != HealthStatusUnhealthy {
			t.Errorf("status = %q, want unhealthy", report.Status)
		}
		if got := report.Checks["graph"]; got.Status != "error" || got.Error != "connection refused" {
			t.Errorf("graph check = %+v", got)
		}
		if report.Checks["store"].Status != "ok" {
			t.Error("healthy check should still report ok")
		}
	})

	t.Run("slow check times out", func(t *testing.T) {
		h := NewHealth([]HealthChecker{
			&FuncCheck{
				CheckName:    "slow",
				CheckTimeout: 20 * time.Millisecond,
				CheckFunc: func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				},
			},
		}, 0)

		report := h.Report(ctx)
		if report.Status != HealthStatusUnhealthy {
			t.Errorf("status = %q, want unhealthy", report.Status)
		}
		if !strings.Contains(report.Checks["slow"].Error, "deadline") {
			t.Errorf("slow check error = %q, want deadline exceeded", report.Checks["slow"].Error)
		}
	})

	t.Run("no checks is healthy", func(t *testing.T) {
		report := NewHealth(nil, 0).Report(ctx)
		if report.Status != HealthStatusHealthy {
			t.Errorf("status = %q, want healthy", report.Status)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealth([]HealthChecker{
		&FuncCheck{CheckName: "store", CheckFunc: func(context.Context) error { return nil }},
	}, 0)

	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status": "healthy"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	failing := NewHealth([]HealthChecker{
		&FuncCheck{CheckName: "store", CheckFunc: func(context.Context) error {
			return errors.New("down")
		}},
	}, 0)

	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status code = %d, want 503", rec.Code)
	}
}

func TestTCPCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	check := &TCPCheck{CheckName: "db", Addr: ln.Addr().String()}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("Check against live listener returned %v", err)
	}

	addr := ln.Addr().String()
	ln.Close()
	check = &TCPCheck{CheckName: "db", Addr: addr, CheckTimeout: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := check.Check(ctx); err == nil {
		t.Error("Check against closed listener should fail")
	}
}

func TestHTTPCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Authorization") == "" && r.URL.Path == "/auth" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()

	up := &HTTPCheck{CheckName: "api", URL: srv.URL + "/health"}
	if err := up.Check(ctx); err != nil {
		t.Errorf("Check against healthy endpoint returned %v", err)
	}

	down := &HTTPCheck{CheckName: "api", URL: srv.URL + "/down"}
	if err := down.Check(ctx); err == nil {
		t.Error("Check against failing endpoint should report the status mismatch")
	}

	authed := &HTTPCheck{
		CheckName: "api",
		URL:       srv.URL + "/auth",
		Headers:   map[string]string{"Authorization": "Bearer token"},
	}
	if err := authed.Check(ctx); err != nil {
		t.Errorf("Check with headers returned %v", err)
	}
}
