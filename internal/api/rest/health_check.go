package rest

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusFail HealthStatus = "fail"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       HealthStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	ResponseTime string       `json:"response_time"`
}

type HealthResponse struct {
	Status      HealthStatus                 `json:"status"`
	Version     string                       `json:"version,omitempty"`
	Environment string                       `json:"environment,omitempty"`
	Uptime      string                       `json:"uptime"`
	Checks      map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks      map[string]Pinger
	timeout     time.Duration
	version     string
	environment string
	started     time.Time
}

func NewHealthHandler(version, environment string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		checks:      checks,
		timeout:     3 * time.Second,
		version:     version,
		environment: environment,
		started:     time.Now(),
	}
}

func (h *HealthHandler) live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response(HealthStatusPass, nil))
}

// ready pings every dependency concurrently.
func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(h.checks))
		status  = HealthStatusPass
	)
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			start := time.Now()
			res := HealthCheckResult{Status: HealthStatusPass}
			if err := p.Ping(ctx); err != nil {
				res.Status = HealthStatusFail
				res.Error = err.Error()
			}
			res.ResponseTime = time.Since(start).String()

			mu.Lock()
			results[name] = res
			if res.Status == HealthStatusFail {
				status = HealthStatusFail
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	code := http.StatusOK
	if status == HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h.response(status, results))
}

func (h *HealthHandler) response(status HealthStatus, checks map[string]HealthCheckResult) HealthResponse {
	return HealthResponse{
		Status:      status,
		Version:     h.version,
		Environment: h.environment,
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		Checks:      checks,
	}
}
