package http

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 5 * time.Second

// HealthChecker probes one dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RealtimeStats reports the fan-out state shown on the detailed health page.
type RealtimeStats struct {
	Topics  int `json:"topics"`
	Sockets int `json:"sockets"`
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves the liveness, readiness and detailed health probes.
type HealthHandler struct {
	checks   map[string]HealthChecker
	realtime func() RealtimeStats
	started  time.Time
	version  string
}

// NewHealthHandler keeps the non-nil probes of checks, keyed by dependency
// name. realtime may be nil.
func NewHealthHandler(checks map[string]HealthChecker, version string, realtime func() RealtimeStats) *HealthHandler {
	active := make(map[string]HealthChecker, len(checks))
	for name, c := range checks {
		if c != nil {
			active[name] = c
		}
	}
	return &HealthHandler{checks: active, realtime: realtime, started: time.Now(), version: version}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness answers as long as the process serves HTTP. Dependencies
// are not probed so a database outage never restarts the pod.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: now()})
}

// HandleReadiness fails with 503 while any dependency is down.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(r.Context(), "unhealthy")
	WriteJSON(w, readinessStatus(ok), report)
}

// HandleHealth adds runtime and fan-out figures to the readiness report.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(r.Context(), "degraded")

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := struct {
		HealthResponse
		Goroutines int            `json:"goroutines"`
		HeapBytes  uint64         `json:"heap_alloc_bytes"`
		SysBytes   uint64         `json:"sys_bytes"`
		NumGC      uint32         `json:"num_gc"`
		Realtime   *RealtimeStats `json:"realtime,omitempty"`
	}{
		HealthResponse: report,
		Goroutines:     runtime.NumGoroutine(),
		HeapBytes:      mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
	}
	if h.realtime != nil {
		stats := h.realtime()
		body.Realtime = &stats
	}
	WriteJSON(w, readinessStatus(ok), body)
}

func (h *HealthHandler) report(ctx context.Context, failing string) (HealthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	checks, ok := h.runChecks(ctx)
	status := "healthy"
	if !ok {
		status = failing
	}
	return HealthResponse{
		Status:    status,
		Timestamp: now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    checks,
	}, ok
}

// runChecks probes every dependency concurrently so one slow probe does not
// eat the others' time budget.
func (h *HealthHandler) runChecks(ctx context.Context) (map[string]Check, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Check, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, c HealthChecker) {
			defer wg.Done()
			results[i] = probe(ctx, c)
		}(i, h.checks[name])
	}
	wg.Wait()

	out := make(map[string]Check, len(names))
	ok := true
	for i, name := range names {
		out[name] = results[i]
		ok = ok && results[i].Status == "healthy"
	}
	return out, ok
}

func probe(ctx context.Context, c HealthChecker) Check {
	start := time.Now()
	err := c.Ping(ctx)
	check := Check{Status: "healthy", Latency: time.Since(start).String()}
	if err != nil {
		check.Status = "unhealthy"
		check.Message = err.Error()
	}
	return check
}

func readinessStatus(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
