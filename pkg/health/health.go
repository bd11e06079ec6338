// Package health reports on the backends around a build. Notification sinks
// (Redis, PostgreSQL, the Kafka producer) are optional: a build finishes
// without them, so a failing sink only degrades the report. A backend the
// running command cannot work without, such as the brokers a consumer reads
// from, is registered as required and takes the node out of readiness.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// CheckTimeout bounds a single ping. A ping that overruns counts as failed.
const CheckTimeout = 2 * time.Second

// PingFunc is the Ping method of a sink client.
type PingFunc func(ctx context.Context) error

// ComponentHealth is the outcome of one ping.
type ComponentHealth struct {
	Status   Status `json:"status"`
	Required bool   `json:"required,omitempty"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// Report is the combined outcome of every registered ping.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Failing lists the components that are not up, sorted.
func (r Report) Failing() []string {
	var names []string
	for name, c := range r.Components {
		if c.Status != StatusUp {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Ready reports whether every required component is up.
func (r Report) Ready() bool {
	return r.Status != StatusDown
}

type registration struct {
	name     string
	ping     PingFunc
	required bool
}

// Checker pings the registered backends.
type Checker struct {
	mu      sync.RWMutex
	entries map[string]registration
	started time.Time
}

func NewChecker() *Checker {
	return &Checker{entries: make(map[string]registration), started: time.Now()}
}

// Sink registers an optional backend. Registering a name again replaces it.
func (c *Checker) Sink(name string, ping PingFunc) {
	c.add(registration{name: name, ping: ping})
}

// Require registers a backend the command cannot run without.
func (c *Checker) Require(name string, ping PingFunc) {
	c.add(registration{name: name, ping: ping, required: true})
}

func (c *Checker) add(r registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r.name] = r
}

func (c *Checker) snapshot() []registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]registration, 0, len(c.entries))
	for _, r := range c.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Run pings every backend in parallel, each under CheckTimeout. A failed
// required backend makes the report down; a failed sink makes it degraded.
func (c *Checker) Run(ctx context.Context) Report {
	regs := c.snapshot()
	results := make([]ComponentHealth, len(regs))

	var g errgroup.Group
	for i, r := range regs {
		g.Go(func() error {
			results[i] = ping(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(regs)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, r := range regs {
		res := results[i]
		report.Components[r.name] = res
		switch {
		case res.Status == StatusDown:
			report.Status = StatusDown
		case res.Status == StatusDegraded && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

func ping(ctx context.Context, r registration) ComponentHealth {
	pctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()
	start := time.Now()
	err := r.ping(pctx)
	res := ComponentHealth{
		Status:   StatusUp,
		Required: r.required,
		Latency:  time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
		res.Status = StatusDegraded
		if r.required {
			res.Status = StatusDown
		}
	}
	return res
}

// LiveHandler answers 200 with the process uptime. It pings nothing.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 200 while every required backend is up, even if some
// sinks are degraded, and 503 otherwise. The body is the full report.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if !report.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
