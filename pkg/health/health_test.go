package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func failing(msg string) PingFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestChecker_FailingSinkDegrades(t *testing.T) {
	c := NewChecker()
	c.Sink("redis", up)
	c.Sink("kafka", failing("no brokers"))

	report := c.Run(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Ready())
	assert.Equal(t, StatusUp, report.Components["redis"].Status)
	assert.Equal(t, "no brokers", report.Components["kafka"].Message)
	assert.False(t, report.Components["kafka"].Required)
	assert.Equal(t, []string{"kafka"}, report.Failing())
}

func TestChecker_FailingRequiredIsDown(t *testing.T) {
	c := NewChecker()
	c.Sink("redis", failing("x"))
	c.Require("kafka", failing("unreachable"))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.False(t, report.Ready())
	assert.True(t, report.Components["kafka"].Required)
	assert.Equal(t, []string{"kafka", "redis"}, report.Failing())
}

func TestChecker_RequireReplacesSink(t *testing.T) {
	c := NewChecker()
	c.Sink("kafka", up)
	c.Require("kafka", failing("gone"))

	report := c.Run(context.Background())
	require.Len(t, report.Components, 1)
	assert.Equal(t, StatusDown, report.Components["kafka"].Status)
}

func TestChecker_SlowPingTimesOut(t *testing.T) {
	c := NewChecker()
	c.Sink("postgres", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	report := c.Run(ctx)
	assert.Less(t, time.Since(start), CheckTimeout)
	assert.Equal(t, StatusDegraded, report.Components["postgres"].Status)
}

func TestChecker_EmptyIsUp(t *testing.T) {
	assert.Equal(t, StatusUp, NewChecker().Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name     string
		register func(c *Checker)
		code     int
		status   Status
	}{
		{"degraded sink stays ready", func(c *Checker) { c.Sink("postgres", failing("refused")) }, http.StatusOK, StatusDegraded},
		{"required backend down", func(c *Checker) { c.Require("kafka", failing("refused")) }, http.StatusServiceUnavailable, StatusDown},
		{"all up", func(c *Checker) { c.Sink("redis", up); c.Require("kafka", up) }, http.StatusOK, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			tt.register(c)

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rec.Code)
			var report Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.status, report.Status)
		})
	}
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker()
	c.Require("kafka", failing("down"))

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
