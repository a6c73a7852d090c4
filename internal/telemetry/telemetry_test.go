package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsRequestAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug).With("component", "test")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = WithIdempotencyKey(ctx, "6f1c2a4e-0000-4000-8000-000000000001")
	logger.InfoContext(ctx, "order placed", "order_id", 12)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "order placed", record["msg"])
	assert.Equal(t, "req-42", record["request_id"])
	assert.Equal(t, "6f1c2a4e-0000-4000-8000-000000000001", record["idempotency_key"])
	assert.Equal(t, "test", record["component"])
	assert.Equal(t, float64(12), record["order_id"])
}

func TestContextHandler_NoAttributesWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("hello")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "request_id")
	assert.NotContains(t, record, "idempotency_key")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveOrder("committed", 2, 12*time.Millisecond)
	m.ObserveOrder("constraint", 0, 3*time.Millisecond)
	m.ObserveOrder("committed", 1, 5*time.Millisecond)
	m.ObserveRequest("POST /orders", http.StatusCreated, 20*time.Millisecond)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Orders.WithLabelValues("committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Orders.WithLabelValues("constraint")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("POST /orders", "201")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "amazonmart_orders_placed_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOrder("committed", 1, time.Millisecond)
		m.ObserveRequest("GET /health", 200, time.Millisecond)
		m.ObserveCache(true)
	})
}
