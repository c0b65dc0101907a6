//nolint:testpackage // requires internal access to unexported types and functions
package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringServer(t *testing.T) {
	collector := NewMetricsCollector(true)
	require.NoError(t, collector.RecordOperation("parse", "a.csv", func() (OperationStats, error) {
		return OperationStats{RowsProcessed: 3}, nil
	}))
	server := NewMonitoringServer(collector, "127.0.0.1:0")
	assert.Equal(t, "127.0.0.1:0", server.server.Addr)

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var metrics []OperationMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
		require.Len(t, metrics, 1)
		assert.Equal(t, int64(3), metrics[0].RowsProcessed)
	})

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary", nil))

		var summary MetricsSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 1, summary.TotalOperations)
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var health map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, "ok", health["status"])
		assert.Equal(t, true, health["enabled"])
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/metrics", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
