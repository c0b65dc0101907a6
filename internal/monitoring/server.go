package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

// Server provides HTTP endpoints for watching parse sessions.
type Server struct {
	collector *MetricsCollector
	server    *http.Server
}

// NewMonitoringServer creates a new monitoring server listening on addr.
func NewMonitoringServer(collector *MetricsCollector, addr string) *Server {
	mux := http.NewServeMux()

	server := &Server{
		collector: collector,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
		},
	}

	mux.HandleFunc("/metrics", server.handleMetrics)
	mux.HandleFunc("/summary", server.handleSummary)
	mux.HandleFunc("/health", server.handleHealth)

	return server
}

// Start starts the monitoring server. It blocks until the server stops.
func (ms *Server) Start() error {
	err := ms.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the monitoring server.
func (ms *Server) Stop() error {
	return ms.server.Close()
}

// Handler returns the HTTP handler serving the endpoints.
func (ms *Server) Handler() http.Handler {
	return ms.server.Handler
}

func (ms *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, ms.collector.GetMetrics())
}

func (ms *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, ms.collector.GetSummary())
}

func (ms *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"enabled":   ms.collector.IsEnabled(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
