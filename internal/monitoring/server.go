package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes build metrics over HTTP:
//
//	/metrics  Prometheus exposition of the gatherer
//	/summary  per-operation totals of the collector
//	/builds   recent builds, ?failed=true keeps failures only
//	/health   liveness
type Server struct {
	collector *MetricsCollector
	server    *http.Server
}

// NewMonitoringServer creates a server listening on port.
func NewMonitoringServer(collector *MetricsCollector, gatherer prometheus.Gatherer, port int) *Server {
	ms := &Server{collector: collector}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/summary", getOnly(ms.handleSummary))
	mux.HandleFunc("/builds", getOnly(ms.handleBuilds))
	mux.HandleFunc("/health", getOnly(ms.handleHealth))

	ms.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
	}
	return ms
}

// Handler returns the HTTP handler of the server.
func (ms *Server) Handler() http.Handler {
	return ms.server.Handler
}

// Start serves until Stop is called.
func (ms *Server) Start() error {
	return ms.server.ListenAndServe()
}

// Stop closes the listener and all connections.
func (ms *Server) Stop() error {
	return ms.server.Close()
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ms *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ms.collector.GetSummary())
}

func (ms *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	builds := ms.collector.Recent()
	if r.URL.Query().Get("failed") == "true" {
		failed := builds[:0]
		for _, b := range builds {
			if b.Failed() {
				failed = append(failed, b)
			}
		}
		builds = failed
	}
	writeJSON(w, builds)
}

func (ms *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"enabled":   ms.collector.IsEnabled(),
	})
}
