// Package metrics exposes Prometheus counters for the trade-finance API and
// serves them on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	AuthAttempts     *prometheus.CounterVec
	ShipmentsCreated prometheus.Counter
	DocumentUploads  prometheus.Counter
	Evaluations      *prometheus.CounterVec
	EscrowOperations *prometheus.CounterVec
}

// New creates a metrics server for the given service name listening on addr.
// Hyphens in the name are mapped to underscores to form a valid namespace.
func New(name, addr string) (*MetricsServer, error) {
	name = strings.ReplaceAll(name, "-", "_")
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &MetricsServer{
		registry: registry,
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "auth_attempts_total",
			Help:      "Role proof authentications by outcome.",
		}, []string{"outcome"}),
		ShipmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: name,
			Name:      "shipments_created_total",
			Help:      "Shipments created.",
		}),
		DocumentUploads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: name,
			Name:      "document_uploads_total",
			Help:      "Trade documents uploaded or replaced.",
		}),
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "evaluations_total",
			Help:      "Evaluation decisions by subject.",
		}, []string{"subject"}),
		EscrowOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "escrow_operations_total",
			Help:      "Escrow ledger operations by kind.",
		}, []string{"kind"}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: addr, Handler: mux}

	return m, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
