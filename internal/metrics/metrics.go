// Package metrics provides Prometheus metrics for the query pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. The boundary layer is
// responsible for exposing the registry; the core only increments.
type Metrics struct {
	DocumentsProcessed prometheus.Counter
	DocumentsFailed    prometheus.Counter
	QueriesTotal       *prometheus.CounterVec
	LLMFallbacksTotal  prometheus.Counter
	IndexedVectors     prometheus.Gauge
}

// New creates and registers all pipeline metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "docquery_documents_processed_total",
			Help: "Documents successfully extracted, chunked, and indexed",
		}),
		DocumentsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "docquery_documents_failed_total",
			Help: "Documents whose processing pipeline failed",
		}),
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docquery_queries_total",
			Help: "Questions answered, by outcome",
		}, []string{"outcome"}),
		LLMFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "docquery_llm_fallbacks_total",
			Help: "Language-model calls that returned the fallback payload",
		}),
		IndexedVectors: f.NewGauge(prometheus.GaugeOpts{
			Name: "docquery_indexed_vectors",
			Help: "Vectors currently stored in the index",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
