package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpPanicsTotal counts panics recovered by the HTTP middleware.
	HttpPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight_server",
		Name:      "http_panics_total",
		Help:      "Number of recovered HTTP handler panics.",
	})

	// InsightsImportedTotal counts imported insights by type.
	InsightsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight_server",
		Name:      "insights_imported_total",
		Help:      "Number of insights imported, by insight type.",
	}, []string{"type"})

	// AnnotationsTotal counts annotate outcomes by type and status.
	AnnotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight_server",
		Name:      "annotations_total",
		Help:      "Number of annotation verdicts, by insight type and result status.",
	}, []string{"type", "status"})
)
