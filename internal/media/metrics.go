package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_media_uploads_total",
		Help: "Uploads by file kind and result.",
	}, []string{"kind", "result"})

	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_media_reads_total",
		Help: "Retrieval and delivery attempts by result.",
	}, []string{"result"})

	healthTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_media_storage_health_transitions_total",
		Help: "Storage health changes observed on read, by new state.",
	}, []string{"to"})

	derivativesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_media_derivatives_written_total",
		Help: "Resized image variants written to the backend.",
	})

	derivationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_media_derivation_failures_total",
		Help: "Image uploads stored without derivatives because processing failed.",
	})

	variantFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_media_variant_fallbacks_total",
		Help: "Deliveries that fell back to the original after a missing derivative.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_media_cache_hits_total",
		Help: "File record cache hits.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travel_media_cache_misses_total",
		Help: "File record cache misses.",
	})
)
