package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outfitGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outfit_generations_total",
		Help: "Outfit generation requests by result (fresh, cached, deduplicated, failed).",
	}, []string{"result"})

	outfitGenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outfit_generation_duration_seconds",
		Help:    "Time spent composing fresh outfits.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	clothingProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clothing_processing_total",
		Help: "Clothing photo processing runs by status.",
	}, []string{"status"})

	cacheEntriesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_cache_deleted_total",
		Help: "Generation cache rows removed by cleanup.",
	})
)

func RecordClothingProcessed(status string) {
	clothingProcessed.WithLabelValues(status).Inc()
}

func RecordCacheCleanup(deleted int64) {
	cacheEntriesDeleted.Add(float64(deleted))
}
