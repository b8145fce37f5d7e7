package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the first-basket worker

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_api_calls_total",
			Help: "Total number of NBA stats API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbafirst_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Store metrics
	GamesUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_games_upserted_total",
			Help: "Total number of game upserts",
		},
		[]string{"status"},
	)

	EventsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbafirst_first_basket_events_total",
			Help: "Total number of first basket events recorded",
		},
	)

	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_conflicts_total",
			Help: "Total number of write conflicts rejected",
		},
		[]string{"kind"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbafirst_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbafirst_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbafirst_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbafirst_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// Refresh metrics
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_refresh_cycles_total",
			Help: "Total number of refresh cycles",
		},
		[]string{"type", "status"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbafirst_refresh_duration_seconds",
			Help:    "Duration of refresh cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	SeasonExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_season_exports_total",
			Help: "Total number of season snapshot exports",
		},
		[]string{"status"},
	)

	// Model metrics
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nbafirst_training_duration_seconds",
			Help:    "Duration of model training in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60},
		},
	)

	TrainingSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbafirst_training_samples",
			Help: "Number of samples in the last training set",
		},
	)

	ModelTrainedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbafirst_model_trained_at_seconds",
			Help: "Unix time the model was last trained",
		},
	)

	PredictionsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbafirst_predictions_generated_total",
			Help: "Total number of game predictions generated",
		},
	)

	PredictionsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbafirst_predictions_failed_total",
			Help: "Total number of prediction attempts that failed",
		},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbafirst_uptime_seconds",
			Help: "Worker uptime in seconds",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbafirst_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordRefresh records a refresh cycle outcome
func RecordRefresh(refreshType, status string, duration float64) {
	RefreshCyclesTotal.WithLabelValues(refreshType, status).Inc()
	RefreshDuration.WithLabelValues(refreshType).Observe(duration)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
