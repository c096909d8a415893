package prometheus

// Label values used across the app metrics.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
	OutcomeLimited = "limited"
)

// AppMetrics bundles every metric the backend emits.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec // method, path, status_code
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Scan pipeline
	ScanRequestsTotal CounterVec // result: hit | miss
	ScanDuration      HistogramVec
	ScanCellsScored   CounterVec
	ScanCacheRaces    CounterVec

	// Hotspot detection
	HotspotsDetected CounterVec // strategy

	// Analysis gate
	AnalysisTotal       CounterVec // outcome: success | failure | dropped | limited
	AnalysisDuration    HistogramVec
	AnalysisPendingSkew CounterVec // cells whose pending flag disagreed with the analysis table

	// Missions
	MissionsCreated   CounterVec
	MissionsCompleted CounterVec

	// Infrastructure
	DBPoolAcquired GaugeVec
	CacheOpsTotal  CounterVec // result: hit | miss
}

var (
	httpDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	scanDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	// External analyzer calls include imagery fetch plus model latency.
	analysisDurationBuckets = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
)

// NewAppMetrics registers the full metric set.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: c.RegisterCounter("http_requests_total",
			"HTTP requests served", "method", "path", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency", httpDurationBuckets, "method", "path"),
		HTTPActiveRequests: c.RegisterGauge("http_active_requests",
			"In-flight HTTP requests", "method"),

		ScanRequestsTotal: c.RegisterCounter("scan_requests_total",
			"Grid scans by cache outcome", "result"),
		ScanDuration: c.RegisterHistogram("scan_duration_seconds",
			"End-to-end grid scan latency", scanDurationBuckets, "result"),
		ScanCellsScored: c.RegisterCounter("scan_cells_scored_total",
			"Child cells scored during scans"),
		ScanCacheRaces: c.RegisterCounter("scan_cache_races_total",
			"Concurrent scans resolved via the parent unique constraint"),

		HotspotsDetected: c.RegisterCounter("hotspots_detected_total",
			"Hotspot cells flagged, by strategy", "strategy"),

		AnalysisTotal: c.RegisterCounter("analysis_total",
			"Cell analyses by outcome", "outcome"),
		AnalysisDuration: c.RegisterHistogram("analysis_duration_seconds",
			"External analyzer latency", analysisDurationBuckets, "provider"),
		AnalysisPendingSkew: c.RegisterCounter("analysis_pending_skew_total",
			"Cells marked pending that already had an analysis row"),

		MissionsCreated: c.RegisterCounter("missions_created_total",
			"Missions generated from analyses"),
		MissionsCompleted: c.RegisterCounter("missions_completed_total",
			"Missions transitioned to completed"),

		DBPoolAcquired: c.RegisterGauge("db_pool_acquired_conns",
			"Acquired connections in the pgx pool", "pool"),
		CacheOpsTotal: c.RegisterCounter("cache_ops_total",
			"Parent fast-path cache lookups", "result"),
	}
}
