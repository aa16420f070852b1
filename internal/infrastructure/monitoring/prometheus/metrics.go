package prometheus

import (
	"time"
)

// AppMetrics holds every metric the docking worker exposes.
type AppMetrics struct {
	// Job queue
	JobsClaimedTotal   CounterVec
	JobsCompletedTotal CounterVec
	SliceClaimDuration HistogramVec
	QueueDepth         GaugeVec

	// Ligand pipeline
	LigandsProcessedTotal CounterVec
	LigandsSkippedTotal   CounterVec
	LigandParseDuration   HistogramVec

	// Grid map
	GridMapBuildDuration HistogramVec
	GridMapCacheHits     CounterVec

	// Monte Carlo
	MonteCarloTaskDuration HistogramVec
	MonteCarloTasksTotal   CounterVec
	BFGSIterations         HistogramVec

	// Task pool
	PoolBatchDuration HistogramVec
	PoolActiveWorkers GaugeVec
	PoolPanicsTotal   CounterVec

	// Output / storage
	SliceWriteDuration  HistogramVec
	ObjectUploadTotal   CounterVec
	ObjectUploadErrors  CounterVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultFastDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultTaskDurationBuckets   = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultJobDurationBuckets    = []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600}
	DefaultIterationBuckets      = []float64{1, 2, 5, 10, 15, 20, 30, 50}
)

// NewAppMetrics registers every docking metric against collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.JobsClaimedTotal = collector.RegisterCounter("dock_jobs_claimed_total", "Job slices claimed from the queue", "job_id")
	m.JobsCompletedTotal = collector.RegisterCounter("dock_jobs_completed_total", "Jobs whose final slice has merged", "status")
	m.SliceClaimDuration = collector.RegisterHistogram("dock_slice_claim_duration_seconds", "Time to claim a slice from the queue", DefaultFastDurationBuckets)
	m.QueueDepth = collector.RegisterGauge("dock_queue_depth", "Unclaimed slices waiting in the queue")

	m.LigandsProcessedTotal = collector.RegisterCounter("dock_ligands_processed_total", "Ligands that produced at least one result", "job_id")
	m.LigandsSkippedTotal = collector.RegisterCounter("dock_ligands_skipped_total", "Ligands skipped", "reason")
	m.LigandParseDuration = collector.RegisterHistogram("dock_ligand_parse_duration_seconds", "Ligand PDBQT parse duration", DefaultFastDurationBuckets)

	m.GridMapBuildDuration = collector.RegisterHistogram("dock_gridmap_build_duration_seconds", "Grid map slab build duration", DefaultTaskDurationBuckets)
	m.GridMapCacheHits = collector.RegisterCounter("dock_gridmap_cache_hits_total", "Grid map interaction types already cached")

	m.MonteCarloTaskDuration = collector.RegisterHistogram("dock_mc_task_duration_seconds", "Monte Carlo task duration", DefaultTaskDurationBuckets)
	m.MonteCarloTasksTotal = collector.RegisterCounter("dock_mc_tasks_total", "Monte Carlo tasks executed", "outcome")
	m.BFGSIterations = collector.RegisterHistogram("dock_bfgs_iterations", "BFGS inner iterations per local search", DefaultIterationBuckets)

	m.PoolBatchDuration = collector.RegisterHistogram("dock_pool_batch_duration_seconds", "Task pool batch wall time", DefaultTaskDurationBuckets)
	m.PoolActiveWorkers = collector.RegisterGauge("dock_pool_active_workers", "Worker goroutines currently running a task")
	m.PoolPanicsTotal = collector.RegisterCounter("dock_pool_panics_total", "Task panics recovered by the pool")

	m.SliceWriteDuration = collector.RegisterHistogram("dock_slice_write_duration_seconds", "Per-slice CSV write duration", DefaultFastDurationBuckets)
	m.ObjectUploadTotal = collector.RegisterCounter("dock_object_upload_total", "Final outputs uploaded to object storage", "bucket")
	m.ObjectUploadErrors = collector.RegisterCounter("dock_object_upload_errors_total", "Failed object storage uploads", "bucket")

	m.ServiceUptime = collector.RegisterGauge("dock_service_uptime_seconds", "Worker process uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("dock_health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("dock_errors_total", "Total errors by code", "component", "code")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics, kept for call-site symmetry
// with the collector's other Register* constructors.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

func RecordMonteCarloTask(metrics *AppMetrics, outcome string, duration time.Duration, bfgsIterations int) {
	metrics.MonteCarloTasksTotal.WithLabelValues(outcome).Inc()
	metrics.MonteCarloTaskDuration.WithLabelValues().Observe(duration.Seconds())
	metrics.BFGSIterations.WithLabelValues().Observe(float64(bfgsIterations))
}

func RecordLigandSkipped(metrics *AppMetrics, reason string) {
	metrics.LigandsSkippedTotal.WithLabelValues(reason).Inc()
}

func RecordError(metrics *AppMetrics, component, code string) {
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}
