package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "solarfarm_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"
	resultNotFound = "not_found"
)

var (
	registerOnce sync.Once

	evolutionTicks   *prometheus.CounterVec
	evolutionLatency *prometheus.HistogramVec

	cleaningsTotal *prometheus.CounterVec

	sensorIngestTotal   *prometheus.CounterVec
	sensorIngestLatency *prometheus.HistogramVec

	streamSubscribers prometheus.Gauge
	streamDropped     prometheus.Counter

	persistenceErrors *prometheus.CounterVec

	farmEfficiency      prometheus.Gauge
	panelsNeedCleaning  prometheus.Gauge
	alertsRaisedTotal   *prometheus.CounterVec
	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers farm metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		evolutionTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evolution_ticks_total",
				Help: "Total evolution ticks by result",
			},
			[]string{"result"},
		)
		evolutionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evolution_tick_latency_seconds",
				Help:    "Evolution tick latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		cleaningsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "panel_cleanings_total",
				Help: "Total panel cleanings by trigger",
			},
			[]string{"trigger"},
		)

		sensorIngestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sensor_ingest_total",
				Help: "Total sensor readings by result",
			},
			[]string{"result"},
		)
		sensorIngestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sensor_ingest_latency_seconds",
				Help:    "Sensor ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		streamSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_subscribers",
				Help: "Connected live feed subscribers",
			},
		)
		streamDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_dropped_snapshots_total",
				Help: "Snapshots dropped because a subscriber buffer was full",
			},
		)

		persistenceErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persistence_errors_total",
				Help: "Persistence failures by collection",
			},
			[]string{"collection"},
		)

		farmEfficiency = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "farm_efficiency_percent",
				Help: "Mean efficiency of active panels",
			},
		)
		panelsNeedCleaning = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "panels_needing_cleaning",
				Help: "Active panels currently needing cleaning",
			},
		)
		alertsRaisedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_raised_total",
				Help: "Panel alerts raised by type",
			},
			[]string{"type"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total sector report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Sector report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			evolutionTicks,
			evolutionLatency,
			cleaningsTotal,
			sensorIngestTotal,
			sensorIngestLatency,
			streamSubscribers,
			streamDropped,
			persistenceErrors,
			farmEfficiency,
			panelsNeedCleaning,
			alertsRaisedTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveEvolutionTick records tick duration and result.
func ObserveEvolutionTick(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if evolutionTicks != nil {
		evolutionTicks.WithLabelValues(result).Inc()
	}
	if evolutionLatency != nil {
		evolutionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddCleanings increments the cleaning counter for a trigger.
func AddCleanings(trigger string, count int) {
	if count <= 0 {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	if cleaningsTotal != nil {
		cleaningsTotal.WithLabelValues(trigger).Add(float64(count))
	}
}

// ObserveSensorIngest records ingest duration and result.
func ObserveSensorIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sensorIngestTotal != nil {
		sensorIngestTotal.WithLabelValues(result).Inc()
	}
	if sensorIngestLatency != nil {
		sensorIngestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// SetStreamSubscribers sets the connected subscriber gauge.
func SetStreamSubscribers(n int) {
	if streamSubscribers != nil {
		streamSubscribers.Set(float64(n))
	}
}

// IncStreamDropped counts one dropped snapshot.
func IncStreamDropped() {
	if streamDropped != nil {
		streamDropped.Inc()
	}
}

// IncPersistenceError counts a failed write or read against a collection.
func IncPersistenceError(collection string) {
	if collection == "" {
		collection = "unknown"
	}
	if persistenceErrors != nil {
		persistenceErrors.WithLabelValues(collection).Inc()
	}
}

// SetFarmGauges publishes the latest farm aggregates.
func SetFarmGauges(efficiency float64, needingCleaning int) {
	if farmEfficiency != nil {
		farmEfficiency.Set(efficiency)
	}
	if panelsNeedCleaning != nil {
		panelsNeedCleaning.Set(float64(needingCleaning))
	}
}

// IncAlertRaised counts a raised alert.
func IncAlertRaised(alertType string) {
	if alertType == "" {
		alertType = "unknown"
	}
	if alertsRaisedTotal != nil {
		alertsRaisedTotal.WithLabelValues(alertType).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected
	ResultNotFound = resultNotFound
)
