package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_forecast_runs_total",
			Help: "Total pipeline runs by outcome",
		},
		[]string{"status"},
	)

	RunDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_run_duration_seconds",
			Help: "Wall-clock duration of the last pipeline run",
		},
	)

	RowsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_rows_loaded",
			Help: "Inspection events loaded for the last training window",
		},
	)

	CombinationsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_combinations_total",
			Help: "Distinct combinations observed in training data",
		},
	)

	CombinationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_combinations_active",
			Help: "Combinations kept after recency/frequency suppression",
		},
	)

	YieldCVMAE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qa_forecast_yield_cv_mae",
			Help: "Cross-validated mean absolute error of the yield regressors",
		},
		[]string{"model"},
	)

	ClassifierCVAccuracy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_classifier_cv_accuracy",
			Help: "Cross-validated accuracy of the rejection-reason classifier",
		},
	)

	ClassifierSkipped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_classifier_skipped",
			Help: "1 when the rejection classifier was skipped for lack of data",
		},
	)

	ForecastRowsWritten = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_forecast_rows_written",
			Help: "Forecast rows persisted by the last run",
		},
	)
)

var registry = prometheus.NewRegistry()

func Init() {
	registry.MustRegister(RunsTotal)
	registry.MustRegister(RunDuration)
	registry.MustRegister(RowsLoaded)
	registry.MustRegister(CombinationsTotal)
	registry.MustRegister(CombinationsActive)
	registry.MustRegister(YieldCVMAE)
	registry.MustRegister(ClassifierCVAccuracy)
	registry.MustRegister(ClassifierSkipped)
	registry.MustRegister(ForecastRowsWritten)
}

// Push publishes the collected run metrics to the push gateway. The pipeline
// is a batch job, so there is no scrape endpoint to expose.
func Push(gateway, job, runID string) error {
	return push.New(gateway, job).
		Gatherer(registry).
		Grouping("run_id", runID).
		Push()
}
