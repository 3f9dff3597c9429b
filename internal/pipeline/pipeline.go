package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/cache/redis"
	"github.com/qa-forecast/backend/internal/encoding"
	"github.com/qa-forecast/backend/internal/features"
	"github.com/qa-forecast/backend/internal/forecast"
	"github.com/qa-forecast/backend/internal/metrics"
	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/internal/storage/sqlite"
	"github.com/qa-forecast/backend/pkg/config"
	"github.com/qa-forecast/backend/pkg/logger"
)

// Pipeline is the run context: every stage hangs off this object and no
// state survives between runs.
type Pipeline struct {
	cfg   *config.Config
	db    *sqlite.Client
	cache *redis.Client
	runID string
}

func New(cfg *config.Config, db *sqlite.Client, cache *redis.Client) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		db:    db,
		cache: cache,
		runID: uuid.New().String(),
	}
}

func (p *Pipeline) RunID() string {
	return p.runID
}

// Run executes the full batch: load, engineer, encode, train, suppress,
// forecast, persist, verify. Any error aborts before the persist step, so
// the previous forecast stays in place as the last known good.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()

	trainStart, trainEnd, err := p.cfg.Training.Window()
	if err != nil {
		return err
	}

	logger.Info("Starting forecast pipeline",
		zap.String("run_id", p.runID),
		zap.String("train_start", p.cfg.Training.StartDate),
		zap.String("train_end", p.cfg.Training.EndDate),
		zap.Int("horizon_days", p.cfg.Forecast.HorizonDays),
	)

	events, err := p.db.LoadInspectionEvents(ctx, trainStart, trainEnd, p.cfg.Warehouse.ExcludedLines)
	if err != nil {
		return fmt.Errorf("data load failed: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no inspection events between %s and %s",
			p.cfg.Training.StartDate, p.cfg.Training.EndDate)
	}
	metrics.RowsLoaded.Set(float64(len(events)))
	logger.Info("Training data loaded", zap.Int("rows", len(events)))

	statuses := models.NewRejectionStatusSets(
		p.cfg.Statuses.VQCRejected,
		p.cfg.Statuses.FTRejected,
		p.cfg.Statuses.CSRejected,
	)
	engine := features.NewEngine(statuses, p.cfg.Statuses.AcceptSentinel)
	frame, err := engine.Build(events)
	if err != nil {
		return fmt.Errorf("feature engineering failed: %w", err)
	}

	enc := fitEncoders(events)

	rf, gbt, err := trainYieldModels(p.cfg, frame, enc)
	if err != nil {
		return err
	}

	reasonModel, err := trainReasonModel(p.cfg, frame, engine, enc)
	if err != nil {
		return err
	}
	if reasonModel == nil {
		metrics.ClassifierSkipped.Set(1)
	} else {
		metrics.ClassifierSkipped.Set(0)
	}

	selector := &forecast.Selector{
		RecencyDays:  p.cfg.Suppression.RecencyDays,
		MinFrequency: p.cfg.Suppression.MinFrequency,
	}
	combos, totalCombos, err := selector.Select(frame.Rows, enc, trainEnd)
	if err != nil {
		return err
	}
	metrics.CombinationsTotal.Set(float64(totalCombos))
	metrics.CombinationsActive.Set(float64(len(combos)))
	if len(combos) == 0 {
		return fmt.Errorf("no active combinations after suppression (%d observed)", totalCombos)
	}

	batchCutoff := trainEnd.AddDate(0, 0, -p.cfg.Rolling.BatchWindowDays)
	builder := &forecast.Builder{
		HorizonDays: p.cfg.Forecast.HorizonDays,
		TopReasons:  p.cfg.Forecast.TopReasons,
		RFWeight:    p.cfg.Models.Ensemble.RFWeight,
		GBTWeight:   p.cfg.Models.Ensemble.GBTWeight,
		RF:          rf,
		GBT:         gbt,
		Reasons:     reasonModel,
	}
	rows := builder.Build(trainEnd, combos, forecast.SegmentStats{
		Latest:      frame.LatestPairStats(),
		AvgBatch:    frame.RecentBatchAverages(batchCutoff),
		GlobalYield: frame.GlobalYieldMean,
		GlobalBatch: frame.GlobalBatchMean,
	}, time.Now().UTC())

	if err := p.db.ReplaceForecast(ctx, rows); err != nil {
		return fmt.Errorf("forecast persist failed: %w", err)
	}
	count, err := p.db.CountForecastRows(ctx)
	if err != nil {
		return fmt.Errorf("forecast verification failed: %w", err)
	}
	if count != len(rows) {
		return fmt.Errorf("forecast verification failed: wrote %d rows, found %d", len(rows), count)
	}
	metrics.ForecastRowsWritten.Set(float64(count))

	if err := p.db.EnsureForecastView(ctx); err != nil {
		return err
	}

	p.cacheSnapshot(ctx, rows)

	metrics.RunDuration.Set(time.Since(start).Seconds())
	logger.Info("Pipeline complete",
		zap.String("run_id", p.runID),
		zap.Int("forecast_rows", count),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// cacheSnapshot publishes the percentage-scaled rows for the dashboard API.
// Best effort: a cache failure never fails a run that already persisted.
func (p *Pipeline) cacheSnapshot(ctx context.Context, rows []models.ForecastRow) {
	if p.cache == nil {
		return
	}
	snapshot := make([]models.DashboardForecastRow, len(rows))
	for i, r := range rows {
		snapshot[i] = r.ToDashboardRow()
	}
	ttl := time.Duration(p.cfg.Redis.TTLHours) * time.Hour
	if err := p.cache.SetLatestForecast(ctx, snapshot, ttl); err != nil {
		logger.Warn("Failed to cache forecast snapshot", zap.Error(err))
	}
}

func fitEncoders(events []models.InspectionEvent) *encoding.DimensionEncoders {
	skus := make([]string, len(events))
	vendors := make([]string, len(events))
	sizes := make([]string, len(events))
	lines := make([]string, len(events))
	for i, ev := range events {
		skus[i] = ev.SKU
		vendors[i] = ev.Vendor
		sizes[i] = ev.Size
		lines[i] = ev.Line
	}
	return encoding.FitDimensions(skus, vendors, sizes, lines)
}
