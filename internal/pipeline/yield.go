package pipeline

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/encoding"
	"github.com/qa-forecast/backend/internal/features"
	"github.com/qa-forecast/backend/internal/metrics"
	"github.com/qa-forecast/backend/internal/model"
	"github.com/qa-forecast/backend/pkg/config"
	"github.com/qa-forecast/backend/pkg/logger"
)

const cvFolds = 5

type dailyKey struct {
	date   time.Time
	sku    string
	vendor string
	size   string
	line   string
}

// trainYieldModels aggregates the frame to one target row per
// (date, sku, vendor, size, line) bucket and fits both regressors on the
// same feature matrix. Cross-validated MAE is logged as a quality signal,
// never used as a gate.
func trainYieldModels(cfg *config.Config, frame *features.Frame, enc *encoding.DimensionEncoders) (*model.RandomForestRegressor, *model.GradientBoostedRegressor, error) {
	type bucket struct {
		row      features.Row
		total    int
		accepted int
	}

	groups := make(map[dailyKey]*bucket)
	for _, r := range frame.Rows {
		key := dailyKey{r.EventDate, r.SKU, r.Vendor, r.Size, r.Line}
		g := groups[key]
		if g == nil {
			g = &bucket{row: r}
			groups[key] = g
		}
		g.total++
		g.accepted += r.IsAccepted
	}

	keys := make([]dailyKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		if a.sku != b.sku {
			return a.sku < b.sku
		}
		if a.vendor != b.vendor {
			return a.vendor < b.vendor
		}
		if a.size != b.size {
			return a.size < b.size
		}
		return a.line < b.line
	})

	X := make([][]float64, 0, len(keys))
	y := make([]float64, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		r := g.row
		skuCode, vendorCode, sizeCode, lineCode, err := enc.Codes(r.SKU, r.Vendor, r.Size, r.Line)
		if err != nil {
			return nil, nil, fmt.Errorf("training row encoding failed: %w", err)
		}
		X = append(X, []float64{
			float64(skuCode), float64(vendorCode), float64(sizeCode), float64(lineCode),
			float64(r.DayOfWeek), float64(r.WeekOfYear), float64(r.Month), float64(r.DayOfMonth),
			r.Roll7Yield, r.Roll14Yield, r.Roll14Batch, float64(g.total),
		})
		y = append(y, float64(g.accepted)/float64(g.total))
	}

	logger.Info("Training yield ensemble", zap.Int("daily_records", len(X)))

	rfCfg := cfg.Models.RF
	rf := model.NewRandomForestRegressor(rfCfg.Trees, rfCfg.MaxDepth, rfCfg.Seed)
	if err := rf.Fit(X, y); err != nil {
		return nil, nil, fmt.Errorf("random forest fit failed: %w", err)
	}
	reportRegressorCV("rf", func() model.Regressor {
		return model.NewRandomForestRegressor(rfCfg.Trees, rfCfg.MaxDepth, rfCfg.Seed)
	}, X, y)

	gbtCfg := cfg.Models.GBT
	gbt := model.NewGradientBoostedRegressor(gbtCfg.Trees, gbtCfg.LearningRate, gbtCfg.MaxDepth, gbtCfg.Seed)
	if err := gbt.Fit(X, y); err != nil {
		return nil, nil, fmt.Errorf("gradient boosted trees fit failed: %w", err)
	}
	reportRegressorCV("gbt", func() model.Regressor {
		return model.NewGradientBoostedRegressor(gbtCfg.Trees, gbtCfg.LearningRate, gbtCfg.MaxDepth, gbtCfg.Seed)
	}, X, y)

	logger.Info("Yield ensemble trained",
		zap.Float64("rf_weight", cfg.Models.Ensemble.RFWeight),
		zap.Float64("gbt_weight", cfg.Models.Ensemble.GBTWeight),
	)

	return rf, gbt, nil
}

func reportRegressorCV(name string, factory func() model.Regressor, X [][]float64, y []float64) {
	score, err := model.CrossValidateMAE(factory, X, y, cvFolds)
	if err != nil {
		logger.Warn("Cross-validation skipped", zap.String("model", name), zap.Error(err))
		return
	}
	logger.Info("Cross-validation complete",
		zap.String("model", name),
		zap.Float64("cv_mae", score.Mean),
		zap.Float64("cv_mae_std", score.Std),
	)
	metrics.YieldCVMAE.WithLabelValues(name).Set(score.Mean)
}
