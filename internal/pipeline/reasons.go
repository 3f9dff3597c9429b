package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/encoding"
	"github.com/qa-forecast/backend/internal/features"
	"github.com/qa-forecast/backend/internal/forecast"
	"github.com/qa-forecast/backend/internal/metrics"
	"github.com/qa-forecast/backend/internal/model"
	"github.com/qa-forecast/backend/pkg/config"
	"github.com/qa-forecast/backend/pkg/logger"
)

// trainReasonModel fits the rejection-reason classifier on rows rejected at
// any stage. Reasons rarer than the configured minimum are dropped; when
// fewer than the minimum qualifying rows remain the classifier is skipped
// (degraded mode, not an error) and the caller gets nil.
func trainReasonModel(cfg *config.Config, frame *features.Frame, engine *features.Engine, enc *encoding.DimensionEncoders) (*forecast.ReasonModel, error) {
	type sample struct {
		row    features.Row
		reason string
	}

	var rejected []sample
	counts := make(map[string]int)
	for _, r := range frame.Rows {
		if r.IsRejected != 1 {
			continue
		}
		reason := engine.PrimaryReason(r.InspectionEvent)
		rejected = append(rejected, sample{row: r, reason: reason})
		counts[reason]++
	}

	kept := rejected[:0:0]
	for _, s := range rejected {
		if counts[s.reason] >= cfg.Classifier.MinReasonCount {
			kept = append(kept, s)
		}
	}

	if len(kept) < cfg.Classifier.MinRows {
		logger.Warn("Not enough rejection data to train classifier, skipping",
			zap.Int("rejected_rows", len(rejected)),
			zap.Int("qualifying_rows", len(kept)),
			zap.Int("min_rows", cfg.Classifier.MinRows),
		)
		return nil, nil
	}

	reasons := make([]string, len(kept))
	for i, s := range kept {
		reasons[i] = s.reason
	}
	labelEnc := encoding.Fit(reasons)

	X := make([][]float64, 0, len(kept))
	y := make([]int, 0, len(kept))
	for _, s := range kept {
		r := s.row
		skuCode, vendorCode, sizeCode, lineCode, err := enc.Codes(r.SKU, r.Vendor, r.Size, r.Line)
		if err != nil {
			return nil, fmt.Errorf("classifier row encoding failed: %w", err)
		}
		label, err := labelEnc.Transform(s.reason)
		if err != nil {
			return nil, fmt.Errorf("reason label encoding failed: %w", err)
		}
		X = append(X, []float64{
			float64(skuCode), float64(vendorCode), float64(sizeCode), float64(lineCode),
			float64(r.DayOfWeek), float64(r.Month), r.Roll14Yield,
		})
		y = append(y, label)
	}

	rfCfg := cfg.Models.RF
	clf := model.NewRandomForestClassifier(rfCfg.Trees, rfCfg.MaxDepth, rfCfg.Seed)
	if err := clf.Fit(X, y); err != nil {
		return nil, fmt.Errorf("rejection classifier fit failed: %w", err)
	}

	if score, err := model.CrossValidateAccuracy(func() model.ProbClassifier {
		return model.NewRandomForestClassifier(rfCfg.Trees, rfCfg.MaxDepth, rfCfg.Seed)
	}, X, y, cvFolds); err != nil {
		logger.Warn("Classifier cross-validation skipped", zap.Error(err))
	} else {
		logger.Info("Classifier cross-validation complete",
			zap.Float64("cv_accuracy", score.Mean),
			zap.Float64("cv_accuracy_std", score.Std),
		)
		metrics.ClassifierCVAccuracy.Set(score.Mean)
	}

	logger.Info("Rejection classifier trained",
		zap.Int("rows", len(kept)),
		zap.Int("classes", len(labelEnc.Classes())),
	)

	return &forecast.ReasonModel{Classifier: clf, Classes: labelEnc.Classes()}, nil
}
