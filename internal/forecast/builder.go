package forecast

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/features"
	"github.com/qa-forecast/backend/internal/model"
	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/pkg/logger"
)

// SegmentStats are the per-(sku, vendor) values the builder looks up for
// every combination, precomputed once from the training frame.
type SegmentStats struct {
	Latest      map[features.PairKey]features.PairStats
	AvgBatch    map[features.PairKey]float64
	GlobalYield float64
	GlobalBatch float64
}

// Builder generates the forecast table: horizon days x active combinations.
type Builder struct {
	HorizonDays int
	TopReasons  int
	RFWeight    float64
	GBTWeight   float64

	RF      model.Regressor
	GBT     model.Regressor
	Reasons *ReasonModel
}

type comboState struct {
	combo          Combination
	roll7Yield     float64
	roll14Yield    float64
	roll14Batch    float64
	predictedBatch float64
	batchQty       int
}

// Build produces one ForecastRow per (day offset, active combination).
// Per-combination stats are resolved once up front; the inner loop only
// varies calendar features.
func (b *Builder) Build(trainEnd time.Time, combos []Combination, segs SegmentStats, generatedAt time.Time) []models.ForecastRow {
	states := make([]comboState, len(combos))
	for i, c := range combos {
		pk := features.PairKey{SKU: c.SKU, Vendor: c.Vendor}

		roll7, roll14, roll14Batch := segs.GlobalYield, segs.GlobalYield, segs.GlobalBatch
		if ps, ok := segs.Latest[pk]; ok {
			roll7, roll14, roll14Batch = ps.Roll7Yield, ps.Roll14Yield, ps.Roll14Batch
		}

		predictedBatch, ok := segs.AvgBatch[pk]
		if !ok {
			predictedBatch = roll14Batch
		}

		states[i] = comboState{
			combo:          c,
			roll7Yield:     roll7,
			roll14Yield:    roll14,
			roll14Batch:    roll14Batch,
			predictedBatch: predictedBatch,
			batchQty:       int(math.Round(predictedBatch)),
		}
	}

	rows := make([]models.ForecastRow, 0, b.HorizonDays*len(states))
	baseDate := trainEnd.AddDate(0, 0, 1)

	for offset := 0; offset < b.HorizonDays; offset++ {
		forecastDate := baseDate.AddDate(0, 0, offset)
		dow := features.DayOfWeek(forecastDate)
		_, week := forecastDate.ISOWeek()
		month := int(forecastDate.Month())
		dom := forecastDate.Day()

		for _, st := range states {
			c := st.combo
			featYield := []float64{
				float64(c.SKUCode), float64(c.VendorCode), float64(c.SizeCode), float64(c.LineCode),
				float64(dow), float64(week), float64(month), float64(dom),
				st.roll7Yield, st.roll14Yield, st.roll14Batch, st.predictedBatch,
			}

			rfPred := b.RF.Predict(featYield)
			gbtPred := b.GBT.Predict(featYield)
			ensemble := clamp01(b.RFWeight*rfPred + b.GBTWeight*gbtPred)

			goodUnits := int(math.Round(ensemble * float64(st.batchQty)))

			// Models agreeing implies higher confidence. A heuristic proxy,
			// not a calibrated probability.
			confidence := clamp01(1.0 - math.Abs(rfPred-gbtPred))

			slots := padSlots(nil)
			if b.Reasons != nil {
				featClf := []float64{
					float64(c.SKUCode), float64(c.VendorCode), float64(c.SizeCode), float64(c.LineCode),
					float64(dow), float64(month), st.roll14Yield,
				}
				slots = padSlots(b.Reasons.Top(featClf, b.TopReasons))
			}

			rows = append(rows, models.ForecastRow{
				ForecastDate:        forecastDate,
				SKU:                 c.SKU,
				Vendor:              c.Vendor,
				Size:                c.Size,
				Line:                c.Line,
				PredictedBatchQty:   st.batchQty,
				ForecastedYieldRate: round4(ensemble),
				ForecastedGoodUnits: goodUnits,
				RFYieldPrediction:   round4(clamp01(rfPred)),
				XGBYieldPrediction:  round4(clamp01(gbtPred)),
				ModelConfidence:     round4(confidence),
				TopReasons:          slots,
				GeneratedAt:         generatedAt,
			})
		}
	}

	logger.Info("Forecast generated",
		zap.Int("rows", len(rows)),
		zap.Int("horizon_days", b.HorizonDays),
		zap.Int("combinations", len(states)),
	)

	return rows
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
