package features

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/pkg/logger"
)

// Rolling window lengths are part of the feature contract: roll7_yield,
// roll14_yield and roll14_batch are named inputs of the trained models.
const (
	yieldWindowShort = 7
	yieldWindowLong  = 14
	batchWindow      = 14
)

// UnknownLabel is the fallback rejection-reason label when no stage
// qualifies.
const UnknownLabel = "UNKNOWN"

// PairKey identifies a (sku, vendor) segment.
type PairKey struct {
	SKU    string
	Vendor string
}

type segmentKey struct {
	Date   time.Time
	SKU    string
	Vendor string
}

// Row is one inspection event augmented with derived features.
type Row struct {
	models.InspectionEvent
	IsAccepted  int
	IsRejected  int
	DayOfWeek   int
	WeekOfYear  int
	Month       int
	DayOfMonth  int
	BatchSize   int
	Roll7Yield  float64
	Roll14Yield float64
	Roll14Batch float64
}

// DailyBatch is one (date, sku, vendor) batch-size bucket.
type DailyBatch struct {
	Date      time.Time
	SKU       string
	Vendor    string
	BatchSize int
}

// PairStats holds the rolling values for a (sku, vendor) segment.
type PairStats struct {
	Roll7Yield  float64
	Roll14Yield float64
	Roll14Batch float64
}

// Frame is the engineered training frame every downstream stage reads.
type Frame struct {
	Rows            []Row
	DailyBatches    []DailyBatch
	GlobalYieldMean float64
	GlobalBatchMean float64
}

type Engine struct {
	statuses       *models.RejectionStatusSets
	acceptSentinel string
}

func NewEngine(statuses *models.RejectionStatusSets, acceptSentinel string) *Engine {
	return &Engine{
		statuses:       statuses,
		acceptSentinel: acceptSentinel,
	}
}

// Build derives per-row flags, calendar features, batch sizes and the
// shift-by-one rolling means. Rolling features for a date use only days
// strictly before it; a segment's first day falls back to the global
// acceptance mean (yield) or its own batch size (batch).
func (e *Engine) Build(events []models.InspectionEvent) (*Frame, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no inspection events in training window")
	}

	rows := make([]Row, len(events))
	batchSizes := make(map[segmentKey]int)
	type tally struct{ total, accepted int }
	daily := make(map[segmentKey]*tally)

	for i, ev := range events {
		r := Row{InspectionEvent: ev}
		// Acceptance is an exact match on the final-stage sentinel;
		// rejection-set membership is case-insensitive.
		if ev.CSStatus == e.acceptSentinel {
			r.IsAccepted = 1
		}
		if e.statuses.AnyRejected(ev) {
			r.IsRejected = 1
		}
		r.DayOfWeek = DayOfWeek(ev.EventDate)
		_, r.WeekOfYear = ev.EventDate.ISOWeek()
		r.Month = int(ev.EventDate.Month())
		r.DayOfMonth = ev.EventDate.Day()
		rows[i] = r

		key := segmentKey{ev.EventDate, ev.SKU, ev.Vendor}
		batchSizes[key]++
		t := daily[key]
		if t == nil {
			t = &tally{}
			daily[key] = t
		}
		t.total++
		t.accepted += r.IsAccepted
	}

	flags := make(stats.Float64Data, len(rows))
	for i := range rows {
		flags[i] = float64(rows[i].IsAccepted)
	}
	globalYield, err := stats.Mean(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to compute global yield mean: %w", err)
	}

	pairDates := make(map[PairKey][]time.Time)
	for key := range daily {
		pk := PairKey{key.SKU, key.Vendor}
		pairDates[pk] = append(pairDates[pk], key.Date)
	}
	for pk := range pairDates {
		dates := pairDates[pk]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}

	rolling := make(map[segmentKey]PairStats, len(daily))
	for pk, dates := range pairDates {
		yields := make([]float64, len(dates))
		batches := make([]float64, len(dates))
		for i, d := range dates {
			key := segmentKey{d, pk.SKU, pk.Vendor}
			t := daily[key]
			yields[i] = float64(t.accepted) / float64(t.total)
			batches[i] = float64(batchSizes[key])
		}
		for i, d := range dates {
			rolling[segmentKey{d, pk.SKU, pk.Vendor}] = PairStats{
				Roll7Yield:  trailingMean(yields, i, yieldWindowShort, globalYield),
				Roll14Yield: trailingMean(yields, i, yieldWindowLong, globalYield),
				Roll14Batch: trailingMean(batches, i, batchWindow, batches[i]),
			}
		}
	}

	var batchSum float64
	for i := range rows {
		key := segmentKey{rows[i].EventDate, rows[i].SKU, rows[i].Vendor}
		rows[i].BatchSize = batchSizes[key]
		ps := rolling[key]
		rows[i].Roll7Yield = ps.Roll7Yield
		rows[i].Roll14Yield = ps.Roll14Yield
		rows[i].Roll14Batch = ps.Roll14Batch
		batchSum += float64(rows[i].BatchSize)
	}

	dailyBatches := make([]DailyBatch, 0, len(batchSizes))
	for key, size := range batchSizes {
		dailyBatches = append(dailyBatches, DailyBatch{
			Date:      key.Date,
			SKU:       key.SKU,
			Vendor:    key.Vendor,
			BatchSize: size,
		})
	}
	sort.Slice(dailyBatches, func(i, j int) bool {
		a, b := dailyBatches[i], dailyBatches[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.Vendor < b.Vendor
	})

	frame := &Frame{
		Rows:            rows,
		DailyBatches:    dailyBatches,
		GlobalYieldMean: globalYield,
		GlobalBatchMean: batchSum / float64(len(rows)),
	}

	logger.Info("Feature engineering complete",
		zap.Int("rows", len(rows)),
		zap.Int("daily_segments", len(dailyBatches)),
		zap.Float64("global_yield_mean", globalYield),
	)

	return frame, nil
}

// PrimaryReason derives the rejection-reason label for a row by stage
// priority VQC, then FT, then CS. A stage contributes only when its status
// is in that stage's rejection set and its reason is present.
func (e *Engine) PrimaryReason(ev models.InspectionEvent) string {
	if r := strings.TrimSpace(ev.VQCReason); r != "" && e.statuses.VQCRejected(ev.VQCStatus) {
		return r
	}
	if r := strings.TrimSpace(ev.FTReason); r != "" && e.statuses.FTRejected(ev.FTStatus) {
		return r
	}
	if r := strings.TrimSpace(ev.CSReason); r != "" && e.statuses.CSRejected(ev.CSStatus) {
		return r
	}
	return UnknownLabel
}

// LatestPairStats returns each (sku, vendor) segment's rolling values from
// its most recent training date.
func (f *Frame) LatestPairStats() map[PairKey]PairStats {
	latestDate := make(map[PairKey]time.Time)
	out := make(map[PairKey]PairStats)
	for _, r := range f.Rows {
		pk := PairKey{r.SKU, r.Vendor}
		if seen, ok := latestDate[pk]; ok && r.EventDate.Before(seen) {
			continue
		}
		latestDate[pk] = r.EventDate
		out[pk] = PairStats{
			Roll7Yield:  r.Roll7Yield,
			Roll14Yield: r.Roll14Yield,
			Roll14Batch: r.Roll14Batch,
		}
	}
	return out
}

// RecentBatchAverages returns the mean daily batch size per (sku, vendor)
// over dates on or after cutoff. Used to estimate upcoming batch quantity.
func (f *Frame) RecentBatchAverages(cutoff time.Time) map[PairKey]float64 {
	sums := make(map[PairKey]float64)
	counts := make(map[PairKey]int)
	for _, b := range f.DailyBatches {
		if b.Date.Before(cutoff) {
			continue
		}
		pk := PairKey{b.SKU, b.Vendor}
		sums[pk] += float64(b.BatchSize)
		counts[pk]++
	}
	out := make(map[PairKey]float64, len(sums))
	for pk, sum := range sums {
		out[pk] = sum / float64(counts[pk])
	}
	return out
}

// DayOfWeek maps a date to Monday=0 .. Sunday=6.
func DayOfWeek(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// trailingMean averages the window values strictly before position i,
// with a minimum of one period. Position 0 has no history and takes the
// fallback value.
func trailingMean(series []float64, i, window int, fallback float64) float64 {
	if i == 0 {
		return fallback
	}
	lo := i - window
	if lo < 0 {
		lo = 0
	}
	sum := 0.0
	for _, v := range series[lo:i] {
		sum += v
	}
	return sum / float64(i-lo)
}
