package models

import (
	"math"
	"strings"
	"time"
)

// TopReasonSlots is the number of rejection-reason columns in the forecast
// table. The table schema is fixed; fewer predicted reasons are padded with
// ("N/A", 0.0).
const TopReasonSlots = 3

// InspectionEvent is one unit's journey through the VQC -> FT -> CS
// inspection stages. NULL columns from the warehouse arrive as empty strings.
type InspectionEvent struct {
	EventDate time.Time
	Line      string
	SKU       string
	Size      string
	Vendor    string
	VQCStatus string
	FTStatus  string
	CSStatus  string
	VQCReason string
	FTReason  string
	CSReason  string
}

// RejectionStatusSets holds the per-stage status values that count as a
// rejection. Membership checks are case-insensitive; an empty status is
// never a rejection.
type RejectionStatusSets struct {
	vqc map[string]struct{}
	ft  map[string]struct{}
	cs  map[string]struct{}
}

func NewRejectionStatusSets(vqc, ft, cs []string) *RejectionStatusSets {
	return &RejectionStatusSets{
		vqc: toUpperSet(vqc),
		ft:  toUpperSet(ft),
		cs:  toUpperSet(cs),
	}
}

func toUpperSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func member(set map[string]struct{}, status string) bool {
	if status == "" {
		return false
	}
	_, ok := set[strings.ToUpper(status)]
	return ok
}

func (s *RejectionStatusSets) VQCRejected(status string) bool { return member(s.vqc, status) }
func (s *RejectionStatusSets) FTRejected(status string) bool  { return member(s.ft, status) }
func (s *RejectionStatusSets) CSRejected(status string) bool  { return member(s.cs, status) }

// AnyRejected reports whether the event was rejected at any stage.
func (s *RejectionStatusSets) AnyRejected(ev InspectionEvent) bool {
	return s.VQCRejected(ev.VQCStatus) || s.FTRejected(ev.FTStatus) || s.CSRejected(ev.CSStatus)
}

// ReasonProbability is one predicted rejection reason with its probability.
type ReasonProbability struct {
	Reason      string  `json:"reason"`
	Probability float64 `json:"probability"`
}

// ForecastRow is one (forecast_date, sku, vendor, size, line) prediction.
// Field names mirror the forecast table columns consumed by the dashboard.
type ForecastRow struct {
	ForecastDate        time.Time                         `json:"forecast_date"`
	SKU                 string                            `json:"sku"`
	Vendor              string                            `json:"vendor"`
	Size                string                            `json:"size"`
	Line                string                            `json:"line"`
	PredictedBatchQty   int                               `json:"predicted_batch_qty"`
	ForecastedYieldRate float64                           `json:"forecasted_yield_rate"`
	ForecastedGoodUnits int                               `json:"forecasted_good_units"`
	RFYieldPrediction   float64                           `json:"rf_yield_prediction"`
	XGBYieldPrediction  float64                           `json:"xgb_yield_prediction"`
	ModelConfidence     float64                           `json:"model_confidence"`
	TopReasons          [TopReasonSlots]ReasonProbability `json:"top_reasons"`
	GeneratedAt         time.Time                         `json:"generated_at"`
}

// DashboardForecastRow is the percentage-scaled projection of a ForecastRow,
// matching the forecast view the dashboard reads.
type DashboardForecastRow struct {
	ForecastDate             string  `json:"forecast_date"`
	SKU                      string  `json:"sku"`
	Vendor                   string  `json:"vendor"`
	Size                     string  `json:"size"`
	Line                     string  `json:"line"`
	PredictedBatchQty        int     `json:"predicted_batch_qty"`
	ForecastedYieldPct       float64 `json:"forecasted_yield_pct"`
	ForecastedGoodUnits      int     `json:"forecasted_good_units"`
	ForecastedRejectionUnits int     `json:"forecasted_rejection_units"`
	RFYieldPct               float64 `json:"rf_yield_pct"`
	XGBYieldPct              float64 `json:"xgb_yield_pct"`
	ModelConfidencePct       float64 `json:"model_confidence_pct"`
	TopRejectionReason1      string  `json:"top_rejection_reason_1"`
	RejectionProb1Pct        float64 `json:"rejection_prob_1_pct"`
	TopRejectionReason2      string  `json:"top_rejection_reason_2"`
	RejectionProb2Pct        float64 `json:"rejection_prob_2_pct"`
	TopRejectionReason3      string  `json:"top_rejection_reason_3"`
	RejectionProb3Pct        float64 `json:"rejection_prob_3_pct"`
	GeneratedAt              int64   `json:"generated_at"`
}

// ToDashboardRow scales rates and probabilities to percentages rounded to
// two decimals, the same projection the warehouse view applies.
func (r ForecastRow) ToDashboardRow() DashboardForecastRow {
	return DashboardForecastRow{
		ForecastDate:             r.ForecastDate.Format("2006-01-02"),
		SKU:                      r.SKU,
		Vendor:                   r.Vendor,
		Size:                     r.Size,
		Line:                     r.Line,
		PredictedBatchQty:        r.PredictedBatchQty,
		ForecastedYieldPct:       pct(r.ForecastedYieldRate),
		ForecastedGoodUnits:      r.ForecastedGoodUnits,
		ForecastedRejectionUnits: r.PredictedBatchQty - r.ForecastedGoodUnits,
		RFYieldPct:               pct(r.RFYieldPrediction),
		XGBYieldPct:              pct(r.XGBYieldPrediction),
		ModelConfidencePct:       pct(r.ModelConfidence),
		TopRejectionReason1:      r.TopReasons[0].Reason,
		RejectionProb1Pct:        pct(r.TopReasons[0].Probability),
		TopRejectionReason2:      r.TopReasons[1].Reason,
		RejectionProb2Pct:        pct(r.TopReasons[1].Probability),
		TopRejectionReason3:      r.TopReasons[2].Reason,
		RejectionProb3Pct:        pct(r.TopReasons[2].Probability),
		GeneratedAt:              r.GeneratedAt.Unix(),
	}
}

func pct(v float64) float64 {
	return math.Round(v*100*100) / 100
}
