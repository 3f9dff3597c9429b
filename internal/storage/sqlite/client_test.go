package sqlite

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "warehouse.db")
	c, err := NewClient(dbPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return c
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedEvent(date, line, sku, csStatus string) models.InspectionEvent {
	return models.InspectionEvent{
		EventDate: day(date),
		Line:      line,
		SKU:       sku,
		Size:      "M",
		Vendor:    "V1",
		CSStatus:  csStatus,
	}
}

func TestLoadInspectionEventsWindowAndExclusions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	events := []models.InspectionEvent{
		seedEvent("2025-12-31", "L1", "A100", "ACCEPTED"), // before window
		seedEvent("2026-01-01", "L1", "A100", "ACCEPTED"),
		seedEvent("2026-01-15", "SAMPLE", "A100", "ACCEPTED"), // excluded line
		seedEvent("2026-01-15", "", "B200", "REJECTED"),       // NULL line survives exclusion
		seedEvent("2026-01-31", "L1", "B200", "ACCEPTED"),
		seedEvent("2026-02-01", "L1", "B200", "ACCEPTED"), // after window
	}
	if err := c.InsertInspectionEvents(ctx, events); err != nil {
		t.Fatalf("InsertInspectionEvents failed: %v", err)
	}

	got, err := c.LoadInspectionEvents(ctx, day("2026-01-01"), day("2026-01-31"), []string{"SAMPLE"})
	if err != nil {
		t.Fatalf("LoadInspectionEvents failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("loaded %d events, want 3", len(got))
	}
	wantDates := []string{"2026-01-01", "2026-01-15", "2026-01-31"}
	for i, ev := range got {
		if ev.EventDate.Format("2006-01-02") != wantDates[i] {
			t.Errorf("event %d: date=%s, want %s", i, ev.EventDate.Format("2006-01-02"), wantDates[i])
		}
	}
	// NULL columns come back as empty strings.
	if got[1].Line != "" {
		t.Errorf("NULL line came back as %q", got[1].Line)
	}
	if got[1].VQCStatus != "" {
		t.Errorf("NULL vqc_status came back as %q", got[1].VQCStatus)
	}
}

func forecastRow(date, sku string, yield float64, qty, good int) models.ForecastRow {
	return models.ForecastRow{
		ForecastDate:        day(date),
		SKU:                 sku,
		Vendor:              "V1",
		Size:                "M",
		Line:                "L1",
		PredictedBatchQty:   qty,
		ForecastedYieldRate: yield,
		ForecastedGoodUnits: good,
		RFYieldPrediction:   yield,
		XGBYieldPrediction:  yield,
		ModelConfidence:     0.95,
		TopReasons: [models.TopReasonSlots]models.ReasonProbability{
			{Reason: "DENT", Probability: 0.5},
			{Reason: "N/A", Probability: 0},
			{Reason: "N/A", Probability: 0},
		},
		GeneratedAt: day("2026-01-21"),
	}
}

func TestReplaceForecastIsFullRefresh(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first := []models.ForecastRow{
		forecastRow("2026-01-21", "A100", 0.9, 100, 90),
		forecastRow("2026-01-22", "A100", 0.9, 100, 90),
		forecastRow("2026-01-21", "B200", 0.8, 50, 40),
	}
	if err := c.ReplaceForecast(ctx, first); err != nil {
		t.Fatalf("ReplaceForecast failed: %v", err)
	}
	count, err := c.CountForecastRows(ctx)
	if err != nil {
		t.Fatalf("CountForecastRows failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("count=%d after first write, want 3", count)
	}

	second := []models.ForecastRow{
		forecastRow("2026-01-22", "A100", 0.85, 110, 94),
	}
	if err := c.ReplaceForecast(ctx, second); err != nil {
		t.Fatalf("ReplaceForecast failed: %v", err)
	}
	count, err = c.CountForecastRows(ctx)
	if err != nil {
		t.Fatalf("CountForecastRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count=%d after refresh, want 1", count)
	}
}

func TestForecastViewScalesPercentages(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rows := []models.ForecastRow{forecastRow("2026-01-21", "A100", 0.8312, 100, 83)}
	if err := c.ReplaceForecast(ctx, rows); err != nil {
		t.Fatalf("ReplaceForecast failed: %v", err)
	}
	if err := c.EnsureForecastView(ctx); err != nil {
		t.Fatalf("EnsureForecastView failed: %v", err)
	}

	var (
		yieldPct       float64
		rejectionUnits int
		reason1        string
		prob1Pct       float64
	)
	err := c.db.QueryRow(`
		SELECT forecasted_yield_pct, forecasted_rejection_units,
		       top_rejection_reason_1, rejection_prob_1_pct
		FROM forecast_7day_view
	`).Scan(&yieldPct, &rejectionUnits, &reason1, &prob1Pct)
	if err != nil {
		t.Fatalf("view query failed: %v", err)
	}

	if math.Abs(yieldPct-83.12) > 1e-9 {
		t.Errorf("forecasted_yield_pct=%f, want 83.12", yieldPct)
	}
	if rejectionUnits != 17 {
		t.Errorf("forecasted_rejection_units=%d, want 17", rejectionUnits)
	}
	if reason1 != "DENT" || math.Abs(prob1Pct-50.0) > 1e-9 {
		t.Errorf("reason slot = (%s, %f), want (DENT, 50.0)", reason1, prob1Pct)
	}
}

func TestEnsureForecastViewIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.EnsureForecastView(ctx); err != nil {
		t.Fatalf("first EnsureForecastView failed: %v", err)
	}
	if err := c.EnsureForecastView(ctx); err != nil {
		t.Fatalf("second EnsureForecastView failed: %v", err)
	}

	var name string
	err := c.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'view' AND name = ?", forecastView,
	).Scan(&name)
	if err == sql.ErrNoRows {
		t.Fatal("forecast view missing")
	}
	if err != nil {
		t.Fatalf("sqlite_master query failed: %v", err)
	}
}
