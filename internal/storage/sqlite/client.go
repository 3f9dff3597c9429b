package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/pkg/logger"
)

const (
	masterTable   = "master_station_data"
	forecastTable = "forecast_7day"
	forecastView  = "forecast_7day_view"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("Warehouse client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS master_station_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_date TEXT,
		line TEXT,
		sku TEXT,
		size TEXT,
		vendor TEXT,
		vqc_status TEXT,
		ft_status TEXT,
		cs_status TEXT,
		vqc_reason TEXT,
		ft_reason TEXT,
		cs_reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_master_event_date ON master_station_data(event_date);
	CREATE INDEX IF NOT EXISTS idx_master_sku_vendor ON master_station_data(sku, vendor);

	CREATE TABLE IF NOT EXISTS forecast_7day (
		forecast_date TEXT NOT NULL,
		sku TEXT NOT NULL,
		vendor TEXT NOT NULL,
		size TEXT,
		line TEXT,
		predicted_batch_qty INTEGER NOT NULL,
		forecasted_yield_rate REAL NOT NULL,
		forecasted_good_units INTEGER NOT NULL,
		rf_yield_prediction REAL NOT NULL,
		xgb_yield_prediction REAL NOT NULL,
		model_confidence REAL NOT NULL,
		top_rejection_reason_1 TEXT NOT NULL,
		rejection_prob_1 REAL NOT NULL,
		top_rejection_reason_2 TEXT NOT NULL,
		rejection_prob_2 REAL NOT NULL,
		top_rejection_reason_3 TEXT NOT NULL,
		rejection_prob_3 REAL NOT NULL,
		generated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_forecast_date ON forecast_7day(forecast_date);
	CREATE INDEX IF NOT EXISTS idx_forecast_sku_vendor ON forecast_7day(sku, vendor);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Warehouse schema initialized")
	return nil
}

// LoadInspectionEvents pulls the training window from the master table,
// inclusive on both ends, skipping rows without an event date and any
// excluded lines, ordered by event date ascending.
func (c *Client) LoadInspectionEvents(ctx context.Context, start, end time.Time, excludedLines []string) ([]models.InspectionEvent, error) {
	query := `
		SELECT event_date, line, sku, size, vendor,
		       vqc_status, ft_status, cs_status,
		       vqc_reason, ft_reason, cs_reason
		FROM ` + masterTable + `
		WHERE event_date IS NOT NULL
		  AND event_date >= ? AND event_date <= ?
	`
	args := []interface{}{start.Format("2006-01-02"), end.Format("2006-01-02")}

	if len(excludedLines) > 0 {
		placeholders := strings.Repeat("?,", len(excludedLines))
		query += fmt.Sprintf(" AND (line IS NULL OR line NOT IN (%s))", placeholders[:len(placeholders)-1])
		for _, l := range excludedLines {
			args = append(args, l)
		}
	}
	query += " ORDER BY event_date"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection events: %w", err)
	}
	defer rows.Close()

	var events []models.InspectionEvent
	for rows.Next() {
		var dateStr string
		var line, sku, size, vendor sql.NullString
		var vqcStatus, ftStatus, csStatus sql.NullString
		var vqcReason, ftReason, csReason sql.NullString

		err := rows.Scan(&dateStr, &line, &sku, &size, &vendor,
			&vqcStatus, &ftStatus, &csStatus,
			&vqcReason, &ftReason, &csReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		eventDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid event_date %q: %w", dateStr, err)
		}

		events = append(events, models.InspectionEvent{
			EventDate: eventDate,
			Line:      line.String,
			SKU:       sku.String,
			Size:      size.String,
			Vendor:    vendor.String,
			VQCStatus: vqcStatus.String,
			FTStatus:  ftStatus.String,
			CSStatus:  csStatus.String,
			VQCReason: vqcReason.String,
			FTReason:  ftReason.String,
			CSReason:  csReason.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inspection events: %w", err)
	}

	return events, nil
}

// InsertInspectionEvents seeds the master table. Production data lands there
// through the upstream ingestion jobs; this is for backfills and tests.
func (c *Client) InsertInspectionEvents(ctx context.Context, events []models.InspectionEvent) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+masterTable+` (event_date, line, sku, size, vendor,
			vqc_status, ft_status, cs_status, vqc_reason, ft_reason, cs_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			ev.EventDate.Format("2006-01-02"),
			nullable(ev.Line), nullable(ev.SKU), nullable(ev.Size), nullable(ev.Vendor),
			nullable(ev.VQCStatus), nullable(ev.FTStatus), nullable(ev.CSStatus),
			nullable(ev.VQCReason), nullable(ev.FTReason), nullable(ev.CSReason),
		)
		if err != nil {
			return fmt.Errorf("failed to insert inspection event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inspection events: %w", err)
	}
	return nil
}

// ReplaceForecast performs the full-refresh write: the previous forecast is
// deleted and the new rows inserted inside one transaction, so a failed run
// never leaves a half-updated table.
func (c *Client) ReplaceForecast(ctx context.Context, forecastRows []models.ForecastRow) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+forecastTable); err != nil {
		return fmt.Errorf("failed to clear forecast table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+forecastTable+` (forecast_date, sku, vendor, size, line,
			predicted_batch_qty, forecasted_yield_rate, forecasted_good_units,
			rf_yield_prediction, xgb_yield_prediction, model_confidence,
			top_rejection_reason_1, rejection_prob_1,
			top_rejection_reason_2, rejection_prob_2,
			top_rejection_reason_3, rejection_prob_3,
			generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare forecast insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range forecastRows {
		_, err := stmt.ExecContext(ctx,
			r.ForecastDate.Format("2006-01-02"),
			r.SKU, r.Vendor, r.Size, r.Line,
			r.PredictedBatchQty, r.ForecastedYieldRate, r.ForecastedGoodUnits,
			r.RFYieldPrediction, r.XGBYieldPrediction, r.ModelConfidence,
			r.TopReasons[0].Reason, r.TopReasons[0].Probability,
			r.TopReasons[1].Reason, r.TopReasons[1].Probability,
			r.TopReasons[2].Reason, r.TopReasons[2].Probability,
			r.GeneratedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert forecast row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forecast: %w", err)
	}

	logger.Info("Forecast table replaced", zap.Int("rows", len(forecastRows)))
	return nil
}

// CountForecastRows is the post-write verification step.
func (c *Client) CountForecastRows(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+forecastTable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count forecast rows: %w", err)
	}
	return count, nil
}

// EnsureForecastView recreates the percentage-scaled view the dashboard
// queries read from.
func (c *Client) EnsureForecastView(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+forecastView); err != nil {
		return fmt.Errorf("failed to drop forecast view: %w", err)
	}

	viewQuery := `
	CREATE VIEW ` + forecastView + ` AS
	SELECT
		forecast_date,
		sku,
		vendor,
		size,
		line,
		predicted_batch_qty,
		ROUND(forecasted_yield_rate * 100, 2)       AS forecasted_yield_pct,
		forecasted_good_units,
		predicted_batch_qty - forecasted_good_units AS forecasted_rejection_units,
		ROUND(rf_yield_prediction * 100, 2)         AS rf_yield_pct,
		ROUND(xgb_yield_prediction * 100, 2)        AS xgb_yield_pct,
		ROUND(model_confidence * 100, 2)            AS model_confidence_pct,
		top_rejection_reason_1,
		ROUND(rejection_prob_1 * 100, 2)            AS rejection_prob_1_pct,
		top_rejection_reason_2,
		ROUND(rejection_prob_2 * 100, 2)            AS rejection_prob_2_pct,
		top_rejection_reason_3,
		ROUND(rejection_prob_3 * 100, 2)            AS rejection_prob_3_pct,
		generated_at
	FROM ` + forecastTable + `
	ORDER BY forecast_date, sku, vendor
	`

	if _, err := c.db.ExecContext(ctx, viewQuery); err != nil {
		return fmt.Errorf("failed to create forecast view: %w", err)
	}

	logger.Info("Forecast view ready", zap.String("view", forecastView))
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
