package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Training: TrainingConfig{StartDate: "2025-12-01", EndDate: "2026-02-19"},
		Forecast: ForecastConfig{HorizonDays: 7, TopReasons: 3},
		Models: ModelsConfig{
			GBT:      GBTConfig{Trees: 300, LearningRate: 0.05, MaxDepth: 6, Seed: 42},
			Ensemble: EnsembleConfig{RFWeight: 0.5, GBTWeight: 0.5},
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Forecast.HorizonDays != 7 {
		t.Errorf("HorizonDays=%d, want 7", cfg.Forecast.HorizonDays)
	}
	if cfg.Models.RF.Trees != 300 || cfg.Models.RF.MaxDepth != 10 || cfg.Models.RF.Seed != 42 {
		t.Errorf("RF defaults = %+v, want 300 trees, depth 10, seed 42", cfg.Models.RF)
	}
	if cfg.Models.GBT.LearningRate != 0.05 {
		t.Errorf("GBT learning rate=%f, want 0.05", cfg.Models.GBT.LearningRate)
	}
	if cfg.Suppression.RecencyDays != 14 || cfg.Suppression.MinFrequency != 5 {
		t.Errorf("Suppression defaults = %+v, want 14 days / 5", cfg.Suppression)
	}
	if cfg.Statuses.AcceptSentinel != "ACCEPTED" {
		t.Errorf("AcceptSentinel=%q, want ACCEPTED", cfg.Statuses.AcceptSentinel)
	}
	if len(cfg.Statuses.FTRejected) != 7 {
		t.Errorf("FTRejected has %d entries, want 7", len(cfg.Statuses.FTRejected))
	}
	if cfg.Classifier.MinReasonCount != 5 || cfg.Classifier.MinRows != 50 {
		t.Errorf("Classifier defaults = %+v, want 5 / 50", cfg.Classifier)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis enabled by default, want disabled")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate rejected valid config: %v", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unparseable start date", func(c *Config) { c.Training.StartDate = "01/12/2025" }},
		{"end before start", func(c *Config) { c.Training.EndDate = "2025-11-30" }},
		{"zero horizon", func(c *Config) { c.Forecast.HorizonDays = 0 }},
		{"too many reasons", func(c *Config) { c.Forecast.TopReasons = 4 }},
		{"weights do not sum to one", func(c *Config) { c.Models.Ensemble.RFWeight = 0.6 }},
		{"non-positive learning rate", func(c *Config) { c.Models.GBT.LearningRate = 0 }},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", tc.name)
		}
	}
}

func TestTrainingWindowInclusiveBounds(t *testing.T) {
	tr := TrainingConfig{StartDate: "2026-01-01", EndDate: "2026-01-31"}
	start, end, err := tr.Window()
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if start.Format("2006-01-02") != "2026-01-01" || end.Format("2006-01-02") != "2026-01-31" {
		t.Errorf("window = (%s, %s), want (2026-01-01, 2026-01-31)", start, end)
	}
}
