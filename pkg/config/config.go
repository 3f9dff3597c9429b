package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Warehouse   WarehouseConfig
	Training    TrainingConfig
	Forecast    ForecastConfig
	Rolling     RollingConfig
	Models      ModelsConfig
	Suppression SuppressionConfig
	Statuses    StatusConfig
	Classifier  ClassifierConfig
	Redis       RedisConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

type WarehouseConfig struct {
	Path          string
	ExcludedLines []string
}

type TrainingConfig struct {
	StartDate string
	EndDate   string
}

type ForecastConfig struct {
	HorizonDays int
	TopReasons  int
}

type RollingConfig struct {
	BatchWindowDays int
}

type ModelsConfig struct {
	RF       RFConfig
	GBT      GBTConfig
	Ensemble EnsembleConfig
}

type RFConfig struct {
	Trees    int
	MaxDepth int
	Seed     int64
}

type GBTConfig struct {
	Trees        int
	LearningRate float64
	MaxDepth     int
	Seed         int64
}

type EnsembleConfig struct {
	RFWeight  float64
	GBTWeight float64
}

type SuppressionConfig struct {
	RecencyDays  int
	MinFrequency int
}

type StatusConfig struct {
	AcceptSentinel string
	VQCRejected    []string
	FTRejected     []string
	CSRejected     []string
}

type ClassifierConfig struct {
	MinReasonCount int
	MinRows        int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type MetricsConfig struct {
	PushGateway string
	Job         string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/qa-forecast")

	viper.SetEnvPrefix("QA_FORECAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("warehouse.path", "./data/warehouse.db")
	viper.SetDefault("warehouse.excludedLines", []string{"WABI SABI"})

	viper.SetDefault("training.startDate", "2025-12-01")
	viper.SetDefault("training.endDate", "2026-02-19")

	viper.SetDefault("forecast.horizonDays", 7)
	viper.SetDefault("forecast.topReasons", 3)

	viper.SetDefault("rolling.batchWindowDays", 14)

	viper.SetDefault("models.rf.trees", 300)
	viper.SetDefault("models.rf.maxDepth", 10)
	viper.SetDefault("models.rf.seed", 42)
	viper.SetDefault("models.gbt.trees", 300)
	viper.SetDefault("models.gbt.learningRate", 0.05)
	viper.SetDefault("models.gbt.maxDepth", 6)
	viper.SetDefault("models.gbt.seed", 42)
	viper.SetDefault("models.ensemble.rfWeight", 0.5)
	viper.SetDefault("models.ensemble.gbtWeight", 0.5)

	viper.SetDefault("suppression.recencyDays", 14)
	viper.SetDefault("suppression.minFrequency", 5)

	viper.SetDefault("statuses.acceptSentinel", "ACCEPTED")
	viper.SetDefault("statuses.vqcRejected", []string{"SCRAP", "WABI SABI", "RT CONVERSION"})
	viper.SetDefault("statuses.ftRejected", []string{
		"REJECTED", "AESTHETIC SCRAP", "FUNCTIONAL BUT REJECTED",
		"SCRAP", "SHELL RELATED", "WABI SABI", "FUNCTIONAL REJECTION",
	})
	viper.SetDefault("statuses.csRejected", []string{"REJECTED"})

	viper.SetDefault("classifier.minReasonCount", 5)
	viper.SetDefault("classifier.minRows", 50)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("metrics.pushGateway", "")
	viper.SetDefault("metrics.job", "qa_forecast")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	start, end, err := c.Training.Window()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("training end date %s is before start date %s",
			c.Training.EndDate, c.Training.StartDate)
	}
	if c.Forecast.HorizonDays < 1 {
		return fmt.Errorf("forecast horizon must be at least 1 day, got %d", c.Forecast.HorizonDays)
	}
	if c.Forecast.TopReasons < 1 || c.Forecast.TopReasons > 3 {
		return fmt.Errorf("forecast topReasons must be between 1 and 3, got %d", c.Forecast.TopReasons)
	}
	weightSum := c.Models.Ensemble.RFWeight + c.Models.Ensemble.GBTWeight
	if math.Abs(weightSum-1.0) > 1e-9 {
		return fmt.Errorf("ensemble weights must sum to 1.0, got %.4f", weightSum)
	}
	if c.Models.GBT.LearningRate <= 0 {
		return fmt.Errorf("gbt learning rate must be positive, got %f", c.Models.GBT.LearningRate)
	}
	return nil
}

// Window parses the inclusive training date range.
func (t TrainingConfig) Window() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", t.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid training start date %q: %w", t.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", t.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid training end date %q: %w", t.EndDate, err)
	}
	return start, end, nil
}
