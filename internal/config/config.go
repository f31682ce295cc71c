package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Transition TransitionConfig `yaml:"transition" mapstructure:"transition"`
	Graph      GraphConfig      `yaml:"graph" mapstructure:"graph"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the detection store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// TransitionConfig configures detection and scoring. Values not set
// explicitly come from the selected preset.
type TransitionConfig struct {
	Preset           string         `yaml:"preset" mapstructure:"preset"`
	AlgorithmVersion string         `yaml:"algorithm_version" mapstructure:"algorithm_version"`
	Weights          WeightConfig   `yaml:"weights" mapstructure:"weights"`
	Bands            BandConfig     `yaml:"bands" mapstructure:"bands"`
	Window           WindowConfig   `yaml:"window" mapstructure:"window"`
	Vendor           VendorConfig   `yaml:"vendor" mapstructure:"vendor"`
	Signals          SignalToggles  `yaml:"signals" mapstructure:"signals"`
	Patent           PatentConfig   `yaml:"patent" mapstructure:"patent"`
	TechArea         TechAreaConfig `yaml:"tech_area" mapstructure:"tech_area"`
}

// WeightConfig holds the base score and the maximum contribution of each
// signal. Base plus all weights must not exceed 1.
type WeightConfig struct {
	Base        float64 `yaml:"base" mapstructure:"base"`
	Agency      float64 `yaml:"agency" mapstructure:"agency"`
	Timing      float64 `yaml:"timing" mapstructure:"timing"`
	Competition float64 `yaml:"competition" mapstructure:"competition"`
	Patent      float64 `yaml:"patent" mapstructure:"patent"`
	TechArea    float64 `yaml:"tech_area" mapstructure:"tech_area"`
	Text        float64 `yaml:"text" mapstructure:"text"`
}

// Sum returns base plus every signal weight.
func (w WeightConfig) Sum() float64 {
	return w.Base + w.Agency + w.Timing + w.Competition + w.Patent + w.TechArea + w.Text
}

// BandConfig holds the confidence band lower bounds.
type BandConfig struct {
	High   float64 `yaml:"high" mapstructure:"high"`
	Likely float64 `yaml:"likely" mapstructure:"likely"`
}

// WindowConfig bounds the days between award completion and contract start.
// Both ends are inclusive.
type WindowConfig struct {
	MinDays int `yaml:"min_days" mapstructure:"min_days"`
	MaxDays int `yaml:"max_days" mapstructure:"max_days"`
}

// VendorConfig configures vendor resolution.
type VendorConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// SignalToggles enables the optional extractors.
type SignalToggles struct {
	Patent         bool `yaml:"patent" mapstructure:"patent"`
	TechArea       bool `yaml:"tech_area" mapstructure:"tech_area"`
	TextSimilarity bool `yaml:"text_similarity" mapstructure:"text_similarity"`
}

// PatentConfig configures the patent linkage extractor.
type PatentConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// TechAreaConfig points at the keyword file used to infer contract
// technology areas.
type TechAreaConfig struct {
	KeywordsFile string `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// GraphConfig configures the graph loader.
type GraphConfig struct {
	DatabaseURL      string  `yaml:"database_url" mapstructure:"database_url"`
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BatchesPerSecond float64 `yaml:"batches_per_second" mapstructure:"batches_per_second"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownS int     `yaml:"breaker_cooldown_s" mapstructure:"breaker_cooldown_s"`
}

// BatchConfig configures detection parallelism and contract chunking.
type BatchConfig struct {
	MaxConcurrentAwards int `yaml:"max_concurrent_awards" mapstructure:"max_concurrent_awards"`
	ContractChunkSize   int `yaml:"contract_chunk_size" mapstructure:"contract_chunk_size"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MetricsConfig configures run metrics export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// MonitoringConfig configures run-log alerting for the serve command.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinMatchRate         float64 `yaml:"min_match_rate" mapstructure:"min_match_rate"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// FetchConfig configures downloads of remote award and contract extracts.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path
// searches for config.yaml in the working directory. Unknown keys are
// rejected and the transition settings are validated before returning.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRANSITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "transitions.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_awards", 8)
	v.SetDefault("batch.contract_chunk_size", 250_000)
	v.SetDefault("graph.batch_size", 500)
	v.SetDefault("graph.max_attempts", 3)
	v.SetDefault("graph.initial_backoff_ms", 500)
	v.SetDefault("graph.max_backoff_ms", 10_000)
	v.SetDefault("graph.batches_per_second", 0)
	v.SetDefault("graph.breaker_threshold", 5)
	v.SetDefault("graph.breaker_cooldown_s", 30)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.min_match_rate", 0.0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("fetch.user_agent", "transition-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.requests_per_second", 2)
	v.SetDefault("transition.preset", PresetBalanced)
	v.SetDefault("transition.algorithm_version", DefaultAlgorithmVersion)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	presetName := v.GetString("transition.preset")
	preset, ok := Presets()[presetName]
	if !ok {
		return nil, eris.Errorf("config: unknown transition preset %q (known: %s)", presetName, strings.Join(presetNames(), ", "))
	}
	setTransitionDefaults(v, preset)

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Transition.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setTransitionDefaults(v *viper.Viper, p TransitionConfig) {
	v.SetDefault("transition.weights.base", p.Weights.Base)
	v.SetDefault("transition.weights.agency", p.Weights.Agency)
	v.SetDefault("transition.weights.timing", p.Weights.Timing)
	v.SetDefault("transition.weights.competition", p.Weights.Competition)
	v.SetDefault("transition.weights.patent", p.Weights.Patent)
	v.SetDefault("transition.weights.tech_area", p.Weights.TechArea)
	v.SetDefault("transition.weights.text", p.Weights.Text)
	v.SetDefault("transition.bands.high", p.Bands.High)
	v.SetDefault("transition.bands.likely", p.Bands.Likely)
	v.SetDefault("transition.window.min_days", p.Window.MinDays)
	v.SetDefault("transition.window.max_days", p.Window.MaxDays)
	v.SetDefault("transition.vendor.fuzzy_threshold", p.Vendor.FuzzyThreshold)
	v.SetDefault("transition.signals.patent", p.Signals.Patent)
	v.SetDefault("transition.signals.tech_area", p.Signals.TechArea)
	v.SetDefault("transition.signals.text_similarity", p.Signals.TextSimilarity)
	v.SetDefault("transition.patent.similarity_threshold", p.Patent.SimilarityThreshold)
	v.SetDefault("transition.tech_area.keywords_file", "")
}

// MaxWindowDays is the hard timing cutoff; no preset may look further out.
const MaxWindowDays = 730

// weightSumTolerance absorbs float error when presets sum to exactly 1.
const weightSumTolerance = 1e-9

// Validate checks that the transition settings are internally consistent.
func (c TransitionConfig) Validate() error {
	var errs []string

	if strings.TrimSpace(c.AlgorithmVersion) == "" {
		errs = append(errs, "algorithm_version is required")
	}

	weights := []struct {
		name string
		val  float64
	}{
		{"weights.base", c.Weights.Base},
		{"weights.agency", c.Weights.Agency},
		{"weights.timing", c.Weights.Timing},
		{"weights.competition", c.Weights.Competition},
		{"weights.patent", c.Weights.Patent},
		{"weights.tech_area", c.Weights.TechArea},
		{"weights.text", c.Weights.Text},
	}
	for _, w := range weights {
		if w.val < 0 || math.IsNaN(w.val) {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}
	if sum := c.Weights.Sum(); sum > 1+weightSumTolerance {
		errs = append(errs, fmt.Sprintf("base plus weights must not exceed 1.0, got %.4f", sum))
	}

	if c.Bands.Likely <= 0 || c.Bands.High > 1 || c.Bands.Likely >= c.Bands.High {
		errs = append(errs, "bands must satisfy 0 < likely < high <= 1")
	}

	if c.Window.MinDays < 0 {
		errs = append(errs, "window.min_days must be >= 0")
	}
	if c.Window.MaxDays <= c.Window.MinDays {
		errs = append(errs, "window.max_days must be > window.min_days")
	}
	if c.Window.MaxDays > MaxWindowDays {
		errs = append(errs, fmt.Sprintf("window.max_days must be <= %d", MaxWindowDays))
	}

	if c.Vendor.FuzzyThreshold <= 0 || c.Vendor.FuzzyThreshold > 1 {
		errs = append(errs, "vendor.fuzzy_threshold must be in (0, 1]")
	}
	if c.Patent.SimilarityThreshold < 0 || c.Patent.SimilarityThreshold > 1 {
		errs = append(errs, "patent.similarity_threshold must be in [0, 1]")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: transition validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
