package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Detection scoring defaults. Scores are additive; a page is accepted when
// its total reaches DefaultMinScore.
const (
	DefaultMinScore         = 30.0
	DefaultKeywordPoints    = 10.0
	DefaultKeywordCap       = 40.0
	DefaultDollarBonus      = 20.0
	DefaultMinDollarTokens  = 3
	DefaultMultiYearBonus   = 15.0
	DefaultRowsBonus        = 15.0
	DefaultColumnsBonus     = 10.0
	DefaultTitleBonus       = 25.0
	DefaultMinTableRows     = 5
	DefaultMinTableColumns  = 3
	DefaultMaxPercentSigns  = 10
	DefaultMaxForwardPages  = 2
	DefaultHeaderScanRows   = 10
	DefaultContinuationRows = 3
)

// Parsing defaults.
const (
	DefaultIndentWidth = 4
	DefaultMaxIndent   = 10
)

// Consolidation defaults.
const (
	// DefaultFuzzyThreshold is the minimum token-sort similarity (0..1) for two
	// normalized account names to share a canonical name.
	DefaultFuzzyThreshold = 0.85
	// DefaultMinSources is the number of same-typed statements required
	// before the pipeline reports a statement as consolidated.
	DefaultMinSources = 2
)

// Config holds the full application configuration.
type Config struct {
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Detect      DetectConfig      `yaml:"detect" mapstructure:"detect"`
	Parse       ParseConfig       `yaml:"parse" mapstructure:"parse"`
	Consolidate ConsolidateConfig `yaml:"consolidate" mapstructure:"consolidate"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Terms       TermsConfig       `yaml:"terms" mapstructure:"terms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the run history backend. Driver is "sqlite",
// "postgres" or "none".
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExtractConfig configures PDF text extraction. The scan provider reads the
// whole document for page detection; the table provider reads only the
// detected page range for parsing.
type ExtractConfig struct {
	ScanProvider     string  `yaml:"scan_provider" mapstructure:"scan_provider"`
	TableProvider    string  `yaml:"table_provider" mapstructure:"table_provider"`
	PdfToTextPath    string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey       string  `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel     string  `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	MistralRate      float64 `yaml:"mistral_rate_per_sec" mapstructure:"mistral_rate_per_sec"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// DetectConfig holds the page detection heuristics.
type DetectConfig struct {
	MinScore         float64 `yaml:"min_score" mapstructure:"min_score"`
	KeywordPoints    float64 `yaml:"keyword_points" mapstructure:"keyword_points"`
	KeywordCap       float64 `yaml:"keyword_cap" mapstructure:"keyword_cap"`
	DollarBonus      float64 `yaml:"dollar_bonus" mapstructure:"dollar_bonus"`
	MinDollarTokens  int     `yaml:"min_dollar_tokens" mapstructure:"min_dollar_tokens"`
	MultiYearBonus   float64 `yaml:"multi_year_bonus" mapstructure:"multi_year_bonus"`
	RowsBonus        float64 `yaml:"rows_bonus" mapstructure:"rows_bonus"`
	ColumnsBonus     float64 `yaml:"columns_bonus" mapstructure:"columns_bonus"`
	TitleBonus       float64 `yaml:"title_bonus" mapstructure:"title_bonus"`
	MinTableRows     int     `yaml:"min_table_rows" mapstructure:"min_table_rows"`
	MinTableColumns  int     `yaml:"min_table_columns" mapstructure:"min_table_columns"`
	MaxPercentSigns  int     `yaml:"max_percent_signs" mapstructure:"max_percent_signs"`
	MaxForwardPages  int     `yaml:"max_forward_pages" mapstructure:"max_forward_pages"`
	HeaderScanRows   int     `yaml:"header_scan_rows" mapstructure:"header_scan_rows"`
	ContinuationRows int     `yaml:"continuation_rows" mapstructure:"continuation_rows"`
}

// ParseConfig configures the direct table parser.
type ParseConfig struct {
	IndentWidth   int  `yaml:"indent_width" mapstructure:"indent_width"`
	MaxIndent     int  `yaml:"max_indent" mapstructure:"max_indent"`
	StrictNumbers bool `yaml:"strict_numbers" mapstructure:"strict_numbers"`
}

// ConsolidateConfig configures cross-document merging.
type ConsolidateConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MinSources     int     `yaml:"min_sources" mapstructure:"min_sources"`
}

// BatchConfig configures document-level parallelism.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// OutputConfig configures where run artifacts are written.
type OutputConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Excel bool   `yaml:"excel" mapstructure:"excel"`
}

// TermsConfig points at an optional terminology override file.
type TermsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DefaultDetect returns the detection heuristics with all defaults applied.
func DefaultDetect() DetectConfig {
	return DetectConfig{
		MinScore:         DefaultMinScore,
		KeywordPoints:    DefaultKeywordPoints,
		KeywordCap:       DefaultKeywordCap,
		DollarBonus:      DefaultDollarBonus,
		MinDollarTokens:  DefaultMinDollarTokens,
		MultiYearBonus:   DefaultMultiYearBonus,
		RowsBonus:        DefaultRowsBonus,
		ColumnsBonus:     DefaultColumnsBonus,
		TitleBonus:       DefaultTitleBonus,
		MinTableRows:     DefaultMinTableRows,
		MinTableColumns:  DefaultMinTableColumns,
		MaxPercentSigns:  DefaultMaxPercentSigns,
		MaxForwardPages:  DefaultMaxForwardPages,
		HeaderScanRows:   DefaultHeaderScanRows,
		ContinuationRows: DefaultContinuationRows,
	}
}

// DefaultParse returns the parser configuration defaults.
func DefaultParse() ParseConfig {
	return ParseConfig{IndentWidth: DefaultIndentWidth, MaxIndent: DefaultMaxIndent}
}

// DefaultConsolidate returns the consolidation defaults.
func DefaultConsolidate() ConsolidateConfig {
	return ConsolidateConfig{FuzzyThreshold: DefaultFuzzyThreshold, MinSources: DefaultMinSources}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEEPFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "deepfin.db")
	v.SetDefault("extract.scan_provider", "local")
	v.SetDefault("extract.table_provider", "local")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("extract.mistral_rate_per_sec", 1.0)
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.initial_backoff_ms", 500)

	d := DefaultDetect()
	v.SetDefault("detect.min_score", d.MinScore)
	v.SetDefault("detect.keyword_points", d.KeywordPoints)
	v.SetDefault("detect.keyword_cap", d.KeywordCap)
	v.SetDefault("detect.dollar_bonus", d.DollarBonus)
	v.SetDefault("detect.min_dollar_tokens", d.MinDollarTokens)
	v.SetDefault("detect.multi_year_bonus", d.MultiYearBonus)
	v.SetDefault("detect.rows_bonus", d.RowsBonus)
	v.SetDefault("detect.columns_bonus", d.ColumnsBonus)
	v.SetDefault("detect.title_bonus", d.TitleBonus)
	v.SetDefault("detect.min_table_rows", d.MinTableRows)
	v.SetDefault("detect.min_table_columns", d.MinTableColumns)
	v.SetDefault("detect.max_percent_signs", d.MaxPercentSigns)
	v.SetDefault("detect.max_forward_pages", d.MaxForwardPages)
	v.SetDefault("detect.header_scan_rows", d.HeaderScanRows)
	v.SetDefault("detect.continuation_rows", d.ContinuationRows)

	v.SetDefault("parse.indent_width", DefaultIndentWidth)
	v.SetDefault("parse.max_indent", DefaultMaxIndent)
	v.SetDefault("parse.strict_numbers", false)
	v.SetDefault("consolidate.fuzzy_threshold", DefaultFuzzyThreshold)
	v.SetDefault("consolidate.min_sources", DefaultMinSources)
	v.SetDefault("batch.max_concurrent_documents", 4)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.excel", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Detect.MinScore <= 0 {
		return eris.New("config: detect.min_score must be positive")
	}
	if c.Consolidate.FuzzyThreshold <= 0 || c.Consolidate.FuzzyThreshold > 1 {
		return eris.Errorf("config: consolidate.fuzzy_threshold %.2f out of range (0, 1]", c.Consolidate.FuzzyThreshold)
	}
	if c.Parse.IndentWidth <= 0 {
		return eris.New("config: parse.indent_width must be positive")
	}
	if c.Batch.MaxConcurrentDocuments <= 0 {
		c.Batch.MaxConcurrentDocuments = 1
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
