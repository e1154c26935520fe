// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, so that
// grid.row_height can be set through VGRID_GRID_ROW_HEIGHT.
const EnvPrefix = "VGRID"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Grid() GridConfig
	Source() SourceConfig

	SetGridViewport(height, width float64)
	SetSourceTable(table string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg LoggerConfig `mapstructure:"logger" yaml:"logger"`
	GridCfg   GridConfig   `mapstructure:"grid" yaml:"grid"`
	SourceCfg SourceConfig `mapstructure:"source" yaml:"source"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig { return c.LoggerCfg }
func (c *Config) Grid() GridConfig     { return c.GridCfg }
func (c *Config) Source() SourceConfig { return c.SourceCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetGridViewport(height, width float64) {
	c.GridCfg.Height = height
	c.GridCfg.Width = width
}

func (c *Config) SetSourceTable(table string) { c.SourceCfg.Table = table }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// GridConfig tunes the grid engine. Zero and negative values for overscan,
// filter_debounce and background_threshold keep the engine's own meaning:
// zero selects the default, negative disables the feature.
type GridConfig struct {
	Overscan               int           `mapstructure:"overscan" yaml:"overscan"`
	RowHeight              float64       `mapstructure:"row_height" yaml:"row_height"`
	Height                 float64       `mapstructure:"height" yaml:"height"`
	Width                  float64       `mapstructure:"width" yaml:"width"`
	FilterDebounce         time.Duration `mapstructure:"filter_debounce" yaml:"filter_debounce"`
	FrameInterval          time.Duration `mapstructure:"frame_interval" yaml:"frame_interval"`
	BackgroundThreshold    int           `mapstructure:"background_threshold" yaml:"background_threshold"`
	ParallelChunk          int           `mapstructure:"parallel_chunk" yaml:"parallel_chunk"`
	PruneSelectionOnFilter bool          `mapstructure:"prune_selection_on_filter" yaml:"prune_selection_on_filter"`
}

// SourceConfig describes where rows come from.
type SourceConfig struct {
	// IDColumn names the field holding each row's identity. Rows without it
	// get an identity derived from their content.
	IDColumn    string `mapstructure:"id_column" yaml:"id_column"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
	Table       string `mapstructure:"table" yaml:"table"`
	Limit       int    `mapstructure:"limit" yaml:"limit"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vgrid")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Grid --
	v.SetDefault("grid.overscan", 5)
	v.SetDefault("grid.row_height", 32.0)
	v.SetDefault("grid.height", 600.0)
	v.SetDefault("grid.width", 1200.0)
	v.SetDefault("grid.filter_debounce", "300ms")
	v.SetDefault("grid.frame_interval", "16ms")
	v.SetDefault("grid.background_threshold", 20000)
	v.SetDefault("grid.parallel_chunk", 4096)
	v.SetDefault("grid.prune_selection_on_filter", false)

	// -- Source --
	v.SetDefault("source.id_column", "id")
	v.SetDefault("source.database_url", "")
	v.SetDefault("source.table", "")
	v.SetDefault("source.limit", 0)
}

// BindEnv wires VGRID_ prefixed environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is the conventional name for connection strings.
	v.BindEnv("source.database_url", EnvPrefix+"_SOURCE_DATABASE_URL", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile != "" {
		path, err := ExpandPath(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	return homedir.Expand(path)
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.GridCfg.Validate(); err != nil {
		return err
	}
	if c.SourceCfg.Limit < 0 {
		return fmt.Errorf("source.limit must not be negative")
	}
	if c.SourceCfg.Table != "" && c.SourceCfg.DatabaseURL == "" {
		return fmt.Errorf("source.database_url is required when source.table is set")
	}
	return nil
}

// Validate checks the GridConfig settings.
func (g *GridConfig) Validate() error {
	if g.RowHeight <= 0 {
		return fmt.Errorf("grid.row_height must be positive")
	}
	if g.Height < 0 || g.Width < 0 {
		return fmt.Errorf("grid.height and grid.width must not be negative")
	}
	if g.FrameInterval <= 0 {
		return fmt.Errorf("grid.frame_interval must be a positive duration")
	}
	if g.ParallelChunk < 0 {
		return fmt.Errorf("grid.parallel_chunk must not be negative")
	}
	return nil
}
