package contract

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/huangsam/chartkit/schema"
	"go.uber.org/zap/zapcore"
)

// Default values for configuration.
const (
	DefaultPrecision = 1
	MaxPrecision     = 4
	DefaultLogLevel  = "warn"
)

// RelationshipConfig describes how a source reaches a related entity.
type RelationshipConfig struct {
	Table      string   // related table or collection
	LocalKey   string   // column on the source table
	ForeignKey string   // column on the related table
	Fields     []string // related columns loaded by SQL joins
}

// SourceConfig is the validated definition of one named record source.
type SourceConfig struct {
	Name            string
	Backend         schema.DatabaseBackend
	Connect         string // Please use env var as this is plaintext
	File            string // JSON records for the memory backend
	Table           string // table for SQL backends, collection for MongoDB
	Database        string // MongoDB database name
	SoftDeleteField string
	GlobalFilters   map[string]string // name -> predicate in the backend's native language
	Relationships   map[string]RelationshipConfig
}

// Config holds the runtime configuration for building charts.
// This struct remains the "final, validated" config.
type Config struct {
	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	Strict     bool // Fail on unknown data sources instead of building empty datasets
	LogLevel   zapcore.Level

	SnapshotBackend   schema.DatabaseBackend
	SnapshotDBConnect string // Please use env var as this is plaintext

	Sources map[string]SourceConfig
	Charts  []schema.ChartSpec
}

// RelationshipRawInput holds a relationship definition from the YAML config file.
type RelationshipRawInput struct {
	Table      string   `mapstructure:"table"`
	LocalKey   string   `mapstructure:"local_key"`
	ForeignKey string   `mapstructure:"foreign_key"`
	Fields     []string `mapstructure:"fields"`
}

// SourceRawInput holds a source definition from the YAML config file.
type SourceRawInput struct {
	Backend         string                          `mapstructure:"backend"`
	Connect         string                          `mapstructure:"connect"`
	File            string                          `mapstructure:"file"`
	Table           string                          `mapstructure:"table"`
	Collection      string                          `mapstructure:"collection"`
	Database        string                          `mapstructure:"database"`
	SoftDeleteField string                          `mapstructure:"soft_delete_field"`
	GlobalFilters   map[string]string               `mapstructure:"global_filters"`
	Relationships   map[string]RelationshipRawInput `mapstructure:"relationships"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Output            string `mapstructure:"output"`
	OutputFile        string `mapstructure:"output-file"`
	Precision         int    `mapstructure:"precision"`
	Width             int    `mapstructure:"width"`
	Color             string `mapstructure:"color"`
	Strict            bool   `mapstructure:"strict"`
	LogLevel          string `mapstructure:"log-level"`
	SnapshotBackend   string `mapstructure:"snapshot-backend"`
	SnapshotDBConnect string `mapstructure:"snapshot-db-connect"`

	// --- Sources and charts from config file ---
	Sources map[string]SourceRawInput `mapstructure:"sources"`
	Charts  []map[string]any          `mapstructure:"charts"`
}

// ProcessAndValidate turns raw input into a validated config.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	// All validation functions read from 'input' and populate 'cfg'.
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateSnapshotBackend(cfg, input); err != nil {
		return err
	}
	if err := processSources(cfg, input); err != nil {
		return err
	}
	if err := processCharts(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the connection string for a given backend.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend, schema.MemoryBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.MongoDBBackend:
		if !strings.HasPrefix(connStr, "mongodb://") && !strings.HasPrefix(connStr, "mongodb+srv://") {
			return fmt.Errorf("MongoDB connection string must start with 'mongodb://' or 'mongodb+srv://'")
		}
	}
	return nil
}

// validateSimpleInputs handles output, precision and display flags.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Strict = input.Strict

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Precision < 0 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet, xlsx", input.Output)
	}
	if (cfg.Output == schema.ParquetOut || cfg.Output == schema.XLSXOut) && cfg.OutputFile == "" {
		return fmt.Errorf("%s output requires --output-file", cfg.Output)
	}
	if input.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", input.Width)
	}

	level := input.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}
	return nil
}

// validateSnapshotBackend handles the snapshot store settings.
func validateSnapshotBackend(cfg *Config, input *ConfigRawInput) error {
	cfg.SnapshotBackend = schema.DatabaseBackend(strings.ToLower(input.SnapshotBackend))
	if cfg.SnapshotBackend == "" {
		cfg.SnapshotBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidSnapshotBackends[cfg.SnapshotBackend]; !ok {
		return fmt.Errorf("invalid snapshot backend '%s'. must be sqlite, mysql, postgresql, none", input.SnapshotBackend)
	}
	cfg.SnapshotDBConnect = input.SnapshotDBConnect
	return ValidateDatabaseConnectionString(cfg.SnapshotBackend, cfg.SnapshotDBConnect)
}

// processSources validates every named record source.
func processSources(cfg *Config, input *ConfigRawInput) error {
	cfg.Sources = make(map[string]SourceConfig, len(input.Sources))
	for _, name := range slices.Sorted(maps.Keys(input.Sources)) {
		src, err := buildSourceConfig(name, input.Sources[name])
		if err != nil {
			return fmt.Errorf("source %q: %w", name, err)
		}
		cfg.Sources[src.Name] = src
	}
	return nil
}

func buildSourceConfig(name string, raw SourceRawInput) (SourceConfig, error) {
	src := SourceConfig{
		Name:            strings.ToLower(name),
		Backend:         schema.DatabaseBackend(strings.ToLower(raw.Backend)),
		Connect:         raw.Connect,
		File:            raw.File,
		Table:           raw.Table,
		Database:        raw.Database,
		SoftDeleteField: raw.SoftDeleteField,
		GlobalFilters:   raw.GlobalFilters,
		Relationships:   make(map[string]RelationshipConfig, len(raw.Relationships)),
	}
	if src.Backend == "" {
		src.Backend = schema.MemoryBackend
	}
	if _, ok := schema.ValidSourceBackends[src.Backend]; !ok {
		return SourceConfig{}, fmt.Errorf("invalid backend '%s'. must be memory, sqlite, mysql, postgresql, mongodb", raw.Backend)
	}
	if err := ValidateDatabaseConnectionString(src.Backend, src.Connect); err != nil {
		return SourceConfig{}, err
	}

	switch src.Backend {
	case schema.MemoryBackend:
		if src.File == "" {
			return SourceConfig{}, fmt.Errorf("memory backend requires a records file")
		}
	case schema.MongoDBBackend:
		if raw.Collection != "" {
			src.Table = raw.Collection
		}
		if src.Database == "" || src.Table == "" {
			return SourceConfig{}, fmt.Errorf("mongodb backend requires database and collection")
		}
	default:
		if src.Backend == schema.SQLiteBackend && src.Connect == "" {
			return SourceConfig{}, fmt.Errorf("sqlite backend requires a database file in connect")
		}
		if src.Table == "" {
			return SourceConfig{}, fmt.Errorf("%s backend requires a table", src.Backend)
		}
	}

	for relName, rel := range raw.Relationships {
		if src.Backend != schema.MemoryBackend {
			if rel.Table == "" || rel.LocalKey == "" || rel.ForeignKey == "" {
				return SourceConfig{}, fmt.Errorf("relationship %q requires table, local_key and foreign_key", relName)
			}
			if src.Backend != schema.MongoDBBackend && len(rel.Fields) == 0 {
				return SourceConfig{}, fmt.Errorf("relationship %q requires at least one field to load", relName)
			}
		}
		src.Relationships[relName] = RelationshipConfig(rel)
	}
	return src, nil
}

// processCharts runs the chart option validator on every configured chart.
func processCharts(cfg *Config, input *ConfigRawInput) error {
	cfg.Charts = make([]schema.ChartSpec, 0, len(input.Charts))
	seen := make(map[string]int, len(input.Charts))
	for i, raw := range input.Charts {
		spec, err := ValidateChartOptions(raw)
		if err != nil {
			return fmt.Errorf("chart %d: %w", i+1, err)
		}
		if prev, dup := seen[spec.Name]; dup {
			return fmt.Errorf("chart %d: name %q already used by chart %d", i+1, spec.Name, prev)
		}
		seen[spec.Name] = i + 1
		cfg.Charts = append(cfg.Charts, spec)
	}
	return nil
}

// FindChart returns the chart with the given name.
func (c *Config) FindChart(name string) (schema.ChartSpec, bool) {
	for _, spec := range c.Charts {
		if spec.Name == name {
			return spec, true
		}
	}
	return schema.ChartSpec{}, false
}
