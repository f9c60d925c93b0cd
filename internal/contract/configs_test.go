package contract

import (
	"testing"

	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		Output:    "text",
		Precision: 1,
		Color:     "yes",
		Sources: map[string]SourceRawInput{
			"Orders": {Backend: "memory", File: "orders.json"},
		},
		Charts: []map[string]any{baseOptions()},
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{
			name:        "invalid output",
			mutate:      func(in *ConfigRawInput) { in.Output = "yaml" },
			expectError: "invalid output format",
		},
		{
			name:        "parquet without file",
			mutate:      func(in *ConfigRawInput) { in.Output = "parquet" },
			expectError: "requires --output-file",
		},
		{
			name:        "precision out of range",
			mutate:      func(in *ConfigRawInput) { in.Precision = 9 },
			expectError: "precision must be between",
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "maybe" },
			expectError: "invalid --color value",
		},
		{
			name:        "invalid log level",
			mutate:      func(in *ConfigRawInput) { in.LogLevel = "loud" },
			expectError: "invalid --log-level value",
		},
		{
			name:        "invalid snapshot backend",
			mutate:      func(in *ConfigRawInput) { in.SnapshotBackend = "mongodb" },
			expectError: "invalid snapshot backend",
		},
		{
			name: "mysql snapshot without tcp",
			mutate: func(in *ConfigRawInput) {
				in.SnapshotBackend = "mysql"
				in.SnapshotDBConnect = "user:pass@localhost/db"
			},
			expectError: "@tcp(",
		},
		{
			name: "unknown source backend",
			mutate: func(in *ConfigRawInput) {
				in.Sources["bad"] = SourceRawInput{Backend: "redis"}
			},
			expectError: `source "bad": invalid backend`,
		},
		{
			name: "sql source without table",
			mutate: func(in *ConfigRawInput) {
				in.Sources["db"] = SourceRawInput{Backend: "sqlite", Connect: "app.db"}
			},
			expectError: "requires a table",
		},
		{
			name: "sql relationship without fields",
			mutate: func(in *ConfigRawInput) {
				in.Sources["db"] = SourceRawInput{
					Backend: "sqlite", Connect: "app.db", Table: "orders",
					Relationships: map[string]RelationshipRawInput{
						"customer": {Table: "customers", LocalKey: "customer_id", ForeignKey: "id"},
					},
				}
			},
			expectError: "at least one field",
		},
		{
			name: "mongo source without database",
			mutate: func(in *ConfigRawInput) {
				in.Sources["events"] = SourceRawInput{Backend: "mongodb", Connect: "mongodb://localhost:27017", Collection: "events"}
			},
			expectError: "requires database and collection",
		},
		{
			name: "invalid chart",
			mutate: func(in *ConfigRawInput) {
				in.Charts = append(in.Charts, map[string]any{"chart_title": "Broken"})
			},
			expectError: `chart 2: invalid chart option "report_type"`,
		},
		{
			name: "duplicate chart name",
			mutate: func(in *ConfigRawInput) {
				in.Charts = append(in.Charts, baseOptions())
			},
			expectError: `name "orders_by_day" already used by chart 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRawInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestProcessAndValidatePopulatesConfig(t *testing.T) {
	input := validRawInput()
	input.Output = "JSON"
	input.OutputFile = "charts.json"
	input.Strict = true
	input.LogLevel = "debug"
	input.Sources["events"] = SourceRawInput{
		Backend:    "mongodb",
		Connect:    "mongodb://localhost:27017",
		Database:   "app",
		Collection: "events",
		Relationships: map[string]RelationshipRawInput{
			"user": {Table: "users", LocalKey: "user_id", ForeignKey: "_id"},
		},
	}

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, schema.JSONOut, cfg.Output)
	assert.Equal(t, "charts.json", cfg.OutputFile)
	assert.True(t, cfg.UseColors)
	assert.True(t, cfg.Strict)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, schema.NoneBackend, cfg.SnapshotBackend)

	require.Contains(t, cfg.Sources, "orders")
	assert.Equal(t, schema.MemoryBackend, cfg.Sources["orders"].Backend)

	events := cfg.Sources["events"]
	assert.Equal(t, "events", events.Table)
	assert.Equal(t, RelationshipConfig{Table: "users", LocalKey: "user_id", ForeignKey: "_id"}, events.Relationships["user"])

	require.Len(t, cfg.Charts, 1)
	spec, ok := cfg.FindChart("orders_by_day")
	require.True(t, ok)
	assert.Equal(t, "orders", spec.DataSource)

	_, ok = cfg.FindChart("missing")
	assert.False(t, ok)
}

func TestProcessAndValidateDefaultLogLevel(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validRawInput()))
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(zapcore.InfoLevel)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{"sqlite any", schema.SQLiteBackend, "", false},
		{"none", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/charts", false},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"mysql no db", schema.MySQLBackend, "user:pass@tcp(localhost:3306)", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost dbname=charts", false},
		{"postgres no host", schema.PostgreSQLBackend, "dbname=charts", true},
		{"postgres no dbname", schema.PostgreSQLBackend, "host=localhost", true},
		{"mongo valid", schema.MongoDBBackend, "mongodb://localhost:27017", false},
		{"mongo srv", schema.MongoDBBackend, "mongodb+srv://cluster.example.net", false},
		{"mongo invalid", schema.MongoDBBackend, "localhost:27017", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
