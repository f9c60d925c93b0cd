package schema

// Custom string types for type safety.
type (
	// ReportType selects the bucketing strategy for a chart.
	ReportType string

	// GroupPeriod is the calendar granularity of date buckets.
	GroupPeriod string

	// AggregateFunction reduces a bucket to a single number.
	AggregateFunction string

	// ChartType is the kind of chart the renderer draws.
	ChartType string

	// FilterPeriod anchors the time window to the start of a calendar period.
	FilterPeriod string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents a database backend for sources and snapshots.
	DatabaseBackend string
)

// All report types supported.
const (
	GroupByDate         ReportType = "group_by_date"
	GroupByString       ReportType = "group_by_string"
	GroupByRelationship ReportType = "group_by_relationship"
)

// All group periods supported.
const (
	DayPeriod   GroupPeriod = "day" // default for continuous time
	WeekPeriod  GroupPeriod = "week"
	MonthPeriod GroupPeriod = "month"
	YearPeriod  GroupPeriod = "year"
)

// All aggregate functions supported.
const (
	CountFunction AggregateFunction = "count" // default
	SumFunction   AggregateFunction = "sum"
	AvgFunction   AggregateFunction = "avg"
)

// All chart types supported.
const (
	LineChart ChartType = "line"
	BarChart  ChartType = "bar"
	PieChart  ChartType = "pie"
)

// All filter periods supported.
const (
	FilterWeek  FilterPeriod = "week"
	FilterMonth FilterPeriod = "month"
	FilterYear  FilterPeriod = "year"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
	XLSXOut    OutputMode = "xlsx"
)

// All database backends supported.
const (
	MemoryBackend     DatabaseBackend = "memory"
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	MongoDBBackend    DatabaseBackend = "mongodb"
	NoneBackend       DatabaseBackend = "none"
)

// Defaults applied by the option validator.
const (
	DefaultFilterField      = "created_at"
	DefaultGroupFieldFormat = "%Y-%m-%d %H:%M:%S"
	DefaultChartHeight      = 300
	DefaultChartName        = "myChart"
)

// DayFormat is the strftime layout of a daily bucket key.
const DayFormat = "%Y-%m-%d"

// PeriodFormats maps each group period to the strftime layout of its bucket keys.
var PeriodFormats = map[GroupPeriod]string{
	DayPeriod:   DayFormat,
	WeekPeriod:  "%G-W%V",
	MonthPeriod: "%Y-%m",
	YearPeriod:  "%Y",
}

// ValidReportTypes lists all valid report types.
var ValidReportTypes = map[ReportType]struct{}{
	GroupByDate:         {},
	GroupByString:       {},
	GroupByRelationship: {},
}

// ValidGroupPeriods lists all valid group periods.
var ValidGroupPeriods = map[GroupPeriod]struct{}{
	DayPeriod:   {},
	WeekPeriod:  {},
	MonthPeriod: {},
	YearPeriod:  {},
}

// ValidAggregateFunctions lists all valid aggregate functions.
var ValidAggregateFunctions = map[AggregateFunction]struct{}{
	CountFunction: {},
	SumFunction:   {},
	AvgFunction:   {},
}

// ValidChartTypes lists all valid chart types.
var ValidChartTypes = map[ChartType]struct{}{
	LineChart: {},
	BarChart:  {},
	PieChart:  {},
}

// ValidFilterPeriods lists all valid filter periods.
var ValidFilterPeriods = map[FilterPeriod]struct{}{
	FilterWeek:  {},
	FilterMonth: {},
	FilterYear:  {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
	XLSXOut:    {},
}

// ValidSourceBackends lists the backends a record source can use.
var ValidSourceBackends = map[DatabaseBackend]struct{}{
	MemoryBackend:     {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	MongoDBBackend:    {},
}

// ValidSnapshotBackends lists the backends the snapshot store can use.
var ValidSnapshotBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
