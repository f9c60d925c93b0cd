// Package schema has configs, models and error types for all parts of chartkit.
package schema

import "time"

// TransformFunc maps an aggregate value to the value that is charted.
// It must be pure: no side effects and no access to other buckets.
type TransformFunc func(value float64) (float64, error)

// ScopeModifiers widen or narrow the set of records a source returns.
type ScopeModifiers struct {
	WithTrashed         bool     `json:"with_trashed,omitempty"`          // include soft-deleted records
	OnlyTrashed         bool     `json:"only_trashed,omitempty"`          // return soft-deleted records only
	WithoutGlobalScopes []string `json:"without_global_scopes,omitempty"` // named global filters to skip ("*" skips all)
}

// SeriesCondition overrides one series of a chart that shares a ChartSpec.
type SeriesCondition struct {
	Name      string `json:"name" mapstructure:"name"`
	Condition string `json:"condition,omitempty" mapstructure:"condition"` // predicate in the source's native language
	Color     string `json:"color,omitempty" mapstructure:"color"`
	Fill      bool   `json:"fill" mapstructure:"fill"`
}

// ChartSpec is the validated, typed configuration of a single chart.
// It is only produced by the option validator and is read-only afterwards.
type ChartSpec struct {
	Title     string    `json:"chart_title"`
	Name      string    `json:"chart_name"` // render anchor derived from the title
	ChartType ChartType `json:"chart_type"`
	Height    int       `json:"chart_height"`
	Color     string    `json:"chart_color,omitempty"`
	Stacked   bool      `json:"stacked"`
	Hidden    bool      `json:"hidden"`

	ReportType         ReportType  `json:"report_type"`
	DataSource         string      `json:"data_source"`
	GroupByField       string      `json:"group_by_field"`
	GroupByFieldFormat string      `json:"group_by_field_format,omitempty"`
	GroupByPeriod      GroupPeriod `json:"group_by_period,omitempty"`
	DateFormat         string      `json:"date_format,omitempty"`
	RelationshipName   string      `json:"relationship_name,omitempty"`

	AggregateFunction AggregateFunction `json:"aggregate_function"`
	AggregateField    string            `json:"aggregate_field,omitempty"`
	FieldDistinct     string            `json:"field_distinct,omitempty"`
	TransformExpr     string            `json:"aggregate_transform,omitempty"`
	Transform         TransformFunc     `json:"-"`

	FilterField  string         `json:"filter_field"`
	FilterDays   *int           `json:"filter_days,omitempty"`
	FilterPeriod FilterPeriod   `json:"filter_period,omitempty"`
	RangeStart   time.Time      `json:"range_date_start,omitzero"`
	RangeEnd     time.Time      `json:"range_date_end,omitzero"`
	WhereRaw     string         `json:"where_raw,omitempty"`
	Scope        ScopeModifiers `json:"scope"`

	Conditions     []SeriesCondition `json:"conditions"`
	TopResults     int               `json:"top_results,omitempty"` // 0 means no truncation
	ShowBlankData  bool              `json:"show_blank_data"`
	ContinuousTime bool              `json:"continuous_time"`
	Labels         map[string]string `json:"labels,omitempty"`
}

// KeyFormat returns the strftime layout used for date bucket keys.
// An explicit date format wins over the period default.
func (s *ChartSpec) KeyFormat() string {
	if s.DateFormat != "" {
		return s.DateFormat
	}
	if f, ok := PeriodFormats[s.GroupByPeriod]; ok {
		return f
	}
	return DayFormat
}

// TimeWindow is a resolved [Start, End) filter window.
// A zero Start or End means that side is unbounded.
type TimeWindow struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// IsUnbounded reports whether no time filter applies.
func (w TimeWindow) IsUnbounded() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Point is a single bucket of a dataset.
type Point struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Dataset is one labeled series: ordered, unique bucket keys with their values.
type Dataset struct {
	Name    string  `json:"name"`
	Color   string  `json:"color,omitempty"`
	Fill    bool    `json:"fill"`
	Hidden  bool    `json:"hidden"`
	Stacked bool    `json:"stacked"`
	Points  []Point `json:"points"`
}

// Len returns the number of buckets.
func (d Dataset) Len() int {
	return len(d.Points)
}

// Keys returns the bucket keys in order.
func (d Dataset) Keys() []string {
	keys := make([]string, len(d.Points))
	for i, p := range d.Points {
		keys[i] = p.Key
	}
	return keys
}

// Values returns the bucket values in key order.
func (d Dataset) Values() []float64 {
	values := make([]float64, len(d.Points))
	for i, p := range d.Points {
		values[i] = p.Value
	}
	return values
}

// Value returns the value stored under key.
func (d Dataset) Value(key string) (float64, bool) {
	for _, p := range d.Points {
		if p.Key == key {
			return p.Value, true
		}
	}
	return 0, false
}

// ChartDefinition pairs a chart spec with its datasets, one per condition.
type ChartDefinition struct {
	Spec     ChartSpec `json:"spec"`
	Datasets []Dataset `json:"datasets"`
}
