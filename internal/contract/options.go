package contract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/huangsam/chartkit/internal/script"
	"github.com/huangsam/chartkit/schema"
	"github.com/ncruces/go-strftime"
	"github.com/spf13/cast"
)

// optionRule is one row of the chart option rule table.
// check returns true when the raw options satisfy the rule.
type optionRule struct {
	field   string
	check   func(raw map[string]any) bool
	message string
}

// optionRules is evaluated top to bottom and the first violation wins.
var optionRules = []optionRule{
	{"chart_title", present("chart_title"), "chart_title is required"},
	{"report_type", present("report_type"), "report_type is required"},
	{"report_type", oneOf("report_type", schema.ValidReportTypes), "report_type must be group_by_date, group_by_string or group_by_relationship"},
	{"data_source", present("data_source"), "data_source is required"},
	{"group_by_field", present("group_by_field"), "group_by_field is required"},
	{"chart_type", present("chart_type"), "chart_type is required"},
	{"chart_type", oneOf("chart_type", schema.ValidChartTypes), "chart_type must be line, bar or pie"},

	{"group_by_period", optional("group_by_period", oneOf("group_by_period", schema.ValidGroupPeriods)), "group_by_period must be day, week, month or year"},
	{"aggregate_function", optional("aggregate_function", oneOf("aggregate_function", schema.ValidAggregateFunctions)), "aggregate_function must be count, sum or avg"},
	{"filter_period", optional("filter_period", oneOf("filter_period", schema.ValidFilterPeriods)), "filter_period must be week, month or year"},

	{"filter_days", optional("filter_days", integer("filter_days", 0)), "filter_days must be a non-negative integer"},
	{"top_results", optional("top_results", integer("top_results", 1)), "top_results must be a positive integer"},
	{"chart_height", optional("chart_height", integer("chart_height", 1)), "chart_height must be a positive integer"},

	{"group_by_period", periodForDates, "group_by_period is required for group_by_date unless date_format is set"},
	{"aggregate_field", fieldForAggregate, "aggregate_field is required when aggregate_function is sum or avg"},
	{"relationship_name", relationshipForReport, "relationship_name is required for group_by_relationship"},
	{"show_blank_data", blankDataPrerequisites, "show_blank_data requires filter_days and either date_format or group_by_period"},
	{"show_blank_data", blankDataForDates, "show_blank_data is only supported for group_by_date"},
	{"continuous_time", notBoth("continuous_time", "show_blank_data"), "continuous_time cannot be combined with show_blank_data"},
	{"conditions", optional("conditions", conditionList), "conditions must be a list of {name, condition, color, fill} maps"},
	{"labels", optional("labels", labelMapping), "labels must map old bucket keys to new bucket keys"},
}

// chartOptions mirrors the recognized option keys for decoding after validation.
type chartOptions struct {
	ChartTitle          string                   `mapstructure:"chart_title"`
	ChartName           string                   `mapstructure:"chart_name"`
	ChartType           string                   `mapstructure:"chart_type"`
	ChartHeight         int                      `mapstructure:"chart_height"`
	ChartColor          string                   `mapstructure:"chart_color"`
	Stacked             bool                     `mapstructure:"stacked"`
	Hidden              bool                     `mapstructure:"hidden"`
	ReportType          string                   `mapstructure:"report_type"`
	DataSource          string                   `mapstructure:"data_source"`
	GroupByField        string                   `mapstructure:"group_by_field"`
	GroupByFieldFormat  string                   `mapstructure:"group_by_field_format"`
	GroupByPeriod       string                   `mapstructure:"group_by_period"`
	DateFormat          string                   `mapstructure:"date_format"`
	RelationshipName    string                   `mapstructure:"relationship_name"`
	AggregateFunction   string                   `mapstructure:"aggregate_function"`
	AggregateField      string                   `mapstructure:"aggregate_field"`
	AggregateTransform  string                   `mapstructure:"aggregate_transform"`
	FieldDistinct       string                   `mapstructure:"field_distinct"`
	FilterField         string                   `mapstructure:"filter_field"`
	FilterDays          *int                     `mapstructure:"filter_days"`
	FilterPeriod        string                   `mapstructure:"filter_period"`
	RangeDateStart      string                   `mapstructure:"range_date_start"`
	RangeDateEnd        string                   `mapstructure:"range_date_end"`
	WhereRaw            string                   `mapstructure:"where_raw"`
	WithTrashed         bool                     `mapstructure:"with_trashed"`
	OnlyTrashed         bool                     `mapstructure:"only_trashed"`
	WithoutGlobalScopes any                      `mapstructure:"without_global_scopes"`
	Conditions          []schema.SeriesCondition `mapstructure:"conditions"`
	TopResults          int                      `mapstructure:"top_results"`
	ShowBlankData       bool                     `mapstructure:"show_blank_data"`
	ContinuousTime      bool                     `mapstructure:"continuous_time"`
}

// ValidateChartOptions checks a raw option map against the rule table and
// returns the typed chart spec. The first violated rule is reported as a
// *schema.ConfigurationError.
func ValidateChartOptions(raw map[string]any) (schema.ChartSpec, error) {
	for _, rule := range optionRules {
		if !rule.check(raw) {
			return schema.ChartSpec{}, &schema.ConfigurationError{Field: rule.field, Message: rule.message}
		}
	}

	var opts chartOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return schema.ChartSpec{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return schema.ChartSpec{}, &schema.ConfigurationError{Field: "options", Message: err.Error()}
	}

	spec := schema.ChartSpec{
		Title:              opts.ChartTitle,
		Name:               opts.ChartName,
		ChartType:          schema.ChartType(opts.ChartType),
		Height:             opts.ChartHeight,
		Color:              opts.ChartColor,
		Stacked:            opts.Stacked,
		Hidden:             opts.Hidden,
		ReportType:         schema.ReportType(opts.ReportType),
		DataSource:         opts.DataSource,
		GroupByField:       opts.GroupByField,
		GroupByFieldFormat: opts.GroupByFieldFormat,
		GroupByPeriod:      schema.GroupPeriod(opts.GroupByPeriod),
		DateFormat:         opts.DateFormat,
		RelationshipName:   opts.RelationshipName,
		AggregateFunction:  schema.AggregateFunction(opts.AggregateFunction),
		AggregateField:     opts.AggregateField,
		FieldDistinct:      opts.FieldDistinct,
		TransformExpr:      strings.TrimSpace(opts.AggregateTransform),
		FilterField:        opts.FilterField,
		FilterDays:         opts.FilterDays,
		FilterPeriod:       schema.FilterPeriod(opts.FilterPeriod),
		WhereRaw:           strings.TrimSpace(opts.WhereRaw),
		Scope: schema.ScopeModifiers{
			WithTrashed:         opts.WithTrashed,
			OnlyTrashed:         opts.OnlyTrashed,
			WithoutGlobalScopes: globalScopeList(opts.WithoutGlobalScopes),
		},
		Conditions:     opts.Conditions,
		TopResults:     opts.TopResults,
		ShowBlankData:  opts.ShowBlankData,
		ContinuousTime: opts.ContinuousTime,
		Labels:         decodeLabels(raw["labels"]),
	}

	if err := applyDefaults(&spec); err != nil {
		return schema.ChartSpec{}, err
	}
	if err := parseRange(&spec, opts.RangeDateStart, opts.RangeDateEnd); err != nil {
		return schema.ChartSpec{}, err
	}
	if spec.ShowBlankData && !isDayGranular(blankDataFormat(&spec)) {
		return schema.ChartSpec{}, &schema.ConfigurationError{Field: "date_format", Message: "show_blank_data needs a date_format with one distinct key per day"}
	}
	if spec.TransformExpr != "" {
		fn, err := script.CompileTransform(spec.TransformExpr)
		if err != nil {
			return schema.ChartSpec{}, &schema.ConfigurationError{Field: "aggregate_transform", Message: err.Error()}
		}
		spec.Transform = fn
	}

	return spec, nil
}

// applyDefaults fills in derived and default values.
func applyDefaults(spec *schema.ChartSpec) error {
	if spec.Name == "" {
		spec.Name = Slug(spec.Title)
	}
	if spec.Height == 0 {
		spec.Height = schema.DefaultChartHeight
	}
	if spec.AggregateFunction == "" {
		spec.AggregateFunction = schema.CountFunction
	}
	if spec.FilterField == "" {
		spec.FilterField = schema.DefaultFilterField
	}
	if len(spec.Conditions) == 0 {
		spec.Conditions = []schema.SeriesCondition{{Name: spec.Title, Color: spec.Color, Fill: true}}
	}
	for i := range spec.Conditions {
		if spec.Conditions[i].Name == "" {
			spec.Conditions[i].Name = spec.Title
		}
		if spec.Conditions[i].Color == "" {
			spec.Conditions[i].Color = spec.Color
		}
	}
	return nil
}

// parseRange parses the explicit range options.
func parseRange(spec *schema.ChartSpec, start, end string) error {
	var err error
	if start != "" {
		if spec.RangeStart, err = ParseDate(start); err != nil {
			return &schema.ConfigurationError{Field: "range_date_start", Message: "range_date_start must be RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD"}
		}
	}
	if end != "" {
		if spec.RangeEnd, err = ParseDate(end); err != nil {
			return &schema.ConfigurationError{Field: "range_date_end", Message: "range_date_end must be RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD"}
		}
	}
	if !spec.RangeStart.IsZero() && !spec.RangeEnd.IsZero() && spec.RangeStart.After(spec.RangeEnd) {
		return &schema.ConfigurationError{Field: "range_date_end", Message: "range_date_end cannot be before range_date_start"}
	}
	return nil
}

// ParseDate accepts RFC3339 timestamps, "YYYY-MM-DD HH:MM:SS" and plain
// YYYY-MM-DD dates. Values without an offset are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s and collapses every run of other characters to "_".
func Slug(s string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if slug == "" {
		return schema.DefaultChartName
	}
	return slug
}

// blankDataFormat is the key layout used when show_blank_data fills every day.
func blankDataFormat(spec *schema.ChartSpec) string {
	if spec.DateFormat != "" {
		return spec.DateFormat
	}
	return schema.DayFormat
}

// isDayGranular reports whether layout gives exactly one key per calendar day:
// consecutive days differ and every time of day shares its day's key.
func isDayGranular(layout string) bool {
	day := time.Date(2000, time.January, 3, 0, 0, 0, 0, time.UTC)
	key := strftime.Format(layout, day)
	return key != strftime.Format(layout, day.AddDate(0, 0, 1)) &&
		key == strftime.Format(layout, day.Add(24*time.Hour-time.Nanosecond))
}

// globalScopeList accepts `true` (skip all), a single name, or a list of names.
func globalScopeList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return []string{"*"}
		}
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		names, err := cast.ToStringSliceE(t)
		if err != nil {
			return nil
		}
		return names
	}
}

// decodeLabels accepts a key->key map or a list of {from, to} pairs.
// The list form keeps the case of keys through config loaders that lower-case map keys.
func decodeLabels(v any) map[string]string {
	if v == nil {
		return nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return cast.ToStringMapString(v)
	}
	labels := make(map[string]string, len(items))
	for _, item := range items {
		pair := cast.ToStringMapString(item)
		labels[pair["from"]] = pair["to"]
	}
	return labels
}

// present returns a check that the key is set to a non-empty value.
func present(key string) func(map[string]any) bool {
	return func(raw map[string]any) bool {
		v, ok := raw[key]
		if !ok || v == nil {
			return false
		}
		if s, isString := v.(string); isString {
			return strings.TrimSpace(s) != ""
		}
		return true
	}
}

// optional only runs check when the key is present.
func optional(key string, check func(map[string]any) bool) func(map[string]any) bool {
	isSet := present(key)
	return func(raw map[string]any) bool {
		return !isSet(raw) || check(raw)
	}
}

// oneOf returns a check that the key's string value is in set.
func oneOf[T ~string](key string, set map[T]struct{}) func(map[string]any) bool {
	return func(raw map[string]any) bool {
		s, ok := raw[key].(string)
		if !ok {
			return false
		}
		_, valid := set[T(s)]
		return valid
	}
}

// integer returns a check that the key holds a whole number >= lowest.
// Integral floats are accepted because JSON decodes every number as float64.
func integer(key string, lowest int64) func(map[string]any) bool {
	return func(raw map[string]any) bool {
		var n int64
		switch v := raw[key].(type) {
		case int:
			n = int64(v)
		case int32:
			n = int64(v)
		case int64:
			n = v
		case uint:
			n = int64(v)
		case uint64:
			n = int64(v)
		case float64:
			if v != math.Trunc(v) {
				return false
			}
			n = int64(v)
		default:
			return false
		}
		return n >= lowest
	}
}

func periodForDates(raw map[string]any) bool {
	if raw["report_type"] != string(schema.GroupByDate) {
		return true
	}
	return present("group_by_period")(raw) || present("date_format")(raw)
}

func fieldForAggregate(raw map[string]any) bool {
	fn, _ := raw["aggregate_function"].(string)
	if fn == "" || fn == string(schema.CountFunction) {
		return true
	}
	return present("aggregate_field")(raw)
}

func relationshipForReport(raw map[string]any) bool {
	if raw["report_type"] != string(schema.GroupByRelationship) {
		return true
	}
	return present("relationship_name")(raw)
}

func blankDataPrerequisites(raw map[string]any) bool {
	if !cast.ToBool(raw["show_blank_data"]) {
		return true
	}
	return present("filter_days")(raw) && (present("date_format")(raw) || present("group_by_period")(raw))
}

func blankDataForDates(raw map[string]any) bool {
	return !cast.ToBool(raw["show_blank_data"]) || cast.ToString(raw["report_type"]) == string(schema.GroupByDate)
}

func notBoth(a, b string) func(map[string]any) bool {
	return func(raw map[string]any) bool {
		return !(cast.ToBool(raw[a]) && cast.ToBool(raw[b]))
	}
}

func conditionList(raw map[string]any) bool {
	if _, ok := raw["conditions"].([]schema.SeriesCondition); ok {
		return true
	}
	items, err := cast.ToSliceE(raw["conditions"])
	if err != nil {
		return false
	}
	for _, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return false
		}
		if name, ok := m["name"]; ok {
			if _, isString := name.(string); !isString {
				return false
			}
		}
	}
	return true
}

func labelMapping(raw map[string]any) bool {
	if items, err := cast.ToSliceE(raw["labels"]); err == nil {
		for _, item := range items {
			pair, err := cast.ToStringMapE(item)
			if err != nil {
				return false
			}
			if _, ok := pair["from"]; !ok {
				return false
			}
			if _, ok := pair["to"]; !ok {
				return false
			}
		}
		return true
	}
	_, err := cast.ToStringMapStringE(raw["labels"])
	return err == nil
}

// SortedLabelKeys returns the label sources in the order they are applied.
func SortedLabelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DescribeOptions renders the validated options for logs and status output.
func DescribeOptions(spec schema.ChartSpec) string {
	return fmt.Sprintf("%s (%s, %s by %s, %s)", spec.Name, spec.ChartType, spec.ReportType, spec.GroupByField, spec.AggregateFunction)
}
