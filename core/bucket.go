package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/ncruces/go-strftime"
	"github.com/spf13/cast"
)

// fallbackDateLayouts are tried in order when a chart has no group_by_field_format.
var fallbackDateLayouts = []string{time.DateTime, time.RFC3339, time.DateOnly}

// bucket is a group of records sharing one key.
// at is the earliest record time for date buckets and zero otherwise.
type bucket struct {
	key     string
	at      time.Time
	records []contract.Record
}

// keyFunc maps a record to its bucket key. keep=false drops the record.
type keyFunc func(rec contract.Record) (key string, at time.Time, keep bool, err error)

// bucketStrategies holds one key function constructor per report type.
var bucketStrategies = map[schema.ReportType]func(spec *schema.ChartSpec) keyFunc{
	schema.GroupByString:       byString,
	schema.GroupByRelationship: byRelationship,
	schema.GroupByDate:         byDate,
}

// bucketRecords groups records by key. Buckets keep first-seen order,
// which is ascending because records arrive sorted by the group field.
func bucketRecords(spec *schema.ChartSpec, records []contract.Record) ([]bucket, error) {
	strategy, ok := bucketStrategies[spec.ReportType]
	if !ok {
		return nil, &schema.ConfigurationError{Field: "report_type", Message: fmt.Sprintf("unsupported report type %q", spec.ReportType)}
	}
	keyOf := strategy(spec)

	index := make(map[string]int)
	var buckets []bucket
	for _, rec := range records {
		key, at, keep, err := keyOf(rec)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(buckets)
			buckets = append(buckets, bucket{key: key, at: at})
			i = len(buckets) - 1
		} else if !at.IsZero() && at.Before(buckets[i].at) {
			buckets[i].at = at
		}
		buckets[i].records = append(buckets[i].records, rec)
	}
	return buckets, nil
}

func byString(spec *schema.ChartSpec) keyFunc {
	return func(rec contract.Record) (string, time.Time, bool, error) {
		v, ok := rec.Get(spec.GroupByField)
		if !ok || v == nil {
			return "", time.Time{}, false, nil
		}
		key := cast.ToString(v)
		return key, time.Time{}, key != "", nil
	}
}

// byRelationship keeps records without a related entity under the "" key.
func byRelationship(spec *schema.ChartSpec) keyFunc {
	return func(rec contract.Record) (string, time.Time, bool, error) {
		related, ok := rec.Related(spec.RelationshipName)
		if !ok || related == nil {
			return "", time.Time{}, true, nil
		}
		v, ok := related.Get(spec.GroupByField)
		if !ok || v == nil {
			return "", time.Time{}, true, nil
		}
		return cast.ToString(v), time.Time{}, true, nil
	}
}

func byDate(spec *schema.ChartSpec) keyFunc {
	layout := keyFormat(spec)
	return func(rec contract.Record) (string, time.Time, bool, error) {
		v, _ := rec.Get(spec.GroupByField)
		t, err := toTime(spec.GroupByField, v, spec.GroupByFieldFormat)
		if err != nil {
			return "", time.Time{}, false, err
		}
		return strftime.Format(layout, t), t, true, nil
	}
}

// keyFormat is the layout of date bucket keys. Blank-data charts always bucket by day.
func keyFormat(spec *schema.ChartSpec) string {
	if spec.ShowBlankData && spec.DateFormat == "" {
		return schema.DayFormat
	}
	return spec.KeyFormat()
}

// toTime reads a record value as a time. Strings are parsed with layout,
// or with the fallback layouts when layout is empty.
func toTime(field string, v any, layout string) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
		return time.Time{}, &schema.DateParseError{Field: field, Value: v, Layout: layout}
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, &schema.DateParseError{Field: field, Value: v, Layout: layout}
	}

	s = strings.TrimSpace(s)
	if layout != "" {
		parsed, err := strftime.Parse(layout, s)
		if err != nil {
			return time.Time{}, &schema.DateParseError{Field: field, Value: v, Layout: layout, Err: err}
		}
		return parsed, nil
	}

	var lastErr error
	for _, candidate := range fallbackDateLayouts {
		parsed, err := time.Parse(candidate, s)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, &schema.DateParseError{Field: field, Value: v, Layout: schema.DefaultGroupFieldFormat, Err: lastErr}
}
