package core

import (
	"testing"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/source"
	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(recs ...source.MapRecord) []contract.Record {
	out := make([]contract.Record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

func bucketKeys(buckets []bucket) []string {
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.key
	}
	return keys
}

func bucketSizes(buckets []bucket) map[string]int {
	sizes := make(map[string]int, len(buckets))
	for _, b := range buckets {
		sizes[b.key] = len(b.records)
	}
	return sizes
}

func TestBucketRecordsByString(t *testing.T) {
	spec := &schema.ChartSpec{ReportType: schema.GroupByString, GroupByField: "category"}
	input := records(
		source.MapRecord{"category": "a"},
		source.MapRecord{"category": "a"},
		source.MapRecord{"category": "b"},
		source.MapRecord{"category": nil},
		source.MapRecord{"category": ""},
		source.MapRecord{"other": "x"},
		source.MapRecord{"category": 7},
	)

	buckets, err := bucketRecords(spec, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "7"}, bucketKeys(buckets))
	assert.Equal(t, map[string]int{"a": 2, "b": 1, "7": 1}, bucketSizes(buckets))
}

func TestBucketRecordsByRelationship(t *testing.T) {
	spec := &schema.ChartSpec{ReportType: schema.GroupByRelationship, GroupByField: "name", RelationshipName: "author"}
	input := records(
		source.MapRecord{"author": source.MapRecord{"name": "ann"}},
		source.MapRecord{"author": map[string]any{"name": "bob"}},
		source.MapRecord{"author": source.MapRecord{"name": "ann"}},
		source.MapRecord{"title": "orphan"},
		source.MapRecord{"author": source.MapRecord{"name": nil}},
	)

	buckets, err := bucketRecords(spec, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob", ""}, bucketKeys(buckets))
	assert.Equal(t, map[string]int{"ann": 2, "bob": 1, "": 2}, bucketSizes(buckets))
}

func TestBucketRecordsByDate(t *testing.T) {
	tests := []struct {
		name     string
		spec     schema.ChartSpec
		input    []contract.Record
		wantKeys []string
		wantSize map[string]int
	}{
		{
			name: "day from date strings",
			spec: schema.ChartSpec{GroupByPeriod: schema.DayPeriod},
			input: records(
				source.MapRecord{"d": "2024-01-01"},
				source.MapRecord{"d": "2024-01-01"},
				source.MapRecord{"d": "2024-01-03"},
			),
			wantKeys: []string{"2024-01-01", "2024-01-03"},
			wantSize: map[string]int{"2024-01-01": 2, "2024-01-03": 1},
		},
		{
			name: "month from mixed values",
			spec: schema.ChartSpec{GroupByPeriod: schema.MonthPeriod},
			input: records(
				source.MapRecord{"d": "2024-01-05 10:00:00"},
				source.MapRecord{"d": time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
				source.MapRecord{"d": "2024-02-01T08:00:00Z"},
			),
			wantKeys: []string{"2024-01", "2024-02"},
			wantSize: map[string]int{"2024-01": 2, "2024-02": 1},
		},
		{
			name: "iso week",
			spec: schema.ChartSpec{GroupByPeriod: schema.WeekPeriod},
			input: records(
				source.MapRecord{"d": "2024-01-01"},
				source.MapRecord{"d": "2024-01-07"},
				source.MapRecord{"d": "2024-01-08"},
			),
			wantKeys: []string{"2024-W01", "2024-W02"},
			wantSize: map[string]int{"2024-W01": 2, "2024-W02": 1},
		},
		{
			name: "custom field format and date format",
			spec: schema.ChartSpec{GroupByFieldFormat: "%d/%m/%Y", DateFormat: "%b %Y"},
			input: records(
				source.MapRecord{"d": "15/03/2024"},
				source.MapRecord{"d": []byte("01/04/2024")},
			),
			wantKeys: []string{"Mar 2024", "Apr 2024"},
			wantSize: map[string]int{"Mar 2024": 1, "Apr 2024": 1},
		},
		{
			name: "blank data buckets by day",
			spec: schema.ChartSpec{GroupByPeriod: schema.MonthPeriod, ShowBlankData: true},
			input: records(
				source.MapRecord{"d": "2024-01-01"},
				source.MapRecord{"d": "2024-01-02"},
			),
			wantKeys: []string{"2024-01-01", "2024-01-02"},
			wantSize: map[string]int{"2024-01-01": 1, "2024-01-02": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.spec.ReportType = schema.GroupByDate
			tt.spec.GroupByField = "d"
			buckets, err := bucketRecords(&tt.spec, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeys, bucketKeys(buckets))
			assert.Equal(t, tt.wantSize, bucketSizes(buckets))
		})
	}
}

func TestBucketRecordsTracksEarliestTime(t *testing.T) {
	spec := &schema.ChartSpec{ReportType: schema.GroupByDate, GroupByField: "d", GroupByPeriod: schema.MonthPeriod}
	input := records(
		source.MapRecord{"d": "2024-01-20"},
		source.MapRecord{"d": "2024-01-03"},
	)

	buckets, err := bucketRecords(spec, input)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), buckets[0].at)
}

func TestBucketRecordsDateErrors(t *testing.T) {
	tests := []struct {
		name   string
		layout string
		value  any
	}{
		{"fallback layouts", "", "yesterday"},
		{"explicit layout", "%d/%m/%Y", "2024-01-01"},
		{"missing field", "", nil},
		{"number", "", 20240101},
		{"nil time pointer", "", (*time.Time)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &schema.ChartSpec{ReportType: schema.GroupByDate, GroupByField: "d", GroupByFieldFormat: tt.layout}
			_, err := bucketRecords(spec, records(source.MapRecord{"d": tt.value}))
			var dateErr *schema.DateParseError
			require.ErrorAs(t, err, &dateErr)
			assert.Equal(t, "d", dateErr.Field)
		})
	}
}

func TestBucketRecordsUnsupportedReportType(t *testing.T) {
	_, err := bucketRecords(&schema.ChartSpec{ReportType: "group_by_color"}, nil)
	var cfgErr *schema.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "report_type", cfgErr.Field)
}

func TestKeyFormat(t *testing.T) {
	assert.Equal(t, "%Y-%m", keyFormat(&schema.ChartSpec{GroupByPeriod: schema.MonthPeriod}))
	assert.Equal(t, schema.DayFormat, keyFormat(&schema.ChartSpec{GroupByPeriod: schema.MonthPeriod, ShowBlankData: true}))
	assert.Equal(t, "%d.%m", keyFormat(&schema.ChartSpec{ShowBlankData: true, DateFormat: "%d.%m"}))
	assert.Equal(t, schema.DayFormat, keyFormat(&schema.ChartSpec{}))
}
