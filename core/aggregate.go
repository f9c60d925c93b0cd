package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// point is an aggregated bucket. at carries the bucket time for gap filling.
type point struct {
	key   string
	at    time.Time
	value float64
}

// aggregateFunc reduces the records of one bucket to a number.
type aggregateFunc func(spec *schema.ChartSpec, b bucket) (float64, error)

// aggregateStrategies holds one reducer per aggregate function.
var aggregateStrategies = map[schema.AggregateFunction]aggregateFunc{
	schema.CountFunction: countRecords,
	schema.SumFunction:   sumRecords,
	schema.AvgFunction:   avgRecords,
}

// aggregateBuckets reduces every bucket to a point, in bucket order.
func aggregateBuckets(spec *schema.ChartSpec, buckets []bucket) ([]point, error) {
	fn, ok := aggregateStrategies[spec.AggregateFunction]
	if !ok {
		return nil, &schema.ConfigurationError{Field: "aggregate_function", Message: fmt.Sprintf("unsupported aggregate function %q", spec.AggregateFunction)}
	}

	points := make([]point, 0, len(buckets))
	for _, b := range buckets {
		if spec.FieldDistinct != "" {
			b.records = distinctRecords(b.records, spec.FieldDistinct)
		}
		value, err := fn(spec, b)
		if err != nil {
			return nil, err
		}
		if spec.Transform != nil {
			if value, err = spec.Transform(value); err != nil {
				return nil, fmt.Errorf("aggregate_transform on bucket %q: %w", b.key, err)
			}
		}
		points = append(points, point{key: b.key, at: b.at, value: value})
	}
	return points, nil
}

// distinctRecords keeps the first record for each value of field.
// Records missing the field share a single slot.
func distinctRecords(records []contract.Record, field string) []contract.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]contract.Record, 0, len(records))
	for _, rec := range records {
		v, _ := rec.Get(field)
		id := fmt.Sprintf("%T:%v", v, v)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func countRecords(_ *schema.ChartSpec, b bucket) (float64, error) {
	return float64(len(b.records)), nil
}

func sumRecords(spec *schema.ChartSpec, b bucket) (float64, error) {
	total, err := sumField(spec, b)
	if err != nil {
		return 0, err
	}
	return total.InexactFloat64(), nil
}

func avgRecords(spec *schema.ChartSpec, b bucket) (float64, error) {
	if len(b.records) == 0 {
		return 0, nil
	}
	total, err := sumField(spec, b)
	if err != nil {
		return 0, err
	}
	return total.Div(decimal.NewFromInt(int64(len(b.records)))).InexactFloat64(), nil
}

// sumField adds aggregate_field over the bucket with exact decimal arithmetic.
func sumField(spec *schema.ChartSpec, b bucket) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range b.records {
		v, _ := rec.Get(spec.AggregateField)
		d, ok := toDecimal(v)
		if !ok {
			return decimal.Zero, &schema.AggregationError{
				Field:    spec.AggregateField,
				Bucket:   b.key,
				Value:    v,
				Function: spec.AggregateFunction,
			}
		}
		total = total.Add(d)
	}
	return total, nil
}

// toDecimal accepts numbers and numeric strings. Booleans, nil and NaN are not numeric.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return decimal.NewFromInt(cast.ToInt64(n)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(string(n)))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
