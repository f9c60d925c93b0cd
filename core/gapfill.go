package core

import (
	"sort"
	"time"

	"github.com/huangsam/chartkit/schema"
	"github.com/ncruces/go-strftime"
)

// singlePointPadding widens a continuous series that has only one populated period.
const singlePointPadding = 14 * 24 * time.Hour

// fillGaps densifies date series. show_blank_data and continuous_time are exclusive.
func fillGaps(spec *schema.ChartSpec, points []point, now time.Time) []point {
	switch {
	case spec.ShowBlankData && spec.FilterDays != nil && spec.ReportType == schema.GroupByDate:
		return fillBlankDays(points, *spec.FilterDays, keyFormat(spec), now)
	case spec.ContinuousTime && spec.ReportType == schema.GroupByDate:
		period := spec.GroupByPeriod
		if period == "" {
			period = schema.DayPeriod
		}
		return fillContinuous(points, period, keyFormat(spec))
	default:
		return points
	}
}

// fillBlankDays emits one point per calendar day from now-days to now inclusive.
// Days without data are zero; points outside the range are dropped.
func fillBlankDays(points []point, days int, layout string, now time.Time) []point {
	values := pointValues(points)
	filled := make([]point, 0, days+1)
	seen := make(map[string]struct{}, days+1)
	for i := days; i >= 0; i-- {
		day := periodStart(now.AddDate(0, 0, -i), schema.DayPeriod)
		key := strftime.Format(layout, day)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filled = append(filled, point{key: key, at: day, value: values[key]})
	}
	return filled
}

// fillContinuous inserts zero points for every period boundary between the
// earliest and latest populated period. A single populated period is padded
// by two weeks on both sides.
func fillContinuous(points []point, period schema.GroupPeriod, layout string) []point {
	if len(points) == 0 {
		return points
	}

	lo, hi := points[0].at, points[0].at
	for _, p := range points[1:] {
		if p.at.Before(lo) {
			lo = p.at
		}
		if p.at.After(hi) {
			hi = p.at
		}
	}
	if periodStart(lo, period).Equal(periodStart(hi, period)) {
		lo, hi = lo.Add(-singlePointPadding), hi.Add(singlePointPadding)
	}

	values := pointValues(points)
	visited := make(map[string]struct{}, len(points))
	var filled []point
	for t := periodStart(lo, period); !t.After(hi); t = nextPeriod(t, period) {
		key := strftime.Format(layout, t)
		if _, dup := visited[key]; dup {
			continue
		}
		visited[key] = struct{}{}
		filled = append(filled, point{key: key, at: t, value: values[key]})
	}

	// Keys the walk cannot produce, e.g. from a coarse custom date format, stay in place.
	for _, p := range points {
		if _, ok := visited[p.key]; !ok {
			filled = append(filled, p)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool {
		return filled[i].at.Before(filled[j].at)
	})
	return filled
}

func pointValues(points []point) map[string]float64 {
	values := make(map[string]float64, len(points))
	for _, p := range points {
		values[p.key] = p.value
	}
	return values
}
