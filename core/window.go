package core

import (
	"time"

	"github.com/huangsam/chartkit/schema"
)

// ResolveWindow turns the time filter options of a chart into a concrete [start, end) window.
// The first applicable option wins: filter_days, then filter_period, then the explicit range.
// A zero bound is open; a chart with none of the options gets an unbounded window.
func ResolveWindow(spec *schema.ChartSpec, now time.Time) schema.TimeWindow {
	switch {
	case spec.FilterDays != nil:
		return schema.TimeWindow{Start: now.AddDate(0, 0, -*spec.FilterDays)}
	case spec.FilterPeriod != "":
		return schema.TimeWindow{Start: periodStart(now, schema.GroupPeriod(spec.FilterPeriod))}
	case !spec.RangeStart.IsZero() || !spec.RangeEnd.IsZero():
		return schema.TimeWindow{Start: spec.RangeStart, End: spec.RangeEnd}
	default:
		return schema.TimeWindow{}
	}
}

// periodStart truncates t to the first instant of its day, ISO week, month or year.
// Weeks start on Monday.
func periodStart(t time.Time, period schema.GroupPeriod) time.Time {
	y, m, d := t.Date()
	switch period {
	case schema.WeekPeriod:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
	case schema.MonthPeriod:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case schema.YearPeriod:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// nextPeriod advances a period start to the next one.
func nextPeriod(t time.Time, period schema.GroupPeriod) time.Time {
	switch period {
	case schema.WeekPeriod:
		return t.AddDate(0, 0, 7)
	case schema.MonthPeriod:
		return t.AddDate(0, 1, 0)
	case schema.YearPeriod:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}
