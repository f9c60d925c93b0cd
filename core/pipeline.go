// Package core has the chart data pipeline: windowing, bucketing,
// aggregation, top-N selection, gap filling and relabeling.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"go.uber.org/zap"
)

// Builder computes chart definitions from chart specs and a source resolver.
type Builder struct {
	resolver contract.SourceResolver
	logger   *zap.Logger
	now      func() time.Time
	strict   bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for pipeline events.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the clock used to resolve relative time windows.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithStrictSources makes unknown data sources fail the build
// instead of producing empty datasets.
func WithStrictSources() Option {
	return func(b *Builder) {
		b.strict = true
	}
}

// NewBuilder is the starting point for building charts.
func NewBuilder(resolver contract.SourceResolver, opts ...Option) *Builder {
	b := &Builder{
		resolver: resolver,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes one chart definition per spec, in spec order.
// Each definition holds one dataset per series condition, in condition order.
// The clock is read once so every chart shares the same "now".
func (b *Builder) Build(ctx context.Context, specs ...schema.ChartSpec) ([]schema.ChartDefinition, error) {
	now := b.now()
	defs := make([]schema.ChartDefinition, 0, len(specs))
	for i := range specs {
		def, err := b.buildChart(ctx, &specs[i], now)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// BuildChart computes the definition of a single chart.
func (b *Builder) BuildChart(ctx context.Context, spec schema.ChartSpec) (schema.ChartDefinition, error) {
	return b.buildChart(ctx, &spec, b.now())
}

func (b *Builder) buildChart(ctx context.Context, spec *schema.ChartSpec, now time.Time) (schema.ChartDefinition, error) {
	conditions := spec.Conditions
	if len(conditions) == 0 {
		conditions = []schema.SeriesCondition{{Name: spec.Title, Color: spec.Color, Fill: true}}
	}

	window := ResolveWindow(spec, now)
	def := schema.ChartDefinition{Spec: *spec, Datasets: make([]schema.Dataset, 0, len(conditions))}
	for _, cond := range conditions {
		if err := ctx.Err(); err != nil {
			return schema.ChartDefinition{}, err
		}
		points, err := b.buildSeries(ctx, spec, cond, window, now)
		if errors.Is(err, schema.ErrDataSourceNotFound) && !b.strict {
			points = emptyDatasetFallback(b.logger, spec, err)
		} else if err != nil {
			return schema.ChartDefinition{}, err
		}
		def.Datasets = append(def.Datasets, newDataset(spec, cond, points))
	}

	b.logger.Debug("built chart",
		zap.String("chart", spec.Name),
		zap.Int("datasets", len(def.Datasets)),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)
	return def, nil
}

// buildSeries runs one chart x condition pair through the pipeline stages.
func (b *Builder) buildSeries(ctx context.Context, spec *schema.ChartSpec, cond schema.SeriesCondition, window schema.TimeWindow, now time.Time) ([]point, error) {
	query, err := b.resolver.Open(ctx, spec.DataSource)
	if err != nil {
		return nil, asDataSourceError(spec.DataSource, err)
	}
	composeQuery(query, spec, cond, window)

	records, err := query.Fetch(ctx)
	if err != nil {
		return nil, asDataSourceError(spec.DataSource, err)
	}

	buckets, err := bucketRecords(spec, records)
	if err != nil {
		return nil, err
	}
	points, err := aggregateBuckets(spec, buckets)
	if err != nil {
		return nil, err
	}
	points = selectTop(points, spec.TopResults)
	points = fillGaps(spec, points, now)
	points = remapLabels(points, spec.Labels)

	b.logger.Debug("built series",
		zap.String("chart", spec.Name),
		zap.String("series", cond.Name),
		zap.Int("records", len(records)),
		zap.Int("buckets", len(points)),
	)
	return points, nil
}

// composeQuery applies ordering, filters, relationship loading and scopes.
// Condition predicates only narrow line chart series. Relationship charts
// order by the related field, which the base record does not carry.
func composeQuery(query contract.RecordQuery, spec *schema.ChartSpec, cond schema.SeriesCondition, window schema.TimeWindow) {
	if spec.ReportType == schema.GroupByRelationship {
		query.OrderBy(contract.RelatedField(spec.RelationshipName, spec.GroupByField))
	} else {
		query.OrderBy(spec.GroupByField)
	}
	if !window.IsUnbounded() {
		query.FilterRange(spec.FilterField, window.Start, window.End)
	}
	if spec.WhereRaw != "" {
		query.FilterPredicate(spec.WhereRaw)
	}
	if spec.ChartType == schema.LineChart && cond.Condition != "" {
		query.FilterPredicate(cond.Condition)
	}
	if spec.ReportType == schema.GroupByRelationship {
		query.IncludeRelationship(spec.RelationshipName)
	}
	query.ApplyScopeModifiers(spec.Scope)
}

// emptyDatasetFallback is the named path taken when a chart points at a data
// source that does not exist and strict mode is off.
func emptyDatasetFallback(logger *zap.Logger, spec *schema.ChartSpec, err error) []point {
	logger.Warn("data source not found, building empty dataset",
		zap.String("chart", spec.Name),
		zap.String("data_source", spec.DataSource),
		zap.Error(err),
	)
	return nil
}

func asDataSourceError(source string, err error) error {
	var dsErr *schema.DataSourceError
	if errors.As(err, &dsErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &schema.DataSourceError{Source: source, Err: err}
}

func newDataset(spec *schema.ChartSpec, cond schema.SeriesCondition, points []point) schema.Dataset {
	ds := schema.Dataset{
		Name:    cond.Name,
		Color:   cond.Color,
		Fill:    cond.Fill,
		Hidden:  spec.Hidden,
		Stacked: spec.Stacked,
		Points:  make([]schema.Point, len(points)),
	}
	for i, p := range points {
		ds.Points[i] = schema.Point{Key: p.key, Value: p.value}
	}
	return ds
}
