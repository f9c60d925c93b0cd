package source

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/script"
	"github.com/huangsam/chartkit/schema"
)

// MemorySource serves records held in memory. Predicates and global filters
// are tengo expressions over `record`.
type MemorySource struct {
	records         []MapRecord
	softDeleteField string
	globalFilters   map[string]string
}

var _ Source = &MemorySource{} // Compile-time check

// NewMemorySource creates a source over records. Only the soft delete field
// and the global filters of cfg are used.
func NewMemorySource(cfg contract.SourceConfig, records []MapRecord) *MemorySource {
	return &MemorySource{
		records:         records,
		softDeleteField: cfg.SoftDeleteField,
		globalFilters:   cfg.GlobalFilters,
	}
}

// LoadMemorySource reads a JSON array of objects from cfg.File.
func LoadMemorySource(cfg contract.SourceConfig) (*MemorySource, error) {
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file %q: %w", cfg.File, err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse records file %q: %w", cfg.File, err)
	}
	records := make([]MapRecord, len(raw))
	for i, r := range raw {
		records[i] = MapRecord(r)
	}
	return NewMemorySource(cfg, records), nil
}

// Query implements the Source interface.
func (s *MemorySource) Query() contract.RecordQuery {
	return &memoryQuery{src: s}
}

// Close implements the Source interface.
func (s *MemorySource) Close() error {
	return nil
}

type rangeFilter struct {
	field      string
	start, end time.Time
}

type memoryQuery struct {
	src        *MemorySource
	orderBy    string
	ranges     []rangeFilter
	predicates []string
	includes   []string
	scope      schema.ScopeModifiers
}

func (q *memoryQuery) OrderBy(field string) { q.orderBy = field }

func (q *memoryQuery) FilterRange(field string, start, end time.Time) {
	q.ranges = append(q.ranges, rangeFilter{field: field, start: start, end: end})
}

func (q *memoryQuery) FilterPredicate(expr string) { q.predicates = append(q.predicates, expr) }

// IncludeRelationship is a no-op: related records are nested in the record itself.
func (q *memoryQuery) IncludeRelationship(name string) { q.includes = append(q.includes, name) }

func (q *memoryQuery) ApplyScopeModifiers(scope schema.ScopeModifiers) { q.scope = scope }

// Fetch implements the RecordQuery interface.
func (q *memoryQuery) Fetch(ctx context.Context) ([]contract.Record, error) {
	predicates, err := q.compilePredicates()
	if err != nil {
		return nil, err
	}

	var matched []MapRecord
	for _, rec := range q.src.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.inScope(rec) || !q.inRanges(rec) {
			continue
		}
		ok, err := matchAll(predicates, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	if q.orderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return compareValues(fieldValue(matched[i], q.orderBy), fieldValue(matched[j], q.orderBy)) < 0
		})
	}

	out := make([]contract.Record, len(matched))
	for i, rec := range matched {
		out[i] = rec
	}
	return out, nil
}

func (q *memoryQuery) compilePredicates() ([]*script.Predicate, error) {
	exprs := slices.Clone(q.predicates)
	for _, name := range slices.Sorted(maps.Keys(q.src.globalFilters)) {
		if !skipsGlobalFilter(q.scope, name) {
			exprs = append(exprs, q.src.globalFilters[name])
		}
	}
	predicates := make([]*script.Predicate, 0, len(exprs))
	for _, expr := range exprs {
		p, err := script.CompilePredicate(expr)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}
	return predicates, nil
}

// inScope applies the soft delete scope. A record is trashed when its soft
// delete field holds any non-empty value.
func (q *memoryQuery) inScope(rec MapRecord) bool {
	if q.src.softDeleteField == "" {
		return !q.scope.OnlyTrashed
	}
	v := rec[q.src.softDeleteField]
	trashed := v != nil && v != ""
	switch {
	case q.scope.OnlyTrashed:
		return trashed
	case q.scope.WithTrashed:
		return true
	default:
		return !trashed
	}
}

// inRanges drops records whose filter field is missing or not a time.
func (q *memoryQuery) inRanges(rec MapRecord) bool {
	for _, r := range q.ranges {
		t, ok := recordTime(rec[r.field])
		if !ok || !inWindow(t, r.start, r.end) {
			return false
		}
	}
	return true
}

func matchAll(predicates []*script.Predicate, rec MapRecord) (bool, error) {
	if len(predicates) == 0 {
		return true, nil
	}
	plain := plainMap(rec)
	for _, p := range predicates {
		ok, err := p.Match(plain)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// plainMap converts nested records into the plain maps the script engine accepts.
func plainMap(rec MapRecord) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if nested, ok := v.(MapRecord); ok {
			out[k] = plainMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
