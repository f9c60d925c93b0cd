// Package source has the record sources charts are built from:
// in-memory JSON records, SQL tables and MongoDB collections.
package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Source is an opened record source.
type Source interface {
	// Query starts a new query against the source.
	Query() contract.RecordQuery

	// Close releases the underlying connection.
	Close() error
}

// MapRecord is a record backed by a field map.
// Related entities are nested maps stored under the relationship name.
type MapRecord map[string]any

var _ contract.Record = MapRecord{} // Compile-time check

// Get implements the Record interface.
func (r MapRecord) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Related implements the Record interface.
func (r MapRecord) Related(name string) (contract.Record, bool) {
	switch v := r[name].(type) {
	case MapRecord:
		return v, true
	case map[string]any:
		return MapRecord(v), true
	default:
		return nil, false
	}
}

// fieldValue reads a plain or relationship-qualified field. A record without
// the related entity yields nil.
func fieldValue(rec MapRecord, field string) any {
	if v, ok := rec[field]; ok {
		return v
	}
	name, nested, ok := contract.SplitRelatedField(field)
	if !ok {
		return nil
	}
	related, ok := rec.Related(name)
	if !ok {
		return nil
	}
	v, _ := related.Get(nested)
	return v
}

// Registry resolves data source names to opened sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

var _ contract.SourceResolver = &Registry{} // Compile-time check

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// OpenRegistry opens every configured source. Already opened sources are
// closed again when a later one fails.
func OpenRegistry(ctx context.Context, cfgs map[string]contract.SourceConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := NewRegistry()
	for _, name := range slices.Sorted(maps.Keys(cfgs)) {
		cfg := cfgs[name]
		src, err := openSource(ctx, cfg)
		if err != nil {
			_ = reg.Close()
			return nil, &schema.DataSourceError{Source: name, Err: err}
		}
		reg.Register(name, src)
		logger.Debug("opened data source", zap.String("source", name), zap.String("backend", string(cfg.Backend)))
	}
	return reg, nil
}

func openSource(ctx context.Context, cfg contract.SourceConfig) (Source, error) {
	switch cfg.Backend {
	case schema.MemoryBackend:
		return LoadMemorySource(cfg)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return OpenSQLSource(ctx, cfg)
	case schema.MongoDBBackend:
		return OpenMongoSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// Register adds or replaces a named source.
func (r *Registry) Register(name string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(name)] = src
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sources))
}

// Open implements the SourceResolver interface.
func (r *Registry) Open(_ context.Context, dataSource string) (contract.RecordQuery, error) {
	r.mu.RLock()
	src, ok := r.sources[strings.ToLower(dataSource)]
	r.mu.RUnlock()
	if !ok {
		return nil, &schema.DataSourceError{Source: dataSource, Err: schema.ErrDataSourceNotFound}
	}
	return src.Query(), nil
}

// Close closes every registered source.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, src := range r.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.sources = make(map[string]Source)
	return errors.Join(errs...)
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateIdent rejects names that cannot be used as a bare SQL identifier.
func validateIdent(kind, name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid %s name: %q (must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$)", kind, name)
	}
	return nil
}

// skipsGlobalFilter reports whether the scope disables the named global filter.
func skipsGlobalFilter(scope schema.ScopeModifiers, name string) bool {
	for _, skipped := range scope.WithoutGlobalScopes {
		if skipped == "*" || skipped == name {
			return true
		}
	}
	return false
}

// compareValues orders record values: nil first, then times, numbers, and strings.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if isNumber(a) && isNumber(b) {
		return cmp.Compare(cast.ToFloat64(a), cast.ToFloat64(b))
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

// recordTime reads a record value as a time for window filtering.
func recordTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := contract.ParseDate(t)
		return parsed, err == nil
	case []byte:
		parsed, err := contract.ParseDate(string(t))
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// inWindow reports whether t lies in [start, end). Zero bounds are open.
func inWindow(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}
