// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"strings"
	"time"

	"github.com/huangsam/chartkit/schema"
)

// Record is a single entity read by the pipeline.
// Field access goes through this capability interface instead of reflection.
type Record interface {
	// Get returns the value of a named field and whether the field is set.
	Get(field string) (any, bool)

	// Related returns the entity reached through a named relationship, if any.
	Related(name string) (Record, bool)
}

// RecordQuery composes a single fetch against a data source.
// Methods accumulate state; Fetch runs the query exactly once.
type RecordQuery interface {
	// OrderBy sorts the fetched records ascending by field. A field of an
	// included relationship is qualified as "relationship.field".
	OrderBy(field string)

	// FilterRange keeps records whose field lies in [start, end). Zero bounds are open.
	FilterRange(field string, start, end time.Time)

	// FilterPredicate ANDs a predicate written in the source's native language.
	FilterPredicate(expr string)

	// IncludeRelationship loads the named relationship in the same fetch.
	IncludeRelationship(name string)

	// ApplyScopeModifiers applies soft-delete and global filter scopes.
	ApplyScopeModifiers(scope schema.ScopeModifiers)

	// Fetch executes the composed query.
	Fetch(ctx context.Context) ([]Record, error)
}

// RelatedField qualifies a field of a related record for OrderBy.
func RelatedField(relationship, field string) string {
	return relationship + "." + field
}

// SplitRelatedField splits a qualified field. ok is false for plain fields.
func SplitRelatedField(field string) (relationship, name string, ok bool) {
	return strings.Cut(field, ".")
}

// SourceResolver opens queries against named data sources.
// Unknown names return an error wrapping schema.ErrDataSourceNotFound.
type SourceResolver interface {
	Open(ctx context.Context, dataSource string) (RecordQuery, error)
}

// SnapshotStore persists built chart definitions so renderers can read them later.
type SnapshotStore interface {
	// SaveRun stores every definition of one build run.
	SaveRun(ctx context.Context, runID string, builtAt time.Time, defs []schema.ChartDefinition) error

	// LatestRun returns the definitions of the most recent run.
	LatestRun(ctx context.Context) (string, []schema.ChartDefinition, error)

	// GetStatus returns status information about the store.
	GetStatus() (schema.SnapshotStatus, error)

	// Close closes the underlying connection.
	Close() error
}
