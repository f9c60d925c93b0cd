package source

import (
	"context"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/mock"
)

// MockSourceResolver is a mock implementation of SourceResolver for testing.
type MockSourceResolver struct {
	mock.Mock
}

var _ contract.SourceResolver = &MockSourceResolver{} // Compile-time check

// Open implements the SourceResolver interface.
func (m *MockSourceResolver) Open(ctx context.Context, dataSource string) (contract.RecordQuery, error) {
	args := m.Called(ctx, dataSource)
	query, _ := args.Get(0).(contract.RecordQuery)
	return query, args.Error(1)
}

// MockRecordQuery is a mock implementation of RecordQuery for testing.
type MockRecordQuery struct {
	mock.Mock
}

var _ contract.RecordQuery = &MockRecordQuery{} // Compile-time check

// OrderBy implements the RecordQuery interface.
func (m *MockRecordQuery) OrderBy(field string) {
	m.Called(field)
}

// FilterRange implements the RecordQuery interface.
func (m *MockRecordQuery) FilterRange(field string, start, end time.Time) {
	m.Called(field, start, end)
}

// FilterPredicate implements the RecordQuery interface.
func (m *MockRecordQuery) FilterPredicate(expr string) {
	m.Called(expr)
}

// IncludeRelationship implements the RecordQuery interface.
func (m *MockRecordQuery) IncludeRelationship(name string) {
	m.Called(name)
}

// ApplyScopeModifiers implements the RecordQuery interface.
func (m *MockRecordQuery) ApplyScopeModifiers(scope schema.ScopeModifiers) {
	m.Called(scope)
}

// Fetch implements the RecordQuery interface.
func (m *MockRecordQuery) Fetch(ctx context.Context) ([]contract.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]contract.Record)
	return records, args.Error(1)
}
