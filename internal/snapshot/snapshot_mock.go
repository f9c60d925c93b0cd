package snapshot

import (
	"context"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/mock"
)

// MockSnapshotStore is a mock implementation of SnapshotStore for testing.
type MockSnapshotStore struct {
	mock.Mock
}

var _ contract.SnapshotStore = &MockSnapshotStore{} // Compile-time check

// SaveRun implements the SnapshotStore interface.
func (m *MockSnapshotStore) SaveRun(ctx context.Context, runID string, builtAt time.Time, defs []schema.ChartDefinition) error {
	args := m.Called(ctx, runID, builtAt, defs)
	return args.Error(0)
}

// LatestRun implements the SnapshotStore interface.
func (m *MockSnapshotStore) LatestRun(ctx context.Context) (string, []schema.ChartDefinition, error) {
	args := m.Called(ctx)
	defs, _ := args.Get(1).([]schema.ChartDefinition)
	return args.String(0), defs, args.Error(2)
}

// GetStatus implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetStatus() (schema.SnapshotStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.SnapshotStatus), args.Error(1)
}

// Close implements the SnapshotStore interface.
func (m *MockSnapshotStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
