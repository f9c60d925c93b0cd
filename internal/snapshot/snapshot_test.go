package snapshot

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleDefinitions(title string) []schema.ChartDefinition {
	return []schema.ChartDefinition{
		{
			Spec: schema.ChartSpec{Title: title, Name: "signups", ChartType: schema.LineChart, ReportType: schema.GroupByDate},
			Datasets: []schema.Dataset{
				{Name: title, Fill: true, Points: []schema.Point{{Key: "2024-01-01", Value: 2}, {Key: "2024-01-02", Value: 0}}},
			},
		},
		{
			Spec:     schema.ChartSpec{Title: "Revenue", Name: "revenue", ChartType: schema.PieChart, ReportType: schema.GroupByString},
			Datasets: []schema.Dataset{{Name: "Revenue", Points: []schema.Point{{Key: "NL", Value: 15.5}}}},
		},
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}

func TestStoreSaveAndLatestRun(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	first := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, "run-1", first, sampleDefinitions("First")))
	require.NoError(t, store.SaveRun(ctx, "run-2", first.Add(time.Hour), sampleDefinitions("Second")))

	runID, defs, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", runID)
	require.Len(t, defs, 2)
	assert.Equal(t, "Second", defs[0].Spec.Title)
	assert.Equal(t, "revenue", defs[1].Spec.Name)
	assert.Equal(t, sampleDefinitions("Second")[0].Datasets, defs[0].Datasets)

	older, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "First", older[0].Spec.Title)
}

func TestStoreLatestRunEmpty(t *testing.T) {
	store := newSQLiteStore(t)
	_, _, err := store.LatestRun(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestStoreLoadUnknownRun(t *testing.T) {
	store := newSQLiteStore(t)
	defs, err := store.LoadRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestStoreSaveRunIsAtomic(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	// Duplicate chart names violate the primary key and roll the run back
	defs := sampleDefinitions("Dup")
	defs[1].Spec.Name = defs[0].Spec.Name
	require.Error(t, store.SaveRun(ctx, "run-dup", time.Now(), defs))

	_, _, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestStoreGetStatus(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, uint(3), status.SchemaVersion)
	assert.False(t, status.SchemaIsDirty)
	assert.Zero(t, status.TotalRuns)

	oldest := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2024, 2, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, "run-a", oldest, sampleDefinitions("A")))
	require.NoError(t, store.SaveRun(ctx, "run-b", latest, sampleDefinitions("B")[:1]))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, 3, status.TotalCharts)
	assert.Equal(t, "run-b", status.LastRunID)
	assert.True(t, latest.Equal(status.LastRunTime))
	assert.True(t, oldest.Equal(status.OldestRunTime))
	assert.Equal(t, map[string]int64{runsTable: 2, chartsTable: 3}, status.TableSizes)
}

func TestNoneStore(t *testing.T) {
	store, err := NewStore(schema.NoneBackend, "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, "run", time.Now(), sampleDefinitions("x")))
	_, _, err = store.LatestRun(ctx)
	require.ErrorIs(t, err, ErrNoSnapshots)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	require.NoError(t, store.Close())
}

func TestNewStoreUnsupportedBackend(t *testing.T) {
	_, err := NewStore(schema.MemoryBackend, "")
	require.Error(t, err)
}

func TestFormatTimeIsSortable(t *testing.T) {
	a := formatTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), schema.SQLiteBackend).(string)
	b := formatTime(time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC), schema.SQLiteBackend).(string)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.Equal(t, 500, parsed.Nanosecond())

	when := time.Now()
	assert.Equal(t, when, formatTime(when, schema.PostgreSQLBackend))
}

func TestQuoteTableNameAndPlaceholder(t *testing.T) {
	assert.Equal(t, "`t`", quoteTableName("t", schema.MySQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.PostgreSQLBackend))
	assert.Equal(t, "$2", placeholder(2, schema.PostgreSQLBackend))
	assert.Equal(t, "?", placeholder(2, schema.SQLiteBackend))
}

func TestPrintSnapshotStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintSnapshotStatus(&buf, schema.SnapshotStatus{
		Backend:       "sqlite",
		Connected:     true,
		SchemaVersion: 3,
		TotalRuns:     1,
		TotalCharts:   2,
		LastRunID:     "run-1",
		LastRunTime:   time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
		OldestRunTime: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
		TableSizes:    map[string]int64{chartsTable: 2, runsTable: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Snapshot Backend: sqlite")
	assert.Contains(t, out, "Schema Version: 3\n")
	assert.Contains(t, out, "Last Run ID: run-1")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(chartsTable)), bytes.Index(buf.Bytes(), []byte(runsTable)))

	buf.Reset()
	PrintSnapshotStatus(&buf, schema.SnapshotStatus{Backend: "none"})
	assert.Equal(t, "Snapshot Backend: none\nConnected: false\n", buf.String())
}
