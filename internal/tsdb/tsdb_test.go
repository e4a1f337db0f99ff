package tsdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteAndQuery(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now.Add(-2 * time.Minute), Metric: "latency", ModelID: "m1", Value: 100})
	s.Write(Point{Timestamp: now.Add(-1 * time.Minute), Metric: "latency", ModelID: "m1", Value: 150})
	s.Write(Point{Timestamp: now, Metric: "latency", ModelID: "m1", Value: 200})

	series, err := s.Query(context.Background(), QueryParams{Metric: "latency"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Len(t, series[0].Points, 3)
	assert.Equal(t, "m1", series[0].ModelID)
}

func TestQueryWithTimeRange(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now.Add(-10 * time.Minute), Metric: "cost", Value: 0.01})
	s.Write(Point{Timestamp: now.Add(-5 * time.Minute), Metric: "cost", Value: 0.02})
	s.Write(Point{Timestamp: now, Metric: "cost", Value: 0.03})

	series, err := s.Query(context.Background(), QueryParams{Metric: "cost", Start: now.Add(-6 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Len(t, series[0].Points, 2)
}

func TestQueryGroupsByModelAndDomain(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now, Metric: "latency", ModelID: "m1", Domain: "code", Value: 100})
	s.Write(Point{Timestamp: now, Metric: "latency", ModelID: "m2", Domain: "math", Value: 200})

	series, err := s.Query(context.Background(), QueryParams{Metric: "latency"})
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestQueryFilterByModel(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now, Metric: "latency", ModelID: "m1", Value: 100})
	s.Write(Point{Timestamp: now, Metric: "latency", ModelID: "m2", Value: 200})

	series, err := s.Query(context.Background(), QueryParams{Metric: "latency", ModelID: "m1"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 100.0, series[0].Points[0].Value)
}

func TestDownsample(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Minute)
	for i := range 6 {
		s.Write(Point{Timestamp: now.Add(time.Duration(i) * 10 * time.Second), Metric: "latency", ModelID: "m1", Value: float64(100 + i*10)})
	}

	series, err := s.Query(context.Background(), QueryParams{Metric: "latency", StepMs: 60000})
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Len(t, series[0].Points, 1)
	assert.Equal(t, 125.0, series[0].Points[0].Value)
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)
	s.SetRetention(time.Hour)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now.Add(-2 * time.Hour), Metric: "old", Value: 1})
	s.Write(Point{Timestamp: now, Metric: "new", Value: 2})

	deleted, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	series, err := s.Query(context.Background(), QueryParams{Metric: "new"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Len(t, series[0].Points, 1)
}

func TestMetrics(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now, Metric: "latency", Value: 100})
	s.Write(Point{Timestamp: now, Metric: "cost", Value: 0.01})
	s.Write(Point{Timestamp: now, Metric: "latency", Value: 200})

	metrics, err := s.Metrics(context.Background())
	require.NoError(t, err)
	assert.Len(t, metrics, 2)
}

func TestBufferFlush(t *testing.T) {
	db := testDB(t)
	s, err := New(db)
	require.NoError(t, err)
	s.bufMax = 3

	now := time.Now().UTC()
	s.Write(Point{Timestamp: now, Metric: "test", Value: 1})
	s.Write(Point{Timestamp: now, Metric: "test", Value: 2})

	series, err := s.Query(context.Background(), QueryParams{Metric: "test"})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Len(t, series[0].Points, 2)
}
