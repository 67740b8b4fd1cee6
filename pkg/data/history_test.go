package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mchmarny/credscore/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func testSnapshot(v Version, weights ...score.SourceWeight) *Snapshot {
	return &Snapshot{
		Version:   v,
		Label:     v.Label(),
		ID:        "cycle-" + v.Label(),
		CreatedAt: v.Time(),
		Weights:   weights,
	}
}

func observed(v float64) *float64 {
	return &v
}

// exerciseHistory runs the behavior every History implementation shares.
func exerciseHistory(t *testing.T, h History) {
	t.Helper()
	ctx := context.Background()

	_, err := h.Latest(ctx)
	require.ErrorIs(t, err, ErrSnapshotNotFound)

	list, err := h.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	v1 := NextVersion(base, 0)
	v2 := NextVersion(base.Add(time.Hour), v1)

	first := testSnapshot(v1,
		score.SourceWeight{Source: "연합뉴스", InitialWeight: 0.9, FinalWeight: 0.9},
		score.SourceWeight{Source: "A", InitialWeight: 0.4, FinalWeight: 0.4},
	)
	require.NoError(t, h.Append(ctx, first))

	second := testSnapshot(v2,
		score.SourceWeight{Source: "연합뉴스", InitialWeight: 0.9, FinalWeight: 0.9},
		score.SourceWeight{Source: "A", InitialWeight: 0.4, ObservedScore: observed(1), ArticleCount: 3, FinalWeight: 0.58},
	)
	require.NoError(t, h.Append(ctx, second))

	t.Run("duplicate version rejected", func(t *testing.T) {
		err := h.Append(ctx, testSnapshot(v2))
		assert.ErrorIs(t, err, ErrSnapshotExists)

		got, err := h.Get(ctx, v2)
		require.NoError(t, err)
		assert.Len(t, got.Weights, 2)
	})

	t.Run("latest", func(t *testing.T) {
		got, err := h.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, v2, got.Version)
		assert.Equal(t, v2.Label(), got.Label)

		tbl := got.Table()
		require.Contains(t, tbl, "A")
		assert.InDelta(t, 0.4, tbl["A"].InitialWeight, 1e-9)
		assert.InDelta(t, 0.58, tbl["A"].FinalWeight, 1e-9)
		assert.Equal(t, 3, tbl["A"].ArticleCount)
		assert.InDelta(t, 0.9, tbl["연합뉴스"].FinalWeight, 1e-9)
	})

	t.Run("get older", func(t *testing.T) {
		got, err := h.Get(ctx, v1)
		require.NoError(t, err)
		assert.Equal(t, v1, got.Version)
		assert.InDelta(t, 0.4, got.Table()["A"].FinalWeight, 1e-9)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := h.Get(ctx, v2+1)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("list oldest first", func(t *testing.T) {
		list, err := h.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, v1, list[0].Version)
		assert.Equal(t, v2, list[1].Version)
		assert.Equal(t, 2, list[1].Sources)
	})
}

func TestSQLHistory_SQLite(t *testing.T) {
	db := setupTestDB(t)
	h := NewSQLHistory(db, DriverSQLite)
	exerciseHistory(t, h)

	got, err := h.Latest(context.Background())
	require.NoError(t, err)
	a := got.Table()["A"]
	require.NotNil(t, a.ObservedScore)
	assert.InDelta(t, 1.0, *a.ObservedScore, 1e-9)
	assert.Nil(t, got.Table()["연합뉴스"].ObservedScore)
	assert.Equal(t, "cycle-"+got.Label, got.ID)
}

func TestSQLHistory_ManyRows(t *testing.T) {
	db := setupTestDB(t)
	h := NewSQLHistory(db, DriverSQLite)
	ctx := context.Background()

	rows := make([]score.SourceWeight, 0, weightInsertBatch*2+7)
	for i := 0; i < cap(rows); i++ {
		rows = append(rows, score.SourceWeight{
			Source:        fmt.Sprintf("source-%04d", i),
			InitialWeight: 0.5,
			FinalWeight:   0.5,
		})
	}

	v := NextVersion(time.Now(), 0)
	require.NoError(t, h.Append(ctx, testSnapshot(v, rows...)))

	got, err := h.Get(ctx, v)
	require.NoError(t, err)
	assert.Len(t, got.Weights, len(rows))
}

func TestSQLHistory_FailedAppendLeavesNothing(t *testing.T) {
	db := setupTestDB(t)
	h := NewSQLHistory(db, DriverSQLite)
	ctx := context.Background()

	v := NextVersion(time.Now(), 0)
	dup := score.SourceWeight{Source: "A", InitialWeight: 0.5, FinalWeight: 0.5}
	err := h.Append(ctx, testSnapshot(v, dup, dup))
	require.Error(t, err)

	_, err = h.Latest(ctx)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSQLHistory_NilDB(t *testing.T) {
	h := NewSQLHistory(nil, DriverSQLite)
	ctx := context.Background()

	_, err := h.Latest(ctx)
	assert.ErrorIs(t, err, ErrDBNotInitialized)
	_, err = h.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrDBNotInitialized)
	_, err = h.List(ctx)
	assert.ErrorIs(t, err, ErrDBNotInitialized)
	err = h.Append(ctx, testSnapshot(1))
	assert.ErrorIs(t, err, ErrDBNotInitialized)
}

func TestSQLHistory_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("credscore"),
		postgres.WithUsername("credscore"),
		postgres.WithPassword("credscore"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exerciseHistory(t, NewSQLHistory(db, DriverPostgres))
}

func TestFileHistory(t *testing.T) {
	h, err := NewFileHistory(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	exerciseHistory(t, h)

	got, err := h.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.Table()["A"].ObservedScore)
}

func TestFileHistory_Format(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileHistory(dir)
	require.NoError(t, err)

	v := NextVersion(time.Date(2025, 3, 1, 9, 30, 0, 5, time.UTC), 0)
	require.NoError(t, h.Append(context.Background(), testSnapshot(v,
		score.SourceWeight{Source: "A", InitialWeight: 0.4, FinalWeight: 0.58, ArticleCount: 3},
	)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "weights-20250301T093000.000000005Z.csv", entries[0].Name())

	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "source,initial_weight,final_weight,article_count\nA,0.4,0.58,3\n", string(b))
}

func TestFileHistory_IgnoresForeignAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileHistory(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".weights-20250301T093000.000000000Z.csv.123"), []byte("partial"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weights-garbage.csv"), []byte("x"), 0600))

	list, err := h.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileHistory_EmptyDir(t *testing.T) {
	_, err := NewFileHistory("")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 30, 0, 123, time.UTC)
	v := NextVersion(ts, 0)
	assert.Equal(t, "20250301T093000.000000123Z", v.Label())
	assert.Equal(t, ts, v.Time())

	t.Run("strictly increasing on ties", func(t *testing.T) {
		next := NextVersion(ts, v)
		assert.Equal(t, v+1, next)
		earlier := NextVersion(ts.Add(-time.Hour), v)
		assert.Equal(t, v+1, earlier)
	})

	t.Run("parse label and number", func(t *testing.T) {
		got, err := ParseVersion(v.Label())
		require.NoError(t, err)
		assert.Equal(t, v, got)

		got, err = ParseVersion(" 1740821400000000123 ")
		require.NoError(t, err)
		assert.Equal(t, v, got)

		_, err = ParseVersion("")
		assert.Error(t, err)
		_, err = ParseVersion("yesterday")
		assert.Error(t, err)
	})
}
