package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"github.com/yapay-ai/garmin-downloader/pkg/storage"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_RecordExport(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	record := &model.ExportRecord{
		Kind:     model.HeartRate,
		Year:     2025,
		Month:    7,
		Path:     "hr202507.csv",
		Samples:  21600,
		Bytes:    540000,
		Checksum: "9f86d081884c7d65",
	}

	err := db.RecordExport(ctx, record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.ExportedAt.IsZero())
}

func TestSQLite_ListExports(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []*model.ExportRecord{
		{Kind: model.BodyBattery, Year: 2025, Month: 7, Path: "bb202507.csv", ExportedAt: base},
		{Kind: model.HeartRate, Year: 2025, Month: 7, Path: "hr202507.csv", ExportedAt: base.Add(time.Minute)},
		{Kind: model.HeartRate, Year: 2024, Month: 12, Path: "hr202412.csv", ExportedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		require.NoError(t, db.RecordExport(ctx, r))
	}

	// All, newest first
	all, err := db.ListExports(ctx, model.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hr202412.csv", all[0].Path)
	assert.Equal(t, "bb202507.csv", all[2].Path)

	// Filter by kind
	hr, err := db.ListExports(ctx, model.HistoryFilter{Kind: model.HeartRate})
	require.NoError(t, err)
	assert.Len(t, hr, 2)

	// Filter by year
	y2025, err := db.ListExports(ctx, model.HistoryFilter{Year: 2025})
	require.NoError(t, err)
	assert.Len(t, y2025, 2)

	// Limit
	limited, err := db.ListExports(ctx, model.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_LatestExport(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordExport(ctx, &model.ExportRecord{
		Kind: model.BodyBattery, Year: 2025, Month: 7, Path: "bb202507.csv", Checksum: "old", ExportedAt: base,
	}))
	require.NoError(t, db.RecordExport(ctx, &model.ExportRecord{
		Kind: model.BodyBattery, Year: 2025, Month: 7, Path: "bb202507.csv", Checksum: "new", ExportedAt: base.Add(time.Hour),
	}))

	got, err := db.LatestExport(ctx, model.BodyBattery, model.DateMonth{Year: 2025, Month: time.July})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Checksum)
}

func TestSQLite_LatestExport_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.LatestExport(context.Background(), model.HeartRate, model.DateMonth{Year: 2025, Month: time.March})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_RejectsUnknownKind(t *testing.T) {
	db := newTestDB(t)

	err := db.RecordExport(context.Background(), &model.ExportRecord{Kind: "xx", Year: 2025, Month: 1, Path: "xx.csv"})
	assert.Error(t, err)
}

func TestSQLite_MigrationIdempotency(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db1, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	v1, err := db1.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db2.Close()
	v2, err := db2.SchemaVersion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, v1)
	assert.Equal(t, v1, v2)
}
