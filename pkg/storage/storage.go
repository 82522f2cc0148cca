package storage

import (
	"context"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
)

// Journal records which export files were written and when.
// Sample data itself is never stored.
type Journal interface {
	// RecordExport persists one written file.
	RecordExport(ctx context.Context, record *model.ExportRecord) error

	// ListExports returns journal entries matching the filter, newest first.
	ListExports(ctx context.Context, filter model.HistoryFilter) ([]model.ExportRecord, error)

	// LatestExport returns the most recent entry for a (kind, month) pair.
	LatestExport(ctx context.Context, kind model.MetricKind, month model.DateMonth) (*model.ExportRecord, error)

	// Close releases resources.
	Close() error
}
