package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yapay-ai/garmin-downloader/pkg/csvexport"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"github.com/yapay-ai/garmin-downloader/pkg/notify"
	"github.com/yapay-ai/garmin-downloader/pkg/storage"
)

// Fetcher retrieves one month of one metric.
type Fetcher interface {
	Fetch(ctx context.Context, month model.DateMonth, kind model.MetricKind) ([]model.Sample, error)
}

// Writer persists the samples of one (kind, month) pair.
type Writer interface {
	Write(kind model.MetricKind, month model.DateMonth, samples []model.Sample) (*csvexport.Result, error)
}

// Exporter drives a batch export: for every month in ascending order and
// every requested kind in the order given, it fetches once and writes once.
type Exporter struct {
	fetcher         Fetcher
	writer          Writer
	journal         storage.Journal
	notifiers       []notify.Notifier
	continueOnError bool
	logger          *slog.Logger
}

// NewExporter wires an exporter. journal and notifiers may be nil.
// With continueOnError false the run stops at the first failed pair;
// otherwise failed pairs are skipped and reported at the end. A rejected
// session token always stops the run.
func NewExporter(fetcher Fetcher, writer Writer, journal storage.Journal, notifiers []notify.Notifier, continueOnError bool, logger *slog.Logger) *Exporter {
	return &Exporter{
		fetcher:         fetcher,
		writer:          writer,
		journal:         journal,
		notifiers:       notifiers,
		continueOnError: continueOnError,
		logger:          logger,
	}
}

// PairError is a failure for one (month, kind) pair.
type PairError struct {
	Kind  model.MetricKind
	Month model.DateMonth
	Err   error
}

func (e PairError) Error() string { return e.Err.Error() }

func (e PairError) Unwrap() error { return e.Err }

// Result collects what a run produced.
type Result struct {
	Files    []model.ExportRecord
	Failures []PairError
}

// Samples returns the number of samples written across all files.
func (r *Result) Samples() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Samples
	}
	return n
}

// Err joins all pair failures, or returns nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Run executes req. The request is validated before any fetch is made.
// The returned Result is non-nil whenever validation passed, even on error.
func (e *Exporter) Run(ctx context.Context, req model.ExportRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, month := range req.Months {
		for _, kind := range req.Kinds {
			if err := ctx.Err(); err != nil {
				e.finish(ctx, req, res, notify.StatusFailed, err)
				return res, fmt.Errorf("export interrupted: %w", err)
			}

			record, err := e.exportPair(ctx, month, kind)
			if err != nil {
				res.Failures = append(res.Failures, PairError{Kind: kind, Month: month, Err: err})
				e.logger.Error("export failed", "kind", kind, "month", month.String(), "error", err)

				var authErr *model.AuthenticationError
				if !e.continueOnError || errors.As(err, &authErr) {
					e.finish(ctx, req, res, notify.StatusFailed, err)
					return res, err
				}
				continue
			}
			res.Files = append(res.Files, *record)
		}
	}

	if err := res.Err(); err != nil {
		e.finish(ctx, req, res, notify.StatusPartial, err)
		return res, err
	}

	e.finish(ctx, req, res, notify.StatusCompleted, nil)
	return res, nil
}

func (e *Exporter) exportPair(ctx context.Context, month model.DateMonth, kind model.MetricKind) (*model.ExportRecord, error) {
	samples, err := e.fetcher.Fetch(ctx, month, kind)
	if err != nil {
		return nil, err
	}

	written, err := e.writer.Write(kind, month, samples)
	if err != nil {
		return nil, err
	}

	record := &model.ExportRecord{
		Kind:       kind,
		Year:       month.Year,
		Month:      int(month.Month),
		Path:       written.Path,
		Samples:    int64(written.Rows),
		Bytes:      written.Bytes,
		Checksum:   written.Checksum,
		ExportedAt: time.Now().UTC(),
	}

	e.logger.Info("export written",
		"kind", kind,
		"month", month.String(),
		"path", written.Path,
		"samples", written.Rows,
		"bytes", written.Bytes,
	)

	if e.journal != nil {
		e.compareWithPrevious(ctx, record)
		if jErr := e.journal.RecordExport(ctx, record); jErr != nil {
			e.logger.Error("record export failed", "path", written.Path, "error", jErr)
		}
	}

	return record, nil
}

// compareWithPrevious logs whether a re-export changed the file content.
func (e *Exporter) compareWithPrevious(ctx context.Context, record *model.ExportRecord) {
	month := model.DateMonth{Year: record.Year, Month: time.Month(record.Month)}
	prev, err := e.journal.LatestExport(ctx, record.Kind, month)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		e.logger.Warn("look up previous export failed", "path", record.Path, "error", err)
		return
	}
	e.logger.Info("replaced previous export",
		"path", record.Path,
		"previous", prev.ExportedAt.Format(time.RFC3339),
		"unchanged", prev.Checksum == record.Checksum,
		"sample_delta", record.Samples-prev.Samples,
	)
}

// finish logs the run outcome and dispatches it to every notifier.
func (e *Exporter) finish(ctx context.Context, req model.ExportRequest, res *Result, status notify.Status, runErr error) {
	summary := notify.Summary{
		Status:  status,
		Samples: res.Samples(),
	}
	for _, m := range req.Months {
		summary.Months = append(summary.Months, m.String())
	}
	for _, k := range req.Kinds {
		summary.Kinds = append(summary.Kinds, string(k))
	}
	for _, f := range res.Files {
		summary.Files = append(summary.Files, f.Path)
	}
	for _, f := range res.Failures {
		summary.Failures = append(summary.Failures, f.Error())
	}

	total := len(req.Months) * len(req.Kinds)
	summary.Message = fmt.Sprintf("%d of %d files written", len(res.Files), total)
	if runErr != nil && status == notify.StatusFailed {
		summary.Message += fmt.Sprintf(", aborted: %v", runErr)
	}

	e.logger.Info("export finished",
		"status", status,
		"files", len(res.Files),
		"failures", len(res.Failures),
		"samples", summary.Samples,
	)

	if len(e.notifiers) == 0 {
		return
	}

	// Deliver even when the run itself was cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	for _, notifier := range e.notifiers {
		if err := notifier.Send(sendCtx, summary); err != nil {
			e.logger.Error("send notification failed",
				"notifier", notifier.Name(),
				"error", err,
			)
		}
	}
}
