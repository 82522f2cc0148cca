package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
)

// TimestampLayout is the format of the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// Result describes a file that was written successfully.
type Result struct {
	Path     string
	Rows     int
	Bytes    int64
	Checksum string
}

// Writer serializes samples into one CSV file per (kind, month).
type Writer struct {
	dir string
	loc *time.Location
}

// NewWriter creates a writer that places files in dir and renders
// timestamps in loc. A nil loc means time.Local.
func NewWriter(dir string, loc *time.Location) *Writer {
	if dir == "" {
		dir = "."
	}
	if loc == nil {
		loc = time.Local
	}
	return &Writer{dir: dir, loc: loc}
}

// Path returns where the file for (kind, month) is written.
func (w *Writer) Path(kind model.MetricKind, month model.DateMonth) string {
	return filepath.Join(w.dir, model.Filename(kind, month))
}

// Write replaces the file for (kind, month) with a header row and one row
// per sample. The content goes to a temporary file first and is renamed into
// place, so the target is either complete or untouched. Failures are
// returned as *model.WriteError.
func (w *Writer) Write(kind model.MetricKind, month model.DateMonth, samples []model.Sample) (*Result, error) {
	path := w.Path(kind, month)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, &model.WriteError{Path: path, Err: fmt.Errorf("create output directory: %w", err)}
	}

	// The process umask decides the final file mode.
	tmpPath := filepath.Join(w.dir, "."+model.Filename(kind, month)+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, &model.WriteError{Path: path, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hash := xxhash.New()
	counter := &countingWriter{}
	if err := encode(io.MultiWriter(tmp, hash, counter), kind, samples, w.loc); err != nil {
		return nil, &model.WriteError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return nil, &model.WriteError{Path: path, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return nil, &model.WriteError{Path: path, Err: fmt.Errorf("close: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, &model.WriteError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	committed = true

	return &Result{
		Path:     path,
		Rows:     len(samples),
		Bytes:    counter.n,
		Checksum: strconv.FormatUint(hash.Sum64(), 16),
	}, nil
}

func encode(out io.Writer, kind model.MetricKind, samples []model.Sample, loc *time.Location) error {
	cw := csv.NewWriter(out)

	if err := cw.Write([]string{"timestamp", kind.Column()}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			s.Timestamp.In(loc).Format(TimestampLayout),
			strconv.FormatFloat(s.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row at %s: %w", row[0], err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
