package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/tmdbsync/golang_services/internal/bulk_exporter_service/domain"
	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/platform/exportdate"
	"github.com/tmdbsync/golang_services/internal/platform/messagebroker"
	"github.com/tmdbsync/golang_services/internal/platform/recordcodec"
)

// maxLineBytes bounds a single bulk file line.
const maxLineBytes = 1 << 20

// Downloader streams a provider file into w.
type Downloader interface {
	Download(ctx context.Context, path string, w io.Writer) error
}

// ExporterConfig is fixed for one run.
type ExporterConfig struct {
	MountPath  string
	Subject    string
	ExportDate time.Time
	Units      []domain.ExportUnit
	RunID      uuid.UUID
	// AckTimeout bounds the drain of one unit's publishes.
	AckTimeout time.Duration
}

// UnitResult is the outcome of one export unit. ParseFailed lines were never published;
// PublishFailed counts only broker-side failures.
type UnitResult struct {
	Unit          domain.ExportUnit
	Path          string
	Lines         int
	ParseFailed   int
	Attempted     int
	Published     int
	PublishFailed int
}

// Exporter downloads each unit's bulk file, persists it, and publishes one trigger
// record per line.
type Exporter struct {
	cfg        ExporterConfig
	downloader Downloader
	publisher  messagebroker.Publisher
	encoder    *recordcodec.Encoder
	recorder   core_domain.OutcomeRecorder
	logger     *slog.Logger
}

func NewExporter(cfg ExporterConfig, downloader Downloader, publisher messagebroker.Publisher, encoder *recordcodec.Encoder, recorder core_domain.OutcomeRecorder, logger *slog.Logger) *Exporter {
	if len(cfg.Units) == 0 {
		cfg.Units = domain.DefaultExportUnits()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = time.Minute
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	logger = logger.With("component", "bulk_exporter", "run_id", cfg.RunID.String(), "export_date", exportdate.Format(cfg.ExportDate))
	if recorder == nil {
		recorder = core_domain.LogOutcomeRecorder{Logger: logger}
	}
	return &Exporter{
		cfg:        cfg,
		downloader: downloader,
		publisher:  publisher,
		encoder:    encoder,
		recorder:   recorder,
		logger:     logger,
	}
}

// CreateOutputPath creates <mount>/export_date=<date>, reusing it when it already exists.
func (e *Exporter) CreateOutputPath() (string, error) {
	path, err := filepath.Abs(filepath.Join(e.cfg.MountPath, domain.PartitionDir(e.cfg.ExportDate)))
	if err != nil {
		return "", fmt.Errorf("resolving output path: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("creating output path %s: %w", path, err)
	}
	return path, nil
}

// Run exports every configured unit in order. The first unit that cannot be fetched,
// decompressed, persisted or encoded stops the run; the results of completed units are
// returned alongside the error.
func (e *Exporter) Run(ctx context.Context) ([]UnitResult, error) {
	e.logger.InfoContext(ctx, "Starting bulk export", "units", len(e.cfg.Units))

	outputPath, err := e.CreateOutputPath()
	if err != nil {
		return nil, err
	}

	results := make([]UnitResult, 0, len(e.cfg.Units))
	for _, unit := range e.cfg.Units {
		res, err := e.ExportUnit(ctx, outputPath, unit)
		if err != nil {
			unitsExported.WithLabelValues(string(unit), "failed").Inc()
			return results, fmt.Errorf("exporting %s: %w", unit, err)
		}
		unitsExported.WithLabelValues(string(unit), "success").Inc()
		results = append(results, res)
	}

	e.logger.InfoContext(ctx, "Completed bulk export", "units", len(results))
	return results, nil
}

// ExportUnit fetches, persists and publishes one unit.
func (e *Exporter) ExportUnit(ctx context.Context, outputPath string, unit domain.ExportUnit) (UnitResult, error) {
	logger := e.logger.With("unit", string(unit))
	logger.InfoContext(ctx, "Exporting unit")

	dest := filepath.Join(outputPath, unit.FileName())
	start := time.Now()
	if err := e.fetchUnit(ctx, unit, dest); err != nil {
		logger.ErrorContext(ctx, "Fetching unit failed", "error", err)
		return UnitResult{Unit: unit}, err
	}
	unitDownloadDuration.WithLabelValues(string(unit)).Observe(time.Since(start).Seconds())

	res, err := e.publishUnit(ctx, unit, dest)
	if err != nil {
		logger.ErrorContext(ctx, "Publishing unit failed", "error", err)
		return res, err
	}

	unitMessagesPublished.WithLabelValues(string(unit)).Add(float64(res.Published))
	unitMessagesFailed.WithLabelValues(string(unit)).Add(float64(res.PublishFailed))
	unitLinesUnparsable.WithLabelValues(string(unit)).Add(float64(res.ParseFailed))

	logger.InfoContext(ctx, "Unit exported",
		"path", res.Path,
		"lines", res.Lines,
		"messages_published", res.Published,
		"messages_failed", res.PublishFailed,
		"lines_unparsable", res.ParseFailed,
	)

	outcome := core_domain.PublishOutcome{
		RunID:         e.cfg.RunID,
		Process:       core_domain.ProcessBulkExporter,
		Unit:          string(unit),
		ExportDate:    e.cfg.ExportDate,
		Attempted:     res.Attempted,
		Published:     res.Published,
		PublishFailed: res.PublishFailed,
		ParseFailed:   res.ParseFailed,
	}
	if err := e.recorder.Record(ctx, outcome); err != nil {
		logger.WarnContext(ctx, "Recording unit outcome failed", "error", err)
	}
	return res, nil
}

// fetchUnit downloads the gzip file to a scratch file, then decompresses it into dest.
func (e *Exporter) fetchUnit(ctx context.Context, unit domain.ExportUnit, dest string) error {
	scratch, err := os.CreateTemp("", "bulk-"+string(unit)+"-*.json.gz")
	if err != nil {
		return fmt.Errorf("creating download scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())
	defer scratch.Close()

	if err := e.downloader.Download(ctx, unit.SourcePath(e.cfg.ExportDate), scratch); err != nil {
		return err
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding download scratch file: %w", err)
	}
	return writeDecompressed(scratch, dest)
}

// writeDecompressed gunzips src into dest. dest is replaced atomically, so it either holds
// the complete file or is left as it was.
func writeDecompressed(src io.Reader, dest string) error {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return core_domain.Wrap(core_domain.ErrDecompression, "opening gzip stream", err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dest, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	tr := &trackingReader{r: zr}
	if _, err := io.Copy(tmp, tr); err != nil {
		if tr.err != nil {
			return core_domain.Wrap(core_domain.ErrDecompression, "decompressing bulk file", err)
		}
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("renaming into %s: %w", dest, err)
	}
	committed = true
	return nil
}

// trackingReader remembers the first non-EOF read error.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// lineReader yields newline-delimited lines of at most maxLineBytes. A longer line is
// consumed whole and reported as oversized instead of being returned.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, maxLineBytes)}
}

// next returns the next line without its terminator. The returned slice is only valid
// until the following call. err is io.EOF once the input is exhausted; line may still
// hold a final unterminated line alongside it.
func (lr *lineReader) next() (line []byte, oversized bool, err error) {
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			oversized = true
			continue
		}
		if oversized {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return nil, true, err
		}
		return bytes.TrimRight(chunk, "\r\n"), false, err
	}
}

// publishUnit issues one publish per parsable line of path, then drains every handle.
// Blank, unparsable and oversized lines are counted in ParseFailed and skipped.
func (e *Exporter) publishUnit(ctx context.Context, unit domain.ExportUnit, path string) (UnitResult, error) {
	res := UnitResult{Unit: unit, Path: path}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	lines := newLineReader(f)
	var pending []messagebroker.PendingPublish
	var encodeErr, readErr error
	for {
		raw, oversized, err := lines.next()
		switch {
		case oversized:
			res.Lines++
			res.ParseFailed++
		case len(raw) > 0 || err == nil:
			res.Lines++
			rec, perr := domain.ParseBulkLine(bytes.TrimSpace(raw), unit, e.cfg.ExportDate)
			if perr != nil {
				res.ParseFailed++
				break
			}
			payload, eerr := e.encoder.EncodeRecord(rec)
			if eerr != nil {
				encodeErr = eerr
				break
			}
			pending = append(pending, e.publisher.Publish(ctx, messagebroker.Message{
				Subject: e.cfg.Subject,
				Data:    payload,
				ID:      rec.MessageID(),
			}))
		}
		if encodeErr != nil {
			break
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	// Whatever was issued is resolved before returning, even on failure.
	drainCtx, cancel := context.WithTimeout(ctx, e.cfg.AckTimeout)
	defer cancel()
	out := messagebroker.AwaitAll(drainCtx, pending)
	res.Attempted = len(pending)
	res.Published = out.Published
	res.PublishFailed = out.Failed

	if encodeErr != nil {
		return res, encodeErr
	}
	if readErr != nil {
		return res, fmt.Errorf("reading %s: %w", path, readErr)
	}
	return res, nil
}
