// Package gate decides, file by file, whether a raw extract may proceed.
//
// Each file goes READ -> NORMALIZE -> EVALUATE -> ACCEPT or REJECT. Accepted
// datasets are written to the validated directory; a quality report is
// written for every evaluated file.
package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"salesetl/internal/artifact"
	"salesetl/internal/dataset"
	"salesetl/internal/datasource"
	"salesetl/internal/metrics"
	"salesetl/internal/parser"
	csvout "salesetl/internal/parser/csv"
	"salesetl/internal/quality"
	"salesetl/internal/transformer"
)

var (
	// ErrRejected marks a file whose report did not pass.
	ErrRejected = errors.New("rejected by quality rules")
	// ErrFailed marks a file that could not be processed at all.
	ErrFailed = errors.New("processing failed")
	// ErrValidationFailed is returned by Run when any file was not accepted.
	ErrValidationFailed = errors.New("validation failed")
)

// Outcome is the gate decision for one file.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
	Failed   Outcome = "failed"
)

// ReportSuffix is appended to the file base name to name its report.
const ReportSuffix = "_ge_report.json"

// ReportName returns the report file name for an extract, e.g.
// "sap_sales.csv" -> "sap_sales_ge_report.json".
func ReportName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ReportSuffix
}

// Options configures a Gate.
type Options struct {
	Job          string
	Files        []string
	ValidatedDir string
	ReportsDir   string
	// Workers bounds concurrent files. Values below 1 mean 1.
	Workers int
	// RunID is stamped into every report.
	RunID string
	// Now is the clock for report timestamps; time.Now when nil.
	Now func() time.Time
}

// FileResult is what happened to one file.
type FileResult struct {
	File    string
	Kind    dataset.Kind
	Outcome Outcome
	Rows    int
	// Skipped counts unreadable rows dropped by a lenient parser.
	Skipped int
	// Report is nil when the file never reached evaluation.
	Report        *quality.Report
	ReportPath    string
	ValidatedPath string
	// Written is false when the validated artifact already held these bytes.
	Written bool
	// Dataset is the normalized data of an accepted file.
	Dataset  *dataset.Dataset
	Duration time.Duration
	Err      error
}

// RunResult collects the file results in configured order.
type RunResult struct {
	RunID string
	Files []FileResult
}

// Count returns how many files ended with outcome o.
func (r RunResult) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Datasets returns the accepted datasets keyed by kind. A later file of the
// same kind replaces an earlier one.
func (r RunResult) Datasets() map[dataset.Kind]*dataset.Dataset {
	out := make(map[dataset.Kind]*dataset.Dataset, len(r.Files))
	for _, f := range r.Files {
		if f.Outcome == Accepted && f.Dataset != nil {
			out[f.Kind] = f.Dataset
		}
	}
	return out
}

// Gate runs the quality gate over a set of extracts.
type Gate struct {
	opt    Options
	src    datasource.Provider
	parser parser.Parser
	norm   transformer.Transformer
	log    *zap.Logger
}

// New builds a Gate. norm is normally transformer.SchemaNormalizer.
func New(opt Options, src datasource.Provider, p parser.Parser, norm transformer.Transformer, log *zap.Logger) *Gate {
	if opt.Workers < 1 {
		opt.Workers = 1
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{opt: opt, src: src, parser: p, norm: norm, log: log}
}

// Run evaluates every configured file. Files are independent: a rejection
// never stops its siblings. The error is ErrValidationFailed when any file
// was rejected or failed, or the context error when the run was cancelled.
func (g *Gate) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: g.opt.RunID, Files: make([]FileResult, len(g.opt.Files))}

	var eg errgroup.Group
	eg.SetLimit(g.opt.Workers)
	for i, name := range g.opt.Files {
		eg.Go(func() error {
			res.Files[i] = g.File(ctx, name)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if bad := len(res.Files) - res.Count(Accepted); bad > 0 {
		return res, fmt.Errorf("%w: %d of %d files not accepted", ErrValidationFailed, bad, len(res.Files))
	}
	return res, nil
}

// File runs one extract through the gate. Every failure is captured in the
// result rather than returned, including a panic while processing the file.
// A file that fails before evaluation still gets a report carrying the error.
func (g *Gate) File(ctx context.Context, name string) (fr FileResult) {
	start := time.Now()
	fr = FileResult{File: name, Kind: dataset.KindForFile(name)}
	log := g.log.With(zap.String("file", name), zap.String("kind", string(fr.Kind)))
	var raw []byte

	fail := func(stage string, err error) FileResult {
		fr.Outcome = Failed
		fr.Err = fmt.Errorf("%s: %w: %s: %w", name, ErrFailed, stage, err)
		fr.Duration = time.Since(start)
		log.Error("file failed", zap.String("stage", stage), zap.Error(err))
		if fr.Report == nil && ctx.Err() == nil {
			g.failureReport(&fr, raw, log)
		}
		metrics.RecordFile(g.opt.Job, string(fr.Kind), string(fr.Outcome))
		return fr
	}
	defer func() {
		if r := recover(); r != nil {
			fr = fail("panic", fmt.Errorf("%v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail("read", err)
	}

	raw, err := g.read(ctx, name)
	if err != nil {
		return fail("read", err)
	}

	ds, skipped, err := g.parser.Parse(name, bytes.NewReader(raw))
	if err != nil {
		return fail("parse", err)
	}
	fr.Skipped = skipped
	if skipped > 0 {
		log.Warn("skipped unreadable rows", zap.Int("skipped", skipped))
	}

	ds = g.norm.Apply(ds)
	fr.Rows = ds.Len()

	rep := quality.Evaluate(ds, fr.Kind)
	rep.Meta.RunID = g.opt.RunID
	rep.Meta.SourceFingerprint = artifact.Fingerprint(raw)
	rep.Meta.EvaluatedAt = g.opt.Now().UTC()
	fr.Report = &rep

	fr.ReportPath = filepath.Join(g.opt.ReportsDir, ReportName(name))
	if err := writeReport(fr.ReportPath, rep); err != nil {
		return fail("report", err)
	}

	if !rep.Success {
		fr.Outcome = Rejected
		fr.Err = fmt.Errorf("%s: %w (see %s)", name, ErrRejected, fr.ReportPath)
		fr.Duration = time.Since(start)
		fields := []zap.Field{zap.Int("rows", fr.Rows), zap.String("report", fr.ReportPath)}
		for _, r := range rep.Failed() {
			fields = append(fields, zap.Float64(r.Rule, r.Observed.Fraction))
		}
		log.Error("validation failed", fields...)
		metrics.RecordFile(g.opt.Job, string(fr.Kind), string(fr.Outcome))
		return fr
	}

	body, err := csvout.Encode(ds)
	if err != nil {
		return fail("encode", err)
	}
	fr.ValidatedPath = filepath.Join(g.opt.ValidatedDir, filepath.Base(name))
	if fr.Written, err = artifact.WriteFile(fr.ValidatedPath, body); err != nil {
		return fail("write", err)
	}

	fr.Outcome = Accepted
	fr.Dataset = ds
	fr.Duration = time.Since(start)
	log.Info("validation passed",
		zap.Int("rows", fr.Rows),
		zap.String("validated", fr.ValidatedPath),
		zap.Bool("written", fr.Written),
		zap.Duration("duration", fr.Duration),
	)
	metrics.RecordFile(g.opt.Job, string(fr.Kind), string(fr.Outcome))
	metrics.RecordRows(g.opt.Job, name, "validated", int64(fr.Rows))
	return fr
}

func (g *Gate) read(ctx context.Context, name string) ([]byte, error) {
	rc, err := g.src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.src.Location(name), err)
	}
	return b, nil
}

// failureReport writes a report without results for a file that never
// reached evaluation. The write is best effort; fr keeps the original error.
func (g *Gate) failureReport(fr *FileResult, raw []byte, log *zap.Logger) {
	rep := quality.Report{
		Results: []quality.Result{},
		Meta: quality.Meta{
			Dataset:     fr.File,
			Kind:        string(fr.Kind),
			RowCount:    fr.Rows,
			RunID:       g.opt.RunID,
			EvaluatedAt: g.opt.Now().UTC(),
		},
		Error: fr.Err.Error(),
	}
	if raw != nil {
		rep.Meta.SourceFingerprint = artifact.Fingerprint(raw)
	}
	path := filepath.Join(g.opt.ReportsDir, ReportName(fr.File))
	if err := writeReport(path, rep); err != nil {
		log.Warn("failure report not written", zap.String("report", path), zap.Error(err))
		return
	}
	fr.ReportPath = path
}

func writeReport(path string, rep quality.Report) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = artifact.WriteFile(path, append(b, '\n'))
	return err
}
