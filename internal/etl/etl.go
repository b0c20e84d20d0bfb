// Package etl wires the pipeline steps together: the validation gate, the
// curation step (normalize, enrich, write parquet) and the warehouse load.
//
// Each step can run on its own from on-disk artifacts, or Run chains them and
// hands the accepted datasets from the gate straight to curation.
package etl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/curated"
	"salesetl/internal/dataset"
	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
	"salesetl/internal/enrich"
	"salesetl/internal/gate"
	"salesetl/internal/metrics"
	"salesetl/internal/parser/csv"
	"salesetl/internal/storage"
	"salesetl/internal/transformer"
)

// Step names used in logs and metrics.
const (
	StepValidate = "validate"
	StepCurate   = "curate"
	StepLoad     = "load"
)

// FactTable is the warehouse name of the enriched sales table.
const FactTable = "fct_sales_enriched"

// TargetTable maps a curated table to its warehouse table.
func TargetTable(curatedName string) string {
	if curatedName == curated.SalesEnriched {
		return FactTable
	}
	return curatedName
}

// Pipeline runs the steps of one process invocation.
type Pipeline struct {
	cfg   config.Config
	src   datasource.Provider
	log   *zap.Logger
	runID string
	now   func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option { return func(p *Pipeline) { p.runID = id } }

// WithClock sets the clock used for report timestamps.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New returns a Pipeline reading raw extracts from src.
func New(cfg config.Config, src datasource.Provider, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{cfg: cfg, src: src, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.log = log.With(zap.String("run_id", p.runID))
	return p
}

// RunID identifies this invocation in logs and reports.
func (p *Pipeline) RunID() string { return p.runID }

func (p *Pipeline) normalizer() transformer.Chain {
	return transformer.SchemaNormalizer(transformer.NormalizeOptions{
		DateLayouts: p.cfg.Normalize.DateLayouts,
		Aliases:     p.cfg.Normalize.Aliases,
	})
}

// rawParser reads raw extracts as configured. Lenient mode logs every
// skipped row.
func (p *Pipeline) rawParser() *csv.Parser {
	c := p.cfg.CSV
	opt := csv.Options{Strict: c.Strict, TrimSpace: c.TrimSpace}
	if r := []rune(c.Delimiter); len(r) == 1 {
		opt.Comma = r[0]
	}
	if !c.Strict {
		opt.OnSkip = func(line int, err error) {
			p.log.Debug("raw row skipped", zap.Int("line", line), zap.Error(err))
		}
	}
	return csv.NewParser(opt)
}

// step times fn and records it.
func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	p.log.Info("step started", zap.String("step", name))
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(p.cfg.Job, name, err, d)
	if err != nil {
		p.log.Error("step failed", zap.String("step", name), zap.Duration("duration", d), zap.Error(err))
	} else {
		p.log.Info("step finished", zap.String("step", name), zap.Duration("duration", d))
	}
	return err
}

// Validate runs the quality gate over the configured files. The error wraps
// gate.ErrValidationFailed when any file was not accepted.
func (p *Pipeline) Validate(ctx context.Context) (gate.RunResult, error) {
	var res gate.RunResult
	err := p.step(StepValidate, func() error {
		g := gate.New(gate.Options{
			Job:          p.cfg.Job,
			Files:        p.cfg.Files,
			ValidatedDir: p.cfg.Paths.Validated,
			ReportsDir:   p.cfg.Paths.Reports,
			Workers:      p.cfg.Runtime.Workers,
			RunID:        p.runID,
			Now:          p.now,
		}, p.src, p.rawParser(), p.normalizer(), p.log)
		var err error
		res, err = g.Run(ctx)
		return err
	})
	return res, err
}

// CurateResult describes one curation.
type CurateResult struct {
	Enriched *dataset.Dataset
	Joins    []enrich.Step
	Tables   []curated.Written
}

// Curate enriches the sales facts and writes the curated tables. When
// datasets is nil the validated CSVs are read back and normalized again.
func (p *Pipeline) Curate(ctx context.Context, datasets map[dataset.Kind]*dataset.Dataset) (CurateResult, error) {
	var res CurateResult
	err := p.step(StepCurate, func() error {
		if datasets == nil {
			var err error
			if datasets, err = p.readValidated(ctx); err != nil {
				return err
			}
		}
		enriched, joins, err := enrich.EnrichWith(datasets[dataset.KindSales], datasets,
			enrich.Options{DedupPolicy: p.cfg.Enrich.DedupPolicy})
		if err != nil {
			return err
		}
		res.Enriched, res.Joins = enriched, joins
		for _, j := range joins {
			if j.Applied {
				p.log.Info("dimension joined",
					zap.String("kind", string(j.Kind)),
					zap.Strings("columns", j.Columns),
					zap.Int("matched", j.Matched))
			} else {
				p.log.Warn("dimension join skipped", zap.String("kind", string(j.Kind)), zap.String("reason", j.Reason))
			}
		}

		written, err := curated.NewWriter(p.cfg.Paths.Curated, p.log).Write(ctx, curated.Tables(enriched, datasets))
		if err != nil {
			return err
		}
		res.Tables = written
		for _, w := range written {
			metrics.RecordRows(p.cfg.Job, w.Table, "curated", int64(w.Rows))
		}
		return nil
	})
	return res, err
}

// readValidated loads the accepted extracts of a previous validate run.
func (p *Pipeline) readValidated(ctx context.Context) (map[dataset.Kind]*dataset.Dataset, error) {
	dir := file.NewDir(p.cfg.Paths.Validated)
	parser := csv.NewParser(csv.Options{Strict: true})
	norm := p.normalizer()
	out := make(map[dataset.Kind]*dataset.Dataset, len(p.cfg.Files))
	for _, name := range p.cfg.Files {
		data, err := readAll(ctx, dir, name)
		if err != nil {
			return nil, fmt.Errorf("read validated %s: %w", dir.Location(name), err)
		}
		ds, _, err := parser.Parse(name, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse validated %s: %w", name, err)
		}
		out[dataset.KindForFile(name)] = norm.Apply(ds)
	}
	return out, nil
}

func readAll(ctx context.Context, src datasource.Provider, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Loaded is one replaced warehouse table.
type Loaded struct {
	Table string
	Rows  int64
}

// Load replaces every warehouse table with its curated parquet data.
func (p *Pipeline) Load(ctx context.Context) ([]Loaded, error) {
	var out []Loaded
	err := p.step(StepLoad, func() error {
		tables := make([]*dataset.Dataset, len(curated.TableNames))
		for i, name := range curated.TableNames {
			ds, err := curated.Read(p.cfg.Paths.Curated, name)
			if err != nil {
				return err
			}
			tables[i] = ds
		}

		repo, err := storage.New(ctx, storageConfig(p.cfg.Warehouse))
		if err != nil {
			return fmt.Errorf("open warehouse: %w", err)
		}
		defer repo.Close()

		l := storage.NewLoader(repo, p.cfg.Warehouse.Schema, p.cfg.Warehouse.BatchSize, p.cfg.Job, p.log)
		if err := l.EnsureSchema(ctx); err != nil {
			return err
		}
		for i, name := range curated.TableNames {
			target := TargetTable(name)
			n, err := l.Replace(ctx, target, tables[i])
			if err != nil {
				return err
			}
			out = append(out, Loaded{Table: target, Rows: n})
		}
		return nil
	})
	return out, err
}

// RunOptions configures Run.
type RunOptions struct {
	SkipLoad bool
}

// Summary is everything Run did. Later fields stay zero when an earlier step
// failed.
type Summary struct {
	RunID   string
	Gate    gate.RunResult
	Curated *CurateResult
	Loaded  []Loaded
}

// Run validates, curates and loads. Curation starts only when every file was
// accepted, and works on the in-memory datasets from the gate.
func (p *Pipeline) Run(ctx context.Context, opt RunOptions) (Summary, error) {
	s := Summary{RunID: p.runID}
	res, err := p.Validate(ctx)
	s.Gate = res
	if err != nil {
		return s, err
	}

	cr, err := p.Curate(ctx, res.Datasets())
	if err != nil {
		return s, err
	}
	s.Curated = &cr

	if opt.SkipLoad {
		p.log.Info("load skipped")
		return s, nil
	}
	loaded, err := p.Load(ctx)
	s.Loaded = loaded
	if err != nil {
		return s, err
	}
	return s, nil
}

// IsRejection reports whether err means extracts were rejected rather than
// the process failing.
func IsRejection(err error) bool { return errors.Is(err, gate.ErrValidationFailed) }
